package server

import (
	"encoding/json"
	"net/http"

	"github.com/jonjones-gis/lidar-picker/internal/geo"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

type footprintRow struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Category    string `json:"category"`
	Description string `json:"description"`
	HorizAcc    string `json:"horizontalAccuracy"`
	VertAcc     string `json:"verticalAccuracy"`
	Year        string `json:"year"`
	MetaURL     string `json:"metadataUrl"`
	Selectable  bool   `json:"selectable"`
}

// footprintRows flattens a collection into the dataset list the frontend
// renders. Footprints without an identifier show up but cannot be
// selected.
func footprintRows(c geo.Collection) []footprintRow {
	rows := make([]footprintRow, 0, len(c.Items))
	for i := range c.Items {
		f := c.Items[i]
		rows = append(rows, footprintRow{
			ID:          f.ID,
			Label:       f.DisplayLabel(),
			Category:    f.Category,
			Description: f.Description,
			HorizAcc:    f.HorizAcc,
			VertAcc:     f.VertAcc,
			Year:        f.Year,
			MetaURL:     f.MetaURL,
			Selectable:  f.Indexable(),
		})
	}
	return rows
}
