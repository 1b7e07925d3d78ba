// Package geo defines the footprint domain model shared across the service.
package geo

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NotListed is substituted for missing display attributes so the UI never
// renders an empty or undefined value.
const NotListed = "Not Listed"

// Footprint is the extent polygon and attributes of one surveyed dataset.
// A footprint without an ID cannot be indexed or selected but is still
// rendered.
type Footprint struct {
	ID          string
	Category    string
	Description string
	HorizAcc    string
	VertAcc     string
	Year        string
	MetaURL     string

	// Geometry is nil when the source feature carried none or it could
	// not be decoded. Such footprints are excluded from AOI filtering.
	Geometry orb.Geometry

	// Properties keeps the raw source attributes for display.
	Properties geojson.Properties
}

func (f Footprint) Indexable() bool { return f.ID != "" }

// DisplayLabel is the text shown in the dataset list and the ranking
// dialog, falling back to the identifier.
func (f Footprint) DisplayLabel() string {
	if f.Description != "" && f.Description != NotListed {
		return f.Description
	}
	return f.ID
}

// FillMissing substitutes the placeholder for every empty display field.
func (f *Footprint) FillMissing() {
	for _, p := range []*string{&f.Category, &f.Description, &f.HorizAcc, &f.VertAcc, &f.Year, &f.MetaURL} {
		if strings.TrimSpace(*p) == "" {
			*p = NotListed
		}
	}
}

// Collection is the full footprint set fetched from the remote service.
// It is immutable once built; refreshes replace it wholesale.
type Collection struct {
	Schema string
	Items  []Footprint
}

func (c Collection) Len() int { return len(c.Items) }

// attribute keys probed per field, first hit wins
var (
	idKeys       = []string{"Tile_Index", "ProjectID", "id", "ID", "Name"}
	categoryKeys = []string{"Product", "Category"}
	descKeys     = []string{"Description", "ProjectName", "Title"}
	horizKeys    = []string{"Horz_Acc", "HorizontalAccuracy"}
	vertKeys     = []string{"Vert_Acc", "VerticalAccuracy"}
	yearKeys     = []string{"Year_Collected", "Year", "Collected"}
	metaKeys     = []string{"Meta_Link", "FTP_Path", "MetadataURL"}
)

// FromFeatureCollection builds a Collection from a GeoJSON document as
// returned by the footprint service.
func FromFeatureCollection(schema string, fc *geojson.FeatureCollection) Collection {
	if fc == nil {
		return Collection{Schema: schema}
	}
	items := make([]Footprint, 0, len(fc.Features))
	for _, ft := range fc.Features {
		if ft == nil {
			continue
		}
		f := Footprint{
			ID:          propString(ft.Properties, idKeys...),
			Category:    propString(ft.Properties, categoryKeys...),
			Description: propString(ft.Properties, descKeys...),
			HorizAcc:    propString(ft.Properties, horizKeys...),
			VertAcc:     propString(ft.Properties, vertKeys...),
			Year:        propString(ft.Properties, yearKeys...),
			MetaURL:     propString(ft.Properties, metaKeys...),
			Geometry:    ft.Geometry,
			Properties:  ft.Properties,
		}
		if f.ID == "" {
			if s, ok := ft.ID.(string); ok {
				f.ID = s
			}
		}
		items = append(items, f)
	}
	return Collection{Schema: schema, Items: items}
}

func propString(props geojson.Properties, keys ...string) string {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return strings.TrimSpace(t)
			}
		case float64:
			if t == float64(int64(t)) {
				return fmt.Sprintf("%d", int64(t))
			}
			return fmt.Sprintf("%g", t)
		case int:
			return fmt.Sprintf("%d", t)
		}
	}
	return ""
}
