// Package shapeupload normalizes a four-part shapefile upload into a
// GeoJSON feature collection.
package shapeupload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrValidation marks upload errors the client caused: missing or
// mismatched parts. The server reports these without touching any state.
var ErrValidation = errors.New("upload validation")

// Part is one uploaded file of the shapefile set.
type Part struct {
	Filename string
	Data     []byte
}

// Result is the normalized upload: one geometry collection with bounded
// per-feature attributes, plus warnings that did not block normalization.
type Result struct {
	Name       string
	Collection *geojson.FeatureCollection
	Warnings   []string
}

var roles = []string{"shp", "shx", "dbf", "prj"}

// Normalize validates that the parts cover exactly the four shapefile
// roles with one shared case-insensitive basename, parses them, and
// returns the feature collection. maxCols bounds how many attribute
// columns are retained per feature.
func Normalize(parts []Part, maxCols int) (*Result, error) {
	byRole := make(map[string]Part, len(roles))
	for _, p := range parts {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p.Filename), "."))
		role := ""
		for _, r := range roles {
			if ext == r {
				role = r
				break
			}
		}
		if role == "" {
			return nil, fmt.Errorf("%w: unexpected file %q (want .shp, .shx, .dbf, .prj)", ErrValidation, p.Filename)
		}
		if _, dup := byRole[role]; dup {
			return nil, fmt.Errorf("%w: more than one .%s file", ErrValidation, role)
		}
		byRole[role] = p
	}
	for _, r := range roles {
		if _, ok := byRole[r]; !ok {
			return nil, fmt.Errorf("%w: missing required file .%s", ErrValidation, r)
		}
	}
	if !sameStem(byRole["shp"].Filename, byRole["shx"].Filename, byRole["dbf"].Filename, byRole["prj"].Filename) {
		return nil, fmt.Errorf("%w: all four files must share the same basename", ErrValidation)
	}

	stem := safeStem(byRole["shp"].Filename)
	if stem == "" {
		stem = "upload"
	}

	dir, err := os.MkdirTemp("", "shp_parts_")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	var warnings []string
	for _, r := range roles {
		p := byRole[r]
		if len(p.Data) == 0 && r != "prj" {
			return nil, fmt.Errorf("%w: file %q is empty", ErrValidation, p.Filename)
		}
		if err := os.WriteFile(filepath.Join(dir, stem+"."+r), p.Data, 0o600); err != nil {
			return nil, fmt.Errorf("write %s part: %w", r, err)
		}
	}

	if w := projectionWarning(byRole["prj"].Data); w != "" {
		warnings = append(warnings, w)
	}

	fc, parseWarnings, err := readShapefile(filepath.Join(dir, stem+".shp"), maxCols)
	if err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	warnings = append(warnings, parseWarnings...)

	return &Result{Name: stem, Collection: fc, Warnings: warnings}, nil
}

func sameStem(names ...string) bool {
	seen := ""
	for _, n := range names {
		stem := strings.ToLower(strings.TrimSuffix(filepath.Base(n), filepath.Ext(n)))
		if seen == "" {
			seen = stem
		} else if stem != seen {
			return false
		}
	}
	return true
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func safeStem(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "._-")
}

func projectionWarning(prj []byte) string {
	s := strings.TrimSpace(string(prj))
	if s == "" {
		return "projection definition is empty; coordinates used as-is and may not align with the basemap"
	}
	up := strings.ToUpper(s)
	if !strings.Contains(up, "GEOGCS") && !strings.Contains(up, "PROJCS") && !strings.Contains(up, "GEOGCRS") && !strings.Contains(up, "PROJCRS") {
		return "projection definition not recognized; coordinates used as-is"
	}
	return ""
}

func readShapefile(path string, maxCols int) (*geojson.FeatureCollection, []string, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	fields := r.Fields()
	if maxCols > 0 && len(fields) > maxCols {
		fields = fields[:maxCols]
	}

	var warnings []string
	fc := geojson.NewFeatureCollection()
	row := 0
	for r.Next() {
		_, shape := r.Shape()
		g := toGeometry(shape)
		if g == nil {
			warnings = append(warnings, fmt.Sprintf("feature %d has no usable geometry; skipped", row))
			row++
			continue
		}
		ft := geojson.NewFeature(g)
		for i, fld := range fields {
			ft.Properties[fld.String()] = r.ReadAttribute(row, i)
		}
		fc.Append(ft)
		row++
	}
	if err := r.Err(); err != nil {
		return nil, nil, err
	}
	if len(fc.Features) == 0 {
		return nil, nil, errors.New("no usable geometry in upload")
	}
	return fc, warnings, nil
}

// toGeometry converts a shapefile record into orb geometry. Multi-part
// polygons are kept as one polygon with each part as a ring, which is how
// the source data encodes holes.
func toGeometry(s shp.Shape) orb.Geometry {
	switch t := s.(type) {
	case *shp.Point:
		return orb.Point{t.X, t.Y}
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, 0, len(t.Points))
		for _, p := range t.Points {
			mp = append(mp, orb.Point{p.X, p.Y})
		}
		if len(mp) == 0 {
			return nil
		}
		return mp
	case *shp.PolyLine:
		ls := partsToLines(t.Parts, t.Points)
		switch len(ls) {
		case 0:
			return nil
		case 1:
			return ls[0]
		default:
			return orb.MultiLineString(ls)
		}
	case *shp.Polygon:
		ls := partsToLines(t.Parts, t.Points)
		if len(ls) == 0 {
			return nil
		}
		poly := make(orb.Polygon, 0, len(ls))
		for _, l := range ls {
			ring := orb.Ring(l)
			if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
				ring = append(ring, ring[0])
			}
			poly = append(poly, ring)
		}
		return poly
	default:
		return nil
	}
}

func partsToLines(parts []int32, points []shp.Point) []orb.LineString {
	if len(points) == 0 {
		return nil
	}
	if len(parts) == 0 {
		parts = []int32{0}
	}
	out := make([]orb.LineString, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(points)) {
			continue
		}
		ls := make(orb.LineString, 0, end-start)
		for _, p := range points[start:end] {
			ls = append(ls, orb.Point{p.X, p.Y})
		}
		out = append(out, ls)
	}
	return out
}
