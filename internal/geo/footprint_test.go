package geo

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func poly(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func TestFromFeatureCollection_MapsAttributes(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	ft := geojson.NewFeature(poly(0, 0, 1, 1))
	ft.Properties["Tile_Index"] = "F1"
	ft.Properties["Product"] = "Bare Earth DEM"
	ft.Properties["Description"] = "Salt Lake 2020"
	ft.Properties["Year_Collected"] = float64(2020)
	fc.Append(ft)

	c := FromFeatureCollection("lidar-extents", fc)
	if c.Len() != 1 {
		t.Fatalf("len=%d want 1", c.Len())
	}
	f := c.Items[0]
	if f.ID != "F1" {
		t.Fatalf("id=%q want F1", f.ID)
	}
	if f.Category != "Bare Earth DEM" {
		t.Fatalf("category=%q", f.Category)
	}
	if f.Year != "2020" {
		t.Fatalf("year=%q want 2020", f.Year)
	}
	if !f.Indexable() {
		t.Fatalf("footprint with id should be indexable")
	}
}

func TestFromFeatureCollection_NoID_NotIndexable(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(poly(0, 0, 1, 1)))

	c := FromFeatureCollection("lidar-extents", fc)
	if c.Items[0].Indexable() {
		t.Fatalf("footprint without id must not be indexable")
	}
}

func TestFillMissing_SubstitutesPlaceholder(t *testing.T) {
	f := Footprint{ID: "F1", Category: "DEM"}
	f.FillMissing()
	if f.Category != "DEM" {
		t.Fatalf("category overwritten: %q", f.Category)
	}
	for name, got := range map[string]string{
		"description": f.Description,
		"horizAcc":    f.HorizAcc,
		"vertAcc":     f.VertAcc,
		"year":        f.Year,
		"metaURL":     f.MetaURL,
	} {
		if got != NotListed {
			t.Fatalf("%s=%q want %q", name, got, NotListed)
		}
	}
}

func TestDisplayLabel_FallsBackToID(t *testing.T) {
	f := Footprint{ID: "F1", Description: NotListed}
	if got := f.DisplayLabel(); got != "F1" {
		t.Fatalf("label=%q want F1", got)
	}
	f.Description = "Moab 2018"
	if got := f.DisplayLabel(); got != "Moab 2018" {
		t.Fatalf("label=%q want description", got)
	}
}

func TestCombinedBound_SkipsNilAndUnusable(t *testing.T) {
	geoms := []orb.Geometry{
		nil,
		poly(0, 0, 1, 1),
		poly(2, 2, 3, 3),
	}
	b, ok := CombinedBound(geoms)
	if !ok {
		t.Fatalf("expected usable bound")
	}
	if b.Min != (orb.Point{0, 0}) || b.Max != (orb.Point{3, 3}) {
		t.Fatalf("bound=%v", b)
	}

	if _, ok := CombinedBound(nil); ok {
		t.Fatalf("empty input must not produce a bound")
	}
}

func TestBoundUsable(t *testing.T) {
	if !BoundUsable(poly(0, 0, 1, 1).Bound()) {
		t.Fatalf("normal bound should be usable")
	}
	bad := orb.Bound{Min: orb.Point{math.NaN(), 0}, Max: orb.Point{1, 1}}
	if BoundUsable(bad) {
		t.Fatalf("NaN bound should be unusable")
	}
	inverted := orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{1, 1}}
	if BoundUsable(inverted) {
		t.Fatalf("inverted bound should be unusable")
	}
	point := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{1, 1}}
	if !BoundUsable(point) {
		t.Fatalf("degenerate point bound is still usable")
	}
}

func TestPadBound_NeverCollapses(t *testing.T) {
	b := PadBound(orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{1, 1}}, 0.05)
	if b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1] {
		t.Fatalf("padded point bound still degenerate: %v", b)
	}

	src := poly(0, 0, 10, 10).Bound()
	p := PadBound(src, 0.1)
	if p.Min[0] >= src.Min[0] || p.Max[0] <= src.Max[0] {
		t.Fatalf("padding did not grow the bound: %v", p)
	}
}

func TestIsPointLike(t *testing.T) {
	if !IsPointLike(orb.Point{1, 2}) {
		t.Fatalf("point should be point-like")
	}
	if IsPointLike(poly(0, 0, 1, 1)) {
		t.Fatalf("polygon should not be point-like")
	}
	if IsPointLike(nil) {
		t.Fatalf("nil should not be point-like")
	}
}
