package session

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jonjones-gis/lidar-picker/internal/geo"
	"github.com/jonjones-gis/lidar-picker/internal/mapview"
	"github.com/jonjones-gis/lidar-picker/internal/spatial"
)

func rect(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func collection(items ...geo.Footprint) geo.Collection {
	return geo.Collection{Schema: "lidar-extents", Items: items}
}

func aoiOf(geoms ...orb.Geometry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range geoms {
		fc.Append(geojson.NewFeature(g))
	}
	return fc
}

func newTestSession() (*Session, *mapview.Recorder) {
	rec := mapview.NewRecorder()
	s := New(nil, rec, spatial.Planar{})
	return s, rec
}

func TestLoadFootprints_IndexesByID(t *testing.T) {
	s, rec := newTestSession()
	s.LoadFootprints(collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 1, 1)},
		geo.Footprint{ID: "F2", Geometry: rect(2, 2, 3, 3)},
		geo.Footprint{Geometry: rect(4, 4, 5, 5)}, // no id: rendered, not indexed
	))

	if rec.Len() != 3 {
		t.Fatalf("rendered=%d want 3", rec.Len())
	}
	if _, ok := s.Resolve("F1"); !ok {
		t.Fatalf("F1 missing from index")
	}
	if _, ok := s.Resolve("F2"); !ok {
		t.Fatalf("F2 missing from index")
	}
	if _, ok := s.Resolve(""); ok {
		t.Fatalf("empty id must not resolve")
	}
}

func TestLoadFootprints_ReplacesPreviousRender(t *testing.T) {
	s, rec := newTestSession()
	s.LoadFootprints(collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 1, 1)},
		geo.Footprint{ID: "F2", Geometry: rect(2, 2, 3, 3)},
	))
	s.LoadFootprints(collection(
		geo.Footprint{ID: "F3", Geometry: rect(5, 5, 6, 6)},
	))

	if rec.Len() != 1 {
		t.Fatalf("rendered=%d want 1 after reload", rec.Len())
	}
	if _, ok := s.Resolve("F1"); ok {
		t.Fatalf("stale id F1 must not resolve after reload")
	}
	if _, ok := s.Resolve("F3"); !ok {
		t.Fatalf("F3 missing from rebuilt index")
	}
}

func TestLoadFootprints_SkipsNilGeometry(t *testing.T) {
	s, rec := newTestSession()
	s.LoadFootprints(collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 1, 1)},
		geo.Footprint{ID: "F2"}, // nothing to draw
	))
	if rec.Len() != 1 {
		t.Fatalf("rendered=%d want 1", rec.Len())
	}
	if _, ok := s.Resolve("F2"); ok {
		t.Fatalf("footprint without geometry must not be indexed")
	}
}

func TestFilterByAOI_EmptyAOIShowsAll(t *testing.T) {
	s, _ := newTestSession()
	full := collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 1, 1)},
		geo.Footprint{ID: "F2", Geometry: rect(100, 40, 101, 41)},
	)

	got := s.FilterByAOI(geojson.NewFeatureCollection(), full)
	if len(got.Items) != len(full.Items) {
		t.Fatalf("empty aoi filtered to %d items, want all %d", len(got.Items), len(full.Items))
	}
	got = s.FilterByAOI(nil, full)
	if len(got.Items) != len(full.Items) {
		t.Fatalf("nil aoi filtered to %d items, want all %d", len(got.Items), len(full.Items))
	}
}

func TestFilterByAOI_NoPredicateShowsAll(t *testing.T) {
	rec := mapview.NewRecorder()
	s := New(nil, rec, nil)
	full := collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 1, 1)},
		geo.Footprint{ID: "F2", Geometry: rect(100, 40, 101, 41)},
	)

	got := s.FilterByAOI(aoiOf(rect(0, 0, 0.5, 0.5)), full)
	if len(got.Items) != len(full.Items) {
		t.Fatalf("missing predicate must degrade to show-all, got %d items", len(got.Items))
	}
}

func TestFilterByAOI_KeepsIntersecting(t *testing.T) {
	s, rec := newTestSession()
	full := collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 2, 2)},
		geo.Footprint{ID: "F2", Geometry: rect(50, 50, 51, 51)},
		geo.Footprint{ID: "F3", Geometry: rect(1, 1, 3, 3)},
	)

	got := s.FilterByAOI(aoiOf(rect(0.5, 0.5, 1.5, 1.5)), full)
	if len(got.Items) != 2 {
		t.Fatalf("filtered=%d want 2", len(got.Items))
	}
	if got.Items[0].ID != "F1" || got.Items[1].ID != "F3" {
		t.Fatalf("wrong survivors: %s,%s", got.Items[0].ID, got.Items[1].ID)
	}
	// index tracks the filtered render
	if _, ok := s.Resolve("F2"); ok {
		t.Fatalf("filtered-out footprint still resolvable")
	}
	if rec.FitCount != 1 {
		t.Fatalf("viewport fit count=%d want 1", rec.FitCount)
	}
	if !rec.LastFit.Contains(orb.Point{1, 1}) {
		t.Fatalf("fit bound %v does not cover survivors", rec.LastFit)
	}
}

func TestFilterByAOI_ExcludesFootprintsWithoutGeometry(t *testing.T) {
	s, _ := newTestSession()
	full := collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 2, 2)},
		geo.Footprint{ID: "F2"},
	)
	got := s.FilterByAOI(aoiOf(rect(0, 0, 1, 1)), full)
	if len(got.Items) != 1 || got.Items[0].ID != "F1" {
		t.Fatalf("geometry-less footprint must not appear in filtered output")
	}
}

func TestFilterByAOI_MemoReturnsSameResult(t *testing.T) {
	s, _ := newTestSession()
	full := collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 2, 2)},
		geo.Footprint{ID: "F2", Geometry: rect(50, 50, 51, 51)},
	)
	aoi := aoiOf(rect(0.5, 0.5, 1.5, 1.5))

	first := s.FilterByAOI(aoi, full)
	second := s.FilterByAOI(aoi, full)
	if len(first.Items) != len(second.Items) {
		t.Fatalf("memoized run disagrees: %d vs %d", len(first.Items), len(second.Items))
	}
	for i := range first.Items {
		if first.Items[i].ID != second.Items[i].ID {
			t.Fatalf("memoized run reordered results at %d", i)
		}
	}
}

func TestFilterByAOI_ReplacementAOIRunsAgainstFullCollection(t *testing.T) {
	s, _ := newTestSession()
	s.LoadFootprints(collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 1, 1)},
		geo.Footprint{ID: "F2", Geometry: rect(5, 5, 6, 6)},
	))

	got := s.FilterByAOI(aoiOf(rect(5.2, 5.2, 5.8, 5.8)), s.Collection())
	if len(got.Items) != 1 || got.Items[0].ID != "F2" {
		t.Fatalf("first filter=%v", got.Items)
	}
	// the full collection survives the filter
	if s.Collection().Len() != 2 {
		t.Fatalf("full collection shrank to %d", s.Collection().Len())
	}

	// a replacement AOI over F1 must recover it without a reload
	got = s.FilterByAOI(aoiOf(rect(0.2, 0.2, 0.8, 0.8)), s.Collection())
	if len(got.Items) != 1 || got.Items[0].ID != "F1" {
		t.Fatalf("second filter=%v, want F1 recovered", got.Items)
	}
	if s.Rendered().Len() != 1 {
		t.Fatalf("rendered=%d want the filtered subset", s.Rendered().Len())
	}
}

func TestFilterByAOI_MemoDroppedOnReload(t *testing.T) {
	s, _ := newTestSession()
	aoi := aoiOf(rect(0.2, 0.2, 0.8, 0.8))

	// same schema, same ids, same count; geometries swapped
	s.LoadFootprints(collection(
		geo.Footprint{ID: "F1", Geometry: rect(0, 0, 1, 1)},
		geo.Footprint{ID: "F2", Geometry: rect(50, 50, 51, 51)},
	))
	got := s.FilterByAOI(aoi, s.Collection())
	if len(got.Items) != 1 || got.Items[0].ID != "F1" {
		t.Fatalf("first filter=%v", got.Items)
	}

	s.LoadFootprints(collection(
		geo.Footprint{ID: "F1", Geometry: rect(50, 50, 51, 51)},
		geo.Footprint{ID: "F2", Geometry: rect(0, 0, 1, 1)},
	))
	got = s.FilterByAOI(aoi, s.Collection())
	if len(got.Items) != 1 || got.Items[0].ID != "F2" {
		t.Fatalf("stale memo replayed: %v", got.Items)
	}
}

func TestSetAOI_ReplacesLayers(t *testing.T) {
	s, rec := newTestSession()
	s.SetAOI(aoiOf(rect(0, 0, 1, 1), rect(2, 2, 3, 3)))
	if rec.Len() != 2 {
		t.Fatalf("aoi layers=%d want 2", rec.Len())
	}
	s.SetAOI(aoiOf(rect(5, 5, 6, 6)))
	if rec.Len() != 1 {
		t.Fatalf("aoi layers=%d want 1 after replace", rec.Len())
	}
	s.SetAOI(nil)
	if rec.Len() != 0 {
		t.Fatalf("aoi layers=%d want 0 after clear", rec.Len())
	}
	if s.AOI() != nil {
		t.Fatalf("cleared aoi still stored")
	}
}
