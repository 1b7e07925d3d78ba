package selection

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/jonjones-gis/lidar-picker/internal/geo"
	"github.com/jonjones-gis/lidar-picker/internal/mapview"
)

type staticResolver map[string]mapview.Handle

func (r staticResolver) Resolve(id string) (mapview.Handle, bool) {
	h, ok := r[id]
	return h, ok
}

func rect(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func testPolicy() ViewportPolicy {
	return ViewportPolicy{MaxFitZoom: 16, MinSpotZoom: 12}
}

func TestToggle_FlipsMembershipAndOrder(t *testing.T) {
	m := NewManager(nil, staticResolver{}, mapview.NewRecorder(), testPolicy())

	m.Toggle("F1")
	m.Toggle("F2")
	if got := m.Selected(); len(got) != 2 || got[0] != "F1" || got[1] != "F2" {
		t.Fatalf("selected=%v", got)
	}
	m.Toggle("F1")
	if m.IsSelected("F1") {
		t.Fatalf("second toggle must deselect")
	}
	if got := m.Selected(); len(got) != 1 || got[0] != "F2" {
		t.Fatalf("selected=%v want [F2]", got)
	}
	m.Toggle("")
	if got := m.Selected(); len(got) != 1 {
		t.Fatalf("empty id must be ignored, selected=%v", got)
	}
}

func TestToggle_NotifiesSubscribers(t *testing.T) {
	m := NewManager(nil, staticResolver{}, mapview.NewRecorder(), testPolicy())
	calls := 0
	unsub := m.Subscribe(func() { calls++ })

	m.Toggle("F1")
	m.Toggle("F1")
	if calls != 2 {
		t.Fatalf("calls=%d want 2", calls)
	}
	unsub()
	m.Toggle("F2")
	if calls != 2 {
		t.Fatalf("unsubscribed listener fired, calls=%d", calls)
	}
}

func TestRefresh_HighlightsResolvableSelection(t *testing.T) {
	rec := mapview.NewRecorder()
	h1 := rec.AddShape(rect(0, 0, 1, 1), mapview.DefaultStyle)
	h2 := rec.AddShape(rect(2, 2, 3, 3), mapview.DefaultStyle)
	res := staticResolver{"F1": h1, "F2": h2}
	m := NewManager(nil, res, rec, testPolicy())

	m.Toggle("F1")
	m.Toggle("ghost") // never resolves
	m.Refresh()

	hl := m.Highlighted()
	if len(hl) != 1 {
		t.Fatalf("highlighted=%d want 1", len(hl))
	}
	if _, ok := hl[h1]; !ok {
		t.Fatalf("F1 not highlighted")
	}
	if s, _ := rec.StyleOf(h1); s != mapview.HighlightStyle {
		t.Fatalf("h1 style=%v", s)
	}
	if s, _ := rec.StyleOf(h2); s != mapview.DefaultStyle {
		t.Fatalf("unselected h2 restyled: %v", s)
	}
	// highlighted shape raised above the rest
	order := rec.DrawOrder()
	if order[len(order)-1] != h1 {
		t.Fatalf("highlight not brought to front: %v", order)
	}
}

func TestRefresh_RevertsDeselected(t *testing.T) {
	rec := mapview.NewRecorder()
	h1 := rec.AddShape(rect(0, 0, 1, 1), mapview.DefaultStyle)
	res := staticResolver{"F1": h1}
	m := NewManager(nil, res, rec, testPolicy())

	m.Toggle("F1")
	m.Refresh()
	m.Toggle("F1")
	m.Refresh()

	if len(m.Highlighted()) != 0 {
		t.Fatalf("highlight set not emptied")
	}
	if s, _ := rec.StyleOf(h1); s != mapview.DefaultStyle {
		t.Fatalf("deselected shape keeps highlight style: %v", s)
	}
}

func TestRefresh_DropsOrphanedHighlightsAfterReload(t *testing.T) {
	rec := mapview.NewRecorder()
	h1 := rec.AddShape(rect(0, 0, 1, 1), mapview.DefaultStyle)
	res := staticResolver{"F1": h1}
	m := NewManager(nil, res, rec, testPolicy())

	m.Toggle("F1")
	m.Refresh()

	// footprints reloaded: F1 no longer resolves
	delete(res, "F1")
	rec.Remove(h1)
	m.Refresh()

	if len(m.Highlighted()) != 0 {
		t.Fatalf("orphaned handle kept in highlight set")
	}
	// the id stays selected and becomes active again once it resolves
	if !m.IsSelected("F1") {
		t.Fatalf("selection must survive a reload")
	}
	h1b := rec.AddShape(rect(0, 0, 1, 1), mapview.DefaultStyle)
	res["F1"] = h1b
	m.Refresh()
	if _, ok := m.Highlighted()[h1b]; !ok {
		t.Fatalf("re-resolved id not highlighted")
	}
}

func TestRefresh_FitsViewportToHighlights(t *testing.T) {
	rec := mapview.NewRecorder()
	h1 := rec.AddShape(rect(0, 0, 1, 1), mapview.DefaultStyle)
	h2 := rec.AddShape(rect(4, 4, 5, 5), mapview.DefaultStyle)
	res := staticResolver{"F1": h1, "F2": h2}
	m := NewManager(nil, res, rec, testPolicy())

	m.Toggle("F1")
	m.Toggle("F2")
	m.Refresh()

	if rec.FitCount != 1 {
		t.Fatalf("fit count=%d want 1", rec.FitCount)
	}
	if !rec.LastFit.Contains(orb.Point{0.5, 0.5}) || !rec.LastFit.Contains(orb.Point{4.5, 4.5}) {
		t.Fatalf("fit bound %v does not cover both highlights", rec.LastFit)
	}
	if rec.LastMaxZ != 16 {
		t.Fatalf("max zoom=%d want 16", rec.LastMaxZ)
	}
}

func TestRefresh_SinglePointCentersAtMinZoom(t *testing.T) {
	rec := mapview.NewRecorder()
	h1 := rec.AddShape(orb.Point{-111.9, 40.7}, mapview.DefaultStyle)
	res := staticResolver{"F1": h1}
	m := NewManager(nil, res, rec, testPolicy())

	m.Toggle("F1")
	m.Refresh()

	if rec.ViewCount != 1 {
		t.Fatalf("view count=%d want 1", rec.ViewCount)
	}
	if rec.LastZoom != 12 {
		t.Fatalf("zoom=%d want 12", rec.LastZoom)
	}
	if rec.LastCenter != (orb.Point{-111.9, 40.7}) {
		t.Fatalf("center=%v", rec.LastCenter)
	}
	if rec.FitCount != 0 {
		t.Fatalf("point highlight must not fit bounds")
	}
}

func TestRefresh_EmptyHighlightLeavesViewport(t *testing.T) {
	rec := mapview.NewRecorder()
	m := NewManager(nil, staticResolver{}, rec, testPolicy())
	m.Refresh()
	if rec.FitCount != 0 || rec.ViewCount != 0 {
		t.Fatalf("viewport moved with nothing highlighted")
	}
}

func TestLabels_FallsBackToIdentifier(t *testing.T) {
	m := NewManager(nil, staticResolver{}, mapview.NewRecorder(), testPolicy())
	m.Toggle("F1")
	m.Toggle("F9")

	c := geo.Collection{Items: []geo.Footprint{
		{ID: "F1", Description: "Salt Lake 2020"},
	}}
	got := m.Labels(c)
	if len(got) != 2 {
		t.Fatalf("labels=%v", got)
	}
	if got[0] != [2]string{"F1", "Salt Lake 2020"} {
		t.Fatalf("labels[0]=%v", got[0])
	}
	if got[1] != [2]string{"F9", "F9"} {
		t.Fatalf("labels[1]=%v", got[1])
	}
}
