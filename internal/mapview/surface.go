// Package mapview abstracts the map rendering library. The pipeline only
// needs to add styled shapes, restyle and raise them, and move the
// viewport; everything else about the map is out of scope.
package mapview

import "github.com/paulmach/orb"

// Handle identifies one rendered shape. Zero is never issued.
type Handle int

type Style struct {
	Color       string
	Weight      float64
	FillOpacity float64
}

var (
	DefaultStyle   = Style{Color: "#3388ff", Weight: 1, FillOpacity: 0.15}
	HighlightStyle = Style{Color: "#ff7800", Weight: 3, FillOpacity: 0.35}
	AOIStyle       = Style{Color: "#2ca05a", Weight: 2, FillOpacity: 0.05}
)

// Surface is the map capability consumed by the session and the selection
// manager.
type Surface interface {
	AddShape(g orb.Geometry, style Style) Handle
	SetStyle(h Handle, style Style)
	BringToFront(h Handle)
	Remove(h Handle)
	Clear()

	// BoundsOf returns the bounding box of a rendered shape.
	BoundsOf(h Handle) (orb.Bound, bool)

	// FitBounds moves the viewport to contain b. maxZoom of 0 means no
	// zoom cap.
	FitBounds(b orb.Bound, maxZoom int)
	SetView(center orb.Point, zoom int)
}
