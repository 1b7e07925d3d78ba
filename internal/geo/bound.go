package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// CombinedBound unions the bounds of the given geometries, skipping nils.
// ok is false when no geometry contributed a usable bound.
func CombinedBound(geoms []orb.Geometry) (orb.Bound, bool) {
	var out orb.Bound
	found := false
	for _, g := range geoms {
		if g == nil {
			continue
		}
		b := g.Bound()
		if !BoundUsable(b) {
			continue
		}
		if !found {
			out = b
			found = true
		} else {
			out = out.Union(b)
		}
	}
	return out, found
}

// BoundUsable reports whether a bound is non-empty and finite, i.e. safe
// to fit a viewport to. A degenerate point bound is usable.
func BoundUsable(b orb.Bound) bool {
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1]
}

// PadBound grows a bound by frac of its larger dimension on every side.
// Point bounds get a small absolute margin so the viewport never collapses.
func PadBound(b orb.Bound, frac float64) orb.Bound {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	d := math.Max(w, h) * frac
	if d == 0 {
		d = 0.001
	}
	return orb.Bound{
		Min: orb.Point{b.Min[0] - d, b.Min[1] - d},
		Max: orb.Point{b.Max[0] + d, b.Max[1] + d},
	}
}

// IsPointLike reports whether a geometry renders as a single spot on the
// map (a point, or a degenerate shape with zero-area bound).
func IsPointLike(g orb.Geometry) bool {
	if g == nil {
		return false
	}
	if _, ok := g.(orb.Point); ok {
		return true
	}
	b := g.Bound()
	return b.Min == b.Max
}
