package spatial

import (
	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"
)

// Prefilter prunes exact intersection tests by comparing coarse H3 covers
// of bounding rectangles. It is advisory: any cover that cannot be computed
// (tiny geometry, polyfill error) is treated as inconclusive, so the
// prefilter can skip work but never drop a true intersection.
type Prefilter struct {
	res int
}

func NewPrefilter(res int) *Prefilter {
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}
	return &Prefilter{res: res}
}

// CoverAOI returns the padded cell cover of every AOI shape's bound, or
// nil when any shape is inconclusive (which disables prefiltering for the
// whole run).
func (p *Prefilter) CoverAOI(shapes []orb.Geometry) map[h3.Cell]struct{} {
	if p == nil || len(shapes) == 0 {
		return nil
	}
	out := make(map[h3.Cell]struct{})
	for _, g := range shapes {
		if g == nil {
			continue
		}
		cells := p.coverBound(g.Bound())
		if cells == nil {
			return nil
		}
		for _, c := range cells {
			out[c] = struct{}{}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MayIntersect reports whether a geometry with bound b could intersect the
// covered AOI. True when inconclusive.
func (p *Prefilter) MayIntersect(aoiCells map[h3.Cell]struct{}, b orb.Bound) bool {
	if p == nil || aoiCells == nil {
		return true
	}
	cells := p.coverBound(b)
	if cells == nil {
		return true
	}
	for _, c := range cells {
		if _, ok := aoiCells[c]; ok {
			return true
		}
	}
	return false
}

// coverBound polyfills the bound rectangle and pads the result with one
// ring of neighbors. nil means inconclusive.
func (p *Prefilter) coverBound(b orb.Bound) []h3.Cell {
	loop := h3.GeoLoop{
		{Lat: b.Min[1], Lng: b.Min[0]},
		{Lat: b.Min[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Max[0]},
		{Lat: b.Max[1], Lng: b.Min[0]},
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, p.res)
	if err != nil || len(cells) == 0 {
		return nil
	}

	seen := make(map[h3.Cell]struct{}, len(cells)*7)
	out := make([]h3.Cell, 0, len(cells)*7)
	for _, c := range cells {
		disk, err := h3.GridDisk(c, 1)
		if err != nil {
			return nil
		}
		for _, n := range disk {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}
