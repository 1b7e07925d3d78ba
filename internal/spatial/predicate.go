// Package spatial implements the intersection predicate used by the AOI
// filter. The predicate is boundary-inclusive: shared edges and single-point
// touches count as intersecting, fully disjoint geometries do not.
package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Predicate is the intersection capability consumed by the session. A nil
// Predicate means the capability is unavailable and the filter degrades to
// returning the unfiltered collection.
type Predicate interface {
	Intersects(a, b orb.Geometry) bool
}

// Planar is the default predicate, operating on lon/lat coordinates as a
// plane. Good enough at footprint scale; the remote service delivers
// EPSG:4326 geometry.
type Planar struct{}

var _ Predicate = Planar{}

func (Planar) Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	apts, alines, apolys := flatten(a)
	bpts, blines, bpolys := flatten(b)

	for _, pa := range apolys {
		for _, pb := range bpolys {
			if polygonsIntersect(pa, pb) {
				return true
			}
		}
		for _, lb := range blines {
			if lineIntersectsPolygon(lb, pa) {
				return true
			}
		}
		for _, ptb := range bpts {
			if pointInPolygon(ptb, pa) {
				return true
			}
		}
	}
	for _, la := range alines {
		for _, pb := range bpolys {
			if lineIntersectsPolygon(la, pb) {
				return true
			}
		}
		for _, lb := range blines {
			if linesIntersect(la, lb) {
				return true
			}
		}
		for _, ptb := range bpts {
			if pointOnLine(ptb, la) {
				return true
			}
		}
	}
	for _, pta := range apts {
		for _, pb := range bpolys {
			if pointInPolygon(pta, pb) {
				return true
			}
		}
		for _, lb := range blines {
			if pointOnLine(pta, lb) {
				return true
			}
		}
		for _, ptb := range bpts {
			if pointsEqual(pta, ptb) {
				return true
			}
		}
	}
	return false
}

// flatten decomposes any orb geometry into point, line and polygon
// primitives so the pairwise checks stay simple.
func flatten(g orb.Geometry) (pts []orb.Point, lines []orb.LineString, polys []orb.Polygon) {
	switch t := g.(type) {
	case orb.Point:
		pts = append(pts, t)
	case orb.MultiPoint:
		pts = append(pts, t...)
	case orb.LineString:
		lines = append(lines, t)
	case orb.MultiLineString:
		for _, l := range t {
			lines = append(lines, l)
		}
	case orb.Ring:
		polys = append(polys, orb.Polygon{t})
	case orb.Polygon:
		polys = append(polys, t)
	case orb.MultiPolygon:
		polys = append(polys, t...)
	case orb.Bound:
		polys = append(polys, t.ToPolygon())
	case orb.Collection:
		for _, sub := range t {
			p, l, po := flatten(sub)
			pts = append(pts, p...)
			lines = append(lines, l...)
			polys = append(polys, po...)
		}
	}
	return pts, lines, polys
}

const eps = 1e-12

func pointsEqual(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) <= eps && math.Abs(a[1]-b[1]) <= eps
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// onSegment assumes p is collinear with a-b
func onSegment(p, a, b orb.Point) bool {
	return p[0] >= math.Min(a[0], b[0])-eps && p[0] <= math.Max(a[0], b[0])+eps &&
		p[1] >= math.Min(a[1], b[1])-eps && p[1] <= math.Max(a[1], b[1])+eps
}

// segmentsIntersect is inclusive: endpoint touches and collinear overlap
// count.
func segmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > eps && d2 < -eps) || (d1 < -eps && d2 > eps)) &&
		((d3 > eps && d4 < -eps) || (d3 < -eps && d4 > eps)) {
		return true
	}
	if math.Abs(d1) <= eps && onSegment(p1, q1, q2) {
		return true
	}
	if math.Abs(d2) <= eps && onSegment(p2, q1, q2) {
		return true
	}
	if math.Abs(d3) <= eps && onSegment(q1, p1, p2) {
		return true
	}
	if math.Abs(d4) <= eps && onSegment(q2, p1, p2) {
		return true
	}
	return false
}

func pointOnLine(p orb.Point, l orb.LineString) bool {
	for i := 0; i+1 < len(l); i++ {
		if math.Abs(cross(l[i], l[i+1], p)) <= eps && onSegment(p, l[i], l[i+1]) {
			return true
		}
	}
	return false
}

func pointInPolygon(p orb.Point, poly orb.Polygon) bool {
	if planar.PolygonContains(poly, p) {
		return true
	}
	// boundary check, in case the containment test is exclusive there
	for _, ring := range poly {
		if pointOnLine(p, orb.LineString(ring)) {
			return true
		}
	}
	return false
}

func linesIntersect(a, b orb.LineString) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func lineIntersectsPolygon(l orb.LineString, poly orb.Polygon) bool {
	if len(l) == 0 {
		return false
	}
	for _, p := range l {
		if pointInPolygon(p, poly) {
			return true
		}
	}
	for _, ring := range poly {
		if linesIntersect(l, orb.LineString(ring)) {
			return true
		}
	}
	return false
}

func polygonsIntersect(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	for _, p := range a[0] {
		if pointInPolygon(p, b) {
			return true
		}
	}
	for _, p := range b[0] {
		if pointInPolygon(p, a) {
			return true
		}
	}
	for _, ra := range a {
		for _, rb := range b {
			if linesIntersect(orb.LineString(ra), orb.LineString(rb)) {
				return true
			}
		}
	}
	return false
}
