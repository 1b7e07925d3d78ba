// Package session owns the per-session pipeline state: the current
// footprint collection, the footprint index, and the AOI. The index maps
// dataset identifiers to rendered map handles and is rebuilt wholesale;
// readers always observe either the old complete index or the new one,
// never a partial rebuild.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jonjones-gis/lidar-picker/internal/core/observability"
	"github.com/jonjones-gis/lidar-picker/internal/geo"
	"github.com/jonjones-gis/lidar-picker/internal/mapview"
	"github.com/jonjones-gis/lidar-picker/internal/spatial"
)

type Option func(*Session)

// WithPrefilter enables the coarse H3 prune before exact intersection
// tests.
func WithPrefilter(p *spatial.Prefilter) Option {
	return func(s *Session) { s.pre = p }
}

// WithViewportPadding sets the relative margin applied when fitting the
// viewport to a filter result.
func WithViewportPadding(frac float64) Option {
	return func(s *Session) { s.padding = frac }
}

// WithFilterMemo bounds the in-process memo of filter results.
func WithFilterMemo(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.memo, _ = lru.New[uint64, []int](size)
		}
	}
}

type Session struct {
	logger  *slog.Logger
	surface mapview.Surface
	pred    spatial.Predicate // nil means the capability is unavailable
	pre     *spatial.Prefilter
	padding float64

	mu         sync.Mutex
	full       geo.Collection // complete set, replaced only by LoadFootprints
	rendered   geo.Collection // what is currently on the map
	index      map[string]mapview.Handle
	handles    []mapview.Handle // every rendered footprint, indexable or not
	aoi        *geojson.FeatureCollection
	aoiHandles []mapview.Handle

	memo *lru.Cache[uint64, []int]
}

func New(logger *slog.Logger, surface mapview.Surface, pred spatial.Predicate, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		logger:  logger,
		surface: surface,
		pred:    pred,
		padding: 0.05,
		index:   map[string]mapview.Handle{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.memo == nil {
		s.memo, _ = lru.New[uint64, []int](64)
	}
	return s
}

// LoadFootprints replaces the full collection, renders it, and rebuilds
// the index. Footprints without an identifier are rendered but not
// indexed. Missing display attributes are replaced with the placeholder
// before rendering. Memoized filter results are dropped: they index into
// the collection being replaced.
func (s *Session) LoadFootprints(c geo.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.full = c
	s.memo.Purge()
	s.loadLocked(c)
}

func (s *Session) loadLocked(c geo.Collection) {
	for _, h := range s.handles {
		s.surface.Remove(h)
	}
	s.handles = s.handles[:0]
	s.index = make(map[string]mapview.Handle, len(c.Items))

	for i := range c.Items {
		c.Items[i].FillMissing()
		f := &c.Items[i]
		if f.Geometry == nil {
			continue
		}
		h := s.surface.AddShape(f.Geometry, mapview.DefaultStyle)
		s.handles = append(s.handles, h)
		if f.Indexable() {
			s.index[f.ID] = h
		}
	}
	s.rendered = c
	s.logger.Debug("footprints loaded", "total", len(c.Items), "indexed", len(s.index))
}

// SetAOI replaces the AOI layers on the map and remembers the geometry for
// filtering and job submission.
func (s *Session) SetAOI(fc *geojson.FeatureCollection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.aoiHandles {
		s.surface.Remove(h)
	}
	s.aoiHandles = s.aoiHandles[:0]
	s.aoi = fc
	if fc == nil {
		return
	}
	for _, ft := range fc.Features {
		if ft == nil || ft.Geometry == nil {
			continue
		}
		s.aoiHandles = append(s.aoiHandles, s.surface.AddShape(ft.Geometry, mapview.AOIStyle))
	}
}

func (s *Session) AOI() *geojson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aoi
}

// Collection returns the complete footprint set. Filtering renders a
// subset but never shrinks this; successive AOI filters always run
// against the full collection.
func (s *Session) Collection() geo.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.full
}

// Rendered returns the footprints currently on the map.
func (s *Session) Rendered() geo.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

// Resolve maps a dataset identifier to its rendered handle.
func (s *Session) Resolve(id string) (mapview.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.index[id]
	return h, ok
}

// FilterByAOI returns the footprints whose geometry intersects any AOI
// shape, re-renders them, and fits the viewport to the result. An AOI with
// no usable shapes means no filtering, not no results; a missing
// intersection capability degrades the same way. Footprints without
// geometry are excluded from filtered results.
func (s *Session) FilterByAOI(aoi *geojson.FeatureCollection, full geo.Collection) geo.Collection {
	start := time.Now()
	shapes := usableShapes(aoi)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(shapes) == 0 {
		s.loadLocked(full)
		observability.ObserveFilter("show_all_empty_aoi", time.Since(start).Seconds())
		return full
	}
	if s.pred == nil {
		s.logger.Warn("intersection capability unavailable; showing all footprints")
		s.loadLocked(full)
		observability.ObserveFilter("show_all_no_predicate", time.Since(start).Seconds())
		return full
	}

	idx, memoized := s.lookupMemo(aoi, full)
	if !memoized {
		var aoiCells = s.pre.CoverAOI(shapes)
		idx = idx[:0]
		for i := range full.Items {
			g := full.Items[i].Geometry
			if g == nil {
				continue
			}
			if !s.pre.MayIntersect(aoiCells, g.Bound()) {
				continue
			}
			for _, shape := range shapes {
				if s.pred.Intersects(g, shape) {
					idx = append(idx, i)
					break
				}
			}
		}
		s.storeMemo(aoi, full, idx)
	}

	filtered := geo.Collection{Schema: full.Schema, Items: make([]geo.Footprint, 0, len(idx))}
	for _, i := range idx {
		filtered.Items = append(filtered.Items, full.Items[i])
	}

	s.loadLocked(filtered)

	geoms := make([]orb.Geometry, 0, len(filtered.Items))
	for i := range filtered.Items {
		geoms = append(geoms, filtered.Items[i].Geometry)
	}
	if b, ok := geo.CombinedBound(geoms); ok {
		s.surface.FitBounds(geo.PadBound(b, s.padding), 0)
	}

	observability.ObserveFilter("filtered", time.Since(start).Seconds())
	s.logger.Info("aoi filter complete",
		"aoi_shapes", len(shapes),
		"in", len(full.Items),
		"out", len(filtered.Items),
		"memoized", memoized)
	return filtered
}

func usableShapes(fc *geojson.FeatureCollection) []orb.Geometry {
	if fc == nil {
		return nil
	}
	var out []orb.Geometry
	for _, ft := range fc.Features {
		if ft == nil || ft.Geometry == nil {
			continue
		}
		if !geo.BoundUsable(ft.Geometry.Bound()) {
			continue
		}
		out = append(out, ft.Geometry)
	}
	return out
}

func filterDigest(aoi *geojson.FeatureCollection, full geo.Collection) (uint64, bool) {
	raw, err := aoi.MarshalJSON()
	if err != nil {
		return 0, false
	}
	h := xxhash.New()
	_, _ = h.Write(raw)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(full.Schema)
	for i := range full.Items {
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(full.Items[i].ID)
	}
	return h.Sum64(), true
}

func (s *Session) lookupMemo(aoi *geojson.FeatureCollection, full geo.Collection) ([]int, bool) {
	key, ok := filterDigest(aoi, full)
	if !ok {
		return nil, false
	}
	if v, hit := s.memo.Get(key); hit {
		return v, true
	}
	return nil, false
}

func (s *Session) storeMemo(aoi *geojson.FeatureCollection, full geo.Collection, idx []int) {
	if key, ok := filterDigest(aoi, full); ok {
		cp := make([]int, len(idx))
		copy(cp, idx)
		s.memo.Add(key, cp)
	}
}
