// Package selection tracks which datasets the user has selected and keeps
// the map's highlighted styling in step with that set.
package selection

import (
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"github.com/jonjones-gis/lidar-picker/internal/geo"
	"github.com/jonjones-gis/lidar-picker/internal/mapview"
)

// Resolver maps a dataset identifier to its rendered handle. Implemented
// by the session's footprint index; identifiers that no longer resolve are
// inert until re-selected.
type Resolver interface {
	Resolve(id string) (mapview.Handle, bool)
}

// ViewportPolicy bounds the zoom moves made when highlights change.
type ViewportPolicy struct {
	MaxFitZoom  int
	MinSpotZoom int
}

type Manager struct {
	logger  *slog.Logger
	resolve Resolver
	surface mapview.Surface
	policy  ViewportPolicy

	mu          sync.Mutex
	order       []string // selection in toggle order
	selected    map[string]struct{}
	highlighted map[mapview.Handle]struct{}
	subs        map[int]func()
	nextSub     int
}

func NewManager(logger *slog.Logger, resolve Resolver, surface mapview.Surface, policy ViewportPolicy) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger,
		resolve:     resolve,
		surface:     surface,
		policy:      policy,
		selected:    map[string]struct{}{},
		highlighted: map[mapview.Handle]struct{}{},
		subs:        map[int]func(){},
	}
}

// Subscribe registers a listener for the selection-changed signal. The
// returned function unsubscribes.
func (m *Manager) Subscribe(fn func()) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Toggle flips membership for id and emits the selection-changed signal.
func (m *Manager) Toggle(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	if _, on := m.selected[id]; on {
		delete(m.selected, id)
		for i, v := range m.order {
			if v == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	} else {
		m.selected[id] = struct{}{}
		m.order = append(m.order, id)
	}
	subs := make([]func(), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Selected returns the current selection in toggle order.
func (m *Manager) Selected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Manager) IsSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.selected[id]
	return ok
}

// Labels materializes the selection into identifier/label pairs for the
// ranking dialog, pulling labels from the given collection and falling
// back to the identifier.
func (m *Manager) Labels(c geo.Collection) [][2]string {
	byID := make(map[string]string, len(c.Items))
	for i := range c.Items {
		f := c.Items[i]
		if f.Indexable() {
			byID[f.ID] = f.DisplayLabel()
		}
	}
	sel := m.Selected()
	out := make([][2]string, 0, len(sel))
	for _, id := range sel {
		label := byID[id]
		if label == "" {
			label = id
		}
		out = append(out, [2]string{id, label})
	}
	return out
}

// Refresh recomputes the highlight set: the resolvable members of the
// selection set are highlighted and raised, everything previously
// highlighted but no longer in that set reverts to the default style. A
// handle is highlighted iff its identifier is selected and resolves.
func (m *Manager) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[mapview.Handle]struct{}, len(m.selected))
	for _, id := range m.order {
		h, ok := m.resolve.Resolve(id)
		if !ok {
			continue
		}
		next[h] = struct{}{}
	}

	for h := range m.highlighted {
		if _, keep := next[h]; !keep {
			m.surface.SetStyle(h, mapview.DefaultStyle)
		}
	}
	for h := range next {
		m.surface.SetStyle(h, mapview.HighlightStyle)
		m.surface.BringToFront(h)
	}
	m.highlighted = next

	m.applyViewportLocked()
}

// applyViewportLocked fits the viewport to the highlight set when its
// combined bound is usable; a single point-like highlight centers at no
// less than the minimum zoom; otherwise the viewport is left alone.
func (m *Manager) applyViewportLocked() {
	var (
		combined orb.Bound
		found    int
	)
	for h := range m.highlighted {
		b, ok := m.surface.BoundsOf(h)
		if !ok || !geo.BoundUsable(b) {
			continue
		}
		if found == 0 {
			combined = b
		} else {
			combined = combined.Union(b)
		}
		found++
	}
	if found == 0 {
		return
	}
	if found == 1 && combined.Min == combined.Max {
		m.surface.SetView(combined.Center(), m.policy.MinSpotZoom)
		return
	}
	m.surface.FitBounds(geo.PadBound(combined, 0.05), m.policy.MaxFitZoom)
}

// Highlighted reports the current highlight set.
func (m *Manager) Highlighted() map[mapview.Handle]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[mapview.Handle]struct{}, len(m.highlighted))
	for h := range m.highlighted {
		out[h] = struct{}{}
	}
	return out
}
