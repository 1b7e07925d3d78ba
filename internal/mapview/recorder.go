package mapview

import (
	"sync"

	"github.com/paulmach/orb"
)

// Recorder is the server-side model of the rendered map: it tracks every
// shape, its style, the draw order, and the last viewport command. The
// frontend syncs from this state; tests inspect it directly. It carries
// its own lock because the session and the selection manager mutate it
// from concurrent request handlers.
type Recorder struct {
	mu     sync.Mutex
	next   Handle
	shapes map[Handle]orb.Geometry
	styles map[Handle]Style
	order  []Handle

	FitCount   int
	LastFit    orb.Bound
	LastMaxZ   int
	ViewCount  int
	LastCenter orb.Point
	LastZoom   int
}

var _ Surface = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{
		shapes: make(map[Handle]orb.Geometry),
		styles: make(map[Handle]Style),
	}
}

func (r *Recorder) AddShape(g orb.Geometry, style Style) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.shapes[h] = g
	r.styles[h] = style
	r.order = append(r.order, h)
	return h
}

func (r *Recorder) SetStyle(h Handle, style Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shapes[h]; ok {
		r.styles[h] = style
	}
}

func (r *Recorder) BringToFront(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.order {
		if v == h {
			r.order = append(append(append([]Handle{}, r.order[:i]...), r.order[i+1:]...), h)
			return
		}
	}
}

func (r *Recorder) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shapes, h)
	delete(r.styles, h)
	for i, v := range r.order {
		if v == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shapes = make(map[Handle]orb.Geometry)
	r.styles = make(map[Handle]Style)
	r.order = nil
}

func (r *Recorder) FitBounds(b orb.Bound, maxZoom int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FitCount++
	r.LastFit = b
	r.LastMaxZ = maxZoom
}

func (r *Recorder) SetView(center orb.Point, zoom int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ViewCount++
	r.LastCenter = center
	r.LastZoom = zoom
}

func (r *Recorder) BoundsOf(h Handle) (orb.Bound, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.shapes[h]
	if !ok || g == nil {
		return orb.Bound{}, false
	}
	return g.Bound(), true
}

// inspection helpers

func (r *Recorder) StyleOf(h Handle) (Style, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.styles[h]
	return s, ok
}

func (r *Recorder) ShapeOf(h Handle) (orb.Geometry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.shapes[h]
	return g, ok
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shapes)
}

// DrawOrder returns handles back-to-front.
func (r *Recorder) DrawOrder() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, len(r.order))
	copy(out, r.order)
	return out
}
