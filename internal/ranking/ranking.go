// Package ranking implements the reorder dialog for multi-dataset jobs as
// an explicit state machine: Idle -> Open -> Confirmed or Cancelled.
package ranking

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the cancellation outcome: the user dismissed the dialog.
// It is distinct from failure; the caller must not proceed to submission.
var ErrCancelled = errors.New("ranking cancelled")

// ErrSessionActive is returned when a session is already open. Callers are
// responsible for serializing ranking sessions.
var ErrSessionActive = errors.New("ranking session already active")

// Item is one row of the reorder dialog.
type Item struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Controller serializes ranking sessions: at most one is open at a time.
type Controller struct {
	mu     sync.Mutex
	active *Session
}

func NewController() *Controller { return &Controller{} }

// Open starts a session seeded with items in their given order.
func (c *Controller) Open(items []Item) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && !c.active.closed() {
		return nil, ErrSessionActive
	}
	s := &Session{
		items: append([]Item(nil), items...),
		done:  make(chan struct{}),
	}
	c.active = s
	return s, nil
}

// Active returns the open session, if any.
func (c *Controller) Active() (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.active.closed() {
		return nil, false
	}
	return c.active, true
}

// Session is one open reorder dialog. All mutation methods reorder only;
// they never add or drop items, so confirmation always yields a
// permutation of the seed.
type Session struct {
	mu     sync.Mutex
	items  []Item
	done   chan struct{}
	result []string
	err    error
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Items returns the current visual order.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// MoveUp moves the item at i one position toward the front.
func (s *Session) MoveUp(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i <= 0 || i >= len(s.items) {
		return
	}
	s.items[i-1], s.items[i] = s.items[i], s.items[i-1]
}

// MoveDown moves the item at i one position toward the back.
func (s *Session) MoveDown(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i+1 >= len(s.items) {
		return
	}
	s.items[i], s.items[i+1] = s.items[i+1], s.items[i]
}

// DragOver implements pointer-drag reordering: the dragged item lands at
// the position straddling the pointer's vertical midpoint relative to the
// hovered item. belowMidpoint true places it after the hovered item.
func (s *Session) DragOver(from, over int, belowMidpoint bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if from < 0 || from >= n || over < 0 || over >= n || from == over {
		return
	}
	to := over
	if belowMidpoint {
		to++
	}
	if to > from {
		to--
	}
	if to < 0 || to >= n || to == from {
		return
	}
	it := s.items[from]
	rest := append(append([]Item(nil), s.items[:from]...), s.items[from+1:]...)
	s.items = append(append(append([]Item(nil), rest[:to]...), it), rest[to:]...)
}

// Confirm resolves the session with the current visual order.
func (s *Session) Confirm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed() {
		return
	}
	ids := make([]string, len(s.items))
	for i, it := range s.items {
		ids[i] = it.ID
	}
	s.result = ids
	close(s.done)
}

// Cancel rejects the session with the cancellation outcome.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed() {
		return
	}
	s.err = ErrCancelled
	close(s.done)
}

// Wait blocks until the session resolves, is cancelled, or ctx expires.
func (s *Session) Wait(ctx context.Context) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// Ranker resolves a processing order for the given items. The job builder
// depends on this, not on the dialog directly.
type Ranker interface {
	Rank(ctx context.Context, items []Item) ([]string, error)
}

// Interactive ranks through a dialog session driven elsewhere (e.g. by the
// HTTP surface).
type Interactive struct {
	Controller *Controller
}

func (r Interactive) Rank(ctx context.Context, items []Item) ([]string, error) {
	s, err := r.Controller.Open(items)
	if err != nil {
		return nil, err
	}
	return s.Wait(ctx)
}

// Passthrough is the degradation path when no dialog capability exists in
// the runtime: the input order is the rank order.
type Passthrough struct{}

func (Passthrough) Rank(_ context.Context, items []Item) ([]string, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, nil
}

// Resolve applies the skip rules: zero or one item needs no dialog, and a
// nil ranker degrades to the input order.
func Resolve(ctx context.Context, r Ranker, items []Item) ([]string, error) {
	if len(items) <= 1 || r == nil {
		return Passthrough{}.Rank(ctx, items)
	}
	return r.Rank(ctx, items)
}
