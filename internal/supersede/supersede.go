// Package supersede cancels in-flight work when newer work starts for the same
// logical slot.
//
// A slot is any key that names "the thing the caller is currently looking at":
// a session's selected locality, its map, its advisory panel. Begin hands out a
// Ticket whose context is cancelled as soon as another Begin claims the slot.
// Before applying a result, callers check Ticket.Current so that a late result
// from a superseded operation is discarded rather than overwriting newer state.
package supersede

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is the cancellation cause of a ticket replaced by a newer one.
// It marks work whose result must be discarded, not reported.
var ErrSuperseded = errors.New("superseded by a newer request")

// Group tracks the latest ticket per slot. The zero value is ready to use.
type Group struct {
	mu    sync.Mutex
	slots map[string]*Ticket
	gen   uint64
}

// Ticket is one claim on a slot.
type Ticket struct {
	group  *Group
	slot   string
	gen    uint64
	cancel context.CancelCauseFunc
}

// Begin claims slot, cancelling the previous ticket for it with ErrSuperseded.
// The returned context is also cancelled when parent is.
func (g *Group) Begin(parent context.Context, slot string) (context.Context, *Ticket) {
	ctx, cancel := context.WithCancelCause(parent)

	g.mu.Lock()
	if g.slots == nil {
		g.slots = make(map[string]*Ticket)
	}
	g.gen++
	t := &Ticket{group: g, slot: slot, gen: g.gen, cancel: cancel}
	prev := g.slots[slot]
	g.slots[slot] = t
	g.mu.Unlock()

	if prev != nil {
		prev.cancel(ErrSuperseded)
	}
	return ctx, t
}

// Current reports whether t is still the latest ticket for its slot.
func (t *Ticket) Current() bool {
	t.group.mu.Lock()
	defer t.group.mu.Unlock()
	return t.group.slots[t.slot] == t
}

// Done releases the slot if t still holds it and cancels t's context. It is
// safe to call more than once.
func (t *Ticket) Done() {
	t.group.mu.Lock()
	if t.group.slots[t.slot] == t {
		delete(t.group.slots, t.slot)
	}
	t.group.mu.Unlock()
	t.cancel(context.Canceled)
}

// Generation is a monotonically increasing number identifying t within its
// group. Newer tickets have larger generations.
func (t *Ticket) Generation() uint64 { return t.gen }

// IsSuperseded reports whether err, or ctx's cancellation cause, marks
// superseded work.
func IsSuperseded(ctx context.Context, err error) bool {
	if errors.Is(err, ErrSuperseded) {
		return true
	}
	return ctx != nil && errors.Is(context.Cause(ctx), ErrSuperseded)
}
