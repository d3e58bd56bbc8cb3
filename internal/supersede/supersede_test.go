package supersede

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_SupersedesSameSlot(t *testing.T) {
	var g Group

	ctx1, t1 := g.Begin(context.Background(), "session-a/insights")
	ctx2, t2 := g.Begin(context.Background(), "session-a/insights")

	require.ErrorIs(t, ctx1.Err(), context.Canceled)
	assert.ErrorIs(t, context.Cause(ctx1), ErrSuperseded)
	assert.True(t, IsSuperseded(ctx1, nil))
	assert.False(t, t1.Current())

	assert.NoError(t, ctx2.Err())
	assert.True(t, t2.Current())
	assert.Greater(t, t2.Generation(), t1.Generation())
}

func TestBegin_IndependentSlots(t *testing.T) {
	var g Group

	ctxA, a := g.Begin(context.Background(), "session-a/map")
	_, b := g.Begin(context.Background(), "session-b/map")

	assert.NoError(t, ctxA.Err())
	assert.True(t, a.Current())
	assert.True(t, b.Current())
}

func TestDone(t *testing.T) {
	var g Group

	ctx, tk := g.Begin(context.Background(), "slot")
	tk.Done()
	tk.Done()

	assert.False(t, tk.Current())
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, IsSuperseded(ctx, ctx.Err()), "completion is not supersession")

	// A finished ticket must not release a newer claim.
	_, newer := g.Begin(context.Background(), "slot")
	tk.Done()
	assert.True(t, newer.Current())
}

func TestParentCancellation(t *testing.T) {
	var g Group
	parent, cancel := context.WithCancel(context.Background())

	ctx, tk := g.Begin(parent, "slot")
	cancel()

	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, tk.Current(), "parent cancellation does not release the slot")
	assert.False(t, IsSuperseded(ctx, ctx.Err()))
}

func TestIsSuperseded_WrappedError(t *testing.T) {
	assert.True(t, IsSuperseded(context.Background(), ErrSuperseded))
	assert.False(t, IsSuperseded(context.Background(), context.Canceled))
}

func TestBegin_Concurrent(t *testing.T) {
	var g Group
	const n = 50

	tickets := make([]*Ticket, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, tickets[i] = g.Begin(context.Background(), "slot")
		}(i)
	}
	wg.Wait()

	current := 0
	for _, tk := range tickets {
		if tk.Current() {
			current++
		}
	}
	assert.Equal(t, 1, current, "exactly one ticket holds the slot")
}
