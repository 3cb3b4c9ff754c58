package runtime

import (
	"context"
	"sync/atomic"

	"github.com/aretw0/automata/pkg/domain"
)

// transitGuard admits one transit at a time.
//
// Waiters block on a send to a one-slot channel; the runtime hands the slot to
// blocked senders in arrival order, which makes the queue FIFO. In reject mode a
// busy guard fails immediately with domain.ErrTransitionInProgress.
//
// The holder marks its context, so calls made on the holder's behalf never queue
// behind it. While the handler runs they fail with domain.ErrTransitionInProgress.
// Once the transition is committed and listeners are notified they run inline.
type transitGuard struct {
	slot    chan struct{}
	reject  bool
	pending atomic.Int32
}

type holdKey struct{ g *transitGuard }

type holdPhase int32

const (
	phaseRunning holdPhase = iota
	phaseNotifying
	phaseDone
)

type hold struct {
	phase  atomic.Int32
	parent *hold
}

func newTransitGuard(reject bool) *transitGuard {
	return &transitGuard{
		slot:   make(chan struct{}, 1),
		reject: reject,
	}
}

// holdOf returns the innermost live hold of g carried by ctx.
func (g *transitGuard) holdOf(ctx context.Context) *hold {
	h, _ := ctx.Value(holdKey{g}).(*hold)
	for h != nil && holdPhase(h.phase.Load()) == phaseDone {
		h = h.parent
	}
	return h
}

// acquire returns the context the transit must run with and the release function.
func (g *transitGuard) acquire(ctx context.Context) (context.Context, func(), error) {
	if outer := g.holdOf(ctx); outer != nil {
		if holdPhase(outer.phase.Load()) == phaseRunning {
			return nil, nil, domain.ErrTransitionInProgress
		}
		h := &hold{parent: outer}
		return context.WithValue(ctx, holdKey{g}, h), func() { h.phase.Store(int32(phaseDone)) }, nil
	}

	if g.reject {
		select {
		case g.slot <- struct{}{}:
			return g.held(ctx)
		default:
			return nil, nil, domain.ErrTransitionInProgress
		}
	}

	g.pending.Add(1)
	defer g.pending.Add(-1)

	select {
	case g.slot <- struct{}{}:
		return g.held(ctx)
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (g *transitGuard) held(ctx context.Context) (context.Context, func(), error) {
	h := &hold{}
	release := func() {
		h.phase.Store(int32(phaseDone))
		g.release()
	}
	return context.WithValue(ctx, holdKey{g}, h), release, nil
}

// notifying switches the hold carried by ctx to the notification phase.
// The returned function restores the running phase.
func (g *transitGuard) notifying(ctx context.Context) func() {
	h, _ := ctx.Value(holdKey{g}).(*hold)
	if h == nil {
		return func() {}
	}
	h.phase.CompareAndSwap(int32(phaseRunning), int32(phaseNotifying))
	return func() {
		h.phase.CompareAndSwap(int32(phaseNotifying), int32(phaseRunning))
	}
}

func (g *transitGuard) release() {
	<-g.slot
}

// waiting returns the number of callers blocked in acquire.
func (g *transitGuard) waiting() int {
	return int(g.pending.Load())
}
