// Package rwgate implements a fair reader/writer gate.
//
// Unlike sync.RWMutex the gate hands out permits in a defined order:
//
//   - a read is granted immediately only if no writer is active or queued
//   - a write is granted immediately only if the gate is idle and no other
//     writer is queued; otherwise writers queue FIFO
//   - when the last reader leaves, exactly one queued writer is woken
//   - when a writer leaves, the next queued writer is woken if there is one,
//     otherwise every queued reader is woken together
//
// Acquisition honours context cancellation. A waiter that gives up is
// removed from its queue; if its permit was granted in the meantime the
// permit is released before the error is returned.
package rwgate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrTimedOut is returned when a permit could not be acquired before the
// context deadline.
var ErrTimedOut = errors.New("rwgate: timed out waiting for permit")

type waiter struct {
	ch      chan struct{}
	granted bool
}

// Stats is a snapshot of gate state.
type Stats struct {
	ActiveReaders int
	Writing       bool
	QueuedReaders int
	QueuedWriters int
	ReadsGranted  uint64
	WritesGranted uint64
	Abandoned     uint64
}

// Gate is a fair, writer-preferring reader/writer gate.
// The zero value is an idle gate ready for use.
type Gate struct {
	mu      sync.Mutex
	readers int
	writing bool
	writerQ []*waiter
	readerQ []*waiter

	readsGranted  uint64
	writesGranted uint64
	abandoned     uint64
}

// New returns an idle gate.
func New() *Gate { return &Gate{} }

// AcquireRead blocks until a read permit is granted or ctx is done.
func (g *Gate) AcquireRead(ctx context.Context) error {
	g.mu.Lock()
	if !g.writing && len(g.writerQ) == 0 {
		g.readers++
		g.readsGranted++
		g.mu.Unlock()
		return nil
	}
	w := &waiter{ch: make(chan struct{})}
	g.readerQ = append(g.readerQ, w)
	g.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
	}

	g.mu.Lock()
	if w.granted {
		g.mu.Unlock()
		g.ReleaseRead()
	} else {
		g.readerQ = remove(g.readerQ, w)
		g.mu.Unlock()
	}
	return g.abandon(ctx)
}

// ReleaseRead returns a read permit.
func (g *Gate) ReleaseRead() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.readers <= 0 {
		panic("rwgate: ReleaseRead without active reader")
	}
	g.readers--
	g.dispatchLocked()
}

// AcquireWrite blocks until the exclusive write permit is granted or ctx is done.
func (g *Gate) AcquireWrite(ctx context.Context) error {
	g.mu.Lock()
	if !g.writing && g.readers == 0 && len(g.writerQ) == 0 {
		g.writing = true
		g.writesGranted++
		g.mu.Unlock()
		return nil
	}
	w := &waiter{ch: make(chan struct{})}
	g.writerQ = append(g.writerQ, w)
	g.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
	}

	g.mu.Lock()
	if w.granted {
		g.mu.Unlock()
		g.ReleaseWrite()
	} else {
		g.writerQ = remove(g.writerQ, w)
		// Readers may have been held back only by this writer.
		g.dispatchLocked()
		g.mu.Unlock()
	}
	return g.abandon(ctx)
}

// ReleaseWrite returns the write permit.
func (g *Gate) ReleaseWrite() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.writing {
		panic("rwgate: ReleaseWrite without active writer")
	}
	g.writing = false
	g.dispatchLocked()
}

// dispatchLocked grants permits to queued waiters. Queued writers take
// precedence: while one is waiting no reader is admitted.
func (g *Gate) dispatchLocked() {
	if g.writing {
		return
	}
	if len(g.writerQ) > 0 {
		if g.readers > 0 {
			return
		}
		w := g.writerQ[0]
		g.writerQ[0] = nil
		g.writerQ = g.writerQ[1:]
		g.writing = true
		g.writesGranted++
		w.granted = true
		close(w.ch)
		return
	}
	for _, w := range g.readerQ {
		g.readers++
		g.readsGranted++
		w.granted = true
		close(w.ch)
	}
	g.readerQ = nil
}

func (g *Gate) abandon(ctx context.Context) error {
	g.mu.Lock()
	g.abandoned++
	g.mu.Unlock()

	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimedOut, err)
	}
	return err
}

// Stats returns a snapshot of the gate.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Stats{
		ActiveReaders: g.readers,
		Writing:       g.writing,
		QueuedReaders: len(g.readerQ),
		QueuedWriters: len(g.writerQ),
		ReadsGranted:  g.readsGranted,
		WritesGranted: g.writesGranted,
		Abandoned:     g.abandoned,
	}
}

func remove(q []*waiter, w *waiter) []*waiter {
	if i := slices.Index(q, w); i >= 0 {
		return slices.Delete(q, i, i+1)
	}
	return q
}
