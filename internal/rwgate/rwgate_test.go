package rwgate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestConcurrentReaders(t *testing.T) {
	g := New()
	ctx := context.Background()

	require.NoError(t, g.AcquireRead(ctx))
	require.NoError(t, g.AcquireRead(ctx))
	assert.Equal(t, 2, g.Stats().ActiveReaders)

	g.ReleaseRead()
	g.ReleaseRead()
	assert.Zero(t, g.Stats().ActiveReaders)
}

func TestWriterExcludesReaders(t *testing.T) {
	g := New()
	ctx := context.Background()
	require.NoError(t, g.AcquireWrite(ctx))

	acquired := make(chan struct{})
	go func() {
		_ = g.AcquireRead(ctx)
		close(acquired)
	}()

	waitFor(t, func() bool { return g.Stats().QueuedReaders == 1 })
	select {
	case <-acquired:
		t.Fatal("reader admitted while writer active")
	default:
	}

	g.ReleaseWrite()
	<-acquired
	assert.Equal(t, 1, g.Stats().ActiveReaders)
	g.ReleaseRead()
}

func TestWriterPreference(t *testing.T) {
	g := New()
	ctx := context.Background()
	require.NoError(t, g.AcquireRead(ctx))

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	writerDone := make(chan struct{})
	go func() {
		require.NoError(t, g.AcquireWrite(ctx))
		record("writer")
		g.ReleaseWrite()
		close(writerDone)
	}()
	waitFor(t, func() bool { return g.Stats().QueuedWriters == 1 })

	// A new reader must queue behind the waiting writer.
	readerDone := make(chan struct{})
	go func() {
		require.NoError(t, g.AcquireRead(ctx))
		record("reader")
		g.ReleaseRead()
		close(readerDone)
	}()
	waitFor(t, func() bool { return g.Stats().QueuedReaders == 1 })

	g.ReleaseRead()
	<-writerDone
	<-readerDone
	assert.Equal(t, []string{"writer", "reader"}, order)
}

func TestWritersFIFO(t *testing.T) {
	g := New()
	ctx := context.Background()
	require.NoError(t, g.AcquireWrite(ctx))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, g.AcquireWrite(ctx))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			g.ReleaseWrite()
		}(i)
		waitFor(t, func() bool { return g.Stats().QueuedWriters == i+1 })
	}

	g.ReleaseWrite()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestReadersWokenTogether(t *testing.T) {
	g := New()
	ctx := context.Background()
	require.NoError(t, g.AcquireWrite(ctx))

	const n = 4
	entered := make(chan struct{}, n)
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.AcquireRead(ctx))
			entered <- struct{}{}
			<-release
			g.ReleaseRead()
		}()
	}
	waitFor(t, func() bool { return g.Stats().QueuedReaders == n })

	g.ReleaseWrite()
	for i := 0; i < n; i++ {
		<-entered
	}
	assert.Equal(t, n, g.Stats().ActiveReaders)
	close(release)
	wg.Wait()
}

func TestLastReaderWakesOneWriter(t *testing.T) {
	g := New()
	ctx := context.Background()
	require.NoError(t, g.AcquireRead(ctx))
	require.NoError(t, g.AcquireRead(ctx))

	granted := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_ = g.AcquireWrite(ctx)
			granted <- struct{}{}
		}()
	}
	waitFor(t, func() bool { return g.Stats().QueuedWriters == 2 })

	g.ReleaseRead()
	assert.Equal(t, 2, g.Stats().QueuedWriters)

	g.ReleaseRead()
	<-granted
	s := g.Stats()
	assert.True(t, s.Writing)
	assert.Equal(t, 1, s.QueuedWriters)

	g.ReleaseWrite()
	<-granted
	g.ReleaseWrite()
}

func TestAcquireTimeout(t *testing.T) {
	g := New()
	require.NoError(t, g.AcquireWrite(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.AcquireRead(ctx)
	require.ErrorIs(t, err, ErrTimedOut)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, g.AcquireWrite(ctx2), ErrTimedOut)

	s := g.Stats()
	assert.Zero(t, s.QueuedReaders)
	assert.Zero(t, s.QueuedWriters)
	assert.Equal(t, uint64(2), s.Abandoned)

	// Gate still works.
	g.ReleaseWrite()
	require.NoError(t, g.AcquireRead(context.Background()))
	g.ReleaseRead()
}

func TestCancelledWriterUnblocksReaders(t *testing.T) {
	g := New()
	bg := context.Background()
	require.NoError(t, g.AcquireRead(bg))

	ctx, cancel := context.WithCancel(bg)
	writerErr := make(chan error, 1)
	go func() { writerErr <- g.AcquireWrite(ctx) }()
	waitFor(t, func() bool { return g.Stats().QueuedWriters == 1 })

	readerIn := make(chan struct{})
	go func() {
		_ = g.AcquireRead(bg)
		close(readerIn)
	}()
	waitFor(t, func() bool { return g.Stats().QueuedReaders == 1 })

	cancel()
	err := <-writerErr
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimedOut)

	<-readerIn
	assert.Equal(t, 2, g.Stats().ActiveReaders)
	g.ReleaseRead()
	g.ReleaseRead()
}

func TestStress(t *testing.T) {
	g := New()
	ctx := context.Background()
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if (i+j)%4 == 0 {
					require.NoError(t, g.AcquireWrite(ctx))
					s := g.Stats()
					assert.Zero(t, s.ActiveReaders)
					assert.True(t, s.Writing)
					counter++
					g.ReleaseWrite()
					continue
				}
				require.NoError(t, g.AcquireRead(ctx))
				assert.False(t, g.Stats().Writing)
				g.ReleaseRead()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16*200/4, counter)
	s := g.Stats()
	assert.Zero(t, s.ActiveReaders)
	assert.False(t, s.Writing)
}

func TestReleaseWithoutAcquirePanics(t *testing.T) {
	g := New()
	assert.Panics(t, g.ReleaseRead)
	assert.Panics(t, g.ReleaseWrite)
}
