package lsmvec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/internal/engine"
	"github.com/hupe1980/lsmvec/internal/kdtree"
	"github.com/hupe1980/lsmvec/internal/rwgate"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidVector is returned for empty vectors or vectors containing NaN or Inf.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrEmptyID is returned when an explicitly supplied id is empty.
	ErrEmptyID = errors.New("id must not be empty")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store closed")

	// ErrCorrupt is returned when the log or a segment file fails validation.
	ErrCorrupt = errors.New("store data corrupt")

	// ErrLocked is returned when another Store holds the directory.
	ErrLocked = errors.New("store directory locked")

	// ErrTimedOut is returned when a lock permit was not granted in time.
	ErrTimedOut = errors.New("timed out waiting for store lock")

	// ErrFlushFailed is returned when a mutation was logged durably and
	// applied, but the flush or compaction it triggered failed.
	ErrFlushFailed = errors.New("flush failed after durable write")
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, engine.ErrFlushFailed):
		return fmt.Errorf("%w: %w", ErrFlushFailed, err)
	case errors.Is(err, engine.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, engine.ErrCorrupt):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, engine.ErrLocked):
		return fmt.Errorf("%w: %w", ErrLocked, err)
	case errors.Is(err, rwgate.ErrTimedOut):
		return fmt.Errorf("%w: %w", ErrTimedOut, err)
	case errors.Is(err, distance.ErrEmptyVector), errors.Is(err, distance.ErrNonFinite):
		return fmt.Errorf("%w: %w", ErrInvalidVector, err)
	case errors.Is(err, engine.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", ErrEmptyID, err)
	case errors.Is(err, kdtree.ErrDimensionMismatch):
		return &ErrDimensionMismatch{cause: err}
	}
	return err
}
