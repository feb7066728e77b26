package engine

import (
	"errors"
	"fmt"

	"github.com/hupe1980/lsmvec/internal/segment"
	"github.com/hupe1980/lsmvec/internal/wal"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed engine.
	ErrClosed = errors.New("engine closed")

	// ErrInvalidArgument is returned when an argument is invalid (e.g. an empty id).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCorrupt is returned when a log line or segment file fails validation.
	ErrCorrupt = errors.New("data corruption detected")

	// ErrLocked is returned when another engine holds the directory lock.
	ErrLocked = errors.New("directory locked by another process")

	// ErrFlushFailed wraps a flush or compaction failure that followed a
	// successful log append. The mutation itself is durable.
	ErrFlushFailed = errors.New("flush failed after durable write")
)

// wrapCorrupt tags decoding failures from the log and segment layers with ErrCorrupt.
func wrapCorrupt(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wal.ErrCorrupt) || errors.Is(err, segment.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return err
}
