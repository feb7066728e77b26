package wal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/lsmvec/codec"
	"github.com/hupe1980/lsmvec/internal/fs"
	"github.com/hupe1980/lsmvec/model"
)

// Durability controls the durability guarantees of the WAL.
type Durability int

const (
	// DurabilitySync calls fsync after every append. Slow but safe.
	DurabilitySync Durability = iota
	// DurabilityAsync relies on the OS page cache. Fast but risky.
	DurabilityAsync
)

func (d Durability) String() string {
	switch d {
	case DurabilitySync:
		return "sync"
	case DurabilityAsync:
		return "async"
	default:
		return fmt.Sprintf("Durability(%d)", int(d))
	}
}

var (
	// ErrCorrupt is returned by Replay for a line that cannot be decoded.
	ErrCorrupt = errors.New("wal: corrupt entry")
	// ErrClosed is returned when operating on a closed WAL.
	ErrClosed = errors.New("wal: closed")
	// ErrBroken is returned after a failed write left the log in an unknown state.
	ErrBroken = errors.New("wal: broken by earlier write failure")
)

// Entry is one logged mutation.
type Entry struct {
	Op       model.Op       `json:"op"`
	ID       string         `json:"id"`
	Vector   []float64      `json:"vector,omitempty"`
	Metadata model.Metadata `json:"metadata,omitempty"`
}

// PutEntry returns the entry logging rec.
func PutEntry(rec model.Record) Entry {
	return Entry{Op: model.OpPut, ID: rec.ID, Vector: rec.Vector, Metadata: rec.Metadata}
}

// DeleteEntry returns the entry logging the removal of id.
func DeleteEntry(id string) Entry {
	return Entry{Op: model.OpDelete, ID: id}
}

// Record converts a put entry back into a record.
func (e Entry) Record() model.Record {
	return model.Record{ID: e.ID, Vector: e.Vector, Metadata: e.Metadata}
}

// Options configures a WAL.
type Options struct {
	Durability Durability
	Codec      codec.Codec
}

// DefaultOptions returns sync durability with the default codec.
func DefaultOptions() Options {
	return Options{Durability: DurabilitySync, Codec: codec.Default}
}

// WAL manages the write-ahead log file.
type WAL struct {
	mu     sync.Mutex
	fs     fs.FileSystem
	file   fs.File
	path   string
	opts   Options
	size   int64
	closed bool
	broken error
}

// Open opens or creates a WAL at the given path.
func Open(fsys fs.FileSystem, path string, opts Options) (*WAL, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	w := &WAL{fs: fsys, path: path, opts: opts}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WAL) openFile() error {
	f, err := w.fs.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.file = f
	w.size = stat.Size()
	return nil
}

// Path returns the log file path.
func (w *WAL) Path() string { return w.path }

// Size returns the current log size in bytes.
func (w *WAL) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *WAL) encode(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	for i := range entries {
		if !entries[i].Op.Valid() {
			return nil, fmt.Errorf("wal: invalid op %q", entries[i].Op)
		}
		line, err := w.opts.Codec.Marshal(&entries[i])
		if err != nil {
			return nil, fmt.Errorf("wal: encode %s: %w", entries[i].ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Append writes all entries with a single write call. With DurabilitySync the
// log is fsynced before Append returns.
func (w *WAL) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	data, err := w.encode(entries)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.broken != nil {
		return fmt.Errorf("%w: %w", ErrBroken, w.broken)
	}

	n, err := w.file.Write(data)
	w.size += int64(n)
	if err != nil {
		if n > 0 {
			w.broken = err
		}
		return fmt.Errorf("wal: append: %w", err)
	}
	if w.opts.Durability == DurabilitySync {
		if err := w.file.Sync(); err != nil {
			w.broken = err
			return fmt.Errorf("wal: sync: %w", err)
		}
	}
	return nil
}

// Sync flushes the log to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.file.Sync()
}

// Replay decodes every line in order and calls fn for each entry.
// A malformed line stops replay with an error wrapping ErrCorrupt.
func (w *WAL) Replay(fn func(Entry) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	f, err := w.fs.OpenFile(w.path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if derr := w.decodeLine(line, lineNo, fn); derr != nil {
				return derr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (w *WAL) decodeLine(line []byte, lineNo int, fn func(Entry) error) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	var e Entry
	if err := w.opts.Codec.Unmarshal(line, &e); err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrCorrupt, lineNo, err)
	}
	if !e.Op.Valid() {
		return fmt.Errorf("%w: line %d: unknown op %q", ErrCorrupt, lineNo, e.Op)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: line %d: empty id", ErrCorrupt, lineNo)
	}
	return fn(e)
}

// Checkpoint atomically replaces the log with one containing only entries.
// On failure the previous log is left in place.
func (w *WAL) Checkpoint(entries ...Entry) error {
	data, err := w.encode(entries)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if err := fs.WriteFileAtomic(w.fs, w.path, data, 0644); err != nil {
		return fmt.Errorf("wal: checkpoint: %w", err)
	}

	// The old handle points at the replaced inode.
	_ = w.file.Close()
	if err := w.openFile(); err != nil {
		w.broken = err
		return fmt.Errorf("wal: reopen after checkpoint: %w", err)
	}
	w.broken = nil
	return nil
}

// Close syncs and closes the log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.file == nil {
		return nil
	}
	var serr error
	if w.broken == nil {
		serr = w.file.Sync()
	}
	cerr := w.file.Close()
	return errors.Join(serr, cerr)
}
