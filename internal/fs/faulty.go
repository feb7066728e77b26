package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailAfterBytes int64 // Fail writes after this many bytes written to one file. -1 to disable.
	FailOnSync     bool
	FailOnClose    bool
	FailOnRename   bool
	FailOnRemove   bool
	Err            error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS    FileSystem
	mu    sync.Mutex
	rules map[string]Fault // substring of file name -> fault
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{
		FS:    fsys,
		rules: make(map[string]Fault),
	}
}

// AddRule adds a fault for every file whose name contains pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all fault rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{FailAfterBytes: -1}, false
}

// OpenFile wraps every file so that rules added later still apply to it.
func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f, name: name}, nil
}

func (f *FaultyFS) Remove(name string) error {
	if fault, ok := f.match(name); ok && fault.FailOnRemove {
		return fault.err()
	}
	return f.FS.Remove(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault, ok := f.match(newpath); ok && fault.FailOnRename {
		return fault.err()
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.FS.MkdirAll(path, perm) }

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) { return f.FS.ReadDir(name) }

type faultyFile struct {
	File
	fs      *FaultyFS
	name    string
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailAfterBytes >= 0 &&
		ff.written+int64(len(p)) > fault.FailAfterBytes {
		return 0, fault.err()
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailOnSync {
		return fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if fault, ok := ff.fs.match(ff.name); ok && fault.FailOnClose {
		_ = ff.File.Close()
		return fault.err()
	}
	return ff.File.Close()
}
