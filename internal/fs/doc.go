// Package fs provides the filesystem abstraction used by the storage engine.
//
// The package defines two interfaces:
//
//   - [File]: an open file with read/write/sync capabilities
//   - [FileSystem]: filesystem operations (open, remove, rename, etc.)
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility that injects write, sync, close and rename failures
//
// Tests inject [FaultyFS] to simulate failures:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("wal.log", fs.Fault{FailAfterBytes: 0})
//	// inject ffs into the engine under test
//
// Filesystem calls take no context.Context: local syscalls are not
// interruptible and the store targets a local directory only.
package fs
