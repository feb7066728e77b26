//go:build !unix

package engine

// Directory locking is advisory and only implemented on unix platforms.
type dirLock struct{}

func lockDir(string) (*dirLock, error) { return &dirLock{}, nil }

func (*dirLock) release() error { return nil }
