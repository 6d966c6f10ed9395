package binding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockTimeout       = 5 * time.Second
	lockRetryInterval = 50 * time.Millisecond
	fileNamePrefix    = "oauth2_"
	fileNameSuffix    = ".redirect_uri.txt"
)

// FileStore keeps one file per client id in a cache directory. Writes go
// through a temporary file and a rename while holding an exclusive lock.
type FileStore struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFileStore creates the directory if needed. A zero ttl keeps bindings
// forever; otherwise entries older than ttl read as unbound.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("binding: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Put implements Durable.
func (s *FileStore) Put(ctx context.Context, clientID, uri string) error {
	if !clientIDPattern.MatchString(clientID) {
		return fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}
	path := s.path(clientID)

	return withLock(ctx, path, false, func() error {
		tmp, err := os.CreateTemp(s.dir, ".binding-*")
		if err != nil {
			return err
		}
		tmpName := tmp.Name()
		defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

		if _, err := tmp.WriteString(uri); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmpName, path)
	})
}

// Get implements Durable.
func (s *FileStore) Get(ctx context.Context, clientID string) (string, error) {
	if !clientIDPattern.MatchString(clientID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidClientID, clientID)
	}
	path := s.path(clientID)

	var uri string
	err := withLock(ctx, path, true, func() error {
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.ttl > 0 && s.now().Sub(info.ModTime()) > s.ttl {
			return nil
		}
		data, err := os.ReadFile(path) //nolint:gosec // path built from a validated client id
		if err != nil {
			return err
		}
		uri = strings.TrimSpace(string(data))
		return nil
	})
	return uri, err
}

func (s *FileStore) path(clientID string) string {
	return filepath.Join(s.dir, fileNamePrefix+clientID+fileNameSuffix)
}

func withLock(ctx context.Context, path string, shared bool, fn func() error) error {
	fileLock := flock.New(path + ".lock")
	defer fileLock.Unlock() //nolint:errcheck

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = fileLock.TryRLockContext(lockCtx, lockRetryInterval)
	} else {
		locked, err = fileLock.TryLockContext(lockCtx, lockRetryInterval)
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: timeout after %v", path, lockTimeout)
	}
	return fn()
}
