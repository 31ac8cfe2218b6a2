// Package docstore reads and writes whole JSON documents inside one data
// directory.
//
// A document is addressed by a local name relative to the data directory
// ("data.json", "packages/<uuid>.json"). Every write replaces the file
// atomically, so lock-free readers see either the old or the new document.
// Writers serialize on an advisory flock kept in <dir>/.locks, which makes
// [Update] a single logical read-modify-write across processes.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/calvinalkan/wordbank/internal/fs"
)

// DefaultLockTimeout bounds how long a writer waits for another context.
const DefaultLockTimeout = 5 * time.Second

const (
	locksDirName = ".locks"
	dirPerms     = 0o755
)

// Store is a JSON document store rooted at one directory.
type Store struct {
	dir         string
	fs          fs.FS
	locker      *fs.Locker
	lockTimeout time.Duration
}

// Options configures a [Store].
type Options struct {
	// FS is the filesystem to use. Defaults to [fs.NewReal].
	FS fs.FS

	// LockTimeout bounds lock acquisition for writes.
	// Defaults to [DefaultLockTimeout].
	LockTimeout time.Duration
}

// New returns a Store rooted at dir. The directory itself is created lazily
// by [Store.Mkdir] or the first write.
func New(dir string, opts Options) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrDirRequired
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	return &Store{
		dir:         filepath.Clean(dir),
		fs:          fsys,
		locker:      fs.NewLocker(fsys),
		lockTimeout: timeout,
	}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path resolves a document name to its absolute path.
func (s *Store) Path(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return filepath.Join(s.dir, name), nil
}

// WithLock runs fn while holding the exclusive write lock for name.
func (s *Store) WithLock(name string, fn func() error) error {
	if _, err := s.Path(name); err != nil {
		return err
	}

	lockName := strings.ReplaceAll(filepath.ToSlash(name), "/", "_") + ".lock"
	lockPath := filepath.Join(s.dir, locksDirName, lockName)

	lock, err := s.locker.LockWithTimeout(lockPath, s.lockTimeout)
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return fmt.Errorf("%w %s: %w", ErrLockTimeout, name, err)
		}

		return fmt.Errorf("%w: acquiring lock for %s: %w", ErrIO, name, err)
	}

	defer func() { _ = lock.Close() }()

	return fn()
}

// Load reads and decodes the document name.
//
// Returns an error wrapping [ErrNotFound] if the file is missing, [ErrParse]
// if it cannot be decoded into T, and [ErrIO] for any other read failure.
func Load[T any](s *Store, name string) (T, error) {
	var doc T

	data, err := s.ReadRaw(name)
	if err != nil {
		return doc, err
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w %s: %w", ErrParse, name, err)
	}

	return doc, nil
}

// Save encodes doc and replaces the document name with it.
// Failures wrap [ErrIO] and are not retried.
func Save[T any](s *Store, name string, doc T) error {
	return s.WithLock(name, func() error {
		return write(s, name, doc)
	})
}

// SaveLocked is [Save] for callers already inside [Store.WithLock] for name.
func SaveLocked[T any](s *Store, name string, doc T) error {
	return write(s, name, doc)
}

// Update loads name, applies fn and saves the result while holding the
// document's write lock. If fn returns an error nothing is written and the
// error is returned unchanged.
func Update[T any](s *Store, name string, fn func(doc T) (T, error)) error {
	return s.WithLock(name, func() error {
		doc, err := Load[T](s, name)
		if err != nil {
			return err
		}

		next, err := fn(doc)
		if err != nil {
			return err
		}

		return write(s, name, next)
	})
}

func write[T any](s *Store, name string, doc T) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	data = append(data, '\n')

	if err := s.fs.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return fmt.Errorf("%w: creating parent of %s: %w", ErrIO, name, err)
	}

	if err := s.fs.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrIO, name, err)
	}

	return nil
}

// ReadRaw returns the bytes of document name.
func (s *Store) ReadRaw(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		return nil, fmt.Errorf("%w: reading %s: %w", ErrIO, name, err)
	}

	return data, nil
}

// Exists reports whether name exists in the data directory.
func (s *Store) Exists(name string) (bool, error) {
	path, err := s.Path(name)
	if err != nil {
		return false, err
	}

	ok, err := s.fs.Exists(path)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", ErrIO, name, err)
	}

	return ok, nil
}

// Mkdir creates the directory name (and the data directory) if missing.
// An empty name creates only the data directory.
func (s *Store) Mkdir(name string) error {
	path := s.dir

	if name != "" {
		var err error

		path, err = s.Path(name)
		if err != nil {
			return err
		}
	}

	if err := s.fs.MkdirAll(path, dirPerms); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", ErrIO, path, err)
	}

	return nil
}

// Copy copies the bytes of src to dst, replacing dst.
func (s *Store) Copy(src, dst string) error {
	data, err := s.ReadRaw(src)
	if err != nil {
		return err
	}

	dstPath, err := s.Path(dst)
	if err != nil {
		return err
	}

	if err := s.fs.WriteFileAtomic(dstPath, data); err != nil {
		return fmt.Errorf("%w: copying %s to %s: %w", ErrIO, src, dst, err)
	}

	return nil
}

// Remove deletes name. Removing a missing document is not an error.
func (s *Store) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %w", ErrIO, name, err)
	}

	return nil
}
