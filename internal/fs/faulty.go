package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// Op names accepted by [Faulty.Fail].
const (
	OpOpen        = "open"
	OpOpenFile    = "openfile"
	OpReadFile    = "readfile"
	OpWriteAtomic = "writeatomic"
	OpMkdirAll    = "mkdirall"
	OpStat        = "stat"
	OpExists      = "exists"
	OpRemove      = "remove"
	OpRename      = "rename"
)

// InjectedError marks an error as intentionally injected by [Faulty].
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Op   string
	Path string
	Err  error
}

func (e *InjectedError) Error() string {
	return "injected " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails operations matching registered rules.
//
// A rule matches an operation name and a path suffix; an empty suffix matches
// every path. Rules stay active until [Faulty.Clear] is called.
type Faulty struct {
	fs FS

	mu    sync.Mutex
	rules []faultRule
}

type faultRule struct {
	op     string
	suffix string
	err    error
}

// NewFaulty wraps fs. Panics if fs is nil.
func NewFaulty(fs FS) *Faulty {
	if fs == nil {
		panic("fs is nil")
	}

	return &Faulty{fs: fs}
}

// Fail makes every op on a path ending in suffix return err.
// If err is nil, [os.ErrPermission] is used.
func (f *Faulty) Fail(op, suffix string, err error) {
	if err == nil {
		err = os.ErrPermission
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = append(f.rules, faultRule{op: op, suffix: suffix, err: err})
}

// Clear removes all rules.
func (f *Faulty) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = nil
}

func (f *Faulty) check(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rules {
		if r.op == op && strings.HasSuffix(path, r.suffix) {
			return &InjectedError{Op: op, Path: path, Err: r.err}
		}
	}

	return nil
}

func (f *Faulty) Open(path string) (File, error) {
	if err := f.check(OpOpen, path); err != nil {
		return nil, err
	}

	return f.fs.Open(path)
}

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.check(OpOpenFile, path); err != nil {
		return nil, err
	}

	return f.fs.OpenFile(path, flag, perm)
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.fs.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte) error {
	if err := f.check(OpWriteAtomic, path); err != nil {
		return err
	}

	return f.fs.WriteFileAtomic(path, data)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat, path); err != nil {
		return nil, err
	}

	return f.fs.Stat(path)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.check(OpExists, path); err != nil {
		return false, err
	}

	return f.fs.Exists(path)
}

func (f *Faulty) Remove(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.fs.Remove(path)
}

func (f *Faulty) Rename(oldpath, newpath string) error {
	if err := f.check(OpRename, oldpath); err != nil {
		return err
	}

	return f.fs.Rename(oldpath, newpath)
}

// Compile-time interface check.
var _ FS = (*Faulty)(nil)
