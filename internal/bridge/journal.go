package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/calvinalkan/wordbank/internal/fs"
	"github.com/calvinalkan/wordbank/internal/logger"
)

// Journal defaults.
const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultMaxBytes     = 1 << 20
	DefaultLockTimeout  = 5 * time.Second

	JournalFile = "events.jsonl"
	journalLock = "events.lock"
)

// Journal is a [Transport] backed by an append-only JSON-lines file in a
// shared directory.
//
// Publishers append one line per message under an exclusive flock. Readers
// tail the file from the offset they saw at start, woken by filesystem
// notifications where the platform has them and by a polling ticker
// otherwise. Once the file would grow past MaxBytes the next publisher
// replaces it with an empty one; a reader that sees a new inode or a shorter
// file restarts at offset zero.
type Journal struct {
	dir          string
	path         string
	lockPath     string
	fs           fs.FS
	locker       *fs.Locker
	log          *logger.Logger
	pollInterval time.Duration
	maxBytes     int64
	lockTimeout  time.Duration

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// JournalOptions configures a [Journal].
type JournalOptions struct {
	FS           fs.FS
	Logger       *logger.Logger
	PollInterval time.Duration
	MaxBytes     int64
	LockTimeout  time.Duration
}

// NewJournal returns a journal transport living in dir. The directory is
// created if missing.
func NewJournal(dir string, opts JournalOptions) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("journal dir is required")
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	j := &Journal{
		dir:          dir,
		path:         filepath.Join(dir, JournalFile),
		lockPath:     filepath.Join(dir, journalLock),
		fs:           fsys,
		locker:       fs.NewLocker(fsys),
		log:          log.With("transport", "journal"),
		pollInterval: orDefault(opts.PollInterval, DefaultPollInterval),
		maxBytes:     orDefault(opts.MaxBytes, DefaultMaxBytes),
		lockTimeout:  orDefault(opts.LockTimeout, DefaultLockTimeout),
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}

	return j, nil
}

func orDefault[T int64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}

	return v
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Publish(_ context.Context, msg Message) error {
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	line = append(line, '\n')

	lock, err := j.locker.LockWithTimeout(j.lockPath, j.lockTimeout)
	if err != nil {
		return fmt.Errorf("journal lock: %w", err)
	}

	defer func() { _ = lock.Close() }()

	if err := j.rotateIfFull(int64(len(line))); err != nil {
		return err
	}

	f, err := j.fs.OpenFile(j.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}

	_, writeErr := f.Write(line)
	closeErr := f.Close()

	if err := errors.Join(writeErr, closeErr); err != nil {
		return fmt.Errorf("appending to journal: %w", err)
	}

	return nil
}

func (j *Journal) rotateIfFull(incoming int64) error {
	info, err := j.fs.Stat(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}

	if info.Size() == 0 || info.Size()+incoming <= j.maxBytes {
		return nil
	}

	if err := j.fs.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("rotating journal: %w", err)
	}

	j.log.Debug("journal rotated", "size", info.Size(), "max", j.maxBytes)

	return nil
}

func (j *Journal) StartForwarder(ctx context.Context, onMsg func(Message)) error {
	if onMsg == nil {
		return errors.New("onMsg callback required")
	}

	w, err := newWaiter(j.dir)
	if err != nil {
		j.log.Debug("file notifications unavailable, polling", "error", err)

		w = sleepWaiter{}
	}

	t := &tail{j: j, onMsg: onMsg}
	if err := t.seekEnd(); err != nil {
		_ = w.Close()

		return err
	}

	ctx, cancel := context.WithCancel(ctx)

	j.mu.Lock()
	j.cancels = append(j.cancels, cancel)
	j.mu.Unlock()

	j.wg.Go(func() {
		defer func() { _ = w.Close() }()

		for {
			if err := w.Wait(ctx, j.pollInterval); err != nil && ctx.Err() == nil {
				j.log.Warn("journal wait failed", "error", err)
			}

			if ctx.Err() != nil {
				return
			}

			if err := t.poll(ctx); err != nil {
				j.log.Warn("journal read failed", "error", err)
			}
		}
	})

	return nil
}

// Close stops every forwarder and waits for them to exit.
func (j *Journal) Close() error {
	j.mu.Lock()
	cancels := j.cancels
	j.cancels = nil
	j.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	j.wg.Wait()

	return nil
}

// tail tracks one reader's position in the journal.
type tail struct {
	j      *Journal
	onMsg  func(Message)
	offset int64
	inode  uint64
}

func (t *tail) seekEnd() error {
	info, err := t.j.fs.Stat(t.j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}

	t.offset = info.Size()
	t.inode = inodeOf(info)

	return nil
}

func (t *tail) poll(ctx context.Context) error {
	f, err := t.j.fs.Open(t.j.path)
	if errors.Is(err, os.ErrNotExist) {
		t.offset, t.inode = 0, 0

		return nil
	}

	if err != nil {
		return err
	}

	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if ino := inodeOf(info); ino != t.inode || info.Size() < t.offset {
		t.offset, t.inode = 0, ino
	}

	if info.Size() == t.offset {
		return nil
	}

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	// A line is complete once its newline is written.
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil
	}

	for line := range bytes.SplitSeq(data[:end], []byte("\n")) {
		if ctx.Err() != nil {
			return nil
		}

		t.offset += int64(len(line)) + 1

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			t.j.log.Warn("skipping malformed journal line", "error", err)

			continue
		}

		t.onMsg(msg)
	}

	return nil
}

func inodeOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino) //nolint:unconvert // Ino is not uint64 on every platform
	}

	return 0
}

// waiter blocks until the journal directory may have changed.
type waiter interface {
	Wait(ctx context.Context, timeout time.Duration) error
	Close() error
}

// sleepWaiter is the polling fallback.
type sleepWaiter struct{}

func (sleepWaiter) Wait(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (sleepWaiter) Close() error { return nil }
