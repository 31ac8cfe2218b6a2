//go:build linux

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_MODIFY | unix.IN_CREATE | unix.IN_MOVED_TO | unix.IN_CLOSE_WRITE | unix.IN_DELETE

// inotifyWaiter wakes on changes inside the journal directory. The timeout
// still applies so a missed event costs at most one poll interval.
type inotifyWaiter struct {
	fd  int
	buf []byte
}

func newWaiter(dir string) (waiter, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}

	if _, err := unix.InotifyAddWatch(fd, dir, watchMask); err != nil {
		_ = unix.Close(fd)

		return nil, fmt.Errorf("inotify watch %s: %w", dir, err)
	}

	return &inotifyWaiter{fd: fd, buf: make([]byte, 4096)}, nil
}

// Wait returns after an event, after timeout, or once ctx is done. Poll is
// capped so cancellation is noticed promptly.
func (w *inotifyWaiter) Wait(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		ms := int(min(remaining, 50*time.Millisecond) / time.Millisecond)

		fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}

		n, err := unix.Poll(fds, max(ms, 1))
		if errors.Is(err, unix.EINTR) {
			continue
		}

		if err != nil {
			return fmt.Errorf("inotify poll: %w", err)
		}

		if n > 0 {
			w.drain()

			return nil
		}
	}
}

func (w *inotifyWaiter) drain() {
	for {
		n, err := unix.Read(w.fd, w.buf)
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *inotifyWaiter) Close() error {
	return unix.Close(w.fd)
}
