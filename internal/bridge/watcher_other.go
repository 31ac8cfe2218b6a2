//go:build !linux

package bridge

import "errors"

func newWaiter(string) (waiter, error) {
	return nil, errors.New("file notifications not supported on this platform")
}
