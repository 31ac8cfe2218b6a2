// Package bridge carries fire-and-forget announcements between contexts that
// share one data directory.
//
// A context is one running process (a CLI invocation, a watch session, a
// learn session). Contexts hold no shared memory; they tell each other that
// something on disk changed and let the receiver reload it.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TargetAll addresses every context except the sender.
const TargetAll = "announce"

// Error variables for bridge operations.
var (
	ErrTransportRequired = errors.New("bridge transport is required")
	ErrReservedID        = errors.New("context id is reserved")
	ErrTargetRequired    = errors.New("announce target is required")
	ErrEventRequired     = errors.New("event name is required")
	ErrAlreadyStarted    = errors.New("bridge already started")
	ErrClosed            = errors.New("bridge is closed")
)

// Message is the envelope every transport carries.
type Message struct {
	ID      string          `json:"id"`
	Source  string          `json:"source"`
	Target  string          `json:"target"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Time    time.Time       `json:"time"`
}

// Broadcast reports whether msg addresses every context.
func (m Message) Broadcast() bool {
	return m.Target == TargetAll
}

// Decode unmarshals the payload of msg into T.
func Decode[T any](msg Message) (T, error) {
	var v T

	if len(msg.Payload) == 0 {
		return v, nil
	}

	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("decoding %s payload: %w", msg.Event, err)
	}

	return v, nil
}

// Handler receives one matching announcement. Handlers of one bridge run on
// a single goroutine in announcement order and must not block for long.
type Handler func(ctx context.Context, msg Message)

// Transport moves messages between contexts.
//
// StartForwarder must deliver messages published after it returns, in
// publish order, by calling onMsg from a single goroutine until ctx is done.
type Transport interface {
	Publish(ctx context.Context, msg Message) error
	StartForwarder(ctx context.Context, onMsg func(Message)) error
	Close() error
}
