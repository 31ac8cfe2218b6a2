package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calvinalkan/wordbank/internal/logger"
)

// Bridge is one context's endpoint.
type Bridge struct {
	id        string
	transport Transport
	log       *logger.Logger
	now       func() time.Time

	mu      sync.RWMutex
	subs    map[string]map[uint64]Handler
	nextSub uint64
	started bool
	closed  bool
}

// Options configures a [Bridge].
type Options struct {
	// ID names this context. Empty generates a random id.
	ID string

	// Logger defaults to [logger.Nop].
	Logger *logger.Logger
}

// New returns a bridge that talks over transport.
func New(transport Transport, opts Options) (*Bridge, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = "ctx-" + uuid.NewString()[:8]
	}

	if id == TargetAll {
		return nil, fmt.Errorf("%w: %q", ErrReservedID, id)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Bridge{
		id:        id,
		transport: transport,
		log:       log.With("component", "bridge", "context", id),
		now:       time.Now,
		subs:      make(map[string]map[uint64]Handler),
	}, nil
}

// ID returns this context's id.
func (b *Bridge) ID() string {
	return b.id
}

// AnnounceToAll notifies every other live context.
func (b *Bridge) AnnounceToAll(ctx context.Context, event string, payload any) error {
	return b.announce(ctx, TargetAll, event, payload)
}

// AnnounceTo notifies the context named target only.
func (b *Bridge) AnnounceTo(ctx context.Context, target, event string, payload any) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrTargetRequired
	}

	return b.announce(ctx, target, event, payload)
}

func (b *Bridge) announce(ctx context.Context, target, event string, payload any) error {
	if event == "" {
		return ErrEventRequired
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return ErrClosed
	}

	var raw json.RawMessage

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding %s payload: %w", event, err)
		}

		raw = data
	}

	msg := Message{
		ID:      uuid.NewString(),
		Source:  b.id,
		Target:  target,
		Event:   event,
		Payload: raw,
		Time:    b.now().UTC(),
	}

	if err := b.transport.Publish(ctx, msg); err != nil {
		return fmt.Errorf("announce %s: %w", event, err)
	}

	b.log.Debug("announced", "event", event, "target", target, "id", msg.ID)

	return nil
}

// Subscribe registers handler for event until the returned function is
// called. Unsubscribing twice is a no-op.
func (b *Bridge) Subscribe(event string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSub++
	id := b.nextSub

	if b.subs[event] == nil {
		b.subs[event] = make(map[uint64]Handler)
	}

	b.subs[event][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.subs[event], id)

		if len(b.subs[event]) == 0 {
			delete(b.subs, event)
		}
	}
}

// Start begins receiving. Messages published before Start returns are not
// delivered. Delivery stops when ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return ErrClosed
	}

	if b.started {
		b.mu.Unlock()

		return ErrAlreadyStarted
	}

	b.started = true
	b.mu.Unlock()

	err := b.transport.StartForwarder(ctx, func(msg Message) {
		b.dispatch(ctx, msg)
	})
	if err != nil {
		b.mu.Lock()
		b.started = false
		b.mu.Unlock()

		return fmt.Errorf("bridge start: %w", err)
	}

	b.log.Debug("bridge started")

	return nil
}

// Run starts the bridge and blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}

func (b *Bridge) dispatch(ctx context.Context, msg Message) {
	if msg.Source == b.id {
		return
	}

	if !msg.Broadcast() && msg.Target != b.id {
		return
	}

	b.mu.RLock()
	subs := b.subs[msg.Event]
	handlers := make([]Handler, 0, len(subs))

	// Subscription order.
	for _, id := range slices.Sorted(maps.Keys(subs)) {
		handlers = append(handlers, subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, msg)
	}
}

// Close stops delivery and releases the transport.
func (b *Bridge) Close() error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return nil
	}

	b.closed = true
	b.mu.Unlock()

	return b.transport.Close()
}
