package bridge_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/wordbank/internal/bridge"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

type collector struct {
	mu   sync.Mutex
	msgs []bridge.Message
}

func (c *collector) handle(_ context.Context, msg bridge.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.msgs = append(c.msgs, msg)
}

func (c *collector) payloads(t *testing.T) []int {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]int, 0, len(c.msgs))

	for _, m := range c.msgs {
		n, err := bridge.Decode[int](m)
		require.NoError(t, err)

		out = append(out, n)
	}

	return out
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.msgs)
}

func newJournal(t *testing.T, dir string, opts bridge.JournalOptions) *bridge.Journal {
	t.Helper()

	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}

	j, err := bridge.NewJournal(dir, opts)
	require.NoError(t, err)

	return j
}

// startBridge opens a context on the shared journal dir and starts delivery.
func startBridge(t *testing.T, dir, id string, opts bridge.JournalOptions) *bridge.Bridge {
	t.Helper()

	b, err := bridge.New(newJournal(t, dir, opts), bridge.Options{ID: id})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	t.Cleanup(func() {
		cancel()
		_ = b.Close()
	})

	require.NoError(t, b.Start(ctx))

	return b
}

func TestBridge_BroadcastReachesPeersInOrderButNotSelf(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := startBridge(t, dir, "main", bridge.JournalOptions{})
	b := startBridge(t, dir, "selector", bridge.JournalOptions{})
	c := startBridge(t, dir, "learn", bridge.JournalOptions{})

	var gotA, gotB, gotC collector

	a.Subscribe("packages-changed", gotA.handle)
	b.Subscribe("packages-changed", gotB.handle)
	c.Subscribe("packages-changed", gotC.handle)

	want := make([]int, 20)
	for i := range want {
		want[i] = i
		require.NoError(t, a.AnnounceToAll(t.Context(), "packages-changed", i))
	}

	require.Eventually(t, func() bool { return gotB.len() == len(want) && gotC.len() == len(want) }, waitFor, tick)

	assert.Equal(t, want, gotB.payloads(t))
	assert.Equal(t, want, gotC.payloads(t))

	// Give the sender's own reader time to see the journal too.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, gotA.len(), "sender must not receive its own announcements")

	gotB.mu.Lock()
	first := gotB.msgs[0]
	gotB.mu.Unlock()

	assert.Equal(t, "main", first.Source)
	assert.Equal(t, bridge.TargetAll, first.Target)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Time.IsZero())
}

func TestBridge_TargetedAnnouncementReachesOnlyTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := startBridge(t, dir, "main", bridge.JournalOptions{})
	b := startBridge(t, dir, "selector", bridge.JournalOptions{})
	c := startBridge(t, dir, "learn", bridge.JournalOptions{})

	var gotB, gotC collector

	b.Subscribe("focus", gotB.handle)
	c.Subscribe("focus", gotC.handle)

	require.NoError(t, a.AnnounceTo(t.Context(), "learn", "focus", 7))
	// Marker broadcast, so B has demonstrably read past the targeted message.
	require.NoError(t, a.AnnounceToAll(t.Context(), "focus", 8))

	require.Eventually(t, func() bool { return gotB.len() == 1 && gotC.len() == 2 }, waitFor, tick)

	assert.Equal(t, []int{8}, gotB.payloads(t))
	assert.Equal(t, []int{7, 8}, gotC.payloads(t))
}

func TestBridge_OnlyMatchingEventsAndLiveSubscriptions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := startBridge(t, dir, "a", bridge.JournalOptions{})
	b := startBridge(t, dir, "b", bridge.JournalOptions{})

	var changes, settings collector

	unsubscribe := b.Subscribe("packages-changed", changes.handle)
	b.Subscribe("settings-changed", settings.handle)

	require.NoError(t, a.AnnounceToAll(t.Context(), "packages-changed", 1))
	require.Eventually(t, func() bool { return changes.len() == 1 }, waitFor, tick)

	unsubscribe()
	unsubscribe()

	require.NoError(t, a.AnnounceToAll(t.Context(), "packages-changed", 2))
	require.NoError(t, a.AnnounceToAll(t.Context(), "settings-changed", 3))
	require.Eventually(t, func() bool { return settings.len() == 1 }, waitFor, tick)

	assert.Equal(t, []int{1}, changes.payloads(t))
	assert.Equal(t, []int{3}, settings.payloads(t))
}

func TestBridge_MessagesBeforeStartAreNotDelivered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := startBridge(t, dir, "a", bridge.JournalOptions{})

	require.NoError(t, a.AnnounceToAll(t.Context(), "ev", 1))

	late := startBridge(t, dir, "late", bridge.JournalOptions{})

	var got collector

	late.Subscribe("ev", got.handle)

	require.NoError(t, a.AnnounceToAll(t.Context(), "ev", 2))
	require.Eventually(t, func() bool { return got.len() >= 1 }, waitFor, tick)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []int{2}, got.payloads(t))
}

func TestBridge_RotatedJournalKeepsDelivering(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	opts := bridge.JournalOptions{MaxBytes: 400}

	a := startBridge(t, dir, "a", opts)
	b := startBridge(t, dir, "b", opts)

	var got collector

	b.Subscribe("ev", got.handle)

	want := make([]int, 12)
	for i := range want {
		want[i] = i
		require.NoError(t, a.AnnounceToAll(t.Context(), "ev", i))
		require.Eventually(t, func() bool { return got.len() == i+1 }, waitFor, tick, "message %d", i)
	}

	assert.Equal(t, want, got.payloads(t))

	info, err := os.Stat(filepath.Join(dir, bridge.JournalFile))
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(400))
}

func TestJournal_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	a := startBridge(t, dir, "a", bridge.JournalOptions{})
	b := startBridge(t, dir, "b", bridge.JournalOptions{})

	var got collector

	b.Subscribe("ev", got.handle)

	f, err := os.OpenFile(filepath.Join(dir, bridge.JournalFile), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, a.AnnounceToAll(t.Context(), "ev", 5))
	require.Eventually(t, func() bool { return got.len() == 1 }, waitFor, tick)

	assert.Equal(t, []int{5}, got.payloads(t))
}

func TestBridge_Validation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := bridge.New(nil, bridge.Options{})
	require.ErrorIs(t, err, bridge.ErrTransportRequired)

	_, err = bridge.New(newJournal(t, dir, bridge.JournalOptions{}), bridge.Options{ID: bridge.TargetAll})
	require.ErrorIs(t, err, bridge.ErrReservedID)

	b, err := bridge.New(newJournal(t, dir, bridge.JournalOptions{}), bridge.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID())

	require.ErrorIs(t, b.AnnounceTo(t.Context(), " ", "ev", nil), bridge.ErrTargetRequired)
	require.ErrorIs(t, b.AnnounceToAll(t.Context(), "", nil), bridge.ErrEventRequired)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, b.Start(ctx))
	require.ErrorIs(t, b.Start(ctx), bridge.ErrAlreadyStarted)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.ErrorIs(t, b.AnnounceToAll(t.Context(), "ev", nil), bridge.ErrClosed)
}

func TestBridge_RunReturnsWhenContextDone(t *testing.T) {
	t.Parallel()

	b, err := bridge.New(newJournal(t, t.TempDir(), bridge.JournalOptions{}), bridge.Options{ID: "r"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- b.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}

	require.NoError(t, b.Close())
}

func TestDecode(t *testing.T) {
	t.Parallel()

	type change struct {
		UUID string `json:"uuid"`
		Op   string `json:"op"`
	}

	got, err := bridge.Decode[change](bridge.Message{Event: "ev", Payload: []byte(`{"uuid":"u","op":"add"}`)})
	require.NoError(t, err)
	assert.Equal(t, change{UUID: "u", Op: "add"}, got)

	empty, err := bridge.Decode[change](bridge.Message{})
	require.NoError(t, err)
	assert.Zero(t, empty)

	_, err = bridge.Decode[change](bridge.Message{Event: "ev", Payload: []byte(`[`)})
	require.Error(t, err)
}

func TestRedis_BroadcastAndTarget(t *testing.T) {
	t.Parallel()

	// A real server can be used instead of the in-process one.
	addr := os.Getenv("WORDBANK_TEST_REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}

	prefix := "wordbank-test-" + strconv.FormatInt(time.Now().UnixNano(), 36)

	open := func(id string) *bridge.Bridge {
		tr, err := bridge.NewRedis(t.Context(), bridge.RedisOptions{Addr: addr, Prefix: prefix})
		require.NoError(t, err)

		b, err := bridge.New(tr, bridge.Options{ID: id})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())

		t.Cleanup(func() {
			cancel()
			_ = b.Close()
		})

		require.NoError(t, b.Start(ctx))

		return b
	}

	a, b, c := open("a"), open("b"), open("c")

	var gotA, gotB, gotC collector

	a.Subscribe("ev", gotA.handle)
	b.Subscribe("ev", gotB.handle)
	c.Subscribe("ev", gotC.handle)

	require.NoError(t, a.AnnounceToAll(t.Context(), "ev", 1))
	require.NoError(t, a.AnnounceTo(t.Context(), "c", "ev", 2))
	require.NoError(t, a.AnnounceToAll(t.Context(), "ev", 3))

	require.Eventually(t, func() bool { return gotB.len() == 2 && gotC.len() == 3 }, waitFor, tick)

	assert.Equal(t, []int{1, 3}, gotB.payloads(t))
	assert.Equal(t, []int{1, 2, 3}, gotC.payloads(t))
	assert.Zero(t, gotA.len())
}

func TestRedis_ConnectFailures(t *testing.T) {
	t.Parallel()

	_, err := bridge.NewRedis(t.Context(), bridge.RedisOptions{})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err = bridge.NewRedis(t.Context(), bridge.RedisOptions{Addr: addr})
	require.ErrorContains(t, err, "redis ping")
}

func TestRedis_ChannelUsesPrefix(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	tr, err := bridge.NewRedis(t.Context(), bridge.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)

	t.Cleanup(func() { _ = tr.Close() })

	assert.Equal(t, bridge.DefaultRedisPrefix+":events", tr.Channel())
}
