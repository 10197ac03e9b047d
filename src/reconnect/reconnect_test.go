package reconnect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = time.Millisecond

var errRefused = errors.New("connection refused")

// fakeConn blocks reads until dropped or closed.
type fakeConn struct {
	inbox   chan []byte
	dropped chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written []any
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 8), dropped: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case raw := <-c.inbox:
		return raw, nil
	case <-c.dropped:
		return nil, errors.New("connection reset")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.drop()
	return nil
}

func (c *fakeConn) drop() { c.once.Do(func() { close(c.dropped) }) }

// scriptDialer replays results in order; once exhausted every dial fails.
type scriptDialer struct {
	mu     sync.Mutex
	script []*fakeConn // nil entries fail
	dials  int
	at     []time.Time
}

func (d *scriptDialer) Dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.at = append(d.at, time.Now())
	if len(d.script) == 0 {
		return nil, errRefused
	}
	next := d.script[0]
	d.script = d.script[1:]
	if next == nil {
		return nil, errRefused
	}
	return next, nil
}

func (d *scriptDialer) times() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.at...)
}

func (d *scriptDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func newTestReconnector(d Dialer, log *stateLog) *Reconnector {
	opts := Options{Delay: time.Millisecond, Logger: zerolog.Nop()}
	if log != nil {
		opts.OnState = log.record
	}
	return New(d, opts)
}

func waitStopped(t *testing.T, r *Reconnector) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("reconnector did not stop")
	}
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	const delay = 20 * time.Millisecond
	d := &scriptDialer{}
	r := New(d, Options{Delay: delay, Logger: zerolog.Nop()})

	require.True(t, r.Connect(context.Background()))
	waitStopped(t, r)

	assert.Equal(t, Failed, r.State())
	assert.Equal(t, 1+DefaultMaxRetries, d.count(), "initial dial plus five retries")
	assert.Contains(t, r.Status(), "reconnect failed")

	at := d.times()
	for i := 1; i < len(at); i++ {
		assert.GreaterOrEqual(t, at[i].Sub(at[i-1]), delay, "retry %d came early", i)
	}

	time.Sleep(2 * delay)
	assert.Equal(t, 1+DefaultMaxRetries, d.count(), "no dial after failing")
}

func TestSuccessResetsAttempts(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	d := &scriptDialer{script: []*fakeConn{nil, nil, nil, first, nil, nil, nil, nil, second}}
	r := newTestReconnector(d, nil)
	t.Cleanup(r.Disconnect)

	r.Connect(context.Background())
	require.Eventually(t, func() bool { return r.State() == Connected }, waitFor, tick)
	assert.Equal(t, 4, d.count())

	// Three retries were spent before the first success. Without a reset
	// the four failures after the drop would exhaust the budget.
	first.drop()
	require.Eventually(t, func() bool { return d.count() == 9 && r.State() == Connected }, waitFor, tick)
}

func TestIntentionalDisconnectDoesNotRetry(t *testing.T) {
	conn := newFakeConn()
	d := &scriptDialer{script: []*fakeConn{conn}}
	log := &stateLog{}
	r := newTestReconnector(d, log)

	r.Connect(context.Background())
	require.Eventually(t, func() bool { return r.State() == Connected }, waitFor, tick)

	r.Disconnect()
	waitStopped(t, r)

	assert.Equal(t, Disconnected, r.State())
	assert.Equal(t, 1, d.count())
	assert.Equal(t, []State{Connecting, Connected, Disconnected}, log.all())
}

func TestDisconnectDuringBackoffStopsRetries(t *testing.T) {
	d := &scriptDialer{}
	r := New(d, Options{Delay: time.Hour, Logger: zerolog.Nop()})

	r.Connect(context.Background())
	require.Eventually(t, func() bool { return d.count() == 1 }, waitFor, tick)

	r.Disconnect()
	waitStopped(t, r)
	assert.Equal(t, 1, d.count())
	assert.Equal(t, Disconnected, r.State())
}

func TestConnectIsNoOpWhileActive(t *testing.T) {
	conn := newFakeConn()
	d := &scriptDialer{script: []*fakeConn{conn}}
	r := newTestReconnector(d, nil)
	t.Cleanup(r.Disconnect)

	require.True(t, r.Connect(context.Background()))
	assert.False(t, r.Connect(context.Background()), "connecting")
	require.Eventually(t, func() bool { return r.State() == Connected }, waitFor, tick)
	assert.False(t, r.Connect(context.Background()), "connected")
	assert.Equal(t, 1, d.count())
}

func TestConnectAfterFailureStartsOver(t *testing.T) {
	d := &scriptDialer{}
	r := newTestReconnector(d, nil)
	r.Connect(context.Background())
	waitStopped(t, r)
	require.Equal(t, Failed, r.State())

	conn := newFakeConn()
	d.mu.Lock()
	d.script = []*fakeConn{conn}
	d.mu.Unlock()

	require.True(t, r.Connect(context.Background()))
	require.Eventually(t, func() bool { return r.State() == Connected }, waitFor, tick)
	r.Disconnect()
}

func TestMessagesAndSend(t *testing.T) {
	conn := newFakeConn()
	d := &scriptDialer{script: []*fakeConn{conn}}
	received := make(chan string, 1)
	r := New(d, Options{
		Delay:     time.Millisecond,
		Logger:    zerolog.Nop(),
		OnMessage: func(raw []byte) { received <- string(raw) },
	})
	t.Cleanup(r.Disconnect)

	assert.ErrorIs(t, r.Send("early"), ErrNotConnected)

	r.Connect(context.Background())
	require.Eventually(t, func() bool { return r.State() == Connected }, waitFor, tick)

	conn.inbox <- []byte(`{"event":"connected"}`)
	select {
	case got := <-received:
		assert.Equal(t, `{"event":"connected"}`, got)
	case <-time.After(waitFor):
		t.Fatal("message not forwarded")
	}

	require.NoError(t, r.Send(map[string]string{"event": "client_message"}))
	conn.mu.Lock()
	assert.Len(t, conn.written, 1)
	conn.mu.Unlock()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "failed", Failed.String())
}

func TestWSDialerEndpoint(t *testing.T) {
	d := &WSDialer{URL: "http://localhost:3333/ws", Token: "abc"}
	got, err := d.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:3333/ws?token=abc", got)

	d = &WSDialer{URL: "https://relay.example.com/ws"}
	got, err = d.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example.com/ws", got)

	_, err = (&WSDialer{URL: "ftp://x"}).Endpoint()
	assert.Error(t, err)
}
