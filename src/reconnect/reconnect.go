// Package reconnect keeps a client connection to the relay open, redialing
// after unintentional closes with a fixed delay and a bounded number of
// attempts.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultDelay      = 3 * time.Second
	DefaultMaxRetries = 5
)

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("not connected")

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conn is an open client connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a new connection.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Options tunes a Reconnector. Zero values take the defaults.
type Options struct {
	Delay      time.Duration
	MaxRetries int
	// OnState is called after every state change with the user facing
	// status text.
	OnState func(state State, status string)
	// OnMessage receives every inbound frame.
	OnMessage func(raw []byte)
	Logger    zerolog.Logger
}

// Reconnector owns at most one live connection at a time.
type Reconnector struct {
	dialer Dialer
	opts   Options
	logger zerolog.Logger

	mu     sync.Mutex
	state  State
	status string
	conn   Conn
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup

	writeMu sync.Mutex
}

// New creates a Reconnector in the Disconnected state.
func New(dialer Dialer, opts Options) *Reconnector {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Reconnector{
		dialer: dialer,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "reconnect").Logger(),
		state:  Disconnected,
		status: "disconnected",
	}
}

// State returns the current state.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns the user facing status text.
func (r *Reconnector) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Connect starts dialing in the background. It is a no-op returning false
// while a connection is being established or is open.
func (r *Reconnector) Connect(ctx context.Context) bool {
	r.mu.Lock()
	if r.state == Connecting || r.state == Connected {
		r.mu.Unlock()
		return false
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.gen++
	gen := r.gen
	r.cancel = cancel
	r.state, r.status = Connecting, "connecting..."
	r.wg.Add(1)
	r.mu.Unlock()

	r.notify(Connecting, "connecting...")
	go r.run(runCtx, gen)
	return true
}

// Disconnect closes the connection on purpose. No reconnect follows.
func (r *Reconnector) Disconnect() {
	r.mu.Lock()
	r.gen++
	cancel, conn := r.cancel, r.conn
	r.cancel, r.conn = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	r.set(Disconnected, "disconnected")
}

// Wait blocks until the background dialer has stopped, either after
// Disconnect or after giving up.
func (r *Reconnector) Wait() {
	r.wg.Wait()
}

// Send writes v on the open connection.
func (r *Reconnector) Send(v any) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (r *Reconnector) run(ctx context.Context, gen uint64) {
	defer r.wg.Done()

	limit := r.opts.MaxRetries
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.Delay), uint64(limit)),
		ctx,
	)

	attempt := 0
	for {
		conn, err := r.dialer.Dial(ctx)
		if err == nil {
			if !r.attach(gen, conn) {
				_ = conn.Close()
				return
			}
			b.Reset()
			attempt = 0
			err = r.pump(conn)
			r.detach(gen, conn)
		}
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn().Err(err).Msg("connection lost")

		next := b.NextBackOff()
		if next == backoff.Stop {
			r.transition(gen, Failed, "connection lost and reconnect failed, check your network and connect again")
			return
		}
		attempt++
		r.transition(gen, Connecting, fmt.Sprintf("connection lost, reconnecting (%d/%d)...", attempt, limit))

		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Reconnector) pump(conn Conn) error {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if r.opts.OnMessage != nil {
			r.opts.OnMessage(raw)
		}
	}
}

// attach installs conn if gen is still current.
func (r *Reconnector) attach(gen uint64, conn Conn) bool {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return false
	}
	r.conn = conn
	r.mu.Unlock()

	r.transition(gen, Connected, "connected")
	return true
}

func (r *Reconnector) detach(gen uint64, conn Conn) {
	r.mu.Lock()
	if gen == r.gen && r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()
	_ = conn.Close()
}

// transition applies a state change made by the run with generation gen.
// Changes from a superseded run are dropped.
func (r *Reconnector) transition(gen uint64, state State, status string) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.state, r.status = state, status
	r.mu.Unlock()
	r.notify(state, status)
}

func (r *Reconnector) set(state State, status string) {
	r.mu.Lock()
	r.state, r.status = state, status
	r.mu.Unlock()
	r.notify(state, status)
}

func (r *Reconnector) notify(state State, status string) {
	r.logger.Debug().Str("state", state.String()).Msg(status)
	if r.opts.OnState != nil {
		r.opts.OnState(state, status)
	}
}
