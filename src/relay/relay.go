// Package relay runs conversational turns: it persists the user's message,
// syncs it to the user's other devices, and streams the generated reply to
// every device the user has connected.
package relay

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orchestra-mcp/relay/src/generator"
	"github.com/orchestra-mcp/relay/src/hub"
	"github.com/orchestra-mcp/relay/src/store"
	"github.com/orchestra-mcp/relay/src/types"
)

// Messages sent to the origin when a turn fails. Raw errors are logged,
// never shown.
const (
	MsgContentRequired = "content is required"
	MsgTurnFailed      = "failed to process message, please retry later"
	MsgShuttingDown    = "server is shutting down"
	MsgTooManyPending  = "too many pending messages"
)

// DefaultMaxPending bounds the turns queued or running for one user.
const DefaultMaxPending = 16

// Option configures a Relay.
type Option func(*Relay)

// WithMaxPending caps the turns a user may have queued or running. Turns
// over the cap are refused. Values below 1 keep the default.
func WithMaxPending(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.maxPending = n
		}
	}
}

// Broadcaster delivers events to live connections.
type Broadcaster interface {
	Send(c *hub.Client, ev types.Outbound)
	BroadcastUser(userID string, ev types.Outbound, exclude *hub.Client)
}

// History appends to a user's chat history and returns the new message ID.
type History interface {
	Append(ctx context.Context, userID string, role store.Role, content string) (int64, error)
}

// Turn is one client_message waiting to be answered.
type Turn struct {
	User    types.User
	Content string
	// Origin is the connection that sent the message. It is nil for turns
	// started over SSE.
	Origin *hub.Client
	// Tap, when set, also receives every start, chunk, done and error
	// event of the turn. It is called from the turn worker and must not
	// block.
	Tap func(types.Outbound)
}

type queued struct {
	Turn
	done    chan struct{}
	started bool
}

// Relay serializes turns per user and runs them on the relay's own
// context, so a turn outlives the connection that started it.
type Relay struct {
	hub     Broadcaster
	history History
	gen     generator.Generator
	logger  zerolog.Logger

	maxPending int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string][]*queued
	closed bool
}

// New creates a relay. Call Close to stop in-flight generation.
func New(b Broadcaster, history History, gen generator.Generator, logger zerolog.Logger, opts ...Option) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		hub:        b,
		history:    history,
		gen:        gen,
		logger:     logger.With().Str("component", "relay").Logger(),
		maxPending: DefaultMaxPending,
		ctx:        ctx,
		cancel:     cancel,
		queues:     make(map[string][]*queued),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit queues t behind any turns already pending for the same user. A
// user already at the pending cap is refused. The returned channel is
// closed once the turn has finished or failed.
func (r *Relay) Submit(t Turn) <-chan struct{} {
	q := &queued{Turn: t, done: make(chan struct{})}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.fail(q, MsgShuttingDown, nil)
		close(q.done)
		return q.done
	}
	pending, running := r.queues[t.User.ID]
	if len(pending) >= r.maxPending {
		r.mu.Unlock()
		r.logger.Warn().Str("user_id", t.User.ID).Int("pending", len(pending)).Msg("turn refused, queue full")
		r.fail(q, MsgTooManyPending, nil)
		close(q.done)
		return q.done
	}
	r.queues[t.User.ID] = append(pending, q)
	if !running {
		r.wg.Add(1)
		go r.work(t.User.ID)
	}
	r.mu.Unlock()

	return q.done
}

// Pending returns the number of turns queued or running for userID.
func (r *Relay) Pending(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues[userID])
}

// Close cancels in-flight turns and waits for every worker to exit.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// work drains one user's queue. The head of the queue stays in place while
// it runs so Pending counts it and Submit sees the worker as busy.
func (r *Relay) work(userID string) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		q := r.queues[userID]
		if len(q) == 0 {
			delete(r.queues, userID)
			r.mu.Unlock()
			return
		}
		next := q[0]
		r.mu.Unlock()

		r.run(next)
		close(next.done)

		r.mu.Lock()
		r.queues[userID] = r.queues[userID][1:]
		r.mu.Unlock()
	}
}

func (r *Relay) run(t *queued) {
	logger := r.logger.With().Str("user_id", t.User.ID).Logger()
	if t.Origin != nil {
		logger = logger.With().Str("client_id", t.Origin.ID).Logger()
	}

	if strings.TrimSpace(t.Content) == "" {
		r.fail(t, MsgContentRequired, nil)
		return
	}

	id, err := r.history.Append(r.ctx, t.User.ID, store.RoleUser, t.Content)
	if err != nil {
		r.fail(t, MsgTurnFailed, err)
		return
	}
	r.hub.BroadcastUser(t.User.ID, types.UserSync(t.Content, id), t.Origin)

	t.started = true
	r.emit(t, types.Start())

	var reply strings.Builder
	for ch, err := range r.gen.Generate(r.ctx, t.Content) {
		if err != nil {
			r.fail(t, MsgTurnFailed, err)
			return
		}
		reply.WriteString(ch)
		r.emit(t, types.Chunk(ch))
	}

	if _, err := r.history.Append(r.ctx, t.User.ID, store.RoleAssistant, reply.String()); err != nil {
		r.fail(t, MsgTurnFailed, err)
		return
	}
	r.emit(t, types.Done())

	logger.Debug().Int("chars", len([]rune(reply.String()))).Msg("turn completed")
}

// emit sends ev to every device of the turn's user and to the tap.
func (r *Relay) emit(t *queued, ev types.Outbound) {
	r.hub.BroadcastUser(t.User.ID, ev, nil)
	if t.Tap != nil {
		t.Tap(ev)
	}
}

// fail reports a turn error. Before start only the origin hears of it;
// after start every device of the user does, so none waits for a done
// that will not come.
func (r *Relay) fail(t *queued, message string, err error) {
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", t.User.ID).Msg("turn failed")
	}
	ev := types.Error{Message: message}
	switch {
	case t.started:
		r.hub.BroadcastUser(t.User.ID, ev, nil)
	case t.Origin != nil:
		r.hub.Send(t.Origin, ev)
	}
	if t.Tap != nil {
		t.Tap(ev)
	}
}
