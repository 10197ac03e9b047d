package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPingInterval is the sweep period used when none is configured.
const DefaultPingInterval = 30 * time.Second

// Heartbeat periodically probes every registered client. A client that has
// not answered the previous probe by the next sweep is terminated.
type Heartbeat struct {
	hub      *Hub
	interval time.Duration
	logger   zerolog.Logger
}

// NewHeartbeat creates a liveness monitor for h.
func NewHeartbeat(h *Hub, interval time.Duration, logger zerolog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = DefaultPingInterval
	}
	return &Heartbeat{
		hub:      h,
		interval: interval,
		logger:   logger.With().Str("component", "heartbeat").Logger(),
	}
}

// Run sweeps on every tick until ctx is done.
func (hb *Heartbeat) Run(ctx context.Context) {
	t := time.NewTicker(hb.interval)
	defer t.Stop()

	hb.logger.Info().Dur("interval", hb.interval).Msg("heartbeat started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			hb.Sweep()
		}
	}
}

// Sweep runs one liveness pass and reports how many clients were probed
// and how many were terminated.
func (hb *Heartbeat) Sweep() (probed, terminated int) {
	hb.hub.mu.RLock()
	clients := collect(hb.hub.clients)
	hb.hub.mu.RUnlock()

	for _, c := range clients {
		if !hb.hub.MarkPending(c) {
			hb.logger.Info().
				Str("client_id", c.ID).
				Str("user_id", c.User.ID).
				Msg("client inactive, terminating connection")
			c.terminate()
			hb.hub.Unregister(c)
			terminated++
			continue
		}
		if c.Closed() {
			continue
		}
		if err := c.conn.Ping(); err != nil {
			hb.logger.Debug().Err(err).Str("client_id", c.ID).Msg("ping failed")
		}
		probed++
	}
	return probed, terminated
}
