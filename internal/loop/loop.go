// Package loop runs the single cooperative peer loop. One goroutine owns the
// UDP socket, the reliability layer, and the session; it alternates between a
// short-deadline socket poll, the retransmission tick, and a bounded command
// queue fed by the driver. Nothing else touches those three objects once the
// loop is running.
package loop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pokeproto-project/pokebattle/internal/network"
	"github.com/pokeproto-project/pokebattle/internal/reliability"
	"github.com/pokeproto-project/pokebattle/internal/session"
)

// Defaults for loop pacing.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultCommandQueue = 32
)

var (
	// ErrPeerLost reports that the counterparty stopped acknowledging and
	// the battle was aborted.
	ErrPeerLost = errors.New("peer lost")

	// ErrCommandQueueFull rejects a command when the loop is saturated. The
	// driver retries or drops; it never blocks.
	ErrCommandQueueFull = errors.New("command queue full")
)

// Command is driver work executed on the loop goroutine, where touching the
// session is safe. now is the loop's current tick time.
type Command func(ctx context.Context, now time.Time) error

// Config bounds loop pacing and the command queue.
type Config struct {
	PollInterval time.Duration
	CommandQueue int
}

// DefaultConfig returns the stock loop parameters.
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		CommandQueue: DefaultCommandQueue,
	}
}

// Loop ties the socket, the reliability layer, and the session together.
type Loop struct {
	logger zerolog.Logger
	conn   *network.Conn
	rel    *reliability.Layer
	sess   *session.Session
	poll   time.Duration
	cmds   chan Command
}

// New assembles a loop. The caller keeps ownership of conn and closes it
// after Run returns.
func New(conn *network.Conn, rel *reliability.Layer, sess *session.Session, cfg Config) *Loop {
	if cfg.PollInterval <= 0 || cfg.PollInterval > DefaultPollInterval {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CommandQueue <= 0 {
		cfg.CommandQueue = DefaultCommandQueue
	}
	return &Loop{
		logger: log.With().Str("component", "loop").Logger(),
		conn:   conn,
		rel:    rel,
		sess:   sess,
		poll:   cfg.PollInterval,
		cmds:   make(chan Command, cfg.CommandQueue),
	}
}

// Session returns the loop-owned session. Callers must only touch it from
// inside a submitted Command.
func (l *Loop) Session() *session.Session { return l.sess }

// Submit enqueues a command for the loop goroutine without blocking.
func (l *Loop) Submit(cmd Command) error {
	select {
	case l.cmds <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Run drives the loop until ctx is cancelled or a fatal protocol condition
// surfaces. A cancelled context is a clean shutdown and returns nil; peer
// loss and desync return their sentinel errors for the driver's exit code.
func (l *Loop) Run(ctx context.Context) error {
	buf := make([]byte, network.MaxDatagramBytes)
	for {
		if ctx.Err() != nil {
			l.logger.Info().Msg("loop stopping")
			return nil
		}
		now := time.Now()
		l.drainCommands(ctx, now)

		n, src, err := l.conn.ReadFrom(buf, now.Add(l.poll))
		now = time.Now()
		switch {
		case err == nil:
			msg, derr := l.rel.OnDatagram(buf[:n], src)
			if derr == nil && msg != nil {
				if herr := l.sess.HandleMessage(ctx, msg, src, now); herr != nil {
					// Only desync escapes the session.
					return herr
				}
			}
		case errors.Is(err, network.ErrReadTimeout):
		default:
			if ctx.Err() != nil {
				l.logger.Info().Msg("loop stopping")
				return nil
			}
			return fmt.Errorf("socket failed: %w", err)
		}

		if err := l.tick(ctx, time.Now()); err != nil {
			return err
		}
	}
}

// drainCommands runs every queued command. Command failures are the
// driver's concern to observe; the loop only logs them.
func (l *Loop) drainCommands(ctx context.Context, now time.Time) {
	for {
		select {
		case cmd := <-l.cmds:
			if err := cmd(ctx, now); err != nil {
				l.logger.Warn().Err(err).Msg("command failed")
			}
		default:
			return
		}
	}
}

// tick retransmits due messages and converts exhausted retries into peer
// loss. A timed-out spectator is dropped from the fan-out registry and the
// loop keeps going; a timed-out counterparty aborts the battle. The retry
// cap doubles as the liveness window: giving up on an unacknowledged message
// means the peer was silent for (cap+1) retry intervals.
func (l *Loop) tick(ctx context.Context, now time.Time) error {
	for _, to := range l.rel.Tick(now) {
		if l.sess.IsSpectatorEndpoint(to.Dest) {
			l.sess.DropSpectator(to.Dest)
			continue
		}
		peer, ok := l.sess.Counterparty()
		if !ok || to.Dest != peer {
			l.logger.Warn().
				Stringer("dest", to.Dest).
				Str("kind", string(to.Kind)).
				Msg("timeout for a non-peer endpoint")
			continue
		}
		reason := fmt.Sprintf("%s to %s unacknowledged after retries", to.Kind, to.Dest)
		l.sess.PeerLost(ctx, reason, now)
		return fmt.Errorf("%w: %s", ErrPeerLost, reason)
	}
	return nil
}
