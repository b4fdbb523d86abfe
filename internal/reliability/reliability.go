// Package reliability layers at-least-once delivery and effectively-once
// processing on top of a connectionless UDP socket. Outbound non-ACK
// messages get a sender-monotonic sequence number and are retransmitted on a
// constant interval until acknowledged or the retry cap is exhausted.
// Inbound duplicates are re-ACKed and dropped. The layer is single-threaded:
// all calls must come from the owning peer loop.
package reliability

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pokeproto-project/pokebattle/internal/protocol"
)

// Defaults for retransmission timing.
const (
	DefaultRetryInterval = 500 * time.Millisecond
	DefaultMaxRetries    = 3
	DefaultDedupWindow   = 1024
)

// Sender transmits an encoded datagram to a destination endpoint. The peer
// loop's UDP socket satisfies this.
type Sender interface {
	WriteTo(data []byte, dest netip.AddrPort) error
}

// Config bounds retransmission and duplicate suppression.
type Config struct {
	RetryInterval time.Duration
	MaxRetries    int // retransmissions after the first send
	DedupWindow   int // per-endpoint remembered inbound sequences
}

// DefaultConfig returns the stock timing parameters.
func DefaultConfig() Config {
	return Config{
		RetryInterval: DefaultRetryInterval,
		MaxRetries:    DefaultMaxRetries,
		DedupWindow:   DefaultDedupWindow,
	}
}

// Timeout reports an outbound message that exhausted its retries. The
// session treats the destination as unreachable.
type Timeout struct {
	Seq  uint64
	Dest netip.AddrPort
	Kind protocol.Kind
}

type outboundRecord struct {
	data      []byte
	dest      netip.AddrPort
	kind      protocol.Kind
	firstSent time.Time
	retries   int
	nextRetry time.Time
}

// Layer owns the outbound record table and the per-endpoint dedup windows.
type Layer struct {
	logger  zerolog.Logger
	send    Sender
	cfg     Config
	nextSeq uint64
	pending map[uint64]*outboundRecord
	dedup   map[netip.AddrPort]*dedupWindow
}

// New creates a reliability layer writing through send.
func New(send Sender, cfg Config) *Layer {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.DedupWindow < DefaultDedupWindow {
		cfg.DedupWindow = DefaultDedupWindow
	}
	return &Layer{
		logger:  log.With().Str("component", "reliability").Logger(),
		send:    send,
		cfg:     cfg,
		pending: make(map[uint64]*outboundRecord),
		dedup:   make(map[netip.AddrPort]*dedupWindow),
	}
}

// Send assigns the next outbound sequence number to msg, transmits it, and
// registers an outbound record for retransmission. It returns the assigned
// sequence.
func (l *Layer) Send(msg protocol.Sequenced, dest netip.AddrPort, now time.Time) (uint64, error) {
	l.nextSeq++
	msg.SetSequence(l.nextSeq)
	data := protocol.Encode(msg)

	if err := l.send.WriteTo(data, dest); err != nil {
		return 0, fmt.Errorf("sending %s seq %d to %s: %w", msg.Kind(), l.nextSeq, dest, err)
	}

	l.pending[l.nextSeq] = &outboundRecord{
		data:      data,
		dest:      dest,
		kind:      msg.Kind(),
		firstSent: now,
		nextRetry: now.Add(l.cfg.RetryInterval),
	}

	l.logger.Trace().
		Str("kind", string(msg.Kind())).
		Uint64("seq", l.nextSeq).
		Str("dest", dest.String()).
		Msg("sent")
	return l.nextSeq, nil
}

// SendAck transmits an ACK for seq. ACKs are fire-and-forget: no record is
// registered and they are never retransmitted.
func (l *Layer) SendAck(seq uint64, dest netip.AddrPort) error {
	data := protocol.Encode(&protocol.Ack{AckNumber: seq})
	if err := l.send.WriteTo(data, dest); err != nil {
		return fmt.Errorf("sending ack %d to %s: %w", seq, dest, err)
	}
	return nil
}

// OnDatagram decodes and filters one inbound datagram. It returns a non-nil
// message only when the datagram is a fresh application message the caller
// should process; ACKs and duplicates return (nil, nil). Malformed datagrams
// are dropped without acknowledgment and reported as an error.
func (l *Layer) OnDatagram(data []byte, src netip.AddrPort) (protocol.Sequenced, error) {
	msg, err := protocol.Decode(data)
	if err != nil {
		l.logger.Warn().Err(err).Str("src", src.String()).Msg("dropping undecodable datagram")
		return nil, err
	}

	if ack, ok := msg.(*protocol.Ack); ok {
		if rec, exists := l.pending[ack.AckNumber]; exists {
			delete(l.pending, ack.AckNumber)
			l.logger.Trace().
				Uint64("seq", ack.AckNumber).
				Str("kind", string(rec.kind)).
				Msg("acknowledged")
		}
		return nil, nil
	}

	seqMsg := msg.(protocol.Sequenced)
	seqNum := seqMsg.Sequence()

	win, ok := l.dedup[src]
	if !ok {
		win = newDedupWindow(l.cfg.DedupWindow)
		l.dedup[src] = win
	}

	if win.contains(seqNum) {
		l.logger.Debug().
			Uint64("seq", seqNum).
			Str("src", src.String()).
			Msg("duplicate, re-acking")
		if err := l.SendAck(seqNum, src); err != nil {
			return nil, err
		}
		return nil, nil
	}

	win.add(seqNum)
	if err := l.SendAck(seqNum, src); err != nil {
		return nil, err
	}
	return seqMsg, nil
}

// Tick retransmits every due outbound record and collects the ones that
// exhausted their retry budget. Call it at least every 100 ms; expired
// records are removed and returned so the session can declare the peer
// unreachable.
func (l *Layer) Tick(now time.Time) []Timeout {
	var expired []Timeout
	for seqNum, rec := range l.pending {
		if now.Before(rec.nextRetry) {
			continue
		}
		if rec.retries >= l.cfg.MaxRetries {
			l.logger.Warn().
				Uint64("seq", seqNum).
				Str("kind", string(rec.kind)).
				Str("dest", rec.dest.String()).
				Int("retries", rec.retries).
				Msg("giving up on unacknowledged message")
			expired = append(expired, Timeout{Seq: seqNum, Dest: rec.dest, Kind: rec.kind})
			delete(l.pending, seqNum)
			continue
		}
		// The retransmitted bytes are identical: same sequence number.
		if err := l.send.WriteTo(rec.data, rec.dest); err != nil {
			l.logger.Error().Err(err).Uint64("seq", seqNum).Msg("retransmit failed")
		}
		rec.retries++
		rec.nextRetry = now.Add(l.cfg.RetryInterval)
		l.logger.Debug().
			Uint64("seq", seqNum).
			Int("retry", rec.retries).
			Msg("retransmitted")
	}
	return expired
}

// PendingCount reports the number of unacknowledged outbound messages.
func (l *Layer) PendingCount() int { return len(l.pending) }

// dedupWindow remembers the most recent inbound sequence numbers from one
// endpoint. Bounded: when full, the oldest entry is evicted.
type dedupWindow struct {
	seen  map[uint64]struct{}
	order []uint64
	head  int
	size  int
}

func newDedupWindow(capacity int) *dedupWindow {
	return &dedupWindow{
		seen:  make(map[uint64]struct{}, capacity),
		order: make([]uint64, capacity),
	}
}

func (w *dedupWindow) contains(seq uint64) bool {
	_, ok := w.seen[seq]
	return ok
}

func (w *dedupWindow) add(seq uint64) {
	if w.size == len(w.order) {
		oldest := w.order[w.head]
		delete(w.seen, oldest)
	} else {
		w.size++
	}
	w.order[w.head] = seq
	w.head = (w.head + 1) % len(w.order)
	w.seen[seq] = struct{}{}
}
