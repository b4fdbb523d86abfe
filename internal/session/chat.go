package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/netip"
	"time"

	"github.com/pokeproto-project/pokebattle/internal/events"
	"github.com/pokeproto-project/pokebattle/internal/protocol"
)

// MaxStickerBytes caps the decoded sticker payload. A maximal encoded
// sticker still fits one UDP datagram at the IP layer; there is no chunking
// protocol.
const MaxStickerBytes = 60 * 1024

// SendChat transmits a text chat line to the role's chat destinations.
func (s *Session) SendChat(ctx context.Context, text string, now time.Time) error {
	msg := &protocol.ChatMessage{
		SenderName:  s.name,
		ContentType: protocol.ContentText,
		MessageText: text,
	}
	if err := s.routeOutboundChat(msg, now); err != nil {
		return err
	}
	s.bus.Emit(ctx, events.Event{
		Type:    events.EventChatReceived,
		Source:  "session",
		Payload: events.ChatPayload{Sender: msg.SenderName, ContentType: msg.ContentType, Text: text, Outbound: true},
	})
	return nil
}

// SendSticker validates and transmits a sticker. Oversize or non-encodable
// data is rejected locally and nothing hits the wire.
func (s *Session) SendSticker(ctx context.Context, data []byte, now time.Time) error {
	if len(data) > MaxStickerBytes {
		return fmt.Errorf("%w: %d bytes over the %d cap", ErrStickerOversize, len(data), MaxStickerBytes)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty sticker", ErrStickerBadEncoding)
	}
	msg := &protocol.ChatMessage{
		SenderName:  s.name,
		ContentType: protocol.ContentSticker,
		StickerData: base64.StdEncoding.EncodeToString(data),
	}
	if err := s.routeOutboundChat(msg, now); err != nil {
		return err
	}
	s.bus.Emit(ctx, events.Event{
		Type:    events.EventChatReceived,
		Source:  "session",
		Payload: events.ChatPayload{Sender: msg.SenderName, ContentType: msg.ContentType, Sticker: data, Outbound: true},
	})
	return nil
}

// routeOutboundChat implements the origin side of the routing table: the
// Host reaches the Joiner and every spectator directly, everyone else sends
// to the Host for relay.
func (s *Session) routeOutboundChat(msg *protocol.ChatMessage, now time.Time) error {
	if s.role == RoleHost {
		if s.hasJoiner {
			if _, err := s.rel.Send(msg, s.joiner, now); err != nil {
				return err
			}
		}
		s.fanOut(msg, netip.AddrPort{}, now)
		return nil
	}
	if !s.hostAddr.IsValid() {
		return ErrNoPeer
	}
	_, err := s.rel.Send(msg, s.hostAddr, now)
	return err
}

// handleChat processes an inbound chat message: validate, suppress
// self-echo, display, and relay when acting as the Host hub.
func (s *Session) handleChat(ctx context.Context, msg *protocol.ChatMessage, src netip.AddrPort, now time.Time) error {
	var sticker []byte
	if msg.ContentType == protocol.ContentSticker {
		decoded, err := base64.StdEncoding.DecodeString(msg.StickerData)
		if err != nil {
			s.logger.Warn().Str("sender", msg.SenderName).Msg("undecodable sticker dropped")
			return nil
		}
		if len(decoded) > MaxStickerBytes {
			s.logger.Warn().Str("sender", msg.SenderName).Int("bytes", len(decoded)).Msg("oversize sticker dropped")
			return nil
		}
		sticker = decoded
	}

	if s.role == RoleHost {
		s.relayChat(msg, src, now)
	}

	if msg.SenderName == s.name {
		// Self-echo guard: a relayed copy of our own line is not displayed.
		return nil
	}
	s.bus.Emit(ctx, events.Event{
		Type:   events.EventChatReceived,
		Source: "session",
		Payload: events.ChatPayload{
			Sender:      msg.SenderName,
			ContentType: msg.ContentType,
			Text:        msg.MessageText,
			Sticker:     sticker,
		},
	})
	return nil
}

// relayChat is the Host hub: Joiner lines go to every spectator, spectator
// lines go to the Joiner and the other spectators. Every relayed copy keeps
// the original sender_name but draws a fresh sequence number.
func (s *Session) relayChat(msg *protocol.ChatMessage, src netip.AddrPort, now time.Time) {
	fromJoiner := s.hasJoiner && src == s.joiner
	if !fromJoiner {
		if _, ok := s.spectators[src]; !ok {
			s.logger.Warn().Stringer("src", src).Msg("chat from an unknown endpoint, not relayed")
			return
		}
		if s.hasJoiner {
			if _, err := s.rel.Send(msg, s.joiner, now); err != nil {
				s.logger.Warn().Err(err).Msg("chat relay to joiner failed")
			}
		}
	}
	s.fanOut(msg, src, now)
}
