package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/netip"
	"testing"

	"github.com/pokeproto-project/pokebattle/internal/events"
	"github.com/pokeproto-project/pokebattle/internal/pokedex"
	"github.com/pokeproto-project/pokebattle/internal/protocol"
)

func chatEvents(c *collector) []events.ChatPayload {
	var out []events.ChatPayload
	for _, e := range c.byType(events.EventChatReceived) {
		out = append(out, e.Payload.(events.ChatPayload))
	}
	return out
}

func TestJoinerChatFanOut(t *testing.T) {
	h := newHarness(t)
	_, joiner := h.connectedPair()
	h.addSpectator(spectatorAddr)

	hostSeqBefore := h.nets[hostAddr].seq
	if err := joiner.SendChat(context.Background(), "gg", h.now); err != nil {
		t.Fatal(err)
	}
	h.pump()
	h.stop()

	// The relayed copy drew a fresh sequence from the Host's counter.
	if h.nets[hostAddr].seq <= hostSeqBefore {
		t.Error("the host relay did not issue a new sequence number")
	}

	hostChats := chatEvents(h.taps[hostAddr])
	if len(hostChats) != 1 || hostChats[0].Sender != "Joiner" || hostChats[0].Text != "gg" {
		t.Fatalf("host chat display = %+v, want one Joiner:gg", hostChats)
	}
	specChats := chatEvents(h.taps[spectatorAddr])
	if len(specChats) != 1 || specChats[0].Sender != "Joiner" || specChats[0].Text != "gg" {
		t.Fatalf("spectator chat display = %+v, want one Joiner:gg", specChats)
	}
	// The joiner sees only its own outbound line, no echo.
	joinChats := chatEvents(h.taps[joinerAddr])
	if len(joinChats) != 1 || !joinChats[0].Outbound {
		t.Fatalf("joiner chat display = %+v, want only the outbound line", joinChats)
	}
}

func TestHostChatReachesJoinerAndSpectators(t *testing.T) {
	h := newHarness(t)
	host, _ := h.connectedPair()
	h.addSpectator(spectatorAddr)

	if err := host.SendChat(context.Background(), "hello", h.now); err != nil {
		t.Fatal(err)
	}
	h.pump()
	h.stop()

	joinChats := chatEvents(h.taps[joinerAddr])
	if len(joinChats) != 1 || joinChats[0].Sender != "Host" {
		t.Errorf("joiner display = %+v, want one Host line", joinChats)
	}
	specChats := chatEvents(h.taps[spectatorAddr])
	if len(specChats) != 1 || specChats[0].Sender != "Host" {
		t.Errorf("spectator display = %+v, want one Host line", specChats)
	}
}

func TestSpectatorChatRelayExcludesOriginator(t *testing.T) {
	h := newHarness(t)
	_, _ = h.connectedPair()
	spec1 := h.addSpectator(spectatorAddr)
	spec2 := h.addSpectator(spectator2Addr)
	spec1.SetName("alice")
	spec2.SetName("bob")

	if err := spec1.SendChat(context.Background(), "hi from the stands", h.now); err != nil {
		t.Fatal(err)
	}
	h.pump()
	h.stop()

	if got := chatEvents(h.taps[joinerAddr]); len(got) != 1 || got[0].Sender != "alice" {
		t.Errorf("joiner display = %+v, want alice's line", got)
	}
	if got := chatEvents(h.taps[spectator2Addr]); len(got) != 1 || got[0].Sender != "alice" {
		t.Errorf("second spectator display = %+v, want the relayed line", got)
	}
	// The originator sees only its own outbound copy; the host relays to the
	// joiner and the other spectators, never back.
	got := chatEvents(h.taps[spectatorAddr])
	if len(got) != 1 || !got[0].Outbound {
		t.Errorf("originator display = %+v, want only the outbound line", got)
	}
}

func TestSelfEchoSuppressed(t *testing.T) {
	h := newHarness(t)
	host, _ := h.connectedPair()

	echo := &protocol.ChatMessage{
		SenderName:  "Host",
		ContentType: protocol.ContentText,
		MessageText: "looped back",
	}
	if err := host.HandleMessage(context.Background(), echo, joinerAddr, h.now); err != nil {
		t.Fatal(err)
	}
	h.stop()
	if got := chatEvents(h.taps[hostAddr]); len(got) != 0 {
		t.Errorf("self-echo displayed: %+v", got)
	}
}

func TestStickerRoundTrip(t *testing.T) {
	h := newHarness(t)
	_, joiner := h.connectedPair()

	payload := bytes.Repeat([]byte{0xCA, 0xFE}, 512)
	if err := joiner.SendSticker(context.Background(), payload, h.now); err != nil {
		t.Fatal(err)
	}
	h.pump()
	h.stop()

	hostChats := chatEvents(h.taps[hostAddr])
	if len(hostChats) != 1 {
		t.Fatalf("host displayed %d chats, want 1", len(hostChats))
	}
	got := hostChats[0]
	if got.ContentType != protocol.ContentSticker || !bytes.Equal(got.Sticker, payload) {
		t.Errorf("sticker did not survive the round trip: %d bytes", len(got.Sticker))
	}
}

func TestStickerOversizeRejectedLocally(t *testing.T) {
	h := newHarness(t)
	_, joiner := h.connectedPair()
	before := len(h.nets[joinerAddr].sent)

	err := joiner.SendSticker(context.Background(), make([]byte, MaxStickerBytes+1), h.now)
	if !errors.Is(err, ErrStickerOversize) {
		t.Fatalf("oversize sticker = %v, want ErrStickerOversize", err)
	}
	if len(h.nets[joinerAddr].sent) != before {
		t.Error("a rejected sticker must not hit the wire")
	}
}

func TestEmptyStickerRejected(t *testing.T) {
	h := newHarness(t)
	_, joiner := h.connectedPair()
	if err := joiner.SendSticker(context.Background(), nil, h.now); !errors.Is(err, ErrStickerBadEncoding) {
		t.Errorf("empty sticker = %v, want ErrStickerBadEncoding", err)
	}
}

func TestUndecodableInboundStickerDropped(t *testing.T) {
	h := newHarness(t)
	host, _ := h.connectedPair()

	bad := &protocol.ChatMessage{
		SenderName:  "Joiner",
		ContentType: protocol.ContentSticker,
		StickerData: "%%% not base64 %%%",
	}
	if err := host.HandleMessage(context.Background(), bad, joinerAddr, h.now); err != nil {
		t.Fatal(err)
	}
	h.stop()
	if got := chatEvents(h.taps[hostAddr]); len(got) != 0 {
		t.Errorf("undecodable sticker displayed: %+v", got)
	}
}

func TestOversizeInboundStickerDropped(t *testing.T) {
	h := newHarness(t)
	host, _ := h.connectedPair()

	big := base64.StdEncoding.EncodeToString(make([]byte, MaxStickerBytes+1))
	bad := &protocol.ChatMessage{
		SenderName:  "Joiner",
		ContentType: protocol.ContentSticker,
		StickerData: big,
	}
	if err := host.HandleMessage(context.Background(), bad, joinerAddr, h.now); err != nil {
		t.Fatal(err)
	}
	h.stop()
	if got := chatEvents(h.taps[hostAddr]); len(got) != 0 {
		t.Errorf("oversize inbound sticker displayed: %+v", got)
	}
}

func TestChatBeforeConnectFails(t *testing.T) {
	h := newHarness(t)
	joiner := h.add(joinerAddr, func(bus *events.EventBus, catalog *pokedex.Catalog, net *fakeNet) *Session {
		s := NewJoiner(bus, catalog, net, hostAddr)
		s.hostAddr = netip.AddrPort{}
		return s
	})
	if err := joiner.SendChat(context.Background(), "anyone there?", h.now); !errors.Is(err, ErrNoPeer) {
		t.Errorf("chat without a host = %v, want ErrNoPeer", err)
	}
}
