package reliability

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/pokeproto-project/pokebattle/internal/protocol"
)

type sentDatagram struct {
	data []byte
	dest netip.AddrPort
}

type fakeSender struct {
	sent []sentDatagram
	err  error
}

func (f *fakeSender) WriteTo(data []byte, dest netip.AddrPort) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentDatagram{data: append([]byte(nil), data...), dest: dest})
	return nil
}

func (f *fakeSender) decodeAll(t *testing.T) []protocol.Message {
	t.Helper()
	msgs := make([]protocol.Message, 0, len(f.sent))
	for _, d := range f.sent {
		m, err := protocol.Decode(d.data)
		if err != nil {
			t.Fatalf("sender captured undecodable datagram: %v", err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

var (
	peerA = netip.MustParseAddrPort("127.0.0.1:9001")
	peerB = netip.MustParseAddrPort("127.0.0.1:9002")
)

func TestSendAssignsMonotonicSequences(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, DefaultConfig())
	now := time.Now()

	var prev uint64
	for i := 0; i < 5; i++ {
		seq, err := l.Send(&protocol.HandshakeRequest{}, peerA, now)
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if seq <= prev {
			t.Errorf("sequence %d not strictly greater than %d", seq, prev)
		}
		prev = seq
	}
	if l.PendingCount() != 5 {
		t.Errorf("want 5 pending records, got %d", l.PendingCount())
	}
}

func TestAckClearsPendingRecord(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, DefaultConfig())
	now := time.Now()

	seq, err := l.Send(&protocol.AttackAnnounce{MoveName: "Tackle"}, peerA, now)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msg, err := l.OnDatagram(protocol.Encode(&protocol.Ack{AckNumber: seq}), peerA)
	if err != nil {
		t.Fatalf("OnDatagram failed: %v", err)
	}
	if msg != nil {
		t.Errorf("ACK should not surface as an application message, got %#v", msg)
	}
	if l.PendingCount() != 0 {
		t.Errorf("ACK did not clear the outbound record")
	}

	// No retransmission after the record is cleared.
	sender.sent = nil
	if expired := l.Tick(now.Add(time.Hour)); len(expired) != 0 {
		t.Errorf("unexpected timeouts: %v", expired)
	}
	if len(sender.sent) != 0 {
		t.Errorf("unexpected retransmissions: %d", len(sender.sent))
	}
}

func TestFreshMessageIsAckedAndSurfaced(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, DefaultConfig())

	inbound := &protocol.AttackAnnounce{MoveName: "Thunderbolt"}
	inbound.SetSequence(7)
	msg, err := l.OnDatagram(protocol.Encode(inbound), peerB)
	if err != nil {
		t.Fatalf("OnDatagram failed: %v", err)
	}
	atk, ok := msg.(*protocol.AttackAnnounce)
	if !ok || atk.MoveName != "Thunderbolt" {
		t.Fatalf("expected the attack to surface, got %#v", msg)
	}

	msgs := sender.decodeAll(t)
	if len(msgs) != 1 {
		t.Fatalf("want exactly one ACK sent, got %d datagrams", len(msgs))
	}
	ack, ok := msgs[0].(*protocol.Ack)
	if !ok || ack.AckNumber != 7 {
		t.Errorf("want ACK 7, got %#v", msgs[0])
	}
	if sender.sent[0].dest != peerB {
		t.Errorf("ACK sent to %s, want %s", sender.sent[0].dest, peerB)
	}
}

func TestDuplicateIsReAckedAndDropped(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, DefaultConfig())

	inbound := &protocol.DefenseAnnounce{}
	inbound.SetSequence(3)
	data := protocol.Encode(inbound)

	first, err := l.OnDatagram(data, peerB)
	if err != nil || first == nil {
		t.Fatalf("first delivery should surface: msg=%v err=%v", first, err)
	}
	second, err := l.OnDatagram(data, peerB)
	if err != nil {
		t.Fatalf("duplicate delivery errored: %v", err)
	}
	if second != nil {
		t.Errorf("duplicate surfaced to the application: %#v", second)
	}

	acks := 0
	for _, m := range sender.decodeAll(t) {
		if a, ok := m.(*protocol.Ack); ok && a.AckNumber == 3 {
			acks++
		}
	}
	if acks != 2 {
		t.Errorf("want the duplicate re-acked (2 ACKs total), got %d", acks)
	}
}

func TestSameSequenceFromDifferentEndpoints(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, DefaultConfig())

	m1 := &protocol.CalcConfirm{}
	m1.SetSequence(5)
	m2 := &protocol.CalcConfirm{}
	m2.SetSequence(5)

	if msg, _ := l.OnDatagram(protocol.Encode(m1), peerA); msg == nil {
		t.Error("seq 5 from A should surface")
	}
	if msg, _ := l.OnDatagram(protocol.Encode(m2), peerB); msg == nil {
		t.Error("seq 5 from B should surface; dedup windows are per endpoint")
	}
}

func TestMalformedDatagramNotAcked(t *testing.T) {
	sender := &fakeSender{}
	l := New(sender, DefaultConfig())

	_, err := l.OnDatagram([]byte("garbage with no structure"), peerA)
	if !errors.Is(err, protocol.ErrMalformedMessage) {
		t.Fatalf("want ErrMalformedMessage, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("malformed datagram must not be acknowledged")
	}
}

func TestTickRetransmitsWithSameSequence(t *testing.T) {
	sender := &fakeSender{}
	cfg := DefaultConfig()
	l := New(sender, cfg)
	start := time.Now()

	seq, err := l.Send(&protocol.AttackAnnounce{MoveName: "Ember"}, peerA, start)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// Not yet due.
	l.Tick(start.Add(cfg.RetryInterval / 2))
	if len(sender.sent) != 1 {
		t.Fatalf("retransmitted before the retry interval elapsed")
	}

	l.Tick(start.Add(cfg.RetryInterval))
	if len(sender.sent) != 2 {
		t.Fatalf("want one retransmission, got %d datagrams", len(sender.sent))
	}
	if string(sender.sent[1].data) != string(sender.sent[0].data) {
		t.Error("retransmitted bytes differ from the original send")
	}

	retr, err := protocol.Decode(sender.sent[1].data)
	if err != nil {
		t.Fatalf("retransmission undecodable: %v", err)
	}
	if retr.(protocol.Sequenced).Sequence() != seq {
		t.Errorf("retransmission changed the sequence number")
	}
}

func TestRetryCapEmitsTimeout(t *testing.T) {
	sender := &fakeSender{}
	cfg := Config{RetryInterval: 500 * time.Millisecond, MaxRetries: 3}
	l := New(sender, cfg)
	start := time.Now()

	seq, err := l.Send(&protocol.AttackAnnounce{MoveName: "Ember"}, peerA, start)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	clock := start
	var expired []Timeout
	for i := 0; i < 10 && len(expired) == 0; i++ {
		clock = clock.Add(cfg.RetryInterval)
		expired = l.Tick(clock)
	}

	if len(expired) != 1 {
		t.Fatalf("want exactly one timeout, got %d", len(expired))
	}
	if expired[0].Seq != seq || expired[0].Dest != peerA || expired[0].Kind != protocol.KindAttackAnnounce {
		t.Errorf("unexpected timeout %#v", expired[0])
	}
	// First send + MaxRetries retransmissions.
	if len(sender.sent) != 1+cfg.MaxRetries {
		t.Errorf("want %d transmissions total, got %d", 1+cfg.MaxRetries, len(sender.sent))
	}
	if l.PendingCount() != 0 {
		t.Errorf("expired record still pending")
	}
}

func TestDedupWindowEviction(t *testing.T) {
	w := newDedupWindow(4)
	for seq := uint64(1); seq <= 6; seq++ {
		w.add(seq)
	}
	for seq := uint64(1); seq <= 2; seq++ {
		if w.contains(seq) {
			t.Errorf("seq %d should have been evicted", seq)
		}
	}
	for seq := uint64(3); seq <= 6; seq++ {
		if !w.contains(seq) {
			t.Errorf("seq %d should still be remembered", seq)
		}
	}
}

func TestDedupWindowMinimumEnforced(t *testing.T) {
	l := New(&fakeSender{}, Config{DedupWindow: 8})
	if got := l.cfg.DedupWindow; got < DefaultDedupWindow {
		t.Errorf("window %d below the required minimum %d", got, DefaultDedupWindow)
	}
}
