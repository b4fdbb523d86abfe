package api

import (
	"context"
	"sync"

	"github.com/pokeproto-project/pokebattle/internal/events"
)

// maxRecentTurns bounds the turn ring the API serves.
const maxRecentTurns = 64

// maxRecentChat bounds the chat ring the API serves.
const maxRecentChat = 128

// Snapshot is the point-in-time view of the session the API serves. It is
// built entirely from bus events so HTTP handlers never touch the loop.
type Snapshot struct {
	Role           string                       `json:"role"`
	PeerConnected  bool                         `json:"peer_connected"`
	SpectatorCount int                          `json:"spectator_count"`
	BattleActive   bool                         `json:"battle_active"`
	MyPokemon      string                       `json:"my_pokemon,omitempty"`
	OppPokemon     string                       `json:"opp_pokemon,omitempty"`
	Seed           uint32                       `json:"seed,omitempty"`
	TurnCount      int                          `json:"turn_count"`
	Discrepancies  int                          `json:"discrepancies"`
	Outcome        *events.BattleEndedPayload   `json:"outcome,omitempty"`
	Turns          []events.TurnCommittedPayload `json:"-"`
	Chat           []chatLine                   `json:"-"`
}

type chatLine struct {
	Sender      string `json:"sender"`
	ContentType string `json:"content_type"`
	Text        string `json:"text,omitempty"`
	Outbound    bool   `json:"outbound"`
}

// SnapshotCache accumulates bus events into a servable snapshot.
type SnapshotCache struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSnapshotCache creates a cache reporting the given role.
func NewSnapshotCache(role string) *SnapshotCache {
	return &SnapshotCache{snap: Snapshot{Role: role}}
}

// Attach subscribes the cache to the event stream.
func (sc *SnapshotCache) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventPeerConnected, "api.peerConnected", sc.onPeerConnected)
	bus.Subscribe(events.EventPeerLost, "api.peerLost", sc.onPeerLost)
	bus.Subscribe(events.EventSpectatorJoined, "api.spectatorJoined", sc.onSpectatorJoined)
	bus.Subscribe(events.EventBattleStarted, "api.battleStarted", sc.onBattleStarted)
	bus.Subscribe(events.EventTurnCommitted, "api.turnCommitted", sc.onTurnCommitted)
	bus.Subscribe(events.EventDiscrepancy, "api.discrepancy", sc.onDiscrepancy)
	bus.Subscribe(events.EventBattleEnded, "api.battleEnded", sc.onBattleEnded)
	bus.Subscribe(events.EventRematchAgreed, "api.rematchAgreed", sc.onRematchAgreed)
	bus.Subscribe(events.EventChatReceived, "api.chat", sc.onChat)
}

// Current returns a copy of the snapshot with the turn and chat rings.
func (sc *SnapshotCache) Current() Snapshot {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	snap := sc.snap
	snap.Turns = append([]events.TurnCommittedPayload(nil), sc.snap.Turns...)
	snap.Chat = append([]chatLine(nil), sc.snap.Chat...)
	return snap
}

func (sc *SnapshotCache) onPeerConnected(ctx context.Context, event events.Event) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.PeerConnected = true
	return nil
}

func (sc *SnapshotCache) onPeerLost(ctx context.Context, event events.Event) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.PeerConnected = false
	return nil
}

func (sc *SnapshotCache) onSpectatorJoined(ctx context.Context, event events.Event) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.SpectatorCount++
	return nil
}

func (sc *SnapshotCache) onBattleStarted(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BattleStartedPayload)
	if !ok {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.BattleActive = true
	sc.snap.MyPokemon = p.MyPokemon
	sc.snap.OppPokemon = p.OppPokemon
	sc.snap.Seed = p.Seed
	sc.snap.TurnCount = 0
	sc.snap.Outcome = nil
	sc.snap.Turns = nil
	return nil
}

func (sc *SnapshotCache) onTurnCommitted(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TurnCommittedPayload)
	if !ok {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.TurnCount++
	sc.snap.Turns = append(sc.snap.Turns, p)
	if len(sc.snap.Turns) > maxRecentTurns {
		sc.snap.Turns = sc.snap.Turns[len(sc.snap.Turns)-maxRecentTurns:]
	}
	return nil
}

func (sc *SnapshotCache) onDiscrepancy(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.DiscrepancyPayload)
	if !ok || p.Resolved {
		// The resolution event re-reports the episode counted at detection.
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.Discrepancies++
	return nil
}

func (sc *SnapshotCache) onBattleEnded(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BattleEndedPayload)
	if !ok {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.BattleActive = false
	sc.snap.Outcome = &p
	return nil
}

func (sc *SnapshotCache) onRematchAgreed(ctx context.Context, event events.Event) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.BattleActive = false
	sc.snap.Outcome = nil
	sc.snap.TurnCount = 0
	sc.snap.Turns = nil
	return nil
}

func (sc *SnapshotCache) onChat(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ChatPayload)
	if !ok {
		return nil
	}
	line := chatLine{
		Sender:      p.Sender,
		ContentType: p.ContentType,
		Text:        p.Text,
		Outbound:    p.Outbound,
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.snap.Chat = append(sc.snap.Chat, line)
	if len(sc.snap.Chat) > maxRecentChat {
		sc.snap.Chat = sc.snap.Chat[len(sc.snap.Chat)-maxRecentChat:]
	}
	return nil
}
