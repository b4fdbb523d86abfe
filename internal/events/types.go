// Package events defines event types and the publish-subscribe bus that
// decouples the peer loop from its observers: the CLI renderer, the battle
// log, telemetry, and the HTTP API.
package events

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle events
	EventPeerConnected    EventType = "peer_connected"
	EventPeerLost         EventType = "peer_lost"
	EventSpectatorJoined  EventType = "spectator_joined"
	EventSessionClosed    EventType = "session_closed"

	// Battle events
	EventBattleStarted    EventType = "battle_started"
	EventTurnCommitted    EventType = "turn_committed"
	EventDiscrepancy      EventType = "calculation_discrepancy"
	EventBattleEnded      EventType = "battle_ended"
	EventRematchAgreed    EventType = "rematch_agreed"

	// Chat events
	EventChatReceived     EventType = "chat_received"

	// System events
	EventConfigChanged    EventType = "config_changed"
	EventShutdown         EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// PeerPayload identifies a counterparty for connection events.
type PeerPayload struct {
	Addr string
	Role string // "host", "joiner", "spectator"
}

// BattleStartedPayload is emitted once both BattleSetup messages have been
// exchanged.
type BattleStartedPayload struct {
	MyPokemon  string
	OppPokemon string
	Seed       uint32
	HostOpens  bool
}

// TurnCommittedPayload carries one agreed turn.
type TurnCommittedPayload struct {
	TurnNumber   int
	Attacker     string
	Defender     string
	Move         string
	Damage       uint32
	DefenderHP   int
	Status       string
	AttackBoost  bool
	DefenseBoost bool
}

// DiscrepancyPayload is emitted when the calculation reports disagree.
type DiscrepancyPayload struct {
	TurnNumber   int
	LocalDamage  uint32
	RemoteDamage uint32
	Resolved     bool
}

// BattleEndedPayload is emitted on any terminal outcome.
type BattleEndedPayload struct {
	Winner  string
	Loser   string
	Turns   int
	Desync  bool
	Aborted bool
	Reason  string
}

// ChatPayload carries one chat message in either direction.
type ChatPayload struct {
	Sender      string
	ContentType string
	Text        string
	Sticker     []byte
	Outbound    bool
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Key   string
	Value interface{}
}
