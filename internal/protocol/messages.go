// Package protocol implements the text wire codec for peer-to-peer battle
// traffic. Messages are UTF-8, one per datagram, composed of newline-separated
// "key: value" lines. The first line is always "message_type: <KIND>" and the
// last line of every kind except ACK is the sender-scoped sequence_number.
package protocol

// Kind identifies a wire message type. Values match the strings carried on
// the message_type line.
type Kind string

const (
	KindAck               Kind = "ACK"
	KindHandshakeRequest  Kind = "HANDSHAKE_REQUEST"
	KindHandshakeResponse Kind = "HANDSHAKE_RESPONSE"
	KindSpectatorRequest  Kind = "SPECTATOR_REQUEST"
	KindBattleSetup       Kind = "BATTLE_SETUP"
	KindAttackAnnounce    Kind = "ATTACK_ANNOUNCE"
	KindDefenseAnnounce   Kind = "DEFENSE_ANNOUNCE"
	KindCalcReport        Kind = "CALCULATION_REPORT"
	KindCalcConfirm       Kind = "CALCULATION_CONFIRM"
	KindResolutionRequest Kind = "RESOLUTION_REQUEST"
	KindGameOver          Kind = "GAME_OVER"
	KindRematchRequest    Kind = "REMATCH_REQUEST"
	KindChatMessage       Kind = "CHAT_MESSAGE"
)

// Chat content types.
const (
	ContentText    = "TEXT"
	ContentSticker = "STICKER"
)

// Communication modes carried in BattleSetup.
const (
	ModeP2P       = "P2P"
	ModeBroadcast = "BROADCAST"
)

// MaxSafePayload is the largest UDP payload that avoids IP fragmentation on a
// standard 1500-byte MTU. The codec never truncates; larger datagrams are
// sent at the application's own fragmentation risk.
const MaxSafePayload = 1472

// Message is the closed set of wire message variants. Every variant except
// Ack also implements Sequenced.
type Message interface {
	Kind() Kind
}

// Sequenced is implemented by every message kind that carries a
// sender-scoped sequence number (all kinds except ACK).
type Sequenced interface {
	Message
	Sequence() uint64
	SetSequence(uint64)
}

// seq carries the sequence_number line shared by all non-ACK kinds.
type seq struct {
	SequenceNumber uint64
}

func (s *seq) Sequence() uint64     { return s.SequenceNumber }
func (s *seq) SetSequence(n uint64) { s.SequenceNumber = n }

// Ack acknowledges receipt of the message numbered AckNumber. ACKs are not
// themselves acknowledged and carry no sequence number.
type Ack struct {
	AckNumber uint64
}

func (*Ack) Kind() Kind { return KindAck }

// HandshakeRequest opens a Joiner connection. It carries no fields beyond
// its sequence number.
type HandshakeRequest struct {
	seq
}

func (*HandshakeRequest) Kind() Kind { return KindHandshakeRequest }

// HandshakeResponse completes a handshake and distributes the shared battle
// seed. Seed is 0 when a Spectator joins before any battle has started.
type HandshakeResponse struct {
	seq
	Seed uint32
}

func (*HandshakeResponse) Kind() Kind { return KindHandshakeResponse }

// SpectatorRequest asks the Host for read-only observation of the session.
type SpectatorRequest struct {
	seq
}

func (*SpectatorRequest) Kind() Kind { return KindSpectatorRequest }

// BattleSetup declares a peer's chosen Pokemon. StatBoosts and PokemonData
// are nested object literals; the codec treats them as opaque strings and the
// session layer parses them.
type BattleSetup struct {
	seq
	CommunicationMode string
	PokemonName       string
	StatBoosts        string
	PokemonData       string
}

func (*BattleSetup) Kind() Kind { return KindBattleSetup }

// AttackAnnounce opens a turn. UseAttackBoost is emitted on the wire only
// when true.
type AttackAnnounce struct {
	seq
	MoveName       string
	UseAttackBoost bool
}

func (*AttackAnnounce) Kind() Kind { return KindAttackAnnounce }

// DefenseAnnounce answers an AttackAnnounce. UseDefenseBoost is emitted on
// the wire only when true.
type DefenseAnnounce struct {
	seq
	UseDefenseBoost bool
}

func (*DefenseAnnounce) Kind() Kind { return KindDefenseAnnounce }

// CalcReport carries one peer's independent damage computation for the
// current turn. Both peers must produce identical DamageDealt and
// DefenderHPRemaining values.
type CalcReport struct {
	seq
	Attacker            string
	MoveUsed            string
	RemainingHealth     int
	DamageDealt         uint32
	DefenderHPRemaining int
	StatusMessage       string
}

func (*CalcReport) Kind() Kind { return KindCalcReport }

// CalcConfirm signals agreement with the counterparty's CalcReport.
type CalcConfirm struct {
	seq
}

func (*CalcConfirm) Kind() Kind { return KindCalcConfirm }

// ResolutionRequest proposes values after a calculation discrepancy.
type ResolutionRequest struct {
	seq
	Attacker            string
	MoveUsed            string
	DamageDealt         uint32
	DefenderHPRemaining int
}

func (*ResolutionRequest) Kind() Kind { return KindResolutionRequest }

// GameOver announces the battle outcome.
type GameOver struct {
	seq
	Winner string
	Loser  string
}

func (*GameOver) Kind() Kind { return KindGameOver }

// RematchRequest asks the counterparty for another battle after GameOver.
type RematchRequest struct {
	seq
	WantsRematch bool
}

func (*RematchRequest) Kind() Kind { return KindRematchRequest }

// ChatMessage carries a TEXT or STICKER chat line. MessageText is present
// only for TEXT, StickerData (Base64) only for STICKER.
type ChatMessage struct {
	seq
	SenderName  string
	ContentType string
	MessageText string
	StickerData string
}

func (*ChatMessage) Kind() Kind { return KindChatMessage }
