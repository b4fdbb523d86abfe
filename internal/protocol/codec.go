package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedMessage is returned by Decode when a datagram cannot be parsed
// as a known message kind. Callers drop the datagram without acknowledging.
var ErrMalformedMessage = errors.New("malformed message")

func malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// Encode serializes a message to its wire form. Field order is fixed per
// kind, so byte-identical inputs produce byte-identical datagrams on both
// peers: message_type first, kind fields in declaration order,
// sequence_number last. Optional boolean fields are emitted only when true.
func Encode(m Message) []byte {
	var b strings.Builder
	writeField(&b, "message_type", string(m.Kind()))

	switch msg := m.(type) {
	case *Ack:
		writeField(&b, "ack_number", strconv.FormatUint(msg.AckNumber, 10))
		return []byte(b.String())
	case *HandshakeRequest, *SpectatorRequest, *CalcConfirm:
		// Sequence number only.
	case *HandshakeResponse:
		writeField(&b, "seed", strconv.FormatUint(uint64(msg.Seed), 10))
	case *BattleSetup:
		writeField(&b, "communication_mode", msg.CommunicationMode)
		writeField(&b, "pokemon_name", msg.PokemonName)
		writeField(&b, "stat_boosts", msg.StatBoosts)
		writeField(&b, "pokemon_data", msg.PokemonData)
	case *AttackAnnounce:
		writeField(&b, "move_name", msg.MoveName)
		if msg.UseAttackBoost {
			writeField(&b, "use_attack_boost", "true")
		}
	case *DefenseAnnounce:
		if msg.UseDefenseBoost {
			writeField(&b, "use_defense_boost", "true")
		}
	case *CalcReport:
		writeField(&b, "attacker", msg.Attacker)
		writeField(&b, "move_used", msg.MoveUsed)
		writeField(&b, "remaining_health", strconv.Itoa(msg.RemainingHealth))
		writeField(&b, "damage_dealt", strconv.FormatUint(uint64(msg.DamageDealt), 10))
		writeField(&b, "defender_hp_remaining", strconv.Itoa(msg.DefenderHPRemaining))
		writeField(&b, "status_message", msg.StatusMessage)
	case *ResolutionRequest:
		writeField(&b, "attacker", msg.Attacker)
		writeField(&b, "move_used", msg.MoveUsed)
		writeField(&b, "damage_dealt", strconv.FormatUint(uint64(msg.DamageDealt), 10))
		writeField(&b, "defender_hp_remaining", strconv.Itoa(msg.DefenderHPRemaining))
	case *GameOver:
		writeField(&b, "winner", msg.Winner)
		writeField(&b, "loser", msg.Loser)
	case *RematchRequest:
		writeField(&b, "wants_rematch", strconv.FormatBool(msg.WantsRematch))
	case *ChatMessage:
		writeField(&b, "sender_name", msg.SenderName)
		writeField(&b, "content_type", msg.ContentType)
		if msg.ContentType == ContentSticker {
			writeField(&b, "sticker_data", msg.StickerData)
		} else {
			writeField(&b, "message_text", msg.MessageText)
		}
	}

	if s, ok := m.(Sequenced); ok {
		writeField(&b, "sequence_number", strconv.FormatUint(s.Sequence(), 10))
	}
	return []byte(b.String())
}

func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

// fields is the decoded key/value view of a datagram. Unknown keys are kept
// but ignored; lookups of required keys fail with ErrMalformedMessage.
type fields map[string]string

func (f fields) get(key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", malformedf("missing required field %q", key)
	}
	return v, nil
}

func (f fields) uint64Field(key string) (uint64, error) {
	v, err := f.get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, malformedf("field %q is not a non-negative integer: %q", key, v)
	}
	return n, nil
}

func (f fields) intField(key string) (int, error) {
	v, err := f.get(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, malformedf("field %q is not an integer: %q", key, v)
	}
	return n, nil
}

// boolField reads an optional boolean. Absent means false.
func (f fields) boolField(key string) bool {
	v, ok := f[key]
	if !ok {
		return false
	}
	return v == "true" || v == "True"
}

// Decode parses a datagram into a message. Unknown keys are ignored; an
// unknown message_type or a missing required field yields
// ErrMalformedMessage.
func Decode(data []byte) (Message, error) {
	f, err := splitFields(data)
	if err != nil {
		return nil, err
	}

	kindStr, err := f.get("message_type")
	if err != nil {
		return nil, err
	}

	if Kind(kindStr) == KindAck {
		n, err := f.uint64Field("ack_number")
		if err != nil {
			return nil, err
		}
		return &Ack{AckNumber: n}, nil
	}

	seqNum, err := f.uint64Field("sequence_number")
	if err != nil {
		return nil, err
	}

	msg, err := decodeKind(Kind(kindStr), f)
	if err != nil {
		return nil, err
	}
	msg.SetSequence(seqNum)
	return msg, nil
}

func decodeKind(kind Kind, f fields) (Sequenced, error) {
	switch kind {
	case KindHandshakeRequest:
		return &HandshakeRequest{}, nil
	case KindSpectatorRequest:
		return &SpectatorRequest{}, nil
	case KindCalcConfirm:
		return &CalcConfirm{}, nil
	case KindHandshakeResponse:
		seed, err := f.uint64Field("seed")
		if err != nil {
			return nil, err
		}
		if seed > 1<<32-1 {
			return nil, malformedf("seed %d exceeds 32 bits", seed)
		}
		return &HandshakeResponse{Seed: uint32(seed)}, nil
	case KindBattleSetup:
		mode, err := f.get("communication_mode")
		if err != nil {
			return nil, err
		}
		if mode != ModeP2P && mode != ModeBroadcast {
			return nil, malformedf("unknown communication_mode %q", mode)
		}
		name, err := f.get("pokemon_name")
		if err != nil {
			return nil, err
		}
		boosts, err := f.get("stat_boosts")
		if err != nil {
			return nil, err
		}
		data, err := f.get("pokemon_data")
		if err != nil {
			return nil, err
		}
		return &BattleSetup{
			CommunicationMode: mode,
			PokemonName:       name,
			StatBoosts:        boosts,
			PokemonData:       data,
		}, nil
	case KindAttackAnnounce:
		move, err := f.get("move_name")
		if err != nil {
			return nil, err
		}
		return &AttackAnnounce{
			MoveName:       move,
			UseAttackBoost: f.boolField("use_attack_boost"),
		}, nil
	case KindDefenseAnnounce:
		return &DefenseAnnounce{UseDefenseBoost: f.boolField("use_defense_boost")}, nil
	case KindCalcReport:
		return decodeCalcReport(f)
	case KindResolutionRequest:
		return decodeResolutionRequest(f)
	case KindGameOver:
		winner, err := f.get("winner")
		if err != nil {
			return nil, err
		}
		loser, err := f.get("loser")
		if err != nil {
			return nil, err
		}
		return &GameOver{Winner: winner, Loser: loser}, nil
	case KindRematchRequest:
		v, err := f.get("wants_rematch")
		if err != nil {
			return nil, err
		}
		return &RematchRequest{WantsRematch: v == "true" || v == "True"}, nil
	case KindChatMessage:
		return decodeChatMessage(f)
	default:
		return nil, malformedf("unknown message_type %q", kind)
	}
}

func decodeCalcReport(f fields) (Sequenced, error) {
	attacker, err := f.get("attacker")
	if err != nil {
		return nil, err
	}
	move, err := f.get("move_used")
	if err != nil {
		return nil, err
	}
	remaining, err := f.intField("remaining_health")
	if err != nil {
		return nil, err
	}
	damage, err := f.uint64Field("damage_dealt")
	if err != nil {
		return nil, err
	}
	defenderHP, err := f.intField("defender_hp_remaining")
	if err != nil {
		return nil, err
	}
	status, err := f.get("status_message")
	if err != nil {
		return nil, err
	}
	return &CalcReport{
		Attacker:            attacker,
		MoveUsed:            move,
		RemainingHealth:     remaining,
		DamageDealt:         uint32(damage),
		DefenderHPRemaining: defenderHP,
		StatusMessage:       status,
	}, nil
}

func decodeResolutionRequest(f fields) (Sequenced, error) {
	attacker, err := f.get("attacker")
	if err != nil {
		return nil, err
	}
	move, err := f.get("move_used")
	if err != nil {
		return nil, err
	}
	damage, err := f.uint64Field("damage_dealt")
	if err != nil {
		return nil, err
	}
	defenderHP, err := f.intField("defender_hp_remaining")
	if err != nil {
		return nil, err
	}
	return &ResolutionRequest{
		Attacker:            attacker,
		MoveUsed:            move,
		DamageDealt:         uint32(damage),
		DefenderHPRemaining: defenderHP,
	}, nil
}

func decodeChatMessage(f fields) (Sequenced, error) {
	sender, err := f.get("sender_name")
	if err != nil {
		return nil, err
	}
	content, err := f.get("content_type")
	if err != nil {
		return nil, err
	}
	msg := &ChatMessage{SenderName: sender, ContentType: content}
	switch content {
	case ContentText:
		text, err := f.get("message_text")
		if err != nil {
			return nil, err
		}
		msg.MessageText = text
	case ContentSticker:
		data, err := f.get("sticker_data")
		if err != nil {
			return nil, err
		}
		msg.StickerData = data
	default:
		return nil, malformedf("unknown content_type %q", content)
	}
	return msg, nil
}

// splitFields breaks a datagram into key/value lines. Later occurrences of a
// key overwrite earlier ones. A line without ": " is a framing error.
func splitFields(data []byte) (fields, error) {
	if len(data) == 0 {
		return nil, malformedf("empty datagram")
	}
	f := make(fields)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			// Tolerate "key:" with an empty value but reject lines
			// with no separator at all.
			k, ok2 := strings.CutSuffix(line, ":")
			if !ok2 {
				return nil, malformedf("line %q is not a key: value pair", line)
			}
			key, value = k, ""
		}
		f[key] = value
	}
	if len(f) == 0 {
		return nil, malformedf("datagram contains no fields")
	}
	return f, nil
}
