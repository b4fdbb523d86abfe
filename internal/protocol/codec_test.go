package protocol

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"ack", &Ack{AckNumber: 17}},
		{"handshake_request", &HandshakeRequest{seq: seq{SequenceNumber: 1}}},
		{"handshake_response", &HandshakeResponse{seq: seq{SequenceNumber: 1}, Seed: 42}},
		{"spectator_request", &SpectatorRequest{seq: seq{SequenceNumber: 3}}},
		{"battle_setup", &BattleSetup{
			seq:               seq{SequenceNumber: 2},
			CommunicationMode: ModeP2P,
			PokemonName:       "Pikachu",
			StatBoosts:        "{special_attack_uses: 5, special_defense_uses: 5}",
			PokemonData:       "{attack: 55, defense: 40, hp: 35, name: Pikachu, sp_attack: 50, sp_defense: 50, type1: electric, type2: }",
		}},
		{"attack_announce", &AttackAnnounce{seq: seq{SequenceNumber: 4}, MoveName: "Thunderbolt"}},
		{"attack_announce_boosted", &AttackAnnounce{seq: seq{SequenceNumber: 5}, MoveName: "Thunderbolt", UseAttackBoost: true}},
		{"defense_announce", &DefenseAnnounce{seq: seq{SequenceNumber: 4}}},
		{"defense_announce_boosted", &DefenseAnnounce{seq: seq{SequenceNumber: 6}, UseDefenseBoost: true}},
		{"calc_report", &CalcReport{
			seq:                 seq{SequenceNumber: 5},
			Attacker:            "Pikachu",
			MoveUsed:            "Thunderbolt",
			RemainingHealth:     35,
			DamageDealt:         34,
			DefenderHPRemaining: 5,
			StatusMessage:       "It's super effective!",
		}},
		{"calc_report_lethal", &CalcReport{
			seq:                 seq{SequenceNumber: 9},
			Attacker:            "Pikachu",
			MoveUsed:            "Thunderbolt",
			RemainingHealth:     12,
			DamageDealt:         51,
			DefenderHPRemaining: -12,
			StatusMessage:       "It's super effective!",
		}},
		{"calc_confirm", &CalcConfirm{seq: seq{SequenceNumber: 6}}},
		{"resolution_request", &ResolutionRequest{
			seq:                 seq{SequenceNumber: 7},
			Attacker:            "Charmander",
			MoveUsed:            "Ember",
			DamageDealt:         12,
			DefenderHPRemaining: 23,
		}},
		{"game_over", &GameOver{seq: seq{SequenceNumber: 8}, Winner: "Pikachu", Loser: "Charmander"}},
		{"rematch_request", &RematchRequest{seq: seq{SequenceNumber: 9}, WantsRematch: true}},
		{"rematch_declined", &RematchRequest{seq: seq{SequenceNumber: 10}}},
		{"chat_text", &ChatMessage{
			seq:         seq{SequenceNumber: 11},
			SenderName:  "Joiner",
			ContentType: ContentText,
			MessageText: "gg",
		}},
		{"chat_sticker", &ChatMessage{
			seq:         seq{SequenceNumber: 12},
			SenderName:  "Host",
			ContentType: ContentSticker,
			StickerData: "aGVsbG8=",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(Encode(tt.msg))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.msg) {
				t.Errorf("round trip mismatch:\n got %#v\nwant %#v", got, tt.msg)
			}
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	msg := &CalcReport{
		seq:                 seq{SequenceNumber: 5},
		Attacker:            "Pikachu",
		MoveUsed:            "Thunderbolt",
		RemainingHealth:     35,
		DamageDealt:         34,
		DefenderHPRemaining: 5,
		StatusMessage:       "It's super effective!",
	}
	a := string(Encode(msg))
	b := string(Encode(msg))
	if a != b {
		t.Errorf("encoding is not deterministic:\n%q\n%q", a, b)
	}
}

func TestEncodeLayout(t *testing.T) {
	data := Encode(&AttackAnnounce{seq: seq{SequenceNumber: 4}, MoveName: "Thunderbolt"})
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	want := []string{
		"message_type: ATTACK_ANNOUNCE",
		"move_name: Thunderbolt",
		"sequence_number: 4",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("wire layout mismatch:\n got %q\nwant %q", lines, want)
	}
}

func TestEncodeOmitsFalseBoost(t *testing.T) {
	data := string(Encode(&AttackAnnounce{seq: seq{SequenceNumber: 1}, MoveName: "Tackle"}))
	if strings.Contains(data, "use_attack_boost") {
		t.Errorf("unboosted announce should omit the boost field, got:\n%s", data)
	}
}

func TestEncodeAckHasNoSequence(t *testing.T) {
	data := string(Encode(&Ack{AckNumber: 9}))
	if strings.Contains(data, "sequence_number") {
		t.Errorf("ACK must not carry a sequence number, got:\n%s", data)
	}
	if !strings.Contains(data, "ack_number: 9") {
		t.Errorf("ACK missing ack_number, got:\n%s", data)
	}
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	raw := "message_type: ATTACK_ANNOUNCE\nmove_name: Tackle\nfuture_field: whatever\nsequence_number: 3\n"
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	atk, ok := msg.(*AttackAnnounce)
	if !ok {
		t.Fatalf("decoded wrong type %T", msg)
	}
	if atk.MoveName != "Tackle" || atk.Sequence() != 3 {
		t.Errorf("unexpected fields: %#v", atk)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no message type", "move_name: Tackle\nsequence_number: 1\n"},
		{"unknown kind", "message_type: TELEPORT\nsequence_number: 1\n"},
		{"missing sequence", "message_type: ATTACK_ANNOUNCE\nmove_name: Tackle\n"},
		{"missing required field", "message_type: ATTACK_ANNOUNCE\nsequence_number: 1\n"},
		{"bad sequence", "message_type: ATTACK_ANNOUNCE\nmove_name: Tackle\nsequence_number: soon\n"},
		{"ack without number", "message_type: ACK\n"},
		{"bad communication mode", "message_type: BATTLE_SETUP\ncommunication_mode: CARRIER_PIGEON\npokemon_name: Pikachu\nstat_boosts: {}\npokemon_data: {}\nsequence_number: 2\n"},
		{"bad content type", "message_type: CHAT_MESSAGE\nsender_name: Host\ncontent_type: VIDEO\nsequence_number: 3\n"},
		{"not key value", "message_type: GAME_OVER\ngarbage line\nsequence_number: 4\n"},
		{"oversized seed", "message_type: HANDSHAKE_RESPONSE\nseed: 4294967296\nsequence_number: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("want ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestDecodeCRLF(t *testing.T) {
	raw := "message_type: HANDSHAKE_RESPONSE\r\nseed: 42\r\nsequence_number: 1\r\n"
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	resp, ok := msg.(*HandshakeResponse)
	if !ok || resp.Seed != 42 {
		t.Errorf("unexpected decode result: %#v", msg)
	}
}
