package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pokeproto-project/pokebattle/internal/events"
)

func newTestLog(t *testing.T) *BattleLog {
	t.Helper()
	bl, err := NewBattleLog(filepath.Join(t.TempDir(), "battles.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bl.Close() })
	return bl
}

func startBattle(t *testing.T, bl *BattleLog) {
	t.Helper()
	err := bl.onBattleStarted(context.Background(), events.Event{
		Type: events.EventBattleStarted,
		Payload: events.BattleStartedPayload{
			MyPokemon:  "Pikachu",
			OppPokemon: "Charmander",
			Seed:       42,
			HostOpens:  true,
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestBattleLifecycleRecorded(t *testing.T) {
	bl := newTestLog(t)
	startBattle(t, bl)

	turn := events.Event{
		Type: events.EventTurnCommitted,
		Payload: events.TurnCommittedPayload{
			TurnNumber: 1,
			Attacker:   "Pikachu",
			Defender:   "Charmander",
			Move:       "Thunderbolt",
			Damage:     57,
			DefenderHP: 50,
			Status:     "It's super effective!",
		},
	}
	if err := bl.onTurnCommitted(context.Background(), turn); err != nil {
		t.Fatal(err)
	}
	end := events.Event{
		Type: events.EventBattleEnded,
		Payload: events.BattleEndedPayload{
			Winner: "Pikachu",
			Loser:  "Charmander",
			Turns:  1,
		},
	}
	if err := bl.onBattleEnded(context.Background(), end); err != nil {
		t.Fatal(err)
	}

	battles, err := bl.RecentBattles(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(battles) != 1 {
		t.Fatalf("got %d battles, want 1", len(battles))
	}
	got := battles[0]
	if got.Winner != "Pikachu" || got.Turns != 1 || got.EndedAt == "" {
		t.Errorf("battle row = %+v", got)
	}

	turns, err := bl.BattleTurns(got.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 1 || turns[0].Move != "Thunderbolt" || turns[0].Damage != 57 {
		t.Errorf("turn rows = %+v", turns)
	}
}

func TestChatAndDiscrepancyRecorded(t *testing.T) {
	bl := newTestLog(t)
	startBattle(t, bl)

	chat := events.Event{
		Type:    events.EventChatReceived,
		Payload: events.ChatPayload{Sender: "Host", ContentType: "TEXT", Text: "gl hf"},
	}
	if err := bl.onChat(context.Background(), chat); err != nil {
		t.Fatal(err)
	}
	sticker := events.Event{
		Type:    events.EventChatReceived,
		Payload: events.ChatPayload{Sender: "Joiner", ContentType: "STICKER", Sticker: make([]byte, 128)},
	}
	if err := bl.onChat(context.Background(), sticker); err != nil {
		t.Fatal(err)
	}
	disc := events.Event{
		Type:    events.EventDiscrepancy,
		Payload: events.DiscrepancyPayload{TurnNumber: 3, LocalDamage: 40, RemoteDamage: 44},
	}
	if err := bl.onDiscrepancy(context.Background(), disc); err != nil {
		t.Fatal(err)
	}

	var chatRows, discRows int
	row := bl.db.QueryRow(`SELECT (SELECT COUNT(*) FROM chat), (SELECT COUNT(*) FROM discrepancies)`)
	if err := row.Scan(&chatRows, &discRows); err != nil {
		t.Fatal(err)
	}
	if chatRows != 2 || discRows != 1 {
		t.Errorf("chat rows = %d, discrepancy rows = %d", chatRows, discRows)
	}
}

func TestWrongPayloadTypeRejected(t *testing.T) {
	bl := newTestLog(t)
	err := bl.onBattleStarted(context.Background(), events.Event{
		Type:    events.EventBattleStarted,
		Payload: "not a struct",
	})
	if err == nil {
		t.Fatal("mistyped payload should be rejected")
	}
}

func TestCounts(t *testing.T) {
	bl := newTestLog(t)
	startBattle(t, bl)
	battles, turns, err := bl.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if battles != 1 || turns != 0 {
		t.Errorf("counts = %d battles, %d turns", battles, turns)
	}
}
