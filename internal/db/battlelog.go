package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pokeproto-project/pokebattle/internal/events"
	"github.com/pokeproto-project/pokebattle/internal/util"
)

const battleLogSchema = `
CREATE TABLE IF NOT EXISTS battles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at    TEXT NOT NULL,
	ended_at      TEXT,
	my_pokemon    TEXT NOT NULL,
	opp_pokemon   TEXT NOT NULL,
	seed          INTEGER NOT NULL,
	winner        TEXT,
	loser         TEXT,
	turns         INTEGER NOT NULL DEFAULT 0,
	desync        INTEGER NOT NULL DEFAULT 0,
	aborted       INTEGER NOT NULL DEFAULT 0,
	reason        TEXT
);

CREATE TABLE IF NOT EXISTS turns (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	battle_id     INTEGER NOT NULL REFERENCES battles(id),
	turn_number   INTEGER NOT NULL,
	attacker      TEXT NOT NULL,
	defender      TEXT NOT NULL,
	move          TEXT NOT NULL,
	damage        INTEGER NOT NULL,
	defender_hp   INTEGER NOT NULL,
	status        TEXT,
	attack_boost  INTEGER NOT NULL DEFAULT 0,
	defense_boost INTEGER NOT NULL DEFAULT 0,
	recorded_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chat (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	battle_id     INTEGER,
	sender        TEXT NOT NULL,
	content_type  TEXT NOT NULL,
	message       TEXT,
	outbound      INTEGER NOT NULL DEFAULT 0,
	recorded_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS discrepancies (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	battle_id      INTEGER,
	turn_number    INTEGER NOT NULL,
	local_damage   INTEGER NOT NULL,
	remote_damage  INTEGER NOT NULL,
	resolved       INTEGER NOT NULL DEFAULT 0,
	recorded_at    TEXT NOT NULL
);
`

// BattleLog records battle history from event-bus notifications. Handlers
// run on bus goroutines; the current-battle cursor is mutex-guarded.
type BattleLog struct {
	logger zerolog.Logger
	db     *store

	mu       sync.Mutex
	battleID int64
}

// NewBattleLog opens the battle-log database and creates the schema.
func NewBattleLog(dbPath string) (*BattleLog, error) {
	st, err := openStore(dbPath, battleLogSchema)
	if err != nil {
		return nil, err
	}
	b := &BattleLog{
		logger: util.ComponentLogger("battlelog"),
		db:     st,
	}
	b.logger.Info().Str("path", dbPath).Msg("battle log opened")
	return b, nil
}

// Close releases the underlying database.
func (b *BattleLog) Close() error {
	return b.db.Close()
}

// Attach subscribes the log to the battle event stream.
func (b *BattleLog) Attach(bus *events.EventBus) {
	bus.Subscribe(events.EventBattleStarted, "battlelog.started", b.onBattleStarted)
	bus.Subscribe(events.EventTurnCommitted, "battlelog.turn", b.onTurnCommitted)
	bus.Subscribe(events.EventChatReceived, "battlelog.chat", b.onChat)
	bus.Subscribe(events.EventDiscrepancy, "battlelog.discrepancy", b.onDiscrepancy)
	bus.Subscribe(events.EventBattleEnded, "battlelog.ended", b.onBattleEnded)
}

func (b *BattleLog) onBattleStarted(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BattleStartedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	res, err := b.db.Exec(
		`INSERT INTO battles (started_at, my_pokemon, opp_pokemon, seed) VALUES (?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), p.MyPokemon, p.OppPokemon, p.Seed,
	)
	if err != nil {
		return fmt.Errorf("recording battle start: %w", err)
	}
	id, _ := res.LastInsertId()

	b.mu.Lock()
	b.battleID = id
	b.mu.Unlock()

	b.logger.Debug().Int64("battle_id", id).Msg("battle recorded")
	return nil
}

func (b *BattleLog) onTurnCommitted(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TurnCommittedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	_, err := b.db.Exec(
		`INSERT INTO turns (battle_id, turn_number, attacker, defender, move, damage, defender_hp, status, attack_boost, defense_boost, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.currentBattle(), p.TurnNumber, p.Attacker, p.Defender, p.Move, p.Damage,
		p.DefenderHP, p.Status, p.AttackBoost, p.DefenseBoost,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording turn %d: %w", p.TurnNumber, err)
	}
	return nil
}

func (b *BattleLog) onChat(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ChatPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	// Sticker bytes stay out of the log; the row records that one arrived.
	text := p.Text
	if p.ContentType != "TEXT" && text == "" {
		text = fmt.Sprintf("<%d sticker bytes>", len(p.Sticker))
	}

	_, err := b.db.Exec(
		`INSERT INTO chat (battle_id, sender, content_type, message, outbound, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.currentBattle(), p.Sender, p.ContentType, text, p.Outbound,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording chat line: %w", err)
	}
	return nil
}

func (b *BattleLog) onDiscrepancy(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.DiscrepancyPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	_, err := b.db.Exec(
		`INSERT INTO discrepancies (battle_id, turn_number, local_damage, remote_damage, resolved, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		b.currentBattle(), p.TurnNumber, p.LocalDamage, p.RemoteDamage, p.Resolved,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording discrepancy: %w", err)
	}
	return nil
}

func (b *BattleLog) onBattleEnded(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BattleEndedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	_, err := b.db.Exec(
		`UPDATE battles SET ended_at = ?, winner = ?, loser = ?, turns = ?, desync = ?, aborted = ?, reason = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), p.Winner, p.Loser, p.Turns,
		p.Desync, p.Aborted, p.Reason, b.currentBattle(),
	)
	if err != nil {
		return fmt.Errorf("recording battle end: %w", err)
	}
	return nil
}

func (b *BattleLog) currentBattle() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.battleID
}

// BattleRecord is one finished or in-progress battle row.
type BattleRecord struct {
	ID         int64
	StartedAt  string
	EndedAt    string
	MyPokemon  string
	OppPokemon string
	Seed       uint32
	Winner     string
	Loser      string
	Turns      int
	Desync     bool
	Aborted    bool
	Reason     string
}

// RecentBattles returns the most recent battles, newest first.
func (b *BattleLog) RecentBattles(limit int) ([]BattleRecord, error) {
	rows, err := b.db.Query(
		`SELECT id, started_at, COALESCE(ended_at, ''), my_pokemon, opp_pokemon, seed,
		        COALESCE(winner, ''), COALESCE(loser, ''), turns, desync, aborted, COALESCE(reason, '')
		 FROM battles ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying battles: %w", err)
	}
	defer rows.Close()

	var out []BattleRecord
	for rows.Next() {
		var r BattleRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.EndedAt, &r.MyPokemon, &r.OppPokemon,
			&r.Seed, &r.Winner, &r.Loser, &r.Turns, &r.Desync, &r.Aborted, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TurnRecord is one recorded turn row.
type TurnRecord struct {
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

// BattleTurns returns the turns of one battle in order.
func (b *BattleLog) BattleTurns(battleID int64) ([]TurnRecord, error) {
	rows, err := b.db.Query(
		`SELECT turn_number, attacker, defender, move, damage, defender_hp,
		        COALESCE(status, ''), attack_boost, defense_boost
		 FROM turns WHERE battle_id = ? ORDER BY turn_number`, battleID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var out []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.TurnNumber, &t.Attacker, &t.Defender, &t.Move, &t.Damage,
			&t.DefenderHP, &t.Status, &t.AttackBoost, &t.DefenseBoost); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Record counts for the status surfaces.
func (b *BattleLog) Counts() (battles, turns int, err error) {
	row := b.db.QueryRow(`SELECT (SELECT COUNT(*) FROM battles), (SELECT COUNT(*) FROM turns)`)
	if err := row.Scan(&battles, &turns); err != nil && err != sql.ErrNoRows {
		return 0, 0, err
	}
	return battles, turns, nil
}
