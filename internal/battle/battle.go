// Package battle implements the per-turn state machine: the four-step
// Attack/Defense/CalcReport/CalcConfirm exchange, discrepancy resolution,
// boost accounting, and game-over detection. The machine is pure with
// respect to the network: handlers return the messages to transmit and the
// caller owns delivery.
package battle

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pokeproto-project/pokebattle/internal/damage"
	"github.com/pokeproto-project/pokebattle/internal/pokedex"
	"github.com/pokeproto-project/pokebattle/internal/protocol"
)

// State of the battle machine.
type State string

const (
	StateSetup          State = "setup"
	StateWaitingForMove State = "waiting_for_move"
	StateProcessingTurn State = "processing_turn"
	StateResolving      State = "resolving"
	StateGameOver       State = "game_over"
)

// TurnSummary describes one committed turn.
type TurnSummary struct {
	Attacker     string
	Defender     string
	Move         string
	Damage       uint32
	DefenderHP   int // clamped for display
	Status       string
	AttackBoost  bool
	DefenseBoost bool
	MyTurnNext   bool
}

// Outcome describes how the battle ended.
type Outcome struct {
	Winner  string
	Loser   string
	Desync  bool
	Aborted bool
	Reason  string
}

// DiscrepancyNote records one calculation disagreement: the two stated
// damage values and whether the resolution exchange settled it.
type DiscrepancyNote struct {
	LocalDamage  uint32
	RemoteDamage uint32
	Resolved     bool
}

// Output collects what a handler produced: messages to transmit to the
// counterparty, an optional committed turn, an optional discrepancy note,
// and an optional terminal outcome.
type Output struct {
	Send        []protocol.Sequenced
	Turn        *TurnSummary
	Discrepancy *DiscrepancyNote
	Over        *Outcome
}

// turn is the pending four-step exchange record.
type turn struct {
	attackerIsMe bool
	move         pokedex.Move
	attackBoost  bool
	defenseBoost bool

	computed bool
	result   damage.Result
	myHP     int // attacker remaining_health in my report
	defHP    int // unclamped defender HP after damage

	myConfirmSent       bool
	oppConfirmed        bool
	resolutionSent      bool
	resolutionResponded bool
	adoptedDamage       uint32
	hasAdoptedValues    bool
}

// Battle is one battle between the local Pokemon and the counterparty's.
// All methods must be called from the owning peer loop.
type Battle struct {
	logger  zerolog.Logger
	catalog *pokedex.Catalog
	engine  *damage.Engine

	mine   *Pokemon
	opp    *Pokemon
	isHost bool

	state  State
	myTurn bool

	pending     *turn
	earlyReport *protocol.CalcReport

	armedDefenseBoost bool

	outcome    *Outcome
	myRematch  *bool
	oppRematch *bool
}

// New starts a battle in Setup with the local Pokemon chosen. The damage
// engine is owned by the session so its random stream survives rematches.
func New(catalog *pokedex.Catalog, engine *damage.Engine, mine *Pokemon, isHost bool) *Battle {
	return &Battle{
		logger:  log.With().Str("component", "battle").Logger(),
		catalog: catalog,
		engine:  engine,
		mine:    mine,
		isHost:  isHost,
		state:   StateSetup,
	}
}

func (b *Battle) State() State       { return b.state }
func (b *Battle) MyTurn() bool       { return b.myTurn }
func (b *Battle) Mine() *Pokemon     { return b.mine }
func (b *Battle) Opponent() *Pokemon { return b.opp }
func (b *Battle) Outcome() *Outcome  { return b.outcome }

// SetOpponent installs the counterparty's Pokemon once its BattleSetup
// arrives and moves the machine to WaitingForMove. The Host opens.
func (b *Battle) SetOpponent(opp *Pokemon) error {
	if b.state != StateSetup {
		return fmt.Errorf("%w: opponent setup in state %s", ErrIllegalState, b.state)
	}
	b.opp = opp
	b.state = StateWaitingForMove
	b.myTurn = b.isHost
	b.logger.Info().
		Str("mine", b.mine.Name).
		Str("opponent", opp.Name).
		Bool("my_turn", b.myTurn).
		Msg("battle started")
	return nil
}

// SubmitMove begins the local turn. It consumes a declared attack boost and
// returns the AttackAnnounce to transmit. Once announced the turn cannot be
// rescinded.
func (b *Battle) SubmitMove(moveName string, useBoost bool) (*protocol.AttackAnnounce, error) {
	if b.state != StateWaitingForMove {
		return nil, fmt.Errorf("%w: cannot move in state %s", ErrIllegalState, b.state)
	}
	if !b.myTurn {
		return nil, fmt.Errorf("%w: not your turn", ErrIllegalTurn)
	}
	move, err := b.catalog.Move(moveName)
	if err != nil {
		return nil, err
	}
	if useBoost {
		if err := b.mine.ConsumeAttackBoost(); err != nil {
			return nil, err
		}
	}

	b.pending = &turn{attackerIsMe: true, move: move, attackBoost: useBoost}
	b.state = StateProcessingTurn
	b.logger.Debug().Str("move", move.Name).Bool("boost", useBoost).Msg("attack announced")
	return &protocol.AttackAnnounce{MoveName: move.Name, UseAttackBoost: useBoost}, nil
}

// ArmDefenseBoost declares a special-defense boost for the next incoming
// attack. Checked against the counter now, consumed when the attack lands.
func (b *Battle) ArmDefenseBoost() error {
	if b.mine.DefenseBoostsRemaining <= 0 {
		return fmt.Errorf("%w: no special-defense boosts left", ErrNoBoostAvailable)
	}
	b.armedDefenseBoost = true
	return nil
}

// HandleAttackAnnounce runs the defender path: answer with DefenseAnnounce,
// compute damage, and report. An announce received while holding the turn is
// an illegal-turn condition and is dropped.
func (b *Battle) HandleAttackAnnounce(msg *protocol.AttackAnnounce) (Output, error) {
	if b.state != StateWaitingForMove {
		return Output{}, fmt.Errorf("%w: attack announce in state %s", ErrIllegalState, b.state)
	}
	if b.myTurn {
		return Output{}, fmt.Errorf("%w: received attack while holding the turn", ErrIllegalTurn)
	}
	move, err := b.catalog.Move(msg.MoveName)
	if err != nil {
		return Output{}, fmt.Errorf("counterparty used %w", err)
	}

	defenseBoost := b.armedDefenseBoost
	if defenseBoost {
		b.armedDefenseBoost = false
		if err := b.mine.ConsumeDefenseBoost(); err != nil {
			return Output{}, err
		}
	}
	if msg.UseAttackBoost && b.opp.AttackBoostsRemaining > 0 {
		b.opp.AttackBoostsRemaining--
		b.opp.AttackBoostsConsumed++
	}

	b.pending = &turn{
		attackerIsMe: false,
		move:         move,
		attackBoost:  msg.UseAttackBoost,
		defenseBoost: defenseBoost,
	}
	b.state = StateProcessingTurn

	report := b.compute()
	out := Output{Send: []protocol.Sequenced{
		&protocol.DefenseAnnounce{UseDefenseBoost: defenseBoost},
		report,
	}}

	// A reordered counterparty report may have arrived first.
	if b.earlyReport != nil {
		early := b.earlyReport
		b.earlyReport = nil
		more, err := b.HandleCalcReport(early)
		if err != nil {
			return out, err
		}
		out = mergeOutputs(out, more)
	}
	return out, nil
}

// HandleDefenseAnnounce runs the attacker path after the defender answered:
// compute damage and report.
func (b *Battle) HandleDefenseAnnounce(msg *protocol.DefenseAnnounce) (Output, error) {
	if b.state != StateProcessingTurn || b.pending == nil || !b.pending.attackerIsMe {
		return Output{}, fmt.Errorf("%w: unexpected defense announce", ErrIllegalState)
	}
	if b.pending.computed {
		return Output{}, fmt.Errorf("%w: duplicate defense announce", ErrIllegalState)
	}
	b.pending.defenseBoost = msg.UseDefenseBoost
	if msg.UseDefenseBoost && b.opp.DefenseBoostsRemaining > 0 {
		b.opp.DefenseBoostsRemaining--
		b.opp.DefenseBoostsConsumed++
	}

	report := b.compute()
	out := Output{Send: []protocol.Sequenced{report}}

	if b.earlyReport != nil {
		early := b.earlyReport
		b.earlyReport = nil
		more, err := b.HandleCalcReport(early)
		if err != nil {
			return out, err
		}
		out = mergeOutputs(out, more)
	}
	return out, nil
}

// compute runs the damage engine for the pending turn and builds the local
// CalcReport. Exactly one random draw.
func (b *Battle) compute() *protocol.CalcReport {
	t := b.pending
	attacker, defender := b.mine, b.opp
	if !t.attackerIsMe {
		attacker, defender = b.opp, b.mine
	}

	t.result = b.engine.Compute(attacker.Combatant(), defender.Combatant(), t.move, t.attackBoost, t.defenseBoost)
	t.computed = true
	t.myHP = attacker.CurrentHP
	t.defHP = defender.CurrentHP - int(t.result.DamageDealt)
	return b.report()
}

// recompute re-evaluates the pending turn with the draw already consumed,
// so a transient fault does not poison the stream. The fresh values replace
// the stored ones.
func (b *Battle) recompute() {
	t := b.pending
	attacker, defender := b.mine, b.opp
	if !t.attackerIsMe {
		attacker, defender = b.opp, b.mine
	}
	t.result = damage.ComputeWith(attacker.Combatant(), defender.Combatant(), t.move, t.attackBoost, t.defenseBoost, t.result.RandomFactor)
	t.defHP = defender.CurrentHP - int(t.result.DamageDealt)
}

// report renders the pending turn's stored values as a CalcReport.
func (b *Battle) report() *protocol.CalcReport {
	t := b.pending
	attacker := b.mine
	if !t.attackerIsMe {
		attacker = b.opp
	}
	return &protocol.CalcReport{
		Attacker:            attacker.Name,
		MoveUsed:            t.move.Name,
		RemainingHealth:     t.myHP,
		DamageDealt:         t.result.DamageDealt,
		DefenderHPRemaining: t.defHP,
		StatusMessage:       t.result.StatusMessage,
	}
}

// HandleCalcReport compares the counterparty's computation with the local
// one. A report arriving before the local computation is buffered; a report
// arriving after the turn committed is dropped. Agreement sends CalcConfirm;
// a first disagreement enters Resolving, a disagreement while resolving is
// fatal.
func (b *Battle) HandleCalcReport(msg *protocol.CalcReport) (Output, error) {
	if b.state == StateGameOver || b.pending == nil {
		return Output{}, nil
	}
	if !b.pending.computed {
		// Legal reorder: their report outran the announce exchange.
		b.earlyReport = msg
		b.logger.Debug().Msg("buffering early calculation report")
		return Output{}, nil
	}
	t := b.pending

	if msg.DamageDealt == t.result.DamageDealt && msg.DefenderHPRemaining == t.defHP {
		out := Output{}
		if b.state == StateResolving {
			out.Discrepancy = &DiscrepancyNote{
				LocalDamage:  t.result.DamageDealt,
				RemoteDamage: msg.DamageDealt,
				Resolved:     true,
			}
		}
		if !t.myConfirmSent {
			t.myConfirmSent = true
			out.Send = append(out.Send, &protocol.CalcConfirm{})
		}
		if t.oppConfirmed || b.state == StateResolving {
			out = mergeOutputs(out, b.commitTurn())
		}
		return out, nil
	}

	b.logger.Warn().
		Uint32("local_damage", t.result.DamageDealt).
		Uint32("remote_damage", msg.DamageDealt).
		Int("local_hp", t.defHP).
		Int("remote_hp", msg.DefenderHPRemaining).
		Msg("calculation discrepancy")

	note := &DiscrepancyNote{
		LocalDamage:  t.result.DamageDealt,
		RemoteDamage: msg.DamageDealt,
	}
	if b.state == StateResolving {
		out := b.desync("calculation reports disagreed twice")
		out.Discrepancy = note
		return out, ErrProtocolDesync
	}
	b.state = StateResolving
	t.resolutionSent = true
	return Output{Send: []protocol.Sequenced{b.resolutionRequest()}, Discrepancy: note}, nil
}

// HandleCalcConfirm notes the counterparty's agreement and commits the turn
// once both sides are in accord. In Resolving, the counterparty's confirm
// means it adopted our last stated values.
func (b *Battle) HandleCalcConfirm(*protocol.CalcConfirm) (Output, error) {
	if b.pending == nil {
		// Late confirm after the turn already committed.
		return Output{}, nil
	}
	t := b.pending
	t.oppConfirmed = true

	if b.state == StateResolving || t.myConfirmSent {
		return b.commitTurn(), nil
	}
	return Output{}, nil
}

// HandleResolutionRequest re-evaluates the turn and compares against the
// counterparty's proposed values. A match adopts them and confirms. A
// mismatch re-states our recomputed report once; a second mismatch is fatal.
func (b *Battle) HandleResolutionRequest(msg *protocol.ResolutionRequest) (Output, error) {
	if b.pending == nil || !b.pending.computed {
		return Output{}, fmt.Errorf("%w: resolution request without a pending turn", ErrIllegalState)
	}
	t := b.pending
	b.recompute()

	if msg.DamageDealt == t.result.DamageDealt && msg.DefenderHPRemaining == t.defHP {
		t.adoptedDamage = msg.DamageDealt
		t.hasAdoptedValues = true
		t.myConfirmSent = true
		out := Output{
			Send: []protocol.Sequenced{&protocol.CalcConfirm{}},
			Discrepancy: &DiscrepancyNote{
				LocalDamage:  t.result.DamageDealt,
				RemoteDamage: msg.DamageDealt,
				Resolved:     true,
			},
		}
		return mergeOutputs(out, b.commitTurn()), nil
	}

	if t.resolutionResponded {
		out := b.desync("resolution exchange disagreed")
		out.Discrepancy = &DiscrepancyNote{
			LocalDamage:  t.result.DamageDealt,
			RemoteDamage: msg.DamageDealt,
		}
		return out, ErrProtocolDesync
	}

	// Stand by the recomputed values and state them once more. If the
	// counterparty accepts them it confirms; if it rejects them its next
	// message trips the fatal branch.
	t.resolutionResponded = true
	b.state = StateResolving
	return Output{Send: []protocol.Sequenced{b.report()}}, nil
}

func (b *Battle) resolutionRequest() *protocol.ResolutionRequest {
	t := b.pending
	attacker := b.mine
	if !t.attackerIsMe {
		attacker = b.opp
	}
	return &protocol.ResolutionRequest{
		Attacker:            attacker.Name,
		MoveUsed:            t.move.Name,
		DamageDealt:         t.result.DamageDealt,
		DefenderHPRemaining: t.defHP,
	}
}

// commitTurn applies the agreed damage, flips turn ownership, and detects a
// lethal hit. The attacker announces GameOver.
func (b *Battle) commitTurn() Output {
	t := b.pending
	damageDealt := t.result.DamageDealt
	if t.hasAdoptedValues {
		damageDealt = t.adoptedDamage
	}

	attacker, defender := b.mine, b.opp
	if !t.attackerIsMe {
		attacker, defender = b.opp, b.mine
	}
	unclamped := defender.TakeDamage(damageDealt)

	summary := &TurnSummary{
		Attacker:     attacker.Name,
		Defender:     defender.Name,
		Move:         t.move.Name,
		Damage:       damageDealt,
		DefenderHP:   defender.CurrentHP,
		Status:       t.result.StatusMessage,
		AttackBoost:  t.attackBoost,
		DefenseBoost: t.defenseBoost,
	}

	b.pending = nil
	b.earlyReport = nil

	if unclamped <= 0 {
		b.state = StateGameOver
		b.outcome = &Outcome{Winner: attacker.Name, Loser: defender.Name}
		b.logger.Info().
			Str("winner", attacker.Name).
			Str("loser", defender.Name).
			Msg("battle over")
		out := Output{Turn: summary, Over: b.outcome}
		if t.attackerIsMe {
			out.Send = append(out.Send, &protocol.GameOver{Winner: attacker.Name, Loser: defender.Name})
		}
		return out
	}

	b.myTurn = !t.attackerIsMe
	b.state = StateWaitingForMove
	summary.MyTurnNext = b.myTurn
	b.logger.Debug().
		Str("attacker", attacker.Name).
		Uint32("damage", damageDealt).
		Int("defender_hp", defender.CurrentHP).
		Bool("my_turn", b.myTurn).
		Msg("turn committed")
	return Output{Turn: summary}
}

// HandleGameOver accepts the counterparty's outcome announcement.
func (b *Battle) HandleGameOver(msg *protocol.GameOver) Output {
	if b.outcome == nil {
		b.outcome = &Outcome{Winner: msg.Winner, Loser: msg.Loser}
	}
	b.state = StateGameOver
	return Output{Over: b.outcome}
}

// Abort terminates the battle without a winner, for peer loss.
func (b *Battle) Abort(reason string) Output {
	b.state = StateGameOver
	b.outcome = &Outcome{Aborted: true, Reason: reason}
	b.pending = nil
	return Output{Over: b.outcome}
}

func (b *Battle) desync(reason string) Output {
	b.state = StateGameOver
	b.outcome = &Outcome{Desync: true, Reason: reason}
	b.pending = nil
	b.logger.Error().Str("reason", reason).Msg("protocol desync, terminating battle")
	return Output{Over: b.outcome}
}

// RequestRematch records the local rematch wish and returns the message to
// transmit. Only valid after a decided (not aborted) battle.
func (b *Battle) RequestRematch(want bool) (*protocol.RematchRequest, error) {
	if b.state != StateGameOver || b.outcome == nil || b.outcome.Aborted || b.outcome.Desync {
		return nil, fmt.Errorf("%w: rematch only after a decided battle", ErrIllegalState)
	}
	b.myRematch = &want
	return &protocol.RematchRequest{WantsRematch: want}, nil
}

// HandleRematchRequest records the counterparty's wish and reports whether
// both sides agreed.
func (b *Battle) HandleRematchRequest(msg *protocol.RematchRequest) (agreed bool) {
	b.oppRematch = &msg.WantsRematch
	return b.myRematch != nil && *b.myRematch && msg.WantsRematch
}

// RematchAgreed reports whether both sides have asked for a rematch.
func (b *Battle) RematchAgreed() bool {
	return b.myRematch != nil && *b.myRematch && b.oppRematch != nil && *b.oppRematch
}

// ResetForRematch restores both Pokemon and returns the machine to Setup for
// a fresh BattleSetup exchange. The damage engine's random stream continues;
// no new seed is exchanged.
func (b *Battle) ResetForRematch() {
	b.mine.ResetForRematch()
	if b.opp != nil {
		b.opp.ResetForRematch()
	}
	b.opp = nil
	b.state = StateSetup
	b.myTurn = false
	b.pending = nil
	b.earlyReport = nil
	b.outcome = nil
	b.myRematch = nil
	b.oppRematch = nil
}

func mergeOutputs(a, b Output) Output {
	a.Send = append(a.Send, b.Send...)
	if b.Turn != nil {
		a.Turn = b.Turn
	}
	if b.Discrepancy != nil {
		a.Discrepancy = b.Discrepancy
	}
	if b.Over != nil {
		a.Over = b.Over
	}
	return a
}
