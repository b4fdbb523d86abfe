// Package damage computes turn damage deterministically on both peers. The
// whole computation is float64 with a fixed evaluation order so the two
// sides produce bit-identical results from the same inputs and seed.
package damage

import (
	"fmt"
	"math"

	"github.com/pokeproto-project/pokebattle/internal/pokedex"
)

// Level is fixed for every battle.
const Level = 50

const (
	stabMultiplier  = 1.5
	boostMultiplier = 1.5
)

// Combatant is the stat view the engine needs from a battle Pokemon.
type Combatant struct {
	Name      string
	Attack    int
	Defense   int
	SpAttack  int
	SpDefense int
	Type1     string
	Type2     string
}

// Result of one turn's computation. RandomFactor is the 0.85-1.0 modifier
// actually used, kept so a discrepancy re-evaluation can recompute the turn
// without advancing the stream.
type Result struct {
	DamageDealt   uint32
	Effectiveness float64
	RandomFactor  float64
	StatusMessage string
}

// Engine owns the per-session random stream. One Compute call consumes
// exactly one draw.
type Engine struct {
	rng *Stream
}

// NewEngine seeds the engine with the shared session seed.
func NewEngine(seed uint32) *Engine {
	return &Engine{rng: NewStream(seed)}
}

// Reseed resets the random stream, for a fresh battle under a new seed.
func (e *Engine) Reseed(seed uint32) {
	e.rng.Reseed(seed)
}

// Compute runs the level-50 damage formula:
//
//	base   = ((2*Level/5 + 2) * Power * A/D) / 50 + 2
//	mod    = STAB * Type1 * Type2 * Random
//	damage = max(1, floor(base*mod))
//
// A and D are the physical stats for physical moves, the special stats (with
// an optional 1.5x boost each) for special moves. Type1 and Type2 are the
// move's effectiveness against each defender type, multiplied. Random is
// 0.85 + 0.15*u from the session stream.
func (e *Engine) Compute(attacker, defender Combatant, move pokedex.Move, attackerBoost, defenderBoost bool) Result {
	return ComputeWith(attacker, defender, move, attackerBoost, defenderBoost, 0.85+0.15*e.rng.Next())
}

// ComputeWith runs the formula with an explicit random factor. Used for
// discrepancy re-evaluation, which must not consume a fresh draw.
func ComputeWith(attacker, defender Combatant, move pokedex.Move, attackerBoost, defenderBoost bool, randomFactor float64) Result {
	var atkStat, defStat float64
	if move.Category == pokedex.CategoryPhysical {
		atkStat = float64(attacker.Attack)
		defStat = float64(defender.Defense)
	} else {
		atkStat = float64(attacker.SpAttack)
		defStat = float64(defender.SpDefense)
		if attackerBoost {
			atkStat = atkStat * boostMultiplier
		}
		if defenderBoost {
			defStat = defStat * boostMultiplier
		}
	}

	effectiveness := pokedex.Effectiveness(move.Type, defender.Type1) *
		pokedex.Effectiveness(move.Type, defender.Type2)

	stab := 1.0
	if attacker.Type1 == move.Type || (attacker.Type2 != "" && attacker.Type2 == move.Type) {
		stab = stabMultiplier
	}

	base := ((2*float64(Level)/5+2)*float64(move.Power)*atkStat/defStat)/50 + 2
	mod := stab * effectiveness * randomFactor

	dmg := math.Floor(base * mod)
	if dmg < 1 {
		dmg = 1
	}

	return Result{
		DamageDealt:   uint32(dmg),
		Effectiveness: effectiveness,
		RandomFactor:  randomFactor,
		StatusMessage: statusMessage(attacker.Name, defender.Name, move.Name, effectiveness, uint32(dmg)),
	}
}

// statusMessage builds the deterministic per-turn commentary. Both peers
// must render the identical string for the same inputs.
func statusMessage(attacker, defender, move string, effectiveness float64, dmg uint32) string {
	msg := fmt.Sprintf("%s used %s!", attacker, move)
	switch {
	case effectiveness == 0:
		msg += fmt.Sprintf(" It doesn't affect %s...", defender)
	case effectiveness >= 2.0:
		msg += " It's super effective!"
	case effectiveness < 1.0:
		msg += " It's not very effective..."
	}
	msg += fmt.Sprintf(" %s took %d damage!", defender, dmg)
	return msg
}
