package battle

import (
	"fmt"

	"github.com/pokeproto-project/pokebattle/internal/damage"
	"github.com/pokeproto-project/pokebattle/internal/pokedex"
)

// Pokemon is the in-battle view of one combatant: a stat snapshot taken at
// battle setup plus mutable HP and boost counters. CurrentHP is clamped at 0
// for display; lethality is decided on the unclamped value before clamping.
type Pokemon struct {
	Name      string
	HP        int
	Attack    int
	Defense   int
	SpAttack  int
	SpDefense int
	Speed     int
	Type1     string
	Type2     string

	MaxHP     int
	CurrentHP int

	AttackBoostsRemaining  int
	AttackBoostsConsumed   int
	DefenseBoostsRemaining int
	DefenseBoostsConsumed  int
}

// NewPokemon snapshots a stat block for battle with the given boost
// allotment.
func NewPokemon(base pokedex.Pokemon, attackBoosts, defenseBoosts int) *Pokemon {
	return &Pokemon{
		Name:      base.Name,
		HP:        base.HP,
		Attack:    base.Attack,
		Defense:   base.Defense,
		SpAttack:  base.SpAttack,
		SpDefense: base.SpDefense,
		Speed:     base.Speed,
		Type1:     base.Type1,
		Type2:     base.Type2,

		MaxHP:     base.HP,
		CurrentHP: base.HP,

		AttackBoostsRemaining:  attackBoosts,
		DefenseBoostsRemaining: defenseBoosts,
	}
}

// Combatant converts to the stat view the damage engine consumes.
func (p *Pokemon) Combatant() damage.Combatant {
	return damage.Combatant{
		Name:      p.Name,
		Attack:    p.Attack,
		Defense:   p.Defense,
		SpAttack:  p.SpAttack,
		SpDefense: p.SpDefense,
		Type1:     p.Type1,
		Type2:     p.Type2,
	}
}

// TakeDamage applies dmg and returns the unclamped remaining HP. CurrentHP
// is clamped at 0 afterwards.
func (p *Pokemon) TakeDamage(dmg uint32) int {
	unclamped := p.CurrentHP - int(dmg)
	p.CurrentHP = unclamped
	if p.CurrentHP < 0 {
		p.CurrentHP = 0
	}
	return unclamped
}

// ConsumeAttackBoost decrements the special-attack boost counter.
func (p *Pokemon) ConsumeAttackBoost() error {
	if p.AttackBoostsRemaining <= 0 {
		return fmt.Errorf("%w: no special-attack boosts left", ErrNoBoostAvailable)
	}
	p.AttackBoostsRemaining--
	p.AttackBoostsConsumed++
	return nil
}

// ConsumeDefenseBoost decrements the special-defense boost counter.
func (p *Pokemon) ConsumeDefenseBoost() error {
	if p.DefenseBoostsRemaining <= 0 {
		return fmt.Errorf("%w: no special-defense boosts left", ErrNoBoostAvailable)
	}
	p.DefenseBoostsRemaining--
	p.DefenseBoostsConsumed++
	return nil
}

// Fainted reports whether the Pokemon is out of the battle.
func (p *Pokemon) Fainted() bool { return p.CurrentHP <= 0 }

// ResetForRematch restores HP and boost allotments to their setup values.
func (p *Pokemon) ResetForRematch() {
	p.CurrentHP = p.MaxHP
	p.AttackBoostsRemaining += p.AttackBoostsConsumed
	p.AttackBoostsConsumed = 0
	p.DefenseBoostsRemaining += p.DefenseBoostsConsumed
	p.DefenseBoostsConsumed = 0
}
