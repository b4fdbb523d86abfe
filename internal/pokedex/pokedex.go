// Package pokedex is the read-only catalog of Pokemon stat blocks, moves,
// and type effectiveness. Battle traffic is self-contained (stat blocks
// travel in BattleSetup), so the catalog is only consulted locally when
// picking a Pokemon or a move.
package pokedex

import (
	"fmt"
	"sort"
	"strings"
)

// Pokemon is a base stat block. Type2 is empty for single-typed Pokemon.
// Weaknesses holds per-attacking-type combined multipliers when loaded from
// a CSV with against_<type> columns; it is display data, not battle data.
type Pokemon struct {
	Name       string
	HP         int
	Attack     int
	Defense    int
	SpAttack   int
	SpDefense  int
	Speed      int
	Type1      string
	Type2      string
	Weaknesses map[string]float64
}

// Damage categories.
const (
	CategoryPhysical = "physical"
	CategorySpecial  = "special"
)

// Move is one attack: base power, damage category, and type.
type Move struct {
	Name     string
	Power    int
	Category string
	Type     string
}

// Catalog holds the Pokemon roster and the move database.
type Catalog struct {
	pokemon map[string]Pokemon
	moves   map[string]Move
}

// NewCatalog returns a catalog populated with the built-in roster and the
// full move table.
func NewCatalog() *Catalog {
	c := &Catalog{
		pokemon: make(map[string]Pokemon),
		moves:   make(map[string]Move),
	}
	for _, p := range defaultRoster {
		c.pokemon[strings.ToLower(p.Name)] = p
	}
	for _, m := range defaultMoves {
		c.moves[strings.ToLower(m.Name)] = m
	}
	return c
}

// Pokemon looks up a stat block by name, case-insensitively.
func (c *Catalog) Pokemon(name string) (Pokemon, error) {
	p, ok := c.pokemon[strings.ToLower(name)]
	if !ok {
		return Pokemon{}, fmt.Errorf("unknown pokemon %q", name)
	}
	return p, nil
}

// Move looks up a move by name, case-insensitively.
func (c *Catalog) Move(name string) (Move, error) {
	m, ok := c.moves[strings.ToLower(name)]
	if !ok {
		return Move{}, fmt.Errorf("unknown move %q", name)
	}
	return m, nil
}

// PokemonNames returns all roster names, sorted.
func (c *Catalog) PokemonNames() []string {
	names := make([]string, 0, len(c.pokemon))
	for _, p := range c.pokemon {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// MoveNames returns all move names, sorted.
func (c *Catalog) MoveNames() []string {
	names := make([]string, 0, len(c.moves))
	for _, m := range c.moves {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// MovesByType returns the moves of one type, sorted by name.
func (c *Catalog) MovesByType(moveType string) []Move {
	moveType = strings.ToLower(moveType)
	var out []Move
	for _, m := range c.moves {
		if m.Type == moveType {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
