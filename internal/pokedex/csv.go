package pokedex

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// csvWeaknessColumns maps type names to their against_<type> CSV column.
// The fighting column is abbreviated in the source data.
var csvWeaknessColumns = map[string]string{
	"bug":      "against_bug",
	"dark":     "against_dark",
	"dragon":   "against_dragon",
	"electric": "against_electric",
	"fairy":    "against_fairy",
	"fighting": "against_fight",
	"fire":     "against_fire",
	"flying":   "against_flying",
	"ghost":    "against_ghost",
	"grass":    "against_grass",
	"ground":   "against_ground",
	"ice":      "against_ice",
	"normal":   "against_normal",
	"poison":   "against_poison",
	"psychic":  "against_psychic",
	"rock":     "against_rock",
	"steel":    "against_steel",
	"water":    "against_water",
}

// LoadCSV merges Pokemon rows from a CSV file into the catalog, replacing
// roster entries with the same name. Required columns: name, hp, attack,
// defense, sp_attack, sp_defense, speed, type1. Optional: type2 and the
// against_<type> weakness columns.
func (c *Catalog) LoadCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening pokemon csv: %w", err)
	}
	defer f.Close()
	return c.readCSV(f)
}

func (c *Catalog) readCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("reading csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"name", "hp", "attack", "defense", "sp_attack", "sp_defense", "speed", "type1"} {
		if _, ok := col[required]; !ok {
			return 0, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	loaded := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return loaded, fmt.Errorf("reading csv row: %w", err)
		}

		name := field(row, "name")
		if name == "" {
			continue
		}
		stats := [6]int{}
		ok := true
		for i, statCol := range []string{"hp", "attack", "defense", "sp_attack", "sp_defense", "speed"} {
			n, err := strconv.Atoi(field(row, statCol))
			if err != nil {
				ok = false
				break
			}
			stats[i] = n
		}
		if !ok {
			continue
		}

		weaknesses := make(map[string]float64)
		for typeName, csvKey := range csvWeaknessColumns {
			if v := field(row, csvKey); v != "" {
				if mult, err := strconv.ParseFloat(v, 64); err == nil {
					weaknesses[typeName] = mult
				}
			}
		}

		c.pokemon[strings.ToLower(name)] = Pokemon{
			Name:       name,
			HP:         stats[0],
			Attack:     stats[1],
			Defense:    stats[2],
			SpAttack:   stats[3],
			SpDefense:  stats[4],
			Speed:      stats[5],
			Type1:      strings.ToLower(field(row, "type1")),
			Type2:      strings.ToLower(field(row, "type2")),
			Weaknesses: weaknesses,
		}
		loaded++
	}
	return loaded, nil
}
