package pokedex

import (
	"strings"
	"testing"
)

func TestCatalogLookupCaseInsensitive(t *testing.T) {
	c := NewCatalog()

	p, err := c.Pokemon("pIkAcHu")
	if err != nil {
		t.Fatalf("Pokemon lookup failed: %v", err)
	}
	if p.Name != "Pikachu" || p.Type1 != "electric" || p.HP != 35 {
		t.Errorf("unexpected stat block: %#v", p)
	}

	m, err := c.Move("thunderbolt")
	if err != nil {
		t.Fatalf("Move lookup failed: %v", err)
	}
	if m.Power != 90 || m.Category != CategorySpecial || m.Type != "electric" {
		t.Errorf("unexpected move: %#v", m)
	}
}

func TestCatalogUnknownNames(t *testing.T) {
	c := NewCatalog()
	if _, err := c.Pokemon("MissingNo"); err == nil {
		t.Error("expected error for unknown pokemon")
	}
	if _, err := c.Move("Splash Dance"); err == nil {
		t.Error("expected error for unknown move")
	}
}

func TestMovesByType(t *testing.T) {
	c := NewCatalog()
	fire := c.MovesByType("fire")
	if len(fire) != 5 {
		t.Fatalf("want 5 fire moves, got %d", len(fire))
	}
	for _, m := range fire {
		if m.Type != "fire" {
			t.Errorf("move %s has type %s", m.Name, m.Type)
		}
	}
}

func TestEffectiveness(t *testing.T) {
	tests := []struct {
		move, defender string
		want           float64
	}{
		{"electric", "water", 2},
		{"electric", "ground", 0},
		{"electric", "flying", 2},
		{"fire", "grass", 2},
		{"fire", "water", 0.5},
		{"normal", "ghost", 0},
		{"normal", "normal", 1},
		{"dragon", "fairy", 0},
		{"water", "", 1},
		{"unknown", "water", 1},
	}
	for _, tt := range tests {
		if got := Effectiveness(tt.move, tt.defender); got != tt.want {
			t.Errorf("Effectiveness(%q, %q) = %v, want %v", tt.move, tt.defender, got, tt.want)
		}
	}
}

func TestDualTypeProduct(t *testing.T) {
	c := NewCatalog()
	charizard, err := c.Pokemon("Charizard")
	if err != nil {
		t.Fatal(err)
	}
	// Rock vs fire/flying: 2 x 2.
	got := Effectiveness("rock", charizard.Type1) * Effectiveness("rock", charizard.Type2)
	if got != 4 {
		t.Errorf("rock vs Charizard = %v, want 4", got)
	}
	// Electric vs rock/ground (Onix): 1 x 0.
	onix, err := c.Pokemon("Onix")
	if err != nil {
		t.Fatal(err)
	}
	got = Effectiveness("electric", onix.Type1) * Effectiveness("electric", onix.Type2)
	if got != 0 {
		t.Errorf("electric vs Onix = %v, want 0", got)
	}
}

func TestReadCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"name,hp,attack,defense,sp_attack,sp_defense,speed,type1,type2,against_fire,against_water,against_fight",
		"Magikarp,20,10,55,15,20,80,water,,0.5,0.5,1.0",
		"Machamp,90,130,80,65,85,55,fighting,,1.0,1.0,1.0",
	}, "\n")

	c := NewCatalog()
	n, err := c.readCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("readCSV failed: %v", err)
	}
	if n != 2 {
		t.Errorf("want 2 rows loaded, got %d", n)
	}

	magikarp, err := c.Pokemon("Magikarp")
	if err != nil {
		t.Fatal(err)
	}
	if magikarp.Type1 != "water" || magikarp.Type2 != "" {
		t.Errorf("unexpected typing: %#v", magikarp)
	}
	if magikarp.Weaknesses["fire"] != 0.5 {
		t.Errorf("against_fire column not mapped: %v", magikarp.Weaknesses)
	}
	if magikarp.Weaknesses["fighting"] != 1.0 {
		t.Errorf("against_fight column not mapped to fighting: %v", magikarp.Weaknesses)
	}
}

func TestReadCSVMissingColumn(t *testing.T) {
	c := NewCatalog()
	if _, err := c.readCSV(strings.NewReader("name,hp\nPikachu,35\n")); err == nil {
		t.Error("expected error for missing required columns")
	}
}

func TestReadCSVOverridesRoster(t *testing.T) {
	c := NewCatalog()
	csvData := "name,hp,attack,defense,sp_attack,sp_defense,speed,type1,type2\nPikachu,99,1,1,1,1,1,electric,\n"
	if _, err := c.readCSV(strings.NewReader(csvData)); err != nil {
		t.Fatal(err)
	}
	p, err := c.Pokemon("Pikachu")
	if err != nil {
		t.Fatal(err)
	}
	if p.HP != 99 {
		t.Errorf("csv row should replace the built-in entry, HP = %d", p.HP)
	}
}
