package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestFormatObjectLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want string
	}{
		{"empty", map[string]string{}, "{}"},
		{"single", map[string]string{"seed": "42"}, "{seed: 42}"},
		{"sorted keys", map[string]string{
			"special_defense_uses": "5",
			"special_attack_uses":  "3",
		}, "{special_attack_uses: 3, special_defense_uses: 5}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatObjectLiteral(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseObjectLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "{}", map[string]string{}},
		{"single", "{seed: 42}", map[string]string{"seed": "42"}},
		{"multiple", "{attack: 55, hp: 35, type2: }", map[string]string{
			"attack": "55",
			"hp":     "35",
			"type2":  "",
		}},
		{"whitespace tolerant", "  { attack:55 ,hp: 35 }  ", map[string]string{
			"attack": "55",
			"hp":     "35",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseObjectLiteral(tt.in)
			if err != nil {
				t.Fatalf("ParseObjectLiteral failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseObjectLiteralErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no braces", "attack: 55"},
		{"unclosed", "{attack: 55"},
		{"no colon", "{attack 55}"},
		{"empty key", "{: 55}"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseObjectLiteral(tt.in); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("want ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func TestObjectLiteralRoundTrip(t *testing.T) {
	in := map[string]string{
		"attack":     "55",
		"defense":    "40",
		"hp":         "35",
		"name":       "Pikachu",
		"sp_attack":  "50",
		"sp_defense": "50",
		"speed":      "90",
		"type1":      "electric",
		"type2":      "",
	}
	got, err := ParseObjectLiteral(FormatObjectLiteral(in))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("got %#v, want %#v", got, in)
	}
}
