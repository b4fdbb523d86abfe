package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); err != nil {
		t.Errorf("default config file not written: %v", err)
	}
	if got := cfg.GetNetwork().ListenPort; got != DefaultListenPort {
		t.Errorf("listen port = %d, want %d", got, DefaultListenPort)
	}
	if got := cfg.GetNetwork().RetryInterval(); got != 500*time.Millisecond {
		t.Errorf("retry interval = %s, want 500ms", got)
	}
	if !cfg.IsFirstRun() {
		t.Error("fresh config should report first run")
	}
}

func TestLoadOverlaysFileOnDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `{"player": {"name": "Ash"}, "network": {"listen_port": 12345}}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.GetPlayer().Name; got != "Ash" {
		t.Errorf("player name = %q, want Ash", got)
	}
	if got := cfg.GetNetwork().ListenPort; got != 12345 {
		t.Errorf("listen port = %d, want 12345", got)
	}
	// Fields absent from the file keep their defaults.
	if got := cfg.GetPlayer().AttackBoosts; got != 3 {
		t.Errorf("attack boosts = %d, want default 3", got)
	}
	if cfg.IsFirstRun() {
		t.Error("named player should not report first run")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := `{"network": {"listen_port": 12345}}`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POKEBATTLE_LISTEN_PORT", "23456")
	t.Setenv("POKEBATTLE_PLAYER_NAME", "Misty")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.GetNetwork().ListenPort; got != 23456 {
		t.Errorf("listen port = %d, want env override 23456", got)
	}
	if got := cfg.GetPlayer().Name; got != "Misty" {
		t.Errorf("player name = %q, want Misty", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	player := cfg.GetPlayer()
	player.Name = "Brock"
	cfg.SetPlayer(player)
	if err := cfg.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.GetPlayer().Name; got != "Brock" {
		t.Errorf("reloaded player name = %q, want Brock", got)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("malformed config file should fail to load")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"bad listen port", func(c *Config) {
			n := c.GetNetwork()
			n.ListenPort = 70000
			c.SetNetwork(n)
		}, false},
		{"negative boosts", func(c *Config) {
			p := c.GetPlayer()
			p.AttackBoosts = -1
			c.SetPlayer(p)
		}, false},
		{"bad host address", func(c *Config) {
			n := c.GetNetwork()
			n.HostAddress = "not-an-ip"
			c.SetNetwork(n)
		}, false},
		{"zero retry interval", func(c *Config) {
			n := c.GetNetwork()
			n.RetryIntervalMS = 0
			c.SetNetwork(n)
		}, false},
		{"telemetry without broker", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.BrokerURL = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			result := Validate(cfg)
			if result.IsValid() != tt.valid {
				t.Errorf("IsValid() = %v, want %v (errors: %v)", result.IsValid(), tt.valid, result.Errors)
			}
		})
	}
}

func TestIsPortAvailable(t *testing.T) {
	if !IsPortAvailable(0) {
		t.Error("ephemeral port request should always succeed")
	}
}
