// Package config handles configuration loading, validation, and persistence
// for the pokebattle peer. Values come from defaults, then the JSON config
// file, then POKEBATTLE_* environment variables, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultListenPort = 11000
	DefaultAPIPort    = 5000
)

// Config is the root configuration structure for a pokebattle peer.
type Config struct {
	mu   sync.RWMutex
	path string

	Player    PlayerConfig    `json:"player"`
	Network   NetworkConfig   `json:"network"`
	API       APIConfig       `json:"api"`
	Telemetry TelemetryConfig `json:"telemetry"`
	BattleLog BattleLogConfig `json:"battle_log"`
	Logging   LoggingConfig   `json:"logging"`
}

// PlayerConfig holds the local player's battle defaults.
type PlayerConfig struct {
	Name          string `json:"name" env:"POKEBATTLE_PLAYER_NAME"`
	Pokemon       string `json:"pokemon" env:"POKEBATTLE_POKEMON"`
	AttackBoosts  int    `json:"attack_boosts" env:"POKEBATTLE_ATTACK_BOOSTS"`
	DefenseBoosts int    `json:"defense_boosts" env:"POKEBATTLE_DEFENSE_BOOSTS"`
}

// NetworkConfig holds the UDP transport settings.
type NetworkConfig struct {
	ListenPort      int    `json:"listen_port" env:"POKEBATTLE_LISTEN_PORT"`
	HostAddress     string `json:"host_address" env:"POKEBATTLE_HOST_ADDRESS"`
	HostPort        int    `json:"host_port" env:"POKEBATTLE_HOST_PORT"`
	Broadcast       bool   `json:"broadcast" env:"POKEBATTLE_BROADCAST"`
	RetryIntervalMS int    `json:"retry_interval_ms" env:"POKEBATTLE_RETRY_INTERVAL_MS"`
	MaxRetries      int    `json:"max_retries" env:"POKEBATTLE_MAX_RETRIES"`
	DedupWindow     int    `json:"dedup_window" env:"POKEBATTLE_DEDUP_WINDOW"`
}

// RetryInterval returns the retransmission interval as a duration.
func (n NetworkConfig) RetryInterval() time.Duration {
	return time.Duration(n.RetryIntervalMS) * time.Millisecond
}

// APIConfig holds the read-only HTTP status API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled" env:"POKEBATTLE_API_ENABLED"`
	Port           int      `json:"port" env:"POKEBATTLE_API_PORT"`
	AllowedOrigins []string `json:"allowed_origins" env:"POKEBATTLE_API_ALLOWED_ORIGINS"`
}

// TelemetryConfig holds MQTT telemetry settings.
type TelemetryConfig struct {
	Enabled   bool   `json:"enabled" env:"POKEBATTLE_MQTT_ENABLED"`
	BrokerURL string `json:"broker_url" env:"POKEBATTLE_MQTT_BROKER_URL"`
	Port      int    `json:"port" env:"POKEBATTLE_MQTT_PORT"`
	UseTLS    bool   `json:"use_tls" env:"POKEBATTLE_MQTT_USE_TLS"`
	ClientID  string `json:"client_id" env:"POKEBATTLE_MQTT_CLIENT_ID"`
	TopicRoot string `json:"topic_root" env:"POKEBATTLE_MQTT_TOPIC_ROOT"`
}

// BattleLogConfig holds the SQLite battle-log sink settings.
type BattleLogConfig struct {
	Enabled bool   `json:"enabled" env:"POKEBATTLE_BATTLELOG_ENABLED"`
	Path    string `json:"path" env:"POKEBATTLE_BATTLELOG_PATH"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level" env:"POKEBATTLE_LOG_LEVEL"`
	Directory  string `json:"directory" env:"POKEBATTLE_LOG_DIR"`
	MaxBackups int    `json:"max_backups" env:"POKEBATTLE_LOG_MAX_BACKUPS"`
	Console    bool   `json:"console" env:"POKEBATTLE_LOG_CONSOLE"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			AttackBoosts:  3,
			DefenseBoosts: 3,
		},
		Network: NetworkConfig{
			ListenPort:      DefaultListenPort,
			HostPort:        DefaultListenPort,
			RetryIntervalMS: 500,
			MaxRetries:      3,
			DedupWindow:     1024,
		},
		API: APIConfig{
			Port:           DefaultAPIPort,
			AllowedOrigins: []string{"*"},
		},
		Telemetry: TelemetryConfig{
			Port:      8883,
			UseTLS:    true,
			TopicRoot: "pokebattle",
		},
		BattleLog: BattleLogConfig{
			Enabled: true,
			Path:    "battles.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxBackups: 5,
			Console:    true,
		},
	}
}

// Load reads configuration from a JSON file and overlays POKEBATTLE_*
// environment variables on top.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	cfg := DefaultConfig()
	cfg.path = configPath

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
		log.Info().Str("path", configPath).Msg("configuration loaded")
	case os.IsNotExist(err):
		log.Info().Str("path", configPath).Msg("config file not found, creating default")
		if saveErr := cfg.Save(); saveErr != nil {
			return nil, fmt.Errorf("failed to save default config: %w", saveErr)
		}
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return cfg, nil
}

// Save writes the current configuration to disk. Environment overrides are
// persisted as the new file values.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetPlayer returns a copy of the player configuration.
func (c *Config) GetPlayer() PlayerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Player
}

// SetPlayer updates the player configuration.
func (c *Config) SetPlayer(p PlayerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Player = p
}

// GetNetwork returns a copy of the network configuration.
func (c *Config) GetNetwork() NetworkConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Network
}

// SetNetwork updates the network configuration.
func (c *Config) SetNetwork(n NetworkConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Network = n
}

// GetAPI returns a copy of the API configuration.
func (c *Config) GetAPI() APIConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.API
}

// GetTelemetry returns a copy of the telemetry configuration.
func (c *Config) GetTelemetry() TelemetryConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Telemetry
}

// GetBattleLog returns a copy of the battle-log configuration.
func (c *Config) GetBattleLog() BattleLogConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.BattleLog
}

// GetLogging returns a copy of the logging configuration.
func (c *Config) GetLogging() LoggingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Player.Name == ""
}
