package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validatePlayer(cfg.GetPlayer(), result)
	validateNetwork(cfg.GetNetwork(), result)
	validateAPI(cfg.GetAPI(), result)
	validateTelemetry(cfg.GetTelemetry(), result)
	validateBattleLog(cfg.GetBattleLog(), result)

	return result
}

func validatePlayer(p PlayerConfig, result *ValidationResult) {
	if p.AttackBoosts < 0 {
		result.AddError("player.attack_boosts", "boost allotment cannot be negative")
	}
	if p.DefenseBoosts < 0 {
		result.AddError("player.defense_boosts", "boost allotment cannot be negative")
	}
	if p.AttackBoosts > 10 || p.DefenseBoosts > 10 {
		result.AddWarning("player.boosts",
			fmt.Sprintf("boost allotment (%d/%d) is unusually high", p.AttackBoosts, p.DefenseBoosts))
	}
}

func validateNetwork(n NetworkConfig, result *ValidationResult) {
	validatePort(n.ListenPort, "network.listen_port", result)
	if n.HostAddress != "" {
		validatePort(n.HostPort, "network.host_port", result)
		if net.ParseIP(n.HostAddress) == nil {
			result.AddError("network.host_address",
				fmt.Sprintf("invalid host address: %s", n.HostAddress))
		}
	}
	if n.RetryIntervalMS < 1 {
		result.AddError("network.retry_interval_ms", "retry interval must be at least 1 ms")
	} else if n.RetryIntervalMS < 100 {
		result.AddWarning("network.retry_interval_ms",
			fmt.Sprintf("retry interval of %d ms may cause excessive retransmission", n.RetryIntervalMS))
	}
	if n.MaxRetries < 0 {
		result.AddError("network.max_retries", "retry cap cannot be negative")
	}
	if n.DedupWindow < 1024 {
		result.AddWarning("network.dedup_window",
			"dedup window below 1024 weakens duplicate suppression")
	}
}

func validateAPI(a APIConfig, result *ValidationResult) {
	if !a.Enabled {
		return
	}
	validatePort(a.Port, "api.port", result)
	if len(a.AllowedOrigins) == 0 {
		result.AddWarning("api.allowed_origins", "no allowed origins, browser clients will be rejected")
	}
}

func validateTelemetry(t TelemetryConfig, result *ValidationResult) {
	if !t.Enabled {
		return
	}
	if strings.TrimSpace(t.BrokerURL) == "" {
		result.AddError("telemetry.broker_url", "MQTT broker URL is required when enabled")
	}
	if t.Port < 1 || t.Port > 65535 {
		result.AddError("telemetry.port", "invalid MQTT port")
	}
}

func validateBattleLog(b BattleLogConfig, result *ValidationResult) {
	if b.Enabled && strings.TrimSpace(b.Path) == "" {
		result.AddError("battle_log.path", "battle log path is required when enabled")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a UDP port is available for binding.
func IsPortAvailable(port int) bool {
	conn, err := net.ListenPacket("udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
