package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration.
func RunSetupWizard(cfg *Config) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║        PokeBattle - First Run Setup          ║")
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Println("║  Welcome! Let's configure your trainer.      ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("── Trainer ──")

	player := cfg.GetPlayer()
	player.Name = promptString(reader, "Trainer name", player.Name)
	player.Pokemon = promptString(reader, "Default pokemon (blank to pick per battle)", player.Pokemon)
	player.AttackBoosts = promptInt(reader, "Special attack boosts per battle", player.AttackBoosts)
	player.DefenseBoosts = promptInt(reader, "Special defense boosts per battle", player.DefenseBoosts)
	cfg.SetPlayer(player)

	fmt.Println()
	fmt.Println("── Network ──")

	network := cfg.GetNetwork()
	network.ListenPort = promptInt(reader, "UDP listen port", network.ListenPort)
	cfg.SetNetwork(network)

	fmt.Println()
	fmt.Println("── Extras ──")

	cfg.mu.Lock()
	cfg.API.Enabled = promptBool(reader, "Enable the HTTP status API", cfg.API.Enabled)
	cfg.Telemetry.Enabled = promptBool(reader, "Enable MQTT telemetry", cfg.Telemetry.Enabled)
	if cfg.Telemetry.Enabled {
		cfg.Telemetry.BrokerURL = promptString(reader, "MQTT broker URL", cfg.Telemetry.BrokerURL)
	}
	cfg.BattleLog.Enabled = promptBool(reader, "Record battles to SQLite", cfg.BattleLog.Enabled)
	cfg.mu.Unlock()

	result := Validate(cfg)
	if !result.IsValid() {
		fmt.Println("\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Printf("  - [%s] %s\n", e.Field, e.Message)
		}
		retry := promptString(reader, "Would you like to try again? (yes/no)", "yes")
		if strings.ToLower(retry) == "yes" {
			return RunSetupWizard(cfg)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Println()
	fmt.Println("✓ Configuration saved successfully!")
	fmt.Println()

	return nil
}

func promptString(reader *bufio.Reader, prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("  %s: ", prompt)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptInt(reader *bufio.Reader, prompt string, defaultVal int) int {
	fmt.Printf("  %s [%d]: ", prompt, defaultVal)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Printf("    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func promptBool(reader *bufio.Reader, prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Printf("  %s [%s]: ", prompt, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
