// PokeBattle - peer-to-peer Pokemon battles over UDP.
//
// One binary plays all three roles: a host that accepts a challenger and
// fans chat out to spectators, a joiner that connects to a host, and a
// spectator that watches a battle in progress. Alongside the battle it can
// serve a read-only status API, record history to SQLite, and mirror
// events to an MQTT broker.
package main

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pokeproto-project/pokebattle/internal/battle"
	"github.com/pokeproto-project/pokebattle/internal/config"
	"github.com/pokeproto-project/pokebattle/internal/loop"
	"github.com/pokeproto-project/pokebattle/internal/session"
	"github.com/pokeproto-project/pokebattle/internal/util"
)

const (
	AppName    = "PokeBattle"
	AppVersion = "1.0.0"
	Banner     = `
  ____       _        ____        _   _   _
 |  _ \ ___ | | _____| __ )  __ _| |_| |_| | ___
 | |_) / _ \| |/ / _ \  _ \ / _' | __| __| |/ _ \
 |  __/ (_) |   <  __/ |_) | (_| | |_| |_| |  __/
 |_|   \___/|_|\_\___|____/ \__,_|\__|\__|_|\___|
                                       v%s
 P2P Pokemon battles over UDP
`
)

// Exit codes.
const (
	exitOK       = 0
	exitPeerLost = 2
	exitDesync   = 3
	exitStartup  = 4
)

var (
	flagConfigDir  string
	flagName       string
	flagListenPort int
	flagHostPort   int
	flagBroadcast  bool
)

func main() {
	root := &cobra.Command{
		Use:           "pokebattle",
		Short:         "P2P Pokemon battles over UDP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfigDir, "config", config.DefaultConfigDir, "configuration directory")
	root.PersistentFlags().StringVar(&flagName, "name", "", "trainer name (overrides config)")
	root.PersistentFlags().IntVar(&flagListenPort, "port", 0, "UDP listen port (overrides config)")

	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Host a battle and wait for a challenger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), session.RoleHost, netip.AddrPort{})
		},
	}
	hostCmd.Flags().BoolVar(&flagBroadcast, "broadcast", false, "set SO_BROADCAST on the socket; traffic still goes only to peer endpoints")

	joinCmd := &cobra.Command{
		Use:   "join <host-address>",
		Short: "Challenge a waiting host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := resolveHost(args[0])
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), session.RoleJoiner, dest)
		},
	}
	joinCmd.Flags().IntVar(&flagHostPort, "host-port", config.DefaultListenPort, "host UDP port when the address has none")

	spectateCmd := &cobra.Command{
		Use:   "spectate <host-address>",
		Short: "Watch a battle in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := resolveHost(args[0])
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), session.RoleSpectator, dest)
		},
	}
	spectateCmd.Flags().IntVar(&flagHostPort, "host-port", config.DefaultListenPort, "host UDP port when the address has none")

	root.AddCommand(hostCmd, joinCmd, spectateCmd)

	if err := root.Execute(); err != nil {
		switch {
		case errors.Is(err, loop.ErrPeerLost):
			log.Error().Err(err).Msg("counterparty lost")
			os.Exit(exitPeerLost)
		case errors.Is(err, battle.ErrProtocolDesync):
			log.Error().Err(err).Msg("protocol desync")
			os.Exit(exitDesync)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitStartup)
		}
	}
	os.Exit(exitOK)
}

// resolveHost parses a host endpoint, defaulting the port when absent.
func resolveHost(arg string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(arg); err == nil {
		return ap, nil
	}
	addr, err := netip.ParseAddr(arg)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid host address %q: %w", arg, err)
	}
	return netip.AddrPortFrom(addr, uint16(flagHostPort)), nil
}

// loadConfig loads, reconfigures logging, and validates the configuration,
// launching the setup wizard on first run.
func loadConfig() (*config.Config, error) {
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting PokeBattle")

	cfg, err := config.Load(flagConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logging := cfg.GetLogging()
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxBackups: logging.MaxBackups,
		Console:    logging.Console,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	if flagName != "" {
		player := cfg.GetPlayer()
		player.Name = flagName
		cfg.SetPlayer(player)
	}
	if flagListenPort != 0 {
		network := cfg.GetNetwork()
		network.ListenPort = flagListenPort
		cfg.SetNetwork(network)
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() || cfg.IsFirstRun() {
		if cfg.IsFirstRun() {
			log.Info().Msg("first run detected, launching setup wizard")
			if err := config.RunSetupWizard(cfg); err != nil {
				return nil, fmt.Errorf("setup wizard: %w", err)
			}
		} else {
			for _, e := range validation.Errors {
				log.Error().Str("field", e.Field).Msg(e.Message)
			}
			return nil, fmt.Errorf("configuration validation failed")
		}
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	return cfg, nil
}
