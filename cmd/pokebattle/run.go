package main

import (
	"context"
	"fmt"
	"net/netip"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pokeproto-project/pokebattle/internal/api"
	"github.com/pokeproto-project/pokebattle/internal/cli"
	"github.com/pokeproto-project/pokebattle/internal/db"
	"github.com/pokeproto-project/pokebattle/internal/events"
	"github.com/pokeproto-project/pokebattle/internal/loop"
	"github.com/pokeproto-project/pokebattle/internal/network"
	"github.com/pokeproto-project/pokebattle/internal/pokedex"
	"github.com/pokeproto-project/pokebattle/internal/reliability"
	"github.com/pokeproto-project/pokebattle/internal/scheduler"
	"github.com/pokeproto-project/pokebattle/internal/session"
	"github.com/pokeproto-project/pokebattle/internal/telemetry"
	"github.com/pokeproto-project/pokebattle/internal/util"
)

// runSession wires the socket, reliability layer, session, and observers
// together and drives the peer loop until it exits.
func runSession(parent context.Context, role session.Role, hostAddr netip.AddrPort) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	netCfg := cfg.GetNetwork()
	listenPort := 0
	if role == session.RoleHost {
		listenPort = netCfg.ListenPort
	} else if flagListenPort != 0 {
		listenPort = flagListenPort
	}

	conn, err := network.Listen(ctx, listenPort, flagBroadcast)
	if err != nil {
		return fmt.Errorf("binding UDP socket: %w", err)
	}
	defer conn.Close()
	log.Info().Stringer("addr", conn.LocalAddr()).Str("role", string(role)).Msg("UDP socket bound")
	if role == session.RoleHost {
		if ip, err := util.GetLocalIP(); err == nil {
			fmt.Printf("Waiting for a challenger. Share this address: %s:%d\n", ip, conn.LocalAddr().Port())
		}
	}

	eventBus := events.NewEventBus()
	catalog := pokedex.NewCatalog()

	rel := reliability.New(conn, reliability.Config{
		RetryInterval: netCfg.RetryInterval(),
		MaxRetries:    netCfg.MaxRetries,
		DedupWindow:   netCfg.DedupWindow,
	})

	var sess *session.Session
	switch role {
	case session.RoleHost:
		sess = session.NewHost(eventBus, catalog, rel)
	case session.RoleJoiner:
		sess = session.NewJoiner(eventBus, catalog, rel, hostAddr)
	case session.RoleSpectator:
		sess = session.NewSpectator(eventBus, catalog, rel, hostAddr)
	}
	if name := cfg.GetPlayer().Name; name != "" {
		sess.SetName(name)
	}

	peerLoop := loop.New(conn, rel, sess, loop.DefaultConfig())

	// Observers all hang off the event bus; none of them can touch the
	// loop-owned session.
	var wg sync.WaitGroup

	var battleLog *db.BattleLog
	if blCfg := cfg.GetBattleLog(); blCfg.Enabled {
		path := blCfg.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(flagConfigDir, path)
		}
		battleLog, err = db.NewBattleLog(path)
		if err != nil {
			return fmt.Errorf("opening battle log: %w", err)
		}
		defer battleLog.Close()
		battleLog.Attach(eventBus)
		log.Info().Str("path", path).Msg("battle log enabled")
	}

	if apiCfg := cfg.GetAPI(); apiCfg.Enabled {
		cache := api.NewSnapshotCache(string(role))
		cache.Attach(eventBus)
		apiServer := api.NewServer(apiCfg, cfg.GetLogging().Level, cache, battleLog)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("status API failed")
			}
		}()
	}

	if telCfg := cfg.GetTelemetry(); telCfg.Enabled {
		mqttHandler, err := telemetry.NewMQTTHandler(telCfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := mqttHandler.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("MQTT telemetry failed")
				}
			}()
		}
	}

	sched := scheduler.NewScheduler(cfg.GetLogging(), battleLog)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	console := cli.NewConsole(eventBus, peerLoop, catalog, string(role))
	console.Attach()
	wg.Add(1)
	go func() {
		defer wg.Done()
		console.Start(ctx)
	}()

	// The console's quit command rides the bus back here.
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(ctx context.Context, event events.Event) error {
		cancel()
		return nil
	})

	if err := sess.Start(time.Now()); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	runErr := peerLoop.Run(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Warn().Msg("shutdown timed out, forcing exit")
	}

	eventBus.Stop()
	log.Info().Msg("PokeBattle stopped")
	return runErr
}
