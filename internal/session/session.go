// Package session implements the role manager: handshake and seed
// distribution, the spectator registry, battle setup exchange, message demux,
// and chat routing with Host fan-out. The session is driven entirely by the
// owning peer loop; it never touches the socket directly and transmits only
// through the reliability layer.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/netip"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pokeproto-project/pokebattle/internal/battle"
	"github.com/pokeproto-project/pokebattle/internal/damage"
	"github.com/pokeproto-project/pokebattle/internal/events"
	"github.com/pokeproto-project/pokebattle/internal/pokedex"
	"github.com/pokeproto-project/pokebattle/internal/protocol"
)

// Role of the local peer.
type Role string

const (
	RoleHost      Role = "host"
	RoleJoiner    Role = "joiner"
	RoleSpectator Role = "spectator"
)

// Identity returns the sender_name this role uses on the chat wire.
func (r Role) Identity() string {
	switch r {
	case RoleHost:
		return "Host"
	case RoleJoiner:
		return "Joiner"
	default:
		return "Spectator"
	}
}

const (
	seedMin = 1
	seedMax = 99999
)

// Transport is the slice of the reliability layer the session transmits
// through. Every Send assigns a fresh sequence number, which is exactly what
// spectator fan-out requires.
type Transport interface {
	Send(msg protocol.Sequenced, dest netip.AddrPort, now time.Time) (uint64, error)
}

// Session holds one peer's role state: endpoints, seed, spectator registry,
// and the current battle. All methods must be called from the peer loop.
type Session struct {
	logger  zerolog.Logger
	bus     *events.EventBus
	catalog *pokedex.Catalog
	rel     Transport

	role     Role
	name     string
	commMode string

	hostAddr   netip.AddrPort // set for Joiner and Spectator
	joiner     netip.AddrPort // set for Host once the handshake lands
	hasJoiner  bool
	spectators map[netip.AddrPort]struct{}

	seed   uint32
	seedFn func() uint32
	engine *damage.Engine

	battle     *battle.Battle
	pendingOpp *battle.Pokemon
	turnCount  int

	// spectator display bookkeeping
	seenSetups   []string
	lastObserved *protocol.CalcReport

	lastHeard time.Time
}

// NewHost creates the listening side. The seed source must be independent of
// the game RNG; the default draws from math/rand seeded with the wall clock.
func NewHost(bus *events.EventBus, catalog *pokedex.Catalog, rel Transport) *Session {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := newSession(RoleHost, bus, catalog, rel)
	s.seedFn = func() uint32 { return uint32(seedMin + rng.Intn(seedMax-seedMin+1)) }
	return s
}

// NewJoiner creates the joining side pointed at the Host's endpoint.
func NewJoiner(bus *events.EventBus, catalog *pokedex.Catalog, rel Transport, host netip.AddrPort) *Session {
	s := newSession(RoleJoiner, bus, catalog, rel)
	s.hostAddr = host
	return s
}

// NewSpectator creates a read-only observer pointed at the Host's endpoint.
func NewSpectator(bus *events.EventBus, catalog *pokedex.Catalog, rel Transport, host netip.AddrPort) *Session {
	s := newSession(RoleSpectator, bus, catalog, rel)
	s.hostAddr = host
	return s
}

func newSession(role Role, bus *events.EventBus, catalog *pokedex.Catalog, rel Transport) *Session {
	return &Session{
		logger:     log.With().Str("component", "session").Str("role", string(role)).Logger(),
		bus:        bus,
		catalog:    catalog,
		rel:        rel,
		role:       role,
		name:       role.Identity(),
		commMode:   protocol.ModeP2P,
		spectators: make(map[netip.AddrPort]struct{}),
	}
}

func (s *Session) Role() Role             { return s.role }
func (s *Session) Seed() uint32           { return s.seed }
func (s *Session) Battle() *battle.Battle { return s.battle }
func (s *Session) LastHeard() time.Time   { return s.lastHeard }
func (s *Session) SpectatorCount() int    { return len(s.spectators) }

// SetName overrides the chat display name. The default is the role identity;
// distinct names let multiple spectators tell each other apart and keep the
// self-echo guard precise.
func (s *Session) SetName(name string) {
	if name != "" {
		s.name = name
	}
}

// SetCommunicationMode switches between P2P and BROADCAST for the
// battle-setup announcement.
func (s *Session) SetCommunicationMode(mode string) error {
	if mode != protocol.ModeP2P && mode != protocol.ModeBroadcast {
		return fmt.Errorf("unknown communication mode %q", mode)
	}
	s.commMode = mode
	return nil
}

// Counterparty returns the battle peer's endpoint.
func (s *Session) Counterparty() (netip.AddrPort, bool) {
	if s.role == RoleHost {
		return s.joiner, s.hasJoiner
	}
	return s.hostAddr, s.hostAddr.IsValid()
}

// Start transmits the role's opening message. The Host listens and sends
// nothing.
func (s *Session) Start(now time.Time) error {
	switch s.role {
	case RoleJoiner:
		_, err := s.rel.Send(&protocol.HandshakeRequest{}, s.hostAddr, now)
		return err
	case RoleSpectator:
		_, err := s.rel.Send(&protocol.SpectatorRequest{}, s.hostAddr, now)
		return err
	}
	return nil
}

// HandleMessage demultiplexes one deduplicated inbound message. Recoverable
// conditions are logged and swallowed; only a protocol desync propagates.
func (s *Session) HandleMessage(ctx context.Context, msg protocol.Sequenced, src netip.AddrPort, now time.Time) error {
	s.lastHeard = now

	switch m := msg.(type) {
	case *protocol.HandshakeRequest:
		return s.handleHandshakeRequest(ctx, src, now)
	case *protocol.SpectatorRequest:
		return s.handleSpectatorRequest(ctx, src, now)
	case *protocol.HandshakeResponse:
		return s.handleHandshakeResponse(ctx, m, src)
	case *protocol.BattleSetup:
		return s.handleBattleSetup(ctx, m, src, now)
	case *protocol.ChatMessage:
		return s.handleChat(ctx, m, src, now)
	case *protocol.RematchRequest:
		return s.handleRematchRequest(ctx, m, src, now)
	default:
		return s.handleBattleMessage(ctx, msg, src, now)
	}
}

func (s *Session) handleHandshakeRequest(ctx context.Context, src netip.AddrPort, now time.Time) error {
	if s.role != RoleHost {
		s.logger.Warn().Stringer("src", src).Msg("handshake request at a non-host, dropped")
		return nil
	}
	if s.hasJoiner && src != s.joiner {
		s.logger.Warn().Stringer("src", src).Msg("second joiner rejected, session occupied")
		return nil
	}
	if !s.hasJoiner {
		s.joiner = src
		s.hasJoiner = true
		s.seed = s.seedFn()
		s.engine = damage.NewEngine(s.seed)
		s.logger.Info().Stringer("joiner", src).Uint32("seed", s.seed).Msg("joiner connected")
		s.bus.Emit(ctx, events.Event{
			Type:    events.EventPeerConnected,
			Source:  "session",
			Payload: events.PeerPayload{Addr: src.String(), Role: string(RoleJoiner)},
		})
	}
	// A repeated request from the same endpoint gets the same answer.
	_, err := s.rel.Send(&protocol.HandshakeResponse{Seed: s.seed}, src, now)
	return err
}

func (s *Session) handleSpectatorRequest(ctx context.Context, src netip.AddrPort, now time.Time) error {
	if s.role != RoleHost {
		s.logger.Warn().Stringer("src", src).Msg("spectator request at a non-host, dropped")
		return nil
	}
	if _, ok := s.spectators[src]; !ok {
		s.spectators[src] = struct{}{}
		s.logger.Info().Stringer("spectator", src).Int("count", len(s.spectators)).Msg("spectator joined")
		s.bus.Emit(ctx, events.Event{
			Type:    events.EventSpectatorJoined,
			Source:  "session",
			Payload: events.PeerPayload{Addr: src.String(), Role: string(RoleSpectator)},
		})
	}
	// Late joins observe from here on; the seed is 0 before the first battle.
	_, err := s.rel.Send(&protocol.HandshakeResponse{Seed: s.seed}, src, now)
	return err
}

func (s *Session) handleHandshakeResponse(ctx context.Context, msg *protocol.HandshakeResponse, src netip.AddrPort) error {
	if s.role == RoleHost {
		s.logger.Warn().Stringer("src", src).Msg("handshake response at the host, dropped")
		return nil
	}
	s.seed = msg.Seed
	if s.role == RoleJoiner {
		s.engine = damage.NewEngine(s.seed)
	}
	s.logger.Info().Uint32("seed", s.seed).Msg("connected to host")
	s.bus.Emit(ctx, events.Event{
		Type:    events.EventPeerConnected,
		Source:  "session",
		Payload: events.PeerPayload{Addr: src.String(), Role: string(RoleHost)},
	})
	return nil
}

// StartBattle chooses the local Pokemon and transmits BattleSetup. After an
// agreed rematch the existing battle is reused in Setup with the same
// Pokemon; otherwise a fresh machine is built on the session's engine.
func (s *Session) StartBattle(ctx context.Context, pokemonName string, attackBoosts, defenseBoosts int, now time.Time) error {
	if s.role == RoleSpectator {
		return fmt.Errorf("%w: spectators cannot battle", battle.ErrIllegalState)
	}
	if s.engine == nil {
		return ErrNoSeed
	}
	dest, ok := s.Counterparty()
	if !ok {
		return ErrNoPeer
	}

	var mine *battle.Pokemon
	if s.battle != nil && s.battle.State() == battle.StateSetup && s.battle.Mine() != nil {
		mine = s.battle.Mine()
	} else {
		base, err := s.catalog.Pokemon(pokemonName)
		if err != nil {
			return err
		}
		mine = battle.NewPokemon(base, attackBoosts, defenseBoosts)
		s.battle = battle.New(s.catalog, s.engine, mine, s.role == RoleHost)
		s.turnCount = 0
	}

	setup := &protocol.BattleSetup{
		CommunicationMode: s.commMode,
		PokemonName:       mine.Name,
		StatBoosts: protocol.FormatObjectLiteral(map[string]string{
			"special_attack_uses":  strconv.Itoa(mine.AttackBoostsRemaining),
			"special_defense_uses": strconv.Itoa(mine.DefenseBoostsRemaining),
		}),
		PokemonData: formatPokemonData(mine),
	}
	if _, err := s.rel.Send(setup, dest, now); err != nil {
		return err
	}
	s.fanOut(setup, netip.AddrPort{}, now)

	if s.pendingOpp != nil {
		opp := s.pendingOpp
		s.pendingOpp = nil
		return s.installOpponent(ctx, opp)
	}
	return nil
}

func (s *Session) handleBattleSetup(ctx context.Context, msg *protocol.BattleSetup, src netip.AddrPort, now time.Time) error {
	if s.role == RoleSpectator {
		s.seenSetups = append(s.seenSetups, msg.PokemonName)
		if len(s.seenSetups) == 2 {
			s.bus.Emit(ctx, events.Event{
				Type:    events.EventBattleStarted,
				Source:  "session",
				Payload: events.BattleStartedPayload{MyPokemon: s.seenSetups[0], OppPokemon: s.seenSetups[1], Seed: s.seed},
			})
		}
		return nil
	}
	if peer, ok := s.Counterparty(); !ok || src != peer {
		s.logger.Warn().Stringer("src", src).Msg("battle setup from a non-peer, dropped")
		return nil
	}

	opp, err := parseBattleSetup(msg)
	if err != nil {
		s.logger.Warn().Err(err).Msg("unusable battle setup, dropped")
		return nil
	}
	s.fanOut(msg, netip.AddrPort{}, now)

	if s.battle == nil || s.battle.State() != battle.StateSetup {
		// Their setup outran our local choice; hold it.
		s.pendingOpp = opp
		return nil
	}
	return s.installOpponent(ctx, opp)
}

func (s *Session) installOpponent(ctx context.Context, opp *battle.Pokemon) error {
	if err := s.battle.SetOpponent(opp); err != nil {
		return err
	}
	s.bus.Emit(ctx, events.Event{
		Type:   events.EventBattleStarted,
		Source: "session",
		Payload: events.BattleStartedPayload{
			MyPokemon:  s.battle.Mine().Name,
			OppPokemon: opp.Name,
			Seed:       s.seed,
			HostOpens:  true,
		},
	})
	return nil
}

// SubmitMove plays the local turn and transmits the announce.
func (s *Session) SubmitMove(ctx context.Context, moveName string, useBoost bool, now time.Time) error {
	if s.battle == nil {
		return fmt.Errorf("%w: no battle in progress", battle.ErrIllegalState)
	}
	dest, ok := s.Counterparty()
	if !ok {
		return ErrNoPeer
	}
	ann, err := s.battle.SubmitMove(moveName, useBoost)
	if err != nil {
		return err
	}
	if _, err := s.rel.Send(ann, dest, now); err != nil {
		return err
	}
	s.fanOut(ann, netip.AddrPort{}, now)
	return nil
}

// ArmDefenseBoost declares a special-defense boost for the next incoming
// attack.
func (s *Session) ArmDefenseBoost() error {
	if s.battle == nil {
		return fmt.Errorf("%w: no battle in progress", battle.ErrIllegalState)
	}
	return s.battle.ArmDefenseBoost()
}

func (s *Session) handleBattleMessage(ctx context.Context, msg protocol.Sequenced, src netip.AddrPort, now time.Time) error {
	if s.role == RoleSpectator {
		s.observe(ctx, msg)
		return nil
	}
	peer, ok := s.Counterparty()
	if !ok || src != peer {
		s.logger.Warn().Stringer("src", src).Str("kind", string(msg.Kind())).Msg("battle message from a non-peer, dropped")
		return nil
	}
	if s.battle == nil {
		s.logger.Warn().Str("kind", string(msg.Kind())).Msg("battle message without a battle, dropped")
		return nil
	}
	s.fanOut(msg, netip.AddrPort{}, now)

	var (
		out battle.Output
		err error
	)
	switch m := msg.(type) {
	case *protocol.AttackAnnounce:
		out, err = s.battle.HandleAttackAnnounce(m)
	case *protocol.DefenseAnnounce:
		out, err = s.battle.HandleDefenseAnnounce(m)
	case *protocol.CalcReport:
		out, err = s.battle.HandleCalcReport(m)
	case *protocol.CalcConfirm:
		out, err = s.battle.HandleCalcConfirm(m)
	case *protocol.ResolutionRequest:
		out, err = s.battle.HandleResolutionRequest(m)
	case *protocol.GameOver:
		out = s.battle.HandleGameOver(m)
	default:
		s.logger.Warn().Str("kind", string(msg.Kind())).Msg("unroutable message kind, dropped")
		return nil
	}

	deliverErr := s.deliver(ctx, out, now)
	if err != nil {
		if errors.Is(err, battle.ErrProtocolDesync) {
			return err
		}
		s.logger.Warn().Err(err).Str("kind", string(msg.Kind())).Msg("battle message refused")
		return nil
	}
	return deliverErr
}

// deliver transmits a battle output to the counterparty, mirrors it to
// spectators, and emits the corresponding events.
func (s *Session) deliver(ctx context.Context, out battle.Output, now time.Time) error {
	dest, ok := s.Counterparty()
	for _, m := range out.Send {
		if ok {
			if _, err := s.rel.Send(m, dest, now); err != nil {
				return err
			}
		}
		s.fanOut(m, netip.AddrPort{}, now)
	}
	if d := out.Discrepancy; d != nil {
		s.bus.Emit(ctx, events.Event{
			Type:   events.EventDiscrepancy,
			Source: "session",
			Payload: events.DiscrepancyPayload{
				TurnNumber:   s.turnCount + 1,
				LocalDamage:  d.LocalDamage,
				RemoteDamage: d.RemoteDamage,
				Resolved:     d.Resolved,
			},
		})
	}
	if out.Turn != nil {
		s.turnCount++
		s.bus.Emit(ctx, events.Event{
			Type:   events.EventTurnCommitted,
			Source: "session",
			Payload: events.TurnCommittedPayload{
				TurnNumber:   s.turnCount,
				Attacker:     out.Turn.Attacker,
				Defender:     out.Turn.Defender,
				Move:         out.Turn.Move,
				Damage:       out.Turn.Damage,
				DefenderHP:   out.Turn.DefenderHP,
				Status:       out.Turn.Status,
				AttackBoost:  out.Turn.AttackBoost,
				DefenseBoost: out.Turn.DefenseBoost,
			},
		})
	}
	if out.Over != nil {
		s.bus.Emit(ctx, events.Event{
			Type:   events.EventBattleEnded,
			Source: "session",
			Payload: events.BattleEndedPayload{
				Winner:  out.Over.Winner,
				Loser:   out.Over.Loser,
				Turns:   s.turnCount,
				Desync:  out.Over.Desync,
				Aborted: out.Over.Aborted,
				Reason:  out.Over.Reason,
			},
		})
	}
	return nil
}

// observe renders relayed battle traffic for a spectator's display. The Host
// relays both peers' calculation reports for the same turn; the second of an
// agreeing pair is not re-rendered.
func (s *Session) observe(ctx context.Context, msg protocol.Sequenced) {
	switch m := msg.(type) {
	case *protocol.CalcReport:
		if last := s.lastObserved; last != nil &&
			last.Attacker == m.Attacker && last.MoveUsed == m.MoveUsed &&
			last.DamageDealt == m.DamageDealt && last.DefenderHPRemaining == m.DefenderHPRemaining {
			return
		}
		cp := *m
		s.lastObserved = &cp
		s.turnCount++
		hp := m.DefenderHPRemaining
		if hp < 0 {
			hp = 0
		}
		s.bus.Emit(ctx, events.Event{
			Type:   events.EventTurnCommitted,
			Source: "session",
			Payload: events.TurnCommittedPayload{
				TurnNumber: s.turnCount,
				Attacker:   m.Attacker,
				Move:       m.MoveUsed,
				Damage:     m.DamageDealt,
				DefenderHP: hp,
				Status:     m.StatusMessage,
			},
		})
	case *protocol.GameOver:
		s.bus.Emit(ctx, events.Event{
			Type:    events.EventBattleEnded,
			Source:  "session",
			Payload: events.BattleEndedPayload{Winner: m.Winner, Loser: m.Loser, Turns: s.turnCount},
		})
	}
}

// RequestRematch transmits the local rematch wish and resets the battle if
// the counterparty already agreed.
func (s *Session) RequestRematch(ctx context.Context, want bool, now time.Time) error {
	if s.battle == nil {
		return fmt.Errorf("%w: no battle to rematch", battle.ErrIllegalState)
	}
	dest, ok := s.Counterparty()
	if !ok {
		return ErrNoPeer
	}
	req, err := s.battle.RequestRematch(want)
	if err != nil {
		return err
	}
	if _, err := s.rel.Send(req, dest, now); err != nil {
		return err
	}
	s.fanOut(req, netip.AddrPort{}, now)
	if s.battle.RematchAgreed() {
		s.resetForRematch(ctx)
	}
	return nil
}

func (s *Session) handleRematchRequest(ctx context.Context, msg *protocol.RematchRequest, src netip.AddrPort, now time.Time) error {
	if s.role == RoleSpectator {
		return nil
	}
	if peer, ok := s.Counterparty(); !ok || src != peer {
		return nil
	}
	if s.battle == nil {
		return nil
	}
	s.fanOut(msg, netip.AddrPort{}, now)
	if s.battle.HandleRematchRequest(msg) {
		s.resetForRematch(ctx)
	}
	return nil
}

func (s *Session) resetForRematch(ctx context.Context) {
	s.battle.ResetForRematch()
	s.turnCount = 0
	s.logger.Info().Msg("rematch agreed, battle reset")
	s.bus.Emit(ctx, events.Event{Type: events.EventRematchAgreed, Source: "session"})
}

// PeerLost aborts the battle after the reliability layer exhausted its
// retries or the liveness window lapsed.
func (s *Session) PeerLost(ctx context.Context, reason string, now time.Time) {
	s.logger.Error().Str("reason", reason).Msg("peer lost")
	s.bus.Emit(ctx, events.Event{
		Type:    events.EventPeerLost,
		Source:  "session",
		Payload: events.PeerPayload{Role: string(s.role)},
	})
	if s.battle != nil && s.battle.State() != battle.StateGameOver {
		out := s.battle.Abort(reason)
		_ = s.deliver(ctx, out, now)
	}
}

// DropSpectator removes an unreachable spectator from the fan-out registry.
// Dropping an unknown endpoint is a no-op; the spectator may rejoin later.
func (s *Session) DropSpectator(addr netip.AddrPort) {
	if _, ok := s.spectators[addr]; !ok {
		return
	}
	delete(s.spectators, addr)
	s.logger.Info().Stringer("spectator", addr).Msg("unreachable spectator dropped")
}

// IsSpectatorEndpoint reports whether addr is a registered spectator.
func (s *Session) IsSpectatorEndpoint(addr netip.AddrPort) bool {
	_, ok := s.spectators[addr]
	return ok
}

// fanOut mirrors one message to every registered spectator except the
// excluded endpoint. Each transmission draws a fresh sequence number from the
// Host's outbound counter. Non-hosts have no registry and do nothing.
func (s *Session) fanOut(msg protocol.Sequenced, exclude netip.AddrPort, now time.Time) {
	for sp := range s.spectators {
		if sp == exclude {
			continue
		}
		if _, err := s.rel.Send(msg, sp, now); err != nil {
			s.logger.Warn().Err(err).Stringer("spectator", sp).Msg("spectator fan-out failed")
		}
	}
}

// formatPokemonData renders the self-contained stat block the counterparty
// rebuilds the Pokemon from.
func formatPokemonData(p *battle.Pokemon) string {
	return protocol.FormatObjectLiteral(map[string]string{
		"name":       p.Name,
		"hp":         strconv.Itoa(p.MaxHP),
		"attack":     strconv.Itoa(p.Attack),
		"defense":    strconv.Itoa(p.Defense),
		"sp_attack":  strconv.Itoa(p.SpAttack),
		"sp_defense": strconv.Itoa(p.SpDefense),
		"speed":      strconv.Itoa(p.Speed),
		"type1":      p.Type1,
		"type2":      p.Type2,
	})
}

// parseBattleSetup rebuilds the opposing Pokemon purely from the wire data,
// so a counterparty with a divergent catalog still battles consistently.
func parseBattleSetup(msg *protocol.BattleSetup) (*battle.Pokemon, error) {
	boosts, err := protocol.ParseObjectLiteral(msg.StatBoosts)
	if err != nil {
		return nil, fmt.Errorf("stat_boosts: %w", err)
	}
	data, err := protocol.ParseObjectLiteral(msg.PokemonData)
	if err != nil {
		return nil, fmt.Errorf("pokemon_data: %w", err)
	}

	intField := func(fields map[string]string, key string) (int, error) {
		v, ok := fields[key]
		if !ok {
			return 0, fmt.Errorf("missing field %q", key)
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", key, err)
		}
		return n, nil
	}

	base := pokedex.Pokemon{Name: msg.PokemonName, Type1: data["type1"], Type2: data["type2"]}
	if name, ok := data["name"]; ok && name != "" {
		base.Name = name
	}
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"hp", &base.HP},
		{"attack", &base.Attack},
		{"defense", &base.Defense},
		{"sp_attack", &base.SpAttack},
		{"sp_defense", &base.SpDefense},
		{"speed", &base.Speed},
	} {
		if *f.dst, err = intField(data, f.key); err != nil {
			return nil, err
		}
	}

	atkUses, err := intField(boosts, "special_attack_uses")
	if err != nil {
		return nil, err
	}
	defUses, err := intField(boosts, "special_defense_uses")
	if err != nil {
		return nil, err
	}
	return battle.NewPokemon(base, atkUses, defUses), nil
}
