// Package cli implements the interactive battle console: move entry, chat,
// boost arming, rematch prompts, and formatted roster and status tables.
// Session state is only touched through loop commands so the console never
// races the peer loop.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/pokeproto-project/pokebattle/internal/battle"
	"github.com/pokeproto-project/pokebattle/internal/events"
	"github.com/pokeproto-project/pokebattle/internal/loop"
	"github.com/pokeproto-project/pokebattle/internal/pokedex"
	"github.com/pokeproto-project/pokebattle/internal/protocol"
	"github.com/pokeproto-project/pokebattle/internal/session"
)

// Console is the interactive command-line interface for one session.
type Console struct {
	bus     *events.EventBus
	loop    *loop.Loop
	catalog *pokedex.Catalog
	role    string

	in  io.Reader
	out io.Writer
}

// NewConsole creates a console bound to the session's loop.
func NewConsole(bus *events.EventBus, l *loop.Loop, catalog *pokedex.Catalog, role string) *Console {
	return &Console{
		bus:     bus,
		loop:    l,
		catalog: catalog,
		role:    role,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

// Attach subscribes the console to the event stream so battle progress is
// narrated on stdout as it happens.
func (c *Console) Attach() {
	c.bus.Subscribe(events.EventPeerConnected, "cli.peerConnected", c.onPeerConnected)
	c.bus.Subscribe(events.EventPeerLost, "cli.peerLost", c.onPeerLost)
	c.bus.Subscribe(events.EventSpectatorJoined, "cli.spectatorJoined", c.onSpectatorJoined)
	c.bus.Subscribe(events.EventBattleStarted, "cli.battleStarted", c.onBattleStarted)
	c.bus.Subscribe(events.EventTurnCommitted, "cli.turnCommitted", c.onTurnCommitted)
	c.bus.Subscribe(events.EventDiscrepancy, "cli.discrepancy", c.onDiscrepancy)
	c.bus.Subscribe(events.EventBattleEnded, "cli.battleEnded", c.onBattleEnded)
	c.bus.Subscribe(events.EventRematchAgreed, "cli.rematchAgreed", c.onRematchAgreed)
	c.bus.Subscribe(events.EventChatReceived, "cli.chat", c.onChat)
}

// Start reads commands until EOF or ctx cancellation.
func (c *Console) Start(ctx context.Context) {
	fmt.Fprintf(c.out, "\nPokeBattle console ready (%s). Type 'help' for commands.\n", c.role)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "pokebattle> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			parts := strings.Fields(line)
			cmd := strings.ToLower(parts[0])
			args := parts[1:]
			if err := c.execute(ctx, cmd, args); err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// execute processes a single console command.
func (c *Console) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		return c.printStatus()
	case "pokedex", "roster":
		c.printPokedex()
	case "moves":
		c.printMoves(args)
	case "battle":
		return c.cmdBattle(args)
	case "move", "m":
		return c.cmdMove(args)
	case "defend", "d":
		return c.cmdDefend()
	case "rematch":
		return c.cmdRematch(args)
	case "say", "chat":
		return c.cmdSay(args)
	case "sticker":
		return c.cmdSticker(args)
	case "mode":
		return c.cmdMode(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Leaving the session...")
		c.bus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Commands:
  status               Show session and battle state
  pokedex              List the Pokemon roster
  moves [type]         List moves, optionally by type
  battle <pokemon> [atk] [def]
                       Choose your Pokemon and send the battle setup
  move <name> [boost]  Attack with a move; 'boost' spends an attack boost
  defend               Arm a defense boost for the incoming attack
  rematch [yes|no]     Answer or offer a rematch
  say <text>           Send a chat line
  sticker <file>       Send an image sticker
  mode <p2p|broadcast> Set the communication mode sent in the battle setup
  quit                 Leave the session`)
}

// submit runs fn on the peer loop and waits for it to complete.
func (c *Console) submit(fn loop.Command) error {
	done := make(chan error, 1)
	err := c.loop.Submit(func(ctx context.Context, now time.Time) error {
		done <- fn(ctx, now)
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		return fmt.Errorf("session busy, try again")
	}
}

// statusView is the loop-owned state the status table renders.
type statusView struct {
	role       string
	peer       string
	spectators int
	state      string
	myTurn     bool
	mine       *combatantView
	opp        *combatantView
}

type combatantView struct {
	name    string
	hp      int
	maxHP   int
	attacks int
	defends int
}

func (c *Console) printStatus() error {
	var view statusView
	err := c.submit(func(ctx context.Context, now time.Time) error {
		sess := c.loop.Session()
		view.role = string(sess.Role())
		view.spectators = sess.SpectatorCount()
		if addr, ok := sess.Counterparty(); ok {
			view.peer = addr.String()
		}
		if b := sess.Battle(); b != nil {
			view.state = string(b.State())
			view.myTurn = b.MyTurn()
			view.mine = newCombatantView(b.Mine())
			view.opp = newCombatantView(b.Opponent())
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Role", "Peer", "Spectators", "Battle", "My Turn"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	peer := view.peer
	if peer == "" {
		peer = "-"
	}
	state := view.state
	if state == "" {
		state = "idle"
	}
	tw.Append([]string{
		view.role,
		peer,
		fmt.Sprintf("%d", view.spectators),
		state,
		fmt.Sprintf("%v", view.myTurn),
	})
	tw.Render()

	if view.mine != nil {
		fmt.Fprintln(c.out)
		ct := tablewriter.NewWriter(c.out)
		ct.SetHeader([]string{"", "Pokemon", "HP", "Atk Boosts", "Def Boosts"})
		ct.SetBorder(true)
		ct.Append(view.mine.row("You"))
		if view.opp != nil {
			ct.Append(view.opp.row("Opponent"))
		}
		ct.Render()
	}
	fmt.Fprintln(c.out)
	return nil
}

func newCombatantView(p *battle.Pokemon) *combatantView {
	if p == nil {
		return nil
	}
	return &combatantView{
		name:    p.Name,
		hp:      p.CurrentHP,
		maxHP:   p.MaxHP,
		attacks: p.AttackBoostsRemaining,
		defends: p.DefenseBoostsRemaining,
	}
}

func (v *combatantView) row(who string) []string {
	return []string{
		who,
		v.name,
		fmt.Sprintf("%d/%d", v.hp, v.maxHP),
		fmt.Sprintf("%d", v.attacks),
		fmt.Sprintf("%d", v.defends),
	}
}

func (c *Console) printPokedex() {
	fmt.Fprintln(c.out)
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Pokemon", "Type", "HP", "Atk", "Def", "SpA", "SpD", "Speed"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, name := range c.catalog.PokemonNames() {
		p, err := c.catalog.Pokemon(name)
		if err != nil {
			continue
		}
		typ := p.Type1
		if p.Type2 != "" {
			typ = typ + "/" + p.Type2
		}
		tw.Append([]string{
			p.Name, typ,
			fmt.Sprintf("%d", p.HP),
			fmt.Sprintf("%d", p.Attack),
			fmt.Sprintf("%d", p.Defense),
			fmt.Sprintf("%d", p.SpAttack),
			fmt.Sprintf("%d", p.SpDefense),
			fmt.Sprintf("%d", p.Speed),
		})
	}
	tw.Render()
	fmt.Fprintln(c.out)
}

func (c *Console) printMoves(args []string) {
	var moves []pokedex.Move
	if len(args) > 0 {
		moves = c.catalog.MovesByType(args[0])
		if len(moves) == 0 {
			fmt.Fprintf(c.out, "No moves of type %q\n", args[0])
			return
		}
	} else {
		for _, name := range c.catalog.MoveNames() {
			if m, err := c.catalog.Move(name); err == nil {
				moves = append(moves, m)
			}
		}
	}

	fmt.Fprintln(c.out)
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader([]string{"Move", "Type", "Category", "Power"})
	tw.SetBorder(true)
	for _, m := range moves {
		tw.Append([]string{m.Name, m.Type, m.Category, fmt.Sprintf("%d", m.Power)})
	}
	tw.Render()
	fmt.Fprintln(c.out)
}

func (c *Console) cmdBattle(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: battle <pokemon> [attack_boosts] [defense_boosts]")
	}
	name := args[0]
	attackBoosts, defenseBoosts := 3, 3
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid attack boost count: %s", args[1])
		}
		attackBoosts = n
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid defense boost count: %s", args[2])
		}
		defenseBoosts = n
	}

	return c.submit(func(ctx context.Context, now time.Time) error {
		return c.loop.Session().StartBattle(ctx, name, attackBoosts, defenseBoosts, now)
	})
}

func (c *Console) cmdMove(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: move <name> [boost]")
	}
	useBoost := false
	moveArgs := args
	if last := strings.ToLower(args[len(args)-1]); last == "boost" {
		useBoost = true
		moveArgs = args[:len(args)-1]
	}
	if len(moveArgs) == 0 {
		return fmt.Errorf("usage: move <name> [boost]")
	}
	moveName := strings.Join(moveArgs, " ")

	return c.submit(func(ctx context.Context, now time.Time) error {
		return c.loop.Session().SubmitMove(ctx, moveName, useBoost, now)
	})
}

func (c *Console) cmdDefend() error {
	err := c.submit(func(ctx context.Context, now time.Time) error {
		return c.loop.Session().ArmDefenseBoost()
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Defense boost armed for the next incoming attack.")
	return nil
}

func (c *Console) cmdRematch(args []string) error {
	want := true
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "yes", "y":
			want = true
		case "no", "n":
			want = false
		default:
			return fmt.Errorf("usage: rematch [yes|no]")
		}
	}
	return c.submit(func(ctx context.Context, now time.Time) error {
		return c.loop.Session().RequestRematch(ctx, want, now)
	})
}

func (c *Console) cmdSay(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: say <text>")
	}
	text := strings.Join(args, " ")
	return c.submit(func(ctx context.Context, now time.Time) error {
		return c.loop.Session().SendChat(ctx, text, now)
	})
}

func (c *Console) cmdSticker(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sticker <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading sticker: %w", err)
	}
	if len(data) > session.MaxStickerBytes {
		return fmt.Errorf("sticker is %d bytes, limit is %d", len(data), session.MaxStickerBytes)
	}
	return c.submit(func(ctx context.Context, now time.Time) error {
		return c.loop.Session().SendSticker(ctx, data, now)
	})
}

func (c *Console) cmdMode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mode <p2p|broadcast>")
	}
	var mode string
	switch strings.ToLower(args[0]) {
	case "p2p":
		mode = protocol.ModeP2P
	case "broadcast":
		mode = protocol.ModeBroadcast
	default:
		return fmt.Errorf("unknown mode %q", args[0])
	}
	err := c.submit(func(ctx context.Context, now time.Time) error {
		return c.loop.Session().SetCommunicationMode(mode)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Communication mode set to %s\n", mode)
	return nil
}

func (c *Console) onPeerConnected(ctx context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.PeerPayload); ok {
		fmt.Fprintf(c.out, "\n* Peer connected: %s (%s)\n", p.Addr, p.Role)
	}
	return nil
}

func (c *Console) onPeerLost(ctx context.Context, event events.Event) error {
	fmt.Fprintln(c.out, "\n* Peer lost. The session is over.")
	return nil
}

func (c *Console) onSpectatorJoined(ctx context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.PeerPayload); ok {
		fmt.Fprintf(c.out, "\n* Spectator joined from %s\n", p.Addr)
	}
	return nil
}

func (c *Console) onBattleStarted(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BattleStartedPayload)
	if !ok {
		return nil
	}
	opener := "your opponent opens"
	if p.HostOpens == (c.role == string(session.RoleHost)) {
		opener = "you open"
	}
	fmt.Fprintf(c.out, "\n* Battle started: %s vs %s (%s)\n", p.MyPokemon, p.OppPokemon, opener)
	return nil
}

func (c *Console) onTurnCommitted(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TurnCommittedPayload)
	if !ok {
		return nil
	}
	line := fmt.Sprintf("\n* Turn %d: %s used %s on %s for %d damage (%d HP left)",
		p.TurnNumber, p.Attacker, p.Move, p.Defender, p.Damage, p.DefenderHP)
	if p.Status != "" {
		line += " " + p.Status
	}
	fmt.Fprintln(c.out, line)
	return nil
}

func (c *Console) onDiscrepancy(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.DiscrepancyPayload)
	if !ok {
		return nil
	}
	if p.Resolved {
		fmt.Fprintf(c.out, "\n* Discrepancy on turn %d resolved at %d damage\n",
			p.TurnNumber, p.LocalDamage)
		return nil
	}
	fmt.Fprintf(c.out, "\n* Damage discrepancy on turn %d: local %d, remote %d\n",
		p.TurnNumber, p.LocalDamage, p.RemoteDamage)
	return nil
}

func (c *Console) onBattleEnded(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.BattleEndedPayload)
	if !ok {
		return nil
	}
	switch {
	case p.Desync:
		fmt.Fprintf(c.out, "\n* Battle aborted after %d turns: %s\n", p.Turns, p.Reason)
	case p.Aborted:
		fmt.Fprintf(c.out, "\n* Battle aborted: %s\n", p.Reason)
	default:
		fmt.Fprintf(c.out, "\n* Battle over in %d turns: %s defeats %s\n", p.Turns, p.Winner, p.Loser)
		fmt.Fprintln(c.out, "  Type 'rematch' to offer a rematch, or 'quit' to leave.")
	}
	return nil
}

func (c *Console) onRematchAgreed(ctx context.Context, event events.Event) error {
	fmt.Fprintln(c.out, "\n* Rematch agreed! Both sides run 'battle <pokemon>' again; the previous Pokemon is reused at full HP.")
	return nil
}

func (c *Console) onChat(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.ChatPayload)
	if !ok {
		return nil
	}
	if p.Outbound {
		return nil
	}
	if p.ContentType == protocol.ContentSticker {
		fmt.Fprintf(c.out, "\n[%s] sent a sticker (%d bytes)\n", p.Sender, len(p.Sticker))
		return nil
	}
	fmt.Fprintf(c.out, "\n[%s] %s\n", p.Sender, p.Text)
	return nil
}
