// Package cli implements the interactive operator console for the
// gateway process: live session and inventory tables, audit history,
// and configuration updates.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/bellhop-project/bellhop/internal/audit"
	"github.com/bellhop-project/bellhop/internal/config"
	"github.com/bellhop-project/bellhop/internal/events"
	"github.com/bellhop-project/bellhop/internal/gateway"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	gw       *gateway.Gateway
	store    *audit.Store
}

// NewCLI creates a new CLI handler. store may be nil when the audit log
// is disabled.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, gw *gateway.Gateway, store *audit.Store) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		gw:       gw,
		store:    store,
	}
}

// Start begins the interactive CLI loop. Returns when the input stream
// ends or the context is cancelled.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nBellhop CLI ready. Type 'help' for available commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("bellhop> ")
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if err := c.execute(ctx, cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "sessions", "s":
		c.printSessions()
	case "inventory", "i":
		c.printInventory(args)
	case "partitions", "p":
		c.printPartitions()
	case "audit", "a":
		return c.printAudit(args)
	case "setconfig":
		return c.cmdSetConfig(ctx, args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down Bellhop...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println()
	fmt.Println("  sessions             Show connected client sessions")
	fmt.Println("  inventory [prefix]   Show observed room availability")
	fmt.Println("  partitions           Show configured inventory nodes")
	fmt.Println("  audit [n]            Show the last n audit entries")
	fmt.Println("  setconfig <k> <v>    Update an application config value")
	fmt.Println("  quit                 Shutdown Bellhop")
	fmt.Println("  help                 Show this help message")
	fmt.Println()
}

// printSessions displays all live sessions in a formatted table.
func (c *CLI) printSessions() {
	sessions := c.gw.Sessions().All()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Handle < sessions[j].Handle })

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Handle", "Name", "State", "Kind", "Remote"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, s := range sessions {
		state := "login"
		kind := "-"
		name := s.Name
		if name == "" {
			name = "-"
		}
		if s.Authenticated {
			state = "active"
			if s.Member {
				kind = "member"
			} else {
				kind = "guest"
			}
		}
		tw.Append([]string{
			strconv.FormatUint(s.Handle, 10),
			name,
			state,
			kind,
			s.RemoteAddr,
		})
	}

	tw.Render()
	fmt.Printf("%d session(s)\n\n", len(sessions))
}

// printInventory displays the observed room counts, optionally filtered
// by a partition prefix.
func (c *CLI) printInventory(args []string) {
	rooms := c.gw.View().Snapshot()

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	codes := make([]string, 0, len(rooms))
	for code := range rooms {
		if prefix == "" || strings.HasPrefix(code, prefix) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Room", "Available"})
	tw.SetBorder(true)

	for _, code := range codes {
		tw.Append([]string{code, strconv.Itoa(rooms[code])})
	}

	tw.Render()
	fmt.Printf("%d room(s)\n\n", len(codes))
}

// printPartitions displays the configured inventory nodes.
func (c *CLI) printPartitions() {
	fmt.Println()
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"Partition", "Address", "Data File"})
	tw.SetBorder(true)

	for _, p := range c.cfg.GetGateway().Partitions {
		tw.Append([]string{p.Name, p.Addr(), p.DataFile})
	}

	tw.Render()
	fmt.Println()
}

// printAudit displays recent audit entries, newest first.
func (c *CLI) printAudit(args []string) error {
	if c.store == nil {
		return fmt.Errorf("audit log is disabled")
	}

	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = n
	}

	logins, err := c.store.RecentLogins(limit)
	if err != nil {
		return err
	}
	requests, err := c.store.RecentRequests(limit)
	if err != nil {
		return err
	}

	fmt.Println("\nLogins:")
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"At", "Handle", "User", "Result"})
	tw.SetBorder(true)
	for _, rec := range logins {
		tw.Append([]string{
			rec.At.Format("15:04:05"),
			strconv.FormatUint(rec.Handle, 10),
			rec.Username,
			rec.Result,
		})
	}
	tw.Render()

	fmt.Println("\nRequests:")
	tw = tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"At", "Handle", "User", "Op", "Room", "Result"})
	tw.SetBorder(true)
	for _, rec := range requests {
		tw.Append([]string{
			rec.At.Format("15:04:05"),
			strconv.FormatUint(rec.Handle, 10),
			rec.Username,
			rec.Op,
			rec.RoomCode,
			rec.Result,
		})
	}
	tw.Render()
	fmt.Println()
	return nil
}

func (c *CLI) cmdSetConfig(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setconfig <key> <value>")
	}

	key := args[0]
	value := strings.Join(args[1:], " ")

	if err := c.cfg.UpdateAppField(key, value); err != nil {
		return err
	}

	if err := c.cfg.Save(); err != nil {
		return err
	}

	c.eventBus.Emit(ctx, events.Event{
		Type:    events.EventConfigChanged,
		Source:  "cli",
		Payload: key,
	})

	fmt.Printf("Config updated: %s = %s\n", key, value)
	return nil
}
