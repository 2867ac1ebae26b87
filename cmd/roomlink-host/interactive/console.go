// Package interactive provides the interactive command-line interface
// for the room host.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/roomlink-project/roomlink-go/pkg/connection"
	"github.com/roomlink-project/roomlink-go/pkg/host"
	"github.com/roomlink-project/roomlink-go/pkg/pairing"
)

// Console handles interactive mode for roomlink-host.
type Console struct {
	svc *host.Service
	rl  *readline.Instance
}

// New creates a new interactive console for the given service.
func New(svc *host.Service) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "host> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	c := &Console{
		svc: svc,
		rl:  rl,
	}

	// Show lifecycle events as they happen
	svc.OnEvent(c.handleEvent)

	return c, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "status", "s":
			c.cmdStatus()

		case "connect", "c":
			c.cmdConnect(args)

		case "disconnect", "d":
			c.cmdDisconnect()

		case "code":
			c.cmdCode(args)

		case "peers", "p":
			c.cmdPeers()

		case "forget":
			c.cmdForget(args)

		case "name":
			c.cmdName(args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
RoomLink Host Commands:
  Connection:
    status             - Show host status
    connect [code]     - Connect to the relay (optional pairing code)
    disconnect         - Tear down the control channel

  Pairing:
    code               - Show the current pairing code
    code new           - Issue a fresh pairing code

  Remotes:
    peers              - List known remotes
    forget <peer-id>   - Forget a remote

  General:
    name <new name>    - Change the host display name
    help               - Show this help
    quit               - Exit`)
}

// cmdStatus shows the current host state.
func (c *Console) cmdStatus() {
	out := c.rl.Stdout()

	fmt.Fprintf(out, "\nHost:    %s (%q)\n", c.svc.HostID(), c.svc.DisplayName())
	fmt.Fprintf(out, "Service: %s\n", c.svc.State())
	fmt.Fprintf(out, "Phase:   %s\n", c.svc.Phase())

	if tenant := c.svc.Tenant(); tenant != "" {
		fmt.Fprintf(out, "Tenant:  %s\n", tenant)
	}
	if roomID := c.svc.RoomID(); roomID != "" {
		fmt.Fprintf(out, "Room:    %s\n", roomID)
	}
	if joinCode := c.svc.JoinCode(); joinCode != "" {
		fmt.Fprintf(out, "Join:    %s\n", joinCode)
	}

	present := 0
	for _, r := range c.svc.Remotes() {
		if r.Present {
			present++
		}
	}
	fmt.Fprintf(out, "Peers:   %d present\n", present)
}

// cmdConnect starts a connect cycle. The call blocks through retries,
// so it runs in the background and reports through events.
func (c *Console) cmdConnect(args []string) {
	req := connection.ConnectRequest{AllowRetry: true}

	if len(args) > 0 {
		code, err := pairing.Normalize(args[0])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid pairing code: %v\n", err)
			return
		}
		req.PairingCode = code
	}

	phase := c.svc.Phase()
	if phase == connection.PhaseConnected || phase == connection.PhaseConnecting {
		fmt.Fprintf(c.rl.Stdout(), "Already %s\n", strings.ToLower(phase.String()))
		return
	}

	fmt.Fprintln(c.rl.Stdout(), "Connecting...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := c.svc.Connect(ctx, req); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Connect failed: %v\n", err)
		}
	}()
}

// cmdDisconnect tears down the control channel.
func (c *Console) cmdDisconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.svc.Disconnect(ctx); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Disconnect failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Disconnected")
}

// cmdCode shows or refreshes the long-lived pairing code.
func (c *Console) cmdCode(args []string) {
	out := c.rl.Stdout()

	if len(args) > 0 && args[0] == "new" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		code, err := c.svc.GeneratePairingCode(ctx)
		if err != nil {
			fmt.Fprintf(out, "Failed to issue pairing code: %v\n", err)
			return
		}
		fmt.Fprintf(out, "Pairing code: %s (expires %s)\n",
			pairing.Format(code.Code), code.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return
	}

	code, ok := c.svc.PairingCode()
	if !ok {
		fmt.Fprintln(out, "No pairing code (use 'code new' after registration)")
		return
	}

	remaining := code.Remaining(time.Now())
	if remaining <= 0 {
		fmt.Fprintf(out, "Pairing code: %s (EXPIRED)\n", pairing.Format(code.Code))
		return
	}
	fmt.Fprintf(out, "Pairing code: %s (expires %s, %s left)\n",
		pairing.Format(code.Code),
		code.ExpiresAt.Local().Format("2006-01-02 15:04"),
		remaining.Round(time.Minute))
}

// cmdPeers lists the known remotes.
func (c *Console) cmdPeers() {
	out := c.rl.Stdout()

	remotes := c.svc.Remotes()
	if len(remotes) == 0 {
		fmt.Fprintln(out, "No known remotes")
		return
	}

	fmt.Fprintf(out, "\nKnown Remotes (%d):\n", len(remotes))
	fmt.Fprintln(out, "-------------------------------------------")
	for _, r := range remotes {
		status := "absent"
		if r.Present {
			status = "present"
		}
		fmt.Fprintf(out, "  ID: %s\n", r.ID)
		fmt.Fprintf(out, "      Kind: %s\n", r.Kind)
		fmt.Fprintf(out, "      Status: %s\n", status)
		fmt.Fprintf(out, "      Last seen: %s\n", r.LastSeen.Format("15:04:05"))
		fmt.Fprintln(out)
	}
}

// cmdForget removes a remote from the registry.
func (c *Console) cmdForget(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: forget <peer-id>")
		return
	}

	if err := c.svc.ForgetRemote(args[0]); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to forget remote: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Forgot remote %s\n", args[0])
}

// cmdName changes the host display name.
func (c *Console) cmdName(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(c.rl.Stdout(), "Usage: name <new name>\nCurrent: %q\n", c.svc.DisplayName())
		return
	}

	name := strings.Trim(strings.Join(args, " "), "\"'")
	if err := c.svc.SetDisplayName(name); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Failed to set name: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Display name set to %q\n", name)
}

// handleEvent prints lifecycle events as they arrive.
func (c *Console) handleEvent(event connection.Event) {
	out := c.rl.Stdout()

	switch event.Type {
	case connection.EventConnected:
		if event.RoomName != "" {
			fmt.Fprintf(out, "[EVENT] Connected to room %s (%q)\n", event.RoomID, event.RoomName)
		} else {
			fmt.Fprintf(out, "[EVENT] Connected to room %s\n", event.RoomID)
		}
	case connection.EventIdentityEstablished:
		fmt.Fprintf(out, "[EVENT] Registered with tenant %s\n", event.Tenant)
	case connection.EventJoinCodeChanged:
		fmt.Fprintf(out, "[EVENT] Join code: %s\n", event.JoinCode)
	case connection.EventPeerJoined:
		fmt.Fprintf(out, "[EVENT] Peer joined: %s (%s)\n", event.Peer.ID, event.Peer.Kind)
	case connection.EventPeerLeft:
		fmt.Fprintf(out, "[EVENT] Peer left: %s\n", event.PeerID)
	case connection.EventCredentialsRotated:
		fmt.Fprintln(out, "[EVENT] Credentials rotated")
	case connection.EventRetryScheduled:
		fmt.Fprintf(out, "[EVENT] Reconnecting in %s (attempt %d)\n", event.Delay, event.Attempt)
	case connection.EventDisconnected:
		if event.Error != nil {
			fmt.Fprintf(out, "[EVENT] Disconnected: %v\n", event.Error)
		} else {
			fmt.Fprintln(out, "[EVENT] Disconnected")
		}
	case connection.EventTerminalFailure:
		fmt.Fprintf(out, "[EVENT] Connection failed for good: %v\n", event.Error)
	}
}
