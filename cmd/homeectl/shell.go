package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
	"github.com/nerrad567/gray-logic-homee/internal/homee/session"
)

func newShellCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with the hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			client, err := opts.connect(ctx, nil)
			if err != nil {
				return err
			}
			defer client.Disconnect() //nolint:errcheck // Best-effort close

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "homee> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				AutoComplete:    shellCompleter(),
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			// Keep values current between commands.
			go client.Listen(ctx) //nolint:errcheck // Ends with ctx

			sh := &shell{client: client, out: rl.Stdout()}
			sh.printHelp()
			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						continue
					}
					return nil
				}
				if sh.exec(ctx, line) {
					return nil
				}
			}
		},
	}
}

// shellClient is the part of the session the shell uses.
type shellClient interface {
	nodeLookup
	Nodes(ctx context.Context) ([]*homee.Device, error)
	RefreshAll(ctx context.Context) error
	Stats() session.Stats
}

type shell struct {
	client shellClient
	out    io.Writer
}

func shellCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("nodes"),
		readline.PcItem("node"),
		readline.PcItem("set"),
		readline.PcItem("mode"),
		readline.PcItem("refresh"),
		readline.PcItem("stats"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// exec runs one input line. It reports true when the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	args := splitArgs(line)
	if len(args) == 0 {
		return false
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "help", "?":
		s.printHelp()
	case "exit", "quit", "q":
		return true
	case "nodes", "ls":
		var nodes []*homee.Device
		if nodes, err = s.client.Nodes(ctx); err == nil {
			printNodes(s.out, nodes)
		}
	case "node", "n":
		if len(args) != 2 {
			err = errors.New("usage: node <id|name>")
			break
		}
		var d *homee.Device
		if d, err = findNode(ctx, s.client, args[1]); err == nil {
			printNode(s.out, d)
		}
	case "set":
		err = s.set(ctx, args[1:])
	case "mode":
		err = s.mode(ctx, args[1:])
	case "refresh":
		if err = s.client.RefreshAll(ctx); err == nil {
			fmt.Fprintf(s.out, "%d nodes\n", s.client.Stats().Devices)
		}
	case "stats":
		printStats(s.out, s.client.Stats())
	default:
		err = fmt.Errorf("unknown command %q, type help", args[0])
	}

	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

func (s *shell) set(ctx context.Context, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errors.New("usage: set <id|name> <attribute> <value> [instance]")
	}
	instance := 0
	if len(args) == 4 {
		n, err := parseNodeID(args[3])
		if err != nil {
			return errors.New("instance must be an integer")
		}
		instance = n
	}
	d, err := findNode(ctx, s.client, args[0])
	if err != nil {
		return err
	}
	if err := d.RequestChange(ctx, args[1], parseValue(args[2]), instance); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "requested %s[%d] = %s\n", args[1], instance, args[2])
	return nil
}

func (s *shell) mode(ctx context.Context, args []string) error {
	if len(args) == 0 {
		mode, err := currentMode(ctx, s.client)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, mode)
		return nil
	}
	return setMode(ctx, s.client, args[0])
}

func (s *shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  nodes                                   list nodes
  node <id|name>                          show a node
  set <id|name> <attr> <value> [inst]     request a value change
  mode [Home|Sleeping|Away|Vacation]      show or change the hub mode
  refresh                                 re-read the hub snapshot
  stats                                   session counters
  exit                                    leave the shell
`)
}

func printStats(w io.Writer, st session.Stats) {
	fmt.Fprintf(w, "connected:  %t (%s)\n", st.Connected, st.State)
	fmt.Fprintf(w, "token:      %s\n", st.TokenState)
	fmt.Fprintf(w, "nodes:      %d\n", st.Devices)
	fmt.Fprintf(w, "frames:     %d\n", st.FramesHandled)
	fmt.Fprintf(w, "requests:   %d\n", st.RequestsSent)
	fmt.Fprintf(w, "reconnects: %d\n", st.ReconnectsTotal)
	fmt.Fprintf(w, "errors:     %d\n", st.ErrorsTotal)
	if !st.LastActivity.IsZero() {
		fmt.Fprintf(w, "activity:   %s\n", st.LastActivity.Format("2006-01-02 15:04:05"))
	}
}

// splitArgs splits on whitespace but keeps double-quoted words together,
// so node names with spaces can be given.
func splitArgs(line string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, current.String())
	}
	return args
}
