package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
	"github.com/nerrad567/gray-logic-homee/internal/homee/session"
)

func newWatchCmd(opts *options) *cobra.Command {
	var node int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print attribute changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			w := &watcher{out: opts.out, node: node}
			client, err := opts.connect(ctx, w.register)
			if err != nil {
				return err
			}
			defer client.Disconnect() //nolint:errcheck // Best-effort close

			w.ready()
			if err := client.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&node, "node", 0, "Only print changes of this node id")
	return cmd
}

// watcher prints registry events. Events of the initial snapshot are
// suppressed; only later changes are shown.
type watcher struct {
	out  io.Writer
	node int

	mu   sync.Mutex
	live bool
}

func (w *watcher) register(client *session.Client) {
	client.Session().OnPropertyChange(w.propertyChanged)
	client.Session().OnDeviceChange(w.deviceChanged)
}

func (w *watcher) ready() {
	w.mu.Lock()
	w.live = true
	w.mu.Unlock()
}

func (w *watcher) wants(d *homee.Device) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live && (w.node == 0 || d.ID() == w.node)
}

func (w *watcher) propertyChanged(d *homee.Device, p *homee.Property) {
	if !w.wants(d) {
		return
	}
	unit := p.Unit()
	if unit != "" {
		unit = " " + unit
	}
	fmt.Fprintf(w.out, "%s  %-20s %s[%d] = %s%s\n",
		time.Now().Format(time.TimeOnly), d.Name(), p.Name(), p.Instance(), formatValue(p.Value()), unit)
}

func (w *watcher) deviceChanged(d *homee.Device) {
	if !w.wants(d) {
		return
	}
	fmt.Fprintf(w.out, "%s  %-20s node %d updated (%d attributes)\n",
		time.Now().Format(time.TimeOnly), d.Name(), d.ID(), len(d.Properties()))
}
