package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-homee/internal/homee/session"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homee/internal/infrastructure/logging"
)

// defaultTimeout bounds one-shot commands.
const defaultTimeout = 30 * time.Second

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	address    string
	username   string
	password   string
	port       int
	logLevel   string
	timeout    time.Duration

	out io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &options{out: os.Stdout}

	root := &cobra.Command{
		Use:   "homeectl",
		Short: "Inspect and control a homee hub",
		Long: `homeectl talks to a homee hub over its WebSocket API. It lists nodes,
reads and writes attributes, switches the hub mode and follows live changes.

Connection settings come from flags, then GRAYLOGIC_HOMEE_* environment
variables, then the homee section of --config.`,
		SilenceUsage: true,
		Version:      version,
	}
	root.SetVersionTemplate(fmt.Sprintf("homeectl %s\n", version))

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Bridge config file to read the homee section from")
	flags.StringVar(&opts.address, "address", "", "Hub address or <id>.hom.ee (env: GRAYLOGIC_HOMEE_ADDRESS)")
	flags.StringVar(&opts.username, "username", "", "Hub user (env: GRAYLOGIC_HOMEE_USERNAME)")
	flags.StringVar(&opts.password, "password", "", "Hub password (env: GRAYLOGIC_HOMEE_PASSWORD)")
	flags.IntVar(&opts.port, "port", 0, "Local hub port (default 7681)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flags.DurationVar(&opts.timeout, "timeout", defaultTimeout, "Timeout for one-shot commands")

	root.AddCommand(
		newVersionCmd(),
		newNodesCmd(opts),
		newNodeCmd(opts),
		newSetCmd(opts),
		newModeCmd(opts),
		newRefreshCmd(opts),
		newWatchCmd(opts),
		newShellCmd(opts),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "homeectl %s\n", version)
		},
	}
}

// sessionConfig resolves the hub settings from flags, environment and the
// optional config file, in that order of precedence.
func (o *options) sessionConfig() (session.Config, error) {
	var base config.HomeeConfig
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return session.Config{}, fmt.Errorf("loading config: %w", err)
		}
		base = cfg.Homee
	}

	sc := session.Config{
		Address:        firstNonEmpty(o.address, os.Getenv("GRAYLOGIC_HOMEE_ADDRESS"), base.Address),
		Username:       firstNonEmpty(o.username, os.Getenv("GRAYLOGIC_HOMEE_USERNAME"), base.Username),
		Password:       firstNonEmpty(o.password, os.Getenv("GRAYLOGIC_HOMEE_PASSWORD"), base.Password),
		Port:           base.Port,
		DeviceName:     firstNonEmpty(base.DeviceName, "homeectl"),
		HardwareID:     firstNonEmpty(base.HardwareID, "homeectl"),
		IOTimeout:      base.IOTimeoutDuration(),
		PollInterval:   base.PollIntervalDuration(),
		ResponseWindow: base.ResponseWindowDuration(),
	}
	if o.port != 0 {
		sc.Port = o.port
	}
	if err := sc.Validate(); err != nil {
		return session.Config{}, err
	}
	return sc, nil
}

// connect builds a client, lets register attach observers so they see the
// initial snapshot, and opens the session.
func (o *options) connect(ctx context.Context, register func(*session.Client)) (*session.Client, error) {
	sc, err := o.sessionConfig()
	if err != nil {
		return nil, err
	}

	client := session.NewClient(sc)
	client.SetLogger(logging.New(config.LoggingConfig{
		Level:  o.logLevel,
		Format: "text",
		Output: "stderr",
	}, version))

	if register != nil {
		register(client)
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", sc.Address, err)
	}
	return client, nil
}

// oneShot runs fn against a freshly connected client under the command
// timeout and closes the session afterwards.
func (o *options) oneShot(cmd *cobra.Command, fn func(ctx context.Context, client *session.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	client, err := o.connect(ctx, nil)
	if err != nil {
		return err
	}
	defer client.Disconnect() //nolint:errcheck // Best-effort close

	return fn(ctx, client)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseNodeID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("node id must be an integer, got %q", s)
	}
	return id, nil
}
