// Package cli implements the concierge command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/session_concierge/internal/config"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const optionsKey = "options"

// globalOptions are the app-level flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "concierge",
		Usage: "Answer questions about an event's session catalog",
		Description: `Session concierge finds the sessions in an event catalog that match a
free-text question, using vector search over indexed documents and either
direct title matching or an LLM-assisted selection step.

Quick Start:
  concierge index sessions            # embed the catalog
  concierge search "postgres tuning"  # ask a question
  concierge serve                     # run the HTTP API and chat connectors`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Before: func(ctx *cli.Context) error {
			ctx.App.Metadata = map[string]interface{}{
				optionsKey: &globalOptions{
					configPath: ctx.String("config"),
					logLevel:   ctx.String("log-level"),
				},
			}
			return nil
		},
		Commands: []*cli.Command{
			ServeCommand(),
			SlackCommand(),
			TelegramCommand(),
			SearchCommand(),
			IndexCommand(),
			MigrateCommand(),
			MCPCommand(),
			HistoryCommand(),
			ConfigCommand(),
		},
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := NewApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// getOptions retrieves the global options stored by the app's Before hook.
func getOptions(ctx *cli.Context) *globalOptions {
	if ctx.App.Metadata != nil {
		if opts, ok := ctx.App.Metadata[optionsKey].(*globalOptions); ok {
			return opts
		}
	}
	return &globalOptions{configPath: os.Getenv("CONFIG_FILE")}
}

// requireArgs checks the positional argument count, which urfave leaves to
// the action.
func requireArgs(ctx *cli.Context, min, max int) error {
	n := ctx.NArg()
	switch {
	case n < min:
		return fmt.Errorf("%s: expected at least %d argument(s), got %d", ctx.Command.FullName(), min, n)
	case max >= 0 && n > max:
		return fmt.Errorf("%s: expected at most %d argument(s), got %d", ctx.Command.FullName(), max, n)
	}
	return nil
}

// loadConfig reads and validates configuration and builds the logger that
// writes to out.
func (o *globalOptions) loadConfig(out io.Writer) (*appconfig.AppConfig, logger.Logger, error) {
	cfg, err := appconfig.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, cfg.NewLogger(out), nil
}

// loadProviderConfig is loadConfig for commands that call model providers.
func (o *globalOptions) loadProviderConfig(out io.Writer) (*appconfig.AppConfig, logger.Logger, error) {
	cfg, log, err := o.loadConfig(out)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateProviderKeys(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}
