package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// ConfigCommand returns a command for configuration operations
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration operations",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate configuration and provider credentials",
				Action: configValidateAction,
			},
		},
	}
}

func configValidateAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 0, 0); err != nil {
		return err
	}
	cfg, log, err := getOptions(ctx).loadProviderConfig(ctx.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.LogConfig(log)
	log.Info("Configuration validation passed")
	fmt.Fprintln(ctx.App.Writer, countStyle.Render("Configuration is valid"))
	return nil
}
