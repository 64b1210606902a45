package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/session_concierge/internal/server"
)

// MigrateCommand applies the Postgres schema.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply the Postgres schema for pgvector and conversation memory",
		Action: migrateAction,
	}
}

func migrateAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 0, 0); err != nil {
		return err
	}
	cfg, log, err := getOptions(ctx).loadConfig(ctx.App.ErrWriter)
	if err != nil {
		return err
	}
	if !cfg.NeedsDatabase() {
		return fmt.Errorf("no backend is configured to use Postgres")
	}

	c, err := server.NewComponents(ctx.Context, cfg, log, server.NeedDatabase)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Migrate(); err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, countStyle.Render("Migrations applied"))
	return nil
}
