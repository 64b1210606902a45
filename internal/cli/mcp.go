package cli

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/session_concierge/internal/mcpserver"
	"github.com/lewisedginton/session_concierge/internal/server"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// MCPCommand serves the search tool over MCP stdio.
func MCPCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the session search tool over MCP stdio",
		Description: `Serve the find_sessions tool to an MCP client over stdin/stdout.
Logs are written to stderr because stdout carries the protocol.`,
		Action: mcpAction,
	}
}

func mcpAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 0, 0); err != nil {
		return err
	}
	cfg, log, err := getOptions(ctx).loadProviderConfig(os.Stderr)
	if err != nil {
		return err
	}

	c, err := server.NewComponents(ctx.Context, cfg, log, server.NeedSearch)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	s, err := mcpserver.New(c.Search, cfg.Version, log)
	if err != nil {
		return err
	}
	log.Info("Serving MCP over stdio", logger.StringField("strategy", c.Search.Strategy()))
	return s.RunStdio(ctx.Context)
}
