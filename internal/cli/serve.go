package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/session_concierge/internal/server"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// ServeCommand runs the HTTP API together with the configured connectors.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and every configured chat connector",
		Description: `Run the search API (REST, websocket streaming and, when enabled, MCP)
together with the Slack and Telegram connectors whose tokens are set.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "http", Value: true, Usage: "Serve the HTTP API"},
			&cli.BoolFlag{Name: "slack", Value: true, Usage: "Start the Slack connector when its tokens are set"},
			&cli.BoolFlag{Name: "telegram", Value: true, Usage: "Start the Telegram connector when its token is set"},
		},
		Action: func(ctx *cli.Context) error {
			return runServer(ctx, server.Options{
				HTTP:     ctx.Bool("http"),
				Slack:    ctx.Bool("slack"),
				Telegram: ctx.Bool("telegram"),
			})
		},
	}
}

// SlackCommand runs only the Slack connector.
func SlackCommand() *cli.Command {
	return &cli.Command{
		Name:  "slack",
		Usage: "Run only the Slack connector",
		Action: func(ctx *cli.Context) error {
			return runServer(ctx, server.Options{Slack: true})
		},
	}
}

// TelegramCommand runs only the Telegram connector.
func TelegramCommand() *cli.Command {
	return &cli.Command{
		Name:  "telegram",
		Usage: "Run only the Telegram connector",
		Action: func(ctx *cli.Context) error {
			return runServer(ctx, server.Options{Telegram: true})
		},
	}
}

func runServer(ctx *cli.Context, opts server.Options) error {
	if err := requireArgs(ctx, 0, 0); err != nil {
		return err
	}
	cfg, log, err := getOptions(ctx).loadProviderConfig(ctx.App.Writer)
	if err != nil {
		return err
	}
	if opts.Slack && !opts.HTTP && !cfg.Slack.Enabled() {
		return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_APP_TOKEN must be set")
	}
	if opts.Telegram && !opts.HTTP && !cfg.Telegram.Enabled() {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN must be set")
	}
	cfg.LogConfig(log)

	s, err := server.New(ctx.Context, cfg, log, opts)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField(err))
		return err
	}
	return s.Run()
}
