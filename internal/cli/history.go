package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/session_concierge/internal/server"
)

// HistoryCommand prints the stored messages of a thread.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Print the stored messages of a conversation thread",
		ArgsUsage: "<thread-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the legacy message array as JSON"},
			&cli.BoolFlag{Name: "agent-state", Usage: "Print the agent state envelope instead of the messages"},
		},
		Action: historyAction,
	}
}

func historyAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1, 1); err != nil {
		return err
	}
	cfg, log, err := getOptions(ctx).loadConfig(ctx.App.ErrWriter)
	if err != nil {
		return err
	}

	c, err := server.NewComponents(ctx.Context, cfg, log, server.NeedConversation)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	threadID := ctx.Args().First()
	out := ctx.App.Writer

	if ctx.Bool("agent-state") {
		state, err := c.Conversation.LoadAgentState(ctx.Context, threadID)
		if err != nil {
			return err
		}
		return writeJSON(out, state)
	}

	msgs, err := c.Conversation.Messages(ctx.Context, threadID)
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		if msgs == nil {
			return writeJSON(out, []any{})
		}
		return writeJSON(out, msgs)
	}
	return writeHistory(out, threadID, msgs)
}
