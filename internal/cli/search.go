package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/lewisedginton/session_concierge/internal/connectors/executor"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/internal/server"
)

// SearchCommand runs one search from the terminal.
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find the sessions that match a question",
		ArgsUsage: "<question>",
		Description: `Run one search from the terminal. With --thread the question goes to the
conversational agent and the exchange is recorded in that thread, exactly
as a chat connector would record it. Flags must come before the question.

  concierge search "sessions about postgres replication"
  concierge search --top-k 10 --json kafka`,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of document chunks to retrieve (0 uses the configured default)"},
			&cli.StringFlag{Name: "thread", Aliases: []string{"t"}, Usage: "Record the exchange in this conversation thread"},
			&cli.StringFlag{Name: "user", Value: "cli", Usage: "User id recorded with the exchange"},
			&cli.BoolFlag{Name: "json", Usage: "Print the raw result as JSON"},
		},
		Action: searchAction,
	}
}

func searchAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 1, -1); err != nil {
		return err
	}
	query := strings.Join(ctx.Args().Slice(), " ")
	threadID := ctx.String("thread")

	// logs go to stderr so --json output stays parseable
	cfg, log, err := getOptions(ctx).loadProviderConfig(os.Stderr)
	if err != nil {
		return err
	}

	needs := server.NeedSearch
	if threadID != "" {
		needs = server.NeedAll
	}
	c, err := server.NewComponents(ctx.Context, cfg, log, needs)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	out := ctx.App.Writer
	if threadID != "" {
		resp, err := c.Executor.Execute(ctx.Context, executor.MessageRequest{
			UserID:   ctx.String("user"),
			ThreadID: threadID,
			Message:  query,
			TopK:     ctx.Int("top-k"),
		}, terminalFormatter{})
		if err != nil {
			return err
		}
		if ctx.Bool("json") {
			return writeJSON(out, resp)
		}
		_, err = fmt.Fprint(out, resp.Text)
		return err
	}

	res, err := c.Search.Search(ctx.Context, search.Request{Query: query, TopK: ctx.Int("top-k")}, nil)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if ctx.Bool("json") {
		return writeJSON(out, res)
	}
	_, err = fmt.Fprint(out, terminalFormatter{}.FormatResult(res))
	return err
}
