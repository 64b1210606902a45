package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	appconfig "github.com/lewisedginton/session_concierge/internal/config"
	"github.com/lewisedginton/session_concierge/internal/indexer"
	"github.com/lewisedginton/session_concierge/internal/server"
)

var rebuildFlag = &cli.BoolFlag{Name: "rebuild", Usage: "Drop the index before writing"}

// IndexCommand builds the vector indexes and reports their manifests.
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:    "index",
		Aliases: []string{"i"},
		Usage:   "Build the vector indexes",
		Subcommands: []*cli.Command{
			{
				Name:  "sessions",
				Usage: "Embed every catalog session into " + appconfig.IndexSessions,
				Flags: []cli.Flag{rebuildFlag},
				Action: func(ctx *cli.Context) error {
					return runIndex(ctx, func(c context.Context, ix *indexer.Indexer) (indexer.Manifest, error) {
						return ix.IndexSessions(c, appconfig.IndexSessions)
					})
				},
			},
			{
				Name:  "documents",
				Usage: "Chunk and embed the markdown documents into " + appconfig.IndexDocuments,
				Flags: []cli.Flag{rebuildFlag},
				Action: func(ctx *cli.Context) error {
					return runIndex(ctx, func(c context.Context, ix *indexer.Indexer) (indexer.Manifest, error) {
						return ix.IndexDocuments(c, appconfig.IndexDocuments)
					})
				},
			},
			{
				Name:      "status",
				Usage:     "Show the manifest of the last indexing run",
				ArgsUsage: "[index]",
				Action:    indexStatusAction,
			},
		},
	}
}

func runIndex(ctx *cli.Context, run func(context.Context, *indexer.Indexer) (indexer.Manifest, error)) error {
	if err := requireArgs(ctx, 0, 0); err != nil {
		return err
	}
	cfg, log, err := getOptions(ctx).loadProviderConfig(ctx.App.ErrWriter)
	if err != nil {
		return err
	}

	c, err := server.NewComponents(ctx.Context, cfg, log, server.NeedIndexing)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if c.Pool != nil {
		if err := c.Migrate(); err != nil {
			return err
		}
	}

	m, err := run(ctx.Context, c.NewIndexer(ctx.Bool("rebuild")))
	if err != nil {
		return err
	}
	return writeManifest(ctx.App.Writer, m)
}

func indexStatusAction(ctx *cli.Context) error {
	if err := requireArgs(ctx, 0, 1); err != nil {
		return err
	}
	cfg, log, err := getOptions(ctx).loadConfig(ctx.App.ErrWriter)
	if err != nil {
		return err
	}

	indexName := cfg.Retrieval.IndexName
	if ctx.NArg() == 1 {
		indexName = ctx.Args().First()
	}

	c, err := server.NewComponents(ctx.Context, cfg, log, 0)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	m, err := indexer.ReadManifest(ctx.Context, c.Manifests(), indexName)
	if err != nil {
		return fmt.Errorf("no manifest for index %q: %w", indexName, err)
	}
	return writeManifest(ctx.App.Writer, m)
}

func writeManifest(out io.Writer, m indexer.Manifest) error {
	fmt.Fprintln(out, headerStyle.Render("Index "+m.Index))
	fmt.Fprintf(out, "Run:        %s\n", idStyle.Render(m.RunID))
	fmt.Fprintf(out, "Model:      %s (%d dimensions)\n", m.Model, m.Dimension)
	fmt.Fprintf(out, "Sessions:   %s\n", countStyle.Render(fmt.Sprint(m.Sessions)))
	fmt.Fprintf(out, "Documents:  %s\n", countStyle.Render(fmt.Sprint(m.Documents)))
	fmt.Fprintf(out, "Chunks:     %s\n", countStyle.Render(fmt.Sprint(m.Chunks)))
	fmt.Fprintf(out, "Duration:   %s\n", m.FinishedAt.Sub(m.StartedAt).Round(time.Millisecond))
	for _, s := range m.Skipped {
		fmt.Fprintf(out, "Skipped:    %s\n", scheduleStyle.Render(s))
	}
	return nil
}
