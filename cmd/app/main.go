package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/backlinks/internal"
	"github.com/starford/backlinks/internal/collector"
	pkgconfig "github.com/starford/backlinks/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func collect(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("output-folder") {
		cfg.Backlinks.OutputFolder = cmd.String("output-folder")
		if err := cfg.Backlinks.Validate(); err != nil {
			return fmt.Errorf("invalid --output-folder: %w", err)
		}
	}

	stdout := collector.NotifyFunc(func(msg string) {
		fmt.Fprintln(os.Stdout, msg)
	})

	_, err = internal.RunCollect(ctx, cmd.Args().First(),
		internal.WithConfig(cfg),
		internal.WithNotifier(stdout),
		internal.WithLogOutput(os.Stderr))
	return err
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:  "backlinks",
		Usage: "Collect the context around every [[wikilink]] to a note into one Markdown document",
		// Without a subcommand the server runs.
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "collect",
				Usage:     "Write <note>_backlinks.md for one note",
				ArgsUsage: "<note path or name>",
				Action:    collect,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "output-folder",
						Usage: "Vault-relative folder for the generated document (overrides config)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, SSE stream and vault watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
