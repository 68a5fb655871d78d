// Package config provides CLI configuration and application logic for musubi.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/mazrean/musubi/internal/legacy"
	"github.com/mazrean/musubi/internal/musubi"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var errNoFiles = errors.New("no files specified")

// CLI is the root command configuration with subcommands.
type CLI struct {
	LogLevel   string           `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info'"`
	Generate   GenerateCmd      `kong:"cmd,default='withargs',help='Generate container code (default)'"`
	Inspect    InspectCmd       `kong:"cmd,help='Show the resolved bindings of each container'"`
	ImportWire ImportWireCmd    `kong:"cmd,name='import-wire',help='Import google/wire provider sets as a bundle'"`
	Version    kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`
}

// ResolveFlags are shared by the commands that resolve bundles.
type ResolveFlags struct {
	MetadataDir string   `kong:"help='Directory for container summaries (defaults to the bundle directory)',type='path'"`
	SummaryDir  []string `kong:"name='summary-dir',help='Extra directories searched for summaries of included containers',type='path'"`
}

func (f *ResolveFlags) processor() *musubi.Processor {
	return musubi.NewProcessor(
		musubi.WithModuleSource(legacy.NewReader()),
		musubi.WithMetadataDir(f.MetadataDir),
		musubi.WithSummaryDirs(f.SummaryDir...),
	)
}

// GenerateCmd is the default command for generating container code.
type GenerateCmd struct {
	ResolveFlags `kong:"embed"`

	Files []string `kong:"arg,help='Bundle files to process'"`
}

// Run executes the generate command.
func (c *GenerateCmd) Run(ctx context.Context, cli *CLI) error {
	setupLogger(cli.LogLevel)

	if len(c.Files) == 0 {
		return errNoFiles
	}

	slog.Info("Generating containers", "files", c.Files)

	return c.processor().ProcessFiles(ctx, c.Files)
}

// InspectCmd prints the build order and storage of every container in a bundle.
type InspectCmd struct {
	ResolveFlags `kong:"embed"`

	Format string `kong:"short='f',help='Output format',enum='text,yaml',default='text'"`
	File   string `kong:"arg,help='Bundle file to inspect',type='existingfile'"`
}

// Run executes the inspect command.
func (c *InspectCmd) Run(ctx context.Context, kctx *kong.Context, cli *CLI) error {
	setupLogger(cli.LogLevel)

	reports, err := c.processor().Inspect(ctx, c.File)
	if len(reports) > 0 {
		w := kctx.Stdout
		var werr error
		if c.Format == "yaml" {
			werr = musubi.WriteReportsYAML(w, reports)
		} else {
			werr = musubi.WriteReportsText(w, reports)
		}
		if werr != nil {
			return errors.Join(err, werr)
		}
	}

	return err
}

// ImportWireCmd converts wire provider sets into a bundle file.
type ImportWireCmd struct {
	Output   string   `kong:"short='o',default='musubi.yaml',help='Output file path'"`
	Patterns []string `kong:"arg,optional,help='Go package patterns to import',default='./'"`
}

// Run executes the import-wire command.
func (c *ImportWireCmd) Run(ctx context.Context, cli *CLI) error {
	setupLogger(cli.LogLevel)

	slog.Info("Importing wire provider sets", "patterns", c.Patterns)

	dir, err := filepath.Abs(filepath.Dir(c.Output))
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	b, warnings, err := legacy.NewReader().Import(ctx, dir, c.Patterns)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		slog.Warn("Import warning", "code", w.Code, "message", w.Message, "pos", w.Pos)
	}

	if err := legacy.NewWriter().Write(b, c.Output); err != nil {
		return err
	}
	slog.Info("Wrote bundle", "path", c.Output, "modules", len(b.Modules))

	return nil
}

func Run() error {
	var cli CLI
	kongCtx := kong.Parse(&cli, options(context.Background(), os.Stdout)...)

	return kongCtx.Run(&cli)
}

func options(ctx context.Context, stdout io.Writer) []kong.Option {
	return []kong.Option{
		kong.Name("musubi"),
		kong.Description("A compile-time dependency injection container generator for Go"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": fmt.Sprintf("%s (%s) released on %s", version, commit, date),
		},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Writers(stdout, os.Stderr),
	}
}

func setupLogger(level string) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
