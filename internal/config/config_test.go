package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inspectBundle = `version: 1
package:
  path: example.com/app
  name: app
types:
  - name: App
    kind: interface
containers:
  - name: App
    provides:
      - type: int
        value: "8080"
    accessors:
      - name: Port
        type: int
`

func newParser(t *testing.T, cli *CLI, stdout *bytes.Buffer) *kong.Kong {
	t.Helper()

	parser, err := kong.New(cli, options(t.Context(), stdout)...)
	require.NoError(t, err)

	return parser
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level  string
		expect slog.Level
	}{
		{level: "debug", expect: slog.LevelDebug},
		{level: "INFO", expect: slog.LevelInfo},
		{level: "warn", expect: slog.LevelWarn},
		{level: "error", expect: slog.LevelError},
		{level: "verbose", expect: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expect, parseLogLevel(tt.level))
		})
	}
}

func TestCLI_Parse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		expect string
		check  func(t *testing.T, cli *CLI)
	}{
		{
			name:   "generate is the default",
			args:   []string{"a.yaml", "b.yaml"},
			expect: "generate",
			check: func(t *testing.T, cli *CLI) {
				assert.Equal(t, []string{"a.yaml", "b.yaml"}, cli.Generate.Files)
				assert.Equal(t, "info", cli.LogLevel)
			},
		},
		{
			name:   "generate with summary directories",
			args:   []string{"-l", "debug", "generate", "--summary-dir", "/meta/a", "--summary-dir", "/meta/b", "a.yaml"},
			expect: "generate",
			check: func(t *testing.T, cli *CLI) {
				assert.Equal(t, []string{"/meta/a", "/meta/b"}, cli.Generate.SummaryDir)
				assert.Equal(t, "debug", cli.LogLevel)
			},
		},
		{
			name:   "import-wire defaults",
			args:   []string{"import-wire"},
			expect: "import-wire",
			check: func(t *testing.T, cli *CLI) {
				assert.Equal(t, "musubi.yaml", cli.ImportWire.Output)
				assert.Equal(t, []string{"./"}, cli.ImportWire.Patterns)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var (
				cli CLI
				buf bytes.Buffer
			)
			kctx, err := newParser(t, &cli, &buf).Parse(tt.args)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(kctx.Command(), tt.expect), "unexpected command %q", kctx.Command())
			tt.check(t, &cli)
		})
	}
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	var (
		cli CLI
		buf bytes.Buffer
	)
	_, err := newParser(t, &cli, &buf).Parse([]string{"-l", "trace", "a.yaml"})
	assert.Error(t, err)
}

func TestInspectCmd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		expect []string
	}{
		{format: "text", expect: []string{"App", "KEY", "provided"}},
		{format: "yaml", expect: []string{"container: App", "key: int", "kind: provided"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			bundle := filepath.Join(dir, "container.yaml")
			require.NoError(t, os.WriteFile(bundle, []byte(inspectBundle), 0o644))

			var (
				cli CLI
				buf bytes.Buffer
			)
			kctx, err := newParser(t, &cli, &buf).Parse([]string{"inspect", "--format", tt.format, bundle})
			require.NoError(t, err)
			require.NoError(t, kctx.Run(&cli))

			for _, want := range tt.expect {
				assert.Contains(t, buf.String(), want)
			}
			assert.NoFileExists(t, filepath.Join(dir, "container_musubi.go"))
		})
	}
}

func TestGenerateCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meta := t.TempDir()
	bundle := filepath.Join(dir, "container.yaml")
	require.NoError(t, os.WriteFile(bundle, []byte(inspectBundle), 0o644))

	var (
		cli CLI
		buf bytes.Buffer
	)
	kctx, err := newParser(t, &cli, &buf).Parse([]string{"generate", "--metadata-dir", meta, bundle})
	require.NoError(t, err)
	require.NoError(t, kctx.Run(&cli))

	assert.FileExists(t, filepath.Join(dir, "container_musubi.go"))
	assert.FileExists(t, filepath.Join(meta, "App.musubi.meta.yaml"))
}
