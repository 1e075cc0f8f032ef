package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/terranova-labs/listingd/pkg/config"
	"github.com/terranova-labs/listingd/pkg/logging"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	noColor    bool
}

// NewRootCommand builds the listingd command tree. Running it without a
// subcommand starts the server.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "listingd",
		Short: "listingd serves property listings from an in-memory store",
		Long: `listingd is a small HTTP backend with health endpoints and an in-memory
record store for users, sessions, listings and free-form data. The store is
seeded with a bundled set of property listings on startup.

Settings come from defaults, an optional YAML or JSON file (--config), a .env
file and LISTINGD_* environment variables, then command line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a YAML or JSON settings file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")
	root.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	serve := newServeCommand(g)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newVersionCommand(),
		newConfigCommand(g),
		newSeedCommand(g),
		newExportCommand(g),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}

// loadSettings resolves settings and applies the persistent flag overrides.
func (g *globalFlags) loadSettings() (*config.Settings, error) {
	settings, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		settings.LogLevel = g.logLevel
	}
	if g.logFormat != "" {
		settings.LogFormat = g.logFormat
	}
	if g.logLevel != "" {
		if err := settings.Validate(); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

func newLogger(settings *config.Settings, w io.Writer) *slog.Logger {
	return logging.FromSettings(settings.LogLevel, settings.LogFormat, w, slog.String("app", "listingd"))
}
