package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terranova-labs/listingd/pkg/api"
	"github.com/terranova-labs/listingd/pkg/config"
	"github.com/terranova-labs/listingd/pkg/database"
)

type serveFlags struct {
	host      string
	port      int
	prefix    string
	snapshot  string
	noSeed    bool
	seedFiles []string
}

func newServeCommand(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default command)",
		Long: `Start the HTTP API in the foreground. The store is seeded with the bundled
listings unless seeding is disabled or a snapshot file is loaded instead.
On SIGINT or SIGTERM the server drains in-flight requests and, when a
snapshot path is configured, writes the store to it.`,
		Example: `  # Start with defaults on 0.0.0.0:3001
  listingd serve

  # Custom port with extra seed files
  listingd serve --port 8080 --seed-file 'feeds/**/*.yaml'

  # Persist the store between runs
  listingd serve --snapshot data/store.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.loadSettings()
			if err != nil {
				return err
			}
			f.apply(cmd, settings)
			if err := settings.Validate(); err != nil {
				return err
			}
			return runServe(cmd, settings)
		},
	}

	f.bind(cmd)
	return cmd
}

func (f *serveFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "Address to bind (default from settings)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port to listen on (default from settings)")
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "API path prefix (default from settings)")
	cmd.Flags().StringVar(&f.snapshot, "snapshot", "", "Snapshot file loaded at startup and written on shutdown")
	cmd.Flags().BoolVar(&f.noSeed, "no-seed", false, "Start with an empty store")
	cmd.Flags().StringSliceVar(&f.seedFiles, "seed-file", nil, "Extra listing feed files or globs (repeatable)")
}

// apply overlays flags the user set explicitly.
func (f *serveFlags) apply(cmd *cobra.Command, s *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		s.Host = f.host
	}
	if flags.Changed("port") {
		s.Port = f.port
	}
	if flags.Changed("prefix") {
		s.APIPrefix = f.prefix
	}
	if flags.Changed("snapshot") {
		s.DatabaseURL = f.snapshot
	}
	if flags.Changed("no-seed") {
		s.SeedOnStartup = !f.noSeed
	}
	if flags.Changed("seed-file") {
		s.SeedFiles = append(s.SeedFiles, f.seedFiles...)
	}
}

func runServe(cmd *cobra.Command, settings *config.Settings) error {
	log := newLogger(settings, cmd.ErrOrStderr())
	store := database.New(database.WithLogger(log.With("component", "store")))
	source := seedSource{bundled: true, files: settings.SeedFiles}

	loaded, err := loadSnapshot(store, settings.DatabaseURL)
	if err != nil {
		return err
	}
	switch {
	case loaded:
		log.Info("loaded snapshot", "path", settings.DatabaseURL, "records", store.Status().TotalRecords)
	case settings.SeedOnStartup:
		n, err := source.load(store)
		if err != nil {
			return err
		}
		log.Info("seeded listings", "count", n)
	}

	server := api.New(store, settings,
		api.WithLogger(log.With("component", "api")),
		api.WithReseed(source.load),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting listingd",
		"version", Version,
		"environment", settings.Environment,
		"addr", settings.Address(),
	)
	runErr := server.Run(ctx)

	if settings.DatabaseURL != "" {
		if err := store.SaveSnapshot(settings.DatabaseURL); err != nil {
			log.Error("failed to write snapshot", "path", settings.DatabaseURL, "error", err)
			if runErr == nil {
				runErr = err
			}
		} else {
			log.Info("wrote snapshot", "path", settings.DatabaseURL)
		}
	}
	return runErr
}

// loadSnapshot imports path into store. A missing file is not an error.
func loadSnapshot(store *database.Store, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := store.LoadSnapshot(path); err != nil {
		return false, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	return true, nil
}
