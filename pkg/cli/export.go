package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terranova-labs/listingd/pkg/database"
)

type exportFlags struct {
	output    string
	extra     []string
	noBundled bool
}

func newExportCommand(g *globalFlags) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Seed a fresh store and write it to a snapshot file",
		Long: `Seed a fresh store from the bundled listings and any extra feeds, then
write it as a snapshot that serve --snapshot can load. The format follows the
file extension: .yaml or .yml for YAML, anything else for JSON.`,
		Example: `  listingd export -o store.json
  listingd export -o store.yaml --extra 'feeds/*.json'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.output == "" {
				return errors.New("--output is required")
			}
			settings, err := g.loadSettings()
			if err != nil {
				return err
			}
			source := seedSource{
				bundled: !f.noBundled,
				files:   append(append([]string{}, settings.SeedFiles...), f.extra...),
			}

			store := database.New()
			if _, err := source.load(store); err != nil {
				return err
			}
			if err := store.SaveSnapshot(f.output); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d records to %s\n", green("wrote"), store.Status().TotalRecords, f.output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Snapshot file to write")
	cmd.Flags().StringSliceVar(&f.extra, "extra", nil, "Extra listing feed files or globs (repeatable)")
	cmd.Flags().BoolVar(&f.noBundled, "no-bundled", false, "Skip the bundled listings")
	return cmd
}
