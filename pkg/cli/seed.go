package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/schema"
	"github.com/terranova-labs/listingd/pkg/seed"
)

// ErrInvalidSeedData is returned by the seed command when any listing
// fails validation.
var ErrInvalidSeedData = errors.New("seed data failed validation")

type seedFlags struct {
	extra     []string
	noBundled bool
	output    string
}

func newSeedCommand(g *globalFlags) *cobra.Command {
	f := &seedFlags{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate and summarise listing seed data",
		Long: `Validate the bundled listing feed and any extra feed files against the
listing schema, then print a summary by region. With --output the
transformed records are printed as they would be stored.`,
		Example: `  listingd seed
  listingd seed --extra 'feeds/**/*.json' --no-bundled
  listingd seed --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.loadSettings()
			if err != nil {
				return err
			}
			source := seedSource{
				bundled: !f.noBundled,
				files:   append(append([]string{}, settings.SeedFiles...), f.extra...),
			}
			return runSeed(cmd, source, f.output)
		},
	}
	cmd.Flags().StringSliceVar(&f.extra, "extra", nil, "Extra listing feed files or globs (repeatable)")
	cmd.Flags().BoolVar(&f.noBundled, "no-bundled", false, "Skip the bundled listings")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Print transformed records (json or yaml)")
	return cmd
}

func runSeed(cmd *cobra.Command, source seedSource, output string) error {
	switch output {
	case "", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q: must be json or yaml", output)
	}

	listings, err := source.listings()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	validator := schema.MustNewValidator()
	failed := 0
	for i, raw := range listings {
		if err := validator.Validate(database.CollectionListings, schema.OpCreate, raw); err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "%s listing %d (id %v): %v\n", red("FAIL"), i, raw["id"], err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d listings", ErrInvalidSeedData, failed, len(listings))
	}

	store := database.New()
	n, err := seed.Load(store, listings)
	if err != nil {
		return err
	}
	records, err := store.GetAll(database.CollectionListings)
	if err != nil {
		return err
	}

	switch output {
	case "json":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(records)
		if err != nil {
			return err
		}
		_, _ = out.Write(data)
		return nil
	}

	_, _ = fmt.Fprintln(out, green(fmt.Sprintf("%d listings valid", n)))
	for _, line := range regionSummary(records) {
		_, _ = fmt.Fprintln(out, line)
	}
	return nil
}

func regionSummary(records []database.Record) []string {
	counts := map[string]int{}
	for _, rec := range records {
		region := "unknown"
		if addr, ok := rec["address_details"].(map[string]any); ok {
			if r, ok := addr["region"].(string); ok && r != "" {
				region = r
			}
		}
		counts[region]++
	}
	regions := make([]string, 0, len(counts))
	for r := range counts {
		regions = append(regions, r)
	}
	sort.Strings(regions)

	lines := make([]string, 0, len(regions))
	for _, r := range regions {
		lines = append(lines, fmt.Sprintf("  %-12s %s", r, bold(counts[r])))
	}
	return lines
}
