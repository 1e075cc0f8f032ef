package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				_, _ = fmt.Fprintln(out, Version)
				return nil
			}
			_, _ = fmt.Fprintf(out, "listingd %s\n", bold(Version))
			_, _ = fmt.Fprintf(out, "  %s  %s\n", faint("commit:"), Commit)
			_, _ = fmt.Fprintf(out, "  %s   %s\n", faint("built:"), BuildDate)
			_, _ = fmt.Fprintf(out, "  %s      %s %s/%s\n", faint("go:"), runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}
