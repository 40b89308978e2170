package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show committed plugins.txt writes",
		Example: `  # Last 10 writes of the current profile
  pluginctl history

  # Every profile, as JSON
  pluginctl history --all --limit 0 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			profile := s.cfg.Profile
			if all {
				profile = ""
			}

			saves, err := s.store.ListManifestSaves(cmd.Context(), profile, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(saves)
			}

			if len(saves) == 0 {
				fmt.Fprintln(out, "No saves recorded")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SAVED\tPROFILE\tACTIVE\tINVALID\tHASH\tPATH")
			for _, save := range saves {
				hash := save.Hash
				if len(hash) > 12 {
					hash = hash[:12]
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
					save.SavedAt.Format(time.RFC3339), save.Profile, save.Active, save.Invalid, hash, save.Path)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&all, "all", false, "include every profile")

	return cmd
}
