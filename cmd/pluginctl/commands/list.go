package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openfroyo/pluginlist/pkg/plugins"
)

type listItem struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Priority int    `json:"priority"`
	Official bool   `json:"official,omitempty"`
}

func newListCommand() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plugins of the profile",
		Long: `List the plugins of the profile in priority order with their state.

Plugins remembered by the profile but no longer present in the data directory are
listed last as missing.`,
		Example: `  # List all plugins
  pluginctl list

  # Active plugins as JSON
  pluginctl list --active --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			var items []listItem
			for _, entry := range s.list.Entries() {
				if activeOnly && entry.State != plugins.StateActive {
					continue
				}
				items = append(items, listItem{
					Name:     entry.Name,
					State:    entry.State.String(),
					Priority: entry.Priority,
					Official: s.game.IsOfficial(entry.Name),
				})
			}
			if !activeOnly {
				for _, name := range s.list.MissingNames() {
					items = append(items, listItem{Name: name, State: plugins.StateMissing.String(), Priority: -1})
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRIORITY\tSTATE\tNAME")
			for _, item := range items {
				priority := "-"
				if item.Priority >= 0 {
					priority = fmt.Sprintf("%d", item.Priority)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", priority, item.State, item.Name)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only list active plugins")

	return cmd
}
