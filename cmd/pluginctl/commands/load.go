package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openfroyo/pluginlist/pkg/plugins"
)

func newLoadCommand() *cobra.Command {
	var noLoadOrder bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Read plugins.txt into the profile",
		Long: `Read plugins.txt into the profile.

Listed plugins become active and every other known plugin inactive. The game's
official files are always active. Unless disabled, the order of plugins.txt
becomes the load order of the profile.`,
		Example: `  # Adopt the current plugins.txt
  pluginctl load

  # Adopt states only, keep the stored order
  pluginctl load --no-load-order`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			outcome, err := s.readPluginList(cmd.Context(), s.cfg.UseLoadOrder && !noLoadOrder)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !outcome.found {
				fmt.Fprintf(out, "No usable plugin list at %s, official plugins activated\n", s.pluginsFile)
			}
			printChanges(out, outcome.changes, outcome.orderChanged)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noLoadOrder, "no-load-order", false, "do not adopt the order of plugins.txt")

	return cmd
}

func printChanges(w io.Writer, changes []plugins.Change, orderChanged bool) {
	if len(changes) == 0 && !orderChanged {
		fmt.Fprintln(w, "No changes")
		return
	}
	for _, change := range changes {
		fmt.Fprintf(w, "%s: %s -> %s\n", change.Name, change.From, change.To)
	}
	if orderChanged {
		fmt.Fprintln(w, "Load order updated")
	}
}
