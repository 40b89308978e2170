package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pluginlist/pkg/watch"
)

func newWatchCommand() *cobra.Command {
	var noLoadOrder bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow external edits of plugins.txt",
		Long: `Watch plugins.txt and read it into the profile whenever another program
rewrites it. The plugin list is read once at startup. Runs until interrupted.

When metrics are enabled in the configuration, they are served over HTTP while
watching.`,
		Example: `  pluginctl watch --profile survival`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if err := s.tel.StartMetricsServer(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			useLoadOrder := s.cfg.UseLoadOrder && !noLoadOrder
			reload := func(ctx context.Context) error {
				outcome, err := s.readPluginList(ctx, useLoadOrder)
				if err != nil {
					return err
				}
				if len(outcome.changes) > 0 || outcome.orderChanged {
					printChanges(out, outcome.changes, outcome.orderChanged)
				}
				return nil
			}

			if err := reload(ctx); err != nil {
				return err
			}

			log.Info().Str("path", s.pluginsFile).Msg("Watching plugin list, press Ctrl+C to stop")
			fmt.Fprintf(out, "Watching %s\n", s.pluginsFile)

			return watch.New(s.pluginsFile, s.logger).Watch(ctx, reload)
		},
	}

	cmd.Flags().BoolVar(&noLoadOrder, "no-load-order", false, "do not adopt the order of plugins.txt")

	return cmd
}
