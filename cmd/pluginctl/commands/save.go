package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newSaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write plugins.txt from the profile",
		Long: `Write plugins.txt from the profile.

Only active plugins are written, in priority order. The file is replaced
atomically and left untouched when its content would not change. Plugins whose
names cannot be written in the game's code page are reported and skipped.`,
		Example: `  # Write plugins.txt for the default profile
  pluginctl save

  # Write to a custom location
  pluginctl save --plugins-file ./plugins.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			if err := s.writePluginList(cmd.Context()); err != nil {
				return err
			}

			active := len(s.list.ActivePlugins())
			log.Debug().Str("path", s.pluginsFile).Int("active", active).Msg("Plugin list written")
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d active plugins)\n", s.pluginsFile, active)
			return nil
		},
	}

	return cmd
}
