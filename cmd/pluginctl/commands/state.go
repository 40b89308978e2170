package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pluginlist/pkg/plugins"
	"github.com/openfroyo/pluginlist/pkg/policy"
)

func newEnableCommand() *cobra.Command {
	return newStateCommand(policy.OperationEnable, plugins.StateActive)
}

func newDisableCommand() *cobra.Command {
	return newStateCommand(policy.OperationDisable, plugins.StateInactive)
}

func newStateCommand(verb string, state plugins.State) *cobra.Command {
	var noWrite bool

	cmd := &cobra.Command{
		Use:   verb + " <plugin>...",
		Short: fmt.Sprintf("Mark plugins %s and write plugins.txt", state),
		Example: fmt.Sprintf(`  pluginctl %s "Unofficial Fallout 4 Patch.esp"

  # Change the profile only
  pluginctl %s --no-write MyMod.esp`, verb, verb),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			before := plugins.TakeSnapshot(s.list)
			for _, name := range args {
				if s.list.State(name) == plugins.StateMissing {
					return fmt.Errorf("plugin %s not found", name)
				}
				s.list.SetState(name, state)
			}
			if err := s.checkPolicy(cmd.Context(), verb, true); err != nil {
				return err
			}
			changes := before.Changes(plugins.TakeSnapshot(s.list))
			for _, change := range changes {
				_ = s.tel.Events.PublishStateChanged(change)
			}

			if noWrite {
				err = s.saveProfile(cmd.Context())
			} else {
				err = s.writePluginList(cmd.Context())
			}
			if err != nil {
				return err
			}

			log.Debug().Int("changes", len(changes)).Bool("written", !noWrite).Msg("Plugin states updated")
			printChanges(cmd.OutOrStdout(), changes, false)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noWrite, "no-write", false, "only update the profile, do not write plugins.txt")

	return cmd
}
