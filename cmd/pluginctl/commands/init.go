package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pluginlist/pkg/config"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long: `Write a configuration file with default values.

Global flags such as --game, --profile, --data-dir and --plugins-file are stored
in the new file.`,
		Example: `  # Create the default configuration
  pluginctl init --data-dir "D:/Games/Fallout 4/Data"

  # Overwrite an existing configuration
  pluginctl init --force --game fallout4vr`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.DefaultPath()
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if gameName != "" {
				cfg.Game = gameName
			}
			if profileName != "" {
				cfg.Profile = profileName
			}
			cfg.DataDir = dataDir
			cfg.PluginsFile = pluginsFile

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Write(path); err != nil {
				return err
			}

			log.Info().Str("path", path).Str("game", cfg.Game).Msg("Configuration written")
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
