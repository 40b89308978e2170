package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/pluginlist/pkg/games"
)

var (
	// Global flags
	configPath  string
	gameName    string
	profileName string
	dataDir     string
	pluginsFile string
	verbose     bool
	jsonOutput  bool

	appVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	appVersion = version

	rootCmd := &cobra.Command{
		Use:   "pluginctl",
		Short: "pluginctl - Fallout 4 plugin list manager",
		Long: `pluginctl keeps the game's plugins.txt in sync with a stored plugin profile.

The profile remembers which plugins are active and in which order they load.
pluginctl writes plugins.txt from the profile and reads external edits made by
the game launcher or other tools back into it.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&gameName, "game", "g", "", "game ("+strings.Join(games.Names(), ", ")+")")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "plugin profile name")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "game Data directory to scan for plugins")
	rootCmd.PersistentFlags().StringVar(&pluginsFile, "plugins-file", "", "plugins.txt path (default derived from the game)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newSaveCommand())
	rootCmd.AddCommand(newLoadCommand())
	rootCmd.AddCommand(newEnableCommand())
	rootCmd.AddCommand(newDisableCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
