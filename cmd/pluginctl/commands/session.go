package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pluginlist/pkg/config"
	"github.com/openfroyo/pluginlist/pkg/games"
	"github.com/openfroyo/pluginlist/pkg/plugins"
	"github.com/openfroyo/pluginlist/pkg/policy"
	"github.com/openfroyo/pluginlist/pkg/registry"
	"github.com/openfroyo/pluginlist/pkg/stores"
	"github.com/openfroyo/pluginlist/pkg/telemetry"
	"github.com/openfroyo/pluginlist/pkg/textcodec"
)

// session holds everything a command needs to work on one profile.
type session struct {
	cfg         *config.Config
	game        *games.Game
	pluginsFile string

	tel    *telemetry.Telemetry
	store  *stores.SQLiteStore
	list   *registry.PluginList
	codec  *plugins.GamePlugins
	policy *policy.Engine
	logger zerolog.Logger
}

// readOutcome summarizes one read of plugins.txt.
type readOutcome struct {
	found        bool
	changes      []plugins.Change
	orderChanged bool
}

// loadConfig reads the configuration file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if gameName != "" {
		cfg.Game = gameName
	}
	if profileName != "" {
		cfg.Profile = profileName
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if pluginsFile != "" {
		cfg.PluginsFile = pluginsFile
	}
	if verbose {
		cfg.Logging.Level = "debug"
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openSession loads the configuration, the stored profile and the data directory.
func openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	game, err := cfg.ResolveGame()
	if err != nil {
		return nil, err
	}

	path, err := cfg.ResolvePluginsFile()
	if err != nil {
		return nil, err
	}

	tcfg := cfg.Telemetry(appVersion)
	logger, err := newLogger(cmd, tcfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	tel, err := telemetry.NewTelemetryWithLogger(tcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	reportTo(tel.Events, cmd.ErrOrStderr())

	s := &session{
		cfg:         cfg,
		game:        game,
		pluginsFile: path,
		tel:         tel,
		logger:      tel.Logger.WithProfile(cfg.Profile).Zerolog(),
	}

	if err := s.openPolicy(ctx); err != nil {
		s.Close(ctx)
		return nil, err
	}

	if err := s.openStore(ctx); err != nil {
		s.Close(ctx)
		return nil, err
	}

	if err := s.loadList(ctx); err != nil {
		s.Close(ctx)
		return nil, err
	}

	codec, err := textcodec.New(cfg.Encoding)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	recorder := stores.NewSaveRecorder(ctx, s.store, cfg.Profile, s.logger)
	opts := append(tel.CodecOptions(), plugins.WithObserver(recorder))
	s.codec = plugins.NewGamePlugins(game, codec, tel.Events, s.logger, opts...)

	log.Debug().
		Str("game", game.ShortName).
		Str("profile", cfg.Profile).
		Str("plugins_file", path).
		Int("plugins", len(s.list.PluginNames())).
		Msg("Session opened")

	return s, nil
}

// newLogger builds the configured logger. Output to stderr goes to the command's error
// stream.
func newLogger(cmd *cobra.Command, cfg telemetry.LoggingConfig) (*telemetry.Logger, error) {
	switch cfg.Output {
	case "", "stderr":
		return telemetry.NewLoggerWithWriter(cfg, cmd.ErrOrStderr()), nil
	default:
		return telemetry.NewLogger(cfg)
	}
}

// openPolicy creates the policy engine with the configured extra and disabled policies.
func (s *session) openPolicy(ctx context.Context) error {
	engine, err := policy.NewEngine(ctx, s.logger)
	if err != nil {
		return err
	}

	if len(s.cfg.Policy.Paths) > 0 {
		if err := engine.LoadPolicies(ctx, s.cfg.Policy.Paths); err != nil {
			return err
		}
	}
	for _, name := range s.cfg.Policy.Disabled {
		if err := engine.DisablePolicy(name); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	s.policy = engine
	return nil
}

// checkPolicy evaluates the policies for operation. Every violation is published;
// blocking violations fail the check when enforce is set.
func (s *session) checkPolicy(ctx context.Context, operation string, enforce bool) error {
	input := policy.NewInput(operation, s.game, s.list.Entries())
	result, err := s.policy.Evaluate(ctx, input)
	if err != nil {
		return err
	}

	if enforce {
		for _, v := range result.Warnings() {
			_ = s.tel.Events.PublishViolation(v)
		}
		return result.Err()
	}

	for _, v := range result.Violations {
		_ = s.tel.Events.PublishViolation(v)
	}
	return nil
}

func (s *session) openStore(ctx context.Context) error {
	if s.cfg.Store.Path != stores.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(s.cfg.Store.Path), 0755); err != nil {
			return fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: s.cfg.Store.Path})
	if err != nil {
		return err
	}
	if err := store.Init(ctx); err != nil {
		return err
	}
	s.store = store

	return store.Migrate(ctx)
}

// loadList builds the plugin list from the data directory, or from the stored profile
// when no data directory is configured, then applies the stored profile.
func (s *session) loadList(ctx context.Context) error {
	s.list = registry.NewPluginList(s.logger)

	if s.cfg.DataDir != "" {
		if err := s.list.ScanDataDir(s.cfg.DataDir, s.game.PrimaryPlugins()); err != nil {
			return err
		}
	} else {
		records, err := s.store.ListPluginStates(ctx, s.cfg.Profile)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if rec.State != plugins.StateMissing {
				s.list.Add(rec.Name)
			}
		}
	}

	found, err := s.store.LoadProfile(ctx, s.cfg.Profile, s.list)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Debug().Msg("No stored profile, starting from the data directory")
		for _, name := range s.game.MandatoryPlugins() {
			s.list.SetState(name, plugins.StateActive)
		}
	}
	return nil
}

// saveProfile persists the current plugin list.
func (s *session) saveProfile(ctx context.Context) error {
	return s.store.SaveProfile(ctx, s.cfg.Profile, s.list)
}

// writePluginList checks the policies, writes plugins.txt and persists the profile.
func (s *session) writePluginList(ctx context.Context) error {
	if err := s.checkPolicy(ctx, policy.OperationWrite, true); err != nil {
		return err
	}
	if err := s.codec.WritePluginList(ctx, s.list, s.pluginsFile); err != nil {
		return err
	}
	return s.saveProfile(ctx)
}

// readPluginList reads plugins.txt into the list, reports policy violations of the
// result and persists the profile. plugins.txt is what the game loads, so violations
// do not stop the read.
func (s *session) readPluginList(ctx context.Context, useLoadOrder bool) (*readOutcome, error) {
	before := plugins.TakeSnapshot(s.list)

	found, err := s.codec.ReadPluginList(ctx, s.list, s.pluginsFile, useLoadOrder)
	if err != nil {
		return nil, err
	}

	after := plugins.TakeSnapshot(s.list)
	outcome := &readOutcome{
		found:        found,
		changes:      before.Changes(after),
		orderChanged: before.LoadOrderChanged(after),
	}
	for _, change := range outcome.changes {
		_ = s.tel.Events.PublishStateChanged(change)
	}

	if err := s.checkPolicy(ctx, policy.OperationRead, false); err != nil {
		return outcome, err
	}
	if err := s.saveProfile(ctx); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Close releases the store and flushes telemetry.
func (s *session) Close(ctx context.Context) error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.tel != nil {
		errs = append(errs, s.tel.Shutdown(context.WithoutCancel(ctx)))
	}
	return errors.Join(errs...)
}

// reportTo prints warning and error events to w.
func reportTo(events *telemetry.EventPublisher, w io.Writer) {
	events.Subscribe(func(e telemetry.Event) {
		fmt.Fprintf(w, "%s: %s\n", e.Level, e.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
}
