package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/pluginlist/pkg/games"
	"github.com/openfroyo/pluginlist/pkg/safewrite"
	"github.com/openfroyo/pluginlist/pkg/telemetry"
	"github.com/openfroyo/pluginlist/pkg/textcodec"
)

// AppName names the configuration directory.
const AppName = "pluginctl"

// Config is the pluginctl configuration file.
type Config struct {
	// Game is the short name of the managed game (see games.Names).
	Game string `yaml:"game" json:"game" validate:"required"`

	// Profile names the stored plugin profile.
	Profile string `yaml:"profile" json:"profile" validate:"required"`

	// DataDir is the game's Data directory scanned for plugin files.
	DataDir string `yaml:"data_dir,omitempty" json:"data_dir,omitempty"`

	// PluginsFile overrides the plugins.txt location derived from the game.
	PluginsFile string `yaml:"plugins_file,omitempty" json:"plugins_file,omitempty"`

	// LocalAppData overrides the LOCALAPPDATA environment variable.
	LocalAppData string `yaml:"local_app_data,omitempty" json:"local_app_data,omitempty"`

	// Encoding is the code page of plugin names in plugins.txt.
	Encoding string `yaml:"encoding" json:"encoding" validate:"required"`

	// UseLoadOrder adopts the order of plugins.txt when reading it.
	UseLoadOrder bool `yaml:"use_load_order" json:"use_load_order"`

	Store   StoreConfig   `yaml:"store" json:"store"`
	Policy  PolicyConfig  `yaml:"policy,omitempty" json:"policy"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// StoreConfig configures the profile database.
type StoreConfig struct {
	Path string `yaml:"path" json:"path" validate:"required"`
}

// PolicyConfig configures plugin list policies.
type PolicyConfig struct {
	// Paths are .rego files or directories loaded next to the built-in policies.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty" validate:"dive,required"`

	// Disabled names policies, built-in or loaded, that are not evaluated.
	Disabled []string `yaml:"disabled,omitempty" json:"disabled,omitempty" validate:"dive,required"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" validate:"required,oneof=trace debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"required,oneof=console json"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listen_address,omitempty" json:"listen_address,omitempty" validate:"required_if=Enabled true"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter" validate:"oneof=none stdout otlp"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Game:         games.Fallout4.ShortName,
		Profile:      "default",
		Encoding:     textcodec.DefaultEncoding,
		UseLoadOrder: true,
		Store: StoreConfig{
			Path: filepath.Join(defaultDir(), "pluginlist.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Exporter:     "none",
			SamplingRate: 1.0,
		},
	}
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

func defaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, AppName)
}

// Load reads and validates the configuration at path. Fields absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse decodes YAML configuration over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints, the configuration schema, the game and the
// encoding.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := defaultSchemas.ValidateAgainstSchema(context.Background(), "config", c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := games.Lookup(c.Game); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := textcodec.New(c.Encoding); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// ResolveGame returns the configured game.
func (c *Config) ResolveGame() (*games.Game, error) {
	return games.Lookup(c.Game)
}

// ResolvePluginsFile returns the plugins.txt path, derived from the game unless
// overridden.
func (c *Config) ResolvePluginsFile() (string, error) {
	if c.PluginsFile != "" {
		return c.PluginsFile, nil
	}

	game, err := c.ResolveGame()
	if err != nil {
		return "", err
	}
	return game.PluginsFile(c.LocalAppData)
}

// Telemetry maps the configuration onto telemetry settings.
func (c *Config) Telemetry(version string) *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version

	cfg.Logging.Level = c.Logging.Level
	cfg.Logging.Format = c.Logging.Format
	if c.Logging.Output != "" {
		cfg.Logging.Output = c.Logging.Output
	}

	cfg.Metrics.Enabled = c.Metrics.Enabled
	if c.Metrics.ListenAddress != "" {
		cfg.Metrics.ListenAddress = c.Metrics.ListenAddress
	}

	cfg.Tracing.Enabled = c.Tracing.Enabled
	cfg.Tracing.Exporter = c.Tracing.Exporter
	cfg.Tracing.Endpoint = c.Tracing.Endpoint
	cfg.Tracing.SamplingRate = c.Tracing.SamplingRate

	return cfg
}

// Write stores the configuration as YAML at path, creating its directory.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := safewrite.New(path)
	if _, err := file.Write(data); err != nil {
		return err
	}
	return file.Commit()
}
