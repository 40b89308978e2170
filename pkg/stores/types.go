package stores

import (
	"context"
	"time"

	"github.com/openfroyo/pluginlist/pkg/plugins"
	"github.com/openfroyo/pluginlist/pkg/registry"
)

// PluginRecord is the stored state of one plugin in a profile.
type PluginRecord struct {
	Profile   string        `json:"profile"`
	Name      string        `json:"name"`
	State     plugins.State `json:"state"`
	Priority  int           `json:"priority"` // -1 for missing plugins
	UpdatedAt time.Time     `json:"updated_at"`
}

// ManifestSave records one committed plugin list write.
type ManifestSave struct {
	ID      string    `json:"id"`
	Profile string    `json:"profile"`
	Path    string    `json:"path"`
	Hash    string    `json:"hash"` // hex SHA-256 of the written bytes
	Active  int       `json:"active"`
	Invalid int       `json:"invalid"`
	SavedAt time.Time `json:"saved_at"`
}

// ProfileSource is a plugin list that can be saved as a profile.
type ProfileSource interface {
	Entries() []registry.Entry
	MissingNames() []string
	LoadOrder() []string
}

// ProfileTarget is a plugin list a stored profile can be restored into.
type ProfileTarget interface {
	plugins.Registry
	Reorder(names []string)
	MarkMissing(name string)
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Profile operations
	SaveProfile(ctx context.Context, profile string, list ProfileSource) error
	LoadProfile(ctx context.Context, profile string, list ProfileTarget) (bool, error)
	ListPluginStates(ctx context.Context, profile string) ([]*PluginRecord, error)
	GetLoadOrder(ctx context.Context, profile string) ([]string, error)
	ListProfiles(ctx context.Context) ([]string, error)
	DeleteProfile(ctx context.Context, profile string) error

	// Manifest history
	RecordManifestSave(ctx context.Context, save *ManifestSave) error
	ListManifestSaves(ctx context.Context, profile string, limit int) ([]*ManifestSave, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
