package stores

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/pluginlist/pkg/plugins"
)

// recordTimeout bounds one history insert.
const recordTimeout = 5 * time.Second

// SaveRecorder appends a ManifestSave for every committed plugin list write. It
// implements plugins.Observer.
type SaveRecorder struct {
	ctx     context.Context
	store   Store
	profile string
	logger  zerolog.Logger
}

// NewSaveRecorder creates a recorder writing to store under profile. Observer
// callbacks carry no context, so store calls use ctx for its values only: a save is
// recorded even after ctx is cancelled, within recordTimeout.
func NewSaveRecorder(ctx context.Context, store Store, profile string, logger zerolog.Logger) *SaveRecorder {
	return &SaveRecorder{
		ctx:     ctx,
		store:   store,
		profile: profile,
		logger:  logger.With().Str("component", "save-recorder").Logger(),
	}
}

// ObserveWrite records committed writes. Unchanged and failed writes are ignored.
func (r *SaveRecorder) ObserveWrite(event plugins.WriteEvent) {
	if event.Result != plugins.WriteCommitted {
		return
	}

	save := &ManifestSave{
		Profile: r.profile,
		Path:    event.Path,
		Hash:    hex.EncodeToString(event.Hash),
		Active:  event.Active,
		Invalid: len(event.Invalid),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), recordTimeout)
	defer cancel()

	if err := r.store.RecordManifestSave(ctx, save); err != nil {
		// History is best effort, the plugin list itself is already committed
		r.logger.Error().Err(err).Str("path", event.Path).Msg("Failed to record manifest save")
		return
	}

	r.logger.Debug().Str("id", save.ID).Str("hash", save.Hash).Msg("Manifest save recorded")
}

// ObserveRead does nothing.
func (r *SaveRecorder) ObserveRead(plugins.ReadEvent) {}
