package plugins

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/openfroyo/pluginlist/pkg/safewrite"
)

// InvalidNamesMessage is reported once per write that dropped plugins with unencodable names.
const InvalidNamesMessage = "Some of your plugins have invalid names! These plugins can not be loaded " +
	"by the game. Please see the log for a list of affected plugins and rename them."

// GamePlugins reads and writes plugins.txt for one game.
type GamePlugins struct {
	game     Game
	codec    TextCodec
	reporter Reporter
	logger   zerolog.Logger
	observer Observer
	tracer   trace.Tracer

	// lastSaveHash maps manifest path to the hash of the last committed content.
	lastSaveHash map[string][]byte
}

// Option configures a GamePlugins.
type Option func(*GamePlugins)

// WithObserver registers an observer for read and write outcomes. Observers registered
// by repeated options are all notified, in order.
func WithObserver(observer Observer) Option {
	return func(g *GamePlugins) {
		switch {
		case observer == nil:
		case g.observer == (nopObserver{}):
			g.observer = observer
		default:
			g.observer = Observers{g.observer, observer}
		}
	}
}

// WithTracer wraps reads and writes in spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *GamePlugins) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// NewGamePlugins creates a plugin list codec.
func NewGamePlugins(game Game, codec TextCodec, reporter Reporter, logger zerolog.Logger, opts ...Option) *GamePlugins {
	if reporter == nil {
		reporter = ReporterFunc(func(string) {})
	}

	g := &GamePlugins{
		game:         game,
		codec:        codec,
		reporter:     reporter,
		logger:       logger.With().Str("component", "plugin-list").Logger(),
		observer:     nopObserver{},
		tracer:       noop.NewTracerProvider().Tracer("pluginlist"),
		lastSaveHash: make(map[string][]byte),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// LastSaveHash returns the hash of the last content committed to path, or nil.
func (g *GamePlugins) LastSaveHash(path string) []byte {
	return g.lastSaveHash[path]
}

// WritePluginList writes the active plugins of list to path in priority order.
//
// Plugins whose names cannot be encoded leave an empty line behind and are reported once
// through the Reporter. The file is left untouched when the content equals the last
// content committed to path by this GamePlugins.
func (g *GamePlugins) WritePluginList(ctx context.Context, list Registry, path string) error {
	_, span := g.tracer.Start(ctx, "plugins.write",
		trace.WithAttributes(attribute.String("manifest.path", path)))
	defer span.End()

	file := safewrite.New(path)

	if header, err := g.codec.Encode(Header + LineTerminator); err == nil {
		_, _ = file.Write(header)
	} else {
		_, _ = file.WriteString(Header + LineTerminator)
	}

	var invalid []string
	active := 0

	for _, name := range SortByPriority(list.PluginNames(), list.Priority) {
		if list.State(name) != StateActive {
			continue
		}
		active++

		encoded, err := g.encodeName(name)
		if err != nil {
			invalid = append(invalid, name)
			g.logger.Warn().Err(err).Str("plugin", name).Msg("Invalid plugin name")
		} else {
			_ = file.WriteByte(EnabledMarker)
			_, _ = file.Write(encoded)
		}
		_, _ = file.WriteString(LineTerminator)
	}

	if len(invalid) > 0 {
		g.reporter.ReportError(InvalidNamesMessage)
	}

	event := WriteEvent{Path: path, Active: active, Invalid: invalid}

	hash := g.lastSaveHash[path]
	committed, err := file.CommitIfDifferent(&hash)
	if err != nil {
		event.Result = WriteFailed
		g.observer.ObserveWrite(event)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return newIOError("write", path, err)
	}

	event.Hash = hash
	if committed {
		g.lastSaveHash[path] = hash
		event.Result = WriteCommitted
		g.logger.Debug().Str("path", path).Int("active", active).Msg("Plugin list saved")
	} else {
		event.Result = WriteUnchanged
	}

	span.SetAttributes(
		attribute.Int("plugins.active", active),
		attribute.Int("plugins.invalid", len(invalid)),
		attribute.String("manifest.result", string(event.Result)),
	)
	g.observer.ObserveWrite(event)

	return nil
}

func (g *GamePlugins) encodeName(name string) ([]byte, error) {
	if !g.codec.CanEncode(name) {
		return nil, errors.New("name cannot be represented in the game encoding")
	}
	return g.codec.Encode(name)
}

// ReadPluginList updates list from the manifest at path.
//
// The game's mandatory plugins are activated first, whatever happens next. A missing or
// zero-length manifest returns false with a nil error and leaves every other plugin as it
// was. A path naming a directory counts as missing. A UTF-8 byte order mark before
// the first line is ignored. Otherwise every listed plugin becomes active, every known plugin that is not listed
// becomes inactive and, when useLoadOrder is set, the host load order is replaced by the
// primary plugins followed by the file order. An error is returned only for read or
// decode faults after the file was opened.
func (g *GamePlugins) ReadPluginList(ctx context.Context, list Registry, path string, useLoadOrder bool) (bool, error) {
	_, span := g.tracer.Start(ctx, "plugins.read",
		trace.WithAttributes(
			attribute.String("manifest.path", path),
			attribute.Bool("manifest.use_load_order", useLoadOrder),
		))
	defer span.End()

	known := list.PluginNames()
	unseen := make(map[string]struct{}, len(known))
	for _, name := range known {
		unseen[strings.ToLower(name)] = struct{}{}
	}

	for _, name := range g.game.MandatoryPlugins() {
		if list.State(name) != StateMissing {
			list.SetState(name, StateActive)
			delete(unseen, strings.ToLower(name))
		}
	}

	file, err := os.Open(path)
	if err != nil {
		g.logger.Warn().Err(err).Str("path", path).Msg("Plugin list not found")
		g.observer.ObserveRead(ReadEvent{Path: path, Result: ReadMissing})
		return false, nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return g.readFailed(span, path, newIOError("read", path, err))
	}
	if info.IsDir() {
		g.logger.Warn().Str("path", path).Msg("Plugin list is not a file")
		g.observer.ObserveRead(ReadEvent{Path: path, Result: ReadMissing})
		return false, nil
	}
	if info.Size() == 0 {
		// A well-formed manifest always carries the header.
		g.logger.Warn().Str("path", path).Msg("Plugin list empty")
		g.observer.ObserveRead(ReadEvent{Path: path, Result: ReadEmpty})
		return false, nil
	}

	loadOrder := append([]string(nil), g.game.PrimaryPlugins()...)
	listed := 0

	reader := bufio.NewReader(file)
	for first := true; ; first = false {
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return g.readFailed(span, path, newIOError("read", path, readErr))
		}
		if first {
			line = StripBOM(line)
		}

		if !IsCommentLine(line) {
			decoded, err := g.codec.Decode(TrimLine(line))
			if err != nil {
				return g.readFailed(span, path, newEncodingError("read", path, err))
			}

			name := StripEnabledMarker(decoded)
			if name != "" {
				list.SetState(name, StateActive)
				delete(unseen, strings.ToLower(name))
				loadOrder = AppendUniqueFold(loadOrder, name)
				listed++
			}
		}

		if readErr != nil {
			break
		}
	}

	for _, name := range known {
		if _, ok := unseen[strings.ToLower(name)]; !ok {
			continue
		}
		if list.State(name) != StateMissing {
			list.SetState(name, StateInactive)
		}
	}

	if useLoadOrder {
		list.SetLoadOrder(loadOrder)
	}

	span.SetAttributes(attribute.Int("plugins.listed", listed))
	g.observer.ObserveRead(ReadEvent{Path: path, Result: ReadOK, Listed: listed})
	g.logger.Debug().Str("path", path).Int("listed", listed).Msg("Plugin list read")

	return true, nil
}

func (g *GamePlugins) readFailed(span trace.Span, path string, err error) (bool, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.observer.ObserveRead(ReadEvent{Path: path, Result: ReadFailed})
	return false, err
}
