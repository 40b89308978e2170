package plugins

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/pluginlist/pkg/textcodec"
)

// fakeRegistry is a case-insensitive in-memory Registry that records calls.
type fakeRegistry struct {
	names         []string
	states        map[string]State
	priorities    map[string]int
	loadOrder     []string
	loadOrderSets int
	stateSets     []string
}

func newFakeRegistry(names ...string) *fakeRegistry {
	r := &fakeRegistry{
		names:      names,
		states:     make(map[string]State),
		priorities: make(map[string]int),
	}
	for i, name := range names {
		r.states[strings.ToLower(name)] = StateInactive
		r.priorities[strings.ToLower(name)] = i
	}
	return r
}

func (r *fakeRegistry) PluginNames() []string { return append([]string(nil), r.names...) }

func (r *fakeRegistry) State(name string) State {
	if s, ok := r.states[strings.ToLower(name)]; ok {
		return s
	}
	return StateMissing
}

func (r *fakeRegistry) SetState(name string, state State) {
	r.stateSets = append(r.stateSets, name)
	key := strings.ToLower(name)
	if _, ok := r.states[key]; ok {
		r.states[key] = state
	}
}

func (r *fakeRegistry) Priority(name string) int { return r.priorities[strings.ToLower(name)] }

func (r *fakeRegistry) LoadOrder() []string { return r.loadOrder }

func (r *fakeRegistry) SetLoadOrder(names []string) {
	r.loadOrderSets++
	r.loadOrder = names
}

func (r *fakeRegistry) activate(names ...string) {
	for _, name := range names {
		r.states[strings.ToLower(name)] = StateActive
	}
}

type fakeGame struct {
	primary   []string
	mandatory []string
}

func (g fakeGame) PrimaryPlugins() []string   { return g.primary }
func (g fakeGame) MandatoryPlugins() []string { return g.mandatory }

var testGame = fakeGame{
	primary:   []string{"Fallout4.esm", "DLCRobot.esm"},
	mandatory: []string{"Fallout4.esm", "DLCRobot.esm"},
}

type recordingObserver struct {
	writes []WriteEvent
	reads  []ReadEvent
}

func (o *recordingObserver) ObserveWrite(e WriteEvent) { o.writes = append(o.writes, e) }
func (o *recordingObserver) ObserveRead(e ReadEvent)   { o.reads = append(o.reads, e) }

type harness struct {
	codec    *GamePlugins
	reports  []string
	logs     *bytes.Buffer
	observer *recordingObserver
	path     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		logs:     &bytes.Buffer{},
		observer: &recordingObserver{},
		path:     filepath.Join(t.TempDir(), "plugins.txt"),
	}
	logger := zerolog.New(h.logs).Level(zerolog.DebugLevel)
	reporter := ReporterFunc(func(msg string) { h.reports = append(h.reports, msg) })

	h.codec = NewGamePlugins(testGame, textcodec.Local(), reporter, logger, WithObserver(h.observer))
	return h
}

func (h *harness) read(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(h.path)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	return string(data)
}

func (h *harness) writeFile(t *testing.T, content string) {
	t.Helper()
	if err := os.WriteFile(h.path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

const header = "# This file was automatically generated by Mod Organizer.\r\n"

func TestWritePluginList_PriorityOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg := newFakeRegistry("Fallout4.esm", "Zeta.esp", "Alpha.esp", "Inactive.esp", "Beta.esp")
	reg.priorities["zeta.esp"] = 10
	reg.priorities["alpha.esp"] = 2
	reg.priorities["beta.esp"] = 5
	reg.activate("Fallout4.esm", "Zeta.esp", "Alpha.esp", "Beta.esp")

	if err := h.codec.WritePluginList(ctx, reg, h.path); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	want := header +
		"*Fallout4.esm\r\n" +
		"*Alpha.esp\r\n" +
		"*Beta.esp\r\n" +
		"*Zeta.esp\r\n"
	if got := h.read(t); got != want {
		t.Errorf("unexpected manifest:\nwant %q\ngot  %q", want, got)
	}

	if len(h.reports) != 0 {
		t.Errorf("expected no reports, got %v", h.reports)
	}
	if !strings.Contains(h.logs.String(), "Plugin list saved") {
		t.Error("expected debug log for the save")
	}
}

func TestWritePluginList_NoActivePlugins(t *testing.T) {
	h := newHarness(t)

	reg := newFakeRegistry("Foo.esp", "Bar.esp")
	if err := h.codec.WritePluginList(context.Background(), reg, h.path); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	if got := h.read(t); got != header {
		t.Errorf("expected header only, got %q", got)
	}
}

func TestWritePluginList_EncodesName(t *testing.T) {
	h := newHarness(t)

	reg := newFakeRegistry("Café.esp")
	reg.activate("Café.esp")
	if err := h.codec.WritePluginList(context.Background(), reg, h.path); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	want := header + "*Caf\xe9.esp\r\n"
	if got := h.read(t); got != want {
		t.Errorf("expected windows-1252 bytes %q, got %q", want, got)
	}
}

func TestWritePluginList_OnlyWritesWhenChanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	reg := newFakeRegistry("Foo.esp")
	reg.activate("Foo.esp")

	if err := h.codec.WritePluginList(ctx, reg, h.path); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	// Removing the file proves the second write does not touch the disk.
	if err := os.Remove(h.path); err != nil {
		t.Fatalf("failed to remove manifest: %v", err)
	}
	if err := h.codec.WritePluginList(ctx, reg, h.path); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if _, err := os.Stat(h.path); !os.IsNotExist(err) {
		t.Errorf("expected unchanged content not to be written, stat err: %v", err)
	}

	reg.activate("Foo.esp")
	reg.names = append(reg.names, "Bar.esp")
	reg.states["bar.esp"] = StateActive
	reg.priorities["bar.esp"] = 1
	if err := h.codec.WritePluginList(ctx, reg, h.path); err != nil {
		t.Fatalf("third write failed: %v", err)
	}
	if got := h.read(t); got != header+"*Foo.esp\r\n*Bar.esp\r\n" {
		t.Errorf("unexpected manifest %q", got)
	}

	results := make([]WriteResult, len(h.observer.writes))
	for i, w := range h.observer.writes {
		results[i] = w.Result
	}
	want := []WriteResult{WriteCommitted, WriteUnchanged, WriteCommitted}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("expected results %v, got %v", want, results)
	}
	if h.codec.LastSaveHash(h.path) == nil {
		t.Error("expected a stored hash after commit")
	}
}

func TestWritePluginList_HashIsPerPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	other := filepath.Join(filepath.Dir(h.path), "other.txt")

	reg := newFakeRegistry("Foo.esp")
	reg.activate("Foo.esp")

	if err := h.codec.WritePluginList(ctx, reg, h.path); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := h.codec.WritePluginList(ctx, reg, other); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("expected second path to be written: %v", err)
	}
}

func TestWritePluginList_InvalidNames(t *testing.T) {
	h := newHarness(t)

	reg := newFakeRegistry("Good.esp", "Мод.esp", "模组.esp", "Last.esp")
	reg.activate("Good.esp", "Мод.esp", "模组.esp", "Last.esp")

	if err := h.codec.WritePluginList(context.Background(), reg, h.path); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	want := header + "*Good.esp\r\n\r\n\r\n*Last.esp\r\n"
	if got := h.read(t); got != want {
		t.Errorf("unexpected manifest:\nwant %q\ngot  %q", want, got)
	}

	if len(h.reports) != 1 {
		t.Fatalf("expected exactly one report, got %d", len(h.reports))
	}
	if h.reports[0] != InvalidNamesMessage {
		t.Errorf("unexpected report %q", h.reports[0])
	}

	if n := strings.Count(h.logs.String(), "Invalid plugin name"); n != 2 {
		t.Errorf("expected one warning per invalid name, got %d", n)
	}

	event := h.observer.writes[0]
	if !reflect.DeepEqual(event.Invalid, []string{"Мод.esp", "模组.esp"}) {
		t.Errorf("unexpected invalid names %v", event.Invalid)
	}
	if event.Active != 4 {
		t.Errorf("expected 4 active plugins, got %d", event.Active)
	}
}

func TestWritePluginList_CommitFailure(t *testing.T) {
	h := newHarness(t)

	reg := newFakeRegistry("Foo.esp")
	reg.activate("Foo.esp")

	path := filepath.Join(t.TempDir(), "missing-dir", "plugins.txt")
	err := h.codec.WritePluginList(context.Background(), reg, path)
	if err == nil {
		t.Fatal("expected error writing into a missing directory")
	}
	if !IsIOError(err) {
		t.Errorf("expected io error, got %v", err)
	}
	if h.codec.LastSaveHash(path) != nil {
		t.Error("failed commit must not store a hash")
	}
	if h.observer.writes[0].Result != WriteFailed {
		t.Errorf("expected failed result, got %s", h.observer.writes[0].Result)
	}
}

func TestReadPluginList_MarkerOptional(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, header+"*Foo.esp\r\nBar.esp\r\n")

	reg := newFakeRegistry("Fallout4.esm", "Foo.esp", "Bar.esp", "Other.esp")
	reg.activate("Other.esp")

	ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, false)
	if err != nil || !ok {
		t.Fatalf("expected successful read, got %v, %v", ok, err)
	}

	want := map[string]State{
		"Fallout4.esm": StateActive,
		"Foo.esp":      StateActive,
		"Bar.esp":      StateActive,
		"Other.esp":    StateInactive,
	}
	for name, state := range want {
		if got := reg.State(name); got != state {
			t.Errorf("%s: expected %s, got %s", name, state, got)
		}
	}
	if reg.loadOrderSets != 0 {
		t.Error("load order must not change when not requested")
	}
}

func TestReadPluginList_MandatoryActivation(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, header+"*Foo.esp\r\n")

	// DLCRobot.esm is mandatory but missing from the host.
	reg := newFakeRegistry("Fallout4.esm", "Foo.esp")

	ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, false)
	if err != nil || !ok {
		t.Fatalf("expected successful read, got %v, %v", ok, err)
	}

	if reg.State("Fallout4.esm") != StateActive {
		t.Error("expected mandatory plugin to be active")
	}
	if reg.State("DLCRobot.esm") != StateMissing {
		t.Error("missing mandatory plugin must stay missing")
	}
	for _, name := range reg.stateSets {
		if strings.EqualFold(name, "DLCRobot.esm") {
			t.Error("missing mandatory plugin must not be touched")
		}
	}
}

func TestReadPluginList_MissingFile(t *testing.T) {
	h := newHarness(t)

	reg := newFakeRegistry("Fallout4.esm", "Foo.esp", "Bar.esp")
	reg.activate("Foo.esp")

	ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected read of missing file to fail")
	}

	if reg.State("Fallout4.esm") != StateActive {
		t.Error("mandatory plugins are activated before the file is opened")
	}
	if reg.State("Foo.esp") != StateActive || reg.State("Bar.esp") != StateInactive {
		t.Error("non-mandatory plugins must be unchanged")
	}
	if reg.loadOrderSets != 0 {
		t.Error("load order must not change")
	}
	if h.observer.reads[0].Result != ReadMissing {
		t.Errorf("expected missing result, got %s", h.observer.reads[0].Result)
	}
	if !strings.Contains(h.logs.String(), "Plugin list not found") {
		t.Error("expected warning log")
	}
}

func TestReadPluginList_EmptyFile(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, "")

	reg := newFakeRegistry("Fallout4.esm", "Foo.esp")
	reg.activate("Foo.esp")

	ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected read of empty file to fail")
	}
	if reg.State("Foo.esp") != StateActive {
		t.Error("non-mandatory plugins must be unchanged")
	}
	if reg.State("Fallout4.esm") != StateActive {
		t.Error("expected mandatory plugin to be active")
	}
	if h.observer.reads[0].Result != ReadEmpty {
		t.Errorf("expected empty result, got %s", h.observer.reads[0].Result)
	}
}

func TestReadPluginList_Directory(t *testing.T) {
	h := newHarness(t)
	if err := os.Mkdir(h.path, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	reg := newFakeRegistry("Fallout4.esm", "Foo.esp")
	reg.activate("Foo.esp")

	ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected read of a directory to fail")
	}
	if reg.State("Fallout4.esm") != StateActive || reg.State("Foo.esp") != StateActive {
		t.Error("expected mandatory activation only")
	}
	if reg.loadOrderSets != 0 {
		t.Error("load order must not change")
	}
	if h.observer.reads[0].Result != ReadMissing {
		t.Errorf("expected missing result, got %s", h.observer.reads[0].Result)
	}
	if !strings.Contains(h.logs.String(), "Plugin list is not a file") {
		t.Error("expected warning log")
	}
}

func TestReadPluginList_ByteOrderMark(t *testing.T) {
	utf8Codec, err := textcodec.New("utf-8")
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}

	tests := []struct {
		name    string
		content string
	}{
		{name: "before header", content: "\xEF\xBB\xBF" + header + "*Foo.esp\r\n"},
		{name: "before first plugin", content: "\xEF\xBB\xBF*Foo.esp\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.writeFile(t, tt.content)

			codec := NewGamePlugins(testGame, utf8Codec, nil, zerolog.Nop(), WithObserver(h.observer))
			reg := newFakeRegistry("Fallout4.esm", "Foo.esp")

			ok, err := codec.ReadPluginList(context.Background(), reg, h.path, true)
			if err != nil || !ok {
				t.Fatalf("expected successful read, got %v, %v", ok, err)
			}

			want := []string{"Fallout4.esm", "DLCRobot.esm", "Foo.esp"}
			if !reflect.DeepEqual(reg.loadOrder, want) {
				t.Errorf("expected load order %v, got %v", want, reg.loadOrder)
			}
			if got := h.observer.reads[0].Listed; got != 1 {
				t.Errorf("expected 1 listed line, got %d", got)
			}
		})
	}
}

func TestWithObserver_Composes(t *testing.T) {
	h := newHarness(t)
	first, second := &recordingObserver{}, &recordingObserver{}

	codec := NewGamePlugins(testGame, textcodec.Local(), nil, zerolog.Nop(),
		WithObserver(first), WithObserver(nil), WithObserver(second))
	reg := newFakeRegistry("Fallout4.esm")

	if _, err := codec.ReadPluginList(context.Background(), reg, h.path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.reads) != 1 || len(second.reads) != 1 {
		t.Errorf("expected both observers notified, got %d and %d", len(first.reads), len(second.reads))
	}
}

func TestReadPluginList_LoadOrder(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, header+
		"*fallout4.esm\r\n"+
		"*foo.esp\r\n"+
		"# a comment\r\n"+
		"\r\n"+
		"*\r\n"+
		"*FOO.ESP\r\n"+
		"*Bar.esp")

	reg := newFakeRegistry("Fallout4.esm", "DLCRobot.esm", "Foo.esp", "Bar.esp")

	ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, true)
	if err != nil || !ok {
		t.Fatalf("expected successful read, got %v, %v", ok, err)
	}

	want := []string{"Fallout4.esm", "DLCRobot.esm", "foo.esp", "Bar.esp"}
	if !reflect.DeepEqual(reg.loadOrder, want) {
		t.Errorf("expected load order %v, got %v", want, reg.loadOrder)
	}
	if reg.State("Bar.esp") != StateActive {
		t.Error("expected last line without terminator to be read")
	}
	if got := h.observer.reads[0].Listed; got != 4 {
		t.Errorf("expected 4 listed lines, got %d", got)
	}
}

func TestReadPluginList_UnknownAndMissingNames(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, header+"*Unknown.esp\r\n")

	reg := newFakeRegistry("Fallout4.esm", "Known.esp")
	reg.names = append(reg.names, "Gone.esp")

	ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, true)
	if err != nil || !ok {
		t.Fatalf("expected successful read, got %v, %v", ok, err)
	}

	if !reflect.DeepEqual(reg.stateSets, []string{"Fallout4.esm", "Unknown.esp", "Known.esp"}) {
		t.Errorf("unexpected SetState calls %v", reg.stateSets)
	}
	if !ContainsFold(reg.loadOrder, "Unknown.esp") {
		t.Error("unknown names are passed through to the load order")
	}
}

func TestReadPluginList_DecodesName(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, header+"*Caf\xe9.esp\r\n")

	reg := newFakeRegistry("Café.esp")

	if ok, err := h.codec.ReadPluginList(context.Background(), reg, h.path, false); err != nil || !ok {
		t.Fatalf("expected successful read, got %v, %v", ok, err)
	}
	if reg.State("Café.esp") != StateActive {
		t.Error("expected windows-1252 name to decode")
	}
}

type failingCodec struct{ TextCodec }

func (failingCodec) Decode([]byte) (string, error) { return "", errors.New("boom") }

func TestReadPluginList_DecodeFailure(t *testing.T) {
	h := newHarness(t)
	h.writeFile(t, header+"*Foo.esp\r\n")

	codec := NewGamePlugins(testGame, failingCodec{textcodec.Local()}, nil, zerolog.Nop())
	reg := newFakeRegistry("Foo.esp")

	ok, err := codec.ReadPluginList(context.Background(), reg, h.path, false)
	if ok || err == nil {
		t.Fatalf("expected failure, got %v, %v", ok, err)
	}
	if !IsEncodingError(err) {
		t.Errorf("expected encoding error, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	names := []string{"Fallout4.esm", "DLCRobot.esm", "A.esp", "B.esp", "C.esp", "D.esp"}
	writer := newFakeRegistry(names...)
	writer.activate("Fallout4.esm", "B.esp", "D.esp")

	if err := h.codec.WritePluginList(ctx, writer, h.path); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	reader := newFakeRegistry(names...)
	reader.activate("A.esp", "C.esp")

	ok, err := h.codec.ReadPluginList(ctx, reader, h.path, true)
	if err != nil || !ok {
		t.Fatalf("expected successful read, got %v, %v", ok, err)
	}

	active := map[string]bool{"Fallout4.esm": true, "DLCRobot.esm": true, "B.esp": true, "D.esp": true}
	for _, name := range names {
		want := StateInactive
		if active[name] {
			want = StateActive
		}
		if got := reader.State(name); got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}

	want := []string{"Fallout4.esm", "DLCRobot.esm", "B.esp", "D.esp"}
	if !reflect.DeepEqual(reader.loadOrder, want) {
		t.Errorf("expected load order %v, got %v", want, reader.loadOrder)
	}
}
