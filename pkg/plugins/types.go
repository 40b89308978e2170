package plugins

// State is the activation state of a plugin as seen by the host.
type State int

const (
	// StateMissing means the host does not know the plugin (e.g. the file is not on disk).
	StateMissing State = iota

	// StateInactive means the plugin is known but not loaded by the game.
	StateInactive

	// StateActive means the plugin is loaded by the game.
	StateActive
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// ParseState converts a state name produced by String back into a State.
func ParseState(s string) (State, bool) {
	switch s {
	case "missing":
		return StateMissing, true
	case "inactive":
		return StateInactive, true
	case "active":
		return StateActive, true
	default:
		return StateMissing, false
	}
}

// Registry is the host's plugin list.
//
// Names compare case-insensitively. Unknown names passed to SetState or SetLoadOrder are
// handled by the implementation's own policy.
type Registry interface {
	PluginNames() []string
	State(name string) State
	SetState(name string, state State)
	Priority(name string) int
	LoadOrder() []string
	SetLoadOrder(names []string)
}

// Game supplies the game-specific plugin sets.
type Game interface {
	// PrimaryPlugins is the default load order the game always starts with.
	PrimaryPlugins() []string

	// MandatoryPlugins are forced active whenever the host knows them.
	MandatoryPlugins() []string
}

// TextCodec converts plugin names between Go strings and the game's byte encoding.
type TextCodec interface {
	CanEncode(s string) bool
	Encode(s string) ([]byte, error)
	Decode(b []byte) (string, error)
}

// Reporter is the user-visible error channel.
type Reporter interface {
	ReportError(message string)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(message string)

// ReportError calls f(message).
func (f ReporterFunc) ReportError(message string) {
	f(message)
}

// WriteResult classifies the outcome of WritePluginList.
type WriteResult string

const (
	WriteCommitted WriteResult = "committed"
	WriteUnchanged WriteResult = "unchanged"
	WriteFailed    WriteResult = "failed"
)

// ReadResult classifies the outcome of ReadPluginList.
type ReadResult string

const (
	ReadOK      ReadResult = "ok"
	ReadMissing ReadResult = "missing"
	ReadEmpty   ReadResult = "empty"
	ReadFailed  ReadResult = "failed"
)

// WriteEvent describes one WritePluginList call.
type WriteEvent struct {
	Path    string
	Result  WriteResult
	Hash    []byte
	Active  int
	Invalid []string
}

// ReadEvent describes one ReadPluginList call.
type ReadEvent struct {
	Path   string
	Result ReadResult
	Listed int
}

// Observer receives a notification after every read and write.
type Observer interface {
	ObserveWrite(event WriteEvent)
	ObserveRead(event ReadEvent)
}

// Observers fans notifications out to several observers.
type Observers []Observer

// ObserveWrite implements Observer.
func (o Observers) ObserveWrite(event WriteEvent) {
	for _, obs := range o {
		obs.ObserveWrite(event)
	}
}

// ObserveRead implements Observer.
func (o Observers) ObserveRead(event ReadEvent) {
	for _, obs := range o {
		obs.ObserveRead(event)
	}
}

type nopObserver struct{}

func (nopObserver) ObserveWrite(WriteEvent) {}
func (nopObserver) ObserveRead(ReadEvent)   {}
