package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/pluginlist/pkg/plugins"
	"github.com/openfroyo/pluginlist/pkg/policy"
)

// Event is a user-facing notification.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Path is the plugin list path, if applicable.
	Path string `json:"path,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeError           = "error"
	EventTypePluginListSaved = "plugin_list.saved"
	EventTypePluginListRead  = "plugin_list.read"
	EventTypePluginListLost  = "plugin_list.unavailable"
	EventTypePluginChanged   = "plugin.state_changed"
	EventTypePolicyViolation = "policy.violation"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers. It is the user-visible reporting
// channel of the plugin list codec: it implements plugins.Reporter and plugins.Observer.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// ReportError publishes an error event. It implements plugins.Reporter.
func (ep *EventPublisher) ReportError(message string) {
	_ = ep.Publish(Event{
		Type:    EventTypeError,
		Level:   EventLevelError,
		Message: message,
	})
}

// ObserveWrite publishes an event for committed writes. It implements plugins.Observer.
func (ep *EventPublisher) ObserveWrite(event plugins.WriteEvent) {
	if event.Result != plugins.WriteCommitted {
		return
	}
	_ = ep.Publish(Event{
		Type:    EventTypePluginListSaved,
		Level:   EventLevelInfo,
		Path:    event.Path,
		Message: fmt.Sprintf("%s saved (%d active plugins)", event.Path, event.Active),
		Data: map[string]interface{}{
			"active":  event.Active,
			"invalid": len(event.Invalid),
		},
	})
}

// ObserveRead publishes an event for every read. It implements plugins.Observer.
func (ep *EventPublisher) ObserveRead(event plugins.ReadEvent) {
	switch event.Result {
	case plugins.ReadOK:
		_ = ep.Publish(Event{
			Type:    EventTypePluginListRead,
			Level:   EventLevelInfo,
			Path:    event.Path,
			Message: fmt.Sprintf("%s read (%d plugins listed)", event.Path, event.Listed),
			Data:    map[string]interface{}{"listed": event.Listed},
		})
	case plugins.ReadMissing, plugins.ReadEmpty:
		_ = ep.Publish(Event{
			Type:    EventTypePluginListLost,
			Level:   EventLevelWarning,
			Path:    event.Path,
			Message: fmt.Sprintf("%s is %s", event.Path, event.Result),
		})
	}
}

// PublishStateChanged publishes a plugin state transition.
func (ep *EventPublisher) PublishStateChanged(change plugins.Change) error {
	return ep.Publish(Event{
		Type:    EventTypePluginChanged,
		Level:   EventLevelInfo,
		Message: fmt.Sprintf("%s: %s -> %s", change.Name, change.From, change.To),
		Data: map[string]interface{}{
			"plugin": change.Name,
			"from":   change.From.String(),
			"to":     change.To.String(),
		},
	})
}

// PublishViolation publishes a policy violation. Blocking violations are errors, the
// rest warnings.
func (ep *EventPublisher) PublishViolation(v policy.Violation) error {
	level := EventLevelWarning
	if v.Severity.Blocking() {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Level:   level,
		Message: v.Message,
		Data: map[string]interface{}{
			"policy":   v.Policy,
			"plugin":   v.Plugin,
			"severity": string(v.Severity),
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events until shutdown, then drains the buffer.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}
