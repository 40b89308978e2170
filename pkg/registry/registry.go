// Package registry is an in-memory plugin list implementing plugins.Registry.
//
// Plugins are keyed case-insensitively and keep the case they were added with. A
// plugin's priority is its position in the list. Plugins remembered from a profile but
// absent from the data directory are tracked as missing and never change state.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openfroyo/pluginlist/pkg/plugins"
)

// Entry is a read-only view of one plugin.
type Entry struct {
	Name     string
	State    plugins.State
	Priority int
}

type plugin struct {
	name   string
	active bool
}

// PluginList implements plugins.Registry.
type PluginList struct {
	// mu protects every field below.
	mu sync.RWMutex

	// order holds the present plugins in priority order.
	order []*plugin

	// index maps lower-case names to present plugins.
	index map[string]*plugin

	// missing maps lower-case names to plugins known but absent on disk.
	missing map[string]string

	loadOrder []string

	logger zerolog.Logger
}

// NewPluginList creates an empty plugin list.
func NewPluginList(logger zerolog.Logger) *PluginList {
	return &PluginList{
		index:   make(map[string]*plugin),
		missing: make(map[string]string),
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// IsPluginFile reports whether name has a plugin extension (.esm, .esp, .esl).
func IsPluginFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".esm", ".esp", ".esl":
		return true
	default:
		return false
	}
}

func isMaster(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".esm" || ext == ".esl"
}

// ScanDataDir adds every plugin file found in dir. Primary plugins come first in the
// given order, then masters, then regular plugins, each group sorted by name.
func (l *PluginList) ScanDataDir(dir string, primary []string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read data directory: %w", err)
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() || !IsPluginFile(entry.Name()) {
			continue
		}
		found = append(found, entry.Name())
	}

	rank := func(name string) int {
		for i, p := range primary {
			if strings.EqualFold(p, name) {
				return i
			}
		}
		if isMaster(name) {
			return len(primary)
		}
		return len(primary) + 1
	}

	sort.SliceStable(found, func(i, j int) bool {
		ri, rj := rank(found[i]), rank(found[j])
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(found[i]) < strings.ToLower(found[j])
	})

	added := 0
	for _, name := range found {
		if l.Add(name) {
			added++
		}
	}

	l.logger.Debug().Str("dir", dir).Int("found", len(found)).Int("added", added).Msg("Data directory scanned")
	return nil
}

// Add appends an inactive plugin with the lowest priority. It returns false when the
// plugin is already present.
func (l *PluginList) Add(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := l.index[key]; exists {
		return false
	}

	p := &plugin{name: name}
	l.order = append(l.order, p)
	l.index[key] = p
	delete(l.missing, key)
	return true
}

// Remove drops a present plugin.
func (l *PluginList) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(name)
	p, exists := l.index[key]
	if !exists {
		return false
	}

	delete(l.index, key)
	for i, candidate := range l.order {
		if candidate == p {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// MarkMissing records a plugin that is known but not present on disk. Present plugins
// are left alone.
func (l *PluginList) MarkMissing(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(name)
	if _, present := l.index[key]; present {
		return
	}
	l.missing[key] = name
}

// PluginNames returns the present plugins in priority order.
func (l *PluginList) PluginNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, len(l.order))
	for i, p := range l.order {
		names[i] = p.name
	}
	return names
}

// MissingNames returns the plugins tracked as missing, sorted by name.
func (l *PluginList) MissingNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.missing))
	for _, name := range l.missing {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// State returns the state of name. Unknown and missing plugins are StateMissing.
func (l *PluginList) State(name string) plugins.State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.index[strings.ToLower(name)]
	if !ok {
		return plugins.StateMissing
	}
	if p.active {
		return plugins.StateActive
	}
	return plugins.StateInactive
}

// SetState changes the state of a present plugin. Unknown names and StateMissing are
// ignored.
func (l *PluginList) SetState(name string, state plugins.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.index[strings.ToLower(name)]
	if !ok {
		l.logger.Trace().Str("plugin", name).Msg("Ignoring state change for unknown plugin")
		return
	}

	switch state {
	case plugins.StateActive:
		p.active = true
	case plugins.StateInactive:
		p.active = false
	}
}

// Priority returns the position of name, or -1 when it is not present.
func (l *PluginList) Priority(name string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.priorityLocked(strings.ToLower(name))
}

func (l *PluginList) priorityLocked(key string) int {
	p, ok := l.index[key]
	if !ok {
		return -1
	}
	for i, candidate := range l.order {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Move changes the priority of name, shifting the plugins in between.
func (l *PluginList) Move(name string, priority int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(name)
	from := l.priorityLocked(key)
	if from < 0 {
		return fmt.Errorf("plugin %s not found", name)
	}
	if priority < 0 || priority >= len(l.order) {
		return fmt.Errorf("priority %d out of range [0, %d)", priority, len(l.order))
	}

	p := l.order[from]
	l.order = append(l.order[:from], l.order[from+1:]...)
	l.order = append(l.order[:priority], append([]*plugin{p}, l.order[priority:]...)...)
	return nil
}

// Reorder moves the named present plugins to the front in the given order. Plugins not
// named keep their relative order behind them.
func (l *PluginList) Reorder(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reorderLocked(names)
}

func (l *PluginList) reorderLocked(names []string) {
	placed := make(map[*plugin]bool, len(l.order))
	reordered := make([]*plugin, 0, len(l.order))

	for _, name := range names {
		p, ok := l.index[strings.ToLower(name)]
		if !ok || placed[p] {
			continue
		}
		placed[p] = true
		reordered = append(reordered, p)
	}
	for _, p := range l.order {
		if !placed[p] {
			reordered = append(reordered, p)
		}
	}

	l.order = reordered
}

// LoadOrder returns the last load order set.
func (l *PluginList) LoadOrder() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]string(nil), l.loadOrder...)
}

// SetLoadOrder stores names (duplicates dropped, ignoring case) as the load order and
// reorders the present plugins to follow it.
func (l *PluginList) SetLoadOrder(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var order []string
	for _, name := range names {
		order = plugins.AppendUniqueFold(order, name)
	}

	l.loadOrder = order
	l.reorderLocked(order)
}

// ActivePlugins returns the active plugins in priority order.
func (l *PluginList) ActivePlugins() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var names []string
	for _, p := range l.order {
		if p.active {
			names = append(names, p.name)
		}
	}
	return names
}

// Entries returns every present plugin in priority order.
func (l *PluginList) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]Entry, len(l.order))
	for i, p := range l.order {
		state := plugins.StateInactive
		if p.active {
			state = plugins.StateActive
		}
		entries[i] = Entry{Name: p.name, State: state, Priority: i}
	}
	return entries
}
