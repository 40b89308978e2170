package plugins

import (
	"sort"
	"strings"
)

// Snapshot is a point-in-time copy of a registry's states and load order.
type Snapshot struct {
	States    map[string]State
	names     map[string]string
	LoadOrder []string
}

// Change is a state transition between two snapshots.
type Change struct {
	Name string
	From State
	To   State
}

// TakeSnapshot copies the current state of list.
func TakeSnapshot(list Registry) Snapshot {
	names := list.PluginNames()
	s := Snapshot{
		States:    make(map[string]State, len(names)),
		names:     make(map[string]string, len(names)),
		LoadOrder: append([]string(nil), list.LoadOrder()...),
	}
	for _, name := range names {
		key := strings.ToLower(name)
		s.States[key] = list.State(name)
		s.names[key] = name
	}
	return s
}

// State returns the recorded state of name, or StateMissing.
func (s Snapshot) State(name string) State {
	if state, ok := s.States[strings.ToLower(name)]; ok {
		return state
	}
	return StateMissing
}

// Changes lists the plugins whose state differs in next, sorted by name.
func (s Snapshot) Changes(next Snapshot) []Change {
	var changes []Change

	for key, to := range next.States {
		from := s.State(key)
		if from != to {
			changes = append(changes, Change{Name: next.names[key], From: from, To: to})
		}
	}
	for key, from := range s.States {
		if _, ok := next.States[key]; !ok && from != StateMissing {
			changes = append(changes, Change{Name: s.names[key], From: from, To: StateMissing})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return strings.ToLower(changes[i].Name) < strings.ToLower(changes[j].Name)
	})
	return changes
}

// LoadOrderChanged reports whether next has a different load order.
func (s Snapshot) LoadOrderChanged(next Snapshot) bool {
	if len(s.LoadOrder) != len(next.LoadOrder) {
		return true
	}
	for i := range s.LoadOrder {
		if !strings.EqualFold(s.LoadOrder[i], next.LoadOrder[i]) {
			return true
		}
	}
	return false
}
