package policy

import (
	"path/filepath"
	"strings"

	"github.com/openfroyo/pluginlist/pkg/games"
	"github.com/openfroyo/pluginlist/pkg/registry"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for problems that are reported but do not block the operation.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block the operation.
	SeverityError Severity = "error"
)

// Blocking reports whether violations of this severity deny the operation.
func (s Severity) Blocking() bool {
	return s == SeverityError
}

// Operations checked against policies.
const (
	OperationWrite   = "write"
	OperationRead    = "read"
	OperationEnable  = "enable"
	OperationDisable = "disable"
)

// Policy is a Rego module whose deny set lists violations.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity applies to violations that do not carry their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from, empty for built-in policies.
	Source string `json:"source,omitempty"`
}

// Violation is one element of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Plugin   string   `json:"plugin,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists every violation, blocking or not.
	Violations []Violation `json:"violations,omitempty"`

	// EvaluatedPolicies lists the policies that ran, in evaluation order.
	EvaluatedPolicies []string `json:"evaluated_policies"`
}

// Blocking returns the violations that deny the operation.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns the violations that do not deny the operation.
func (r *Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if !v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Err returns a *DeniedError when the result is not allowed.
func (r *Result) Err() error {
	if r.Allowed {
		return nil
	}
	return &DeniedError{Violations: r.Blocking()}
}

// DeniedError reports the blocking violations of a denied operation.
type DeniedError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *DeniedError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "denied by policy: " + strings.Join(msgs, "; ")
}

// Input is the document policies see as input.
type Input struct {
	Operation string        `json:"operation"`
	Game      string        `json:"game"`
	Plugins   []PluginInput `json:"plugins"`
	Limits    Limits        `json:"limits"`
}

// PluginInput describes one plugin of the list.
type PluginInput struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Priority int    `json:"priority"`
	Official bool   `json:"official"`
	Master   bool   `json:"master"`
	Light    bool   `json:"light"`
}

// Limits are the game's load order capacities.
type Limits struct {
	MaxFullPlugins  int `json:"max_full_plugins"`
	MaxLightPlugins int `json:"max_light_plugins"`
}

// NewInput describes entries of game for operation.
func NewInput(operation string, game *games.Game, entries []registry.Entry) *Input {
	input := &Input{
		Operation: operation,
		Game:      game.ShortName,
		Plugins:   make([]PluginInput, 0, len(entries)),
		Limits: Limits{
			MaxFullPlugins:  game.MaxFullPlugins,
			MaxLightPlugins: game.MaxLightPlugins,
		},
	}

	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name))
		input.Plugins = append(input.Plugins, PluginInput{
			Name:     entry.Name,
			State:    entry.State.String(),
			Priority: entry.Priority,
			Official: game.IsOfficial(entry.Name),
			Master:   ext == ".esm" || ext == ".esl",
			Light:    ext == ".esl",
		})
	}

	return input
}
