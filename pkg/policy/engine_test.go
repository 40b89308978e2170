package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/pluginlist/pkg/games"
	"github.com/openfroyo/pluginlist/pkg/plugins"
	"github.com/openfroyo/pluginlist/pkg/registry"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	eng, err := NewEngine(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func fallout4Input(plugins ...PluginInput) *Input {
	return &Input{
		Operation: OperationWrite,
		Game:      games.Fallout4.ShortName,
		Plugins:   plugins,
		Limits: Limits{
			MaxFullPlugins:  games.Fallout4.MaxFullPlugins,
			MaxLightPlugins: games.Fallout4.MaxLightPlugins,
		},
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	var names []string
	for _, p := range eng.ListPolicies() {
		names = append(names, p.Name)
		if !p.Enabled {
			t.Errorf("built-in policy %s should be enabled", p.Name)
		}
	}

	want := "master-order,official-files,plugin-limit"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("expected policies %s, got %s", want, got)
	}
}

func TestEvaluate_OfficialFiles(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name        string
		state       string
		wantAllowed bool
	}{
		{name: "active official file", state: "active", wantAllowed: true},
		{name: "inactive official file", state: "inactive", wantAllowed: false},
		{name: "missing official file", state: "missing", wantAllowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := fallout4Input(PluginInput{
				Name:     "Fallout4.esm",
				State:    tt.state,
				Official: true,
				Master:   true,
			})

			result, err := eng.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v (violations %+v)", result.Allowed, tt.wantAllowed, result.Violations)
			}
			if !tt.wantAllowed {
				blocking := result.Blocking()
				if len(blocking) != 1 || blocking[0].Plugin != "Fallout4.esm" || blocking[0].Policy != "official-files" {
					t.Errorf("unexpected violations %+v", blocking)
				}
			}
		})
	}
}

func TestEvaluate_PluginLimit(t *testing.T) {
	eng := newTestEngine(t)

	many := func(n int, ext string) []PluginInput {
		out := make([]PluginInput, n)
		for i := range out {
			out[i] = PluginInput{
				Name:     fmt.Sprintf("Mod%03d%s", i, ext),
				State:    "active",
				Priority: i,
				Light:    ext == ".esl",
				Master:   ext == ".esl",
			}
		}
		return out
	}

	result, err := eng.Evaluate(context.Background(), fallout4Input(many(254, ".esp")...))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Allowed {
		t.Errorf("254 full plugins should fit, got %+v", result.Violations)
	}

	result, err = eng.Evaluate(context.Background(), fallout4Input(many(255, ".esp")...))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Allowed {
		t.Fatal("255 full plugins should be denied")
	}
	if msg := result.Blocking()[0].Message; !strings.Contains(msg, "255 full plugins") {
		t.Errorf("unexpected message %q", msg)
	}

	// Light plugins do not take full slots, but Fallout 4 VR has none
	vr := fallout4Input(many(300, ".esl")...)
	result, err = eng.Evaluate(context.Background(), vr)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Allowed {
		t.Errorf("light plugins should fit, got %+v", result.Violations)
	}

	vr.Game = games.Fallout4VR.ShortName
	vr.Limits = Limits{MaxFullPlugins: games.Fallout4VR.MaxFullPlugins}
	result, err = eng.Evaluate(context.Background(), vr)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if result.Allowed {
		t.Error("light plugins should be denied without light plugin support")
	}
}

func TestEvaluate_MasterOrder(t *testing.T) {
	eng := newTestEngine(t)

	input := fallout4Input(
		PluginInput{Name: "Fallout4.esm", State: "active", Priority: 0, Official: true, Master: true},
		PluginInput{Name: "Alpha.esp", State: "active", Priority: 1},
		PluginInput{Name: "Late.esm", State: "active", Priority: 2, Master: true},
		PluginInput{Name: "Off.esm", State: "inactive", Priority: 3, Master: true},
	)

	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Allowed {
		t.Errorf("master order is a warning, got %+v", result.Blocking())
	}

	warnings := result.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %+v", warnings)
	}
	if warnings[0].Plugin != "Late.esm" || !strings.Contains(warnings[0].Message, "Alpha.esp") {
		t.Errorf("unexpected warning %+v", warnings[0])
	}
	if result.Err() != nil {
		t.Errorf("warnings must not produce an error, got %v", result.Err())
	}
}

func TestNewInput(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Fallout4.esm", "Alpha.esp", "Tiny.esl"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	list := registry.NewPluginList(zerolog.Nop())
	if err := list.ScanDataDir(dir, games.Fallout4.PrimaryPlugins()); err != nil {
		t.Fatalf("ScanDataDir() error = %v", err)
	}
	list.SetState("Fallout4.esm", plugins.StateActive)

	input := NewInput(OperationEnable, games.Fallout4, list.Entries())
	if input.Operation != OperationEnable || input.Game != "fallout4" || input.Limits.MaxFullPlugins != 254 {
		t.Errorf("unexpected input header %+v", input)
	}

	byName := make(map[string]PluginInput)
	for _, p := range input.Plugins {
		byName[p.Name] = p
	}

	if p := byName["Fallout4.esm"]; !p.Official || !p.Master || p.Light || p.State != "active" {
		t.Errorf("unexpected Fallout4.esm %+v", p)
	}
	if p := byName["Tiny.esl"]; p.Official || !p.Master || !p.Light || p.State != "inactive" {
		t.Errorf("unexpected Tiny.esl %+v", p)
	}
	if p := byName["Alpha.esp"]; p.Master || p.Light {
		t.Errorf("unexpected Alpha.esp %+v", p)
	}
}

func TestLoadPolicies(t *testing.T) {
	dir := t.TempDir()
	rego := `# No survival overhauls on this profile
# severity: error
package custom.survival

import rego.v1

deny contains msg if {
	some plugin in input.plugins
	plugin.name == "Survival.esp"
	plugin.state == "active"
	msg := "Survival.esp is not allowed"
}
`
	if err := os.WriteFile(filepath.Join(dir, "no-survival.rego"), []byte(rego), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("failed to write readme: %v", err)
	}

	eng := newTestEngine(t)
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies() error = %v", err)
	}

	p, err := eng.GetPolicy("no-survival")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if p.Severity != SeverityError || p.Description != "No survival overhauls on this profile" {
		t.Errorf("unexpected policy header %+v", p)
	}
	if p.Source != filepath.Join(dir, "no-survival.rego") {
		t.Errorf("unexpected source %s", p.Source)
	}

	input := fallout4Input(PluginInput{Name: "Survival.esp", State: "active"})
	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	err = result.Err()
	if err == nil || !strings.Contains(err.Error(), "Survival.esp is not allowed") {
		t.Fatalf("expected denial, got %v", err)
	}

	if err := eng.DisablePolicy("no-survival"); err != nil {
		t.Fatalf("DisablePolicy() error = %v", err)
	}
	result, err = eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !result.Allowed {
		t.Error("disabled policy must not be evaluated")
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "no-survival" {
			t.Error("disabled policy listed as evaluated")
		}
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestLoadPolicies_Invalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.rego"), []byte("package broken\n\ndeny contains"), 0644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	eng := newTestEngine(t)
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err == nil {
		t.Error("expected compile error")
	}
	if err := eng.LoadPolicies(context.Background(), []string{filepath.Join(dir, "nope")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name            string
		content         string
		wantDescription string
		wantSeverity    Severity
	}{
		{
			name:            "no header",
			content:         "package x\n",
			wantDescription: "",
			wantSeverity:    SeverityWarning,
		},
		{
			name:            "description and severity",
			content:         "\n# Keep it small\n# severity: error\n# really\npackage x\n# trailing\n",
			wantDescription: "Keep it small really",
			wantSeverity:    SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			description, severity := parseHeader(tt.content)
			if description != tt.wantDescription || severity != tt.wantSeverity {
				t.Errorf("parseHeader() = %q, %q, want %q, %q", description, severity, tt.wantDescription, tt.wantSeverity)
			}
		})
	}
}
