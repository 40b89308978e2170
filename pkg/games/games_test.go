package games

import (
	"path/filepath"
	"testing"
)

func TestLookup(t *testing.T) {
	g, err := Lookup("Fallout4")
	if err != nil {
		t.Fatalf("failed to look up game: %v", err)
	}
	if g != Fallout4 {
		t.Errorf("expected Fallout4, got %s", g.ShortName)
	}

	if _, err := Lookup("skyrim"); err == nil {
		t.Error("expected error for unknown game")
	}
}

func TestFallout4_Plugins(t *testing.T) {
	mandatory := Fallout4.MandatoryPlugins()
	if len(mandatory) != 4 {
		t.Fatalf("expected 4 official files, got %d", len(mandatory))
	}

	// Callers must not be able to mutate the descriptor.
	mandatory[0] = "changed.esm"
	if Fallout4.Official[0] != "fallout4.esm" {
		t.Error("MandatoryPlugins returned the backing slice")
	}

	primary := Fallout4.PrimaryPlugins()
	if primary[0] != "fallout4.esm" {
		t.Errorf("expected fallout4.esm first, got %s", primary[0])
	}

	if !Fallout4.IsOfficial("DLCCoast.esm") {
		t.Error("expected DLCCoast.esm to be official")
	}
	if Fallout4.IsOfficial("dlcnukaworld.esm") {
		t.Error("dlcnukaworld.esm is primary but not official")
	}
}

func TestPluginsFile(t *testing.T) {
	dir := t.TempDir()

	path, err := Fallout4.PluginsFile(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(dir, "Fallout4", "plugins.txt")
	if path != want {
		t.Errorf("expected %s, got %s", want, path)
	}

	t.Setenv("LOCALAPPDATA", "")
	if _, err := Fallout4VR.PluginsFile(""); err == nil {
		t.Error("expected error without LOCALAPPDATA")
	}

	t.Setenv("LOCALAPPDATA", dir)
	path, err = Fallout4VR.PluginsFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, "Fallout4VR", "plugins.txt") {
		t.Errorf("unexpected path %s", path)
	}
}
