// Package games describes the supported games: their official plugins, default load
// order and where they keep plugins.txt.
package games

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Game is the static description of one game.
type Game struct {
	// ShortName identifies the game in configuration files.
	ShortName string

	// DisplayName is the human-readable title.
	DisplayName string

	// LocalFolder is the folder under %LOCALAPPDATA% holding plugins.txt.
	LocalFolder string

	// Official are the base game files that are always active.
	Official []string

	// Primary is the default load order the game starts with.
	Primary []string

	// MaxFullPlugins is the number of load order slots for full plugins.
	MaxFullPlugins int

	// MaxLightPlugins is the number of light (.esl) plugins the game can load, zero
	// when it has no light plugin support.
	MaxLightPlugins int
}

// PrimaryPlugins implements plugins.Game.
func (g *Game) PrimaryPlugins() []string {
	return append([]string(nil), g.Primary...)
}

// MandatoryPlugins implements plugins.Game.
func (g *Game) MandatoryPlugins() []string {
	return append([]string(nil), g.Official...)
}

// IsOfficial reports whether name is one of the official files.
func (g *Game) IsOfficial(name string) bool {
	for _, official := range g.Official {
		if strings.EqualFold(official, name) {
			return true
		}
	}
	return false
}

// PluginsFile returns the plugins.txt path below localAppData. An empty localAppData
// falls back to the LOCALAPPDATA environment variable.
func (g *Game) PluginsFile(localAppData string) (string, error) {
	if localAppData == "" {
		localAppData = os.Getenv("LOCALAPPDATA")
	}
	if localAppData == "" {
		return "", fmt.Errorf("LOCALAPPDATA is not set and no local app data directory was given")
	}
	return filepath.Join(localAppData, g.LocalFolder, "plugins.txt"), nil
}

// Fallout4 describes Fallout 4.
var Fallout4 = &Game{
	ShortName:   "fallout4",
	DisplayName: "Fallout 4",
	LocalFolder: "Fallout4",
	Official: []string{
		"fallout4.esm",
		"dlcrobot.esm",
		"dlcworkshop01.esm",
		"dlccoast.esm",
	},
	Primary: []string{
		"fallout4.esm",
		"dlcrobot.esm",
		"dlcworkshop01.esm",
		"dlccoast.esm",
		"dlcworkshop02.esm",
		"dlcworkshop03.esm",
		"dlcnukaworld.esm",
		"dlcultrahighresolution.esm",
	},
	MaxFullPlugins:  254,
	MaxLightPlugins: 4096,
}

// Fallout4VR describes Fallout 4 VR.
var Fallout4VR = &Game{
	ShortName:   "fallout4vr",
	DisplayName: "Fallout 4 VR",
	LocalFolder: "Fallout4VR",
	Official: []string{
		"fallout4.esm",
		"fallout4_vr.esm",
	},
	Primary: []string{
		"fallout4.esm",
		"fallout4_vr.esm",
	},
	MaxFullPlugins: 254,
}

var known = map[string]*Game{
	Fallout4.ShortName:   Fallout4,
	Fallout4VR.ShortName: Fallout4VR,
}

// Lookup returns the game registered under shortName.
func Lookup(shortName string) (*Game, error) {
	g, ok := known[strings.ToLower(shortName)]
	if !ok {
		return nil, fmt.Errorf("unknown game %q (known: %s)", shortName, strings.Join(Names(), ", "))
	}
	return g, nil
}

// Names lists the short names of all known games.
func Names() []string {
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
