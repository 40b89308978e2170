// Package plugins reads and writes the game's plugin list manifest (plugins.txt).
//
// The manifest is a CRLF-terminated text file in the game's local code page. The first
// line is a comment header; every following line names one active plugin, prefixed with
// the enabled marker '*':
//
//	# This file was automatically generated by Mod Organizer.
//	*Unofficial Fallout 4 Patch.esp
//	*ArmorKeywords.esm
//
// GamePlugins translates between that file and a host Registry. Writing emits the active
// plugins in priority order and commits only when the content changed since the last
// commit for the same path. Reading activates every listed plugin, deactivates every
// known plugin that is not listed, forces the game's official files active and optionally
// rebuilds the host load order from the file order.
//
// The host owns all plugin state. The codec only holds the hash of the last committed
// content per manifest path, so callers must not run reads or writes for the same path
// concurrently.
package plugins
