// Package config loads the pluginctl configuration file.
//
// The file is YAML. Fields that are absent keep the values of Default. A loaded
// configuration is checked in three steps:
//
//   - struct tags, using go-playground/validator
//   - the built-in CUE schema "config" (see SchemaRegistry)
//   - the game and encoding names, which must be known to the games and textcodec
//     packages
//
// # Example
//
//	game: fallout4
//	profile: default
//	data_dir: D:/Games/Fallout 4/Data
//	encoding: windows-1252
//	use_load_order: true
//	store:
//	  path: /home/me/.config/pluginctl/pluginlist.db
//	logging:
//	  level: info
//	  format: console
//	metrics:
//	  enabled: false
//	tracing:
//	  enabled: false
//	  exporter: none
//	  sampling_rate: 1
//
// The plugins.txt location is derived from the game and LOCALAPPDATA unless
// plugins_file is set.
package config
