// Package config loads the daemon's configuration files.
//
// Two kinds of file live in the config directory:
//
//   - global.json, the daemon-wide settings, decoded with HCL's JSON syntax
//     into GlobalConfig.
//   - <kind>-<name>.json, one opaque JSON object per plugin, handed to the
//     plugin as a PluginConfig.
//
// Both are optional. A missing or empty file means defaults for the global
// file and an empty object for a plugin file.
package config
