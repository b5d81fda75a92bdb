// Package config loads and validates the murmur YAML configuration.
//
// # Features
//
//   - Environment variable expansion: ${VAR_NAME} patterns in the YAML are
//     replaced before parsing, keeping API keys out of config files.
//   - Duration parsing: human-readable strings like "90s" or "12h" become
//     time.Duration values after unmarshaling.
//   - Defaults: unset fields get sensible defaults before validation, so a
//     minimal config only needs an API key.
//   - Validation: fatal misconfigurations (missing key, nonsensical window)
//     fail at load time, never at request time.
//
// The Matrix frontend keeps its own TOML configuration file and is only
// referenced here by path.
package config
