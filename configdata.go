// Package badgecord provides embedded assets for the badgecord command.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML], which seeds the data directory on first run.
package badgecord

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, generated by
// cmd/genconfig and embedded at build time. It is written to the data
// directory when no config exists there yet.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
