// Package configs embeds the project configuration template used by
// `cidx init` to seed a new .cidx.yaml.
//
// The template mirrors the defaults in internal/config.NewConfig(); it
// exists so a new project gets a commented, editable file instead of
// an empty one.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .cidx.yaml by `cidx init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
