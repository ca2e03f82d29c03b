// Package templates embeds the default configuration shipped by `waved setup`.
package templates

import "embed"

//go:embed config.yaml
var FS embed.FS
