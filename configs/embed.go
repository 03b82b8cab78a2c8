// Package configs holds the configuration assets embedded into the
// ragmcp binary so they ship with every install: the starter config
// written by `ragmcp setup` and the tool briefs served by get_manifest.
package configs

import _ "embed"

// ConfigTemplate is the starter mcp-config.json written by setup.
//
//go:embed mcp-config.json
var ConfigTemplate []byte

// ToolBriefs is the YAML document behind the tier-1 tool manifest.
//
//go:embed briefs.yaml
var ToolBriefs []byte
