package assets

import (
	"embed"
	"encoding/json"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed embedded_schemas
var schemaFS embed.FS

// SchemaInfo holds schema metadata.
type SchemaInfo struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Draft string `json:"draft"`
}

// Known maps registry names to their embedded paths.
// Update this when adding/removing schemas.
var Known = map[string]string{
	"base-manifest-v1.0.0":    "embedded_schemas/v1.0.0/base-manifest.yaml",
	"include-manifest-v1.0.0": "embedded_schemas/v1.0.0/include-manifest.yaml",
	"name-overrides-v1.0.0":   "embedded_schemas/v1.0.0/name-overrides.yaml",
	"mirror-config-v1.0.0":    "embedded_schemas/v1.0.0/mirror-config.yaml",
}

// GetSchema returns the embedded schema bytes by path (e.g., "embedded_schemas/v1.0.0/mirror-config.yaml").
func GetSchema(path string) ([]byte, bool) {
	data, err := schemaFS.ReadFile(path)
	return data, err == nil
}

// GetSchemasFS exposes the schema tree rooted at embedded_schemas.
func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(schemaFS, "embedded_schemas"); err == nil {
		return sub
	}
	return schemaFS
}

// GetSchemaNames returns list of available schemas with metadata (heuristic draft detection).
func GetSchemaNames() []SchemaInfo {
	var infos []SchemaInfo
	for name, path := range Known {
		if _, ok := GetSchema(path); ok {
			infos = append(infos, SchemaInfo{Name: name, Path: path, Draft: detectDraft(path)})
		}
	}
	return infos
}

// detectDraft heuristically detects draft from schema bytes via $schema key.
func detectDraft(path string) string {
	bytes, ok := GetSchema(path)
	if !ok {
		return "Unknown"
	}
	var doc interface{}
	if err := yaml.Unmarshal(bytes, &doc); err != nil {
		if err := json.Unmarshal(bytes, &doc); err != nil {
			return "Unknown"
		}
	}
	if m, ok := doc.(map[string]interface{}); ok {
		if v, ok := m["$schema"].(string); ok {
			if strings.Contains(v, "draft-07") {
				return "Draft-07"
			}
			if strings.Contains(v, "2020-12") {
				return "Draft-2020-12"
			}
		}
	}
	return "Unknown"
}
