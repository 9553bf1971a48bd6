package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fulmenhq/mirrorengine/internal/assets"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Schema names used by the mirror engine.
const (
	BaseManifest    = "base-manifest-v1.0.0"
	IncludeManifest = "include-manifest-v1.0.0"
	NameOverrides   = "name-overrides-v1.0.0"
	MirrorConfig    = "mirror-config-v1.0.0"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Path    string `json:"path,omitempty"` // Single string path (e.g., "0.Link")
	Message string `json:"message"`
}

// Result holds the validation result.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Summary joins all errors into one line, sorted by path.
func (r *Result) Summary() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		parts = append(parts, e.Path+": "+e.Message)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// registry holds pre-compiled schemas for known schema names (e.g., "mirror-config-v1.0.0").
var registry = make(map[string]*gojsonschema.Schema)

// init populates the registry with known schemas.
func init() {
	for name, path := range assets.Known {
		if schemaBytes, ok := assets.GetSchema(path); ok && len(schemaBytes) > 0 {
			// Convert YAML to JSON for gojsonschema
			var schemaData interface{}
			if err := yaml.Unmarshal(schemaBytes, &schemaData); err != nil {
				continue
			}

			jsonBytes, err := json.Marshal(schemaData)
			if err != nil {
				continue
			}

			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
			if err != nil {
				continue
			}
			registry[name] = schema
		}
	}
}

// Validate validates data (interface{}) against the named schema.
func Validate(data interface{}, schemaName string) (*Result, error) {
	schema, ok := registry[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %s not found in registry", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

// ValidateJSON validates a raw JSON document against the named schema.
func ValidateJSON(doc []byte, schemaName string) (*Result, error) {
	schema, ok := registry[schemaName]
	if !ok {
		return nil, fmt.Errorf("schema %s not found in registry", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return toResult(result), nil
}

func toResult(result *gojsonschema.Result) *Result {
	res := &Result{Valid: result.Valid()}
	if !result.Valid() {
		for _, verr := range result.Errors() {
			field := verr.Field()
			if field == "" || field == "(root)" {
				field = "root"
			}
			res.Errors = append(res.Errors, ValidationError{
				Path:    field,
				Message: verr.Description(),
			})
		}
	}
	return res
}
