package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fulmenhq/mirrorengine/internal/schema"
	"github.com/fulmenhq/mirrorengine/pkg/logger"
)

var lineBreak = regexp.MustCompile(`\r\n|\r|\n`)

// TextLines splits a newline-delimited document, trimming each line and
// skipping blank lines and "# " comments. Used for the blacklist and lockfile.
func TextLines(text string) []string {
	var out []string
	for _, line := range lineBreak.Split(text, -1) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "# ") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Set is a string set built from a newline-delimited document.
type Set map[string]struct{}

// ParseSet builds a Set from TextLines(text).
func ParseSet(text string) Set {
	s := make(Set)
	for _, line := range TextLines(text) {
		s[line] = struct{}{}
	}
	return s
}

// Has reports whether v is in the set. A nil set is empty.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Overrides maps raw asset keys to published names.
type Overrides map[string]string

// ParseOverrides decodes a JSON array of [rawKey, publishedName] pairs.
// An empty document yields an empty table.
func ParseOverrides(doc []byte) (Overrides, error) {
	out := make(Overrides)
	if len(bytes.TrimSpace(doc)) == 0 {
		return out, nil
	}
	if err := validateDocument(doc, schema.NameOverrides, "name overrides"); err != nil {
		return nil, err
	}

	var pairs [][]string
	if err := json.Unmarshal(doc, &pairs); err != nil {
		return nil, fmt.Errorf("%w: name overrides: %v", ErrInvalidDocument, err)
	}
	for _, p := range pairs {
		if _, dup := out[p[0]]; dup {
			return nil, fmt.Errorf("%w: key '%s' is overridden twice", ErrInvalidOverride, p[0])
		}
		out[p[0]] = p[1]
	}
	return out, nil
}

// Name resolves the published name of a raw asset key.
func (o Overrides) Name(key string) string {
	if name, ok := o[key]; ok {
		return name
	}
	if strings.Contains(key, ".") {
		return key
	}
	return key + ".txt"
}

// Keys returns the overridden keys in lexical order.
func (o Overrides) Keys() []string {
	out := make([]string, 0, len(o))
	for k := range o {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseBase decodes the base manifest, preserving key order. Keys without a
// usable https link are dropped with a warning.
func ParseBase(doc []byte, overrides Overrides, blacklist Set) ([]BaseEntry, error) {
	if err := validateDocument(doc, schema.BaseManifest, "base manifest"); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(doc))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: base manifest: %v", ErrInvalidDocument, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: base manifest: object expected at root level", ErrInvalidDocument)
	}

	var out []BaseEntry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: base manifest: %v", ErrInvalidDocument, err)
		}
		key, _ := tok.(string)

		var value struct {
			ContentURL json.RawMessage `json:"contentURL"`
		}
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: base manifest: object expected for '%s'", ErrInvalidDocument, key)
		}

		candidates, err := candidateLinks(value.ContentURL)
		if err != nil {
			return nil, fmt.Errorf("%w: base manifest: %s: %v", ErrInvalidDocument, key, err)
		}

		name := overrides.Name(key)
		var links []string
		for _, l := range candidates {
			if strings.HasPrefix(l, "https://") && !blacklist.Has(l) {
				links = append(links, l)
			}
		}
		if len(links) == 0 {
			logger.Warn("Manifest Warning: No valid links found for '" + name + "'")
			continue
		}
		out = append(out, BaseEntry{Name: name, Link: links[0]})
	}
	return out, nil
}

func candidateLinks(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("string or string array expected for 'contentURL'")
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var many []interface{}
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("string or string array expected for 'contentURL'")
	}
	out := make([]string, 0, len(many))
	for _, v := range many {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseInclude decodes the include manifest. Every field is required.
func ParseInclude(doc []byte) ([]SubfilterEntry, error) {
	if err := validateDocument(doc, schema.IncludeManifest, "include manifest"); err != nil {
		return nil, err
	}
	var out []SubfilterEntry
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, fmt.Errorf("%w: include manifest: %v", ErrInvalidDocument, err)
	}
	return out, nil
}

func validateDocument(doc []byte, schemaName, what string) error {
	res, err := schema.ValidateJSON(doc, schemaName)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, what, err)
	}
	if !res.Valid {
		return fmt.Errorf("%w: %s: %s", ErrInvalidDocument, what, res.Summary())
	}
	return nil
}
