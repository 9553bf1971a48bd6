package filter

import (
	"sort"
	"strings"

	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"github.com/fulmenhq/mirrorengine/pkg/manifest"
)

// IncludeDirective prefixes a line that splices another file into a filter list.
const IncludeDirective = "!#include "

// IncludeResolver rewrites include directives to published subfilter names.
type IncludeResolver struct {
	children map[string]map[string]string
	warn     func(msg string)
}

// ResolverOption configures an IncludeResolver.
type ResolverOption func(*IncludeResolver)

// WithWarnFunc routes resolver warnings somewhere other than the default logger.
func WithWarnFunc(fn func(msg string)) ResolverOption {
	return func(r *IncludeResolver) {
		r.warn = fn
	}
}

// NewIncludeResolver indexes every subfilter of entries under its parent.
func NewIncludeResolver(entries []manifest.Entry, opts ...ResolverOption) *IncludeResolver {
	r := &IncludeResolver{
		children: manifest.Children(entries),
		warn:     func(msg string) { logger.Warn(msg) },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve rewrites the include directives of text, which was fetched for
// entry. Directives naming an undeclared subresource are dropped. The result
// ends in exactly one newline unless text is empty.
func (r *IncludeResolver) Resolve(entry manifest.Entry, text string) string {
	name := entry.EntryName()
	children := r.children[name]
	matched := make(map[string]bool)

	lines := Lines(text)
	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		if !strings.HasPrefix(line, IncludeDirective) {
			out = append(out, line)
			continue
		}

		original := strings.TrimSpace(line[len(IncludeDirective):])
		published, ok := children[original]
		if !ok {
			r.warn("Subresource '" + original + "' of '" + name + "' is not in the manifest")
			continue
		}
		out = append(out, IncludeDirective+published)
		matched[original] = true
	}

	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	originals := make([]string, 0, len(children))
	for original := range children {
		originals = append(originals, original)
	}
	sort.Strings(originals)
	for _, original := range originals {
		if !matched[original] {
			r.warn("Subresource '" + original + "' of '" + name + "' is not in the source filter")
		}
	}

	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}
