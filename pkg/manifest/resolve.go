package manifest

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"github.com/fulmenhq/mirrorengine/pkg/safeio"
)

// Documents carries the raw manifest documents. Overrides and Blacklist are optional.
type Documents struct {
	Base      []byte
	Include   []byte
	Overrides []byte
	Blacklist string
}

// ResolveDocuments parses every document and resolves the manifest.
func ResolveDocuments(docs Documents) ([]Entry, error) {
	overrides, err := ParseOverrides(docs.Overrides)
	if err != nil {
		return nil, err
	}
	return Resolve(docs.Base, docs.Include, overrides, ParseSet(docs.Blacklist))
}

// Resolve builds the validated worklist: base entries in document order
// followed by subfilter entries.
func Resolve(base, include []byte, overrides Overrides, blacklist Set) ([]Entry, error) {
	bases, err := ParseBase(base, overrides, blacklist)
	if err != nil {
		return nil, err
	}
	subs, err := ParseInclude(include)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(bases)+len(subs))
	for _, b := range bases {
		entries = append(entries, b)
	}
	for _, s := range subs {
		entries = append(entries, s)
	}

	if err := Validate(entries, overrides); err != nil {
		return nil, err
	}
	return entries, nil
}

// Validate checks name uniqueness and safety, the override table, and that
// every subfilter lives in its parent's directory.
func Validate(entries []Entry, overrides Overrides) error {
	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		name := e.EntryName()
		if _, err := safeio.CleanRelativePath(name); err != nil {
			return fmt.Errorf("%w: '%s': %v", ErrUnsafeName, name, err)
		}
		if _, dup := byName[name]; dup {
			return fmt.Errorf("%w: '%s'", ErrDuplicateName, name)
		}
		byName[name] = e
	}

	for _, key := range overrides.Keys() {
		if _, ok := byName[key]; ok {
			return fmt.Errorf("%w: key '%s' collides with a manifest name", ErrInvalidOverride, key)
		}
		if _, ok := byName[overrides[key]]; !ok {
			return fmt.Errorf("%w: '%s' maps to '%s' which is not in the manifest",
				ErrInvalidOverride, key, overrides[key])
		}
	}

	for _, e := range entries {
		sub, ok := e.(SubfilterEntry)
		if !ok {
			continue
		}
		parent, ok := byName[sub.Parent].(BaseEntry)
		if !ok {
			return fmt.Errorf("%w: parent '%s' of '%s' is not a base entry", ErrInconsistent, sub.Parent, sub.Name)
		}
		if want := parent.Dir() + sub.Original; want != sub.Link {
			return fmt.Errorf("%w: '%s' links to '%s' but its parent resolves it to '%s'",
				ErrInconsistent, sub.Name, sub.Link, want)
		}
		if !strings.Contains(sub.Name, "/") {
			logger.Warn("Manifest Warning: Subfilter '" + sub.Name + "' is not nested under a directory")
		}
	}
	return nil
}
