// Package manifest resolves the base manifest and the include manifest into
// one validated, ordered worklist of publishable entries.
package manifest

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidDocument indicates a manifest document with the wrong shape.
	ErrInvalidDocument = errors.New("invalid manifest document")

	// ErrDuplicateName indicates two entries publishing under the same name.
	ErrDuplicateName = errors.New("duplicate entry name")

	// ErrInvalidOverride indicates a name override that collides with or misses the manifest.
	ErrInvalidOverride = errors.New("invalid name override")

	// ErrInconsistent indicates a subfilter that does not live next to its parent.
	ErrInconsistent = errors.New("inconsistent subfilter")

	// ErrUnsafeName indicates a name that would escape the publish directory.
	ErrUnsafeName = errors.New("unsafe entry name")

	// ErrEmpty indicates a manifest without any entries.
	ErrEmpty = errors.New("manifest has no entries")
)

// Entry is one publishable unit: a BaseEntry or a SubfilterEntry.
type Entry interface {
	EntryName() string
	EntryLink() string
	IsSubfilter() bool
}

// BaseEntry is a standalone filter from the base manifest.
type BaseEntry struct {
	Name string `json:"Name" yaml:"name"`
	Link string `json:"Link" yaml:"link"`
}

func (e BaseEntry) EntryName() string { return e.Name }
func (e BaseEntry) EntryLink() string { return e.Link }
func (e BaseEntry) IsSubfilter() bool { return false }

// Dir is the link truncated after its last "/".
func (e BaseEntry) Dir() string {
	i := strings.LastIndex(e.Link, "/")
	if i < 0 {
		return "/"
	}
	return e.Link[:i+1]
}

// SubfilterEntry is an include target declared in the include manifest.
// Original is the file name as written in Parent's include directive.
type SubfilterEntry struct {
	Name     string `json:"Name" yaml:"name"`
	Link     string `json:"Link" yaml:"link"`
	Parent   string `json:"Parent" yaml:"parent"`
	Original string `json:"Original" yaml:"original"`
}

func (e SubfilterEntry) EntryName() string { return e.Name }
func (e SubfilterEntry) EntryLink() string { return e.Link }
func (e SubfilterEntry) IsSubfilter() bool { return true }

// Names lists entry names in manifest order.
func Names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.EntryName()
	}
	return out
}

// Children maps parent name -> (original file name -> published name).
func Children(entries []Entry) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, e := range entries {
		sub, ok := e.(SubfilterEntry)
		if !ok {
			continue
		}
		m, ok := out[sub.Parent]
		if !ok {
			m = make(map[string]string)
			out[sub.Parent] = m
		}
		m[sub.Original] = sub.Name
	}
	return out
}
