package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyContent indicates a fetched filter with no text.
	ErrEmptyContent = errors.New("filter content is empty")

	// ErrMarkupContent indicates a fetched document that looks like an HTML page.
	ErrMarkupContent = errors.New("a filter should not begin with '<'")

	// ErrShortRule indicates rules too short to be trusted without review.
	ErrShortRule = errors.New("rules flagged for manual review")
)

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]*$`)

// Validator rejects fetched content that is not a plausible filter list.
type Validator struct {
	shortRules bool
	allow      map[string]struct{}
}

// NewValidator creates a validator. With shortRules, any alphanumeric rule
// shorter than four characters fails validation unless listed in allow.
func NewValidator(shortRules bool, allow []string) *Validator {
	v := &Validator{shortRules: shortRules, allow: make(map[string]struct{}, len(allow))}
	for _, a := range allow {
		v.allow[strings.TrimSpace(a)] = struct{}{}
	}
	return v
}

// Validate returns nil when text may be published.
func (v *Validator) Validate(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyContent
	}
	if strings.HasPrefix(text, "<") {
		return ErrMarkupContent
	}
	if !v.shortRules {
		return nil
	}

	var flagged []string
	for _, line := range Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" || len(line) >= 4 || !alphanumeric.MatchString(line) {
			continue
		}
		if _, ok := v.allow[line]; ok {
			continue
		}
		flagged = append(flagged, "'"+line+"'")
	}
	if len(flagged) > 0 {
		return fmt.Errorf("%w: %s", ErrShortRule, strings.Join(flagged, ", "))
	}
	return nil
}
