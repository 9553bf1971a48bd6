package manifest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/fulmenhq/mirrorengine/pkg/request"
	"golang.org/x/sync/errgroup"
)

// ErrUnavailable indicates a manifest document that could not be fetched.
var ErrUnavailable = errors.New("manifest document unavailable")

// Getter is the slice of the request engine the loader needs.
type Getter interface {
	Get(ctx context.Context, link string, opt request.Options) request.Result
}

// Sources are the links of the manifest documents. Overrides and Blacklist may be empty.
type Sources struct {
	Base      string
	Include   string
	Overrides string
	Blacklist string
}

// Loader fetches and resolves the manifest.
type Loader struct {
	getter  Getter
	sources Sources
}

// NewLoader creates a loader over getter.
func NewLoader(getter Getter, sources Sources) *Loader {
	return &Loader{getter: getter, sources: sources}
}

// Load fetches all configured documents concurrently and resolves them.
// A manifest that resolves to no entries yields ErrEmpty.
func (l *Loader) Load(ctx context.Context) ([]Entry, error) {
	docs, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := ResolveDocuments(docs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	return entries, nil
}

func (l *Loader) fetch(ctx context.Context) (Documents, error) {
	var base, include, overrides, blacklist string

	var (
		panicOnce sync.Once
		panicked  any
	)
	g, gctx := errgroup.WithContext(ctx)
	get := func(what, link string, dst *string) {
		if link == "" {
			return
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					panicOnce.Do(func() {
						panicked = fmt.Sprintf("%v [fetching %s]\n\n%s", r, what, debug.Stack())
					})
					err = fmt.Errorf("%w: %s: panic", ErrUnavailable, what)
				}
			}()
			res := l.getter.Get(gctx, link, request.Options{})
			if !res.HasText {
				return fmt.Errorf("%w: %s (%s)", ErrUnavailable, what, link)
			}
			*dst = res.Text
			return nil
		})
	}

	get("base manifest", l.sources.Base, &base)
	get("include manifest", l.sources.Include, &include)
	get("name overrides", l.sources.Overrides, &overrides)
	get("link blacklist", l.sources.Blacklist, &blacklist)

	err := g.Wait()
	if panicked != nil {
		// Panics surface on the calling goroutine.
		panic(panicked)
	}
	if err != nil {
		return Documents{}, err
	}
	if l.sources.Base == "" || l.sources.Include == "" {
		return Documents{}, fmt.Errorf("%w: base and include manifest links are required", ErrUnavailable)
	}

	return Documents{
		Base:      []byte(base),
		Include:   []byte(include),
		Overrides: []byte(overrides),
		Blacklist: blacklist,
	}, nil
}
