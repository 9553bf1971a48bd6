// Package engine drives the mirror loop: one manifest entry per cycle,
// gated by the remote lockfile and paced by scaled sleeps.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aymerick/raymond"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/mirrorengine/pkg/filter"
	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"github.com/fulmenhq/mirrorengine/pkg/manifest"
	"github.com/fulmenhq/mirrorengine/pkg/publish"
	"github.com/fulmenhq/mirrorengine/pkg/request"
)

// DefaultCommitTemplate is the commit message used when none is configured.
const DefaultCommitTemplate = "Automatic mirror update - Mirror Engine v{{version}}"

// Timers are the pauses after each kind of cycle.
type Timers struct {
	Cycle           time.Duration
	Locked          time.Duration
	LockfileFailure time.Duration
}

// DefaultTimers returns the standard pacing multiplied by scale (minimum 1).
func DefaultTimers(scale int) Timers {
	if scale < 1 {
		scale = 1
	}
	s := time.Duration(scale)
	return Timers{
		Cycle:           15 * time.Minute * s,
		Locked:          5 * time.Minute * s,
		LockfileFailure: 60 * time.Minute * s,
	}
}

// Outcome summarizes one Step.
type Outcome int

const (
	OutcomeLockfileUnavailable Outcome = iota
	OutcomeLocked
	OutcomeFetchFailed
	OutcomeInvalid
	OutcomePublishFailed
	OutcomeUnchanged
	OutcomePublished
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLockfileUnavailable:
		return "lockfile-unavailable"
	case OutcomeLocked:
		return "locked"
	case OutcomeFetchFailed:
		return "fetch-failed"
	case OutcomeInvalid:
		return "invalid"
	case OutcomePublishFailed:
		return "publish-failed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomePublished:
		return "published"
	default:
		return "unknown"
	}
}

// ErrNoEntries is returned when the manifest resolves to nothing at startup.
var ErrNoEntries = errors.New("manifest resolved to zero entries")

// Fetcher retrieves remote text.
type Fetcher interface {
	Get(ctx context.Context, link string, opt request.Options) request.Result
}

// Publisher writes an entry's content when it changed.
type Publisher interface {
	PublishIfChanged(ctx context.Context, path, content, message string) publish.Result
}

// ManifestSource resolves the manifest.
type ManifestSource interface {
	Load(ctx context.Context) ([]manifest.Entry, error)
}

// Config tunes the orchestrator.
type Config struct {
	LockfileURL     string
	PathPrefix      string
	CommitTemplate  string
	Version         string
	RefreshManifest bool
	Timers          Timers
	Validator       *filter.Validator
}

// Orchestrator processes one manifest entry per Step.
type Orchestrator struct {
	cfg       Config
	state     *State
	fetcher   Fetcher
	publisher Publisher
	source    ManifestSource

	message  *raymond.Template
	entries  []manifest.Entry
	resolver *filter.IncludeResolver
	index    int
	passOpen bool
	passes   int

	shuffle func([]manifest.Entry)
	sleep   func(context.Context, time.Duration) bool
}

// New creates an orchestrator. The manifest is loaded by Load or Run.
func New(cfg Config, state *State, fetcher Fetcher, publisher Publisher, source ManifestSource) (*Orchestrator, error) {
	if cfg.CommitTemplate == "" {
		cfg.CommitTemplate = DefaultCommitTemplate
	}
	tpl, err := raymond.Parse(cfg.CommitTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse commit message template: %w", err)
	}
	if cfg.Validator == nil {
		cfg.Validator = filter.NewValidator(false, nil)
	}
	if cfg.Timers == (Timers{}) {
		cfg.Timers = DefaultTimers(1)
	}

	return &Orchestrator{
		cfg:       cfg,
		state:     state,
		fetcher:   fetcher,
		publisher: publisher,
		source:    source,
		message:   tpl,
		shuffle:   manifest.Shuffle,
		sleep:     state.Sleep,
	}, nil
}

// Entries returns the current manifest order.
func (o *Orchestrator) Entries() []manifest.Entry {
	return o.entries
}

// Load resolves the initial manifest. Failure or an empty manifest is fatal.
func (o *Orchestrator) Load(ctx context.Context) error {
	entries, err := o.source.Load(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return ErrNoEntries
	}
	o.setEntries(entries)
	o.state.setPhase(PhaseManifestLoaded)
	logger.Info(fmt.Sprintf("Manifest loaded, %d entries", len(entries)))
	return nil
}

func (o *Orchestrator) setEntries(entries []manifest.Entry) {
	o.entries = entries
	o.resolver = filter.NewIncludeResolver(entries)
	o.index = 0
	o.passOpen = false
}

// Run loads the manifest and loops until the state is stopped.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.Load(ctx); err != nil {
		return err
	}

	for o.state.Running() {
		outcome, pause := o.Step(ctx)
		logger.Debug("Cycle finished", logger.String("outcome", outcome.String()), logger.Duration("sleep", pause))

		if !o.state.Running() {
			break
		}
		o.state.setPhase(PhaseSleep)
		if !o.sleep(ctx, pause) {
			break
		}
	}

	o.state.setPhase(PhaseShuttingDown)
	logger.Info("Mirror engine stopped")
	return nil
}

// Step processes the entry at the current index and returns how long to
// pause before the next Step.
func (o *Orchestrator) Step(ctx context.Context) (Outcome, time.Duration) {
	if !o.passOpen {
		o.startPass(ctx)
	}

	o.state.setPhase(PhaseCycleStart)
	entry := o.entries[o.index]
	name := entry.EntryName()

	o.state.setPhase(PhaseLockCheck)
	lock := o.fetcher.Get(ctx, o.cfg.LockfileURL, request.Options{})
	if !lock.HasText {
		logger.Error("Could not fetch lockfile, retrying later", logger.Duration("sleep", o.cfg.Timers.LockfileFailure))
		return OutcomeLockfileUnavailable, o.cfg.Timers.LockfileFailure
	}

	if Locked(name, manifest.TextLines(lock.Text)) {
		o.state.setPhase(PhaseSkip)
		logger.Info("Entry '" + name + "' is locked, skipping")
		o.advance()
		return OutcomeLocked, o.cfg.Timers.Locked
	}

	o.state.setPhase(PhaseFetch)
	logger.Info("Processing '" + name + "'")
	o.advance()

	src := o.fetcher.Get(ctx, entry.EntryLink(), request.Options{})
	if !src.HasText {
		logger.Error("Could not fetch '" + name + "'")
		return OutcomeFetchFailed, o.cfg.Timers.Cycle
	}
	if err := o.cfg.Validator.Validate(src.Text); err != nil {
		logger.Error("Validation Error: '"+name+"' was not published", logger.Err(err))
		return OutcomeInvalid, o.cfg.Timers.Cycle
	}
	text := o.resolver.Resolve(entry, src.Text)

	o.state.setPhase(PhasePublish)
	path := o.cfg.PathPrefix + name
	msg, err := o.commitMessage(entry, path)
	if err != nil {
		logger.Error("Could not render commit message", logger.Err(err))
		return OutcomePublishFailed, o.cfg.Timers.Cycle
	}

	res := o.publisher.PublishIfChanged(ctx, path, text, msg)
	switch {
	case !res.Success:
		logger.Error("Could not publish '" + name + "'")
		return OutcomePublishFailed, o.cfg.Timers.Cycle
	case res.Written:
		return OutcomePublished, o.cfg.Timers.Cycle
	default:
		return OutcomeUnchanged, o.cfg.Timers.Cycle
	}
}

func (o *Orchestrator) startPass(ctx context.Context) {
	if o.cfg.RefreshManifest && o.passes > 0 {
		entries, err := o.source.Load(ctx)
		switch {
		case err != nil:
			logger.Error("Manifest refresh failed, keeping previous manifest", logger.Err(err))
		case len(entries) == 0:
			logger.Error("Manifest refresh returned no entries, keeping previous manifest")
		default:
			o.setEntries(entries)
			logger.Info(fmt.Sprintf("Manifest refreshed, %d entries", len(entries)))
		}
	}

	o.shuffle(o.entries)
	o.passOpen = true
	o.passes++
}

func (o *Orchestrator) advance() {
	o.index++
	if o.index >= len(o.entries) {
		o.index = 0
		o.passOpen = false
	}
}

func (o *Orchestrator) commitMessage(entry manifest.Entry, path string) (string, error) {
	return o.message.Exec(map[string]interface{}{
		"name":    raymond.SafeString(entry.EntryName()),
		"path":    raymond.SafeString(path),
		"link":    raymond.SafeString(entry.EntryLink()),
		"version": raymond.SafeString(o.cfg.Version),
	})
}

// Locked reports whether name matches a lockfile line, either exactly or as
// a doublestar glob.
func Locked(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := doublestar.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
