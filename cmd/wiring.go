/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"github.com/fulmenhq/mirrorengine/internal/engine"
	"github.com/fulmenhq/mirrorengine/pkg/buildinfo"
	"github.com/fulmenhq/mirrorengine/pkg/config"
	"github.com/fulmenhq/mirrorengine/pkg/filter"
	"github.com/fulmenhq/mirrorengine/pkg/manifest"
	"github.com/fulmenhq/mirrorengine/pkg/publish"
	"github.com/fulmenhq/mirrorengine/pkg/request"
)

// newDoer builds the HTTP transport; tests replace it with a request.MockDoer.
var newDoer = func() request.Doer {
	return request.NewHTTPClient(request.DefaultTimeout)
}

// components holds everything the run command wires together.
type components struct {
	anon      *request.Engine
	authed    *request.Engine
	loader    *manifest.Loader
	publisher *publish.Publisher
}

func buildComponents(cfg *config.Config, doer request.Doer) *components {
	anon := request.NewEngine(
		request.WithDoer(doer),
		request.WithHeader(request.HeaderUserAgent, cfg.User),
	)
	authed := request.NewEngine(
		request.WithDoer(doer),
		request.WithHeader(request.HeaderUserAgent, cfg.User),
		request.WithHeader(request.HeaderAuthorization, publish.AuthorizationHeader(cfg.AuthScheme, cfg.Secret)),
	)

	client := publish.NewGitHubClient(cfg.User, cfg.Repo, authed, anon,
		publish.WithBranch(cfg.Branch),
		publish.WithAPIBaseURL(cfg.APIBaseURL),
		publish.WithContentBaseURL(cfg.ContentBaseURL),
	)

	return &components{
		anon:      anon,
		authed:    authed,
		loader:    manifest.NewLoader(anon, manifestSources(cfg)),
		publisher: publish.NewPublisher(client, filter.Comparator{}),
	}
}

func manifestSources(cfg *config.Config) manifest.Sources {
	return manifest.Sources{
		Base:      cfg.BaseManifest,
		Include:   cfg.IncludeManifest,
		Overrides: cfg.NameOverride,
		Blacklist: cfg.LinkBlacklist,
	}
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		LockfileURL:     cfg.Lockfile,
		PathPrefix:      cfg.PathPrefix,
		CommitTemplate:  cfg.CommitMessage,
		Version:         buildinfo.Version(),
		RefreshManifest: cfg.RefreshManifest,
		Timers:          engine.DefaultTimers(cfg.TimerScale),
		Validator:       filter.NewValidator(cfg.Validation.ShortRules, cfg.Validation.Allow),
	}
}
