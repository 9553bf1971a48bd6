// Package publish writes mirrored filter lists to a GitHub repository.
package publish

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"github.com/fulmenhq/mirrorengine/pkg/request"
)

const (
	DefaultAPIBaseURL     = "https://api.github.com"
	DefaultContentBaseURL = "https://raw.githubusercontent.com"
	DefaultBranch         = "master"
)

const blobQuery = `query($owner: String!, $name: String!, $expression: String!) {
  repository(owner: $owner, name: $name) {
    object(expression: $expression) {
      ... on Blob {
        oid
      }
    }
  }
}`

// Requester is the slice of the request engine the client needs.
type Requester interface {
	Get(ctx context.Context, link string, opt request.Options) request.Result
	Post(ctx context.Context, link string, payload any, opt request.Options) request.Result
	Put(ctx context.Context, link string, payload any, opt request.Options) request.Result
}

// AuthorizationHeader renders the Authorization value for a static credential.
// scheme is "basic" (secret is base64 "user:token"), "bearer" or "token".
func AuthorizationHeader(scheme, secret string) string {
	switch strings.ToLower(scheme) {
	case "bearer":
		return "Bearer " + secret
	case "token":
		return "token " + secret
	default:
		return "Basic " + secret
	}
}

// GitHubClient reads and writes files of one repository branch.
type GitHubClient struct {
	owner          string
	repo           string
	branch         string
	apiBaseURL     string
	contentBaseURL string

	authed Requester
	anon   Requester
}

// ClientOption configures a GitHubClient.
type ClientOption func(*GitHubClient)

// WithBranch sets the branch read and written (default "master").
func WithBranch(branch string) ClientOption {
	return func(c *GitHubClient) {
		if branch != "" {
			c.branch = branch
		}
	}
}

// WithAPIBaseURL overrides the REST/GraphQL API base URL.
func WithAPIBaseURL(u string) ClientOption {
	return func(c *GitHubClient) {
		if u != "" {
			c.apiBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithContentBaseURL overrides the raw content base URL.
func WithContentBaseURL(u string) ClientOption {
	return func(c *GitHubClient) {
		if u != "" {
			c.contentBaseURL = strings.TrimRight(u, "/")
		}
	}
}

// NewGitHubClient creates a client. authed carries the credential and is
// used for the API; anon is used for public content reads.
func NewGitHubClient(owner, repo string, authed, anon Requester, opts ...ClientOption) *GitHubClient {
	c := &GitHubClient{
		owner:          owner,
		repo:           repo,
		branch:         DefaultBranch,
		apiBaseURL:     DefaultAPIBaseURL,
		contentBaseURL: DefaultContentBaseURL,
		authed:         authed,
		anon:           anon,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// FileContent reads the published file anonymously. ok is false when the
// file does not exist or cannot be read.
func (c *GitHubClient) FileContent(ctx context.Context, path string) (string, bool) {
	link := c.contentBaseURL + "/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo) + "/" +
		url.PathEscape(c.branch) + "/" + escapePath(path)
	res := c.anon.Get(ctx, link, request.Options{})
	return res.Text, res.HasText
}

type blobResponse struct {
	Data struct {
		Repository *struct {
			Object *struct {
				OID string `json:"oid"`
			} `json:"object"`
		} `json:"repository"`
	} `json:"data"`
}

// BlobSHA returns the blob id of path on the branch, or "" when unknown.
func (c *GitHubClient) BlobSHA(ctx context.Context, path string) string {
	payload := map[string]any{
		"query": blobQuery,
		"variables": map[string]string{
			"owner":      c.owner,
			"name":       c.repo,
			"expression": c.branch + ":" + path,
		},
	}

	res := c.authed.Post(ctx, c.apiBaseURL+"/graphql", payload, request.Options{Stubborn: true})
	if !res.HasText {
		return ""
	}

	var parsed blobResponse
	if err := json.Unmarshal([]byte(res.Text), &parsed); err != nil {
		logger.Debug("Unexpected blob query response", logger.String("path", path), logger.String("response", res.Text))
		return ""
	}
	if parsed.Data.Repository == nil || parsed.Data.Repository.Object == nil {
		logger.Debug("Blob not found", logger.String("path", path), logger.String("response", res.Text))
		return ""
	}
	return parsed.Data.Repository.Object.OID
}

type updatePayload struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch"`
}

type updateResponse struct {
	Commit *struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// UpdateFile writes content to path. sha is the current blob id, empty when
// creating the file. It reports whether the API confirmed a new commit.
func (c *GitHubClient) UpdateFile(ctx context.Context, path, content, message, sha string) bool {
	link := c.apiBaseURL + "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo) +
		"/contents/" + escapePath(path)

	res := c.authed.Put(ctx, link, updatePayload{
		Path:    path,
		Message: message,
		Content: base64.StdEncoding.EncodeToString([]byte(content)),
		SHA:     sha,
		Branch:  c.branch,
	}, request.Options{Stubborn: true})
	if !res.HasText {
		return false
	}

	status := res.StatusCode()
	var parsed updateResponse
	if err := json.Unmarshal([]byte(res.Text), &parsed); err != nil || status < 200 || status > 299 ||
		parsed.Commit == nil || parsed.Commit.SHA == "" {
		logger.Debug("Unexpected file update response", logger.String("path", path),
			logger.Int("status", status), logger.String("response", res.Text))
		return false
	}
	return true
}
