// Package request is the HTTPS request engine shared by every network
// consumer: manifest documents, filter sources, lockfile and publish target.
//
// Failures never cross the package boundary as errors. Get, Post and Put log
// the cause and return a Result without text; callers treat that as
// "try again later".
package request

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/mirrorengine/pkg/logger"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// MaxResponseSize bounds the decoded body of any single response (16 MiB).
	MaxResponseSize = 16 * 1024 * 1024

	// MaxRedirects is the number of redirects followed before giving up.
	MaxRedirects = 5

	// DefaultTimeout applies to the production HTTP client.
	DefaultTimeout = 60 * time.Second
)

// Header names a customizable request header.
type Header string

const (
	HeaderAccept        Header = "Accept"
	HeaderAuthorization Header = "Authorization"
	HeaderUserAgent     Header = "User-Agent"
)

var defaultHeaders = [][2]string{
	{"Cache-Control", "no-cache"},
	{"Accept", "text/plain, text/*, */*;q=0.9"},
	{"Accept-Encoding", "deflate, gzip, identity"},
}

var (
	redirectStatus = map[int]bool{
		http.StatusMovedPermanently:  true,
		http.StatusFound:             true,
		http.StatusTemporaryRedirect: true,
	}

	safeAbsoluteLink = regexp.MustCompile(`^https://(?:\w+\.)+\w+/`)
	safeRelativeLink = regexp.MustCompile(`^/\w`)
)

// Options tunes a single request.
type Options struct {
	// Stubborn returns the body even when the final status is not 2xx.
	Stubborn bool
}

// Result is the outcome of one request. HasText is false on every failure.
// Response is kept for header inspection; its body is always consumed and closed.
type Result struct {
	Text            string
	HasText         bool
	RedirectRefused bool
	Response        *http.Response
}

// StatusCode returns the final status code, or 0 when no response was received.
func (r Result) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// Engine performs HTTPS requests with a fixed set of custom headers.
type Engine struct {
	doer Doer

	mu      sync.RWMutex
	headers map[Header]string
}

// Option configures an Engine during construction.
type Option func(*Engine)

// WithDoer replaces the HTTP transport, primarily for tests.
func WithDoer(d Doer) Option {
	return func(e *Engine) {
		e.doer = d
	}
}

// WithHeader sets a custom header at construction time.
func WithHeader(key Header, value string) Option {
	return func(e *Engine) {
		e.headers[key] = value
	}
}

// NewEngine creates an engine backed by NewHTTPClient(DefaultTimeout).
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		doer:    NewHTTPClient(DefaultTimeout),
		headers: make(map[Header]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetHeader sets a custom header sent with every request.
func (e *Engine) SetHeader(key Header, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.headers[key] = value
}

// HeaderNames lists the custom header names, sorted.
func (e *Engine) HeaderNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.headers))
	for k := range e.headers {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// Get issues a GET request.
func (e *Engine) Get(ctx context.Context, link string, opt Options) Result {
	return e.perform(ctx, http.MethodGet, link, nil, "", opt)
}

// Post issues a POST request. Payloads other than string or []byte are JSON encoded.
func (e *Engine) Post(ctx context.Context, link string, payload any, opt Options) Result {
	return e.send(ctx, http.MethodPost, link, payload, opt)
}

// Put issues a PUT request. Payloads other than string or []byte are JSON encoded.
func (e *Engine) Put(ctx context.Context, link string, payload any, opt Options) Result {
	return e.send(ctx, http.MethodPut, link, payload, opt)
}

func (e *Engine) send(ctx context.Context, method, link string, payload any, opt Options) Result {
	body, contentType, err := encodePayload(payload)
	if err != nil {
		logger.Error("Request payload could not be encoded",
			logger.String("method", method), logger.String("link", link), logger.Err(err))
		return Result{}
	}
	return e.perform(ctx, method, link, body, contentType, opt)
}

func (e *Engine) perform(ctx context.Context, method, link string, payload []byte, contentType string, opt Options) Result {
	res, err := e.do(ctx, method, link, payload, contentType, opt)
	if err != nil {
		logger.Error("Request failed",
			logger.String("method", method), logger.String("link", link), logger.Err(err))
	}
	return res
}

// do follows validated redirects and decodes the final body.
func (e *Engine) do(ctx context.Context, method, link string, payload []byte, contentType string, opt Options) (Result, error) {
	var resp *http.Response

	for hop := 0; hop <= MaxRedirects; hop++ {
		var err error
		resp, err = e.roundTrip(ctx, method, link, payload, contentType)
		if err != nil {
			return Result{}, err
		}

		if redirectStatus[resp.StatusCode] {
			location := resp.Header.Get("Location")
			drain(resp)

			next, ok := resolveRedirect(link, location)
			if !ok {
				return Result{RedirectRefused: true, Response: resp},
					fmt.Errorf("%w: invalid redirect link %q", ErrRedirectRefused, location)
			}
			link = next
			continue
		}

		if !opt.Stubborn && (resp.StatusCode < 200 || resp.StatusCode > 299) {
			drain(resp)
			return Result{Response: resp}, &StatusError{Code: resp.StatusCode, URL: link}
		}

		text, err := readText(resp)
		_ = resp.Body.Close()
		if err != nil {
			return Result{Response: resp}, err
		}
		return Result{Text: text, HasText: true, Response: resp}, nil
	}

	return Result{RedirectRefused: true, Response: resp}, ErrTooManyRedirects
}

func (e *Engine) roundTrip(ctx context.Context, method, link string, payload []byte, contentType string) (*http.Response, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse link %q: %w", link, err)
	}
	if u.Scheme != "https" {
		return nil, fmt.Errorf("%w %q", ErrInsecureProtocol, u.Scheme+":")
	}

	logger.Info(method + " - " + link)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, link, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for _, h := range defaultHeaders {
		req.Header.Set(h[0], h[1])
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	e.mu.RLock()
	for k, v := range e.headers {
		req.Header.Set(string(k), v)
	}
	e.mu.RUnlock()

	if names := e.HeaderNames(); len(names) > 0 {
		logger.Debug("Sending custom headers: '" + strings.Join(names, "', '") + "'")
	}

	resp, err := e.doer.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: link, Wrapped: err}
	}
	return resp, nil
}

// resolveRedirect accepts absolute https links to a well-formed host and
// root-relative paths, which stay on the current link's host.
func resolveRedirect(current, location string) (string, bool) {
	if safeAbsoluteLink.MatchString(location) {
		return location, true
	}
	if safeRelativeLink.MatchString(location) {
		u, err := url.Parse(current)
		if err != nil || u.Host == "" {
			return "", false
		}
		return "https://" + u.Host + location, true
	}
	return "", false
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
	_ = resp.Body.Close()
}

func readText(resp *http.Response) (string, error) {
	var r io.Reader = resp.Body

	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("deflate: %w", err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	default:
		return "", fmt.Errorf("%w '%s'", ErrUnknownEncoding, enc)
	}

	if dec := charsetDecoder(resp.Header.Get("Content-Type")); dec != nil {
		r = dec.Reader(r)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(data) > MaxResponseSize {
		return "", ErrResponseTooLarge
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// charsetDecoder returns a decoder to UTF-8 for a non-UTF-8 charset parameter.
func charsetDecoder(contentType string) *encoding.Decoder {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	charset := strings.ToLower(strings.TrimSpace(params["charset"]))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		logger.Debug("Unknown response charset, reading as UTF-8", logger.String("charset", charset))
		return nil
	}
	return enc.NewDecoder()
}

func encodePayload(payload any) ([]byte, string, error) {
	switch p := payload.(type) {
	case nil:
		return nil, "", nil
	case string:
		return []byte(p), "", nil
	case []byte:
		return p, "", nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, "", err
		}
		return b, "application/json", nil
	}
}
