package request

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Doer abstracts a single HTTP round trip for testability. Implementations
// must not follow redirects; the engine validates and follows them itself.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the production client: TLS 1.2+, a request timeout,
// no automatic redirects and no transparent decompression.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			DisableCompression: true,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// MockResponse is a scripted reply served by MockDoer.
type MockResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// MockRequest records a request seen by MockDoer.
type MockRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// MockDoer simulates HTTP responses for testing
type MockDoer struct {
	mu        sync.Mutex
	responses map[string][]MockResponse
	errors    map[string]error
	requests  []MockRequest
}

// NewMockDoer creates a mock doer; unknown URLs answer 404.
func NewMockDoer() *MockDoer {
	return &MockDoer{
		responses: make(map[string][]MockResponse),
		errors:    make(map[string]error),
	}
}

// AddResponse registers a plain text response for a URL. Repeated
// registrations for the same URL are served in order, the last one sticks.
func (m *MockDoer) AddResponse(url string, statusCode int, body string) {
	m.Add(url, MockResponse{StatusCode: statusCode, Body: []byte(body)})
}

// AddRedirect registers a redirect response carrying a Location header.
func (m *MockDoer) AddRedirect(url string, statusCode int, location string) {
	m.Add(url, MockResponse{
		StatusCode: statusCode,
		Header:     http.Header{"Location": []string{location}},
	})
}

// Add registers a fully specified response for a URL.
func (m *MockDoer) Add(url string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[url] = append(m.responses[url], resp)
}

// AddError registers a transport error for a URL
func (m *MockDoer) AddError(url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[url] = err
}

// Requests returns the requests seen so far, in order.
func (m *MockDoer) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Do implements Doer.
func (m *MockDoer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("mock: read request body: %w", err)
		}
		_ = req.Body.Close()
		body = b
	}

	url := req.URL.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, MockRequest{
		Method: req.Method,
		URL:    url,
		Header: req.Header.Clone(),
		Body:   body,
	})

	if err, ok := m.errors[url]; ok {
		return nil, err
	}

	queue, ok := m.responses[url]
	if !ok || len(queue) == 0 {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("Not Found")),
			Request:    req,
		}, nil
	}

	resp := queue[0]
	if len(queue) > 1 {
		m.responses[url] = queue[1:]
	}

	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(string(resp.Body))),
		Request:    req,
	}, nil
}
