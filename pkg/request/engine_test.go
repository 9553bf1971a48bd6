package request

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://filters.example.com"

func newMockEngine() (*Engine, *MockDoer) {
	doer := NewMockDoer()
	return NewEngine(WithDoer(doer)), doer
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestGetPlainText(t *testing.T) {
	e, doer := newMockEngine()
	doer.AddResponse(base+"/list.txt", 200, "||ads.example^\n")

	res := e.Get(context.Background(), base+"/list.txt", Options{})

	assert.True(t, res.HasText)
	assert.Equal(t, "||ads.example^\n", res.Text)
	assert.Equal(t, 200, res.StatusCode())
	assert.False(t, res.RedirectRefused)
}

func TestInsecureProtocolNeverReachesNetwork(t *testing.T) {
	e, doer := newMockEngine()

	for _, link := range []string{"http://filters.example.com/list.txt", "ftp://filters.example.com/x", "not a url"} {
		res := e.Get(context.Background(), link, Options{})
		assert.False(t, res.HasText, link)
	}
	assert.Empty(t, doer.Requests())

	_, err := e.do(context.Background(), http.MethodGet, "http://filters.example.com/x", nil, "", Options{})
	assert.ErrorIs(t, err, ErrInsecureProtocol)
	assert.Contains(t, err.Error(), `"http:"`)
}

func TestRedirectValidation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		refused  bool
		next     string
	}{
		{"absolute https", "https://cdn.example.org/list.txt", false, "https://cdn.example.org/list.txt"},
		{"plain http", "http://evil.com/list.txt", true, ""},
		{"protocol relative", "//evil.com/list.txt", true, ""},
		{"bare host without path", "https://evil.com", true, ""},
		{"relative path", "/mirror/list.txt", false, base + "/mirror/list.txt"},
		{"relative dot path", "../list.txt", true, ""},
		{"empty", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, doer := newMockEngine()
			doer.AddRedirect(base+"/start", http.StatusFound, tt.location)
			if tt.next != "" {
				doer.AddResponse(tt.next, 200, "ok")
			}

			res, err := e.do(context.Background(), http.MethodGet, base+"/start", nil, "", Options{})
			if tt.refused {
				assert.ErrorIs(t, err, ErrRedirectRefused)
				assert.True(t, res.RedirectRefused)
				assert.False(t, res.HasText)
				assert.Len(t, doer.Requests(), 1)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", res.Text)
			reqs := doer.Requests()
			require.Len(t, reqs, 2)
			assert.Equal(t, tt.next, reqs[1].URL)
		})
	}
}

func chain(doer *MockDoer, redirects int) string {
	for i := 0; i < redirects; i++ {
		doer.AddRedirect(fmt.Sprintf("%s/r%d", base, i), http.StatusMovedPermanently, fmt.Sprintf("/r%d", i+1))
	}
	doer.AddResponse(fmt.Sprintf("%s/r%d", base, redirects), 200, "landed")
	return base + "/r0"
}

func TestRedirectChainLimit(t *testing.T) {
	e, doer := newMockEngine()
	res := e.Get(context.Background(), chain(doer, MaxRedirects), Options{})
	assert.True(t, res.HasText)
	assert.Equal(t, "landed", res.Text)
	assert.Len(t, doer.Requests(), MaxRedirects+1)

	e, doer = newMockEngine()
	res, err := e.do(context.Background(), http.MethodGet, chain(doer, MaxRedirects+1), nil, "", Options{})
	assert.ErrorIs(t, err, ErrTooManyRedirects)
	assert.True(t, res.RedirectRefused)
	assert.False(t, res.HasText)
	assert.Len(t, doer.Requests(), MaxRedirects+1)
}

func TestRedirectStatusCodes(t *testing.T) {
	for _, code := range []int{301, 302, 307} {
		e, doer := newMockEngine()
		doer.AddRedirect(base+"/a", code, "/b")
		doer.AddResponse(base+"/b", 200, "moved")
		res := e.Get(context.Background(), base+"/a", Options{})
		assert.Equal(t, "moved", res.Text, "status %d", code)
	}

	// 308 is not followed and is not a success.
	e, doer := newMockEngine()
	doer.AddRedirect(base+"/a", http.StatusPermanentRedirect, "/b")
	res := e.Get(context.Background(), base+"/a", Options{})
	assert.False(t, res.HasText)
	assert.Len(t, doer.Requests(), 1)
}

func TestStubbornMode(t *testing.T) {
	e, doer := newMockEngine()
	doer.AddResponse(base+"/graphql", 401, `{"message":"Bad credentials"}`)

	res, err := e.do(context.Background(), http.MethodGet, base+"/graphql", nil, "", Options{})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 401, statusErr.Code)
	assert.False(t, res.HasText)
	assert.Equal(t, 401, res.StatusCode())

	res = e.Get(context.Background(), base+"/graphql", Options{Stubborn: true})
	assert.True(t, res.HasText)
	assert.Equal(t, `{"message":"Bad credentials"}`, res.Text)
	assert.Equal(t, 401, res.StatusCode())
}

func TestContentEncodings(t *testing.T) {
	text := "! Title: Example\n||tracker.example^\n"

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "identity", []byte(text)},
		{"none", "", []byte(text)},
		{"gzip", "gzip", gzipBytes(t, text)},
		{"deflate", "deflate", zlibBytes(t, text)},
		{"uppercase gzip", "GZIP", gzipBytes(t, text)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, doer := newMockEngine()
			header := http.Header{}
			if tt.encoding != "" {
				header.Set("Content-Encoding", tt.encoding)
			}
			doer.Add(base+"/list.txt", MockResponse{StatusCode: 200, Header: header, Body: tt.body})

			res := e.Get(context.Background(), base+"/list.txt", Options{})
			require.True(t, res.HasText)
			assert.Equal(t, text, res.Text)
		})
	}
}

func TestUnknownEncoding(t *testing.T) {
	e, doer := newMockEngine()
	doer.Add(base+"/list.txt", MockResponse{
		StatusCode: 200,
		Header:     http.Header{"Content-Encoding": []string{"br"}},
		Body:       []byte("whatever"),
	})

	res, err := e.do(context.Background(), http.MethodGet, base+"/list.txt", nil, "", Options{})
	assert.ErrorIs(t, err, ErrUnknownEncoding)
	assert.False(t, res.HasText)
}

func TestCorruptGzip(t *testing.T) {
	e, doer := newMockEngine()
	doer.Add(base+"/list.txt", MockResponse{
		StatusCode: 200,
		Header:     http.Header{"Content-Encoding": []string{"gzip"}},
		Body:       []byte("definitely not gzip"),
	})

	res := e.Get(context.Background(), base+"/list.txt", Options{})
	assert.False(t, res.HasText)
}

func TestResponseSizeLimit(t *testing.T) {
	e, doer := newMockEngine()
	doer.AddResponse(base+"/exact", 200, strings.Repeat("a", MaxResponseSize))
	doer.AddResponse(base+"/over", 200, strings.Repeat("a", MaxResponseSize+1))

	res := e.Get(context.Background(), base+"/exact", Options{})
	assert.True(t, res.HasText)
	assert.Len(t, res.Text, MaxResponseSize)

	_, err := e.do(context.Background(), http.MethodGet, base+"/over", nil, "", Options{})
	assert.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestCharsetDecoding(t *testing.T) {
	e, doer := newMockEngine()
	doer.Add(base+"/latin1", MockResponse{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=ISO-8859-1"}},
		Body:       []byte{'c', 'a', 'f', 0xe9},
	})
	doer.Add(base+"/broken", MockResponse{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:       []byte{'o', 'k', 0xff},
	})

	assert.Equal(t, "café", e.Get(context.Background(), base+"/latin1", Options{}).Text)
	assert.Equal(t, "ok�", e.Get(context.Background(), base+"/broken", Options{}).Text)
}

func TestRequestHeaders(t *testing.T) {
	e, doer := newMockEngine()
	e.SetHeader(HeaderAuthorization, "Basic c2VjcmV0")
	e.SetHeader(HeaderUserAgent, "mirror-bot")
	doer.AddResponse(base+"/list.txt", 200, "x")

	e.Get(context.Background(), base+"/list.txt", Options{})

	reqs := doer.Requests()
	require.Len(t, reqs, 1)
	h := reqs[0].Header
	assert.Equal(t, "no-cache", h.Get("Cache-Control"))
	assert.Equal(t, "text/plain, text/*, */*;q=0.9", h.Get("Accept"))
	assert.Equal(t, "deflate, gzip, identity", h.Get("Accept-Encoding"))
	assert.Equal(t, "Basic c2VjcmV0", h.Get("Authorization"))
	assert.Equal(t, "mirror-bot", h.Get("User-Agent"))
	assert.Equal(t, []string{"Authorization", "User-Agent"}, e.HeaderNames())
}

func TestCustomAcceptOverridesDefault(t *testing.T) {
	doer := NewMockDoer()
	e := NewEngine(WithDoer(doer), WithHeader(HeaderAccept, "application/json"))
	doer.AddResponse(base+"/api", 200, "{}")

	e.Get(context.Background(), base+"/api", Options{})

	assert.Equal(t, "application/json", doer.Requests()[0].Header.Get("Accept"))
}

func TestPayloads(t *testing.T) {
	e, doer := newMockEngine()
	doer.AddResponse(base+"/graphql", 200, `{"data":{}}`)
	doer.AddResponse(base+"/contents/a.txt", 200, `{"commit":{"sha":"abc"}}`)

	res := e.Post(context.Background(), base+"/graphql", map[string]string{"query": "{ viewer { login } }"}, Options{})
	assert.True(t, res.HasText)

	res = e.Put(context.Background(), base+"/contents/a.txt", "raw body", Options{})
	assert.True(t, res.HasText)

	reqs := doer.Requests()
	require.Len(t, reqs, 2)

	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(reqs[0].Body, &decoded))
	assert.Equal(t, "{ viewer { login } }", decoded["query"])

	assert.Equal(t, http.MethodPut, reqs[1].Method)
	assert.Empty(t, reqs[1].Header.Get("Content-Type"))
	assert.Equal(t, "raw body", string(reqs[1].Body))
}

func TestPayloadResentAfterRedirect(t *testing.T) {
	e, doer := newMockEngine()
	doer.AddRedirect(base+"/old", http.StatusTemporaryRedirect, "/new")
	doer.AddResponse(base+"/new", 200, "done")

	res := e.Post(context.Background(), base+"/old", []byte("payload"), Options{})
	require.True(t, res.HasText)

	reqs := doer.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "payload", string(reqs[0].Body))
	assert.Equal(t, "payload", string(reqs[1].Body))
	assert.Equal(t, http.MethodPost, reqs[1].Method)
}

func TestUnencodablePayload(t *testing.T) {
	e, doer := newMockEngine()
	res := e.Post(context.Background(), base+"/x", map[string]any{"ch": make(chan int)}, Options{})
	assert.False(t, res.HasText)
	assert.Empty(t, doer.Requests())
}

func TestNetworkError(t *testing.T) {
	e, doer := newMockEngine()
	boom := errors.New("connection reset")
	doer.AddError(base+"/list.txt", boom)

	res, err := e.do(context.Background(), http.MethodGet, base+"/list.txt", nil, "", Options{})
	assert.False(t, res.HasText)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.MethodGet, netErr.Method)
	assert.ErrorIs(t, err, boom)
}

func TestTLSServerRelativeRedirectAndGzip(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			w.Header().Set("Location", "/final")
			w.WriteHeader(http.StatusFound)
		case "/final":
			assert.Equal(t, "deflate, gzip, identity", r.Header.Get("Accept-Encoding"))
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			_, _ = gz.Write([]byte("served over tls\n"))
			_ = gz.Close()
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	e := NewEngine(WithDoer(client))

	res := e.Get(context.Background(), srv.URL+"/start", Options{})
	require.True(t, res.HasText)
	assert.Equal(t, "served over tls\n", res.Text)

	res = e.Get(context.Background(), srv.URL+"/missing", Options{})
	assert.False(t, res.HasText)
	assert.Equal(t, http.StatusNotFound, res.StatusCode())
}

func TestNewHTTPClientRefusesAutomaticRedirects(t *testing.T) {
	c := NewHTTPClient(DefaultTimeout)
	require.NotNil(t, c.CheckRedirect)
	assert.ErrorIs(t, c.CheckRedirect(nil, nil), http.ErrUseLastResponse)
	assert.Equal(t, DefaultTimeout, c.Timeout)
}
