package request

import (
	"errors"
	"fmt"
)

var (
	// ErrInsecureProtocol is returned for any link that is not https.
	ErrInsecureProtocol = errors.New("unsupported protocol")

	// ErrRedirectRefused indicates a Location header that failed validation.
	ErrRedirectRefused = errors.New("redirect refused")

	// ErrTooManyRedirects indicates the redirect chain exceeded MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrUnknownEncoding indicates a Content-Encoding the engine cannot decode.
	ErrUnknownEncoding = errors.New("unknown content encoding")

	// ErrResponseTooLarge indicates the decoded body exceeded MaxResponseSize.
	ErrResponseTooLarge = errors.New("response payload too large")
)

// StatusError reports a final status code outside the 2xx range.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}

// NetworkError wraps a transport failure for a single request.
type NetworkError struct {
	Method  string
	URL     string
	Wrapped error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s %s: %v", e.Method, e.URL, e.Wrapped)
}

func (e *NetworkError) Unwrap() error {
	return e.Wrapped
}
