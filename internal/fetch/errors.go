package fetch

import (
	"errors"
	"fmt"
)

// Fetch errors.
var (
	// ErrTransport is returned when no response could be obtained: the
	// connection was refused, DNS failed, the request timed out, or the
	// body could not be read.
	ErrTransport = errors.New("transport error")

	// ErrHTTPStatus is returned when the server answered with a status
	// outside 200-299. Use errors.As with *StatusError to get the code.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrDisallowed is returned when robots.txt forbids the URL.
	// Only checked when robots handling is enabled.
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrInvalidProxyAddress is returned when the proxy address is not in
	// "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not
	// speak SOCKS5 without authentication.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// could be established.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy check times out.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")
)

// StatusError reports a response with a non-2xx status code.
type StatusError struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status code received.
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: GET %s: %d", ErrHTTPStatus, e.URL, e.StatusCode)
}

// Unwrap makes errors.Is(err, ErrHTTPStatus) hold.
func (e *StatusError) Unwrap() error {
	return ErrHTTPStatus
}

// ProxyStatus is the result of checking the SOCKS5 proxy.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy accepted a SOCKS5 greeting.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates something answered but not as a
	// SOCKS5 proxy accepting unauthenticated clients.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates the TCP connection failed.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the check timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the error matching this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
