// Package fetch retrieves pages over HTTP for policyscan.
//
// A Fetcher issues GET requests with a per-request timeout, a configurable
// User-Agent, and optional per-site cookie and headers. Requests can be routed
// through a SOCKS5 proxy, and robots.txt can be honored on request.
//
// Every failure is classified by a sentinel error so callers can tell a
// transport problem (ErrTransport) from a server answering with a non-2xx
// status (ErrHTTPStatus, with the code carried by *StatusError) or a URL
// excluded by robots.txt (ErrDisallowed).
//
// Create one Fetcher per site and pass it to the components that need it
// rather than sharing global state.
package fetch
