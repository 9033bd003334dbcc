// Package log provides slog loggers that mask sensitive information.
//
// Cookies and headers from the configuration file are sent with every
// request, and the fetcher logs request details at debug level. The
// SecureHandler masks:
//   - attributes named like credentials (cookie, authorization, token, ...)
//   - values that look like bearer, basic or JWT tokens
//   - sensitive entries of header maps
//   - passwords and sensitive query parameters inside URLs
//
// # Usage
//
//	logger := log.New(os.Stderr, verbose, jsonFormat)
//	logger.Debug("fetch", "url", u, "headers", req.Header)
package log
