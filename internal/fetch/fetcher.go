package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/nao1215/policyscan/internal/model"
)

const (
	// DefaultTimeout bounds each request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "policyscan/1.0 (+https://github.com/nao1215/policyscan)"

	// defaultAccept is the Accept header sent with page requests.
	defaultAccept = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"

	// maxRedirects is the number of redirects followed before the last
	// response is returned as is.
	maxRedirects = 10
)

// Fetcher retrieves pages for a single site.
// It is safe for concurrent use.
type Fetcher struct {
	client        *http.Client
	userAgent     string
	timeout       time.Duration
	maxBodySize   int64
	respectRobots bool
	proxyAddress  string
	cookie        string
	headers       map[string]string
	logger        *slog.Logger

	// robots caches parsed robots.txt files by scheme and host.
	robotsMu sync.Mutex
	robots   map[string]*robotstxt.RobotsData
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header. An empty value keeps the default.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how many body bytes are kept. Larger bodies are
// truncated. Zero or negative keeps the default.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithRespectRobots enables robots.txt checks before each request.
func WithRespectRobots(respect bool) Option {
	return func(f *Fetcher) {
		f.respectRobots = respect
	}
}

// WithProxy routes every connection through the SOCKS5 proxy at address
// ("host:port"). An empty address connects directly.
func WithProxy(address string) Option {
	return func(f *Fetcher) {
		f.proxyAddress = address
	}
}

// WithCookie adds a raw cookie string (e.g. "session=abc") to every request.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithLogger sets the logger. If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. It fails with ErrInvalidProxyAddress when a proxy
// is configured with a malformed address. The proxy itself is not contacted;
// call CheckProxy to verify it.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		userAgent:   DefaultUserAgent,
		timeout:     DefaultTimeout,
		maxBodySize: model.MaxPageSize,
		robots:      make(map[string]*robotstxt.RobotsData),
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}

	transport, err := newTransport(f.proxyAddress)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = transport
	if f.cookie != "" || len(f.headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  f.cookie,
			headers: f.headers,
		}
	}

	f.client = &http.Client{
		Transport: rt,
		Timeout:   f.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return f, nil
}

// UserAgent returns the User-Agent sent with each request.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}

// ProxyAddress returns the configured proxy address, or "" for direct
// connections.
func (f *Fetcher) ProxyAddress() string {
	return f.proxyAddress
}

// Fetch issues a GET request for rawURL and returns the page.
//
// The request fails with ErrDisallowed when robots handling is enabled and
// robots.txt forbids the URL, with ErrTransport when no complete response
// was received, and with a *StatusError (matching ErrHTTPStatus) when the
// final status is outside 200-299. Bodies larger than the configured limit
// are truncated.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	if f.respectRobots {
		allowed, err := f.allowed(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, rawURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", defaultAccept)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, rawURL, err)
	}
	defer resp.Body.Close()

	f.logger.Debug("received response",
		"url", rawURL,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %s: %w", ErrTransport, rawURL, err)
	}

	page := &model.Page{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		Headers:     resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Raw:         body,
	}

	if page.TruncateRaw(f.maxBodySize) {
		f.logger.Warn("response body truncated",
			"url", rawURL,
			"limit", f.maxBodySize,
		)
	}
	page.ComputeHash()

	return page, nil
}
