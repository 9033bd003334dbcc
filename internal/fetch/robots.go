package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// allowed reports whether robots.txt of rawURL's host permits fetching it
// with the configured User-Agent. A missing or unreachable robots.txt
// allows everything; robotstxt maps 4xx to allow-all and 5xx to
// disallow-all.
func (f *Fetcher) allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("%w: GET %s: %w", ErrTransport, rawURL, err)
	}

	robots := f.robotsFor(ctx, u)
	if robots == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return robots.TestAgent(path, f.userAgent), nil
}

// robotsFor returns the cached robots.txt of u's host, fetching it on first
// use. It returns nil when the file could not be retrieved or parsed.
func (f *Fetcher) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	f.robotsMu.Lock()
	defer f.robotsMu.Unlock()

	if data, ok := f.robots[key]; ok {
		return data
	}

	robotsURL := key + "/robots.txt"
	data, err := f.fetchRobots(ctx, robotsURL)
	if err != nil {
		f.logger.Debug("robots.txt unavailable, allowing all",
			"url", robotsURL,
			"error", err,
		)
	}
	f.robots[key] = data

	return data
}

func (f *Fetcher) fetchRobots(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return robotstxt.FromResponse(resp)
}
