package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/conorfennell/wristreminder/internal/domain"
)

// DefaultFetchTimeout bounds a single feed request when the caller's context
// has no earlier deadline.
const DefaultFetchTimeout = 15 * time.Second

// ICSFeed is a calendar published as an ICS document over HTTP. It remembers
// the last body together with its ETag and Last-Modified validators so
// unchanged feeds are answered with 304 Not Modified.
type ICSFeed struct {
	name     string
	url      string
	username string
	token    string
	authURL  string
	loc      *time.Location
	client   *http.Client

	mu           sync.Mutex
	etag         string
	lastModified string
	body         []byte
}

// FeedOption configures an ICSFeed.
type FeedOption func(*ICSFeed)

// WithCredentials sends HTTP basic auth, or a bearer token when username is empty.
func WithCredentials(username, token string) FeedOption {
	return func(f *ICSFeed) {
		f.username = username
		f.token = token
	}
}

// WithAuthURL sets where users are sent to re-authorise the feed.
func WithAuthURL(u string) FeedOption {
	return func(f *ICSFeed) { f.authURL = u }
}

// WithLocation sets the zone floating times are interpreted in.
func WithLocation(loc *time.Location) FeedOption {
	return func(f *ICSFeed) { f.loc = loc }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) FeedOption {
	return func(f *ICSFeed) { f.client = c }
}

// NewICSFeed creates a feed for the given URL.
func NewICSFeed(name, feedURL string, opts ...FeedOption) *ICSFeed {
	f := &ICSFeed{
		name:   name,
		url:    feedURL,
		loc:    time.Local,
		client: &http.Client{Timeout: DefaultFetchTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *ICSFeed) Name() string {
	return f.name
}

// ListEvents fetches and parses the feed.
func (f *ICSFeed) ListEvents(ctx context.Context, w Window) (Result, error) {
	body, fromCache, err := f.fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	res, err := Parse(body, w, f.loc)
	if err != nil {
		return Result{}, fmt.Errorf("calendar source %s: %w", f.name, err)
	}
	res.FromCache = fromCache
	return res, nil
}

func (f *ICSFeed) fetch(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("calendar source %s: failed to build request: %w", f.name, err)
	}
	req.Header.Set("Accept", "text/calendar")

	switch {
	case f.username != "":
		req.SetBasicAuth(f.username, f.token)
	case f.token != "":
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	f.mu.Lock()
	if len(f.body) > 0 {
		if f.etag != "" {
			req.Header.Set("If-None-Match", f.etag)
		}
		if f.lastModified != "" {
			req.Header.Set("If-Modified-Since", f.lastModified)
		}
	}
	f.mu.Unlock()

	slog.Debug("Fetching calendar feed", "source", f.name, "url", redactURL(f.url))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, f.transportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, f.transportError(ctx, err)
		}
		f.mu.Lock()
		f.body = body
		f.etag = resp.Header.Get("ETag")
		f.lastModified = resp.Header.Get("Last-Modified")
		f.mu.Unlock()
		slog.Info("Calendar feed fetched", "source", f.name, "bytes", len(body))
		return body, false, nil

	case resp.StatusCode == http.StatusNotModified:
		f.mu.Lock()
		body := f.body
		f.mu.Unlock()
		if len(body) == 0 {
			return nil, false, fmt.Errorf("calendar source %s: received 304 Not Modified without a cached body", f.name)
		}
		slog.Info("Calendar feed not modified", "source", f.name)
		return body, true, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		recovery := f.authURL
		if recovery == "" {
			recovery = f.url
		}
		return nil, false, &domain.AuthError{
			Source:      f.name,
			RecoveryURL: recovery,
			Err:         errors.New(resp.Status),
		}

	case resp.StatusCode >= 500:
		return nil, false, fmt.Errorf("calendar source %s: %s: %w", f.name, resp.Status, domain.ErrNetworkUnavailable)

	default:
		return nil, false, fmt.Errorf("calendar source %s: unexpected status %s", f.name, resp.Status)
	}
}

func (f *ICSFeed) transportError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("calendar source %s: %w: %v", f.name, domain.ErrTimeout, err)
	case ctx.Err() != nil:
		return fmt.Errorf("calendar source %s: %w", f.name, ctx.Err())
	default:
		return fmt.Errorf("calendar source %s: %w: %v", f.name, domain.ErrNetworkUnavailable, err)
	}
}

// redactURL keeps only the scheme and host so tokens in paths or query
// strings do not end up in logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
