package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mirrorsync/internal/domain"
)

const (
	// DefaultBaseURL is the archive root mirrored when none is configured
	DefaultBaseURL = "https://myrient.erista.me/files"

	defaultListRetries     = 3
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
	defaultRequestTimeout  = 30 * time.Second
)

// StatusError reports a non-2xx HTTP response. It unwraps to the
// domain taxonomy so callers can classify with errors.Is.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

func (e *StatusError) Unwrap() []error {
	switch {
	case e.Code == http.StatusNotFound:
		return []error{domain.ErrNotFound, domain.ErrTerminal}
	case e.Code >= 400 && e.Code < 500:
		return []error{domain.ErrTerminal}
	default:
		return []error{domain.ErrTransient}
	}
}

// Options configures a Client
type Options struct {
	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client

	// ListRetries bounds retry attempts per directory listing
	ListRetries int

	// InitialInterval seeds the exponential backoff
	InitialInterval time.Duration

	// MaxInterval caps the exponential backoff
	MaxInterval time.Duration
}

// Client fetches directory listings and file bodies from the archive.
// Listing fetches retry transient failures internally; file fetches do
// not, because the transfer pipeline owns per-file retry.
type Client struct {
	base            *url.URL
	httpc           *http.Client
	listRetries     int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient creates a client rooted at baseURL
func NewClient(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL %q: %v", domain.ErrConfigInvalid, baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: base URL %q must be http or https", domain.ErrConfigInvalid, baseURL)
	}

	c := &Client{
		base:            base,
		httpc:           opts.HTTPClient,
		listRetries:     opts.ListRetries,
		initialInterval: opts.InitialInterval,
		maxInterval:     opts.MaxInterval,
	}
	if c.httpc == nil {
		// No overall timeout: file downloads may legitimately run for
		// a long time. Dial and header timeouts still bound stalls.
		c.httpc = &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 15 * time.Second}).DialContext,
				ResponseHeaderTimeout: defaultRequestTimeout,
				MaxIdleConnsPerHost:   16,
			},
		}
	}
	if c.listRetries <= 0 {
		c.listRetries = defaultListRetries
	}
	if c.initialInterval <= 0 {
		c.initialInterval = defaultInitialInterval
	}
	if c.maxInterval <= 0 {
		c.maxInterval = defaultMaxInterval
	}
	return c, nil
}

// urlFor builds the request URL for a relative path, escaping each
// segment individually
func (c *Client) urlFor(relPath string, dir bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(c.base.String(), "/"))
	if relPath != "" {
		for _, seg := range strings.Split(relPath, "/") {
			b.WriteByte('/')
			b.WriteString(url.PathEscape(seg))
		}
	}
	if dir {
		b.WriteByte('/')
	}
	return b.String()
}

// List fetches and parses the listing page for a directory. Transient
// failures are retried with exponential backoff up to the configured
// attempt bound; a 4xx is terminal immediately.
func (c *Client) List(ctx context.Context, dirPath string) ([]Entry, error) {
	reqURL := c.urlFor(dirPath, true)

	var entries []Entry
	op := func() error {
		var err error
		entries, err = c.fetchListing(ctx, reqURL)
		if err != nil && !errors.Is(err, domain.ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.newBackOff(), uint64(c.listRetries)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrUnreachable, dirPath, err)
	}
	return entries, nil
}

func (c *Client) fetchListing(ctx context.Context, reqURL string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: reqURL}
	}

	entries, err := ParseListing(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing listing %s: %v", domain.ErrTransient, reqURL, err)
	}
	return entries, nil
}

// File is an open download stream. The caller owns Body.
type File struct {
	Body io.ReadCloser

	// Size is the Content-Length, domain.SizeUnknown when absent
	Size int64

	// LastModified from the response header, zero when absent
	LastModified time.Time
}

// Fetch opens a streaming GET for a file body. When ifModifiedSince is
// non-zero it is sent as a conditional header; a 304 answer returns
// domain.ErrNotModified.
func (c *Client) Fetch(ctx context.Context, filePath string, ifModifiedSince time.Time) (*File, error) {
	reqURL := c.urlFor(filePath, false)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if !ifModifiedSince.IsZero() {
		req.Header.Set("If-Modified-Since", ifModifiedSince.UTC().Format(http.TimeFormat))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		f := &File{Body: resp.Body, Size: resp.ContentLength}
		if f.Size < 0 {
			f.Size = domain.SizeUnknown
		}
		if lm := resp.Header.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				f.LastModified = t
			}
		}
		return f, nil

	case resp.StatusCode == http.StatusNotModified:
		resp.Body.Close()
		return nil, domain.ErrNotModified

	default:
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, URL: reqURL}
	}
}

// NewBackOff exposes the client's backoff settings for callers that
// run their own retry loops (the transfer pipeline).
func (c *Client) NewBackOff() backoff.BackOff {
	return c.newBackOff()
}

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	b.MaxElapsedTime = 0
	return b
}

// classifyTransportError maps connection-level failures to the domain
// taxonomy. Context cancellation passes through untouched so callers
// can distinguish shutdown from remote flakiness.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransient, err)
}
