package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the production site root.
	DefaultBaseURL = "https://boylstonchess.org"

	userAgent    = "bcf-monitor/1.0 (+https://boylstonchess.org/events)"
	fetchTimeout = 20 * time.Second
	maxRetries   = 3
)

// NetworkError wraps a failed page fetch. A per-event fetch failure skips
// that event for the run and leaves its stored snapshot untouched.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Listing is one event as it appears on the events listing page.
type Listing struct {
	ID         string
	Name       string
	DateRaw    string
	DetailURL  string
	EntriesURL string
}

// Detail is the scraped content of an event detail page.
type Detail struct {
	Name    string
	DateRaw string
	Fields  map[string]string
}

// Scraper fetches and parses the site's listing, detail and entry-list
// pages. Transient fetch failures are retried with exponential backoff.
type Scraper struct {
	client  *http.Client
	baseURL string
}

// New creates a Scraper for the site rooted at baseURL (DefaultBaseURL when
// empty).
func New(baseURL string) *Scraper {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Scraper{
		client:  &http.Client{Timeout: fetchTimeout},
		baseURL: baseURL,
	}
}

// EventsURL returns the listing page URL.
func (s *Scraper) EventsURL() string {
	return s.baseURL + "/events"
}

// fetch GETs a URL with retries and returns the body.
func (s *Scraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, &NetworkError{URL: pageURL, Err: err}
	}
	return body, nil
}

// resolve joins a possibly relative href against the site base URL.
func (s *Scraper) resolve(href string) string {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
