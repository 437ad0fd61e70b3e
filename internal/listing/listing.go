// Package listing queries community feeds of the listing service and reduces
// them to downloadable wallpaper candidates.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL         = "http://reddit.com"
	DefaultTimeout         = 10 * time.Second
	DefaultDownloadTimeout = 30 * time.Second
	DefaultLimit           = 10

	// DefaultMaxDownloadSize caps a single image download.
	DefaultMaxDownloadSize = 128 << 20
)

// BrowserHeaders are sent with every request; the listing service rejects
// default Go client identifiers.
var BrowserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Pragma":                    "no-cache",
	"Cache-Control":             "no-cache",
}

// Listing is the subset of the listing response we use.
type Listing struct {
	Data struct {
		Children []Child `json:"children"`
	} `json:"data"`
}

// Child wraps a single post.
type Child struct {
	Data Post `json:"data"`
}

// Post is a single feed entry.
type Post struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Permalink string   `json:"permalink"`
	Preview   *Preview `json:"preview,omitempty"`
}

// Preview lists the preview renditions of a post.
type Preview struct {
	Images []PreviewImage `json:"images"`
}

// PreviewImage is one preview rendition; Source carries the native size.
type PreviewImage struct {
	Source struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"source"`
}

// FetchError reports a failed listing query or image download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config configures a Client.
type Config struct {
	// BaseURL is the scheme and host of the listing service.
	BaseURL string

	// Timeout bounds a listing query.
	Timeout time.Duration

	// DownloadTimeout bounds a single image download.
	DownloadTimeout time.Duration

	// Headers are sent with every request. Nil means BrowserHeaders.
	Headers map[string]string

	// MaxDownloadSize is the largest accepted image body in bytes.
	MaxDownloadSize int64
}

// DefaultConfig returns the stock client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         DefaultTimeout,
		DownloadTimeout: DefaultDownloadTimeout,
		Headers:         BrowserHeaders,
		MaxDownloadSize: DefaultMaxDownloadSize,
	}
}

// Client talks to the listing service.
type Client struct {
	baseURL  string
	headers  map[string]string
	client   *http.Client
	download *http.Client
	maxSize  int64
}

// NewClient creates a client. Zero values in cfg fall back to DefaultConfig.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = def.DownloadTimeout
	}
	if cfg.Headers == nil {
		cfg.Headers = def.Headers
	}
	if cfg.MaxDownloadSize <= 0 {
		cfg.MaxDownloadSize = def.MaxDownloadSize
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		headers:  cfg.Headers,
		client:   &http.Client{Timeout: cfg.Timeout},
		download: &http.Client{Timeout: cfg.DownloadTimeout},
		maxSize:  cfg.MaxDownloadSize,
	}
}

// QueryURL returns the listing URL for q.
func (c *Client) QueryURL(q Query) string {
	v := url.Values{}
	v.Set("t", string(q.Timeframe))
	v.Set("limit", strconv.Itoa(q.Limit))
	return fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, url.PathEscape(q.Community), q.Sort, v.Encode())
}

// Query fetches one page of the community feed. There is no retry.
func (c *Client) Query(ctx context.Context, q Query) (*Listing, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	u := c.QueryURL(q)
	resp, err := c.get(ctx, c.client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result Listing
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("failed to decode listing: %w", err)}
	}
	return &result, nil
}

// Download returns the body of url, bounded by the download timeout.
func (c *Client) Download(ctx context.Context, u string) ([]byte, error) {
	resp, err := c.get(ctx, c.download, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if int64(len(data)) > c.maxSize {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("image exceeds %d bytes", c.maxSize)}
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, client *http.Client, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
