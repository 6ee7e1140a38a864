package dlsite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/devraulu/rjmeta/pkg/config"
)

// ErrNotFound reports that the site has no work at the requested URL.
var ErrNotFound = errors.New("dlsite: work not found")

// Client is the process-wide site client. It is stateless apart from
// its configuration and safe for concurrent use.
type Client struct {
	http      *http.Client
	base      string
	userAgent string
	locale    string
	perPage   int
	cookies   map[string]string
}

func NewClient(cfg *config.Config) *Client {
	base := strings.TrimSuffix(cfg.Site.BaseURL, "/")
	if base == "" {
		base = siteURL
	}
	return &Client{
		http:      &http.Client{Timeout: cfg.Site.GetTimeout()},
		base:      base,
		userAgent: cfg.Site.UserAgent,
		locale:    cfg.Site.Locale,
		perPage:   cfg.Search.MaxResults,
		cookies:   cfg.Site.Cookies,
	}
}

func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// HTTPClient exposes the underlying client so collaborators such as the
// image cache share its timeout and transport.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// FetchWork retrieves and parses one work page. The configured locale
// is applied to the request; the returned listing's Link stays neutral.
func (c *Client) FetchWork(ctx context.Context, rawURL string) (*Listing, error) {
	body, err := c.getHTML(ctx, withLocale(rawURL, c.locale))
	if err != nil {
		return nil, err
	}
	return ParseWork(bytes.NewReader(body), rawURL)
}

func (c *Client) FetchWorkByCode(ctx context.Context, code string) (*Listing, error) {
	return c.FetchWork(ctx, workURL(c.base, code))
}

// Search runs one keyword search and returns the parsed candidates.
// No results is an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	u := searchURL(c.base, query, c.perPage, c.locale)
	body, err := c.getHTML(ctx, u)
	if err != nil {
		return nil, err
	}
	return ParseSearchResults(bytes.NewReader(body), u)
}

func (c *Client) getHTML(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Add("Accept", "text/html")
	req.Header.Add("User-Agent", c.userAgent)
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}

	if !validateHTMLContentTypeHeader(resp, "text/html") {
		return nil, fmt.Errorf("unexpected content type %q for %s", resp.Header.Get("Content-Type"), url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if !validateBodyContentType(body, "text/html") {
		return nil, fmt.Errorf("response body for %s is not html", url)
	}

	return body, nil
}

func validateHTMLContentTypeHeader(resp *http.Response, contentType string) bool {
	header := resp.Header.Get("Content-Type")

	return strings.Contains(strings.ToLower(header), contentType)
}

func validateBodyContentType(body []byte, contentType string) bool {
	return strings.HasPrefix(http.DetectContentType(body), contentType)
}
