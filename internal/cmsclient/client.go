// Package cmsclient reads published content from the CMS REST API.
package cmsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"folio/internal/models"
	"folio/internal/query"
)

// HomeSlug is the slug of the page whose layout is the homepage.
const HomeSlug = "home"

// ErrUpstream is returned when the CMS answers with a non-2xx status.
var ErrUpstream = errors.New("cms request failed")

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches pages and posts from the CMS.
type Client struct {
	base string
	http Doer
}

// New creates a client for the CMS at baseURL.
func New(baseURL string, doer Doer) *Client {
	return &Client{base: strings.TrimRight(baseURL, "/"), http: doer}
}

// HomePage returns the page with slug "home", or nil if there is none.
func (c *Client) HomePage(ctx context.Context) (*models.Page, error) {
	v := url.Values{}
	v.Set("where[slug][equals]", HomeSlug)
	v.Set("limit", "1")

	var res query.Result[models.Page]
	if err := c.get(ctx, "/api/pages", v, &res); err != nil {
		return nil, fmt.Errorf("fetch home page: %w", err)
	}
	if len(res.Docs) == 0 {
		return nil, nil
	}
	return &res.Docs[0], nil
}

// FeaturedPosts returns up to limit featured posts, newest first.
func (c *Client) FeaturedPosts(ctx context.Context, limit int) ([]models.Post, error) {
	v := url.Values{}
	v.Set("where[featured][equals]", "true")
	v.Set("limit", strconv.Itoa(limit))
	v.Set("sort", "-date")

	var res query.Result[models.Post]
	if err := c.get(ctx, "/api/posts", v, &res); err != nil {
		return nil, fmt.Errorf("fetch featured posts: %w", err)
	}
	if res.Docs == nil {
		res.Docs = []models.Post{}
	}
	return res.Docs, nil
}

// PostBySlug returns the post with the given slug, or nil if none matches.
func (c *Client) PostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	v := url.Values{}
	v.Set("where[slug][equals]", slug)
	v.Set("limit", "1")

	var res query.Result[models.Post]
	if err := c.get(ctx, "/api/posts", v, &res); err != nil {
		return nil, fmt.Errorf("fetch post %q: %w", slug, err)
	}
	if len(res.Docs) == 0 {
		return nil, nil
	}
	return &res.Docs[0], nil
}

func (c *Client) get(ctx context.Context, path string, v url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+v.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
