// Package prismic is a minimal read-only client for a Prismic-style
// headless content API.
package prismic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"blog/pkg/models"
)

const defaultTimeout = 5 * time.Second

type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiInfo struct {
	Refs []Ref `json:"refs"`
}

type Client struct {
	endpoint string
	hc       *http.Client
}

// New returns a client for the API rooted at endpoint,
// e.g. "https://my-repo.cdn.prismic.io/api/v2".
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		hc:       &http.Client{Timeout: timeout},
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// MasterRef returns the ref of the currently published content release.
func (c *Client) MasterRef(ctx context.Context) (string, error) {
	var info apiInfo
	if err := c.getJSON(ctx, c.endpoint, &info); err != nil {
		return "", err
	}

	for _, r := range info.Refs {
		if r.IsMasterRef {
			return r.Ref, nil
		}
	}

	return "", ErrNoMasterRef
}

// ByType queries the first page of documents of the given type.
func (c *Client) ByType(ctx context.Context, docType string, pageSize int) (models.PostPagination, error) {
	ref, err := c.MasterRef(ctx)
	if err != nil {
		return models.PostPagination{}, fmt.Errorf("resolving master ref: %w", err)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return models.PostPagination{}, err
	}
	u = u.JoinPath("documents", "search")

	values := u.Query()
	values.Set("ref", ref)
	values.Set("q", fmt.Sprintf(`[[at(document.type,"%s")]]`, docType))
	values.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = values.Encode()

	var page models.PostPagination
	if err := c.getJSON(ctx, u.String(), &page); err != nil {
		return models.PostPagination{}, err
	}

	log.Debugf("[prismic] %s: page %d/%d, %d results", docType, page.Page, page.TotalPages, len(page.Results))
	return page, nil
}

// Page fetches a page by the URL the content service handed out as next_page.
func (c *Client) Page(ctx context.Context, pageURL string) (models.PostPagination, error) {
	if pageURL == "" {
		return models.PostPagination{}, ErrEmptyURL
	}

	var page models.PostPagination
	if err := c.getJSON(ctx, pageURL, &page); err != nil {
		return models.PostPagination{}, err
	}

	return page, nil
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("error creating request to content service: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("error calling content service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: target, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return nil
}
