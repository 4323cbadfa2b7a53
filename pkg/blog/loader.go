// Package blog implements the post list of the blog index: loading the first
// page, fetching further pages on request and normalizing posts for display.
package blog

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"blog/pkg/models"
)

const (
	DefaultPageSize = 20
	DefaultDocType  = "posts"
)

// Source is the content service.
type Source interface {
	ByType(ctx context.Context, docType string, pageSize int) (models.PostPagination, error)
	Page(ctx context.Context, url string) (models.PostPagination, error)
}

// Page is a batch of normalized posts plus the cursor to the next batch.
// An empty Cursor means there is nothing more to fetch.
type Page struct {
	Cursor string               `json:"next_page"`
	Posts  []models.DisplayPost `json:"results"`
}

func (p Page) HasMore() bool {
	return p.Cursor != ""
}

// Loader prepares the first page of the index.
type Loader struct {
	src      Source
	norm     *Normalizer
	docType  string
	pageSize int
}

// NewLoader returns a Loader. Empty docType and non-positive pageSize fall
// back to DefaultDocType and DefaultPageSize.
func NewLoader(src Source, norm *Normalizer, docType string, pageSize int) (*Loader, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if norm == nil {
		return nil, ErrNilNormalizer
	}
	if docType == "" {
		docType = DefaultDocType
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Loader{src: src, norm: norm, docType: docType, pageSize: pageSize}, nil
}

// Load requests the first page from the source. Errors are returned as is,
// there is no retry.
func (l *Loader) Load(ctx context.Context) (Page, error) {
	resp, err := l.src.ByType(ctx, l.docType, l.pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("loading %s: %w", l.docType, err)
	}

	posts, err := l.norm.NormalizeAll(resp.Results)
	if err != nil {
		return Page{}, err
	}

	log.Debugf("[loader] loaded %d %s, more: %v", len(posts), l.docType, resp.NextPage != "")
	return Page{Cursor: resp.NextPage, Posts: posts}, nil
}

// Fetcher follows pagination cursors.
type Fetcher struct {
	src  Source
	norm *Normalizer
}

func NewFetcher(src Source, norm *Normalizer) (*Fetcher, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if norm == nil {
		return nil, ErrNilNormalizer
	}

	return &Fetcher{src: src, norm: norm}, nil
}

// Next requests the page behind cursor. An empty cursor returns
// ErrNoMorePages without contacting the source.
func (f *Fetcher) Next(ctx context.Context, cursor string) (Page, error) {
	if cursor == "" {
		return Page{}, ErrNoMorePages
	}

	resp, err := f.src.Page(ctx, cursor)
	if err != nil {
		return Page{}, err
	}

	posts, err := f.norm.NormalizeAll(resp.Results)
	if err != nil {
		return Page{}, err
	}

	return Page{Cursor: resp.NextPage, Posts: posts}, nil
}
