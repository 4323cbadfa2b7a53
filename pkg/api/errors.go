package api

import (
	"errors"
	"net/http"

	"blog/pkg/blog"
)

var ErrMissingDependency = errors.New("api: snapshot, store and fetcher are required")

const (
	msgUnavailable    = "Posts are not available right now"
	msgInternal       = "Internal Server Error"
	msgLoadMoreFailed = "Não foi possível carregar mais posts. Tente novamente."
)

// statusFor maps a LoadMore error to the response code of the JSON API.
// Anything not recognized is a content service failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, blog.ErrNoMorePages):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
