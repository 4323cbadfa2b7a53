package blog

import "errors"

var (
	ErrInvalidDate   = errors.New("invalid publication date")
	ErrNoMorePages   = errors.New("no more pages")
	ErrNotPrepared   = errors.New("first page has not been prepared")
	ErrNilSource     = errors.New("nil content source")
	ErrNilFormatter  = errors.New("nil date formatter")
	ErrNilNormalizer = errors.New("nil normalizer")
)
