package blog

import (
	"fmt"

	"blog/pkg/datefmt"
	"blog/pkg/models"
)

// Normalizer turns content-service documents into display posts.
type Normalizer struct {
	df *datefmt.Formatter
}

func NewNormalizer(f *datefmt.Formatter) (*Normalizer, error) {
	if f == nil {
		return nil, ErrNilFormatter
	}
	return &Normalizer{df: f}, nil
}

// ToPost parses the publication date of raw. A null or blank date yields a
// Post without PublicationDate; anything else must parse.
func ToPost(raw models.RawPost) (models.Post, error) {
	post := models.Post{
		UID:      raw.UID,
		Title:    raw.Data.Title,
		Subtitle: raw.Data.Subtitle,
		Author:   raw.Data.Author,
	}

	if raw.FirstPublicationDate == nil || *raw.FirstPublicationDate == "" {
		return post, nil
	}

	t, err := datefmt.Parse(*raw.FirstPublicationDate)
	if err != nil {
		return models.Post{}, fmt.Errorf("%w: post %q: %v", ErrInvalidDate, raw.UID, err)
	}
	post.PublicationDate = &t

	return post, nil
}

func (n *Normalizer) Display(p models.Post) models.DisplayPost {
	dp := models.DisplayPost{
		UID:      p.UID,
		Title:    p.Title,
		Subtitle: p.Subtitle,
		Author:   p.Author,
	}
	if p.PublicationDate != nil {
		dp.PublicationDate = n.df.Format(*p.PublicationDate)
	}

	return dp
}

func (n *Normalizer) Normalize(raw models.RawPost) (models.DisplayPost, error) {
	p, err := ToPost(raw)
	if err != nil {
		return models.DisplayPost{}, err
	}

	return n.Display(p), nil
}

// NormalizeAll normalizes raws in order. It fails on the first invalid post
// and returns no partial result.
func (n *Normalizer) NormalizeAll(raws []models.RawPost) ([]models.DisplayPost, error) {
	posts := make([]models.DisplayPost, 0, len(raws))
	for _, raw := range raws {
		dp, err := n.Normalize(raw)
		if err != nil {
			return nil, err
		}
		posts = append(posts, dp)
	}

	return posts, nil
}
