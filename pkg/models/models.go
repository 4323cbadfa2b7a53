package models

import "time"

// RawPost is a post document as returned by the content service.
type RawPost struct {
	UID                  string   `json:"uid"`
	FirstPublicationDate *string  `json:"first_publication_date"`
	Data                 PostData `json:"data"`
}

type PostData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
}

// PostPagination is one page of search results. NextPage is empty when the
// content service reports no further pages.
type PostPagination struct {
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	NextPage   string    `json:"next_page"`
	Results    []RawPost `json:"results"`
}

// Post is a RawPost with a parsed publication date. A nil PublicationDate
// marks an unpublished document.
type Post struct {
	UID             string
	Title           string
	Subtitle        string
	Author          string
	PublicationDate *time.Time
}

type DisplayPost struct {
	UID             string `json:"uid"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	Author          string `json:"author"`
	PublicationDate string `json:"publication_date"`
}
