package api

import (
	"github.com/gofrs/uuid"

	"blog/pkg/models"
)

type SessionResponse struct {
	SessionID uuid.UUID            `json:"session_id"`
	State     string               `json:"state"`
	NextPage  string               `json:"next_page"`
	Results   []models.DisplayPost `json:"results"`
	Error     string               `json:"error,omitempty"`
}
