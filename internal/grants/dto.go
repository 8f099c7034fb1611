package grants

import (
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/google/uuid"
)

// PartnerSummary is the slim partner shape embedded in grant listings.
type PartnerSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// GrantDTO is the transport shape for a single grant.
type GrantDTO struct {
	ID             uuid.UUID        `json:"id"`
	Partners       []PartnerSummary `json:"partners"`
	CollectionID   *uuid.UUID       `json:"collection_id,omitempty"`
	DateAuthorized *time.Time       `json:"date_authorized,omitempty"`
	DateExpires    *time.Time       `json:"date_expires,omitempty"`
	Valid          bool             `json:"valid"`
}

// GrantListDTO wraps a page of grants with the next cursor.
type GrantListDTO struct {
	Items      []GrantDTO `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FromModel maps a grant row to its DTO, evaluating validity at now.
func FromModel(g models.Grant, now time.Time) GrantDTO {
	partners := make([]PartnerSummary, 0, len(g.Partners))
	for _, p := range g.Partners {
		partners = append(partners, PartnerSummary{ID: p.ID, Name: p.Name})
	}
	return GrantDTO{
		ID:             g.ID,
		Partners:       partners,
		CollectionID:   g.CollectionID,
		DateAuthorized: g.DateAuthorized,
		DateExpires:    g.DateExpires,
		Valid:          g.IsValid(now),
	}
}
