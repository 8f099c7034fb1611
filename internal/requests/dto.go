package requests

import (
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/google/uuid"
)

// SubmitInput is the payload for creating a new access request.
type SubmitInput struct {
	RequesterID    uuid.UUID
	PartnerID      uuid.UUID
	CollectionID   *uuid.UUID
	Rationale      *string
	AccountEmail   *string
	DurationMonths *enums.AccessDuration
}

// Actor identifies who is driving a transition.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// SetStatusInput carries a single status transition.
type SetStatusInput struct {
	RequestID uuid.UUID
	Status    enums.RequestStatus
	Comments  *string
	Actor     Actor
}

// BatchSetStatusInput transitions many requests at once.
type BatchSetStatusInput struct {
	RequestIDs []uuid.UUID
	Status     enums.RequestStatus
	Actor      Actor
}

// BatchResult reports the outcome for one request in a batch.
type BatchResult struct {
	RequestID uuid.UUID `json:"request_id"`
	Succeeded bool      `json:"succeeded"`
	ErrorCode string    `json:"error_code,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// RenewInput creates a renewal request off an approved or sent origin.
type RenewInput struct {
	OriginID       uuid.UUID
	Rationale      *string
	AccountEmail   *string
	DurationMonths *enums.AccessDuration
	Actor          Actor
}

// RequestDTO is the transport shape of a request.
type RequestDTO struct {
	ID             uuid.UUID             `json:"id"`
	RequesterID    uuid.UUID             `json:"requester_id"`
	PartnerID      uuid.UUID             `json:"partner_id"`
	CollectionID   *uuid.UUID            `json:"collection_id,omitempty"`
	Status         enums.RequestStatus   `json:"status"`
	Rationale      *string               `json:"rationale,omitempty"`
	Comments       *string               `json:"comments,omitempty"`
	AccountEmail   *string               `json:"account_email,omitempty"`
	DurationMonths *enums.AccessDuration `json:"duration_months,omitempty"`
	ParentID       *uuid.UUID            `json:"parent_id,omitempty"`
	SentByID       *uuid.UUID            `json:"sent_by_id,omitempty"`
	DateCreated    time.Time             `json:"date_created"`
	DateClosed     *time.Time            `json:"date_closed,omitempty"`
	DaysOpen       *int                  `json:"days_open,omitempty"`
}

// RequestListDTO wraps a page of requests with the next cursor.
type RequestListDTO struct {
	Items      []RequestDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// FromModel maps a request row to its DTO.
func FromModel(r models.Request) RequestDTO {
	return RequestDTO{
		ID:             r.ID,
		RequesterID:    r.RequesterID,
		PartnerID:      r.PartnerID,
		CollectionID:   r.CollectionID,
		Status:         r.Status,
		Rationale:      r.Rationale,
		Comments:       r.Comments,
		AccountEmail:   r.AccountEmail,
		DurationMonths: r.DurationMonths,
		ParentID:       r.ParentID,
		SentByID:       r.SentByID,
		DateCreated:    r.DateCreated,
		DateClosed:     r.DateClosed,
		DaysOpen:       r.DaysOpen,
	}
}
