package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/accesshub/accesshub-backend/pkg/enums"
)

// RequestApprovedEvent is emitted when a reviewer approves a request.
type RequestApprovedEvent struct {
	RequestID    uuid.UUID  `json:"request_id"`
	RequesterID  uuid.UUID  `json:"requester_id"`
	PartnerID    uuid.UUID  `json:"partner_id"`
	CollectionID *uuid.UUID `json:"collection_id,omitempty"`
	GrantID      uuid.UUID  `json:"grant_id"`
}

// RequestRejectedEvent is emitted when a reviewer declines a request.
type RequestRejectedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	RequesterID uuid.UUID `json:"requester_id"`
	PartnerID   uuid.UUID `json:"partner_id"`
	Reason      string    `json:"reason,omitempty"`
}

// RequestWaitlistedEvent flags a submission against a waitlisted partner.
type RequestWaitlistedEvent struct {
	RequestID   uuid.UUID `json:"request_id"`
	RequesterID uuid.UUID `json:"requester_id"`
	PartnerID   uuid.UUID `json:"partner_id"`
}

// RequestSentEvent is emitted when access details are dispatched.
type RequestSentEvent struct {
	RequestID    uuid.UUID        `json:"request_id"`
	RequesterID  uuid.UUID        `json:"requester_id"`
	PartnerID    uuid.UUID        `json:"partner_id"`
	AuthMethod   enums.AuthMethod `json:"auth_method"`
	AccessCodeID *uuid.UUID       `json:"access_code_id,omitempty"`
}

// CapacityExhaustedEvent signals an approval consumed the partner's final
// account slot.
type CapacityExhaustedEvent struct {
	PartnerID    uuid.UUID  `json:"partner_id"`
	CollectionID *uuid.UUID `json:"collection_id,omitempty"`
}

// GrantIssuedEvent is emitted when a grant is created or refreshed.
type GrantIssuedEvent struct {
	GrantID     uuid.UUID   `json:"grant_id"`
	UserID      uuid.UUID   `json:"user_id"`
	PartnerIDs  []uuid.UUID `json:"partner_ids"`
	DateExpires *time.Time  `json:"date_expires,omitempty"`
	Renewal     bool        `json:"renewal"`
}

// GrantExpiringSoonEvent warns the holder that a grant is about to lapse.
type GrantExpiringSoonEvent struct {
	GrantID             uuid.UUID `json:"grant_id"`
	UserID              uuid.UUID `json:"user_id"`
	PartnerID           uuid.UUID `json:"partner_id"`
	DateExpires         time.Time `json:"date_expires"`
	DaysUntilExpiration int       `json:"days_until_expiration"`
}
