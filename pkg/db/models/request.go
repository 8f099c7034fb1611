package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/accesshub/accesshub-backend/pkg/enums"
)

// Request is a user's application for access to a partner's resources.
type Request struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequesterID    uuid.UUID             `gorm:"column:requester_id;type:uuid;not null;index"`
	PartnerID      uuid.UUID             `gorm:"column:partner_id;type:uuid;not null;index"`
	CollectionID   *uuid.UUID            `gorm:"column:collection_id;type:uuid"`
	Status         enums.RequestStatus   `gorm:"column:status;type:request_status_enum;not null;default:'pending'"`
	Rationale      *string               `gorm:"column:rationale"`
	Comments       *string               `gorm:"column:comments"`
	AccountEmail   *string               `gorm:"column:account_email"`
	DurationMonths *enums.AccessDuration `gorm:"column:requested_duration_months"`
	ParentID       *uuid.UUID            `gorm:"column:parent_id;type:uuid"`
	SentByID       *uuid.UUID            `gorm:"column:sent_by_id;type:uuid"`
	Hidden         bool                  `gorm:"column:hidden;not null;default:false"`
	DateCreated    time.Time             `gorm:"column:date_created;autoCreateTime"`
	DateClosed     *time.Time            `gorm:"column:date_closed"`
	DaysOpen       *int                  `gorm:"column:days_open"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
