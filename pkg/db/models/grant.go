package models

import (
	"time"

	"github.com/google/uuid"
)

// Grant records authorized access for a user to one partner, or to every
// bundle partner at once. Fields referenced by the validity predicate are
// nullable because upstream data deletion can hollow out a grant without
// deleting the row.
type Grant struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	AuthorizerID      *uuid.UUID `gorm:"column:authorizer_id;type:uuid"`
	CollectionID      *uuid.UUID `gorm:"column:collection_id;type:uuid"`
	Partners          []Partner  `gorm:"many2many:grant_partners"`
	DateAuthorized    *time.Time `gorm:"column:date_authorized"`
	DateExpires       *time.Time `gorm:"column:date_expires"`
	ReminderEmailSent bool       `gorm:"column:reminder_email_sent;not null;default:false"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// GrantPartner is the grant_partners join row. Declared so repositories can
// query the join table directly.
type GrantPartner struct {
	GrantID   uuid.UUID `gorm:"column:grant_id;type:uuid;primaryKey"`
	PartnerID uuid.UUID `gorm:"column:partner_id;type:uuid;primaryKey"`
}

// TableName pins the join table name shared with the many2many mapping.
func (GrantPartner) TableName() string {
	return "grant_partners"
}

// IsValid is the single source of truth for whether a grant currently
// confers access. now is truncated to a date boundary by the caller's clock.
func (g Grant) IsValid(now time.Time) bool {
	today := now.Truncate(24 * time.Hour)
	if g.UserID == nil || g.AuthorizerID == nil || g.DateAuthorized == nil {
		return false
	}
	if g.DateAuthorized.After(now) {
		return false
	}
	if g.DateExpires != nil && g.DateExpires.Before(today) {
		return false
	}
	return true
}
