package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessCode is a single-use code delivered to a user when a codes-method
// request is dispatched. A code binds to at most one grant.
type AccessCode struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PartnerID uuid.UUID  `gorm:"column:partner_id;type:uuid;not null;uniqueIndex:ux_access_codes_partner_code,priority:1"`
	Code      string     `gorm:"column:code;not null;uniqueIndex:ux_access_codes_partner_code,priority:2"`
	GrantID   *uuid.UUID `gorm:"column:grant_id;type:uuid;uniqueIndex"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
