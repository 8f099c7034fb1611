package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/accesshub/accesshub-backend/pkg/enums"
)

// Collection is an optional sub-unit of a partner with its own capacity and
// delivery method.
type Collection struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PartnerID         uuid.UUID        `gorm:"column:partner_id;type:uuid;not null;index"`
	Name              string           `gorm:"column:name;not null"`
	AuthMethod        enums.AuthMethod `gorm:"column:auth_method;type:auth_method_enum;not null;default:'email'"`
	AccountsAvailable *int             `gorm:"column:accounts_available"`
	TargetURL         *string          `gorm:"column:target_url"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
