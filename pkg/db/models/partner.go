package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/accesshub/accesshub-backend/pkg/enums"
)

// Partner is a publisher whose resources users can request access to.
type Partner struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string              `gorm:"column:name;not null;uniqueIndex"`
	Status             enums.PartnerStatus `gorm:"column:status;type:partner_status_enum;not null;default:'not_available'"`
	AuthMethod         enums.AuthMethod    `gorm:"column:auth_method;type:auth_method_enum;not null;default:'email'"`
	CoordinatorID      *uuid.UUID          `gorm:"column:coordinator_id;type:uuid"`
	AccountsAvailable  *int                `gorm:"column:accounts_available"`
	AccountLengthDays  *int                `gorm:"column:account_length_days"`
	RequestedDuration  bool                `gorm:"column:requested_access_duration;not null;default:false"`
	SpecificCollection bool                `gorm:"column:specific_collection;not null;default:false"`
	RenewalsAvailable  bool                `gorm:"column:renewals_available;not null;default:true"`
	TargetURL          *string             `gorm:"column:target_url"`
	Languages          pq.StringArray      `gorm:"column:languages;type:text[]"`
	Tags               pq.StringArray      `gorm:"column:tags;type:text[]"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// HasUnlimitedAccounts reports whether the partner imposes no account cap.
func (p Partner) HasUnlimitedAccounts() bool {
	return p.AccountsAvailable == nil
}
