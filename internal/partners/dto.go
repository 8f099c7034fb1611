package partners

import (
	"time"

	"github.com/accesshub/accesshub-backend/internal/capacity"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/google/uuid"
)

// CreatePartnerInput is the payload for registering a new partner.
type CreatePartnerInput struct {
	Name              string              `json:"name" validate:"required"`
	Status            enums.PartnerStatus `json:"status,omitempty"`
	AuthMethod        enums.AuthMethod    `json:"auth_method" validate:"required"`
	CoordinatorID     *uuid.UUID          `json:"coordinator_id,omitempty"`
	AccountsAvailable *int                `json:"accounts_available,omitempty"`
	AccountLengthDays *int                `json:"account_length_days,omitempty"`
	RequestedDuration bool                `json:"requested_access_duration"`
	RenewalsAvailable *bool               `json:"renewals_available,omitempty"`
	TargetURL         *string             `json:"target_url,omitempty"`
	Languages         []string            `json:"languages,omitempty"`
	Tags              []string            `json:"tags,omitempty"`
}

// UpdatePartnerInput carries partial partner updates. Nil means unchanged.
type UpdatePartnerInput struct {
	Status             *enums.PartnerStatus `json:"status,omitempty"`
	AuthMethod         *enums.AuthMethod    `json:"auth_method,omitempty"`
	CoordinatorID      *uuid.UUID           `json:"coordinator_id,omitempty"`
	AccountsAvailable  *int                 `json:"accounts_available,omitempty"`
	ClearAccountsCap   bool                 `json:"clear_accounts_cap,omitempty"`
	AccountLengthDays  *int                 `json:"account_length_days,omitempty"`
	RequestedDuration  *bool                `json:"requested_access_duration,omitempty"`
	SpecificCollection *bool                `json:"specific_collection,omitempty"`
	RenewalsAvailable  *bool                `json:"renewals_available,omitempty"`
	TargetURL          *string              `json:"target_url,omitempty"`
}

// CreateCollectionInput adds a collection under a partner.
type CreateCollectionInput struct {
	Name              string           `json:"name" validate:"required"`
	AuthMethod        enums.AuthMethod `json:"auth_method" validate:"required"`
	AccountsAvailable *int             `json:"accounts_available,omitempty"`
	TargetURL         *string          `json:"target_url,omitempty"`
}

// UploadCodesResult reports the outcome of an access code pool upload.
type UploadCodesResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// CollectionDTO is the transport shape of a collection.
type CollectionDTO struct {
	ID                uuid.UUID        `json:"id"`
	PartnerID         uuid.UUID        `json:"partner_id"`
	Name              string           `json:"name"`
	AuthMethod        enums.AuthMethod `json:"auth_method"`
	AccountsAvailable *int             `json:"accounts_available,omitempty"`
	TargetURL         *string          `json:"target_url,omitempty"`
}

// PartnerDTO is the transport shape of a partner, including the accountant's
// current answer for its default scope.
type PartnerDTO struct {
	ID                uuid.UUID           `json:"id"`
	Name              string              `json:"name"`
	Status            enums.PartnerStatus `json:"status"`
	AuthMethod        enums.AuthMethod    `json:"auth_method"`
	CoordinatorID     *uuid.UUID          `json:"coordinator_id,omitempty"`
	AccountsAvailable *int                `json:"accounts_available,omitempty"`
	AccountLengthDays *int                `json:"account_length_days,omitempty"`
	RequestedDuration bool                `json:"requested_access_duration"`
	SpecificCollection bool               `json:"specific_collection"`
	RenewalsAvailable bool                `json:"renewals_available"`
	TargetURL         *string             `json:"target_url,omitempty"`
	Languages         []string            `json:"languages,omitempty"`
	Tags              []string            `json:"tags,omitempty"`
	Remaining         *capacity.Remaining `json:"remaining,omitempty"`
	Collections       []CollectionDTO     `json:"collections,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

// PartnerListDTO wraps a page of partners with the next cursor.
type PartnerListDTO struct {
	Items      []PartnerDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func collectionFromModel(c models.Collection) CollectionDTO {
	return CollectionDTO{
		ID:                c.ID,
		PartnerID:         c.PartnerID,
		Name:              c.Name,
		AuthMethod:        c.AuthMethod,
		AccountsAvailable: c.AccountsAvailable,
		TargetURL:         c.TargetURL,
	}
}

func fromModel(p models.Partner, remaining *capacity.Remaining, collections []models.Collection) PartnerDTO {
	dto := PartnerDTO{
		ID:                 p.ID,
		Name:               p.Name,
		Status:             p.Status,
		AuthMethod:         p.AuthMethod,
		CoordinatorID:      p.CoordinatorID,
		AccountsAvailable:  p.AccountsAvailable,
		AccountLengthDays:  p.AccountLengthDays,
		RequestedDuration:  p.RequestedDuration,
		SpecificCollection: p.SpecificCollection,
		RenewalsAvailable:  p.RenewalsAvailable,
		TargetURL:          p.TargetURL,
		Languages:          p.Languages,
		Tags:               p.Tags,
		Remaining:          remaining,
		CreatedAt:          p.CreatedAt,
	}
	for _, collection := range collections {
		dto.Collections = append(dto.Collections, collectionFromModel(collection))
	}
	return dto
}
