package partners

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/accesshub/accesshub-backend/internal/capacity"
	"github.com/accesshub/accesshub-backend/internal/grants"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages partner configuration, collections, and code pools.
type Service interface {
	Create(ctx context.Context, input CreatePartnerInput) (*PartnerDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdatePartnerInput) (*PartnerDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PartnerDTO, error)
	List(ctx context.Context, params pagination.Params) (*PartnerListDTO, error)
	AddCollection(ctx context.Context, partnerID uuid.UUID, input CreateCollectionInput) (*CollectionDTO, error)
	DeleteCollection(ctx context.Context, partnerID, collectionID uuid.UUID) error
	UploadAccessCodes(ctx context.Context, partnerID uuid.UUID, codes []string) (*UploadCodesResult, error)
	BackfillExpiry(ctx context.Context, partnerID uuid.UUID) (int, error)
}

type service struct {
	db         *gorm.DB
	tx         txRunner
	accountant *capacity.Accountant
	engine     *grants.Engine
}

// ServiceParams bundles the dependencies for the partner service.
type ServiceParams struct {
	DB *gorm.DB
	Tx txRunner
}

// NewService builds the partner management service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database connection required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		db:         params.DB,
		tx:         params.Tx,
		accountant: capacity.NewAccountant(),
		engine:     grants.NewEngine(),
	}, nil
}

func (s *service) Create(ctx context.Context, input CreatePartnerInput) (*PartnerDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner name required")
	}
	if !input.AuthMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid auth method")
	}
	status := input.Status
	if status == "" {
		status = enums.PartnerStatusNotAvailable
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid partner status")
	}
	if input.AccountsAvailable != nil && *input.AccountsAvailable < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accounts_available must not be negative")
	}
	if input.AccountLengthDays != nil && *input.AccountLengthDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account_length_days must be positive")
	}

	renewals := true
	if input.RenewalsAvailable != nil {
		renewals = *input.RenewalsAvailable
	}
	partner := &models.Partner{
		Name:              name,
		Status:            status,
		AuthMethod:        input.AuthMethod,
		CoordinatorID:     input.CoordinatorID,
		AccountsAvailable: input.AccountsAvailable,
		AccountLengthDays: input.AccountLengthDays,
		RequestedDuration: input.RequestedDuration,
		RenewalsAvailable: renewals,
		TargetURL:         input.TargetURL,
		Languages:         pq.StringArray(input.Languages),
		Tags:              pq.StringArray(input.Tags),
	}
	if err := NewRepository(s.db).Create(ctx, partner); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create partner")
	}
	dto := fromModel(*partner, nil, nil)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePartnerInput) (*PartnerDTO, error) {
	var dto *PartnerDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		partner, err := s.loadPartner(ctx, repo, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Status != nil {
			if !input.Status.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid partner status")
			}
			updates["status"] = *input.Status
		}
		if input.AuthMethod != nil {
			if !input.AuthMethod.IsValid() {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid auth method")
			}
			updates["auth_method"] = *input.AuthMethod
		}
		if input.CoordinatorID != nil {
			updates["coordinator_id"] = *input.CoordinatorID
		}
		if input.ClearAccountsCap {
			updates["accounts_available"] = nil
		} else if input.AccountsAvailable != nil {
			if *input.AccountsAvailable < 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "accounts_available must not be negative")
			}
			updates["accounts_available"] = *input.AccountsAvailable
		}
		if input.AccountLengthDays != nil {
			if *input.AccountLengthDays <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "account_length_days must be positive")
			}
			updates["account_length_days"] = *input.AccountLengthDays
		}
		if input.RequestedDuration != nil {
			updates["requested_access_duration"] = *input.RequestedDuration
		}
		if input.SpecificCollection != nil {
			if *input.SpecificCollection {
				count, err := repo.CountCollections(ctx, id)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count collections")
				}
				if count == 0 {
					return pkgerrors.New(pkgerrors.CodeValidation, "specific_collection requires at least one collection")
				}
			}
			updates["specific_collection"] = *input.SpecificCollection
		}
		if input.RenewalsAvailable != nil {
			updates["renewals_available"] = *input.RenewalsAvailable
		}
		if input.TargetURL != nil {
			updates["target_url"] = *input.TargetURL
		}

		if len(updates) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no updates provided")
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update partner")
		}

		partner, err = s.loadPartner(ctx, repo, id)
		if err != nil {
			return err
		}
		mapped := fromModel(*partner, nil, nil)
		dto = &mapped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PartnerDTO, error) {
	repo := NewRepository(s.db)
	partner, err := s.loadPartner(ctx, repo, id)
	if err != nil {
		return nil, err
	}

	collections, err := repo.FindCollections(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collections")
	}
	remaining, err := s.accountant.Remaining(ctx, s.db, partner, nil, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	dto := fromModel(*partner, &remaining, collections)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*PartnerListDTO, error) {
	repo := NewRepository(s.db)
	partners, nextCursor, err := repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list partners")
	}

	now := time.Now().UTC()
	items := make([]PartnerDTO, 0, len(partners))
	for i := range partners {
		partner := partners[i]
		remaining, err := s.accountant.Remaining(ctx, s.db, &partner, nil, now)
		if err != nil {
			// A consistency failure on one partner must not hide the rest.
			items = append(items, fromModel(partner, nil, nil))
			continue
		}
		items = append(items, fromModel(partner, &remaining, nil))
	}
	return &PartnerListDTO{Items: items, NextCursor: nextCursor}, nil
}

func (s *service) AddCollection(ctx context.Context, partnerID uuid.UUID, input CreateCollectionInput) (*CollectionDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collection name required")
	}
	if !input.AuthMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid auth method")
	}
	if input.AccountsAvailable != nil && *input.AccountsAvailable < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accounts_available must not be negative")
	}

	var dto *CollectionDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		if _, err := s.loadPartner(ctx, repo, partnerID); err != nil {
			return err
		}

		collection := &models.Collection{
			PartnerID:         partnerID,
			Name:              name,
			AuthMethod:        input.AuthMethod,
			AccountsAvailable: input.AccountsAvailable,
			TargetURL:         input.TargetURL,
		}
		if err := repo.CreateCollection(ctx, collection); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create collection")
		}
		mapped := collectionFromModel(*collection)
		dto = &mapped
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (s *service) DeleteCollection(ctx context.Context, partnerID, collectionID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		collection, err := repo.FindCollection(ctx, collectionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
		}
		if collection.PartnerID != partnerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "collection does not belong to partner")
		}

		if err := repo.DeleteCollection(ctx, collectionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete collection")
		}

		// The specific_collection flag cannot outlive the last collection.
		count, err := repo.CountCollections(ctx, partnerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count collections")
		}
		if count == 0 {
			if err := repo.Update(ctx, partnerID, map[string]any{"specific_collection": false}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear specific_collection")
			}
		}
		return nil
	})
}

func (s *service) UploadAccessCodes(ctx context.Context, partnerID uuid.UUID, codes []string) (*UploadCodesResult, error) {
	cleaned := make([]string, 0, len(codes))
	seen := map[string]bool{}
	for _, code := range codes {
		trimmed := strings.TrimSpace(code)
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		cleaned = append(cleaned, trimmed)
	}
	if len(cleaned) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no access codes provided")
	}

	var result *UploadCodesResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		partner, err := s.loadPartner(ctx, repo, partnerID)
		if err != nil {
			return err
		}
		if partner.AuthMethod != enums.AuthMethodCodes {
			return pkgerrors.New(pkgerrors.CodeValidation, "partner does not deliver access by codes")
		}

		added, err := repo.InsertAccessCodes(ctx, partnerID, cleaned)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert access codes")
		}
		result = &UploadCodesResult{Added: added, Skipped: len(cleaned) - added}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) BackfillExpiry(ctx context.Context, partnerID uuid.UUID) (int, error) {
	updated := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.engine.Backfill(ctx, tx, partnerID)
		if err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (s *service) loadPartner(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Partner, error) {
	partner, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}
	return partner, nil
}
