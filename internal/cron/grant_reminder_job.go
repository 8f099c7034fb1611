package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/accesshub/accesshub-backend/internal/grants"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/outbox"
	"github.com/accesshub/accesshub-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultReminderLeadDays = 14

type reminderEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// GrantReminderJobParams configure the grant expiry reminder job.
type GrantReminderJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Outbox   reminderEmitter
	LeadDays int
}

// NewGrantReminderJob emits a grant_expiring_soon event for every valid
// grant whose expiry falls inside the lead window. Each grant is reminded
// at most once.
func NewGrantReminderJob(params GrantReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	leadDays := params.LeadDays
	if leadDays <= 0 {
		leadDays = defaultReminderLeadDays
	}
	return &grantReminderJob{
		logg:     params.Logger,
		db:       params.DB,
		outbox:   params.Outbox,
		leadDays: leadDays,
		now:      time.Now,
	}, nil
}

type grantReminderJob struct {
	logg     *logger.Logger
	db       txRunner
	outbox   reminderEmitter
	leadDays int
	now      func() time.Time
}

func (j *grantReminderJob) Name() string { return "grant-reminder" }

func (j *grantReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	windowEnd := now.AddDate(0, 0, j.leadDays)

	reminded := 0
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := grants.NewRepository(tx)
		expiring, err := repo.FindExpiringBetween(ctx, now, windowEnd)
		if err != nil {
			return err
		}
		for _, grant := range expiring {
			if grant.UserID == nil || grant.DateExpires == nil {
				continue
			}
			partnerID := uuid.Nil
			if len(grant.Partners) > 0 {
				partnerID = grant.Partners[0].ID
			}
			daysLeft := int(grant.DateExpires.Sub(now).Hours() / 24)
			event := outbox.DomainEvent{
				EventType:     enums.EventGrantExpiringSoon,
				AggregateType: enums.AggregateGrant,
				AggregateID:   grant.ID,
				Data: payloads.GrantExpiringSoonEvent{
					GrantID:             grant.ID,
					UserID:              *grant.UserID,
					PartnerID:           partnerID,
					DateExpires:         *grant.DateExpires,
					DaysUntilExpiration: daysLeft,
				},
				Version: 1,
			}
			if err := j.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
				return err
			}
			if err := repo.MarkReminderSent(ctx, grant.ID); err != nil {
				return err
			}
			reminded++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("grant reminder: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"lead_days":  j.leadDays,
		"window_end": windowEnd,
		"reminded":   reminded,
	})
	j.logg.Info(logCtx, "grant expiry reminders queued")
	return nil
}
