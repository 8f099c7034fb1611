package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/accesshub/accesshub-backend/internal/capacity"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// WaitlistReconcileJobParams configure the waitlist reconciliation job.
type WaitlistReconcileJobParams struct {
	Logger *logger.Logger
	DB     txRunner
}

// NewWaitlistReconcileJob flips capped waitlisted partners back to available
// once expired grants have freed up account slots. Uncapped partners are left
// alone because their waitlist status can only be set by hand.
func NewWaitlistReconcileJob(params WaitlistReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	return &waitlistReconcileJob{
		logg:       params.Logger,
		db:         params.DB,
		accountant: capacity.NewAccountant(),
		now:        time.Now,
	}, nil
}

type waitlistReconcileJob struct {
	logg       *logger.Logger
	db         txRunner
	accountant *capacity.Accountant
	now        func() time.Time
}

func (j *waitlistReconcileJob) Name() string { return "waitlist-reconcile" }

func (j *waitlistReconcileJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	restored := 0
	var partnerErrs error
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var waitlisted []models.Partner
		if err := tx.WithContext(ctx).
			Where("status = ?", enums.PartnerStatusWaitlist).
			Where("accounts_available IS NOT NULL").
			Find(&waitlisted).Error; err != nil {
			return err
		}

		for i := range waitlisted {
			partner := waitlisted[i]
			remaining, err := j.accountant.Remaining(ctx, tx, &partner, nil, now)
			if err != nil {
				partnerErrs = multierr.Append(partnerErrs, fmt.Errorf("partner %s: %w", partner.ID, err))
				continue
			}
			if !remaining.CanAdmit() {
				continue
			}
			if err := tx.WithContext(ctx).
				Model(&models.Partner{}).
				Where("id = ?", partner.ID).
				Where("status = ?", enums.PartnerStatusWaitlist).
				UpdateColumn("status", enums.PartnerStatusAvailable).Error; err != nil {
				return err
			}
			restored++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("waitlist reconcile: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"restored": restored,
	})
	j.logg.Info(logCtx, "waitlist reconciliation complete")
	return partnerErrs
}
