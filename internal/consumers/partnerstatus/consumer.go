package partnerstatus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/outbox"
	"github.com/accesshub/accesshub-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const consumerName = "partnerstatus"

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer reacts to capacity_exhausted events by moving the affected
// partner onto the waitlist, so new submissions queue instead of racing for
// slots that no longer exist.
type Consumer struct {
	db      *gorm.DB
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds the partner status consumer.
func NewConsumer(db *gorm.DB, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{db: db, manager: manager, logg: logg}, nil
}

// Process handles one outbox envelope. Events other than capacity_exhausted
// are acknowledged without effect.
func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	if eventType != enums.EventCapacityExhausted {
		c.logg.Info(logCtx, "event not handled by partner status consumer")
		return nil
	}
	if envelope.EventID == "" {
		return fmt.Errorf("event id missing")
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return fmt.Errorf("parse event id: %w", err)
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	var payload payloads.CapacityExhaustedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return fmt.Errorf("decode payload: %w", err)
	}
	if payload.PartnerID == uuid.Nil {
		c.logg.Warn(logCtx, "capacity event without partner id")
		return nil
	}
	if payload.CollectionID != nil {
		// A single collection filling up does not close the whole partner.
		c.logg.Info(logCtx, "collection-scoped exhaustion; partner left as is")
		return nil
	}

	result := c.db.WithContext(ctx).
		Model(&models.Partner{}).
		Where("id = ?", payload.PartnerID).
		Where("status = ?", enums.PartnerStatusAvailable).
		UpdateColumn("status", enums.PartnerStatusWaitlist)
	if result.Error != nil {
		_ = c.manager.Delete(ctx, consumerName, eventID)
		return fmt.Errorf("waitlist partner: %w", result.Error)
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"partner_id":   payload.PartnerID,
		"rows_updated": result.RowsAffected,
	})
	c.logg.Info(logCtx, "partner moved to waitlist")
	return nil
}
