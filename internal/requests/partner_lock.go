package requests

import (
	"context"
	"hash/fnv"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// lockPartner serializes capacity reads and grant writes for one partner by
// taking a transaction-scoped advisory lock. Released automatically at
// commit/rollback. Under sqlite test databases this is a no-op since sqlite
// has a single writer.
func lockPartner(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(?)", partnerLockKey(partnerID)).Error
}

func partnerLockKey(partnerID uuid.UUID) int64 {
	h := fnv.New64a()
	_, _ = h.Write(partnerID[:])
	return int64(h.Sum64())
}
