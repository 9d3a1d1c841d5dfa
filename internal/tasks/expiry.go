package tasks

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gorm.io/gorm"

	"sezzlepay_echo/internal/models"
)

// SweepExpiredAuthorizations marks authorized records whose authorization
// window has passed. Purely local bookkeeping, no gateway calls: the
// gateway releases expired authorizations on its side.
func SweepExpiredAuthorizations(ctx context.Context, db *gorm.DB, now time.Time) (int, error) {
	var expired []models.PaymentRecord
	err := db.
		Where("status = ? AND auth_expiry IS NOT NULL AND auth_expiry <= ?", models.PaymentStatusAuthorized, now).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range expired {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}
		rec := &expired[i]

		rec.Status = models.PaymentStatusAuthExpired
		rec.TransactionOpen = false
		if err := db.Save(rec).Error; err != nil {
			log.Printf("failed to expire authorization: order=%s: %v", rec.OrderID, err)
			continue
		}

		meta, _ := json.Marshal(map[string]string{
			"auth_expiry": rec.AuthExpiry.Format(time.RFC3339),
		})
		event := models.PaymentEvent{
			PaymentRecordID: rec.ID,
			Action:          "auth_expired",
			AmountCents:     rec.AuthorizedCents,
			Metadata:        meta,
		}
		if err := db.Create(&event).Error; err != nil {
			log.Printf("failed to record expiry event: order=%s: %v", rec.OrderID, err)
		}

		log.Printf("authorization expired: order=%s reference=%s", rec.OrderID, rec.ReferenceID)
		swept++
	}
	return swept, nil
}
