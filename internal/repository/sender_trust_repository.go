package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

type senderTrustRepository struct {
	db *gorm.DB
}

func NewSenderTrustRepository(db *gorm.DB) interfaces.SenderTrustRepository {
	return &senderTrustRepository{db: db}
}

func (r *senderTrustRepository) Get(ctx context.Context, userID, senderAddress string) (*models.SenderTrust, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderTrustRepository.Get")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagUserId(span, userID)

	var trust models.SenderTrust
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND sender_address = ?", userID, utils.NormalizeEmailAddress(senderAddress)).
		First(&trust)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get sender trust: %w", result.Error)
	}

	return &trust, nil
}

func (r *senderTrustRepository) Upsert(ctx context.Context, trust *models.SenderTrust) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderTrustRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagUserId(span, trust.UserID)

	trust.SenderAddress = utils.NormalizeEmailAddress(trust.SenderAddress)

	result := r.db.WithContext(ctx).
		Model(&models.SenderTrust{}).
		Where("user_id = ? AND sender_address = ?", trust.UserID, trust.SenderAddress).
		Updates(map[string]interface{}{
			"verdict":    trust.Verdict.String(),
			"updated_at": utils.Now(),
		})

	if result.RowsAffected == 0 && result.Error == nil {
		result = r.db.WithContext(ctx).Create(trust)
	}

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to upsert sender trust: %w", result.Error)
	}

	return nil
}
