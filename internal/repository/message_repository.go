package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) interfaces.MessageRepository {
	return &messageRepository{db: db}
}

// Upsert keys on (account_id, provider_message_id). Re-delivery of a
// message the provider already sent updates the mutable columns in place
// and leaves the category and row id untouched, so replays after a crash
// are harmless.
func (r *messageRepository) Upsert(ctx context.Context, message *models.Message) (string, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, message.AccountID)

	var existing models.Message
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND provider_message_id = ?", message.AccountID, message.ProviderMessageID).
		First(&existing)

	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			tracing.TraceErr(span, result.Error)
			return "", false, fmt.Errorf("failed to look up message: %w", result.Error)
		}

		if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
			tracing.TraceErr(span, err)
			return "", false, fmt.Errorf("failed to create message: %w", err)
		}
		return message.ID, true, nil
	}

	updates := map[string]interface{}{
		"folder_id":    message.FolderID,
		"subject":      message.Subject,
		"is_read":      message.IsRead,
		"is_starred":   message.IsStarred,
		"is_trashed":   message.IsTrashed,
		"is_draft":     message.IsDraft,
		"updated_at":   utils.Now(),
	}
	if message.BodyText != "" {
		updates["body_text"] = message.BodyText
	}
	if message.BodyHTML != "" {
		updates["body_html"] = message.BodyHTML
	}

	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", existing.ID).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return "", false, fmt.Errorf("failed to update message: %w", err)
	}

	return existing.ID, false, nil
}

func (r *messageRepository) GetByProviderMessageID(ctx context.Context, accountID, providerMessageID string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetByProviderMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, accountID)

	var message models.Message
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND provider_message_id = ?", accountID, providerMessageID).
		First(&message)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get message: %w", result.Error)
	}

	return &message, nil
}

func (r *messageRepository) CountByFolder(ctx context.Context, folderID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.CountByFolder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("folder_id = ?", folderID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	return count, nil
}

// UpdateCategoryBySender retags every stored message from a sender after
// a screening verdict changes. Returns the number of rows touched.
func (r *messageRepository) UpdateCategoryBySender(ctx context.Context, accountID, senderAddress string, category enum.MessageCategory) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.UpdateCategoryBySender")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, accountID)
	span.SetTag("category", category.String())

	// Receipts keep their category regardless of sender verdict.
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("account_id = ? AND from_address = ? AND category <> ?",
			accountID, utils.NormalizeEmailAddress(senderAddress), enum.CategoryReceipts.String()).
		Updates(map[string]interface{}{
			"category":   category.String(),
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to recategorize messages: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (r *messageRepository) SetTrashed(ctx context.Context, id string, trashed bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.SetTrashed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_trashed": trashed,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to set trashed flag: %w", result.Error)
	}

	return nil
}
