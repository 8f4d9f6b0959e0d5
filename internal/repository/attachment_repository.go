package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
)

type attachmentRepository struct {
	db      *gorm.DB
	storage interfaces.StorageService
}

func NewAttachmentRepository(db *gorm.DB, storage interfaces.StorageService) interfaces.AttachmentRepository {
	return &attachmentRepository{db: db, storage: storage}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to create attachment: %w", err)
	}

	return attachment.ID, nil
}

func (r *attachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]*models.Attachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "attachmentRepository.ListByMessage")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var attachments []*models.Attachment
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Find(&attachments).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}

	return attachments, nil
}
