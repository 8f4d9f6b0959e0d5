package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

type folderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) interfaces.FolderRepository {
	return &folderRepository{db: db}
}

func (r *folderRepository) Create(ctx context.Context, folder *models.Folder) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, folder.AccountID)

	if err := r.db.WithContext(ctx).Create(folder).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	return folder.ID, nil
}

func (r *folderRepository) GetByProviderID(ctx context.Context, accountID, providerID string) (*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.GetByProviderID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, accountID)

	var folder models.Folder
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND provider_id = ?", accountID, providerID).
		First(&folder)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get folder: %w", result.Error)
	}

	return &folder, nil
}

func (r *folderRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, accountID)

	var folders []*models.Folder
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("name ASC").
		Find(&folders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

func (r *folderRepository) ListSyncEnabled(ctx context.Context, accountID string) ([]*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.ListSyncEnabled")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, accountID)

	var folders []*models.Folder
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND sync_enabled = ?", accountID, true).
		Order("canonical_type ASC, name ASC").
		Find(&folders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list sync-enabled folders: %w", err)
	}

	return folders, nil
}

func (r *folderRepository) SaveCursor(ctx context.Context, folderID, cursor string, syncedAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.SaveCursor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.Folder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"sync_cursor":    cursor,
			"last_synced_at": syncedAt,
			"updated_at":     utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save cursor: %w", result.Error)
	}

	return nil
}

func (r *folderRepository) UpdateCounts(ctx context.Context, folderID string, messageCount, unreadCount int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.UpdateCounts")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.Folder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"message_count": messageCount,
			"unread_count":  unreadCount,
			"updated_at":    utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update folder counts: %w", result.Error)
	}

	return nil
}

func (r *folderRepository) UpdateMapping(ctx context.Context, folderID string, canonicalType enum.FolderType, source enum.MappingSource, syncEnabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "folderRepository.UpdateMapping")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("canonicalType", canonicalType.String())

	result := r.db.WithContext(ctx).
		Model(&models.Folder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"canonical_type": canonicalType.String(),
			"mapping_source": source.String(),
			"sync_enabled":   syncEnabled,
			"updated_at":     utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update folder mapping: %w", result.Error)
	}

	return nil
}
