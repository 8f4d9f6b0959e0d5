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

type syncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) interfaces.SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(ctx context.Context, run *models.SyncRun) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, run.AccountID)

	if run.StartedAt.IsZero() {
		run.StartedAt = utils.Now()
	}
	if run.Status == "" {
		run.Status = enum.RunStatusRunning
	}

	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to create sync run: %w", err)
	}

	return run.ID, nil
}

func (r *syncRunRepository) GetByID(ctx context.Context, id string) (*models.SyncRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var run models.SyncRun
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get sync run: %w", result.Error)
	}

	return &run, nil
}

func (r *syncRunRepository) GetLatestByAccount(ctx context.Context, accountID string) (*models.SyncRun, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.GetLatestByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, accountID)

	var run models.SyncRun
	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("started_at DESC").
		First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get latest sync run: %w", result.Error)
	}

	return &run, nil
}

func (r *syncRunRepository) UpdateProgress(ctx context.Context, id string, processed, total int, currentFolder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.UpdateProgress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_count": processed,
			"total_count":     total,
			"current_folder":  currentFolder,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update sync run progress: %w", result.Error)
	}

	return nil
}

func (r *syncRunRepository) Finish(ctx context.Context, id string, status enum.SyncRunStatus, runError string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.Finish")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("status", status.String())

	result := r.db.WithContext(ctx).
		Model(&models.SyncRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status.String(),
			"completed_at": utils.Now(),
			"error":        runError,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to finish sync run: %w", result.Error)
	}

	return nil
}

func (r *syncRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncRunRepository.DeleteOlderThan")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("started_at < ? AND status <> ?", cutoff, enum.RunStatusRunning.String()).
		Delete(&models.SyncRun{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, fmt.Errorf("failed to prune sync runs: %w", result.Error)
	}

	return result.RowsAffected, nil
}
