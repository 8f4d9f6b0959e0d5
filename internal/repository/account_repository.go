package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account.EmailAddress != "" {
		account.EmailAddress = utils.NormalizeEmailAddress(account.EmailAddress)
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", fmt.Errorf("failed to create account: %w", err)
	}

	return account.ID, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)

	var account models.Account
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, er.ErrAccountNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account: %w", result.Error)
	}

	return &account, nil
}

func (r *accountRepository) GetByClientState(ctx context.Context, clientState string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByClientState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	result := r.db.WithContext(ctx).Where("webhook_client_state = ?", clientState).First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, er.ErrAccountNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account by client state: %w", result.Error)
	}

	return &account, nil
}

func (r *accountRepository) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByEmailAddress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	result := r.db.WithContext(ctx).
		Where("email_address = ?", utils.NormalizeEmailAddress(emailAddress)).
		First(&account)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, er.ErrAccountNotFound
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get account by email: %w", result.Error)
	}

	return &account, nil
}

// TryMarkSyncing is the per-account run lock. The guarded UPDATE only
// matches rows whose state is not already syncing, so two concurrent
// triggers race on RowsAffected and exactly one wins.
func (r *accountRepository) TryMarkSyncing(ctx context.Context, id string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.TryMarkSyncing")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND sync_state IN ?", id, []string{
			enum.SyncStateIdle.String(),
			enum.SyncStateError.String(),
			enum.SyncStatePendingSetup.String(),
		}).
		Updates(map[string]interface{}{
			"sync_state": enum.SyncStateSyncing.String(),
			"last_error": "",
			"updated_at": utils.Now(),
		})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to mark account syncing: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

func (r *accountRepository) SetSyncState(ctx context.Context, id string, state enum.SyncState, lastError string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.SetSyncState")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)
	span.SetTag("syncState", state.String())

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sync_state": state.String(),
			"last_error": lastError,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to set sync state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return er.ErrAccountNotFound
	}

	return nil
}

func (r *accountRepository) UpdateProgress(ctx context.Context, id string, processed, total int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.UpdateProgress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_count": processed,
			"total_count":     total,
			"updated_at":      utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to update progress: %w", result.Error)
	}

	return nil
}

func (r *accountRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.MarkSynced")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_at": at,
			"updated_at":   utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to mark synced: %w", result.Error)
	}

	return nil
}

func (r *accountRepository) SaveCredentials(ctx context.Context, id string, accessToken, refreshToken string, expiry *time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.SaveCredentials")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)

	updates := map[string]interface{}{
		"access_token": accessToken,
		"token_expiry": expiry,
		"updated_at":   utils.Now(),
	}
	// Some providers rotate the refresh token on every exchange, others
	// omit it. Keep the old one when the response left it out.
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save credentials: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return er.ErrAccountNotFound
	}

	return nil
}

// ListDueForSync returns enabled accounts whose last sync is older than
// the idle cutoff, with a longer cutoff for accounts sitting in error so
// failing accounts are retried on a slower cadence.
func (r *accountRepository) ListDueForSync(ctx context.Context, idleSince, errorSince time.Time) ([]*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.ListDueForSync")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.Account
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where(
			r.db.Where("sync_state IN ? AND (last_sync_at IS NULL OR last_sync_at < ?)",
				[]string{enum.SyncStateIdle.String(), enum.SyncStatePendingSetup.String()}, idleSince).
				Or("sync_state = ? AND (last_sync_at IS NULL OR last_sync_at < ?)",
					enum.SyncStateError.String(), errorSince),
		).
		Order("last_sync_at ASC NULLS FIRST").
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to list accounts due for sync: %w", err)
	}

	return accounts, nil
}

func (r *accountRepository) CompleteSetup(ctx context.Context, id string, at time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.CompleteSetup")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND setup_completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"setup_completed_at": at,
			"updated_at":         utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to complete setup: %w", result.Error)
	}

	return nil
}

func (r *accountRepository) SoftDisable(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.SoftDisable")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccountId(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"enabled":    false,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to disable account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return er.ErrAccountNotFound
	}

	return nil
}
