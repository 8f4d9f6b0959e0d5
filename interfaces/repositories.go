package interfaces

import (
	"context"
	"time"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) (string, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByClientState(ctx context.Context, clientState string) (*models.Account, error)
	GetByEmailAddress(ctx context.Context, emailAddress string) (*models.Account, error)
	// TryMarkSyncing atomically moves the account into the syncing state.
	// It returns false when the account is already syncing (the CAS acts
	// as the per-account run lock).
	TryMarkSyncing(ctx context.Context, id string) (bool, error)
	SetSyncState(ctx context.Context, id string, state enum.SyncState, lastError string) error
	UpdateProgress(ctx context.Context, id string, processed, total int) error
	MarkSynced(ctx context.Context, id string, at time.Time) error
	SaveCredentials(ctx context.Context, id string, accessToken, refreshToken string, expiry *time.Time) error
	ListDueForSync(ctx context.Context, idleSince, errorSince time.Time) ([]*models.Account, error)
	CompleteSetup(ctx context.Context, id string, at time.Time) error
	SoftDisable(ctx context.Context, id string) error
}

type FolderRepository interface {
	Create(ctx context.Context, folder *models.Folder) (string, error)
	GetByProviderID(ctx context.Context, accountID, providerID string) (*models.Folder, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Folder, error)
	ListSyncEnabled(ctx context.Context, accountID string) ([]*models.Folder, error)
	// SaveCursor persists the folder's sync cursor; it is only called
	// after the corresponding message upserts are durable.
	SaveCursor(ctx context.Context, folderID, cursor string, syncedAt time.Time) error
	UpdateCounts(ctx context.Context, folderID string, messageCount, unreadCount int) error
	UpdateMapping(ctx context.Context, folderID string, canonicalType enum.FolderType, source enum.MappingSource, syncEnabled bool) error
}

type MessageRepository interface {
	// Upsert inserts the message or, when (account, provider message id)
	// already exists, updates the mutable columns. It returns the stored
	// id and whether a new row was created.
	Upsert(ctx context.Context, message *models.Message) (string, bool, error)
	GetByProviderMessageID(ctx context.Context, accountID, providerMessageID string) (*models.Message, error)
	CountByFolder(ctx context.Context, folderID string) (int64, error)
	UpdateCategoryBySender(ctx context.Context, accountID, senderAddress string, category enum.MessageCategory) (int64, error)
	SetTrashed(ctx context.Context, id string, trashed bool) error
}

type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) (string, error)
	ListByMessage(ctx context.Context, messageID string) ([]*models.Attachment, error)
}

type SenderTrustRepository interface {
	Get(ctx context.Context, userID, senderAddress string) (*models.SenderTrust, error)
	Upsert(ctx context.Context, trust *models.SenderTrust) error
}

type SyncRunRepository interface {
	Create(ctx context.Context, run *models.SyncRun) (string, error)
	GetByID(ctx context.Context, id string) (*models.SyncRun, error)
	GetLatestByAccount(ctx context.Context, accountID string) (*models.SyncRun, error)
	UpdateProgress(ctx context.Context, id string, processed, total int, currentFolder string) error
	Finish(ctx context.Context, id string, status enum.SyncRunStatus, runError string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
