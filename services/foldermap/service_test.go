package foldermap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/models"
)

type mappingUpdate struct {
	folderID      string
	canonicalType enum.FolderType
	source        enum.MappingSource
	syncEnabled   bool
}

type fakeFolderRepo struct {
	folders []*models.Folder
	updates []mappingUpdate
}

func (f *fakeFolderRepo) Create(ctx context.Context, folder *models.Folder) (string, error) {
	f.folders = append(f.folders, folder)
	return folder.ID, nil
}

func (f *fakeFolderRepo) GetByProviderID(ctx context.Context, accountID, providerID string) (*models.Folder, error) {
	for _, folder := range f.folders {
		if folder.AccountID == accountID && folder.ProviderID == providerID {
			return folder, nil
		}
	}
	return nil, nil
}

func (f *fakeFolderRepo) ListByAccount(ctx context.Context, accountID string) ([]*models.Folder, error) {
	out := make([]*models.Folder, 0, len(f.folders))
	for _, folder := range f.folders {
		if folder.AccountID == accountID {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *fakeFolderRepo) ListSyncEnabled(ctx context.Context, accountID string) ([]*models.Folder, error) {
	return nil, nil
}

func (f *fakeFolderRepo) SaveCursor(ctx context.Context, folderID, cursor string, syncedAt time.Time) error {
	return nil
}

func (f *fakeFolderRepo) UpdateCounts(ctx context.Context, folderID string, messageCount, unreadCount int) error {
	return nil
}

func (f *fakeFolderRepo) UpdateMapping(ctx context.Context, folderID string, canonicalType enum.FolderType, source enum.MappingSource, syncEnabled bool) error {
	f.updates = append(f.updates, mappingUpdate{folderID, canonicalType, source, syncEnabled})
	for _, folder := range f.folders {
		if folder.ID == folderID {
			folder.CanonicalType = canonicalType
			folder.MappingSource = source
			folder.SyncEnabled = syncEnabled
		}
	}
	return nil
}

type fakeAccountRepo struct {
	account        *models.Account
	setupCompleted bool
	stateChanges   []enum.SyncState
}

func (f *fakeAccountRepo) Create(ctx context.Context, a *models.Account) (string, error) {
	return "", nil
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if f.account != nil && f.account.ID == id {
		return f.account, nil
	}
	return nil, er.ErrAccountNotFound
}

func (f *fakeAccountRepo) GetByClientState(ctx context.Context, clientState string) (*models.Account, error) {
	return nil, er.ErrAccountNotFound
}

func (f *fakeAccountRepo) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.Account, error) {
	return nil, er.ErrAccountNotFound
}

func (f *fakeAccountRepo) TryMarkSyncing(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (f *fakeAccountRepo) SetSyncState(ctx context.Context, id string, state enum.SyncState, lastError string) error {
	f.stateChanges = append(f.stateChanges, state)
	f.account.SyncState = state
	return nil
}

func (f *fakeAccountRepo) UpdateProgress(ctx context.Context, id string, processed, total int) error {
	return nil
}

func (f *fakeAccountRepo) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (f *fakeAccountRepo) SaveCredentials(ctx context.Context, id, accessToken, refreshToken string, expiry *time.Time) error {
	return nil
}

func (f *fakeAccountRepo) ListDueForSync(ctx context.Context, idleSince, errorSince time.Time) ([]*models.Account, error) {
	return nil, nil
}

func (f *fakeAccountRepo) CompleteSetup(ctx context.Context, id string, at time.Time) error {
	f.setupCompleted = true
	f.account.SetupCompletedAt = &at
	return nil
}

func (f *fakeAccountRepo) SoftDisable(ctx context.Context, id string) error {
	return nil
}

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()
	return log
}

func setupAccount() *models.Account {
	return &models.Account{
		ID:        "acct_1",
		UserID:    "user_1",
		SyncState: enum.SyncStatePendingSetup,
	}
}

func TestConfirmMappings_AppliesEnabledEntries(t *testing.T) {
	accounts := &fakeAccountRepo{account: setupAccount()}
	folders := &fakeFolderRepo{folders: []*models.Folder{
		{ID: "fld_1", AccountID: "acct_1", Name: "Newsletters", CanonicalType: enum.FolderCustom},
	}}
	svc := NewService(testLogger(), accounts, folders)

	err := svc.ConfirmMappings(context.Background(), "user_1", "acct_1", []FolderConfirmation{
		{FolderID: "fld_1", CanonicalType: enum.FolderArchive, SyncEnabled: true},
	})
	require.NoError(t, err)

	require.Len(t, folders.updates, 1)
	assert.Equal(t, "fld_1", folders.updates[0].folderID)
	assert.Equal(t, enum.FolderArchive, folders.updates[0].canonicalType)
	assert.Equal(t, enum.MappingManual, folders.updates[0].source)
	assert.True(t, folders.updates[0].syncEnabled)
}

func TestConfirmMappings_SkipsDisabledEntries(t *testing.T) {
	accounts := &fakeAccountRepo{account: setupAccount()}
	folders := &fakeFolderRepo{folders: []*models.Folder{
		{ID: "fld_1", AccountID: "acct_1", Name: "INBOX", CanonicalType: enum.FolderInbox, SyncEnabled: true},
		{ID: "fld_2", AccountID: "acct_1", Name: "Promotions", CanonicalType: enum.FolderCustom},
	}}
	svc := NewService(testLogger(), accounts, folders)

	err := svc.ConfirmMappings(context.Background(), "user_1", "acct_1", []FolderConfirmation{
		{FolderID: "fld_1", CanonicalType: enum.FolderInbox, SyncEnabled: true},
		{FolderID: "fld_2", SyncEnabled: false},
	})
	require.NoError(t, err)

	// Only the enabled entry is written; the disabled one is ignored.
	require.Len(t, folders.updates, 1)
	assert.Equal(t, "fld_1", folders.updates[0].folderID)
}

func TestConfirmMappings_UnknownFolderIgnored(t *testing.T) {
	accounts := &fakeAccountRepo{account: setupAccount()}
	folders := &fakeFolderRepo{}
	svc := NewService(testLogger(), accounts, folders)

	err := svc.ConfirmMappings(context.Background(), "user_1", "acct_1", []FolderConfirmation{
		{FolderID: "fld_gone", CanonicalType: enum.FolderSent, SyncEnabled: true},
	})
	require.NoError(t, err)
	assert.Empty(t, folders.updates)
}

func TestConfirmMappings_CompletesSetupOnce(t *testing.T) {
	accounts := &fakeAccountRepo{account: setupAccount()}
	folders := &fakeFolderRepo{}
	svc := NewService(testLogger(), accounts, folders)

	require.NoError(t, svc.ConfirmMappings(context.Background(), "user_1", "acct_1", nil))
	assert.True(t, accounts.setupCompleted)
	assert.Equal(t, []enum.SyncState{enum.SyncStateIdle}, accounts.stateChanges)

	// Re-confirming after setup leaves the state machine alone.
	accounts.stateChanges = nil
	require.NoError(t, svc.ConfirmMappings(context.Background(), "user_1", "acct_1", nil))
	assert.Empty(t, accounts.stateChanges)
}

func TestConfirmMappings_RejectsForeignAccount(t *testing.T) {
	accounts := &fakeAccountRepo{account: setupAccount()}
	svc := NewService(testLogger(), accounts, &fakeFolderRepo{})

	err := svc.ConfirmMappings(context.Background(), "user_2", "acct_1", nil)
	assert.ErrorIs(t, err, er.ErrNotOwned)
}
