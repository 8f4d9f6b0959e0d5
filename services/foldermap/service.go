package foldermap

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

// FolderConfirmation is one user correction from the setup flow.
type FolderConfirmation struct {
	FolderID      string          `json:"folderId"`
	CanonicalType enum.FolderType `json:"canonicalType"`
	SyncEnabled   bool            `json:"syncEnabled"`
}

type Service struct {
	log         logger.Logger
	accountRepo interfaces.AccountRepository
	folderRepo  interfaces.FolderRepository
}

func NewService(log logger.Logger, accountRepo interfaces.AccountRepository, folderRepo interfaces.FolderRepository) *Service {
	return &Service{
		log:         log,
		accountRepo: accountRepo,
		folderRepo:  folderRepo,
	}
}

// ReconcileFolder records a folder seen during discovery. Known folders
// keep their stored mapping (manual corrections survive re-discovery);
// unseen ones get an automatic guess.
func (s *Service) ReconcileFolder(ctx context.Context, accountID string, remote interfaces.RemoteFolder) (*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FolderMapService.ReconcileFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccountId(span, accountID)

	existing, err := s.folderRepo.GetByProviderID(ctx, accountID, remote.ProviderID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if existing != nil {
		if existing.MessageCount != remote.MessageCount || existing.UnreadCount != remote.UnreadCount {
			if err := s.folderRepo.UpdateCounts(ctx, existing.ID, remote.MessageCount, remote.UnreadCount); err != nil {
				tracing.TraceErr(span, err)
				return nil, err
			}
			existing.MessageCount = remote.MessageCount
			existing.UnreadCount = remote.UnreadCount
		}
		return existing, nil
	}

	mapping := Map(remote.Name, remote.Attributes)
	folder := &models.Folder{
		AccountID:         accountID,
		ProviderID:        remote.ProviderID,
		Name:              remote.Name,
		CanonicalType:     mapping.Type,
		MappingConfidence: mapping.Confidence,
		MappingSource:     enum.MappingAuto,
		SyncEnabled:       DefaultSyncEnabled(mapping.Type),
		MessageCount:      remote.MessageCount,
		UnreadCount:       remote.UnreadCount,
	}

	if _, err := s.folderRepo.Create(ctx, folder); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.log.Infof("mapped folder %s to %s (confidence %.1f) for account %s",
		remote.Name, mapping.Type, mapping.Confidence, accountID)

	return folder, nil
}

// ListFolders returns the discovered folders with their current mapping.
func (s *Service) ListFolders(ctx context.Context, userID, accountID string) ([]*models.Folder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FolderMapService.ListFolders")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccountId(span, accountID)

	if _, err := s.ownedAccount(ctx, userID, accountID); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return s.folderRepo.ListByAccount(ctx, accountID)
}

// ConfirmMappings applies the user's corrections and completes account
// setup. Re-submitting the same confirmations is harmless.
func (s *Service) ConfirmMappings(ctx context.Context, userID, accountID string, confirmations []FolderConfirmation) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "FolderMapService.ConfirmMappings")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUserId(span, userID)
	tracing.TagAccountId(span, accountID)

	account, err := s.ownedAccount(ctx, userID, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	folders, err := s.folderRepo.ListByAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	known := make(map[string]*models.Folder, len(folders))
	for _, f := range folders {
		known[f.ID] = f
	}

	for _, c := range confirmations {
		folder, ok := known[c.FolderID]
		if !ok {
			// Confirmation for a folder the provider no longer reports.
			continue
		}
		if !c.SyncEnabled {
			// Disabled entries are left untouched; only enabled ones are
			// applied as manual mappings.
			continue
		}
		canonicalType := c.CanonicalType
		if canonicalType == "" {
			canonicalType = folder.CanonicalType
		}
		err = s.folderRepo.UpdateMapping(ctx, folder.ID, canonicalType, enum.MappingManual, c.SyncEnabled)
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
	}

	if !account.SetupConfirmed() {
		if err := s.accountRepo.CompleteSetup(ctx, accountID, utils.Now()); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if account.SyncState == enum.SyncStatePendingSetup {
			if err := s.accountRepo.SetSyncState(ctx, accountID, enum.SyncStateIdle, ""); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
		}
	}

	return nil
}

func (s *Service) ownedAccount(ctx context.Context, userID, accountID string) (*models.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, er.ErrNotOwned
	}
	return account, nil
}
