package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
	"github.com/inboxkit/mailsync/services/categorizer"
)

const progressFlushEvery = 25

// runSync drives one full run in the background. The account row is
// already in the syncing state when this starts; every exit path moves
// it out again.
func (s *Service) runSync(account *models.Account, runID string, trigger enum.SyncTrigger) {
	defer tracing.RecoverAndLog(s.log)

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	span, ctx := tracing.StartTracerSpan(ctx, "SyncOrchestrator.runSync")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccountId(span, account.ID)
	span.SetTag("trigger", trigger.String())

	s.log.Infof("sync run %s started for account %s (%s)", runID, account.ID, trigger)

	processed, err := s.processRun(ctx, account, runID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("sync run %s for account %s failed after %d messages: %v", runID, account.ID, processed, err)

		finishCtx, finishCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer finishCancel()
		_ = s.runRepo.Finish(finishCtx, runID, enum.RunStatusFailed, err.Error())
		_ = s.accountRepo.SetSyncState(finishCtx, account.ID, enum.SyncStateError, err.Error())
		return
	}

	endState := enum.SyncStateIdle
	if !account.SetupConfirmed() {
		// Discovery ran but the user never confirmed mappings; the
		// account stays in setup until ConfirmMappings flips it.
		endState = enum.SyncStatePendingSetup
	}

	_ = s.runRepo.Finish(ctx, runID, enum.RunStatusCompleted, "")
	_ = s.accountRepo.MarkSynced(ctx, account.ID, utils.Now())
	if err := s.accountRepo.SetSyncState(ctx, account.ID, endState, ""); err != nil {
		tracing.TraceErr(span, err)
	}

	s.log.Infof("sync run %s completed for account %s, %d messages", runID, account.ID, processed)
}

func (s *Service) processRun(ctx context.Context, account *models.Account, runID string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.processRun")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccountId(span, account.ID)

	client, err := s.factory.ClientFor(account)
	if err != nil {
		return 0, err
	}

	var remoteFolders []interfaces.RemoteFolder
	err = s.callProvider(ctx, account, client, func() error {
		var callErr error
		remoteFolders, callErr = client.ListFolders(ctx, account)
		return callErr
	})
	if err != nil {
		return 0, errors.Wrap(err, "folder discovery failed")
	}

	for _, remote := range remoteFolders {
		if _, err := s.folderMap.ReconcileFolder(ctx, account.ID, remote); err != nil {
			return 0, errors.Wrap(err, "folder reconcile failed")
		}
	}

	folders, err := s.folderRepo.ListSyncEnabled(ctx, account.ID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, f := range folders {
		total += f.MessageCount
	}

	processed := 0
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return processed, errors.Wrap(err, "run deadline exceeded")
		}

		_ = s.runRepo.UpdateProgress(ctx, runID, processed, total, folder.Name)

		folderProcessed, err := s.syncFolder(ctx, account, client, folder, runID, &processed, &total)
		if err != nil {
			// Cursors of folders finished before this one are already
			// durable, so the next run resumes from here.
			return processed, errors.Wrapf(err, "folder %s failed", folder.Name)
		}

		s.log.Debugf("account %s folder %s: %d new messages", account.ID, folder.Name, folderProcessed)
	}

	_ = s.accountRepo.UpdateProgress(ctx, account.ID, processed, total)
	_ = s.runRepo.UpdateProgress(ctx, runID, processed, total, "")

	return processed, nil
}

// syncFolder pulls one folder's delta and commits it message by
// message. The cursor is saved only after every message in the delta is
// durable; a crash in between re-fetches the same window and the upsert
// layer absorbs the replay.
func (s *Service) syncFolder(
	ctx context.Context,
	account *models.Account,
	client interfaces.ProviderClient,
	folder *models.Folder,
	runID string,
	processed *int,
	total *int,
) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.syncFolder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccountId(span, account.ID)
	span.SetTag("folder", folder.Name)

	var delta *interfaces.Delta
	err := s.callProvider(ctx, account, client, func() error {
		var callErr error
		delta, callErr = client.FetchDelta(ctx, account, folder, folder.SyncCursor)
		return callErr
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	if delta.TotalEstimate > folder.MessageCount {
		*total += delta.TotalEstimate - folder.MessageCount
	}

	count := 0
	for i := range delta.Messages {
		if err := ctx.Err(); err != nil {
			return count, errors.Wrap(err, "run deadline exceeded")
		}

		if err := s.ingestMessage(ctx, account, folder, &delta.Messages[i]); err != nil {
			tracing.TraceErr(span, err)
			return count, err
		}

		count++
		*processed++
		if *processed%progressFlushEvery == 0 {
			_ = s.accountRepo.UpdateProgress(ctx, account.ID, *processed, *total)
			_ = s.runRepo.UpdateProgress(ctx, runID, *processed, *total, folder.Name)
		}
	}

	if delta.NextCursor != "" && delta.NextCursor != folder.SyncCursor {
		if err := s.folderRepo.SaveCursor(ctx, folder.ID, delta.NextCursor, utils.Now()); err != nil {
			tracing.TraceErr(span, err)
			return count, errors.Wrap(er.ErrStorage, err.Error())
		}
	}

	_ = s.accountRepo.UpdateProgress(ctx, account.ID, *processed, *total)

	return count, nil
}

func (s *Service) ingestMessage(ctx context.Context, account *models.Account, folder *models.Folder, remote *interfaces.RemoteMessage) error {
	category, err := s.categorizer.CategorizeForUser(ctx, account.UserID, categorizer.Input{
		FromAddress: remote.FromAddress,
		Subject:     remote.Subject,
		BodyText:    remote.BodyText,
		BodyHTML:    remote.BodyHTML,
	})
	if err != nil {
		return err
	}

	message := &models.Message{
		AccountID:         account.ID,
		FolderID:          folder.ID,
		ProviderMessageID: remote.ProviderMessageID,
		ThreadID:          remote.ThreadID,
		Subject:           remote.Subject,
		FromAddress:       utils.NormalizeEmailAddress(remote.FromAddress),
		FromName:          remote.FromName,
		ToAddresses:       remote.ToAddresses,
		CcAddresses:       remote.CcAddresses,
		BccAddresses:      remote.BccAddresses,
		BodyText:          remote.BodyText,
		BodyHTML:          remote.BodyHTML,
		SentAt:            remote.SentAt,
		ReceivedAt:        remote.ReceivedAt,
		IsRead:            remote.IsRead,
		IsStarred:         remote.IsStarred,
		IsDraft:           remote.IsDraft,
		Category:          category,
		HasAttachment:     len(remote.Attachments) > 0,
		AttachmentCount:   len(remote.Attachments),
		RawHeaders:        remote.Headers,
	}

	messageID, created, err := s.messageRepo.Upsert(ctx, message)
	if err != nil {
		return errors.Wrap(er.ErrStorage, err.Error())
	}
	if !created {
		return nil
	}

	for i := range remote.Attachments {
		if err := s.storeAttachment(ctx, messageID, &remote.Attachments[i]); err != nil {
			// Attachment loss is not worth failing the whole folder.
			s.log.Warnf("attachment %s of message %s not stored: %v", remote.Attachments[i].Filename, messageID, err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEmailIngested(ctx, account.ID, messageID); err != nil {
			s.log.Warnf("email.ingested event for message %s not published: %v", messageID, err)
		}
	}

	return nil
}

func (s *Service) storeAttachment(ctx context.Context, messageID string, remote *interfaces.RemoteAttachment) error {
	attachment := &models.Attachment{
		MessageID:   messageID,
		Filename:    remote.Filename,
		ContentType: remote.ContentType,
		Size:        remote.Size,
		IsInline:    remote.IsInline,
	}

	if len(remote.Content) > 0 {
		hash := sha256.Sum256(remote.Content)
		attachment.ContentHash = hex.EncodeToString(hash[:])

		if s.storage != nil {
			key := fmt.Sprintf("%s/%s", messageID, attachment.ContentHash)
			if err := s.storage.Upload(ctx, key, remote.Content, remote.ContentType); err == nil {
				attachment.StorageKey = key
			} else {
				s.log.Warnf("attachment blob upload failed for message %s: %v", messageID, err)
			}
		}
	}

	_, err := s.attachRepo.Create(ctx, attachment)
	return err
}

// callProvider runs one provider call with bounded exponential backoff
// for retryable failures and a single credential refresh on expiry.
func (s *Service) callProvider(ctx context.Context, account *models.Account, client interfaces.ProviderClient, call func() error) error {
	b := &backoff.Backoff{
		Min:    time.Duration(s.cfg.BackoffBaseMillis) * time.Millisecond,
		Max:    time.Duration(s.cfg.BackoffMaxMillis) * time.Millisecond,
		Factor: 2,
		Jitter: true,
	}

	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	refreshed := false
	for attempt := 1; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}

		if errors.Is(err, er.ErrCredentialExpired) && !refreshed && client.RefreshSupported() {
			refreshed = true
			if refreshErr := s.refresher.Refresh(ctx, account); refreshErr != nil {
				return refreshErr
			}
			continue
		}

		if !er.IsRetryable(err) || attempt >= maxAttempts {
			return err
		}

		wait := b.Duration()
		s.log.Warnf("provider call for account %s failed (attempt %d/%d), retrying in %v: %v",
			account.ID, attempt, maxAttempts, wait, err)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
