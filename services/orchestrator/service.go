package orchestrator

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/config"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/progress"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
	"github.com/inboxkit/mailsync/services/categorizer"
	"github.com/inboxkit/mailsync/services/foldermap"
)

// DefaultRunTimeout is the wall-clock ceiling for one sync run. A run
// that outlives it is cut off and the account lands in the error state;
// cursors committed so far keep the next run incremental.
const DefaultRunTimeout = 30 * time.Minute

type Service struct {
	log         logger.Logger
	cfg         *config.SyncConfig
	accountRepo interfaces.AccountRepository
	folderRepo  interfaces.FolderRepository
	messageRepo interfaces.MessageRepository
	attachRepo  interfaces.AttachmentRepository
	runRepo     interfaces.SyncRunRepository

	factory     interfaces.ProviderFactory
	refresher   interfaces.CredentialRefresher
	folderMap   *foldermap.Service
	categorizer *categorizer.Service

	// Optional side channels; nil disables them.
	publisher interfaces.EventPublisher
	storage   interfaces.StorageService

	runTimeout time.Duration
}

func NewService(
	log logger.Logger,
	cfg *config.SyncConfig,
	accountRepo interfaces.AccountRepository,
	folderRepo interfaces.FolderRepository,
	messageRepo interfaces.MessageRepository,
	attachRepo interfaces.AttachmentRepository,
	runRepo interfaces.SyncRunRepository,
	factory interfaces.ProviderFactory,
	refresher interfaces.CredentialRefresher,
	folderMap *foldermap.Service,
	categorizerSvc *categorizer.Service,
	publisher interfaces.EventPublisher,
	storage interfaces.StorageService,
) *Service {
	return &Service{
		log:         log,
		cfg:         cfg,
		accountRepo: accountRepo,
		folderRepo:  folderRepo,
		messageRepo: messageRepo,
		attachRepo:  attachRepo,
		runRepo:     runRepo,
		factory:     factory,
		refresher:   refresher,
		folderMap:   folderMap,
		categorizer: categorizerSvc,
		publisher:   publisher,
		storage:     storage,
		runTimeout:  DefaultRunTimeout,
	}
}

// TriggerSync starts a sync run for the account. The guarded state
// transition doubles as the run lock: exactly one of any number of
// concurrent triggers wins, the rest get ErrAlreadySyncing. The run
// itself proceeds in the background; the returned id can be polled via
// GetStatus.
func (s *Service) TriggerSync(ctx context.Context, userID, accountID string, trigger enum.SyncTrigger) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.TriggerSync")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUserId(span, userID)
	tracing.TagAccountId(span, accountID)
	span.SetTag("trigger", trigger.String())

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if userID != "" && account.UserID != userID {
		return "", er.ErrNotOwned
	}
	if !account.Enabled {
		return "", er.ErrAccountNotFound
	}

	won, err := s.accountRepo.TryMarkSyncing(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if !won {
		return "", er.ErrAlreadySyncing
	}

	run := &models.SyncRun{
		AccountID: accountID,
		Trigger:   trigger,
		Status:    enum.RunStatusRunning,
		StartedAt: utils.Now(),
	}
	runID, err := s.runRepo.Create(ctx, run)
	if err != nil {
		// Roll the lock back so the account is not stuck in syncing.
		tracing.TraceErr(span, err)
		_ = s.accountRepo.SetSyncState(ctx, accountID, enum.SyncStateError, err.Error())
		return "", err
	}

	if err := s.accountRepo.UpdateProgress(ctx, accountID, 0, 0); err != nil {
		tracing.TraceErr(span, err)
	}

	go s.runSync(account, runID, trigger)

	return runID, nil
}

// GetStatus assembles the progress read-model from persisted counters
// only. It never calls the provider.
func (s *Service) GetStatus(ctx context.Context, userID, accountID string) (*interfaces.SyncStatus, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncOrchestrator.GetStatus")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccountId(span, accountID)

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if userID != "" && account.UserID != userID {
		return nil, er.ErrNotOwned
	}

	status := &interfaces.SyncStatus{
		State:     account.SyncState,
		Processed: account.ProcessedCount,
		Total:     account.TotalCount,
		LastError: account.LastError,
		ETA:       progress.ETAUnknown,
	}

	run, err := s.runRepo.GetLatestByAccount(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	snapshot := progress.Snapshot{
		Processed: account.ProcessedCount,
		Total:     account.TotalCount,
		Now:       utils.Now(),
	}
	if run != nil {
		snapshot.StartedAt = run.StartedAt
		if run.Status == enum.RunStatusRunning {
			status.CurrentFolder = run.CurrentFolder
		}
	}

	status.Percent = progress.Percent(snapshot)
	if account.SyncState == enum.SyncStateSyncing && run != nil {
		status.Speed = progress.Speed(snapshot)
		eta, ok := progress.ETA(snapshot)
		status.ETA = progress.FormatETA(eta, ok)
	}

	return status, nil
}
