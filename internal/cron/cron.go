package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/config"
	cron_config "github.com/inboxkit/mailsync/internal/cron/config"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
	"github.com/pkg/errors"
)

// CONSTANTS
const (
	// GroupSync is the group for sync dispatch jobs
	GroupSync = "sync"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupSync: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg          *config.Config
	log          logger.Logger
	cron         *cronv3.Cron
	k8s          kubernetes.Interface
	stopCh       chan struct{}
	jobIDs       map[string]cronv3.EntryID
	accountRepo  interfaces.AccountRepository
	runRepo      interfaces.SyncRunRepository
	orchestrator interfaces.SyncOrchestrator
}

func NewCronManager(
	cfg *config.Config,
	log logger.Logger,
	k8s kubernetes.Interface,
	accountRepo interfaces.AccountRepository,
	runRepo interfaces.SyncRunRepository,
	orchestrator interfaces.SyncOrchestrator,
) *CronManager {
	return &CronManager{
		cfg:          cfg,
		log:          log,
		k8s:          k8s,
		stopCh:       make(chan struct{}),
		jobIDs:       make(map[string]cronv3.EntryID),
		accountRepo:  accountRepo,
		runRepo:      runRepo,
		orchestrator: orchestrator,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	// If k8s client is nil or we're in local development, start in local mode
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	// Create the leader election lock
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailsync-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLog(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Scheduled sync dispatch
	if cronConfig.CronScheduleDispatchSync != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleDispatchSync, func() {
			defer tracing.RecoverAndLog(cm.log)
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.dispatchDueAccounts()
		})
		if err != nil {
			cm.log.Fatalf("Could not add sync dispatch cron job: %v", err)
		}
		cm.jobIDs["dispatch_sync"] = id
		cm.log.Infof("Registered sync dispatch job with schedule: %s", cronConfig.CronScheduleDispatchSync)
	}

	// Sync run retention
	if cronConfig.CronSchedulePruneSyncRuns != "" {
		id, err := c.AddFunc(cronConfig.CronSchedulePruneSyncRuns, func() {
			defer tracing.RecoverAndLog(cm.log)
			cm.pruneSyncRuns()
		})
		if err != nil {
			cm.log.Fatalf("Could not add sync run pruning cron job: %v", err)
		}
		cm.jobIDs["prune_sync_runs"] = id
		cm.log.Infof("Registered sync run pruning job with schedule: %s", cronConfig.CronSchedulePruneSyncRuns)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// dispatchDueAccounts triggers a scheduled sync for every enabled account
// whose last activity is older than the configured interval. Accounts in
// the error state get the longer retry interval.
func (cm *CronManager) dispatchDueAccounts() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.dispatchDueAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	now := utils.Now()
	idleSince := now.Add(-time.Duration(cm.cfg.SyncConfig.ScheduledIntervalMinutes) * time.Minute)
	errorSince := now.Add(-time.Duration(cm.cfg.SyncConfig.ErrorRetryIntervalMinutes) * time.Minute)

	accounts, err := cm.accountRepo.ListDueForSync(ctx, idleSince, errorSince)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts due for sync: %v", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	span.SetTag("accounts.due", len(accounts))
	cm.log.Infof("Dispatching scheduled sync for %d accounts", len(accounts))

	concurrency := cm.cfg.SyncConfig.DispatchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{}
		go func(accountID string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := cm.orchestrator.TriggerSync(ctx, "", accountID, enum.TriggerScheduled)
			if err != nil && !errors.Is(err, er.ErrAlreadySyncing) {
				cm.log.Warnf("Scheduled sync for account %s not started: %v", accountID, err)
			}
		}(account.ID)
	}
	wg.Wait()
}

func (cm *CronManager) pruneSyncRuns() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.pruneSyncRuns")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	cutoff := utils.Now().AddDate(0, 0, -cm.cfg.SyncConfig.RunRetentionDays)
	deleted, err := cm.runRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to prune sync runs: %v", err)
		return
	}

	if deleted > 0 {
		cm.log.Infof("Pruned %d sync runs older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}
