package cron

import (
	"os"
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"k8s.io/client-go/kubernetes"

	"github.com/inboxkit/mailsync/internal/config"
	cron_config "github.com/inboxkit/mailsync/internal/cron/config"
	"github.com/inboxkit/mailsync/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig:  &config.AppConfig{},
		Logger:     &logger.Config{LogLevel: "info"},
		SyncConfig: &config.SyncConfig{ScheduledIntervalMinutes: 15, ErrorRetryIntervalMinutes: 60, DispatchConcurrency: 4, RunRetentionDays: 14},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, nil, nil, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_StartCron(t *testing.T) {
	os.Setenv("CRON_SCHEDULE_DISPATCH_SYNC", "0 * * * * *")
	os.Setenv("CRON_SCHEDULE_PRUNE_SYNC_RUNS", "0 0 0 * * *")
	defer os.Unsetenv("CRON_SCHEDULE_DISPATCH_SYNC")
	defer os.Unsetenv("CRON_SCHEDULE_PRUNE_SYNC_RUNS")

	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	cm := NewCronManager(cfg, log, k8s, nil, nil, nil)

	mockCron := cronv3.New(cronv3.WithSeconds())

	var cronConfig cron_config.Config
	cronConfig.CronScheduleDispatchSync = "0 * * * * *"
	cronConfig.CronSchedulePruneSyncRuns = "0 0 0 * * *"

	id, err := mockCron.AddFunc(cronConfig.CronScheduleDispatchSync, func() {})
	assert.NoError(t, err)
	cm.jobIDs["dispatch_sync"] = id

	pruneID, err := mockCron.AddFunc(cronConfig.CronSchedulePruneSyncRuns, func() {})
	assert.NoError(t, err)
	cm.jobIDs["prune_sync_runs"] = pruneID

	cm.cron = mockCron

	assert.NotNil(t, cm.cron)
	assert.Equal(t, 2, len(cm.jobIDs))
}

func TestCronManager_Stop(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	cm := NewCronManager(cfg, log, k8s, nil, nil, nil)

	mockCron := cronv3.New(cronv3.WithSeconds())
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()

	select {
	case <-cm.stopCh:
		// Channel is closed as expected
	default:
		t.Error("Stop channel was not closed")
	}
}
