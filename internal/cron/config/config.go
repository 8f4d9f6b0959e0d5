package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Scheduled sync dispatch, every minute
	CronScheduleDispatchSync string `env:"CRON_SCHEDULE_DISPATCH_SYNC" envDefault:"0 * * * * *"`
	// Sync run retention pruning, daily at midnight
	CronSchedulePruneSyncRuns string `env:"CRON_SCHEDULE_PRUNE_SYNC_RUNS" envDefault:"0 0 0 * * *"`
}
