package config

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"11000"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN" envDefault:"50"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE" envDefault:"require"`
}

type R2StorageConfig struct {
	AccountID        string `env:"CLOUDFLARE_R2_ACCOUNT_ID,required"`
	AccessKeyID      string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID,required"`
	AccessKeySecret  string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET,required"`
	AttachmentBucket string `env:"BUCKET_NAME_ATTACHMENT" envDefault:"attachments"`
}

type GoogleOAuthConfig struct {
	ClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
}

type MicrosoftOAuthConfig struct {
	ClientID     string `env:"MICROSOFT_OAUTH_CLIENT_ID"`
	ClientSecret string `env:"MICROSOFT_OAUTH_CLIENT_SECRET"`
	TenantID     string `env:"MICROSOFT_OAUTH_TENANT_ID" envDefault:"common"`
}

type SyncConfig struct {
	// ScheduledIntervalMinutes is the minimum age of an account's last
	// sync before the dispatcher queues it again.
	ScheduledIntervalMinutes int `env:"SYNC_SCHEDULED_INTERVAL_MINUTES" envDefault:"15"`
	// ErrorRetryIntervalMinutes is the slower cadence for accounts in error.
	ErrorRetryIntervalMinutes int `env:"SYNC_ERROR_RETRY_INTERVAL_MINUTES" envDefault:"60"`
	MaxAttempts               int `env:"SYNC_MAX_ATTEMPTS" envDefault:"3"`
	BackoffBaseMillis         int `env:"SYNC_BACKOFF_BASE_MILLIS" envDefault:"500"`
	BackoffMaxMillis          int `env:"SYNC_BACKOFF_MAX_MILLIS" envDefault:"30000"`
	WebhookDebounceSeconds    int `env:"SYNC_WEBHOOK_DEBOUNCE_SECONDS" envDefault:"5"`
	DispatchConcurrency       int `env:"SYNC_DISPATCH_CONCURRENCY" envDefault:"4"`
	RunRetentionDays          int `env:"SYNC_RUN_RETENTION_DAYS" envDefault:"14"`
}
