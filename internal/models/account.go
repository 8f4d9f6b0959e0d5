package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/utils"
)

// Account is one user's connection to one mailbox.
type Account struct {
	ID           string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID       string            `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	Provider     enum.MailProvider `gorm:"column:provider;type:varchar(20);index;not null" json:"provider"`
	EmailAddress string            `gorm:"column:email_address;type:varchar(255);index" json:"emailAddress"`

	// OAuth credential material (gmail, outlook)
	AccessToken  string     `gorm:"column:access_token;type:text" json:"-"`
	RefreshToken string     `gorm:"column:refresh_token;type:text" json:"-"`
	TokenExpiry  *time.Time `gorm:"column:token_expiry;type:timestamp" json:"-"`

	// IMAP credential material
	ImapServer   string `gorm:"column:imap_server;type:varchar(255)" json:"imapServer,omitempty"`
	ImapPort     int    `gorm:"column:imap_port" json:"imapPort,omitempty"`
	ImapUsername string `gorm:"column:imap_username;type:varchar(255)" json:"imapUsername,omitempty"`
	ImapPassword string `gorm:"column:imap_password;type:varchar(255)" json:"-"`
	ImapTLS      bool   `gorm:"column:imap_tls;default:true" json:"imapTls,omitempty"`

	// Sync state machine, doubles as the per-account run lock
	SyncState        enum.SyncState `gorm:"column:sync_state;type:varchar(20);index;not null;default:pending_setup" json:"syncState"`
	SetupCompletedAt *time.Time     `gorm:"column:setup_completed_at;type:timestamp" json:"setupCompletedAt"`
	LastSyncAt       *time.Time     `gorm:"column:last_sync_at;type:timestamp" json:"lastSyncAt"`
	LastError        string         `gorm:"column:last_error;type:text" json:"lastError,omitempty"`

	// Progress counters for the current (or most recent) run
	ProcessedCount int `gorm:"column:processed_count;default:0" json:"processedCount"`
	TotalCount     int `gorm:"column:total_count;default:0" json:"totalCount"`

	// Opaque token handed to providers for push notifications
	WebhookClientState string `gorm:"column:webhook_client_state;type:varchar(64);uniqueIndex" json:"-"`

	Enabled bool `gorm:"column:enabled;default:true" json:"enabled"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	a.CreatedAt = utils.Now()
	return nil
}

// SetupConfirmed reports whether the user already confirmed the folder
// mappings for this account.
func (a *Account) SetupConfirmed() bool {
	return a.SetupCompletedAt != nil
}
