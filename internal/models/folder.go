package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/utils"
)

// Folder is a provider-side mailbox container belonging to one Account.
type Folder struct {
	ID         string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID  string `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_folder_provider;not null" json:"accountId"`
	ProviderID string `gorm:"column:provider_id;type:varchar(255);uniqueIndex:idx_folder_provider;not null" json:"providerId"`
	Name       string `gorm:"column:name;type:varchar(255);not null" json:"name"`

	CanonicalType     enum.FolderType    `gorm:"column:canonical_type;type:varchar(20);index;not null" json:"canonicalType"`
	MappingConfidence float64            `gorm:"column:mapping_confidence;default:0" json:"mappingConfidence"`
	MappingSource     enum.MappingSource `gorm:"column:mapping_source;type:varchar(10);default:auto" json:"mappingSource"`

	SyncEnabled  bool `gorm:"column:sync_enabled;default:false" json:"syncEnabled"`
	MessageCount int  `gorm:"column:message_count;default:0" json:"messageCount"`
	UnreadCount  int  `gorm:"column:unread_count;default:0" json:"unreadCount"`

	// Opaque position marker: gmail historyId, graph timestamp, imap UID
	SyncCursor   string     `gorm:"column:sync_cursor;type:varchar(255)" json:"syncCursor"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at;type:timestamp" json:"lastSyncedAt"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Folder) TableName() string {
	return "folders"
}

func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = utils.GenerateNanoIDWithPrefix("fldr", 16)
	}
	f.CreatedAt = utils.Now()
	return nil
}
