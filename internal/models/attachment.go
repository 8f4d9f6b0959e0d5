package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/internal/utils"
)

// Attachment is the per-file summary kept for a message. The blob itself
// lives in object storage when a bucket is configured; otherwise only the
// metadata is retained.
type Attachment struct {
	ID          string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MessageID   string `gorm:"column:message_id;type:varchar(50);index;not null" json:"messageId"`
	Filename    string `gorm:"column:filename;type:varchar(500)" json:"filename"`
	ContentType string `gorm:"column:content_type;type:varchar(255)" json:"contentType"`
	Size        int    `gorm:"column:size;default:0" json:"size"`
	IsInline    bool   `gorm:"column:is_inline;default:false" json:"isInline"`

	StorageBucket string `gorm:"column:storage_bucket;type:varchar(255)" json:"-"`
	StorageKey    string `gorm:"column:storage_key;type:varchar(1000)" json:"-"`
	ContentHash   string `gorm:"column:content_hash;type:varchar(64);index" json:"contentHash"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Attachment) TableName() string {
	return "attachments"
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	a.CreatedAt = utils.Now()
	return nil
}
