package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/utils"
)

// SyncRun records one orchestration pass for an Account. Runs are kept
// for a bounded window for diagnostics and pruned by a cron job.
type SyncRun struct {
	ID        string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string             `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`
	Trigger   enum.SyncTrigger   `gorm:"column:trigger;type:varchar(20);not null" json:"trigger"`
	Status    enum.SyncRunStatus `gorm:"column:status;type:varchar(20);index;not null" json:"status"`

	StartedAt   time.Time  `gorm:"column:started_at;type:timestamp;not null" json:"startedAt"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamp" json:"completedAt"`

	ProcessedCount int    `gorm:"column:processed_count;default:0" json:"processedCount"`
	TotalCount     int    `gorm:"column:total_count;default:0" json:"totalCount"`
	CurrentFolder  string `gorm:"column:current_folder;type:varchar(255)" json:"currentFolder"`
	Error          string `gorm:"column:error;type:text" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}

func (r *SyncRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = utils.GenerateNanoIDWithPrefix("run", 16)
	}
	r.CreatedAt = utils.Now()
	return nil
}
