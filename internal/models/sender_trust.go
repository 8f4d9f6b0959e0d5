package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/utils"
)

// SenderTrust is the per (user, sender address) screening verdict. It is
// created lazily on the first screening decision and overwritten on
// reclassification, never auto-deleted.
type SenderTrust struct {
	ID            string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID        string            `gorm:"column:user_id;type:varchar(50);uniqueIndex:idx_user_sender;not null" json:"userId"`
	SenderAddress string            `gorm:"column:sender_address;type:varchar(255);uniqueIndex:idx_user_sender;not null" json:"senderAddress"`
	Verdict       enum.TrustVerdict `gorm:"column:verdict;type:varchar(10);not null" json:"verdict"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (SenderTrust) TableName() string {
	return "sender_trusts"
}

func (s *SenderTrust) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("trust", 16)
	}
	s.CreatedAt = utils.Now()
	return nil
}
