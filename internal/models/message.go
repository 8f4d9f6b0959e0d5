package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/utils"
)

// Message is the normalized email record produced by the sync pipeline.
// (account_id, provider_message_id) is unique so re-syncing the same
// delta upserts instead of duplicating.
type Message struct {
	ID                string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID         string `gorm:"column:account_id;type:varchar(50);uniqueIndex:idx_account_provider_message;not null" json:"accountId"`
	FolderID          string `gorm:"column:folder_id;type:varchar(50);index" json:"folderId"`
	ProviderMessageID string `gorm:"column:provider_message_id;type:varchar(255);uniqueIndex:idx_account_provider_message;not null" json:"providerMessageId"`
	ThreadID          string `gorm:"column:thread_id;type:varchar(255);index" json:"threadId"`

	// Envelope
	Subject      string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	FromAddress  string         `gorm:"column:from_address;type:varchar(255);index" json:"fromAddress"`
	FromName     string         `gorm:"column:from_name;type:varchar(255)" json:"fromName"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]" json:"toAddresses"`
	CcAddresses  pq.StringArray `gorm:"column:cc_addresses;type:text[]" json:"ccAddresses"`
	BccAddresses pq.StringArray `gorm:"column:bcc_addresses;type:text[]" json:"bccAddresses"`

	// Content
	BodyText string `gorm:"column:body_text;type:text" json:"bodyText"`
	BodyHTML string `gorm:"column:body_html;type:text" json:"bodyHtml"`

	SentAt     *time.Time `gorm:"column:sent_at;type:timestamp;index" json:"sentAt"`
	ReceivedAt *time.Time `gorm:"column:received_at;type:timestamp;index" json:"receivedAt"`

	// Flags
	IsRead    bool `gorm:"column:is_read;default:false" json:"isRead"`
	IsStarred bool `gorm:"column:is_starred;default:false" json:"isStarred"`
	IsTrashed bool `gorm:"column:is_trashed;default:false" json:"isTrashed"`
	IsDraft   bool `gorm:"column:is_draft;default:false" json:"isDraft"`

	Category enum.MessageCategory `gorm:"column:category;type:varchar(20);index" json:"category"`

	HasAttachment   bool `gorm:"column:has_attachment;default:false" json:"hasAttachment"`
	AttachmentCount int  `gorm:"column:attachment_count;default:0" json:"attachmentCount"`

	RawHeaders JSONMap `gorm:"column:raw_headers;type:jsonb" json:"-"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	m.CreatedAt = utils.Now()
	return nil
}
