package interfaces

import (
	"context"

	"github.com/inboxkit/mailsync/internal/enum"
)

// SyncStatus is the read-model returned to status queries. It is
// computed from persisted counters only and never blocks on the network.
type SyncStatus struct {
	State         enum.SyncState `json:"state"`
	Processed     int            `json:"processed"`
	Total         int            `json:"total"`
	Percent       float64        `json:"percent"`
	CurrentFolder string         `json:"currentFolder,omitempty"`
	Speed         float64        `json:"speed"`
	ETA           string         `json:"eta"`
	LastError     string         `json:"lastError,omitempty"`
}

// SyncOrchestrator owns the per-account synchronization state machine.
type SyncOrchestrator interface {
	TriggerSync(ctx context.Context, userID, accountID string, trigger enum.SyncTrigger) (string, error)
	GetStatus(ctx context.Context, userID, accountID string) (*SyncStatus, error)
}

// EventPublisher fans normalized-message events out to downstream
// consumers. Implementations must be safe for concurrent use.
type EventPublisher interface {
	PublishEmailIngested(ctx context.Context, accountID, messageID string) error
	Close() error
}

// StorageService stores attachment blobs in object storage.
type StorageService interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
}
