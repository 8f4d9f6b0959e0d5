package interfaces

import (
	"context"
	"time"

	"github.com/inboxkit/mailsync/internal/enum"
	"github.com/inboxkit/mailsync/internal/models"
)

// RemoteFolder is a provider-native folder as returned by a listing call,
// before the folder mapper assigns a canonical type.
type RemoteFolder struct {
	ProviderID   string
	Name         string
	Attributes   []string // IMAP special-use flags or provider role hints
	MessageCount int
	UnreadCount  int
}

// RemoteAttachment carries attachment metadata and, when the provider
// returned it inline, the content bytes.
type RemoteAttachment struct {
	Filename    string
	ContentType string
	Size        int
	IsInline    bool
	Content     []byte
}

// RemoteMessage is the provider-agnostic shape every adapter normalizes
// its wire format into.
type RemoteMessage struct {
	ProviderMessageID string
	ThreadID          string
	Subject           string
	FromAddress       string
	FromName          string
	ToAddresses       []string
	CcAddresses       []string
	BccAddresses      []string
	BodyText          string
	BodyHTML          string
	SentAt            *time.Time
	ReceivedAt        *time.Time
	IsRead            bool
	IsStarred         bool
	IsDraft           bool
	Headers           map[string]interface{}
	Attachments       []RemoteAttachment
}

// Delta is the set of provider-side changes since a cursor.
type Delta struct {
	Messages []RemoteMessage
	// NextCursor replaces the stored cursor once every message in the
	// delta is durably committed. Empty means the cursor is unchanged.
	NextCursor string
	// TotalEstimate is the provider-reported (or guessed) total used for
	// progress reporting; 0 when unknown.
	TotalEstimate int
}

// ProviderClient translates one provider family's native calls into the
// common sync interface consumed by the orchestrator. Implementations
// classify wire errors into the typed failures of internal/errors before
// returning them.
type ProviderClient interface {
	Provider() enum.MailProvider
	ListFolders(ctx context.Context, account *models.Account) ([]RemoteFolder, error)
	FetchDelta(ctx context.Context, account *models.Account, folder *models.Folder, cursor string) (*Delta, error)
	FetchFull(ctx context.Context, account *models.Account, providerMessageID string) (*RemoteMessage, error)
	// RefreshSupported reports whether RefreshCredential can do anything
	// for this family (false for password-authenticated IMAP).
	RefreshSupported() bool
}

// ProviderFactory builds the right adapter for an account's provider.
type ProviderFactory interface {
	ClientFor(account *models.Account) (ProviderClient, error)
}

// CredentialRefresher renews expired OAuth tokens and persists the
// rotated credential material.
type CredentialRefresher interface {
	Refresh(ctx context.Context, account *models.Account) error
}
