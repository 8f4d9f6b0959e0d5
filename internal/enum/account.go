package enum

type MailProvider string

const (
	ProviderGmail   MailProvider = "gmail"
	ProviderOutlook MailProvider = "outlook"
	ProviderIMAP    MailProvider = "imap"
)

func (t MailProvider) String() string {
	return string(t)
}

// IsOAuth reports whether the provider authenticates with OAuth tokens
// rather than a username/password pair.
func (t MailProvider) IsOAuth() bool {
	return t == ProviderGmail || t == ProviderOutlook
}

// DecodeMailProvider parses a wire value; unknown inputs map to "".
func DecodeMailProvider(s string) MailProvider {
	switch MailProvider(s) {
	case ProviderGmail, ProviderOutlook, ProviderIMAP:
		return MailProvider(s)
	default:
		return ""
	}
}

type SyncState string

const (
	SyncStateIdle         SyncState = "idle"
	SyncStateSyncing      SyncState = "syncing"
	SyncStateError        SyncState = "error"
	SyncStatePendingSetup SyncState = "pending_setup"
)

func (t SyncState) String() string {
	return string(t)
}

type SyncTrigger string

const (
	TriggerManual    SyncTrigger = "manual"
	TriggerScheduled SyncTrigger = "scheduled"
	TriggerWebhook   SyncTrigger = "webhook"
)

func (t SyncTrigger) String() string {
	return string(t)
}

type SyncRunStatus string

const (
	RunStatusRunning   SyncRunStatus = "running"
	RunStatusCompleted SyncRunStatus = "completed"
	RunStatusFailed    SyncRunStatus = "failed"
)

func (t SyncRunStatus) String() string {
	return string(t)
}
