package errors

import "github.com/pkg/errors"

var (
	// caller errors
	ErrAccountNotFound = errors.New("account not found")
	ErrNotOwned        = errors.New("account not owned by caller")
	ErrAlreadySyncing  = errors.New("sync already in progress")

	// provider errors, classified at the adapter boundary
	ErrCredentialExpired   = errors.New("provider credential expired")
	ErrProviderRateLimited = errors.New("provider rate limited")
	ErrProviderTransient   = errors.New("provider transient error")
	ErrProviderPermanent   = errors.New("provider permanent error")

	// storage errors are never swallowed; they abort the current folder
	ErrStorage = errors.New("storage error")

	ErrRefreshNotSupported = errors.New("credential refresh not supported for provider")
)

// IsRetryable reports whether the orchestrator should retry the failed
// provider call with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderRateLimited) || errors.Is(err, ErrProviderTransient)
}
