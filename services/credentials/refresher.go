package credentials

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/config"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

// ExpirySkew renews tokens slightly before their reported expiry so a
// token never dies mid-request.
const ExpirySkew = 2 * time.Minute

type Refresher struct {
	log         logger.Logger
	accountRepo interfaces.AccountRepository
	google      *oauth2.Config
	microsoft   *oauth2.Config
}

func NewRefresher(
	log logger.Logger,
	accountRepo interfaces.AccountRepository,
	googleCfg *config.GoogleOAuthConfig,
	microsoftCfg *config.MicrosoftOAuthConfig,
) interfaces.CredentialRefresher {
	return &Refresher{
		log:         log,
		accountRepo: accountRepo,
		google: &oauth2.Config{
			ClientID:     googleCfg.ClientID,
			ClientSecret: googleCfg.ClientSecret,
			Endpoint:     google.Endpoint,
		},
		microsoft: &oauth2.Config{
			ClientID:     microsoftCfg.ClientID,
			ClientSecret: microsoftCfg.ClientSecret,
			Endpoint:     microsoft.AzureADEndpoint(microsoftCfg.TenantID),
		},
	}
}

// NeedsRefresh reports whether the stored access token is expired or
// about to expire.
func NeedsRefresh(account *models.Account) bool {
	if !account.Provider.IsOAuth() {
		return false
	}
	if account.TokenExpiry == nil {
		return false
	}
	return time.Now().After(account.TokenExpiry.Add(-ExpirySkew))
}

// Refresh exchanges the stored refresh token for a new access token and
// persists the rotated credential. Password-authenticated IMAP accounts
// have nothing to refresh.
func (r *Refresher) Refresh(ctx context.Context, account *models.Account) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CredentialRefresher.Refresh")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagAccountId(span, account.ID)

	if !account.Provider.IsOAuth() {
		return nil
	}
	if account.RefreshToken == "" {
		err := errors.Wrap(er.ErrCredentialExpired, "no refresh token on file")
		tracing.TraceErr(span, err)
		return err
	}

	var oauthCfg *oauth2.Config
	switch account.Provider {
	case enum.ProviderGmail:
		oauthCfg = r.google
	case enum.ProviderOutlook:
		oauthCfg = r.microsoft
	default:
		return errors.Wrapf(er.ErrRefreshNotSupported, "provider %s", account.Provider)
	}

	stale := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
	}
	if account.TokenExpiry != nil {
		stale.Expiry = *account.TokenExpiry
	} else {
		// Force the token source to treat the token as expired.
		stale.Expiry = time.Now().Add(-time.Minute)
	}

	fresh, err := oauthCfg.TokenSource(ctx, stale).Token()
	if err != nil {
		wrapped := errors.Wrap(er.ErrCredentialExpired, err.Error())
		tracing.TraceErr(span, wrapped)
		return wrapped
	}

	err = r.accountRepo.SaveCredentials(ctx, account.ID, fresh.AccessToken, fresh.RefreshToken, utils.TimePtr(fresh.Expiry))
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	account.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		account.RefreshToken = fresh.RefreshToken
	}
	account.TokenExpiry = utils.TimePtr(fresh.Expiry)

	r.log.Infof("refreshed %s credentials for account %s", account.Provider, account.ID)
	return nil
}
