package providers

import (
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/services/providers/gmailprov"
	"github.com/inboxkit/mailsync/services/providers/imapprov"
	"github.com/inboxkit/mailsync/services/providers/outlookprov"
)

// Factory hands out the stateless adapter for an account's provider
// family. Adapters carry no per-account state, so one instance of each
// is shared.
type Factory struct {
	gmail   interfaces.ProviderClient
	outlook interfaces.ProviderClient
	imap    interfaces.ProviderClient
}

func NewFactory() interfaces.ProviderFactory {
	return &Factory{
		gmail:   gmailprov.NewAdapter(),
		outlook: outlookprov.NewAdapter(),
		imap:    imapprov.NewAdapter(),
	}
}

func (f *Factory) ClientFor(account *models.Account) (interfaces.ProviderClient, error) {
	switch account.Provider {
	case enum.ProviderGmail:
		return f.gmail, nil
	case enum.ProviderOutlook:
		return f.outlook, nil
	case enum.ProviderIMAP:
		return f.imap, nil
	default:
		return nil, errors.Wrapf(er.ErrProviderPermanent, "unknown provider %q", account.Provider)
	}
}
