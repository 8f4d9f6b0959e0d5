package outlookprov

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	graphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
)

const pageSize = int32(100)

// Adapter speaks Microsoft Graph. Folders map one-to-one and the cursor
// is the receivedDateTime of the newest message seen, RFC3339 encoded.
type Adapter struct{}

func NewAdapter() interfaces.ProviderClient {
	return &Adapter{}
}

func (a *Adapter) Provider() enum.MailProvider {
	return enum.ProviderOutlook
}

func (a *Adapter) RefreshSupported() bool {
	return true
}

// staticTokenCredential hands the stored access token to the Graph SDK.
type staticTokenCredential struct {
	token string
}

func (c *staticTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.token,
		ExpiresOn: time.Now().Add(1 * time.Hour),
	}, nil
}

func (a *Adapter) client(account *models.Account) (*msgraphsdk.GraphServiceClient, error) {
	cred := &staticTokenCredential{token: account.AccessToken}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{})
	if err != nil {
		return nil, errors.Wrap(er.ErrProviderTransient, err.Error())
	}
	return client, nil
}

func (a *Adapter) ListFolders(ctx context.Context, account *models.Account) ([]interfaces.RemoteFolder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OutlookAdapter.ListFolders")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)

	client, err := a.client(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	requestConfig := &users.ItemMailFoldersRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMailFoldersRequestBuilderGetQueryParameters{
			Top: int32Ptr(pageSize),
		},
	}

	result, err := client.Me().MailFolders().Get(ctx, requestConfig)
	if err != nil {
		classified := classify(err)
		tracing.TraceErr(span, classified)
		return nil, classified
	}

	var folders []interfaces.RemoteFolder
	for _, f := range result.GetValue() {
		folders = append(folders, normalizeFolder(f))
	}

	return folders, nil
}

func normalizeFolder(f graphmodels.MailFolderable) interfaces.RemoteFolder {
	folder := interfaces.RemoteFolder{}
	if id := f.GetId(); id != nil {
		folder.ProviderID = *id
	}
	if name := f.GetDisplayName(); name != nil {
		folder.Name = *name
		folder.Attributes = roleAttributes(*name)
	}
	if total := f.GetTotalItemCount(); total != nil {
		folder.MessageCount = int(*total)
	}
	if unread := f.GetUnreadItemCount(); unread != nil {
		folder.UnreadCount = int(*unread)
	}
	return folder
}

// roleAttributes maps Graph's well-known folder names onto the
// special-use tokens the folder mapper prefers over name rules.
func roleAttributes(displayName string) []string {
	switch displayName {
	case "Inbox":
		return []string{"\\Inbox"}
	case "Sent Items":
		return []string{"\\Sent"}
	case "Drafts":
		return []string{"\\Drafts"}
	case "Deleted Items":
		return []string{"\\Trash"}
	case "Junk Email":
		return []string{"\\Junk"}
	case "Archive":
		return []string{"\\Archive"}
	}
	return nil
}

func (a *Adapter) FetchDelta(ctx context.Context, account *models.Account, folder *models.Folder, cursor string) (*interfaces.Delta, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OutlookAdapter.FetchDelta")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)
	span.SetTag("folder", folder.Name)

	client, err := a.client(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	queryParams := &users.ItemMailFoldersItemMessagesRequestBuilderGetQueryParameters{
		Top:     int32Ptr(pageSize),
		Orderby: []string{"receivedDateTime asc"},
		Select: []string{
			"id", "conversationId", "subject", "from", "toRecipients",
			"ccRecipients", "bccRecipients", "body", "receivedDateTime",
			"sentDateTime", "isRead", "isDraft", "hasAttachments", "flag",
		},
	}
	queryParams.Filter = deltaFilter(cursor)

	requestConfig := &users.ItemMailFoldersItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: queryParams,
	}

	result, err := client.Me().MailFolders().ByMailFolderId(folder.ProviderID).Messages().Get(ctx, requestConfig)
	if err != nil {
		classified := classify(err)
		tracing.TraceErr(span, classified)
		return nil, classified
	}

	delta := &interfaces.Delta{
		NextCursor:    cursor,
		TotalEstimate: folder.MessageCount,
	}

	// Follow nextLink until the window is exhausted; stopping early would
	// advance the cursor past messages never handed to the ingest layer.
	for {
		appendPage(delta, result)

		nextLink := result.GetOdataNextLink()
		if nextLink == nil || *nextLink == "" {
			break
		}
		result, err = users.NewItemMailFoldersItemMessagesRequestBuilder(*nextLink, client.GetAdapter()).Get(ctx, nil)
		if err != nil {
			classified := classify(err)
			tracing.TraceErr(span, classified)
			return nil, classified
		}
	}

	return delta, nil
}

// deltaFilter builds the receivedDateTime window for an incremental
// fetch. The comparison is ge rather than gt: the cursor only carries
// second precision, so the boundary second is refetched and the upsert
// layer dedups the overlap.
func deltaFilter(cursor string) *string {
	if cursor == "" {
		return nil
	}
	since, err := time.Parse(time.RFC3339, cursor)
	if err != nil {
		return nil
	}
	return stringPtr(fmt.Sprintf("receivedDateTime ge %s", since.UTC().Format(time.RFC3339)))
}

// appendPage folds one result page into the delta, advancing the cursor
// to the newest receivedDateTime seen.
func appendPage(delta *interfaces.Delta, page graphmodels.MessageCollectionResponseable) {
	for _, m := range page.GetValue() {
		msg := normalizeMessage(m)
		delta.Messages = append(delta.Messages, *msg)
		if msg.ReceivedAt != nil {
			delta.NextCursor = msg.ReceivedAt.Format(time.RFC3339)
		}
	}
}

func (a *Adapter) FetchFull(ctx context.Context, account *models.Account, providerMessageID string) (*interfaces.RemoteMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OutlookAdapter.FetchFull")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)

	client, err := a.client(account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	m, err := client.Me().Messages().ByMessageId(providerMessageID).Get(ctx, nil)
	if err != nil {
		classified := classify(err)
		tracing.TraceErr(span, classified)
		return nil, classified
	}

	return normalizeMessage(m), nil
}

func normalizeMessage(m graphmodels.Messageable) *interfaces.RemoteMessage {
	msg := &interfaces.RemoteMessage{
		Headers: make(map[string]interface{}),
	}

	if id := m.GetId(); id != nil {
		msg.ProviderMessageID = *id
	}
	if convID := m.GetConversationId(); convID != nil {
		msg.ThreadID = *convID
	}
	if subject := m.GetSubject(); subject != nil {
		msg.Subject = *subject
	}
	if from := m.GetFrom(); from != nil {
		if emailAddr := from.GetEmailAddress(); emailAddr != nil {
			if addr := emailAddr.GetAddress(); addr != nil {
				msg.FromAddress = *addr
			}
			if name := emailAddr.GetName(); name != nil {
				msg.FromName = *name
			}
		}
	}
	msg.ToAddresses = extractAddresses(m.GetToRecipients())
	msg.CcAddresses = extractAddresses(m.GetCcRecipients())
	msg.BccAddresses = extractAddresses(m.GetBccRecipients())

	if body := m.GetBody(); body != nil && body.GetContent() != nil {
		content := *body.GetContent()
		if bodyType := body.GetContentType(); bodyType != nil && *bodyType == graphmodels.TEXT_BODYTYPE {
			msg.BodyText = content
		} else {
			msg.BodyHTML = content
		}
	}

	if rcvd := m.GetReceivedDateTime(); rcvd != nil {
		received := rcvd.UTC()
		msg.ReceivedAt = &received
	}
	if sent := m.GetSentDateTime(); sent != nil {
		sentAt := sent.UTC()
		msg.SentAt = &sentAt
	}
	if isRead := m.GetIsRead(); isRead != nil {
		msg.IsRead = *isRead
	}
	if isDraft := m.GetIsDraft(); isDraft != nil {
		msg.IsDraft = *isDraft
	}
	if flag := m.GetFlag(); flag != nil {
		if status := flag.GetFlagStatus(); status != nil && *status == graphmodels.FLAGGED_FOLLOWUPFLAGSTATUS {
			msg.IsStarred = true
		}
	}

	for _, h := range m.GetInternetMessageHeaders() {
		if name := h.GetName(); name != nil {
			if value := h.GetValue(); value != nil {
				msg.Headers[*name] = *value
			}
		}
	}

	return msg
}

func extractAddresses(recipients []graphmodels.Recipientable) []string {
	var addrs []string
	for _, r := range recipients {
		if emailAddr := r.GetEmailAddress(); emailAddr != nil {
			if addr := emailAddr.GetAddress(); addr != nil {
				addrs = append(addrs, *addr)
			}
		}
	}
	return addrs
}

// classify maps Graph OData errors onto the shared provider taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		message := odataErr.Error()
		switch {
		case odataErr.ResponseStatusCode == http.StatusUnauthorized:
			return errors.Wrap(er.ErrCredentialExpired, message)
		case odataErr.ResponseStatusCode == http.StatusTooManyRequests:
			return errors.Wrap(er.ErrProviderRateLimited, message)
		case odataErr.ResponseStatusCode >= 500:
			return errors.Wrap(er.ErrProviderTransient, message)
		default:
			return errors.Wrap(er.ErrProviderPermanent, message)
		}
	}

	return errors.Wrap(er.ErrProviderTransient, fmt.Sprintf("graph: %v", err))
}

func int32Ptr(i int32) *int32 {
	return &i
}

func stringPtr(s string) *string {
	return &s
}
