package gmailprov

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

const pageSize = 100

// Adapter speaks the Gmail REST API. Labels play the role of folders
// and the history id is the incremental cursor.
type Adapter struct{}

func NewAdapter() interfaces.ProviderClient {
	return &Adapter{}
}

func (a *Adapter) Provider() enum.MailProvider {
	return enum.ProviderGmail
}

func (a *Adapter) RefreshSupported() bool {
	return true
}

func (a *Adapter) service(ctx context.Context, account *models.Account) (*gmail.Service, error) {
	token := &oauth2.Token{AccessToken: account.AccessToken}
	if account.TokenExpiry != nil {
		token.Expiry = *account.TokenExpiry
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.Wrap(er.ErrProviderTransient, err.Error())
	}
	return svc, nil
}

func (a *Adapter) ListFolders(ctx context.Context, account *models.Account) ([]interfaces.RemoteFolder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailAdapter.ListFolders")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)

	svc, err := a.service(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	resp, err := svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		classified := classify(err)
		tracing.TraceErr(span, classified)
		return nil, classified
	}

	folders := make([]interfaces.RemoteFolder, 0, len(resp.Labels))
	for _, label := range resp.Labels {
		// Category sub-labels are views over INBOX, not real folders.
		if strings.HasPrefix(label.Id, "CATEGORY_") {
			continue
		}
		folders = append(folders, interfaces.RemoteFolder{
			ProviderID:   label.Id,
			Name:         label.Name,
			Attributes:   labelAttributes(label.Id),
			MessageCount: int(label.MessagesTotal),
			UnreadCount:  int(label.MessagesUnread),
		})
	}

	return folders, nil
}

// labelAttributes translates well-known Gmail system label ids into the
// special-use tokens the folder mapper understands.
func labelAttributes(labelID string) []string {
	switch labelID {
	case "INBOX":
		return []string{"\\Inbox"}
	case "SENT":
		return []string{"\\Sent"}
	case "DRAFT":
		return []string{"\\Drafts"}
	case "TRASH":
		return []string{"\\Trash"}
	case "SPAM":
		return []string{"\\Junk"}
	}
	return nil
}

// FetchDelta lists messages for a label. With no cursor it pages through
// the label from scratch; with a history id cursor it replays history
// records. A 410/404 on the history call means the cursor aged out, so
// the adapter falls back to a full re-list, which the upsert layer makes
// safe.
func (a *Adapter) FetchDelta(ctx context.Context, account *models.Account, folder *models.Folder, cursor string) (*interfaces.Delta, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailAdapter.FetchDelta")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)
	span.SetTag("folder", folder.Name)

	svc, err := a.service(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if cursor == "" {
		return a.fullList(ctx, svc, folder)
	}

	startHistoryID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		// Corrupt cursor, start over.
		return a.fullList(ctx, svc, folder)
	}

	delta := &interfaces.Delta{TotalEstimate: folder.MessageCount}
	latestHistoryID := startHistoryID
	seen := make(map[string]bool)

	call := svc.Users.History.List("me").
		StartHistoryId(startHistoryID).
		LabelId(folder.ProviderID).
		MaxResults(pageSize)

	err = call.Pages(ctx, func(page *gmail.ListHistoryResponse) error {
		if page.HistoryId > latestHistoryID {
			latestHistoryID = page.HistoryId
		}
		for _, record := range page.History {
			if record.Id > latestHistoryID {
				latestHistoryID = record.Id
			}
			for _, added := range record.MessagesAdded {
				if seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true

				msg, err := a.fetchMessage(ctx, svc, added.Message.Id)
				if err != nil {
					return err
				}
				delta.Messages = append(delta.Messages, *msg)
			}
		}
		return nil
	})
	if err != nil {
		if isHistoryExpired(err) {
			span.LogKV("event", "history cursor expired, re-listing")
			return a.fullList(ctx, svc, folder)
		}
		classified := classify(err)
		tracing.TraceErr(span, classified)
		return nil, classified
	}

	delta.NextCursor = strconv.FormatUint(latestHistoryID, 10)
	return delta, nil
}

func (a *Adapter) fullList(ctx context.Context, svc *gmail.Service, folder *models.Folder) (*interfaces.Delta, error) {
	delta := &interfaces.Delta{TotalEstimate: folder.MessageCount}

	call := svc.Users.Messages.List("me").
		LabelIds(folder.ProviderID).
		IncludeSpamTrash(folder.CanonicalType == enum.FolderSpam || folder.CanonicalType == enum.FolderTrash).
		MaxResults(pageSize)

	err := call.Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		if page.ResultSizeEstimate > 0 {
			delta.TotalEstimate = int(page.ResultSizeEstimate)
		}
		for _, m := range page.Messages {
			msg, err := a.fetchMessage(ctx, svc, m.Id)
			if err != nil {
				return err
			}
			delta.Messages = append(delta.Messages, *msg)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	// The profile's history id becomes the incremental cursor.
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err == nil && profile.HistoryId != 0 {
		delta.NextCursor = strconv.FormatUint(profile.HistoryId, 10)
	}

	return delta, nil
}

func (a *Adapter) FetchFull(ctx context.Context, account *models.Account, providerMessageID string) (*interfaces.RemoteMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailAdapter.FetchFull")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)

	svc, err := a.service(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	msg, err := a.fetchMessage(ctx, svc, providerMessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return msg, nil
}

func (a *Adapter) fetchMessage(ctx context.Context, svc *gmail.Service, id string) (*interfaces.RemoteMessage, error) {
	m, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, classify(err)
	}
	return normalize(m), nil
}

func normalize(m *gmail.Message) *interfaces.RemoteMessage {
	headers := make(map[string]interface{})
	var subject, from, to, cc, bcc, dateHeader string
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			headers[h.Name] = h.Value
			switch strings.ToLower(h.Name) {
			case "subject":
				subject = h.Value
			case "from":
				from = h.Value
			case "to":
				to = h.Value
			case "cc":
				cc = h.Value
			case "bcc":
				bcc = h.Value
			case "date":
				dateHeader = h.Value
			}
		}
	}

	fromAddress, fromName := parseAddress(from)

	msg := &interfaces.RemoteMessage{
		ProviderMessageID: m.Id,
		ThreadID:          m.ThreadId,
		Subject:           subject,
		FromAddress:       fromAddress,
		FromName:          fromName,
		ToAddresses:       utils.SplitAddressList(to),
		CcAddresses:       utils.SplitAddressList(cc),
		BccAddresses:      utils.SplitAddressList(bcc),
		Headers:           headers,
	}

	if m.InternalDate > 0 {
		received := time.UnixMilli(m.InternalDate).UTC()
		msg.ReceivedAt = &received
	}
	if sent, err := time.Parse(time.RFC1123Z, dateHeader); err == nil {
		sentUTC := sent.UTC()
		msg.SentAt = &sentUTC
	}

	msg.IsRead = true
	for _, label := range m.LabelIds {
		switch label {
		case "UNREAD":
			msg.IsRead = false
		case "STARRED":
			msg.IsStarred = true
		case "DRAFT":
			msg.IsDraft = true
		}
	}

	if m.Payload != nil {
		collectParts(m.Payload, msg)
	}

	return msg
}

// collectParts walks the MIME tree picking out text bodies and
// attachment metadata.
func collectParts(part *gmail.MessagePart, msg *interfaces.RemoteMessage) {
	if part.Filename != "" {
		size := 0
		if part.Body != nil {
			size = int(part.Body.Size)
		}
		msg.Attachments = append(msg.Attachments, interfaces.RemoteAttachment{
			Filename:    part.Filename,
			ContentType: part.MimeType,
			Size:        size,
			IsInline:    hasHeader(part, "Content-ID"),
		})
	} else if part.Body != nil && part.Body.Data != "" {
		decoded, err := decodeBody(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/plain":
				if msg.BodyText == "" {
					msg.BodyText = string(decoded)
				}
			case "text/html":
				if msg.BodyHTML == "" {
					msg.BodyHTML = string(decoded)
				}
			}
		}
	}

	for _, child := range part.Parts {
		collectParts(child, msg)
	}
}

// decodeBody handles both padded and unpadded base64url, since Gmail
// omits padding on body data.
func decodeBody(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(data)
}

func hasHeader(part *gmail.MessagePart, name string) bool {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// parseAddress splits `Name <addr>` into its parts.
func parseAddress(raw string) (address, name string) {
	raw = strings.TrimSpace(raw)
	if open := strings.LastIndex(raw, "<"); open >= 0 {
		close := strings.LastIndex(raw, ">")
		if close > open {
			address = strings.TrimSpace(raw[open+1 : close])
			name = strings.Trim(strings.TrimSpace(raw[:open]), "\"")
			return address, name
		}
	}
	return raw, ""
}

func isHistoryExpired(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

// classify maps Gmail wire errors onto the shared provider taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return errors.Wrap(er.ErrCredentialExpired, apiErr.Message)
		case apiErr.Code == http.StatusTooManyRequests:
			return errors.Wrap(er.ErrProviderRateLimited, apiErr.Message)
		case apiErr.Code >= 500:
			return errors.Wrap(er.ErrProviderTransient, apiErr.Message)
		case apiErr.Code == http.StatusForbidden:
			// Gmail reports quota exhaustion as 403 with a rate reason.
			if strings.Contains(strings.ToLower(apiErr.Message), "rate") ||
				strings.Contains(strings.ToLower(apiErr.Message), "quota") {
				return errors.Wrap(er.ErrProviderRateLimited, apiErr.Message)
			}
			return errors.Wrap(er.ErrProviderPermanent, apiErr.Message)
		default:
			return errors.Wrap(er.ErrProviderPermanent, apiErr.Message)
		}
	}

	// Network-level failures are worth retrying.
	return errors.Wrap(er.ErrProviderTransient, fmt.Sprintf("gmail: %v", err))
}
