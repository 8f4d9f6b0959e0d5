package imapprov

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

const (
	dialTimeout    = 30 * time.Second
	commandTimeout = 60 * time.Second
	fetchBatchSize = 50
)

// Adapter speaks raw IMAP. Each call dials, logs in, and logs out again;
// the per-folder cursor is the highest UID seen, as a decimal string.
// Message ids are "<folder>:<uid>", unique within an account because
// UIDs are per-mailbox.
type Adapter struct{}

func NewAdapter() interfaces.ProviderClient {
	return &Adapter{}
}

func (a *Adapter) Provider() enum.MailProvider {
	return enum.ProviderIMAP
}

func (a *Adapter) RefreshSupported() bool {
	return false
}

func (a *Adapter) connect(ctx context.Context, account *models.Account) (*client.Client, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPAdapter.connect")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	span.SetTag("server", account.ImapServer)

	serverAddr := fmt.Sprintf("%s:%d", account.ImapServer, account.ImapPort)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error
	if account.ImapTLS {
		tlsConfig := &tls.Config{ServerName: account.ImapServer}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		wrapped := errors.Wrapf(er.ErrProviderTransient, "failed to connect to %s: %v", serverAddr, err)
		tracing.TraceErr(span, wrapped)
		return nil, wrapped
	}

	c.Timeout = dialTimeout
	err = c.Login(account.ImapUsername, account.ImapPassword)
	if err != nil {
		c.Logout()
		wrapped := errors.Wrapf(er.ErrCredentialExpired, "login failed for %s: %v", account.ImapUsername, err)
		tracing.TraceErr(span, wrapped)
		return nil, wrapped
	}
	c.Timeout = 0

	return c, nil
}

func (a *Adapter) ListFolders(ctx context.Context, account *models.Account) ([]interfaces.RemoteFolder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPAdapter.ListFolders")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)

	c, err := a.connect(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer c.Logout()

	mailboxes := make(chan *imap.MailboxInfo, 20)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	var infos []*imap.MailboxInfo
	for m := range mailboxes {
		infos = append(infos, m)
	}
	if err := <-done; err != nil {
		wrapped := errors.Wrap(er.ErrProviderTransient, err.Error())
		tracing.TraceErr(span, wrapped)
		return nil, wrapped
	}

	var folders []interfaces.RemoteFolder
	for _, info := range infos {
		if hasAttribute(info.Attributes, imap.NoSelectAttr) {
			continue
		}

		folder := interfaces.RemoteFolder{
			ProviderID: info.Name,
			Name:       info.Name,
			Attributes: info.Attributes,
		}

		c.Timeout = commandTimeout
		status, err := c.Status(info.Name, []imap.StatusItem{imap.StatusMessages, imap.StatusUnseen})
		c.Timeout = 0
		if err == nil {
			folder.MessageCount = int(status.Messages)
			folder.UnreadCount = int(status.Unseen)
		}

		folders = append(folders, folder)
	}

	return folders, nil
}

func (a *Adapter) FetchDelta(ctx context.Context, account *models.Account, folder *models.Folder, cursor string) (*interfaces.Delta, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPAdapter.FetchDelta")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)
	span.SetTag("folder", folder.Name)

	c, err := a.connect(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(folder.ProviderID, true)
	if err != nil {
		wrapped := errors.Wrapf(er.ErrProviderPermanent, "cannot select %s: %v", folder.ProviderID, err)
		tracing.TraceErr(span, wrapped)
		return nil, wrapped
	}

	lastUID := parseCursor(cursor)

	criteria := imap.NewSearchCriteria()
	if lastUID > 0 {
		seq := new(imap.SeqSet)
		seq.AddRange(lastUID+1, 0)
		criteria.Uid = seq
	}

	c.Timeout = commandTimeout
	uids, err := c.UidSearch(criteria)
	c.Timeout = 0
	if err != nil {
		wrapped := errors.Wrap(er.ErrProviderTransient, err.Error())
		tracing.TraceErr(span, wrapped)
		return nil, wrapped
	}

	delta := &interfaces.Delta{
		NextCursor:    cursor,
		TotalEstimate: int(mbox.Messages),
	}
	if len(uids) == 0 {
		return delta, nil
	}

	sort.SliceStable(uids, func(i, j int) bool { return uids[i] < uids[j] })
	// UidSearch with a range can still echo back already-seen UIDs on
	// some servers; drop them.
	filtered := uids[:0]
	for _, uid := range uids {
		if uid > lastUID {
			filtered = append(filtered, uid)
		}
	}
	uids = filtered

	for start := 0; start < len(uids); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		batch, err := a.fetchBatch(ctx, c, folder.ProviderID, uids[start:end])
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		delta.Messages = append(delta.Messages, batch...)
	}

	delta.NextCursor = strconv.FormatUint(uint64(uids[len(uids)-1]), 10)
	return delta, nil
}

func (a *Adapter) fetchBatch(ctx context.Context, c *client.Client, folderName string, uids []uint32) ([]interfaces.RemoteMessage, error) {
	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		seqSet.AddNum(uid)
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	c.Timeout = commandTimeout
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var result []interfaces.RemoteMessage
	for m := range messages {
		select {
		case <-ctx.Done():
			continue
		default:
		}
		result = append(result, normalize(m, folderName, section))
	}
	c.Timeout = 0

	if err := <-done; err != nil {
		return nil, errors.Wrap(er.ErrProviderTransient, err.Error())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (a *Adapter) FetchFull(ctx context.Context, account *models.Account, providerMessageID string) (*interfaces.RemoteMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPAdapter.FetchFull")
	defer span.Finish()
	tracing.TagComponentProviderAdapter(span)
	tracing.TagAccountId(span, account.ID)

	folderName, uid, err := splitMessageID(providerMessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	c, err := a.connect(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(folderName, true); err != nil {
		wrapped := errors.Wrapf(er.ErrProviderPermanent, "cannot select %s: %v", folderName, err)
		tracing.TraceErr(span, wrapped)
		return nil, wrapped
	}

	batch, err := a.fetchBatch(ctx, c, folderName, []uint32{uid})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(batch) == 0 {
		return nil, errors.Wrapf(er.ErrProviderPermanent, "message %s not found", providerMessageID)
	}

	return &batch[0], nil
}

func normalize(m *imap.Message, folderName string, section *imap.BodySectionName) interfaces.RemoteMessage {
	msg := interfaces.RemoteMessage{
		ProviderMessageID: fmt.Sprintf("%s:%d", folderName, m.Uid),
		Headers:           make(map[string]interface{}),
	}

	if env := m.Envelope; env != nil {
		msg.Subject = env.Subject
		msg.Headers["Message-ID"] = env.MessageId
		if !env.Date.IsZero() {
			sent := env.Date.UTC()
			msg.SentAt = &sent
			msg.ReceivedAt = &sent
		}
		if len(env.From) > 0 {
			msg.FromAddress = env.From[0].Address()
			msg.FromName = env.From[0].PersonalName
		}
		msg.ToAddresses = addressList(env.To)
		msg.CcAddresses = addressList(env.Cc)
		msg.BccAddresses = addressList(env.Bcc)
	}

	msg.IsRead = hasFlag(m.Flags, imap.SeenFlag)
	msg.IsStarred = hasFlag(m.Flags, imap.FlaggedFlag)
	msg.IsDraft = hasFlag(m.Flags, imap.DraftFlag)

	if body := m.GetBody(section); body != nil {
		envelope, err := enmime.ReadEnvelope(body)
		if err == nil {
			msg.BodyText = envelope.Text
			msg.BodyHTML = envelope.HTML
			for _, key := range envelope.GetHeaderKeys() {
				msg.Headers[key] = envelope.GetHeader(key)
			}
			for _, att := range envelope.Attachments {
				msg.Attachments = append(msg.Attachments, interfaces.RemoteAttachment{
					Filename:    att.FileName,
					ContentType: att.ContentType,
					Size:        len(att.Content),
					Content:     att.Content,
				})
			}
			for _, inline := range envelope.Inlines {
				if inline.FileName == "" {
					continue
				}
				msg.Attachments = append(msg.Attachments, interfaces.RemoteAttachment{
					Filename:    inline.FileName,
					ContentType: inline.ContentType,
					Size:        len(inline.Content),
					IsInline:    true,
					Content:     inline.Content,
				})
			}
		}
	}

	return msg
}

func addressList(addrs []*imap.Address) []string {
	var out []string
	for _, a := range addrs {
		addr := a.Address()
		if addr != "" && addr != "@" {
			out = append(out, utils.NormalizeEmailAddress(addr))
		}
	}
	return out
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func hasAttribute(attributes []string, attr string) bool {
	for _, a := range attributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

func parseCursor(cursor string) uint32 {
	if cursor == "" {
		return 0
	}
	uid, err := strconv.ParseUint(cursor, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(uid)
}

func splitMessageID(id string) (string, uint32, error) {
	idx := strings.LastIndex(id, ":")
	if idx <= 0 {
		return "", 0, errors.Wrapf(er.ErrProviderPermanent, "malformed message id %q", id)
	}
	uid, err := strconv.ParseUint(id[idx+1:], 10, 32)
	if err != nil {
		return "", 0, errors.Wrapf(er.ErrProviderPermanent, "malformed message id %q", id)
	}
	return id[:idx], uint32(uid), nil
}
