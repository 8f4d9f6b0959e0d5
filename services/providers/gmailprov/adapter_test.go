package gmailprov

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	er "github.com/inboxkit/mailsync/internal/errors"
)

func TestLabelAttributes(t *testing.T) {
	cases := []struct {
		labelID string
		want    []string
	}{
		{"INBOX", []string{"\\Inbox"}},
		{"SENT", []string{"\\Sent"}},
		{"DRAFT", []string{"\\Drafts"}},
		{"TRASH", []string{"\\Trash"}},
		{"SPAM", []string{"\\Junk"}},
		{"Label_42", nil},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, labelAttributes(c.labelID), "label %q", c.labelID)
	}
}

func apiError(code int, message string) error {
	return &googleapi.Error{Code: code, Message: message}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", apiError(http.StatusUnauthorized, "invalid credentials"), er.ErrCredentialExpired},
		{"throttled", apiError(http.StatusTooManyRequests, "slow down"), er.ErrProviderRateLimited},
		{"server error", apiError(http.StatusServiceUnavailable, "backend error"), er.ErrProviderTransient},
		{"quota exhausted", apiError(http.StatusForbidden, "User-rate limit exceeded"), er.ErrProviderRateLimited},
		{"forbidden", apiError(http.StatusForbidden, "insufficient scope"), er.ErrProviderPermanent},
		{"bad request", apiError(http.StatusBadRequest, "invalid query"), er.ErrProviderPermanent},
		{"network failure", errors.New("connection refused"), er.ErrProviderTransient},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(c.err), c.want)
		})
	}
}

func TestIsHistoryExpired(t *testing.T) {
	assert.True(t, isHistoryExpired(apiError(http.StatusNotFound, "history not found")))
	assert.True(t, isHistoryExpired(apiError(http.StatusGone, "history expired")))
	assert.False(t, isHistoryExpired(apiError(http.StatusTooManyRequests, "slow down")))
	assert.False(t, isHistoryExpired(errors.New("connection refused")))
}

func TestDecodeBody(t *testing.T) {
	t.Run("padded base64url", func(t *testing.T) {
		decoded, err := decodeBody(base64.URLEncoding.EncodeToString([]byte("hello world")))
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(decoded))
	})

	t.Run("unpadded base64url", func(t *testing.T) {
		// Gmail omits padding on message bodies.
		decoded, err := decodeBody(base64.RawURLEncoding.EncodeToString([]byte("hello world")))
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(decoded))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := decodeBody("%%%not-base64%%%")
		assert.Error(t, err)
	})
}

func TestCollectParts_UnpaddedBody(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{
				MimeType: "text/plain",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("plain body"))},
			},
			{
				MimeType: "text/html",
				Body:     &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("<p>html body</p>"))},
			},
		},
	}

	msg := normalize(&gmail.Message{Id: "m1", Payload: payload})

	assert.Equal(t, "plain body", msg.BodyText)
	assert.Equal(t, "<p>html body</p>", msg.BodyHTML)
}

func TestCollectParts_Attachments(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmail.MessagePart{
			{
				Filename: "invoice.pdf",
				MimeType: "application/pdf",
				Body:     &gmail.MessagePartBody{Size: 1024},
			},
			{
				Filename: "logo.png",
				MimeType: "image/png",
				Body:     &gmail.MessagePartBody{Size: 512},
				Headers:  []*gmail.MessagePartHeader{{Name: "Content-ID", Value: "<logo>"}},
			},
		},
	}

	msg := normalize(&gmail.Message{Id: "m1", Payload: payload})

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "invoice.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, 1024, msg.Attachments[0].Size)
	assert.False(t, msg.Attachments[0].IsInline)
	assert.True(t, msg.Attachments[1].IsInline)
}

func TestParseAddress(t *testing.T) {
	addr, name := parseAddress(`"Ada Lovelace" <ada@example.com>`)
	assert.Equal(t, "ada@example.com", addr)
	assert.Equal(t, "Ada Lovelace", name)

	addr, name = parseAddress("bare@example.com")
	assert.Equal(t, "bare@example.com", addr)
	assert.Empty(t, name)
}

func TestNormalize_ReadAndFlagLabels(t *testing.T) {
	msg := normalize(&gmail.Message{Id: "m1", LabelIds: []string{"UNREAD", "STARRED"}})
	assert.False(t, msg.IsRead)
	assert.True(t, msg.IsStarred)
	assert.False(t, msg.IsDraft)

	msg = normalize(&gmail.Message{Id: "m2", LabelIds: []string{"DRAFT"}})
	assert.True(t, msg.IsRead)
	assert.True(t, msg.IsDraft)
}
