package outlookprov

import (
	"net/http"
	"testing"
	"time"

	graphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxkit/mailsync/interfaces"
	er "github.com/inboxkit/mailsync/internal/errors"
)

func TestRoleAttributes(t *testing.T) {
	cases := []struct {
		name string
		want []string
	}{
		{"Inbox", []string{"\\Inbox"}},
		{"Sent Items", []string{"\\Sent"}},
		{"Drafts", []string{"\\Drafts"}},
		{"Deleted Items", []string{"\\Trash"}},
		{"Junk Email", []string{"\\Junk"}},
		{"Archive", []string{"\\Archive"}},
		{"Projects", nil},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, roleAttributes(c.name), "folder %q", c.name)
	}
}

func TestDeltaFilter(t *testing.T) {
	t.Run("empty cursor fetches everything", func(t *testing.T) {
		assert.Nil(t, deltaFilter(""))
	})

	t.Run("corrupt cursor fetches everything", func(t *testing.T) {
		assert.Nil(t, deltaFilter("not-a-timestamp"))
	})

	t.Run("cursor becomes an inclusive lower bound", func(t *testing.T) {
		filter := deltaFilter("2025-06-01T12:00:00Z")
		require.NotNil(t, filter)
		assert.Equal(t, "receivedDateTime ge 2025-06-01T12:00:00Z", *filter)
	})
}

func graphMessage(id string, receivedAt time.Time) graphmodels.Messageable {
	m := graphmodels.NewMessage()
	m.SetId(&id)
	m.SetReceivedDateTime(&receivedAt)
	return m
}

func TestAppendPage_AdvancesCursorAcrossPages(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := graphmodels.NewMessageCollectionResponse()
	first.SetValue([]graphmodels.Messageable{
		graphMessage("m1", base),
		graphMessage("m2", base.Add(time.Minute)),
	})
	second := graphmodels.NewMessageCollectionResponse()
	second.SetValue([]graphmodels.Messageable{
		graphMessage("m3", base.Add(2 * time.Minute)),
	})

	delta := &interfaces.Delta{NextCursor: base.Format(time.RFC3339)}
	appendPage(delta, first)
	appendPage(delta, second)

	require.Len(t, delta.Messages, 3)
	assert.Equal(t, "m1", delta.Messages[0].ProviderMessageID)
	assert.Equal(t, "m3", delta.Messages[2].ProviderMessageID)
	assert.Equal(t, base.Add(2*time.Minute).Format(time.RFC3339), delta.NextCursor)
}

func TestAppendPage_EmptyPageKeepsCursor(t *testing.T) {
	page := graphmodels.NewMessageCollectionResponse()
	delta := &interfaces.Delta{NextCursor: "2025-06-01T12:00:00Z"}

	appendPage(delta, page)

	assert.Empty(t, delta.Messages)
	assert.Equal(t, "2025-06-01T12:00:00Z", delta.NextCursor)
}

func graphError(status int) error {
	odataErr := odataerrors.NewODataError()
	odataErr.ResponseStatusCode = status
	mainErr := odataerrors.NewMainError()
	message := http.StatusText(status)
	mainErr.SetMessage(&message)
	odataErr.SetErrorEscaped(mainErr)
	return odataErr
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", graphError(http.StatusUnauthorized), er.ErrCredentialExpired},
		{"throttled", graphError(http.StatusTooManyRequests), er.ErrProviderRateLimited},
		{"server error", graphError(http.StatusBadGateway), er.ErrProviderTransient},
		{"bad request", graphError(http.StatusBadRequest), er.ErrProviderPermanent},
		{"network failure", errors.New("connection reset"), er.ErrProviderTransient},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(c.err), c.want)
		})
	}
}

func TestNormalizeFolder(t *testing.T) {
	f := graphmodels.NewMailFolder()
	id := "fld-graph-1"
	name := "Sent Items"
	total := int32(250)
	unread := int32(3)
	f.SetId(&id)
	f.SetDisplayName(&name)
	f.SetTotalItemCount(&total)
	f.SetUnreadItemCount(&unread)

	folder := normalizeFolder(f)

	assert.Equal(t, "fld-graph-1", folder.ProviderID)
	assert.Equal(t, "Sent Items", folder.Name)
	assert.Equal(t, []string{"\\Sent"}, folder.Attributes)
	assert.Equal(t, 250, folder.MessageCount)
	assert.Equal(t, 3, folder.UnreadCount)
}
