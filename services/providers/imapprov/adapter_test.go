package imapprov

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "github.com/inboxkit/mailsync/internal/errors"
)

func TestParseCursor(t *testing.T) {
	assert.Equal(t, uint32(0), parseCursor(""))
	assert.Equal(t, uint32(0), parseCursor("not-a-uid"))
	assert.Equal(t, uint32(0), parseCursor("-5"))
	assert.Equal(t, uint32(42), parseCursor("42"))
	assert.Equal(t, uint32(4294967295), parseCursor("4294967295"))
	// Beyond uint32 is treated as a corrupt cursor, not wrapped around.
	assert.Equal(t, uint32(0), parseCursor("4294967296"))
}

func TestSplitMessageID(t *testing.T) {
	t.Run("plain folder", func(t *testing.T) {
		folder, uid, err := splitMessageID("INBOX:17")
		require.NoError(t, err)
		assert.Equal(t, "INBOX", folder)
		assert.Equal(t, uint32(17), uid)
	})

	t.Run("folder name containing the separator", func(t *testing.T) {
		folder, uid, err := splitMessageID("Archive:2024:99")
		require.NoError(t, err)
		assert.Equal(t, "Archive:2024", folder)
		assert.Equal(t, uint32(99), uid)
	})

	t.Run("malformed ids", func(t *testing.T) {
		for _, id := range []string{"INBOX", ":17", "INBOX:", "INBOX:abc"} {
			_, _, err := splitMessageID(id)
			assert.ErrorIsf(t, err, er.ErrProviderPermanent, "id %q", id)
		}
	})
}

func TestHasFlag(t *testing.T) {
	flags := []string{imap.SeenFlag, imap.FlaggedFlag}
	assert.True(t, hasFlag(flags, imap.SeenFlag))
	assert.True(t, hasFlag(flags, imap.FlaggedFlag))
	assert.False(t, hasFlag(flags, imap.DraftFlag))
	assert.False(t, hasFlag(nil, imap.SeenFlag))
}

func TestHasAttribute(t *testing.T) {
	attrs := []string{imap.NoSelectAttr, "\\HasChildren"}
	assert.True(t, hasAttribute(attrs, imap.NoSelectAttr))
	// Attribute matching is case insensitive per the IMAP grammar.
	assert.True(t, hasAttribute(attrs, "\\noselect"))
	assert.False(t, hasAttribute(attrs, "\\Marked"))
}

func TestAddressList(t *testing.T) {
	addrs := []*imap.Address{
		{MailboxName: "Ada.Lovelace", HostName: "Example.COM"},
		{MailboxName: "", HostName: ""},
		{MailboxName: "grace", HostName: "example.org"},
	}

	out := addressList(addrs)

	assert.Equal(t, []string{"ada.lovelace@example.com", "grace@example.org"}, out)
}

func TestNormalize_EnvelopeAndFlags(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := &imap.Message{
		Uid:   31,
		Flags: []string{imap.SeenFlag, imap.FlaggedFlag},
		Envelope: &imap.Envelope{
			Subject:   "Quarterly report",
			Date:      sent,
			MessageId: "<msg-31@example.com>",
			From:      []*imap.Address{{MailboxName: "ada", HostName: "example.com", PersonalName: "Ada"}},
			To:        []*imap.Address{{MailboxName: "grace", HostName: "example.org"}},
		},
	}

	msg := normalize(m, "INBOX", &imap.BodySectionName{Peek: true})

	assert.Equal(t, "INBOX:31", msg.ProviderMessageID)
	assert.Equal(t, "Quarterly report", msg.Subject)
	assert.Equal(t, "ada@example.com", msg.FromAddress)
	assert.Equal(t, "Ada", msg.FromName)
	assert.Equal(t, []string{"grace@example.org"}, msg.ToAddresses)
	require.NotNil(t, msg.SentAt)
	assert.Equal(t, sent, *msg.SentAt)
	assert.True(t, msg.IsRead)
	assert.True(t, msg.IsStarred)
	assert.False(t, msg.IsDraft)
	assert.Equal(t, "<msg-31@example.com>", msg.Headers["Message-ID"])
}
