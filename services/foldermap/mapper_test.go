package foldermap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inboxkit/mailsync/internal/enum"
)

func TestMap_AttributesBeatNames(t *testing.T) {
	// A folder named like an inbox but flagged \Sent is a sent folder.
	m := Map("Important", []string{"\\Sent"})
	assert.Equal(t, enum.FolderSent, m.Type)
	assert.Equal(t, 1.0, m.Confidence)

	m = Map("INBOX", []string{"\\Junk"})
	assert.Equal(t, enum.FolderSpam, m.Type)
}

func TestMap_NameAliases(t *testing.T) {
	cases := []struct {
		name string
		want enum.FolderType
	}{
		{"INBOX", enum.FolderInbox},
		{"Sent Items", enum.FolderSent},
		{"[Gmail]/Sent Mail", enum.FolderSent},
		{"Junk E-mail", enum.FolderSpam},
		{"Deleted Items", enum.FolderTrash},
		{"Bin", enum.FolderTrash},
		{"Archive", enum.FolderArchive},
		{"Drafts", enum.FolderDrafts},
	}
	for _, c := range cases {
		m := Map(c.name, nil)
		assert.Equalf(t, c.want, m.Type, "name %q", c.name)
		assert.Equal(t, 0.9, m.Confidence)
	}
}

func TestMap_SubstringHints(t *testing.T) {
	m := Map("INBOX.Drafts", nil)
	assert.Equal(t, enum.FolderDrafts, m.Type)
	assert.Equal(t, 0.6, m.Confidence)

	m = Map("Mail/Sent", nil)
	assert.Equal(t, enum.FolderSent, m.Type)
}

func TestMap_NestedInboxNamesKeepTheirRole(t *testing.T) {
	cases := []struct {
		name string
		want enum.FolderType
	}{
		{"INBOX.Drafts", enum.FolderDrafts},
		{"INBOX/Sent", enum.FolderSent},
		{"INBOX.Trash", enum.FolderTrash},
		{"INBOX/Junk", enum.FolderSpam},
		{"INBOX.Archive", enum.FolderArchive},
		{"INBOX.Subfolder", enum.FolderInbox},
	}
	for _, c := range cases {
		m := Map(c.name, nil)
		assert.Equalf(t, c.want, m.Type, "name %q", c.name)
	}
}

func TestMap_UnmatchedIsCustom(t *testing.T) {
	m := Map("Receipts 2024", nil)
	assert.Equal(t, enum.FolderCustom, m.Type)
	assert.Equal(t, 0.2, m.Confidence)
}

func TestMap_Deterministic(t *testing.T) {
	first := Map("Deleted Spam", nil)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Map("Deleted Spam", nil))
	}
}

func TestDefaultSyncEnabled(t *testing.T) {
	assert.True(t, DefaultSyncEnabled(enum.FolderInbox))
	assert.True(t, DefaultSyncEnabled(enum.FolderSent))
	assert.False(t, DefaultSyncEnabled(enum.FolderArchive))
	assert.False(t, DefaultSyncEnabled(enum.FolderCustom))
}
