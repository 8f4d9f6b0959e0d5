package foldermap

import (
	"strings"

	"github.com/inboxkit/mailsync/internal/enum"
)

// Mapping is the mapper's guess for a provider folder.
type Mapping struct {
	Type       enum.FolderType
	Confidence float64
}

// Special-use attributes take precedence over any name rule. IMAP
// advertises these via RFC 6154; the Gmail and Graph adapters translate
// their native role hints into the same tokens.
var attributeTypes = map[string]enum.FolderType{
	"\\inbox":   enum.FolderInbox,
	"\\sent":    enum.FolderSent,
	"\\drafts":  enum.FolderDrafts,
	"\\trash":   enum.FolderTrash,
	"\\junk":    enum.FolderSpam,
	"\\archive": enum.FolderArchive,
	"\\all":     enum.FolderArchive,
}

// Name aliases seen across Gmail, Outlook, and common IMAP servers.
var nameTypes = map[string]enum.FolderType{
	"inbox":             enum.FolderInbox,
	"sent":              enum.FolderSent,
	"sent items":        enum.FolderSent,
	"sent mail":         enum.FolderSent,
	"[gmail]/sent mail": enum.FolderSent,
	"drafts":            enum.FolderDrafts,
	"draft":             enum.FolderDrafts,
	"[gmail]/drafts":    enum.FolderDrafts,
	"trash":             enum.FolderTrash,
	"deleted items":     enum.FolderTrash,
	"deleted":           enum.FolderTrash,
	"bin":               enum.FolderTrash,
	"[gmail]/trash":     enum.FolderTrash,
	"spam":              enum.FolderSpam,
	"junk":              enum.FolderSpam,
	"junk email":        enum.FolderSpam,
	"junk e-mail":       enum.FolderSpam,
	"[gmail]/spam":      enum.FolderSpam,
	"archive":           enum.FolderArchive,
	"all mail":          enum.FolderArchive,
	"[gmail]/all mail":  enum.FolderArchive,
}

// Role tokens come before "inbox": nested names like "INBOX.Drafts" or
// "INBOX/Sent" contain both, and the role word is the meaningful one.
var substringHints = []struct {
	token      string
	folderType enum.FolderType
}{
	{"sent", enum.FolderSent},
	{"draft", enum.FolderDrafts},
	{"trash", enum.FolderTrash},
	{"deleted", enum.FolderTrash},
	{"spam", enum.FolderSpam},
	{"junk", enum.FolderSpam},
	{"archive", enum.FolderArchive},
	{"inbox", enum.FolderInbox},
}

// Map classifies a provider folder into a canonical type. Special-use
// attributes win over name matching, exact name aliases beat substring
// hints, and anything unmatched lands in custom with low confidence.
func Map(name string, attributes []string) Mapping {
	for _, attr := range attributes {
		if t, ok := attributeTypes[strings.ToLower(attr)]; ok {
			return Mapping{Type: t, Confidence: 1.0}
		}
	}

	normalized := strings.ToLower(strings.TrimSpace(name))
	if t, ok := nameTypes[normalized]; ok {
		return Mapping{Type: t, Confidence: 0.9}
	}

	// Nested folders often keep the role word somewhere in the path
	// ("Mail/Sent", "INBOX.Drafts"). Ordered so the same name always
	// resolves the same way.
	for _, hint := range substringHints {
		if strings.Contains(normalized, hint.token) {
			return Mapping{Type: hint.folderType, Confidence: 0.6}
		}
	}

	return Mapping{Type: enum.FolderCustom, Confidence: 0.2}
}

// DefaultSyncEnabled reports whether a folder of the given type is
// synchronized before the user confirms mappings. Archive and custom
// folders are opt-in.
func DefaultSyncEnabled(t enum.FolderType) bool {
	return t.IsSystem()
}
