package enum

type FolderType string

const (
	FolderInbox   FolderType = "inbox"
	FolderSent    FolderType = "sent"
	FolderDrafts  FolderType = "drafts"
	FolderTrash   FolderType = "trash"
	FolderSpam    FolderType = "spam"
	FolderArchive FolderType = "archive"
	FolderCustom  FolderType = "custom"
)

func (t FolderType) String() string {
	return string(t)
}

// IsSystem reports whether the folder type is one of the fixed provider
// roles that every mailbox carries.
func (t FolderType) IsSystem() bool {
	switch t {
	case FolderInbox, FolderSent, FolderDrafts, FolderTrash, FolderSpam:
		return true
	}
	return false
}

type MappingSource string

const (
	MappingAuto   MappingSource = "auto"
	MappingManual MappingSource = "manual"
)

func (t MappingSource) String() string {
	return string(t)
}
