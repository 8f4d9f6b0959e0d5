package enum

type MessageCategory string

const (
	CategoryInbox      MessageCategory = "inbox"
	CategoryFeed       MessageCategory = "feed"
	CategoryReceipts   MessageCategory = "receipts"
	CategorySpam       MessageCategory = "spam"
	CategoryUnscreened MessageCategory = "unscreened"
)

func (t MessageCategory) String() string {
	return string(t)
}

type TrustVerdict string

const (
	VerdictTrusted TrustVerdict = "trusted"
	VerdictUnknown TrustVerdict = "unknown"
	VerdictSpam    TrustVerdict = "spam"
)

func (t TrustVerdict) String() string {
	return string(t)
}

// DecodeTrustVerdict parses a wire value; unknown inputs map to "".
func DecodeTrustVerdict(s string) TrustVerdict {
	switch TrustVerdict(s) {
	case VerdictTrusted, VerdictUnknown, VerdictSpam:
		return TrustVerdict(s)
	default:
		return ""
	}
}
