package categorizer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/customeros/mailsherpa/mailvalidate"

	"github.com/inboxkit/mailsync/internal/enum"
)

// Input is the normalized message content the categorizer inspects.
type Input struct {
	FromAddress string
	Subject     string
	BodyText    string
	BodyHTML    string
}

var receiptKeywords = []string{
	"receipt",
	"invoice",
	"order confirmation",
	"your order",
	"payment received",
	"payment confirmation",
	"billing statement",
	"purchase confirmation",
	"transaction",
	"booking confirmation",
}

var spamKeywords = []string{
	"you have won",
	"claim your prize",
	"act now",
	"limited time offer",
	"risk free",
	"100% free",
	"miracle",
	"earn money fast",
	"viagra",
	"crypto giveaway",
}

// Categorize assigns a delivery category. Evaluation order is fixed:
// receipt heuristics first, then the sender verdict, then spam
// heuristics, then the default. A nil verdict means the sender was
// never screened. Pure: same input, same answer.
func Categorize(msg Input, verdict *enum.TrustVerdict) enum.MessageCategory {
	if isReceipt(msg) {
		return enum.CategoryReceipts
	}

	if verdict != nil {
		switch *verdict {
		case enum.VerdictTrusted:
			return enum.CategoryInbox
		case enum.VerdictSpam:
			return enum.CategorySpam
		}
	}

	if verdict == nil || looksLikeSpam(msg) {
		return enum.CategoryUnscreened
	}

	return enum.CategoryInbox
}

func isReceipt(msg Input) bool {
	haystack := strings.ToLower(msg.Subject + " " + textBody(msg))
	for _, kw := range receiptKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func looksLikeSpam(msg Input) bool {
	validation := mailvalidate.ValidateEmailSyntax(msg.FromAddress)
	if !validation.IsValid {
		return true
	}
	if validation.IsSystemGenerated && validation.IsRoleAccount {
		return true
	}

	haystack := strings.ToLower(msg.Subject + " " + textBody(msg))
	for _, kw := range spamKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// textBody prefers the plain part and falls back to stripping the HTML
// part down to its text.
func textBody(msg Input) string {
	if msg.BodyText != "" {
		return msg.BodyText
	}
	if msg.BodyHTML == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(msg.BodyHTML))
	if err != nil {
		return ""
	}
	return doc.Text()
}
