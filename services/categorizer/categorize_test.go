package categorizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inboxkit/mailsync/internal/enum"
)

func verdict(v enum.TrustVerdict) *enum.TrustVerdict {
	return &v
}

func TestCategorize_ReceiptsBeatEverything(t *testing.T) {
	msg := Input{
		FromAddress: "billing@shop.example.com",
		Subject:     "Your order confirmation #4821",
		BodyText:    "Thanks for your purchase.",
	}

	// Even a spam-verdict sender's receipt stays a receipt.
	assert.Equal(t, enum.CategoryReceipts, Categorize(msg, verdict(enum.VerdictSpam)))
	assert.Equal(t, enum.CategoryReceipts, Categorize(msg, verdict(enum.VerdictTrusted)))
	assert.Equal(t, enum.CategoryReceipts, Categorize(msg, nil))
}

func TestCategorize_VerdictRouting(t *testing.T) {
	msg := Input{
		FromAddress: "alice@example.com",
		Subject:     "Lunch tomorrow?",
		BodyText:    "Are you free at noon?",
	}

	assert.Equal(t, enum.CategoryInbox, Categorize(msg, verdict(enum.VerdictTrusted)))
	assert.Equal(t, enum.CategorySpam, Categorize(msg, verdict(enum.VerdictSpam)))
	assert.Equal(t, enum.CategoryUnscreened, Categorize(msg, nil))
}

func TestCategorize_UnknownVerdict(t *testing.T) {
	clean := Input{
		FromAddress: "bob@example.com",
		Subject:     "Meeting notes",
		BodyText:    "Attached are the notes from today.",
	}
	assert.Equal(t, enum.CategoryInbox, Categorize(clean, verdict(enum.VerdictUnknown)))

	spammy := Input{
		FromAddress: "bob@example.com",
		Subject:     "You have won a crypto giveaway",
		BodyText:    "Claim your prize now.",
	}
	assert.Equal(t, enum.CategoryUnscreened, Categorize(spammy, verdict(enum.VerdictUnknown)))
}

func TestCategorize_ReceiptInHTMLBody(t *testing.T) {
	msg := Input{
		FromAddress: "noreply@store.example.com",
		Subject:     "Thanks!",
		BodyHTML:    "<html><body><p>Here is your <b>invoice</b> for May.</p></body></html>",
	}
	assert.Equal(t, enum.CategoryReceipts, Categorize(msg, nil))
}

func TestCategorize_Deterministic(t *testing.T) {
	msg := Input{
		FromAddress: "carol@example.com",
		Subject:     "Invoice and your prize",
		BodyText:    "act now",
	}
	first := Categorize(msg, verdict(enum.VerdictSpam))
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Categorize(msg, verdict(enum.VerdictSpam)))
	}
}

func TestCategorize_InvalidSenderIsNotInbox(t *testing.T) {
	msg := Input{
		FromAddress: "not-an-address",
		Subject:     "hello",
		BodyText:    "hi",
	}
	assert.Equal(t, enum.CategoryUnscreened, Categorize(msg, verdict(enum.VerdictUnknown)))
}
