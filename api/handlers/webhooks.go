package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/services/webhook"
)

// graphNotification is the subset of a Microsoft Graph change
// notification we care about.
type graphNotification struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
		ClientState    string `json:"clientState"`
		ChangeType     string `json:"changeType"`
	} `json:"value"`
}

// pubSubPush is the Google Pub/Sub push envelope carrying a Gmail
// watch notification.
type pubSubPush struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type gmailWatchPayload struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// MailWebhook is the provider push endpoint. It answers validation
// handshakes and feeds change notifications into the debouncer. The
// response is always 2xx; providers retry aggressively on anything
// else and an unknown account is not their problem.
func MailWebhook(log logger.Logger, accountRepo interfaces.AccountRepository, debouncer *webhook.Debouncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "MailWebhook", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		// Graph subscription handshake: echo the token back as plain text.
		if token := c.Query("validationToken"); token != "" {
			c.String(http.StatusOK, token)
			return
		}

		if c.Request.Method == http.MethodGet {
			c.Status(http.StatusOK)
			return
		}

		var raw json.RawMessage
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.Status(http.StatusAccepted)
			return
		}

		// Graph change notification: account resolved via clientState.
		var graph graphNotification
		if err := json.Unmarshal(raw, &graph); err == nil && len(graph.Value) > 0 {
			for _, n := range graph.Value {
				if n.ClientState == "" {
					continue
				}
				account, err := accountRepo.GetByClientState(ctx, n.ClientState)
				if err != nil {
					log.Warnf("webhook notification for unknown client state dropped")
					continue
				}
				debouncer.Notify(account.UserID, account.ID)
			}
			c.Status(http.StatusAccepted)
			return
		}

		// Gmail watch notification via Pub/Sub push.
		var push pubSubPush
		if err := json.Unmarshal(raw, &push); err == nil && push.Message.Data != "" {
			decoded, err := base64.StdEncoding.DecodeString(push.Message.Data)
			if err != nil {
				c.Status(http.StatusAccepted)
				return
			}
			var payload gmailWatchPayload
			if err := json.Unmarshal(decoded, &payload); err != nil || payload.EmailAddress == "" {
				c.Status(http.StatusAccepted)
				return
			}
			account, err := accountRepo.GetByEmailAddress(ctx, payload.EmailAddress)
			if err != nil {
				log.Warnf("webhook notification for unknown address dropped")
				c.Status(http.StatusAccepted)
				return
			}
			debouncer.Notify(account.UserID, account.ID)
		}

		c.Status(http.StatusAccepted)
	}
}
