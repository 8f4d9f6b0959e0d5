package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/api/middleware"
	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

type registerAccountRequest struct {
	Provider     string `json:"provider" binding:"required"`
	EmailAddress string `json:"emailAddress" binding:"required"`

	// OAuth material (gmail, outlook)
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`

	// IMAP material
	ImapServer   string `json:"imapServer"`
	ImapPort     int    `json:"imapPort"`
	ImapUsername string `json:"imapUsername"`
	ImapPassword string `json:"imapPassword"`
	ImapTLS      *bool  `json:"imapTls"`
}

// RegisterAccount connects a mailbox for the calling user. The account
// starts in pending_setup; the first sync run discovers folders and the
// user confirms mappings to complete setup.
func RegisterAccount(accountRepo interfaces.AccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RegisterAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		userID := middleware.GetUserId(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
			return
		}
		tracing.TagUserId(span, userID)

		var req registerAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := enum.DecodeMailProvider(req.Provider)
		if provider == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
			return
		}

		email := utils.NormalizeEmailAddress(req.EmailAddress)
		if provider.IsOAuth() && req.AccessToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "accessToken required for oauth providers"})
			return
		}
		if provider == enum.ProviderIMAP && (req.ImapServer == "" || req.ImapUsername == "" || req.ImapPassword == "") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "imap credentials required"})
			return
		}

		account := &models.Account{
			UserID:       userID,
			Provider:     provider,
			EmailAddress: email,
			AccessToken:  req.AccessToken,
			RefreshToken: req.RefreshToken,
			ImapServer:   req.ImapServer,
			ImapPort:     req.ImapPort,
			ImapUsername: req.ImapUsername,
			ImapPassword: req.ImapPassword,
			ImapTLS:      req.ImapTLS == nil || *req.ImapTLS,
			SyncState:    enum.SyncStatePendingSetup,
			Enabled:      true,

			// Opaque token the provider echoes back in push notifications.
			WebhookClientState: uuid.NewString(),
		}

		id, err := accountRepo.Create(ctx, account)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":                 id,
			"syncState":          account.SyncState,
			"webhookClientState": account.WebhookClientState,
		})
	}
}

// DisableAccount soft-disables an account; its data is kept but the
// scheduler and webhooks stop picking it up.
func DisableAccount(accountRepo interfaces.AccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DisableAccount", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("accountId")
		tracing.TagAccountId(span, accountID)

		account, err := accountRepo.GetByID(ctx, accountID)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, er.ErrAccountNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if account.UserID != middleware.GetUserId(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		if err := accountRepo.SoftDisable(ctx, accountID); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "account disabled", "id": accountID})
	}
}
