package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/api/middleware"
	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/tracing"
)

type triggerSyncRequest struct {
	AccountID string `json:"accountId" binding:"required"`
}

// TriggerSync starts a manual sync run for an account.
func TriggerSync(orchestrator interfaces.SyncOrchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "TriggerSync", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req triggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tracing.TagAccountId(span, req.AccountID)

		runID, err := orchestrator.TriggerSync(ctx, middleware.GetUserId(c), req.AccountID, enum.TriggerManual)
		if err != nil {
			tracing.TraceErr(span, err)
			switch {
			case errors.Is(err, er.ErrAlreadySyncing):
				c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
			case errors.Is(err, er.ErrAccountNotFound), errors.Is(err, er.ErrNotOwned):
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"runId": runID})
	}
}

// SyncStatus returns the progress read-model for an account.
func SyncStatus(orchestrator interfaces.SyncOrchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "SyncStatus", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("accountId")
		tracing.TagAccountId(span, accountID)

		status, err := orchestrator.GetStatus(ctx, middleware.GetUserId(c), accountID)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, er.ErrAccountNotFound) || errors.Is(err, er.ErrNotOwned) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, status)
	}
}
