package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/api/middleware"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/services/categorizer"
)

type screeningRequest struct {
	Sender  string `json:"sender" binding:"required"`
	Verdict string `json:"verdict" binding:"required"`
}

// RecordScreening stores the caller's trust verdict for a sender.
func RecordScreening(categorizerSvc *categorizer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RecordScreening", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req screeningRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		verdict := enum.DecodeTrustVerdict(req.Verdict)
		if verdict == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown verdict"})
			return
		}

		err := categorizerSvc.RecordScreeningDecision(ctx, middleware.GetUserId(c), req.Sender, verdict)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "verdict recorded"})
	}
}

type recategorizeRequest struct {
	AccountID string `json:"accountId" binding:"required"`
	Sender    string `json:"sender" binding:"required"`
}

// RecategorizeSender re-routes the stored messages of one sender after a
// verdict change.
func RecategorizeSender(categorizerSvc *categorizer.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "RecategorizeSender", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req recategorizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tracing.TagAccountId(span, req.AccountID)

		updated, err := categorizerSvc.RecategorizeSender(ctx, middleware.GetUserId(c), req.AccountID, req.Sender)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, er.ErrAccountNotFound) || errors.Is(err, er.ErrNotOwned) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"updated": updated})
	}
}
