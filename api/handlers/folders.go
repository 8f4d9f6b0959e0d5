package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/inboxkit/mailsync/api/middleware"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/services/foldermap"
)

// ListFolders returns the discovered folders with their current mapping.
func ListFolders(folderMap *foldermap.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ListFolders", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("accountId")
		tracing.TagAccountId(span, accountID)

		folders, err := folderMap.ListFolders(ctx, middleware.GetUserId(c), accountID)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, er.ErrAccountNotFound) || errors.Is(err, er.ErrNotOwned) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"folders": folders})
	}
}

type confirmMappingsRequest struct {
	Confirmations []foldermap.FolderConfirmation `json:"confirmations" binding:"required"`
}

// ConfirmMappings applies the user's folder mapping corrections and
// completes account setup.
func ConfirmMappings(folderMap *foldermap.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ConfirmMappings", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("accountId")
		tracing.TagAccountId(span, accountID)

		var req confirmMappingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := folderMap.ConfirmMappings(ctx, middleware.GetUserId(c), accountID, req.Confirmations)
		if err != nil {
			tracing.TraceErr(span, err)
			if errors.Is(err, er.ErrAccountNotFound) || errors.Is(err, er.ErrNotOwned) {
				c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "mappings confirmed"})
	}
}
