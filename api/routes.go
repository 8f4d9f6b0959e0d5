package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxkit/mailsync/api/handlers"
	"github.com/inboxkit/mailsync/api/middleware"
	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/repository"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/services/categorizer"
	"github.com/inboxkit/mailsync/services/foldermap"
	"github.com/inboxkit/mailsync/services/webhook"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(
	r *gin.Engine,
	log logger.Logger,
	db *gorm.DB,
	repos *repository.Repositories,
	orchestrator interfaces.SyncOrchestrator,
	folderMap *foldermap.Service,
	categorizerSvc *categorizer.Service,
	debouncer *webhook.Debouncer,
	apiKey string,
) {
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	// Health check and status endpoints
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(db))

	// Provider push ingress, authenticated by the opaque client state
	// rather than the API key.
	r.POST("/webhooks/mail", handlers.MailWebhook(log, repos.AccountRepository, debouncer))
	r.GET("/webhooks/mail", handlers.MailWebhook(log, repos.AccountRepository, debouncer))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-API-KEY",
		ValidAPIKey: apiKey,
	})

	// API group with version and caller identity
	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.UserIdMiddleware())
	api.Use(middleware.TracingMiddleware())
	{
		sync := api.Group("/sync")
		{
			sync.POST("", handlers.TriggerSync(orchestrator))
			sync.GET("/:accountId/status", handlers.SyncStatus(orchestrator))
		}

		accounts := api.Group("/accounts")
		{
			accounts.POST("", handlers.RegisterAccount(repos.AccountRepository))
			accounts.DELETE("/:accountId", handlers.DisableAccount(repos.AccountRepository))
			accounts.GET("/:accountId/folders", handlers.ListFolders(folderMap))
			accounts.POST("/:accountId/folders/confirm", handlers.ConfirmMappings(folderMap))
		}

		screening := api.Group("/screening")
		{
			screening.POST("", handlers.RecordScreening(categorizerSvc))
			screening.POST("/recategorize", handlers.RecategorizeSender(categorizerSvc))
		}
	}
}
