package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/inboxkit/mailsync/api"
	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/config"
	"github.com/inboxkit/mailsync/internal/cron"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/repository"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/services/categorizer"
	"github.com/inboxkit/mailsync/services/credentials"
	"github.com/inboxkit/mailsync/services/events"
	"github.com/inboxkit/mailsync/services/foldermap"
	"github.com/inboxkit/mailsync/services/orchestrator"
	"github.com/inboxkit/mailsync/services/providers"
	"github.com/inboxkit/mailsync/services/webhook"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	db           *gorm.DB
	httpServer   *http.Server
	router       *gin.Engine
	repositories *repository.Repositories
	orchestrator interfaces.SyncOrchestrator
	folderMap    *foldermap.Service
	categorizer  *categorizer.Service
	debouncer    *webhook.Debouncer
	publisher    interfaces.EventPublisher
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	// Initialize logger
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	// Initialize tracing
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	// Initialize repositories
	repos := repository.InitRepositories(db, cfg.R2StorageConfig)

	// Optional event fanout; without a broker the orchestrator simply
	// skips publishing.
	var publisher interfaces.EventPublisher
	if cfg.AppConfig.RabbitMQURL != "" {
		publisher, err = events.NewRabbitMQPublisher(cfg.AppConfig.RabbitMQURL, appLogger, nil)
		if err != nil {
			return nil, err
		}
	}

	// Initialize services
	factory := providers.NewFactory()
	refresher := credentials.NewRefresher(appLogger, repos.AccountRepository, cfg.GoogleOAuthConfig, cfg.MicrosoftOAuthConfig)
	folderMap := foldermap.NewService(appLogger, repos.AccountRepository, repos.FolderRepository)
	categorizerSvc := categorizer.NewService(appLogger, repos.AccountRepository, repos.MessageRepository, repos.SenderTrustRepository)

	orchestratorSvc := orchestrator.NewService(
		appLogger,
		cfg.SyncConfig,
		repos.AccountRepository,
		repos.FolderRepository,
		repos.MessageRepository,
		repos.AttachmentRepository,
		repos.SyncRunRepository,
		factory,
		refresher,
		folderMap,
		categorizerSvc,
		publisher,
		repos.AttachmentStorage,
	)

	debouncer := webhook.NewDebouncer(
		appLogger,
		time.Duration(cfg.SyncConfig.WebhookDebounceSeconds)*time.Second,
		orchestratorSvc.TriggerSync,
	)

	cronManager := cron.NewCronManager(cfg, appLogger, k8sClient(appLogger), repos.AccountRepository, repos.SyncRunRepository, orchestratorSvc)

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		db:           db,
		router:       router,
		repositories: repos,
		orchestrator: orchestratorSvc,
		folderMap:    folderMap,
		categorizer:  categorizerSvc,
		debouncer:    debouncer,
		publisher:    publisher,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// k8sClient builds an in-cluster client for cron leader election.
// Outside a cluster it returns nil and the cron manager runs locally.
func k8sClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("No in-cluster kubernetes config, cron runs without leader election: %v", err)
		return nil
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Kubernetes client setup failed, cron runs without leader election: %v", err)
		return nil
	}
	return clientset
}

func (s *Server) Initialize(ctx context.Context) error {
	// Setup API routes
	api.RegisterRoutes(
		s.router,
		s.log,
		s.db,
		s.repositories,
		s.orchestrator,
		s.folderMap,
		s.categorizer,
		s.debouncer,
		s.config.AppConfig.APIKey,
	)

	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)

		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Initialize(ctx); err != nil {
		return err
	}

	// Start the cron scheduler with leader election
	podName := os.Getenv("POD_NAME")
	if podName == "" {
		podName, _ = os.Hostname()
	}
	namespace := os.Getenv("POD_NAMESPACE")
	if namespace == "" {
		namespace = "default"
	}
	if err := s.cronManager.Start(podName, namespace); err != nil {
		return err
	}

	// Start HTTP server in a goroutine with panic recovery
	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on port %s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})
	s.log.Info("Mailsync is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Stop intake first so no new runs start during drain.
	s.debouncer.Stop()
	s.cronManager.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.Errorf("Event publisher shutdown error: %v", err)
		}
	}

	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	s.log.Info("Shutdown complete")
	return nil
}
