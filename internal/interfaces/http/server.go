// Package http exposes the lifecycle services over a JSON API. Handlers
// translate requests into service calls and error kinds into status codes.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/doc-lifecycle/internal/application/service"
	"github.com/garyjia/doc-lifecycle/internal/application/version"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/metrics"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Services is everything the handlers call into
type Services struct {
	Engine      workflow.Engine
	Actors      service.ActorResolver
	Quotes      service.QuoteService
	Versions    version.Register
	Payments    service.PaymentService
	Voids       service.VoidService
	Corrections service.CorrectionService
	Invoices    service.InvoiceApplicationService
	Permissions service.PermissionService
	Damages     service.DamageService
	Carriers    service.CarrierService
	History     service.HistoryService
}

// Option configures the server
type Option func(*Server)

// WithMetrics records request metrics into m and serves gatherer on /metrics
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithHealthCheck replaces the default always-healthy probe
func WithHealthCheck(check func() error) Option {
	return func(s *Server) {
		s.healthCheck = check
	}
}

// Server is the HTTP server adapter
type Server struct {
	config      ServerConfig
	httpServer  *http.Server
	router      *gin.Engine
	services    Services
	metrics     *metrics.Metrics
	gatherer    prometheus.Gatherer
	healthCheck func() error
	logger      Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.metrics != nil {
		s.router.Use(s.metricsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	h := &Handlers{services: s.services, logger: s.logger, healthCheck: s.healthCheck}

	s.router.GET("/health", h.HealthCheck)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := s.router.Group("/api", actorMiddleware(s.services.Actors))
	{
		api.GET("/me", h.WhoAmI)

		api.POST("/quotes", h.CreateQuote)
		api.GET("/quotes/:id", h.GetQuote)
		api.POST("/quotes/:id/submit", h.SubmitQuote)
		api.POST("/quotes/:id/finance-audit", h.FinanceAuditQuote)
		api.POST("/quotes/:id/collector", h.AssignCollector)
		api.POST("/quotes/:id/fallback", h.FallbackQuote)
		api.POST("/quotes/:id/void-applications", h.ApplyVoid)
		api.POST("/quotes/:id/direct-void", h.DirectVoid)
		api.GET("/quotes/:id/payments", h.ListPayments)
		api.POST("/quotes/:id/payments", h.CreatePayment)
		api.GET("/quotes/:id/invoice-applications", h.ListInvoiceApplications)
		api.POST("/quotes/:id/invoice-applications", h.SubmitInvoiceApplication)

		api.GET("/quote-versions/:quoteNo", h.ListVersions)
		api.POST("/quote-versions/:quoteNo", h.CreateVersion)
		api.GET("/quote-versions/:quoteNo/active", h.GetActiveVersion)
		api.POST("/quote-versions/:quoteNo/activate", h.ActivateVersion)

		api.GET("/void-applications/:id", h.GetVoidApplication)
		api.POST("/void-applications/:id/audit", h.AuditVoid)

		api.GET("/payments/:id", h.GetPayment)
		api.POST("/payments/:id/submit", h.SubmitPayment)
		api.POST("/payments/:id/confirm", h.ConfirmPayment)
		api.POST("/payments/:id/return", h.ReturnPayment)
		api.POST("/payments/:id/cancel", h.CancelPayment)

		api.POST("/corrections", h.CreateCorrection)
		api.GET("/corrections/:id", h.GetCorrection)
		api.POST("/corrections/:id/submit", h.SubmitCorrection)
		api.POST("/corrections/:id/approve", h.ApproveCorrection)
		api.POST("/corrections/:id/reject", h.RejectCorrection)

		api.GET("/invoice-applications/:id", h.GetInvoiceApplication)
		api.POST("/invoice-applications/:id/audit", h.AuditInvoiceApplication)
		api.POST("/invoice-applications/:id/cancel", h.CancelInvoiceApplication)

		api.POST("/permission-requests", h.RequestPermission)
		api.GET("/permission-requests/:id", h.GetPermissionRequest)
		api.POST("/permission-requests/:id/decision", h.DecidePermission)
		api.POST("/permission-requests/:id/resubmit", h.ResubmitPermission)

		api.POST("/damage-records", h.CreateDamageRecord)
		api.GET("/damage-records/:id", h.GetDamageRecord)
		api.POST("/damage-records/:id/repair-stage", h.UpdateRepairStage)
		api.POST("/damage-records/:id/compensation", h.ConfirmCompensation)

		api.POST("/carrier-rules", h.CreateCarrierRule)
		api.GET("/carrier-recommendation", h.RecommendCarrier)

		api.GET("/subjects/:type/:id/history", h.ListHistory)
		api.GET("/subjects/:type/:id/history/export", h.ExportHistory)
		api.GET("/subjects/:type/:id/actions", h.PermittedActions)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
