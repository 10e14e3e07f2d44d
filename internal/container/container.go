package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/garyjia/doc-lifecycle/internal/application/dispatcher"
	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/metrics"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/policy"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/worker"
	httpserver "github.com/garyjia/doc-lifecycle/internal/interfaces/http"
	"github.com/garyjia/doc-lifecycle/pkg/database"
	"github.com/garyjia/doc-lifecycle/pkg/utils"
)

// dispatcherDrainTimeout bounds how long Close waits for in-flight handlers
const dispatcherDrainTimeout = 10 * time.Second

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	clock  clock.Clock

	// Infrastructure
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle
	policy       *policy.StaticPolicy
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	notifier     port.Notifier

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	// Interfaces
	server *httpserver.Server

	workers *worker.Manager

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures the container
type Option func(*Container)

// WithClock replaces the wall clock used by the engine and workers
func WithClock(clk clock.Clock) Option {
	return func(c *Container) {
		c.clock = clk
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. Capability policy, metrics and notifier
// 3. Dispatcher and workflow engine
// 4. Application services
// 5. HTTP server
// 6. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"infrastructure", c.initInfrastructure},
		{"workflow engine", c.initEngine},
		{"services", c.initServices},
		{"http server", c.initServer},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop http server: %w", err))
		}
		c.server = nil
	}

	if c.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), dispatcherDrainTimeout)
		if err := c.dispatcher.Close(ctx); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		cancel()
		c.dispatcher = nil
	}

	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.database = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.database == nil:
		set("database", false, "not initialized")
	default:
		if err := c.database.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	switch {
	case c.workers == nil:
		set("workers", false, "not initialized")
	case c.workers.Count() == 0:
		set("workers", true, "no workers configured")
	default:
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	}

	if c.dispatcher == nil {
		set("dispatcher", false, "not initialized")
	} else {
		set("dispatcher", true, "")
	}

	if c.policy == nil {
		set("policy", false, "not loaded")
	} else {
		set("policy", true, fmt.Sprintf("roles: %d", len(c.policy.Roles())))
	}

	return status
}

func (c *Container) healthError() error {
	status := c.Health()
	if status.Overall {
		return nil
	}
	for name, comp := range status.Components {
		if !comp.Healthy {
			return fmt.Errorf("%s unhealthy: %s", name, comp.Message)
		}
	}
	return fmt.Errorf("unhealthy")
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.database = bundle.DB
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.database.DB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initInfrastructure() error {
	p, err := ProvidePolicy(&c.config.Policy)
	if err != nil {
		return err
	}
	c.policy = p

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = ProvideMetrics(c.registry)

	n, err := ProvideNotifier(&c.config.Notification, &c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.notifier = n
	return nil
}

func (c *Container) initEngine() error {
	c.dispatcher = ProvideDispatcher(&c.config.Notification, c.logger)

	engine, err := ProvideWorkflowEngine(&EngineDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Policy:     c.policy,
		Metrics:    c.metrics,
		Clock:      c.clock,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Engine:     c.engine,
		Repos:      c.repositories,
		Dispatcher: c.dispatcher,
		Policy:     c.policy,
		Notifier:   c.notifier,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initServer() error {
	s := c.services
	c.server = httpserver.NewServer(
		httpserver.ServerConfig{
			Host:            c.config.Server.Host,
			Port:            c.config.Server.Port,
			ReadTimeout:     c.config.Server.ReadTimeout,
			WriteTimeout:    c.config.Server.WriteTimeout,
			ShutdownTimeout: c.config.Server.ShutdownTimeout,
		},
		httpserver.Services{
			Engine:      c.engine,
			Actors:      s.Actors,
			Quotes:      s.Quotes,
			Versions:    s.Versions,
			Payments:    s.Payments,
			Voids:       s.Voids,
			Corrections: s.Corrections,
			Invoices:    s.Invoices,
			Permissions: s.Permissions,
			Damages:     s.Damages,
			Carriers:    s.Carriers,
			History:     s.History,
		},
		utils.NewKVLogger(c.logger.Named("http")),
		httpserver.WithMetrics(c.metrics, c.registry),
		httpserver.WithHealthCheck(c.healthError),
	)
	return nil
}

func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(&c.config.Policy, c.policy, c.clock, c.logger)
	return c.workers.StartAll(c.ctx)
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// HTTPServer returns the HTTP server. It is built but not listening until
// its Start is called.
func (c *Container) HTTPServer() *httpserver.Server {
	return c.server
}

// Registry returns the Prometheus registry backing /metrics.
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
