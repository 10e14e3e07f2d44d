package container

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/garyjia/doc-lifecycle/internal/application/dispatcher"
	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/application/service"
	"github.com/garyjia/doc-lifecycle/internal/application/version"
	"github.com/garyjia/doc-lifecycle/internal/application/workflow"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/export"
	infraLark "github.com/garyjia/doc-lifecycle/internal/infrastructure/external/lark"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/metrics"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/notifier"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/repository"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/policy"
	"github.com/garyjia/doc-lifecycle/internal/infrastructure/worker"
	"github.com/garyjia/doc-lifecycle/migrations"
	"github.com/garyjia/doc-lifecycle/pkg/database"
	"github.com/garyjia/doc-lifecycle/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Quote              port.QuoteRepository
	QuoteVersion       port.QuoteVersionRepository
	Payment            port.PaymentRepository
	VoidApplication    port.VoidApplicationRepository
	Correction         port.CorrectionRepository
	InvoiceApplication port.InvoiceApplicationRepository
	PermissionRequest  port.PermissionRequestRepository
	CapabilityGrant    port.CapabilityGrantRepository
	DamageRecord       port.DamageRecordRepository
	CarrierRule        port.CarrierRuleRepository
	History            port.HistoryRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Actors       service.ActorResolver
	Quotes       service.QuoteService
	Versions     version.Register
	Payments     service.PaymentService
	Voids        service.VoidService
	Corrections  service.CorrectionService
	Invoices     service.InvoiceApplicationService
	Permissions  service.PermissionService
	Damages      service.DamageService
	Carriers     service.CarrierService
	History      service.HistoryService
	Notification service.NotificationService
}

// ProvideDatabase opens the SQLite database and applies the embedded
// migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Quote:              repository.NewQuoteRepository(sqlDB, logger),
		QuoteVersion:       repository.NewQuoteVersionRepository(sqlDB, logger),
		Payment:            repository.NewPaymentRepository(sqlDB, logger),
		VoidApplication:    repository.NewVoidApplicationRepository(sqlDB, logger),
		Correction:         repository.NewCorrectionRepository(sqlDB, logger),
		InvoiceApplication: repository.NewInvoiceApplicationRepository(sqlDB, logger),
		PermissionRequest:  repository.NewPermissionRequestRepository(sqlDB, logger),
		CapabilityGrant:    repository.NewCapabilityGrantRepository(sqlDB),
		DamageRecord:       repository.NewDamageRecordRepository(sqlDB, logger),
		CarrierRule:        repository.NewCarrierRuleRepository(sqlDB, logger),
		History:            repository.NewHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvidePolicy loads the capability policy file.
func ProvidePolicy(cfg *PolicyConfig) (*policy.StaticPolicy, error) {
	if cfg == nil {
		return nil, fmt.Errorf("policy config is required")
	}
	p, err := policy.Load(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return p, nil
}

// ProvideMetrics registers the lifecycle instruments with reg.
func ProvideMetrics(reg prometheus.Registerer) *metrics.Metrics {
	return metrics.New(reg)
}

// ProvideNotifier creates the notifier for the configured channel.
func ProvideNotifier(cfg *NotificationConfig, larkCfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	switch cfg.Channel {
	case "", "log":
		return notifier.NewLogNotifier(logger), nil
	case "lark":
		lc := infraLark.Config{
			AppID:         larkCfg.AppID,
			AppSecret:     larkCfg.AppSecret,
			ReceiveIDType: larkCfg.ReceiveIDType,
			ReceiveID:     larkCfg.ReceiveID,
			Timeout:       larkCfg.APITimeout,
		}
		return infraLark.NewNotifier(infraLark.NewSDKClient(lc, logger), lc, logger)
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Channel)
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *NotificationConfig, logger *zap.Logger) dispatcher.Dispatcher {
	opts := []dispatcher.Option{dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher")))}
	if cfg != nil && cfg.HandlerTimeout > 0 {
		opts = append(opts, dispatcher.WithHandlerTimeout(cfg.HandlerTimeout))
	}
	return dispatcher.NewDispatcher(opts...)
}

// EngineDeps holds what the workflow engine is built from.
type EngineDeps struct {
	Repos      *RepositoryBundle
	TxManager  *sqlite.DB
	Dispatcher dispatcher.Dispatcher
	Policy     port.CapabilityPolicy
	Metrics    *metrics.Metrics
	Clock      clock.PassiveClock
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine. Workflows are bound by
// ProvideServices.
func ProvideWorkflowEngine(deps *EngineDeps) (workflow.Engine, error) {
	if deps == nil || deps.Repos == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("repositories and transaction manager are required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(utils.NewKVLogger(deps.Logger.Named("workflow"))),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithDispatcher(deps.Dispatcher))
	}
	if deps.Policy != nil {
		opts = append(opts, workflow.WithPolicy(deps.Policy))
	}
	if deps.Metrics != nil {
		opts = append(opts, workflow.WithRecorder(deps.Metrics))
	}
	if deps.Clock != nil {
		opts = append(opts, workflow.WithClock(deps.Clock))
	}

	return workflow.NewEngine(deps.Repos.History, deps.TxManager, opts...), nil
}

// ServiceDeps holds what the application services are built from.
type ServiceDeps struct {
	Engine     workflow.Engine
	Repos      *RepositoryBundle
	Dispatcher dispatcher.Dispatcher
	Policy     port.CapabilityPolicy
	Notifier   port.Notifier
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates every service, binding its workflows to the
// engine, and checks that all referenced hooks exist.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Engine == nil || deps.Repos == nil {
		return nil, fmt.Errorf("engine and repositories are required")
	}

	log := utils.NewKVLogger(deps.Logger.Named("service"))
	repos := deps.Repos
	engine := deps.Engine

	versionOpts := []version.Option{}
	if deps.Dispatcher != nil {
		versionOpts = append(versionOpts, version.WithDispatcher(deps.Dispatcher))
	}
	if deps.Metrics != nil {
		versionOpts = append(versionOpts, version.WithRecorder(deps.Metrics))
	}

	bundle := &ServiceBundle{
		Actors:   service.NewActorResolver(deps.Policy, repos.CapabilityGrant),
		Quotes:   service.NewQuoteService(engine, repos.Quote, log),
		Versions: version.NewRegister(engine, repos.QuoteVersion, versionOpts...),
		Payments: service.NewPaymentService(engine, repos.Payment, repos.Quote, log),
		Invoices: service.NewInvoiceApplicationService(engine, repos.InvoiceApplication, repos.Quote, log),
		Voids: service.NewVoidService(engine, repos.VoidApplication, repos.Quote,
			repos.Payment, repos.InvoiceApplication, log),
		Corrections: service.NewCorrectionService(engine, repos.Correction, repos.Quote, repos.Payment, log),
		Permissions: service.NewPermissionService(engine, repos.PermissionRequest, repos.CapabilityGrant, log),
		Damages:     service.NewDamageService(engine, repos.DamageRecord, log),
		Carriers:    service.NewCarrierService(repos.CarrierRule, log),
		History:     service.NewHistoryService(repos.History, export.NewHistoryXLSXExporter(deps.Logger), log),
	}

	if deps.Notifier != nil {
		bundle.Notification = service.NewNotificationService(deps.Notifier, log)
		if deps.Dispatcher != nil {
			bundle.Notification.Subscribe(deps.Dispatcher)
		}
	}

	if err := engine.Validate(); err != nil {
		return nil, fmt.Errorf("workflow configuration: %w", err)
	}
	return bundle, nil
}

// ProvideWorkers creates the background workers. The policy reloader is
// only registered when a reload interval is configured.
func ProvideWorkers(cfg *PolicyConfig, p worker.Syncer, clk clock.Clock, logger *zap.Logger) *worker.Manager {
	manager := worker.NewManager(logger)
	if cfg != nil && cfg.ReloadInterval > 0 {
		manager.Register(worker.NewPolicyReloader(p, cfg.ReloadInterval, clk, logger))
	}
	return manager
}
