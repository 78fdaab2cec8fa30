package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/assessment-engine/internal/ai"
	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
)

// ServiceManagerConfig holds the dependencies shared by every service
type ServiceManagerConfig struct {
	DB        *gorm.DB
	Repo      repositories.Repository
	Logger    *slog.Logger
	Validator *validator.Validator

	// Optional. Nil Redis disables the live integrity feed and post-commit
	// cache invalidation; nil Publisher logs events instead.
	RedisClient *redis.Client
	Publisher   events.EventPublisher
	Generator   ai.QuestionGenerator

	// Clock override for tests
	Now func() time.Time
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	config ServiceManagerConfig
	core   serviceCore

	assessmentService   AssessmentService
	deliveryService     DeliveryService
	attemptService      AttemptService
	integrityService    IntegrityService
	reportService       ReportService
	questionBankService QuestionBankService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(config ServiceManagerConfig) ServiceManager {
	return &serviceManager{config: config}
}

// NewDefaultServiceManager wires the services without optional collaborators
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ServiceManager {
	return NewServiceManager(ServiceManagerConfig{DB: db, Repo: repo, Logger: logger, Validator: validator})
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.config.DB == nil || sm.config.Repo == nil || sm.config.Logger == nil || sm.config.Validator == nil {
		return fmt.Errorf("service manager requires db, repository, logger and validator")
	}

	logger := sm.config.Logger
	logger.Info("Initializing service manager")

	publisher := sm.config.Publisher
	if publisher == nil {
		publisher = events.NewLogEventPublisher(logger)
	}

	sm.core = serviceCore{
		repo:      sm.config.Repo,
		db:        sm.config.DB,
		logger:    logger,
		publisher: publisher,
		now:       sm.config.Now,
	}
	if sm.config.RedisClient != nil {
		sm.core.cache = cache.NewCacheManager(sm.config.RedisClient)
	}
	feed := cache.NewIntegrityFeed(sm.config.RedisClient, logger)

	sm.assessmentService = NewAssessmentService(sm.core, sm.config.Validator)
	sm.deliveryService = NewDeliveryService(sm.core)
	sm.attemptService = NewAttemptService(sm.core, sm.config.Validator)
	sm.integrityService = NewIntegrityService(sm.core, feed)
	sm.reportService = NewReportService(sm.core)
	sm.questionBankService = NewQuestionBankService(sm.core, sm.config.Validator, sm.config.Generator)

	sm.initialized = true
	logger.Info("Service manager initialized successfully",
		"live_feed", sm.config.RedisClient != nil,
		"generator", sm.config.Generator != nil && sm.config.Generator.Enabled())
	return nil
}

func (sm *serviceManager) ready() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

func (sm *serviceManager) Assessment() AssessmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.assessmentService
}

func (sm *serviceManager) Delivery() DeliveryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.deliveryService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.attemptService
}

func (sm *serviceManager) Integrity() IntegrityService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.integrityService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.reportService
}

func (sm *serviceManager) QuestionBank() QuestionBankService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.ready()
	return sm.questionBankService
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.config.Logger.Info("Shutting down service manager")

	if sm.core.publisher != nil {
		if err := sm.core.publisher.Close(); err != nil {
			sm.config.Logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.config.Logger.Info("Service manager shut down completed")
	return nil
}
