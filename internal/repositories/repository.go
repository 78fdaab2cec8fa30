package repositories

import "context"

// Repository groups the stores used by the engine. Every store method takes
// an optional *gorm.DB so callers can run several writes in one transaction.
type Repository interface {
	Assessment() AssessmentRepository
	Attempt() AttemptRepository
	QuestionBank() QuestionBankRepository

	// Owned by the course service; read only here
	Catalog() CatalogRepository
	User() UserRepository

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the connections behind a Repository
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
