package repositories

import (
	"context"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
)

// UserRepository resolves identities from the identity provider. The engine is
// not the owner of user data, so it is read-only.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByIDs skips identities that cannot be resolved
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
}
