package repository

import (
	"context"

	"govcms/backend/internal/activity/domain"
)

// Repository defines persistence for activity log entries.
type Repository interface {
	Create(ctx context.Context, entry *domain.ActivityLog) error
}
