// Package activity records platform activity events (registrations, logins,
// logouts) to the activity log. Recording is best-effort by design: the
// session lifecycle must not fail because the activity sink is down.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"govcms/backend/internal/activity/domain"
	activityrepo "govcms/backend/internal/activity/repository"
)

// Recorder writes a single activity event. Implementations must be
// best-effort: failures are logged, never returned.
type Recorder interface {
	Record(ctx context.Context, accountID, action, resource, ip, metadata string)
}

// Logger implements Recorder over the activity repository.
type Logger struct {
	repo   activityrepo.Repository
	logger *slog.Logger
}

// NewLogger returns a Recorder that persists to repo.
func NewLogger(repo activityrepo.Repository, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{repo: repo, logger: logger}
}

// Record writes one activity log entry. Failures are logged and swallowed.
func (l *Logger) Record(ctx context.Context, accountID, action, resource, ip, metadata string) {
	if l.repo == nil {
		return
	}
	entry := &domain.ActivityLog{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.logger.Warn("activity: failed to record event", "action", action, "resource", resource, "error", err)
	}
}
