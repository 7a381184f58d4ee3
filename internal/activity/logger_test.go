package activity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"govcms/backend/internal/activity/domain"
)

type memActivityRepo struct {
	mu      sync.Mutex
	entries []*domain.ActivityLog
	fail    bool
}

func (r *memActivityRepo) Create(ctx context.Context, entry *domain.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("sink down")
	}
	r.entries = append(r.entries, entry)
	return nil
}

func TestLogger_Record(t *testing.T) {
	repo := &memActivityRepo{}
	l := NewLogger(repo, nil)

	l.Record(context.Background(), "acc-1", domain.ActionUserLogin, "session", "10.0.0.1", "")

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.AccountID != "acc-1" || e.Action != domain.ActionUserLogin {
		t.Errorf("entry = %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Error("entry should get an ID and timestamp")
	}
}

func TestLogger_RecordBestEffort(t *testing.T) {
	// Sink failures and a nil repo must both be silent no-ops.
	l := NewLogger(&memActivityRepo{fail: true}, nil)
	l.Record(context.Background(), "acc-1", domain.ActionUserLogout, "session", "", "")

	var nilRepoLogger = NewLogger(nil, nil)
	nilRepoLogger.Record(context.Background(), "acc-1", domain.ActionUserLogout, "session", "", "")
}
