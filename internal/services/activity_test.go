package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchpos/internal/domain"
)

func TestActivityService_Record(t *testing.T) {
	ctx := context.Background()

	t.Run("stores entry", func(t *testing.T) {
		repo := &fakeActivityRepo{}
		svc := NewActivityService(repo, discardLogger(), 5*time.Second)
		svc.Record(ctx, "user-1", domain.ActionRestock, "product", "prod-1", "qty=5")

		require.Len(t, repo.entries, 1)
		e := repo.entries[0]
		assert.Equal(t, "user-1", e.UserID)
		assert.Equal(t, domain.ActionRestock, e.Action)
		assert.Equal(t, "product", e.EntityType)
		assert.Equal(t, "prod-1", e.EntityID)
		assert.Equal(t, "qty=5", e.Details)
		assert.False(t, e.CreatedAt.IsZero())
	})

	t.Run("anonymous actions are skipped", func(t *testing.T) {
		repo := &fakeActivityRepo{}
		NewActivityService(repo, discardLogger(), 5*time.Second).Record(ctx, "", domain.ActionLogin, "user", "", "")
		assert.Empty(t, repo.entries)
	})

	t.Run("storage failure is swallowed", func(t *testing.T) {
		repo := &fakeActivityRepo{err: errors.New("db down")}
		assert.NotPanics(t, func() {
			NewActivityService(repo, discardLogger(), 5*time.Second).Record(ctx, "user-1", domain.ActionLogin, "user", "user-1", "")
		})
	})
}

func TestActivityService_ListByUser(t *testing.T) {
	repo := &fakeActivityRepo{}
	svc := NewActivityService(repo, discardLogger(), 5*time.Second)
	svc.Record(context.Background(), "user-1", domain.ActionLogin, "user", "user-1", "")
	svc.Record(context.Background(), "user-2", domain.ActionLogin, "user", "user-2", "")

	logs, total, err := svc.ListByUser(context.Background(), "user-1", domain.PaginationParams{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, "user-1", logs[0].UserID)
}
