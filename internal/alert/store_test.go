package alert

import (
	"context"
	"fmt"
	"testing"

	"trainhub/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Named in-memory database so the connection pool shares one instance
	// per test.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Alert{}))
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(openTestDB(t), nil, nil, zap.NewNop())
}

func TestCreateValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	longTitle := make([]byte, MaxTitleLen+1)
	for i := range longTitle {
		longTitle[i] = 'a'
	}
	longMessage := make([]byte, MaxMessageLen+1)
	for i := range longMessage {
		longMessage[i] = 'b'
	}

	tests := []struct {
		name    string
		typ     string
		title   string
		message string
	}{
		{"unknown type", "weather", "Title", "msg"},
		{"empty type", "", "Title", "msg"},
		{"empty title", model.AlertTypeTraining, "", "msg"},
		{"title too long", model.AlertTypeTraining, string(longTitle), "msg"},
		{"message too long", model.AlertTypeTraining, "Title", string(longMessage)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(ctx, 1, tt.typ, tt.title, tt.message)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	t.Run("missing account", func(t *testing.T) {
		_, err := store.Create(ctx, 0, model.AlertTypeTraining, "Title", "msg")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestCreateListUnreadMarkRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, model.AlertTypeTraining, "Done", "x")
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.False(t, created.Read)

	alerts, err := store.ListByAccount(ctx, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Done", alerts[0].Title)
	assert.False(t, alerts[0].Read)

	count, err := store.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ok, err := store.MarkRead(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err = store.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMarkReadIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 1, model.AlertTypeCourse, "New course", "")
	require.NoError(t, err)

	ok, err := store.MarkRead(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second call on an already-read alert succeeds with the same final
	// state.
	ok, err = store.MarkRead(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	alerts, err := store.ListByAccount(ctx, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Read)

	// ... unless the alert was deleted between calls.
	ok, err = store.DeleteOne(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkRead(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkReadMissingAlert(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.MarkRead(context.Background(), 1, 12345)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreOperationsAreAccountScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mine, err := store.Create(ctx, 1, model.AlertTypeUser, "Mine", "")
	require.NoError(t, err)
	theirs, err := store.Create(ctx, 2, model.AlertTypeUser, "Theirs", "")
	require.NoError(t, err)

	// A caller scoped to account 1 cannot touch account 2's alert even
	// with a guessed id.
	ok, err := store.MarkRead(ctx, 1, theirs.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.DeleteOne(ctx, 1, theirs.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	alerts, err := store.ListByAccount(ctx, 2)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Read)

	// And account 1's own alert is untouched by the failed attempts.
	ok, err = store.MarkRead(ctx, 1, mine.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteAllForAccount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, 1, model.AlertTypeEnrollment, fmt.Sprintf("Alert %d", i), "")
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, 2, model.AlertTypeEnrollment, "Other account", "")
	require.NoError(t, err)

	removed, err := store.DeleteAllForAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	alerts, err := store.ListByAccount(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	count, err := store.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// The other account's alerts are unaffected.
	alerts, err = store.ListByAccount(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	count, err = store.UnreadCount(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, 7, model.AlertTypeModule, "Module updated", "")
	require.NoError(t, err)

	owner, found, err := store.Owner(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint(7), owner)

	_, found, err = store.Owner(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUnreadCountUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewUnreadCache(client, 0, zap.NewNop())
	store := NewStore(openTestDB(t), cache, nil, zap.NewNop())
	ctx := context.Background()

	created, err := store.Create(ctx, 1, model.AlertTypeTraining, "Done", "x")
	require.NoError(t, err)

	// First read counts the database and fills the cache.
	count, err := store.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, mr.Exists("alerts:unread:1"))

	// A stale cached value is served as-is until invalidated.
	require.NoError(t, mr.Set("alerts:unread:1", "42"))
	count, err = store.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)

	// Mark-read invalidates; the next read recounts from the database.
	ok, err := store.MarkRead(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err = store.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUnreadCacheDegradesOnRedisFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewUnreadCache(client, 0, zap.NewNop())
	store := NewStore(openTestDB(t), cache, nil, zap.NewNop())
	ctx := context.Background()

	_, err := store.Create(ctx, 1, model.AlertTypeTraining, "Done", "x")
	require.NoError(t, err)

	// With Redis down every read falls through to the database.
	mr.Close()

	count, err := store.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
