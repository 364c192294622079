package otp

import (
	"context"
	"fmt"
	"testing"
	"time"

	"trainhub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.OTPCode{}))
	return db
}

func TestSweep(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	codes := []model.OTPCode{
		{AccountID: 1, Code: "111111", Purpose: model.OTPPurposePasswordReset, ExpiresAt: now.Add(-time.Minute)},
		{AccountID: 1, Code: "222222", Purpose: model.OTPPurposePasswordReset, ExpiresAt: now.Add(time.Hour), Consumed: true},
		{AccountID: 2, Code: "333333", Purpose: model.OTPPurposePasswordReset, ExpiresAt: now.Add(time.Hour)},
	}
	for i := range codes {
		require.NoError(t, db.Create(&codes[i]).Error)
	}

	removed, err := Sweep(db)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	var remaining []model.OTPCode
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "333333", remaining[0].Code)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, db, time.Millisecond, zap.NewNop())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancel")
	}
}
