package database

import (
	"context"
	"testing"
	"time"

	"glowbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSyncTask_DefaultsToPending(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "upsert", BookingID: 100, Payload: `{"booking_id":100}`}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.SyncStatusPending, task.Status)

	due, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(100), due[0].BookingID)
	assert.Equal(t, `{"booking_id":100}`, due[0].Payload)
	assert.Nil(t, due[0].LastError)
	assert.Nil(t, due[0].NextRetryAt)
	assert.WithinDuration(t, time.Now(), due[0].CreatedAt, 5*time.Second)
}

func TestGetPendingSyncTasks_OldestFirstWithLimit(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{TaskType: "upsert", BookingID: id}))
	}

	due, err := db.GetPendingSyncTasks(ctx, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(1), due[0].BookingID)
	assert.Equal(t, int64(2), due[1].BookingID)
}

func TestUpdateSyncTaskStatus_RetrySchedule(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "update_status", BookingID: 7}
	require.NoError(t, db.CreateSyncTask(ctx, task))

	later := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "quota exceeded", &later))

	due, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "task is not due before next_retry_at")

	earlier := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "quota exceeded", &earlier))

	due, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].RetryCount)
	require.NotNil(t, due[0].LastError)
	assert.Equal(t, "quota exceeded", *due[0].LastError)
	require.NotNil(t, due[0].NextRetryAt)
	assert.WithinDuration(t, earlier, *due[0].NextRetryAt, time.Second)
}

func TestUpdateSyncTaskStatus_CompletedLeavesQueue(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "upsert", BookingID: 9}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil))

	due, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestRequeueFailedSyncTasks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	task := &models.SyncTask{TaskType: "upsert", BookingID: 11}
	require.NoError(t, db.CreateSyncTask(ctx, task))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, "sheet not found", nil))

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].ProcessedAt)
	assert.Equal(t, "sheet not found", *failed[0].LastError)

	n, err := db.RequeueFailedSyncTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	due, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 0, due[0].RetryCount)
	assert.Nil(t, due[0].ProcessedAt)
}
