package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"glowbook/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return wrap(sqlDB, nil), mock
}

func TestDB_ErrorPaths(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	t.Run("CreateBookingWithLock_CheckFails", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings WHERE provider_id = ?`)).WillReturnError(boom)
		mock.ExpectRollback()

		err := db.CreateBookingWithLock(ctx, &models.Booking{ProviderID: testProvider, ScheduledAt: time.Now()})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CreateBookingWithLock_Taken", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM bookings`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		err := db.CreateBookingWithLock(ctx, &models.Booking{ProviderID: testProvider, ScheduledAt: time.Now()})
		assert.ErrorIs(t, err, ErrSlotTaken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateStatus_NoRows", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status = ?, version = version + 1`)).
			WithArgs(models.StatusConfirmed, sqlmock.AnyArg(), int64(5), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := db.UpdateBookingStatusWithVersion(ctx, 5, 3, models.StatusConfirmed)
		assert.ErrorIs(t, err, ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetBooking_QueryFails", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).WithArgs(int64(7)).WillReturnError(boom)

		_, err := db.GetBooking(ctx, 7)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("SetAvailability_InsertFails", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM availability_intervals`)).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO availability_intervals`)).WillReturnError(boom)
		mock.ExpectRollback()

		err := db.SetAvailability(ctx, testProvider, "2025-07-01", []models.Interval{
			{Start: models.MustTimeOfDay("09:00"), End: models.MustTimeOfDay("10:00")},
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ReplaceAvailability_SecondDateFails", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM availability_intervals`)).
			WithArgs(testProvider, "2025-07-01").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM availability_intervals`)).
			WithArgs(testProvider, "2025-07-02").WillReturnError(boom)
		mock.ExpectRollback()

		err := db.ReplaceAvailability(ctx, testProvider, map[string][]models.Interval{
			"2025-07-02": nil,
			"2025-07-01": nil,
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CreateReview_RatingRefreshFails", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reviews`)).WillReturnResult(sqlmock.NewResult(11, 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE provider_profiles SET`)).WillReturnError(boom)
		mock.ExpectRollback()

		r := &models.Review{BookingID: 1, ProviderID: testProvider, Rating: 4}
		err := db.CreateReview(ctx, r)
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, r.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CreateSyncTask_Error", func(t *testing.T) {
		db, mock := setupMock(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO sync_queue`)).WillReturnError(boom)

		err := db.CreateSyncTask(ctx, &models.SyncTask{})
		assert.ErrorIs(t, err, boom)
	})
}
