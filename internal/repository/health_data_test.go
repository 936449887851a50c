package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-carescore/internal/models"
)

func setupMockHealthDataDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *HealthDataRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewHealthDataRepository(db, logger)

	return db, mock, repo
}

// ============================================
// 读数写入测试
// ============================================

func TestInsertReading_Success(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()
	reading := &models.Reading{
		UserID:    "user-1",
		Kind:      models.SignalHeartRate,
		Value:     72,
		Timestamp: time.Now(),
		Source:    "wearable",
	}

	mock.ExpectExec(`INSERT INTO health_data`).
		WithArgs(reading.UserID, "heart_rate", reading.Value, reading.Timestamp, reading.Source).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertReading(ctx, reading)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_InvalidKind(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()
	reading := &models.Reading{
		UserID:    "user-1",
		Kind:      models.SignalKind("step_count"),
		Value:     5000,
		Timestamp: time.Now(),
	}

	err := repo.InsertReading(ctx, reading)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid signal kind")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReading_MissingUserID(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()
	reading := &models.Reading{
		Kind:      models.SignalHeartRate,
		Value:     72,
		Timestamp: time.Now(),
	}

	err := repo.InsertReading(ctx, reading)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "user_id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 窗口查询测试
// ============================================

func TestGetWindowReadings_Success(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"user_id", "kind", "value", "timestamp", "source"}).
		AddRow("user-1", "heart_rate", 70.0, now.AddDate(0, 0, -2), "wearable").
		AddRow("user-1", "heart_rate", 72.0, now.AddDate(0, 0, -1), "wearable")

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1", "heart_rate", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	readings, err := repo.GetWindowReadings(ctx, "user-1", models.SignalHeartRate, 14, now)

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, models.SignalHeartRate, readings[0].Kind)
	assert.Equal(t, 70.0, readings[0].Value)
	assert.Equal(t, 72.0, readings[1].Value)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetWindowReadings_Empty(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"user_id", "kind", "value", "timestamp", "source"})

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1", "hrv", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(rows)

	readings, err := repo.GetWindowReadings(ctx, "user-1", models.SignalHRV, 14, time.Now())

	require.NoError(t, err)
	assert.Empty(t, readings)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 最新读数测试
// ============================================

func TestGetLatestReadings_SkipsUnknownKinds(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"user_id", "kind", "value", "timestamp", "source"}).
		AddRow("user-1", "heart_rate", 72.0, now, "wearable").
		AddRow("user-1", "legacy_kind", 1.0, now, "import").
		AddRow("user-1", "hrv", 45.0, now, "wearable")

	mock.ExpectQuery(`SELECT DISTINCT ON`).
		WithArgs("user-1").
		WillReturnRows(rows)

	latest, err := repo.GetLatestReadings(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, 72.0, latest[models.SignalHeartRate].Value)
	assert.Equal(t, 45.0, latest[models.SignalHRV].Value)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 手动输入测试
// ============================================

func TestGetLatestManualInput_NoRows(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	manual, err := repo.GetLatestManualInput(ctx, "user-1", 24)

	require.NoError(t, err)
	assert.Nil(t, manual)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestManualInput_Success(t *testing.T) {
	db, mock, repo := setupMockHealthDataDB(t)
	defer db.Close()

	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"bp_systolic", "bp_diastolic", "blood_sugar", "symptoms"}).
		AddRow(145.0, 92.0, nil, []byte(`["dizziness"]`))

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	manual, err := repo.GetLatestManualInput(ctx, "user-1", 24)

	require.NoError(t, err)
	require.NotNil(t, manual)
	require.NotNil(t, manual.BpSystolic)
	assert.Equal(t, 145.0, *manual.BpSystolic)
	require.NotNil(t, manual.BpDiastolic)
	assert.Equal(t, 92.0, *manual.BpDiastolic)
	assert.Nil(t, manual.BloodSugar)
	assert.Equal(t, []string{"dizziness"}, manual.Symptoms)

	require.NoError(t, mock.ExpectationsWereMet())
}
