package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulse-carescore/internal/models"
)

func setupMockCareScoreDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *CareScoreRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewCareScoreRepository(db, logger)

	return db, mock, repo
}

func TestInsertScore_Success(t *testing.T) {
	db, mock, repo := setupMockCareScoreDB(t)
	defer db.Close()

	ctx := context.Background()
	result := &models.CareScoreResult{
		ID:        uuid.New().String(),
		UserID:    "user-1",
		Timestamp: time.Now(),
		Score:     62,
		Status:    models.StatusModerate,
		Components: models.ScoreComponents{
			Severity:    40,
			Persistence: 2.5,
			CrossSignal: 20,
			Manual:      0,
		},
		Confidence: 88,
		Stability:  95,
		ContributingSignals: []models.ContributingSignal{
			{Kind: models.SignalHeartRate, ZScore: 3.0, Tier: models.TierSevere, Direction: models.DirectionAbove},
		},
		Explanation: "heart rate is well above your usual baseline (z=3.0)",
	}

	mock.ExpectExec(`INSERT INTO care_scores`).
		WithArgs(result.ID, result.UserID, result.Timestamp, result.Score, "moderate",
			40.0, 2.5, 20.0, 0.0, 88.0, 95.0, sqlmock.AnyArg(), result.Explanation).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertScore(ctx, result)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertScore_MissingID(t *testing.T) {
	db, mock, repo := setupMockCareScoreDB(t)
	defer db.Close()

	ctx := context.Background()
	result := &models.CareScoreResult{UserID: "user-1"}

	err := repo.InsertScore(ctx, result)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "score id is required")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestScore_None(t *testing.T) {
	db, mock, repo := setupMockCareScoreDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	result, err := repo.GetLatestScore(ctx, "user-1")

	require.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestScore_Success(t *testing.T) {
	db, mock, repo := setupMockCareScoreDB(t)
	defer db.Close()

	ctx := context.Background()
	scoreID := uuid.New().String()
	ts := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "timestamp", "score", "status",
		"severity_component", "persistence_component", "cross_signal_component", "manual_component",
		"confidence", "stability", "contributing_signals", "explanation",
	}).AddRow(
		scoreID, "user-1", ts, 42, "mild",
		20.0, 2.5, 10.0, 0.0, 90.0, 96.0,
		[]byte(`[{"kind":"hrv","z_score":-1.8,"tier":"moderate","direction":"below"}]`),
		"HRV is notably below your usual baseline (z=-1.8)",
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1").
		WillReturnRows(rows)

	result, err := repo.GetLatestScore(ctx, "user-1")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 42, result.Score)
	assert.Equal(t, models.StatusMild, result.Status)
	assert.Equal(t, 20.0, result.Components.Severity)
	require.Len(t, result.ContributingSignals, 1)
	assert.Equal(t, models.SignalHRV, result.ContributingSignals[0].Kind)
	assert.Equal(t, models.TierModerate, result.ContributingSignals[0].Tier)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentScoreValues_OrderedDesc(t *testing.T) {
	db, mock, repo := setupMockCareScoreDB(t)
	defer db.Close()

	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"score"}).
		AddRow(42).AddRow(38).AddRow(35)

	mock.ExpectQuery(`SELECT score`).
		WithArgs("user-1", 30).
		WillReturnRows(rows)

	scores, err := repo.GetRecentScoreValues(ctx, "user-1", 30)

	require.NoError(t, err)
	assert.Equal(t, []int{42, 38, 35}, scores)

	require.NoError(t, mock.ExpectationsWereMet())
}
