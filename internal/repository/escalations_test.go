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

func setupMockEscalationDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *EscalationRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewEscalationRepository(db, logger)

	return db, mock, repo
}

func TestCreateEscalation_Success(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()
	record := &models.EscalationRecord{
		ID:          uuid.New().String(),
		UserID:      "user-1",
		CareScoreID: uuid.New().String(),
		Level:       2,
		Title:       "Health Changes Detected",
		Message:     "We've noticed some changes in your health patterns. It might be worth paying attention to how you're feeling.",
		CreatedAt:   time.Now(),
	}

	mock.ExpectExec(`INSERT INTO escalations`).
		WithArgs(record.ID, record.UserID, record.CareScoreID, record.Level,
			record.Title, record.Message, record.CreatedAt, false, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateEscalation(ctx, record)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEscalation_WithActionTaken(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()
	ackAt := time.Now()
	action := models.AckScheduled
	record := &models.EscalationRecord{
		ID:             uuid.New().String(),
		UserID:         "user-1",
		CareScoreID:    uuid.New().String(),
		Level:          1,
		Title:          "Gentle Health Reminder",
		Message:        "Your recent readings show some variation from your usual patterns.",
		CreatedAt:      ackAt.Add(-time.Hour),
		Acknowledged:   true,
		AcknowledgedAt: &ackAt,
		ActionTaken:    &action,
	}

	// 已确认记录落库时 action_taken 写为字符串而不是空
	mock.ExpectExec(`INSERT INTO escalations`).
		WithArgs(record.ID, record.UserID, record.CareScoreID, record.Level,
			record.Title, record.Message, record.CreatedAt, true, record.AcknowledgedAt, "scheduled").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateEscalation(ctx, record)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEscalation_InvalidLevel(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()
	record := &models.EscalationRecord{
		ID:     uuid.New().String(),
		UserID: "user-1",
		Level:  5,
	}

	err := repo.CreateEscalation(ctx, record)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid escalation level")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenEscalation_None(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	record, err := repo.GetOpenEscalation(ctx, "user-1")

	require.NoError(t, err)
	assert.Nil(t, record)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOpenEscalation_Found(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()
	escalationID := uuid.New().String()
	scoreID := uuid.New().String()
	createdAt := time.Now()

	rows := sqlmock.NewRows([]string{
		"escalation_id", "user_id", "care_score_id", "level", "title", "message",
		"created_at", "acknowledged", "acknowledged_at", "action_taken",
	}).AddRow(
		escalationID, "user-1", scoreID, 3,
		"Consider Consulting a Healthcare Provider",
		"Your recent health data shows patterns that may benefit from professional attention.",
		createdAt, false, nil, nil,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("user-1").
		WillReturnRows(rows)

	record, err := repo.GetOpenEscalation(ctx, "user-1")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, escalationID, record.ID)
	assert.Equal(t, 3, record.Level)
	assert.True(t, record.IsOpen())
	assert.Nil(t, record.AcknowledgedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEscalation_AcknowledgedRoundTrip(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()
	escalationID := uuid.New().String()
	ackAt := time.Now()

	rows := sqlmock.NewRows([]string{
		"escalation_id", "user_id", "care_score_id", "level", "title", "message",
		"created_at", "acknowledged", "acknowledged_at", "action_taken",
	}).AddRow(
		escalationID, "user-1", uuid.New().String(), 2,
		"Health Changes Detected",
		"We've noticed some changes in your health patterns.",
		ackAt.Add(-time.Hour), true, ackAt, "dismissed",
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(escalationID).
		WillReturnRows(rows)

	record, err := repo.GetEscalation(ctx, escalationID)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Acknowledged)
	require.NotNil(t, record.ActionTaken)
	assert.Equal(t, models.AckDismissed, *record.ActionTaken)
	require.NotNil(t, record.AcknowledgedAt)
	assert.False(t, record.IsOpen())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeEscalation_Success(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()
	escalationID := uuid.New().String()
	now := time.Now()

	mock.ExpectExec(`UPDATE escalations`).
		WithArgs(now, "scheduled", escalationID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AcknowledgeEscalation(ctx, escalationID, models.AckScheduled, now)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeEscalation_AlreadyAcknowledged(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()
	escalationID := uuid.New().String()
	now := time.Now()

	// 已确认的行不会被更新，不报错（幂等）
	mock.ExpectExec(`UPDATE escalations`).
		WithArgs(now, "dismissed", escalationID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AcknowledgeEscalation(ctx, escalationID, models.AckDismissed, now)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeEscalation_InvalidAction(t *testing.T) {
	db, mock, repo := setupMockEscalationDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.AcknowledgeEscalation(ctx, uuid.New().String(), models.AckAction("ignored"), time.Now())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ack action")
	require.NoError(t, mock.ExpectationsWereMet())
}
