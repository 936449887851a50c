package service

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
	"pulse-carescore/internal/repository"
)

func setupEscalationService(t *testing.T) (*EscalationService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	escRepo := repository.NewEscalationRepository(db, logger)

	return NewEscalationService(escRepo, logger), mock
}

func escalationRows(id string, acknowledged bool, ackAt interface{}, action interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"escalation_id", "user_id", "care_score_id", "level", "title", "message",
		"created_at", "acknowledged", "acknowledged_at", "action_taken",
	}).AddRow(
		id, "user-1", uuid.New().String(), 2,
		"Health Changes Detected", "We've noticed some changes in your health patterns.",
		time.Now(), acknowledged, ackAt, action,
	)
}

func TestAcknowledge_Success(t *testing.T) {
	svc, mock := setupEscalationService(t)

	ctx := context.Background()
	escalationID := uuid.New().String()
	ackTime := time.Now()

	mock.ExpectQuery(`SELECT`).
		WithArgs(escalationID).
		WillReturnRows(escalationRows(escalationID, false, nil, nil))

	mock.ExpectExec(`UPDATE escalations`).
		WithArgs(sqlmock.AnyArg(), "scheduled", escalationID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT`).
		WithArgs(escalationID).
		WillReturnRows(escalationRows(escalationID, true, ackTime, "scheduled"))

	record, err := svc.Acknowledge(ctx, escalationID, models.AckScheduled)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Acknowledged)
	require.NotNil(t, record.ActionTaken)
	assert.Equal(t, models.AckScheduled, *record.ActionTaken)
	assert.False(t, record.IsOpen())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledge_IdempotentOnRepeat(t *testing.T) {
	svc, mock := setupEscalationService(t)

	ctx := context.Background()
	escalationID := uuid.New().String()
	firstAck := time.Now().Add(-time.Hour)

	// 已确认的记录：不再更新，返回原记录
	mock.ExpectQuery(`SELECT`).
		WithArgs(escalationID).
		WillReturnRows(escalationRows(escalationID, true, firstAck, "dismissed"))

	record, err := svc.Acknowledge(ctx, escalationID, models.AckScheduled)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Acknowledged)
	require.NotNil(t, record.ActionTaken)
	assert.Equal(t, models.AckDismissed, *record.ActionTaken)
	require.NotNil(t, record.AcknowledgedAt)
	assert.WithinDuration(t, firstAck, *record.AcknowledgedAt, time.Second)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledge_NotFound(t *testing.T) {
	svc, mock := setupEscalationService(t)

	ctx := context.Background()
	escalationID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(escalationID).
		WillReturnError(sql.ErrNoRows)

	record, err := svc.Acknowledge(ctx, escalationID, models.AckDismissed)

	assert.Error(t, err)
	assert.Nil(t, record)
	assert.Contains(t, err.Error(), "escalation not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledge_InvalidAction(t *testing.T) {
	svc, mock := setupEscalationService(t)

	record, err := svc.Acknowledge(context.Background(), uuid.New().String(), models.AckAction("snoozed"))

	assert.Error(t, err)
	assert.Nil(t, record)
	assert.Contains(t, err.Error(), "invalid ack action")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEscalations_RequiresUserID(t *testing.T) {
	svc, _ := setupEscalationService(t)

	records, err := svc.ListEscalations(context.Background(), "", false, 10)

	assert.Error(t, err)
	assert.Nil(t, records)
}
