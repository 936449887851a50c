package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-carescore/internal/models"
)

func scoreResult(status models.Status) *models.CareScoreResult {
	return &models.CareScoreResult{
		ID:        "score-1",
		UserID:    "user-1",
		Timestamp: composeTime(),
		Status:    status,
	}
}

func TestAdvanceEscalation_StableCreatesNothing(t *testing.T) {
	outcome := AdvanceEscalation(scoreResult(models.StatusStable), nil, composeTime())

	assert.Equal(t, EscalationNotApplicable, outcome.Decision)
	assert.Nil(t, outcome.Record)
}

func TestAdvanceEscalation_StatusLevelMapping(t *testing.T) {
	// Mild → Awareness(1)，Moderate → Attention(2)，High → Consultation(3)
	tests := []struct {
		status    models.Status
		wantLevel int
	}{
		{models.StatusMild, 1},
		{models.StatusModerate, 2},
		{models.StatusHigh, 3},
	}

	for _, tt := range tests {
		outcome := AdvanceEscalation(scoreResult(tt.status), nil, composeTime())
		require.Equal(t, EscalationCreated, outcome.Decision, "status=%s", tt.status)
		require.NotNil(t, outcome.Record)
		assert.Equal(t, tt.wantLevel, outcome.Record.Level)
		assert.NotEmpty(t, outcome.Record.ID)
		assert.NotEmpty(t, outcome.Record.Title)
		assert.NotEmpty(t, outcome.Record.Message)
		assert.Equal(t, "user-1", outcome.Record.UserID)
		assert.Equal(t, "score-1", outcome.Record.CareScoreID)
		assert.False(t, outcome.Record.Acknowledged)
	}
}

func TestAdvanceEscalation_NoDuplicateWhileOpen(t *testing.T) {
	// 连续两次 High，已有打开的 3 级记录 → 不创建第二条
	now := composeTime()
	first := AdvanceEscalation(scoreResult(models.StatusHigh), nil, now)
	require.Equal(t, EscalationCreated, first.Decision)

	second := AdvanceEscalation(scoreResult(models.StatusHigh), first.Record, now.Add(time.Hour))
	assert.Equal(t, EscalationAlreadyOpen, second.Decision)
	assert.Same(t, first.Record, second.Record)
}

func TestAdvanceEscalation_EscalatesAboveOpenLevel(t *testing.T) {
	// 级别只会静默上升：打开的 1 级记录存在时，High 仍创建 3 级新记录
	now := composeTime()
	open := AdvanceEscalation(scoreResult(models.StatusMild), nil, now)
	require.Equal(t, EscalationCreated, open.Decision)

	higher := AdvanceEscalation(scoreResult(models.StatusHigh), open.Record, now.Add(time.Hour))
	require.Equal(t, EscalationCreated, higher.Decision)
	assert.Equal(t, 3, higher.Record.Level)
	assert.NotEqual(t, open.Record.ID, higher.Record.ID)
}

func TestAdvanceEscalation_NoDowngradeWhileOpen(t *testing.T) {
	// 级别下降时不自动创建更低级别的记录，由用户确认现有记录
	now := composeTime()
	open := AdvanceEscalation(scoreResult(models.StatusHigh), nil, now)
	require.Equal(t, EscalationCreated, open.Decision)

	lower := AdvanceEscalation(scoreResult(models.StatusMild), open.Record, now.Add(time.Hour))
	assert.Equal(t, EscalationAlreadyOpen, lower.Decision)
	assert.Equal(t, 3, lower.Record.Level)
}

func TestAdvanceEscalation_AcknowledgedRecordDoesNotBlock(t *testing.T) {
	// 确认之后的新偏离创建全新记录
	now := composeTime()
	open := AdvanceEscalation(scoreResult(models.StatusHigh), nil, now)
	require.Equal(t, EscalationCreated, open.Decision)

	acked := AcknowledgeEscalation(open.Record, models.AckDismissed, now.Add(time.Hour))
	fresh := AdvanceEscalation(scoreResult(models.StatusHigh), acked, now.Add(2*time.Hour))

	require.Equal(t, EscalationCreated, fresh.Decision)
	assert.NotEqual(t, open.Record.ID, fresh.Record.ID)
}

func TestAcknowledgeEscalation_SetsTerminalState(t *testing.T) {
	now := composeTime()
	outcome := AdvanceEscalation(scoreResult(models.StatusModerate), nil, now)
	require.Equal(t, EscalationCreated, outcome.Decision)

	ackTime := now.Add(30 * time.Minute)
	acked := AcknowledgeEscalation(outcome.Record, models.AckScheduled, ackTime)

	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.Equal(t, ackTime, *acked.AcknowledgedAt)
	require.NotNil(t, acked.ActionTaken)
	assert.Equal(t, models.AckScheduled, *acked.ActionTaken)

	// 原记录不被修改（值快照语义）
	assert.False(t, outcome.Record.Acknowledged)
}

func TestAcknowledgeEscalation_Idempotent(t *testing.T) {
	// 重复确认是 no-op，两次都返回不变的记录
	now := composeTime()
	outcome := AdvanceEscalation(scoreResult(models.StatusHigh), nil, now)
	require.Equal(t, EscalationCreated, outcome.Decision)

	first := AcknowledgeEscalation(outcome.Record, models.AckDismissed, now.Add(time.Hour))
	second := AcknowledgeEscalation(first, models.AckDismissed, now.Add(2*time.Hour))
	third := AcknowledgeEscalation(second, models.AckScheduled, now.Add(3*time.Hour))

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, *first.AcknowledgedAt, *third.AcknowledgedAt)
	assert.Equal(t, models.AckDismissed, *third.ActionTaken)
}

func TestRecommendationForStatus(t *testing.T) {
	for _, status := range []models.Status{
		models.StatusStable, models.StatusMild, models.StatusModerate, models.StatusHigh,
	} {
		assert.NotEmpty(t, RecommendationForStatus(status))
	}
}
