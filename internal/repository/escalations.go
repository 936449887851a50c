package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pulse-carescore/internal/models"
)

// EscalationRepository 升级记录仓库
// 升级记录的生命周期：打开 -> 确认（终态），确认后不可回退
type EscalationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEscalationRepository 创建升级记录仓库
func NewEscalationRepository(db *sql.DB, logger *zap.Logger) *EscalationRepository {
	return &EscalationRepository{
		db:     db,
		logger: logger,
	}
}

// CreateEscalation 写入一条升级记录
func (r *EscalationRepository) CreateEscalation(ctx context.Context, record *models.EscalationRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.ID == "" {
		return fmt.Errorf("escalation id is required")
	}
	if record.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if record.Level < 1 || record.Level > 3 {
		return fmt.Errorf("invalid escalation level: %d", record.Level)
	}

	query := `
		INSERT INTO escalations (
			escalation_id, user_id, care_score_id, level, title, message,
			created_at, acknowledged, acknowledged_at, action_taken
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.CareScoreID,
		record.Level,
		record.Title,
		record.Message,
		record.CreatedAt,
		record.Acknowledged,
		record.AcknowledgedAt,
		nullableString(record.ActionTaken),
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	return nil
}

// GetOpenEscalation 获取用户当前未确认的升级记录
// 不变式保证同一用户最多一条打开记录；没有时返回 nil
func (r *EscalationRepository) GetOpenEscalation(ctx context.Context, userID string) (*models.EscalationRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := selectEscalationColumns + `
		WHERE user_id = $1 AND acknowledged = false
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, userID)
	record, err := scanEscalation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open escalation: %w", err)
	}

	return record, nil
}

// GetEscalation 按ID获取升级记录
func (r *EscalationRepository) GetEscalation(ctx context.Context, escalationID string) (*models.EscalationRecord, error) {
	if escalationID == "" {
		return nil, fmt.Errorf("escalation_id is required")
	}

	query := selectEscalationColumns + `
		WHERE escalation_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, escalationID)
	record, err := scanEscalation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query escalation: %w", err)
	}

	return record, nil
}

// ListEscalations 获取用户升级记录列表（时间倒序）
// openOnly 为 true 时只返回未确认的记录
func (r *EscalationRepository) ListEscalations(ctx context.Context, userID string, openOnly bool, limit int) ([]*models.EscalationRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := selectEscalationColumns + `
		WHERE user_id = $1
	`
	args := []interface{}{userID}

	if openOnly {
		query += ` AND acknowledged = false`
	}

	query += `
		ORDER BY created_at DESC
		LIMIT $2
	`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	records := []*models.EscalationRecord{}
	for rows.Next() {
		record, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate escalations: %w", err)
	}

	return records, nil
}

// AcknowledgeEscalation 确认升级记录（终态，幂等）
// 只更新尚未确认的行；重复确认不改变首次确认的时间和动作
func (r *EscalationRepository) AcknowledgeEscalation(ctx context.Context, escalationID string, action models.AckAction, now time.Time) error {
	if escalationID == "" {
		return fmt.Errorf("escalation_id is required")
	}
	if !action.IsValid() {
		return fmt.Errorf("invalid ack action: %s", action)
	}

	query := `
		UPDATE escalations
		SET acknowledged = true,
		    acknowledged_at = $1,
		    action_taken = $2
		WHERE escalation_id = $3 AND acknowledged = false
	`

	result, err := r.db.ExecContext(ctx, query, now, string(action), escalationID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge escalation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// 已确认的记录保持不变，幂等处理
		r.logger.Debug("Escalation already acknowledged or not found",
			zap.String("escalation_id", escalationID),
		)
	}

	return nil
}

const selectEscalationColumns = `
	SELECT escalation_id, user_id, care_score_id, level, title, message,
	       created_at, acknowledged, acknowledged_at, action_taken
	FROM escalations
`

func scanEscalation(row scanner) (*models.EscalationRecord, error) {
	var record models.EscalationRecord
	var acknowledgedAt sql.NullTime
	var actionTaken sql.NullString

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.CareScoreID,
		&record.Level,
		&record.Title,
		&record.Message,
		&record.CreatedAt,
		&record.Acknowledged,
		&acknowledgedAt,
		&actionTaken,
	)
	if err != nil {
		return nil, err
	}

	if acknowledgedAt.Valid {
		record.AcknowledgedAt = &acknowledgedAt.Time
	}
	if actionTaken.Valid {
		action := models.AckAction(actionTaken.String)
		record.ActionTaken = &action
	}

	return &record, nil
}

func nullableString(action *models.AckAction) interface{} {
	if action == nil || *action == "" {
		return nil
	}
	return string(*action)
}
