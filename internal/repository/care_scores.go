package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"pulse-carescore/internal/models"
)

// CareScoreRepository 评分仓库
// 评分记录只追加不修改，历史即审计轨迹
type CareScoreRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCareScoreRepository 创建评分仓库
func NewCareScoreRepository(db *sql.DB, logger *zap.Logger) *CareScoreRepository {
	return &CareScoreRepository{
		db:     db,
		logger: logger,
	}
}

// InsertScore 追加一条评分记录
func (r *CareScoreRepository) InsertScore(ctx context.Context, result *models.CareScoreResult) error {
	if result == nil {
		return fmt.Errorf("result is required")
	}
	if result.ID == "" {
		return fmt.Errorf("score id is required")
	}
	if result.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	signals, err := json.Marshal(result.ContributingSignals)
	if err != nil {
		return fmt.Errorf("failed to marshal contributing signals: %w", err)
	}

	query := `
		INSERT INTO care_scores (
			id, user_id, timestamp, score, status,
			severity_component, persistence_component, cross_signal_component, manual_component,
			confidence, stability, contributing_signals, explanation
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		result.ID,
		result.UserID,
		result.Timestamp,
		result.Score,
		string(result.Status),
		result.Components.Severity,
		result.Components.Persistence,
		result.Components.CrossSignal,
		result.Components.Manual,
		result.Confidence,
		result.Stability,
		signals,
		result.Explanation,
	)
	if err != nil {
		return fmt.Errorf("failed to insert care score: %w", err)
	}

	return nil
}

// GetLatestScore 获取用户最新评分
// 没有评分历史时返回 nil，不是错误
func (r *CareScoreRepository) GetLatestScore(ctx context.Context, userID string) (*models.CareScoreResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := selectScoreColumns + `
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	row := r.db.QueryRowContext(ctx, query, userID)
	result, err := scanScore(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest care score: %w", err)
	}

	return result, nil
}

// GetScoreHistory 获取用户评分历史（时间倒序）
func (r *CareScoreRepository) GetScoreHistory(ctx context.Context, userID string, limit int) ([]*models.CareScoreResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = 30
	}

	query := selectScoreColumns + `
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query care score history: %w", err)
	}
	defer rows.Close()

	results := []*models.CareScoreResult{}
	for rows.Next() {
		result, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan care score: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate care scores: %w", err)
	}

	return results, nil
}

// GetRecentScoreValues 获取用户近期分数值（时间倒序），供稳定度计算
func (r *CareScoreRepository) GetRecentScoreValues(ctx context.Context, userID string, limit int) ([]int, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = 30
	}

	query := `
		SELECT score
		FROM care_scores
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent scores: %w", err)
	}
	defer rows.Close()

	scores := []int{}
	for rows.Next() {
		var score int
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent scores: %w", err)
	}

	return scores, nil
}

const selectScoreColumns = `
	SELECT id, user_id, timestamp, score, status,
	       severity_component, persistence_component, cross_signal_component, manual_component,
	       confidence, stability, contributing_signals, explanation
	FROM care_scores
`

// scanner 兼容 *sql.Row 与 *sql.Rows 的扫描
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanScore(row scanner) (*models.CareScoreResult, error) {
	var result models.CareScoreResult
	var status string
	var signals []byte

	err := row.Scan(
		&result.ID,
		&result.UserID,
		&result.Timestamp,
		&result.Score,
		&status,
		&result.Components.Severity,
		&result.Components.Persistence,
		&result.Components.CrossSignal,
		&result.Components.Manual,
		&result.Confidence,
		&result.Stability,
		&signals,
		&result.Explanation,
	)
	if err != nil {
		return nil, err
	}
	result.Status = models.Status(status)

	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &result.ContributingSignals); err != nil {
			return nil, fmt.Errorf("failed to parse contributing signals: %w", err)
		}
	}

	return &result, nil
}
