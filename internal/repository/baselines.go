package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"pulse-carescore/internal/models"
)

func marshalSymptoms(symptoms []string) ([]byte, error) {
	if symptoms == nil {
		symptoms = []string{}
	}
	return json.Marshal(symptoms)
}

func unmarshalSymptoms(data []byte, out *[]string) error {
	return json.Unmarshal(data, out)
}

// BaselineRepository 基线仓库
// 每个 (user_id, kind) 只保留当前基线，重算即整体替换
type BaselineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBaselineRepository 创建基线仓库
func NewBaselineRepository(db *sql.DB, logger *zap.Logger) *BaselineRepository {
	return &BaselineRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertBaseline 写入/替换用户单信号的基线
func (r *BaselineRepository) UpsertBaseline(ctx context.Context, baseline *models.Baseline) error {
	if baseline == nil {
		return fmt.Errorf("baseline is required")
	}
	if baseline.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !baseline.Kind.IsValid() {
		return fmt.Errorf("invalid signal kind: %s", baseline.Kind)
	}
	if baseline.StdDev <= 0 {
		return fmt.Errorf("std_dev must be positive, got %f", baseline.StdDev)
	}

	query := `
		INSERT INTO baselines (user_id, kind, mean, std_dev, sample_count, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, kind)
		DO UPDATE SET
			mean = EXCLUDED.mean,
			std_dev = EXCLUDED.std_dev,
			sample_count = EXCLUDED.sample_count,
			last_updated = EXCLUDED.last_updated
	`

	_, err := r.db.ExecContext(ctx, query,
		baseline.UserID,
		string(baseline.Kind),
		baseline.Mean,
		baseline.StdDev,
		baseline.SampleCount,
		baseline.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert baseline: %w", err)
	}

	return nil
}

// GetBaseline 获取用户单信号的当前基线
// 没有基线时返回 nil（该信号按不计分处理），不是错误
func (r *BaselineRepository) GetBaseline(ctx context.Context, userID string, kind models.SignalKind) (*models.Baseline, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid signal kind: %s", kind)
	}

	query := `
		SELECT user_id, kind, mean, std_dev, sample_count, last_updated
		FROM baselines
		WHERE user_id = $1 AND kind = $2
	`

	var baseline models.Baseline
	var kindStr string
	err := r.db.QueryRowContext(ctx, query, userID, string(kind)).Scan(
		&baseline.UserID,
		&kindStr,
		&baseline.Mean,
		&baseline.StdDev,
		&baseline.SampleCount,
		&baseline.LastUpdated,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 基线尚未建立
		}
		return nil, fmt.Errorf("failed to query baseline: %w", err)
	}
	baseline.Kind = models.SignalKind(kindStr)

	return &baseline, nil
}

// GetBaselines 获取用户所有信号的当前基线
func (r *BaselineRepository) GetBaselines(ctx context.Context, userID string) (map[models.SignalKind]*models.Baseline, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT user_id, kind, mean, std_dev, sample_count, last_updated
		FROM baselines
		WHERE user_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	baselines := map[models.SignalKind]*models.Baseline{}
	for rows.Next() {
		var baseline models.Baseline
		var kindStr string
		if err := rows.Scan(
			&baseline.UserID,
			&kindStr,
			&baseline.Mean,
			&baseline.StdDev,
			&baseline.SampleCount,
			&baseline.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		baseline.Kind = models.SignalKind(kindStr)
		if !baseline.Kind.IsValid() {
			r.logger.Warn("Skipping baseline with unknown signal kind",
				zap.String("user_id", userID),
				zap.String("kind", kindStr),
			)
			continue
		}
		baselines[baseline.Kind] = &baseline
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate baselines: %w", err)
	}

	return baselines, nil
}
