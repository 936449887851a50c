package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pulse-carescore/internal/models"
)

// HealthDataRepository 归一化读数仓库
// 只消费已归一化的读数；去重和格式校验由接入层负责
type HealthDataRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHealthDataRepository 创建读数仓库
func NewHealthDataRepository(db *sql.DB, logger *zap.Logger) *HealthDataRepository {
	return &HealthDataRepository{
		db:     db,
		logger: logger,
	}
}

// InsertReading 写入一条归一化读数（读数一旦写入不可变）
func (r *HealthDataRepository) InsertReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}
	if reading.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !reading.Kind.IsValid() {
		return fmt.Errorf("invalid signal kind: %s", reading.Kind)
	}

	query := `
		INSERT INTO health_data (user_id, kind, value, timestamp, source)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.UserID,
		string(reading.Kind),
		reading.Value,
		reading.Timestamp,
		reading.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// GetWindowReadings 获取用户单信号在滚动窗口内的读数（时间升序）
// 返回的是一次性的一致快照，计算过程中不再查询
func (r *HealthDataRepository) GetWindowReadings(ctx context.Context, userID string, kind models.SignalKind, windowDays int, now time.Time) ([]models.Reading, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid signal kind: %s", kind)
	}

	cutoff := now.AddDate(0, 0, -windowDays)

	query := `
		SELECT user_id, kind, value, timestamp, source
		FROM health_data
		WHERE user_id = $1
		  AND kind = $2
		  AND timestamp >= $3
		  AND timestamp <= $4
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, string(kind), cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query window readings: %w", err)
	}
	defer rows.Close()

	readings := []models.Reading{}
	for rows.Next() {
		var reading models.Reading
		var kindStr string
		if err := rows.Scan(
			&reading.UserID,
			&kindStr,
			&reading.Value,
			&reading.Timestamp,
			&reading.Source,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		reading.Kind = models.SignalKind(kindStr)
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// GetLatestReadings 获取用户每种信号的最新读数
func (r *HealthDataRepository) GetLatestReadings(ctx context.Context, userID string) (map[models.SignalKind]models.Reading, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT DISTINCT ON (kind) user_id, kind, value, timestamp, source
		FROM health_data
		WHERE user_id = $1
		ORDER BY kind, timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest readings: %w", err)
	}
	defer rows.Close()

	latest := map[models.SignalKind]models.Reading{}
	for rows.Next() {
		var reading models.Reading
		var kindStr string
		if err := rows.Scan(
			&reading.UserID,
			&kindStr,
			&reading.Value,
			&reading.Timestamp,
			&reading.Source,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		reading.Kind = models.SignalKind(kindStr)
		if !reading.Kind.IsValid() {
			// 未知信号类型的历史数据直接跳过，不影响其余信号
			r.logger.Warn("Skipping reading with unknown signal kind",
				zap.String("user_id", userID),
				zap.String("kind", kindStr),
			)
			continue
		}
		latest[reading.Kind] = reading
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate latest readings: %w", err)
	}

	return latest, nil
}

// ListActiveUsers 获取近期有数据的用户列表（评估轮询用）
func (r *HealthDataRepository) ListActiveUsers(ctx context.Context, withinDays int) ([]string, error) {
	cutoff := time.Now().AddDate(0, 0, -withinDays)

	query := `
		SELECT DISTINCT user_id
		FROM health_data
		WHERE timestamp >= $1
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query active users: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan user_id: %w", err)
		}
		users = append(users, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active users: %w", err)
	}

	return users, nil
}

// GetLatestManualInput 获取用户最新的手动输入（血压/血糖/症状）
// 没有记录时返回 nil，不是错误
func (r *HealthDataRepository) GetLatestManualInput(ctx context.Context, userID string, withinHours int) (*models.ManualInput, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	cutoff := time.Now().Add(-time.Duration(withinHours) * time.Hour)

	query := `
		SELECT bp_systolic, bp_diastolic, blood_sugar, symptoms
		FROM manual_inputs
		WHERE user_id = $1
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var bpSys, bpDia, sugar sql.NullFloat64
	var symptoms []byte

	err := r.db.QueryRowContext(ctx, query, userID, cutoff).Scan(&bpSys, &bpDia, &sugar, &symptoms)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 没有手动输入
		}
		return nil, fmt.Errorf("failed to query manual input: %w", err)
	}

	manual := &models.ManualInput{}
	if bpSys.Valid {
		manual.BpSystolic = &bpSys.Float64
	}
	if bpDia.Valid {
		manual.BpDiastolic = &bpDia.Float64
	}
	if sugar.Valid {
		manual.BloodSugar = &sugar.Float64
	}
	if len(symptoms) > 0 {
		if err := unmarshalSymptoms(symptoms, &manual.Symptoms); err != nil {
			return nil, fmt.Errorf("failed to parse symptoms: %w", err)
		}
	}

	return manual, nil
}

// InsertManualInput 写入手动输入
func (r *HealthDataRepository) InsertManualInput(ctx context.Context, userID string, manual *models.ManualInput, now time.Time) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if manual.IsEmpty() {
		return fmt.Errorf("manual input is empty")
	}

	symptoms, err := marshalSymptoms(manual.Symptoms)
	if err != nil {
		return fmt.Errorf("failed to marshal symptoms: %w", err)
	}

	query := `
		INSERT INTO manual_inputs (user_id, bp_systolic, bp_diastolic, blood_sugar, symptoms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		userID,
		nullableFloat(manual.BpSystolic),
		nullableFloat(manual.BpDiastolic),
		nullableFloat(manual.BloodSugar),
		symptoms,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert manual input: %w", err)
	}

	return nil
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
