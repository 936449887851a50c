package engine

import (
	"math"
	"time"

	"pulse-carescore/internal/models"
)

// UpdateBaseline 从滚动历史窗口计算个人化基线
//
// 规则：
// - 只统计 now 往前 BaselineWindowDays 天内的读数（窗口外的读数忽略，不删除）
// - 至少需要 BaselineMinSamples 个不同观察日，否则返回 ErrInsufficientData
// - 标准差按信号类型下限封底，防止近恒定信号产生失控 z-score
//
// 纯函数：只返回新的 Baseline 快照，持久化由调用方负责。
// 格式错误的读数必须在上游过滤，这里不做校验。
func UpdateBaseline(p Policy, userID string, kind models.SignalKind, history []models.Reading, now time.Time) (*models.Baseline, error) {
	cutoff := now.AddDate(0, 0, -p.BaselineWindowDays)

	var values []float64
	days := make(map[string]struct{})
	for _, r := range history {
		if r.Kind != kind || r.UserID != userID {
			continue
		}
		if r.Timestamp.Before(cutoff) || r.Timestamp.After(now) {
			continue
		}
		values = append(values, r.Value)
		days[r.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
	}

	// 按不同观察日计数，同一天多条读数只算一个观察周期
	if len(days) < p.BaselineMinSamples {
		return nil, ErrInsufficientData
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	stdDev := math.Sqrt(variance)

	// 标准差封底
	if floor := p.StdDevFloor(string(kind)); stdDev < floor {
		stdDev = floor
	}

	return &models.Baseline{
		UserID:      userID,
		Kind:        kind,
		Mean:        mean,
		StdDev:      stdDev,
		SampleCount: len(values),
		LastUpdated: now,
	}, nil
}
