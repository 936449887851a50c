package models

import (
	"time"
)

// Tier 偏离严重程度（共享阈值，对所有信号类型一致）
type Tier string

const (
	TierUnscored Tier = "unscored" // 无基线，无法评分（与 Normal 严格区分）
	TierNormal   Tier = "normal"   // |z| < 1.0
	TierMild     Tier = "mild"     // 1.0 <= |z| < 1.5
	TierModerate Tier = "moderate" // 1.5 <= |z| < 2.0
	TierSevere   Tier = "severe"   // |z| >= 2.0
)

// IsDeviating 是否处于偏离状态（非 Normal 且非 Unscored）
func (t Tier) IsDeviating() bool {
	return t == TierMild || t == TierModerate || t == TierSevere
}

// Direction 偏离方向（相对基线均值）
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// DeviationResult 单信号偏离评估结果
type DeviationResult struct {
	Kind      SignalKind `json:"kind"`
	ZScore    float64    `json:"z_score"`
	Tier      Tier       `json:"tier"`
	Direction Direction  `json:"direction"`
}

// IsHarmful 偏离方向是否为该信号的危害方向
// 跨信号一致性只统计危害方向一致的偏离信号
func (d DeviationResult) IsHarmful() bool {
	if !d.Tier.IsDeviating() {
		return false
	}
	switch d.Kind.HarmDirection() {
	case HarmHigher:
		return d.Direction == DirectionAbove
	case HarmLower:
		return d.Direction == DirectionBelow
	case HarmDeviation:
		return true
	}
	return false
}

// PersistenceState 单信号持续偏离状态（每个 user_id + kind 一条）
// 信号回到 Normal 时归零；偏离档位变化但仍偏离时视为延续，不重置
type PersistenceState struct {
	UserID              string     `json:"user_id"`
	Kind                SignalKind `json:"kind"`
	CurrentTier         Tier       `json:"current_tier"`
	ConsecutivePeriods  int        `json:"consecutive_periods"`
	FirstDeviationAt    *time.Time `json:"first_deviation_at,omitempty"`
}

// Status CareScore 总体状态（分数区间映射，下界含）
type Status string

const (
	StatusStable   Status = "stable"   // 0-30
	StatusMild     Status = "mild"     // 31-50
	StatusModerate Status = "moderate" // 51-70
	StatusHigh     Status = "high"     // 71-100
)

// ScoreComponents CareScore 四个分量（各自封顶）
type ScoreComponents struct {
	Severity    float64 `json:"severity"`     // 0-40
	Persistence float64 `json:"persistence"`  // 0-25
	CrossSignal float64 `json:"cross_signal"` // 0-20
	Manual      float64 `json:"manual"`       // 0-10
}

// ContributingSignal 参与评分的偏离信号（解释用）
type ContributingSignal struct {
	Kind      SignalKind `json:"kind"`
	ZScore    float64    `json:"z_score"`
	Tier      Tier       `json:"tier"`
	Direction Direction  `json:"direction"`
}

// CareScoreResult CareScore 计算结果（不可变快照，只追加历史）
type CareScoreResult struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"user_id"`
	Timestamp           time.Time            `json:"timestamp"`
	Score               int                  `json:"score"` // 0-100
	Status              Status               `json:"status"`
	Components          ScoreComponents      `json:"components"`
	Confidence          float64              `json:"confidence"` // 0-100
	Stability           float64              `json:"stability"`  // 0-100
	ContributingSignals []ContributingSignal `json:"contributing_signals"`
	Explanation         string               `json:"explanation"`
}
