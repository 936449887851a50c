package engine

import (
	"time"

	"pulse-carescore/internal/models"
)

// Advance 推进单信号的持续偏离状态
//
// 规则：
// - 回到 Normal：连续周期数归零，清除首次偏离时间
// - 与上次相同的偏离档位：连续周期数 +1
// - 档位变化但仍偏离：视为延续而非重置——持续性反映的是
//   "一直异常"，不是"一直在同一严重度异常"
// - Unscored 不推进也不重置（无基线时保持原状态）
//
// 纯函数：返回新的状态快照，不修改入参。
func Advance(prev models.PersistenceState, newTier models.Tier, now time.Time) models.PersistenceState {
	next := prev

	switch {
	case newTier == models.TierUnscored:
		// 无基线：状态保持不变
		return next

	case newTier == models.TierNormal:
		next.CurrentTier = models.TierNormal
		next.ConsecutivePeriods = 0
		next.FirstDeviationAt = nil

	default:
		next.CurrentTier = newTier
		next.ConsecutivePeriods = prev.ConsecutivePeriods + 1
		if prev.FirstDeviationAt == nil {
			t := now
			next.FirstDeviationAt = &t
		}
	}

	return next
}

// persistencePoints 连续周期数到持续性分量的映射（线性爬坡，封顶）
func persistencePoints(p Policy, consecutivePeriods int) float64 {
	if consecutivePeriods <= 0 {
		return 0
	}
	points := float64(consecutivePeriods) * p.PersistencePointsPerPeriod
	if points > p.PersistenceCap {
		return p.PersistenceCap
	}
	return points
}
