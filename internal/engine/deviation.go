package engine

import (
	"math"

	"pulse-carescore/internal/models"
)

// Score 计算单条读数相对基线的标准化偏离
//
// z = (value - mean) / std_dev
// 档位阈值对所有信号共享：|z| < 1.0 Normal；< 1.5 Mild；< 2.0 Moderate；>= 2.0 Severe
//
// baseline 为 nil 时返回 Unscored 档位，与 Normal 严格区分：
// 合成器必须把 Unscored 信号排除在跨信号统计之外，而不是当作零风险
func Score(p Policy, reading models.Reading, baseline *models.Baseline) models.DeviationResult {
	if baseline == nil {
		return models.DeviationResult{
			Kind: reading.Kind,
			Tier: models.TierUnscored,
		}
	}

	z := (reading.Value - baseline.Mean) / baseline.StdDev

	direction := models.DirectionAbove
	if reading.Value < baseline.Mean {
		direction = models.DirectionBelow
	}

	return models.DeviationResult{
		Kind:      reading.Kind,
		ZScore:    z,
		Tier:      tierForZ(p, z),
		Direction: direction,
	}
}

// tierForZ |z| 到档位的映射（对 |z| 单调）
func tierForZ(p Policy, z float64) models.Tier {
	absZ := math.Abs(z)
	switch {
	case absZ < p.TierMildZ:
		return models.TierNormal
	case absZ < p.TierModerateZ:
		return models.TierMild
	case absZ < p.TierSevereZ:
		return models.TierModerate
	default:
		return models.TierSevere
	}
}
