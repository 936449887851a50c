// Package engine 提供漂移检测与 CareScore 计算核心
//
// 主要功能：
// - 个人化基线估计（滚动窗口均值/标准差，带每信号标准差下限）
// - 单信号偏离评分（z-score + 共享档位阈值）
// - 持续偏离跟踪（连续观察周期计数）
// - CareScore 合成（严重度 + 持续性 + 跨信号一致性 + 手动输入修正）
// - 升级状态机（分数状态 → 提醒级别，确认生命周期）
//
// 所有计算都是纯函数：输入值快照，输出新快照，不做任何 I/O。
// 持久化由调用方（service/repository 层）负责。
package engine

// Policy 评分策略常量表
// 权重表属于策略配置而非结构规范，通过 DefaultPolicy 提供与
// 验收场景一致的默认值，可由 config 覆盖
type Policy struct {
	// 基线估计
	BaselineWindowDays int // 滚动窗口天数，默认 14
	BaselineMinSamples int // 最少观察天数（不足返回 ErrInsufficientData），默认 5

	// 档位阈值（|z| 上界，所有信号共享）
	TierMildZ     float64 // Normal/Mild 边界，默认 1.0
	TierModerateZ float64 // Mild/Moderate 边界，默认 1.5
	TierSevereZ   float64 // Moderate/Severe 边界，默认 2.0

	// 严重度分量（0-40）：每个偏离信号按档位计权重，求和后封顶
	SeverityWeightMild     float64 // 默认 6
	SeverityWeightModerate float64 // 默认 12
	SeverityWeightSevere   float64 // 默认 20
	SeverityCap            float64 // 默认 40

	// 持续性分量（0-25）：线性爬坡，到饱和周期数封顶
	PersistencePointsPerPeriod float64 // 默认 2.5
	PersistenceSaturation      int     // 默认 10 个连续周期
	PersistenceCap             float64 // 默认 25

	// 跨信号分量（0-20）：危害方向一致的偏离信号数 → 阶梯分
	CrossSignalTwo   float64 // 2 个一致信号，默认 10
	CrossSignalThree float64 // >=3 个一致信号或 >=2 个一致 Severe 信号，默认 20
	CrossSignalCap   float64 // 默认 20

	// 手动输入分量（0-10）
	ManualBpCrisisSystolic   float64 // 默认 180
	ManualBpCrisisDiastolic  float64 // 默认 120
	ManualBpHighSystolic     float64 // 默认 140
	ManualBpHighDiastolic    float64 // 默认 90
	ManualBpCrisisPoints     float64 // 默认 6
	ManualBpHighPoints       float64 // 默认 4
	ManualSugarHigh          float64 // 默认 200 mg/dL
	ManualSugarElevated      float64 // 默认 140 mg/dL
	ManualSugarLow           float64 // 默认 70 mg/dL
	ManualSugarHighPoints    float64 // 默认 5
	ManualSugarOutOfRangePts float64 // 默认 3
	ManualSymptomPoints      float64 // 每个症状，默认 1
	ManualCap                float64 // 默认 10

	// 置信度权重
	ConfidenceScoredWeight   float64 // 已评分信号占比权重，默认 0.6
	ConfidenceBaselineWeight float64 // 有基线信号占比权重，默认 0.4
	ConfidenceAgreementBonus float64 // 每个一致偏离信号加分，默认 4

	// 稳定度：100 - 波动系数 * 历史分数标准差
	StabilityVolatilityFactor float64 // 默认 2.0

	// 标准差下限（按信号类型，防止近恒定信号产生失控 z-score）
	StdDevFloors map[string]float64
}

// DefaultPolicy 默认策略表
func DefaultPolicy() Policy {
	return Policy{
		BaselineWindowDays: 14,
		BaselineMinSamples: 5,

		TierMildZ:     1.0,
		TierModerateZ: 1.5,
		TierSevereZ:   2.0,

		SeverityWeightMild:     6,
		SeverityWeightModerate: 12,
		SeverityWeightSevere:   20,
		SeverityCap:            40,

		PersistencePointsPerPeriod: 2.5,
		PersistenceSaturation:      10,
		PersistenceCap:             25,

		CrossSignalTwo:   10,
		CrossSignalThree: 20,
		CrossSignalCap:   20,

		ManualBpCrisisSystolic:   180,
		ManualBpCrisisDiastolic:  120,
		ManualBpHighSystolic:     140,
		ManualBpHighDiastolic:    90,
		ManualBpCrisisPoints:     6,
		ManualBpHighPoints:       4,
		ManualSugarHigh:          200,
		ManualSugarElevated:      140,
		ManualSugarLow:           70,
		ManualSugarHighPoints:    5,
		ManualSugarOutOfRangePts: 3,
		ManualSymptomPoints:      1,
		ManualCap:                10,

		ConfidenceScoredWeight:   0.6,
		ConfidenceBaselineWeight: 0.4,
		ConfidenceAgreementBonus: 4,

		StabilityVolatilityFactor: 2.0,

		// HRV 等自然波动大的信号下限更高，近恒定信号下限防止 z 爆炸
		StdDevFloors: map[string]float64{
			"heart_rate":         2.0,
			"resting_heart_rate": 1.5,
			"hrv":                4.0,
			"sleep_duration":     0.5,
			"sleep_quality":      5.0,
			"activity_level":     500,
			"breathing_rate":     1.0,
			"bp_systolic":        4.0,
			"bp_diastolic":       3.0,
			"blood_sugar":        8.0,
		},
	}
}

// StdDevFloor 获取信号的标准差下限（未配置的信号使用保守默认值）
func (p Policy) StdDevFloor(kind string) float64 {
	if floor, ok := p.StdDevFloors[kind]; ok && floor > 0 {
		return floor
	}
	return 1.0
}
