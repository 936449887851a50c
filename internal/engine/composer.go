package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulse-carescore/internal/models"
)

// ComposeInput CareScore 合成输入（单次计算的一致性快照）
// 所有历史数据由调用方一次性取好传入，计算过程中不再查询，
// 保证相同输入产生逐位相同的结果（生成的记录 ID 除外）
type ComposeInput struct {
	UserID       string
	Timestamp    time.Time
	Readings     map[models.SignalKind]models.Reading           // 每种信号的最新读数
	Baselines    map[models.SignalKind]*models.Baseline         // 已有基线（可缺失）
	Manual       *models.ManualInput                            // 最新手动输入（可为 nil）
	Persistence  map[models.SignalKind]models.PersistenceState  // 已推进的持续状态
	ScoreHistory []int                                          // 此前 CareScore 的滚动历史（稳定度用）
}

// Compute 合成 CareScore
//
// 分量：
// - Severity（0-40）：偏离信号按档位权重求和，封顶
// - Persistence（0-25）：所有当前偏离信号中取最大持续分（不求和，
//   单个最长持续的偏离主导）
// - CrossSignal（0-20）：危害方向一致的偏离信号数的阶梯分
// - Manual（0-10）：血压/血糖越界 + 症状计数，封顶
//
// 失败模式：
// - 零个可评分信号且无手动输入 → ErrNoData（与 Stable 0 分严格区分）
// - 任何分量超出封顶 → InvariantViolationError（中止，不输出损坏分数）
func Compute(p Policy, in ComposeInput) (*models.CareScoreResult, error) {
	// 1. 逐信号评分（Unscored 信号排除在所有统计之外）
	var deviations []models.DeviationResult
	scoredCount := 0
	baselineCount := 0
	for _, kind := range models.AllSignalKinds {
		reading, ok := in.Readings[kind]
		if !ok {
			continue
		}
		baseline := in.Baselines[kind]
		if baseline != nil {
			baselineCount++
		}
		dev := Score(p, reading, baseline)
		if dev.Tier != models.TierUnscored {
			scoredCount++
		}
		deviations = append(deviations, dev)
	}

	if scoredCount == 0 && in.Manual.IsEmpty() {
		return nil, ErrNoData
	}

	// 2. 四个分量
	severity := severityComponent(p, deviations)
	persistence := persistenceComponent(p, deviations, in.Persistence)
	crossSignal, agreeingCount := crossSignalComponent(p, deviations)
	manual := manualComponent(p, in.Manual)

	// 3. 不变量检查：分量各自封顶
	for _, check := range []struct {
		name  string
		value float64
		limit float64
	}{
		{"severity", severity, p.SeverityCap},
		{"persistence", persistence, p.PersistenceCap},
		{"cross_signal", crossSignal, p.CrossSignalCap},
		{"manual", manual, p.ManualCap},
	} {
		if check.value > check.limit || check.value < 0 {
			return nil, &InvariantViolationError{
				Component: check.name,
				Value:     check.value,
				Limit:     check.limit,
			}
		}
	}

	// 4. 总分（分量各自封顶后总和不应超过 100，封顶作为不变量断言）
	total := severity + persistence + crossSignal + manual
	if total > 100 {
		return nil, &InvariantViolationError{
			Component: "total",
			Value:     total,
			Limit:     100,
		}
	}
	score := int(math.Round(total))

	// 5. 解释载荷（确定性：排序稳定，无随机）
	contributing := contributingSignals(p, deviations)

	result := &models.CareScoreResult{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		Timestamp: in.Timestamp,
		Score:     score,
		Status:    StatusForScore(score),
		Components: models.ScoreComponents{
			Severity:    severity,
			Persistence: persistence,
			CrossSignal: crossSignal,
			Manual:      manual,
		},
		Confidence:          confidence(p, scoredCount, baselineCount, len(in.Readings), agreeingCount),
		Stability:           stability(p, in.ScoreHistory),
		ContributingSignals: contributing,
		Explanation:         explanation(contributing, maxPersistencePeriods(deviations, in.Persistence)),
	}

	return result, nil
}

// StatusForScore 分数到状态的映射（每档下界含）
// 0-30 Stable，31-50 Mild，51-70 Moderate，71-100 High
func StatusForScore(score int) models.Status {
	switch {
	case score <= 30:
		return models.StatusStable
	case score <= 50:
		return models.StatusMild
	case score <= 70:
		return models.StatusModerate
	default:
		return models.StatusHigh
	}
}

// severityWeight 档位到严重度权重的映射（对 |z| 单调）
func severityWeight(p Policy, tier models.Tier) float64 {
	switch tier {
	case models.TierMild:
		return p.SeverityWeightMild
	case models.TierModerate:
		return p.SeverityWeightModerate
	case models.TierSevere:
		return p.SeverityWeightSevere
	}
	return 0
}

// severityComponent 严重度分量：偏离信号权重求和，封顶
// 封顶防止大量信号同时偏离时无界累积
func severityComponent(p Policy, deviations []models.DeviationResult) float64 {
	sum := 0.0
	for _, d := range deviations {
		sum += severityWeight(p, d.Tier)
	}
	if sum > p.SeverityCap {
		return p.SeverityCap
	}
	return sum
}

// persistenceComponent 持续性分量：当前偏离信号中的最大持续分
func persistenceComponent(p Policy, deviations []models.DeviationResult, states map[models.SignalKind]models.PersistenceState) float64 {
	best := 0.0
	for _, d := range deviations {
		if !d.Tier.IsDeviating() {
			continue
		}
		state, ok := states[d.Kind]
		if !ok {
			continue
		}
		if points := persistencePoints(p, state.ConsecutivePeriods); points > best {
			best = points
		}
	}
	return best
}

// maxPersistencePeriods 当前偏离信号中的最大连续周期数（解释用）
func maxPersistencePeriods(deviations []models.DeviationResult, states map[models.SignalKind]models.PersistenceState) int {
	best := 0
	for _, d := range deviations {
		if !d.Tier.IsDeviating() {
			continue
		}
		if state, ok := states[d.Kind]; ok && state.ConsecutivePeriods > best {
			best = state.ConsecutivePeriods
		}
	}
	return best
}

// crossSignalComponent 跨信号分量：危害方向一致的偏离信号数 → 阶梯分
// 奖励多信号相互印证，单个噪声传感器拿不到分
// 例如心率升高和 HRV 降低数值符号相反，但都是压力方向的危害，计为一致
// 两个一致信号同时达到 Severe 档时视为强印证，与 >=3 信号同分
func crossSignalComponent(p Policy, deviations []models.DeviationResult) (float64, int) {
	count := 0
	severe := 0
	for _, d := range deviations {
		if d.IsHarmful() {
			count++
			if d.Tier == models.TierSevere {
				severe++
			}
		}
	}

	var score float64
	switch {
	case count >= 3 || severe >= 2:
		score = p.CrossSignalThree
	case count == 2:
		score = p.CrossSignalTwo
	default:
		score = 0
	}
	if score > p.CrossSignalCap {
		score = p.CrossSignalCap
	}
	return score, count
}

// manualComponent 手动输入分量：血压/血糖越界的固定加分 + 症状计数，封顶
func manualComponent(p Policy, manual *models.ManualInput) float64 {
	if manual.IsEmpty() {
		return 0
	}

	points := 0.0

	if manual.BpSystolic != nil && manual.BpDiastolic != nil {
		sys, dia := *manual.BpSystolic, *manual.BpDiastolic
		switch {
		case sys >= p.ManualBpCrisisSystolic || dia >= p.ManualBpCrisisDiastolic:
			points += p.ManualBpCrisisPoints
		case sys >= p.ManualBpHighSystolic || dia >= p.ManualBpHighDiastolic:
			points += p.ManualBpHighPoints
		}
	}

	if manual.BloodSugar != nil {
		sugar := *manual.BloodSugar
		switch {
		case sugar >= p.ManualSugarHigh:
			points += p.ManualSugarHighPoints
		case sugar >= p.ManualSugarElevated || sugar <= p.ManualSugarLow:
			points += p.ManualSugarOutOfRangePts
		}
	}

	points += float64(len(manual.Symptoms)) * p.ManualSymptomPoints

	if points > p.ManualCap {
		return p.ManualCap
	}
	return points
}

// confidence 置信度：可评分信号占比和基线覆盖占比的有界加权组合，
// 跨信号一致数提供小幅加分，缩放到 0-100
func confidence(p Policy, scoredCount, baselineCount, totalReadings, agreeingCount int) float64 {
	if totalReadings == 0 {
		return 0
	}
	fracScored := float64(scoredCount) / float64(totalReadings)
	fracBaseline := float64(baselineCount) / float64(totalReadings)

	conf := 100*(p.ConfidenceScoredWeight*fracScored+p.ConfidenceBaselineWeight*fracBaseline) +
		p.ConfidenceAgreementBonus*float64(agreeingCount)

	return clamp(conf, 0, 100)
}

// stability 稳定度：100 减去近期 CareScore 历史的归一化波动
// 历史不足两个点时没有可观测的波动，返回 100
func stability(p Policy, history []int) float64 {
	if len(history) < 2 {
		return 100
	}

	mean := 0.0
	for _, s := range history {
		mean += float64(s)
	}
	mean /= float64(len(history))

	variance := 0.0
	for _, s := range history {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= float64(len(history))

	return clamp(100-p.StabilityVolatilityFactor*math.Sqrt(variance), 0, 100)
}

// contributingSignals 参与评分的偏离信号，按严重度权重降序排列
// 排序必须稳定（权重 → |z| → 信号名），保证解释文本确定性
func contributingSignals(p Policy, deviations []models.DeviationResult) []models.ContributingSignal {
	var out []models.ContributingSignal
	for _, d := range deviations {
		if !d.Tier.IsDeviating() {
			continue
		}
		out = append(out, models.ContributingSignal{
			Kind:      d.Kind,
			ZScore:    d.ZScore,
			Tier:      d.Tier,
			Direction: d.Direction,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := severityWeight(p, out[i].Tier), severityWeight(p, out[j].Tier)
		if wi != wj {
			return wi > wj
		}
		ai, aj := math.Abs(out[i].ZScore), math.Abs(out[j].ZScore)
		if ai != aj {
			return ai > aj
		}
		return out[i].Kind < out[j].Kind
	})

	return out
}

// explanation 生成确定性的解释文本：最多 3 个主要偏离信号 + 显著的持续时长
// 非诊断表述，只描述相对个人基线的偏离
func explanation(contributing []models.ContributingSignal, maxPeriods int) string {
	if len(contributing) == 0 {
		return "All monitored signals are within your usual range."
	}

	var parts []string
	limit := len(contributing)
	if limit > 3 {
		limit = 3
	}
	for _, c := range contributing[:limit] {
		direction := "above"
		if c.Direction == models.DirectionBelow {
			direction = "below"
		}
		parts = append(parts, fmt.Sprintf("%s is %s %s your usual baseline (z=%.1f)",
			c.Kind.DisplayName(), tierAdverb(c.Tier), direction, c.ZScore))
	}

	text := strings.Join(parts, "; ") + "."
	if maxPeriods >= 3 {
		text += fmt.Sprintf(" The deviation has persisted for %d consecutive observation periods.", maxPeriods)
	}
	return text
}

// tierAdverb 档位到程度副词的映射（解释文本用）
func tierAdverb(tier models.Tier) string {
	switch tier {
	case models.TierSevere:
		return "well"
	case models.TierModerate:
		return "notably"
	default:
		return "slightly"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
