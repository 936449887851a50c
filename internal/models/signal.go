package models

import (
	"time"
)

// SignalKind 健康信号类型（封闭枚举）
// 每种信号有固定单位和危害方向（用于跨信号一致性判断）
type SignalKind string

const (
	SignalHeartRate        SignalKind = "heart_rate"         // 心率（bpm）
	SignalRestingHeartRate SignalKind = "resting_heart_rate" // 静息心率（bpm）
	SignalHRV              SignalKind = "hrv"                // 心率变异性（ms）
	SignalSleepDuration    SignalKind = "sleep_duration"     // 睡眠时长（小时）
	SignalSleepQuality     SignalKind = "sleep_quality"      // 睡眠质量（0-100）
	SignalActivityLevel    SignalKind = "activity_level"     // 活动量（步数）
	SignalBreathingRate    SignalKind = "breathing_rate"     // 呼吸率（次/分钟）
	SignalBpSystolic       SignalKind = "bp_systolic"        // 收缩压（mmHg）
	SignalBpDiastolic      SignalKind = "bp_diastolic"       // 舒张压（mmHg）
	SignalBloodSugar       SignalKind = "blood_sugar"        // 血糖（mg/dL）
)

// AllSignalKinds 所有信号类型（固定顺序，用于确定性遍历）
var AllSignalKinds = []SignalKind{
	SignalHeartRate,
	SignalRestingHeartRate,
	SignalHRV,
	SignalSleepDuration,
	SignalSleepQuality,
	SignalActivityLevel,
	SignalBreathingRate,
	SignalBpSystolic,
	SignalBpDiastolic,
	SignalBloodSugar,
}

// IsValid 检查信号类型是否有效
func (k SignalKind) IsValid() bool {
	switch k {
	case SignalHeartRate, SignalRestingHeartRate, SignalHRV,
		SignalSleepDuration, SignalSleepQuality, SignalActivityLevel,
		SignalBreathingRate, SignalBpSystolic, SignalBpDiastolic,
		SignalBloodSugar:
		return true
	}
	return false
}

// Unit 信号单位
func (k SignalKind) Unit() string {
	switch k {
	case SignalHeartRate, SignalRestingHeartRate:
		return "bpm"
	case SignalHRV:
		return "ms"
	case SignalSleepDuration:
		return "hours"
	case SignalSleepQuality:
		return "score"
	case SignalActivityLevel:
		return "steps"
	case SignalBreathingRate:
		return "breaths/min"
	case SignalBpSystolic, SignalBpDiastolic:
		return "mmHg"
	case SignalBloodSugar:
		return "mg/dL"
	}
	return ""
}

// HarmDirection 危害方向（偏离哪个方向表示健康恶化）
type HarmDirection string

const (
	HarmHigher    HarmDirection = "higher"    // 升高恶化（如心率、血压）
	HarmLower     HarmDirection = "lower"     // 降低恶化（如HRV、睡眠时长）
	HarmDeviation HarmDirection = "deviation" // 任意方向偏离都恶化（如血糖）
)

// HarmDirection 信号的危害方向规则
// 例如心率升高和HRV降低都表示压力增大，属于同方向危害
func (k SignalKind) HarmDirection() HarmDirection {
	switch k {
	case SignalHeartRate, SignalRestingHeartRate, SignalBreathingRate,
		SignalBpSystolic, SignalBpDiastolic:
		return HarmHigher
	case SignalHRV, SignalSleepDuration, SignalSleepQuality, SignalActivityLevel:
		return HarmLower
	case SignalBloodSugar:
		return HarmDeviation
	}
	return HarmDeviation
}

// DisplayName 信号显示名称（用于解释文本）
func (k SignalKind) DisplayName() string {
	switch k {
	case SignalHeartRate:
		return "Heart rate"
	case SignalRestingHeartRate:
		return "Resting heart rate"
	case SignalHRV:
		return "Heart rate variability"
	case SignalSleepDuration:
		return "Sleep duration"
	case SignalSleepQuality:
		return "Sleep quality"
	case SignalActivityLevel:
		return "Activity level"
	case SignalBreathingRate:
		return "Breathing rate"
	case SignalBpSystolic:
		return "Systolic blood pressure"
	case SignalBpDiastolic:
		return "Diastolic blood pressure"
	case SignalBloodSugar:
		return "Blood sugar"
	}
	return string(k)
}

// Reading 归一化的信号读数（不可变，由采集层产生）
type Reading struct {
	UserID    string     `json:"user_id" db:"user_id"`
	Kind      SignalKind `json:"kind" db:"kind"`
	Value     float64    `json:"value" db:"value"`
	Timestamp time.Time  `json:"timestamp" db:"timestamp"`
	Source    string     `json:"source" db:"source"` // wearable, manual, smart_ring
}

// Baseline 个人化基线（每个 user_id + kind 一条）
// 不变量：StdDev >= 每种信号配置的下限（防止除以接近零的标准差）
// 生命周期：只被新快照取代，不删除
type Baseline struct {
	UserID      string     `json:"user_id" db:"user_id"`
	Kind        SignalKind `json:"kind" db:"kind"`
	Mean        float64    `json:"mean" db:"mean"`
	StdDev      float64    `json:"std_dev" db:"std_dev"`
	SampleCount int        `json:"sample_count" db:"sample_count"`
	LastUpdated time.Time  `json:"last_updated" db:"last_updated"`
}

// ManualInput 手动输入（血压/血糖/症状，可与穿戴数据独立提交）
type ManualInput struct {
	BpSystolic  *float64 `json:"bp_systolic,omitempty"`
	BpDiastolic *float64 `json:"bp_diastolic,omitempty"`
	BloodSugar  *float64 `json:"blood_sugar,omitempty"`
	Symptoms    []string `json:"symptoms,omitempty"`
}

// IsEmpty 检查是否没有任何手动输入
func (m *ManualInput) IsEmpty() bool {
	if m == nil {
		return true
	}
	return m.BpSystolic == nil && m.BpDiastolic == nil &&
		m.BloodSugar == nil && len(m.Symptoms) == 0
}
