package engine

import (
	"time"

	"github.com/google/uuid"

	"pulse-carescore/internal/models"
)

// EscalationDecision 升级状态机的三种结果
// 显式区分"创建了新记录"、"已有打开记录（不重复创建）"和"不需要升级"，
// 调用方不会把"没有记录"误当成"有记录但没返回"
type EscalationDecision string

const (
	EscalationCreated       EscalationDecision = "created"        // 创建了新升级记录
	EscalationAlreadyOpen   EscalationDecision = "already_open"   // 已有未确认记录，不重复创建
	EscalationNotApplicable EscalationDecision = "not_applicable" // 状态未达到升级门槛
)

// EscalationOutcome 升级评估结果
type EscalationOutcome struct {
	Decision EscalationDecision
	Record   *models.EscalationRecord // Created 时为新记录；AlreadyOpen 时为现有打开记录；否则为 nil
}

// levelForStatus 状态到升级级别的映射
// Stable → 0（不创建记录），Mild → 1 Awareness，Moderate → 2 Attention，High → 3 Consultation
func levelForStatus(status models.Status) int {
	switch status {
	case models.StatusMild:
		return 1
	case models.StatusModerate:
		return 2
	case models.StatusHigh:
		return 3
	}
	return 0
}

// 升级文案（确定性，非诊断表述，按级别固定）
var escalationTitles = map[int]string{
	1: "Health Insights Available",
	2: "Health Changes Detected",
	3: "Consider Consulting a Healthcare Provider",
}

var escalationMessages = map[int]string{
	1: "We've noticed some changes in your health data. " +
		"Your body might be adapting to new conditions or activities. " +
		"Continue monitoring and take note of how you feel.",
	2: "Your recent health readings show patterns that differ from your usual baseline. " +
		"This doesn't mean something is wrong, but it's worth paying attention to. " +
		"Consider reviewing your recent activities, sleep, and stress levels.",
	3: "Your health data shows sustained changes that may benefit from professional evaluation. " +
		"We recommend consulting with a healthcare provider to review these patterns. " +
		"This is not a diagnosis - your doctor can help determine if any action is needed.",
}

// AdvanceEscalation 根据最新 CareScore 推进升级状态机
//
// 新记录只在以下条件同时满足时创建：
// - 状态达到 Awareness（级别 1）或更高
// - 且（当前没有打开的记录，或新级别严格高于打开记录的级别）
//
// 级别只会静默上升；级别下降时不自动创建更低级别的记录，
// 由用户自行确认现有记录。已确认的记录不会重新打开，
// 确认之后的新偏离会创建全新记录。
func AdvanceEscalation(result *models.CareScoreResult, openRecord *models.EscalationRecord, now time.Time) EscalationOutcome {
	level := levelForStatus(result.Status)

	if level == 0 {
		return EscalationOutcome{Decision: EscalationNotApplicable}
	}

	if openRecord.IsOpen() && level <= openRecord.Level {
		return EscalationOutcome{
			Decision: EscalationAlreadyOpen,
			Record:   openRecord,
		}
	}

	record := &models.EscalationRecord{
		ID:          uuid.New().String(),
		UserID:      result.UserID,
		CareScoreID: result.ID,
		Level:       level,
		Title:       escalationTitles[level],
		Message:     escalationMessages[level],
		CreatedAt:   now,
	}

	return EscalationOutcome{
		Decision: EscalationCreated,
		Record:   record,
	}
}

// AcknowledgeEscalation 确认升级记录（幂等）
//
// 已确认的记录再次确认是 no-op，原样返回当前状态而不是报错。
// 确认是该记录的终态；确认动作只被原样存储，对评分器和
// 持续性跟踪没有任何因果影响（两者只读取读数/手动输入状态）。
func AcknowledgeEscalation(record *models.EscalationRecord, action models.AckAction, now time.Time) *models.EscalationRecord {
	if record.Acknowledged {
		return record
	}

	acked := *record
	acked.Acknowledged = true
	t := now
	acked.AcknowledgedAt = &t
	a := action
	acked.ActionTaken = &a
	return &acked
}

// RecommendationForStatus 按状态给出跟进建议（非诊断，固定文案）
func RecommendationForStatus(status models.Status) string {
	switch status {
	case models.StatusMild:
		return "Monitor your health signals and note any changes in how you feel."
	case models.StatusModerate:
		return "Consider reviewing recent lifestyle changes and monitor closely."
	case models.StatusHigh:
		return "We recommend scheduling a check-in with your healthcare provider."
	default:
		return "Continue your current health routine."
	}
}
