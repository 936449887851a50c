package models

import (
	"time"
)

// AckAction 确认操作类型
type AckAction string

const (
	AckDismissed AckAction = "dismissed" // 用户选择忽略
	AckScheduled AckAction = "scheduled" // 用户安排了跟进（如预约就诊）
)

// IsValid 检查确认操作是否有效
func (a AckAction) IsValid() bool {
	return a == AckDismissed || a == AckScheduled
}

// EscalationRecord 升级提醒记录（由升级状态机在阈值穿越时创建）
// 只能通过确认操作变更；确认是终态，已确认的记录不会重新打开
type EscalationRecord struct {
	ID             string     `json:"id" db:"escalation_id"`
	UserID         string     `json:"user_id" db:"user_id"`
	CareScoreID    string     `json:"care_score_id" db:"care_score_id"`
	Level          int        `json:"level" db:"level"` // 1=awareness, 2=attention, 3=consultation
	Title          string     `json:"title" db:"title"`
	Message        string     `json:"message" db:"message"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	Acknowledged   bool       `json:"acknowledged" db:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ActionTaken    *AckAction `json:"action_taken,omitempty" db:"action_taken"`
}

// IsOpen 记录是否仍未确认
func (r *EscalationRecord) IsOpen() bool {
	return r != nil && !r.Acknowledged
}
