package engine

import (
	"errors"
	"fmt"
)

// ErrInsufficientData 基线数据不足（可恢复：积累更多历史后重试）
// 调用方必须区分"数据不足"和"无偏离"，不能把学习期当作健康状态
var ErrInsufficientData = errors.New("insufficient data for baseline")

// ErrNoData 没有任何可评分信号且无手动输入（该次计算终止）
// 绝不能静默降级为 Stable 0 分——"无从判断"和"确认健康"是两回事
var ErrNoData = errors.New("no scored signals and no manual input")

// InvariantViolationError 不变量违反（防御性检查失败，致命）
// 健康相关系统里错误的 "Stable" 比可见的失败更糟，
// 因此分量超出封顶等情况必须中止计算而不是输出损坏的分数
type InvariantViolationError struct {
	Component string
	Value     float64
	Limit     float64
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: component %s = %.2f exceeds limit %.2f",
		e.Component, e.Value, e.Limit)
}

// IsInvariantViolation 检查错误是否为不变量违反
func IsInvariantViolation(err error) bool {
	var ive *InvariantViolationError
	return errors.As(err, &ive)
}
