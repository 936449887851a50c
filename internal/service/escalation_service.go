package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pulse-carescore/internal/models"
	"pulse-carescore/internal/repository"
)

// EscalationService 升级记录服务
// 确认是终态操作：已确认的记录保持首次确认的时间和动作不变
type EscalationService struct {
	escRepo *repository.EscalationRepository
	logger  *zap.Logger
}

// NewEscalationService 创建升级记录服务
func NewEscalationService(escRepo *repository.EscalationRepository, logger *zap.Logger) *EscalationService {
	return &EscalationService{
		escRepo: escRepo,
		logger:  logger,
	}
}

// ListEscalations 获取用户升级记录列表
func (s *EscalationService) ListEscalations(ctx context.Context, userID string, openOnly bool, limit int) ([]*models.EscalationRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	return s.escRepo.ListEscalations(ctx, userID, openOnly, limit)
}

// Acknowledge 确认升级记录（幂等）
// 返回确认后的记录；记录不存在时返回错误
func (s *EscalationService) Acknowledge(ctx context.Context, escalationID string, action models.AckAction) (*models.EscalationRecord, error) {
	if escalationID == "" {
		return nil, fmt.Errorf("escalation_id is required")
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("invalid ack action: %s", action)
	}

	record, err := s.escRepo.GetEscalation(ctx, escalationID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("escalation not found: %s", escalationID)
	}

	if record.Acknowledged {
		// 重复确认：保持首次确认不变
		s.logger.Debug("Escalation already acknowledged",
			zap.String("escalation_id", escalationID),
		)
		return record, nil
	}

	now := time.Now()
	if err := s.escRepo.AcknowledgeEscalation(ctx, escalationID, action, now); err != nil {
		return nil, err
	}

	s.logger.Info("Escalation acknowledged",
		zap.String("escalation_id", escalationID),
		zap.String("action", string(action)),
	)

	return s.escRepo.GetEscalation(ctx, escalationID)
}
