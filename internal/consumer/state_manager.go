package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pulse-carescore/internal/config"
	"pulse-carescore/internal/models"
)

// StateManager 持续偏离状态管理器
// 每个 (user_id, kind) 一个键，记录连续偏离的周期数
// 状态只由评估循环写入，读-改-写由服务层的用户级互斥保证
type StateManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStateManager 创建状态管理器
func NewStateManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StateManager {
	return &StateManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetStateKey 获取持续状态的 Redis 键
func (s *StateManager) GetStateKey(userID string, kind models.SignalKind) string {
	return fmt.Sprintf("%s%s:%s", s.config.Care.Cache.StateKeyPrefix, userID, kind)
}

// GetState 获取用户单信号的持续状态
// 没有状态时返回零值状态（从未偏离过），不是错误
func (s *StateManager) GetState(ctx context.Context, userID string, kind models.SignalKind) (models.PersistenceState, error) {
	key := s.GetStateKey(userID, kind)

	raw, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return models.PersistenceState{
				UserID:      userID,
				Kind:        kind,
				CurrentTier: models.TierNormal,
			}, nil
		}
		return models.PersistenceState{}, fmt.Errorf("failed to read persistence state: %w", err)
	}

	var state models.PersistenceState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return models.PersistenceState{}, fmt.Errorf("failed to parse persistence state: %w", err)
	}

	return state, nil
}

// GetStates 获取用户所有信号的持续状态
func (s *StateManager) GetStates(ctx context.Context, userID string) (map[models.SignalKind]models.PersistenceState, error) {
	states := map[models.SignalKind]models.PersistenceState{}
	for _, kind := range models.AllSignalKinds {
		state, err := s.GetState(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		states[kind] = state
	}
	return states, nil
}

// SetState 写入用户单信号的持续状态（无 TTL，状态跨评估周期存活）
func (s *StateManager) SetState(ctx context.Context, state models.PersistenceState) error {
	key := s.GetStateKey(state.UserID, state.Kind)

	jsonData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal persistence state: %w", err)
	}

	if err := s.redisClient.Set(ctx, key, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set persistence state: %w", err)
	}

	s.logger.Debug("Updated persistence state",
		zap.String("user_id", state.UserID),
		zap.String("kind", string(state.Kind)),
		zap.String("tier", string(state.CurrentTier)),
		zap.Int("consecutive_periods", state.ConsecutivePeriods),
	)

	return nil
}
