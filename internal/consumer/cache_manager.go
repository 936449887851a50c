package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pulse-carescore/internal/config"
	"pulse-carescore/internal/models"
)

// CacheManager Redis 缓存管理器
// 缓存最新读数和最新分数，数据库始终是权威数据源
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// UpdateLatestReading 更新用户单信号的最新读数缓存（Hash，字段为信号类型）
func (c *CacheManager) UpdateLatestReading(ctx context.Context, reading *models.Reading) error {
	key := fmt.Sprintf("%s%s%s",
		c.config.Care.Cache.ReadingKeyPrefix,
		reading.UserID,
		c.config.Care.Cache.ReadingSuffix,
	)

	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	if err := c.redisClient.HSet(ctx, key, string(reading.Kind), jsonData).Err(); err != nil {
		return fmt.Errorf("failed to update reading cache: %w", err)
	}

	c.logger.Debug("Updated reading cache",
		zap.String("user_id", reading.UserID),
		zap.String("kind", string(reading.Kind)),
	)

	return nil
}

// GetLatestReadings 获取用户最新读数缓存
func (c *CacheManager) GetLatestReadings(ctx context.Context, userID string) (map[models.SignalKind]models.Reading, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Care.Cache.ReadingKeyPrefix,
		userID,
		c.config.Care.Cache.ReadingSuffix,
	)

	fields, err := c.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read reading cache: %w", err)
	}

	readings := map[models.SignalKind]models.Reading{}
	for field, raw := range fields {
		kind := models.SignalKind(field)
		if !kind.IsValid() {
			continue
		}
		var reading models.Reading
		if err := json.Unmarshal([]byte(raw), &reading); err != nil {
			c.logger.Warn("Skipping corrupt cached reading",
				zap.String("user_id", userID),
				zap.String("kind", field),
				zap.Error(err),
			)
			continue
		}
		readings[kind] = reading
	}

	return readings, nil
}

// UpdateLatestScore 更新用户最新分数缓存（设置 TTL）
func (c *CacheManager) UpdateLatestScore(ctx context.Context, result *models.CareScoreResult) error {
	key := fmt.Sprintf("%s%s%s",
		c.config.Care.Cache.ScoreKeyPrefix,
		result.UserID,
		c.config.Care.Cache.ScoreSuffix,
	)

	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal care score: %w", err)
	}

	err = c.redisClient.Set(
		ctx,
		key,
		jsonData,
		time.Duration(c.config.Care.Cache.ScoreTTL)*time.Second,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to set score cache: %w", err)
	}

	c.logger.Debug("Updated score cache",
		zap.String("user_id", result.UserID),
		zap.Int("score", result.Score),
	)

	return nil
}

// GetLatestScore 获取用户最新分数缓存
// 缓存未命中返回 nil，调用方回落到数据库
func (c *CacheManager) GetLatestScore(ctx context.Context, userID string) (*models.CareScoreResult, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Care.Cache.ScoreKeyPrefix,
		userID,
		c.config.Care.Cache.ScoreSuffix,
	)

	raw, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 缓存未命中
		}
		return nil, fmt.Errorf("failed to read score cache: %w", err)
	}

	var result models.CareScoreResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to parse cached score: %w", err)
	}

	return &result, nil
}
