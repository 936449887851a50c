package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pulse-carescore/internal/config"
	"pulse-carescore/internal/models"
	"pulse-carescore/internal/repository"
	rediscommon "pulse-carescore/internal/redis"
)

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功处理的消息数
	MessagesFailed    int64 // 处理失败的消息数
	MessagesSkipped   int64 // 跳过的消息数（未知信号类型等）

	// 错误分类统计
	ErrorsParse  int64 // 解析错误
	ErrorsInsert int64 // 数据库写入错误
	ErrorsCache  int64 // 缓存更新错误

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed: m.MessagesProcessed,
		MessagesSucceeded: m.MessagesSucceeded,
		MessagesFailed:    m.MessagesFailed,
		MessagesSkipped:   m.MessagesSkipped,
		ErrorsParse:       m.ErrorsParse,
		ErrorsInsert:      m.ErrorsInsert,
		ErrorsCache:       m.ErrorsCache,
		StartTime:         m.StartTime,
	}
}

// IncrementProcessed 递增处理总数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 递增成功数
func (m *Metrics) IncrementSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
}

// IncrementSkipped 递增跳过数
func (m *Metrics) IncrementSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSkipped++
}

// IncrementFailed 递增失败数（按错误类型分类）
func (m *Metrics) IncrementFailed(errType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errType {
	case "parse":
		m.ErrorsParse++
	case "insert":
		m.ErrorsInsert++
	case "cache":
		m.ErrorsCache++
	}
}

// StreamConsumer Redis Streams 读数消费者
// 从接入流读取归一化读数，落库并更新最新读数缓存
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	healthRepo  *repository.HealthDataRepository
	cache       *CacheManager
	logger      *zap.Logger
	metrics     *Metrics
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	healthRepo *repository.HealthDataRepository,
	cache *CacheManager,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		healthRepo:  healthRepo,
		cache:       cache,
		logger:      logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// GetMetrics 获取消费指标
func (c *StreamConsumer) GetMetrics() Metrics {
	return c.metrics.GetSnapshot()
}

// Start 启动消费者
func (c *StreamConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	stream := c.config.Care.Ingest.Stream
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Care.Ingest.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", c.config.Care.Ingest.ConsumerGroup),
		zap.String("consumer_name", c.config.Care.Ingest.ConsumerName),
		zap.String("stream", stream),
	)

	// 启动消费循环
	backoffDuration := time.Second // 初始退避时间
	maxBackoff := 30 * time.Second // 最大退避时间

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避：等待后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 消费单个 Stream
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Care.Ingest.ConsumerGroup,
		c.config.Care.Ingest.ConsumerName,
		c.config.Care.Ingest.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
			continue
		}
		// 确认消息
		if err := rediscommon.AckMessage(ctx, c.redisClient, stream, c.config.Care.Ingest.ConsumerGroup, msg.ID); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条读数消息
//
// 处理流程：
// 1. 解析读数消息
// 2. 校验信号类型，未知类型跳过（不算失败）
// 3. 落库（权威数据源）
// 4. 更新最新读数缓存（失败只记日志，不影响落库结果）
func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	// 解析消息数据
	var dataStr string
	if val, ok := msg.Values["data"]; ok {
		if str, ok := val.(string); ok {
			dataStr = str
		} else {
			c.metrics.IncrementFailed("parse")
			return fmt.Errorf("invalid data format in message")
		}
	} else {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing data field in message")
	}

	var readingMsg models.ReadingMessage
	if err := json.Unmarshal([]byte(dataStr), &readingMsg); err != nil {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("failed to unmarshal reading message: %w", err)
	}

	if readingMsg.UserID == "" {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing user_id in reading message")
	}

	kind := models.SignalKind(readingMsg.Kind)
	if !kind.IsValid() {
		// 未知信号类型：忽略，上游可能比本服务先升级
		c.metrics.IncrementSkipped()
		c.logger.Warn("Skipping reading with unknown signal kind",
			zap.String("user_id", readingMsg.UserID),
			zap.String("kind", readingMsg.Kind),
		)
		return nil
	}

	reading := readingMsg.ToReading()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	// 落库
	if err := c.healthRepo.InsertReading(ctx, &reading); err != nil {
		c.metrics.IncrementFailed("insert")
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	// 更新缓存（非致命）
	if err := c.cache.UpdateLatestReading(ctx, &reading); err != nil {
		c.metrics.IncrementFailed("cache")
		c.logger.Warn("Failed to update reading cache",
			zap.String("user_id", reading.UserID),
			zap.String("kind", string(reading.Kind)),
			zap.Error(err),
		)
	}

	c.metrics.IncrementSucceeded()
	return nil
}
