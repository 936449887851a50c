package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pulse-carescore/internal/config"
	"pulse-carescore/internal/models"
	mqttcommon "pulse-carescore/internal/mqtt"
	rediscommon "pulse-carescore/internal/redis"
)

// MQTTConsumer MQTT 读数桥接
// 穿戴设备直连 MQTT 时，把读数转发到接入流，统一走 Streams 消费路径
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqttcommon.Client
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	topic := c.config.MQTT.Topic
	if topic == "" {
		return fmt.Errorf("MQTT topic not configured")
	}

	if err := c.mqttClient.Subscribe(topic, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", topic),
		zap.String("stream", c.config.Care.Ingest.Stream),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	topic := c.config.MQTT.Topic
	if topic != "" {
		if err := c.mqttClient.Unsubscribe(topic); err != nil {
			c.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
// 消息体为单条读数 JSON；校验后原样转发到接入流
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	var readingMsg models.ReadingMessage
	if err := json.Unmarshal(payload, &readingMsg); err != nil {
		c.logger.Error("Failed to unmarshal MQTT reading",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if readingMsg.UserID == "" {
		return fmt.Errorf("missing user_id in MQTT reading")
	}
	if !models.SignalKind(readingMsg.Kind).IsValid() {
		c.logger.Warn("Skipping MQTT reading with unknown signal kind",
			zap.String("user_id", readingMsg.UserID),
			zap.String("kind", readingMsg.Kind),
		)
		return nil
	}

	// 转发到接入流，由 Streams 消费者统一落库
	ctx := context.Background()
	if _, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Care.Ingest.Stream, &readingMsg); err != nil {
		return fmt.Errorf("failed to publish reading to stream: %w", err)
	}

	return nil
}
