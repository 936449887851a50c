package config

import (
	"fmt"
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（可选的穿戴设备接入通道）
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	Topic    string
}

// Config CareScore 服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// CareScore 服务特定配置
	Care struct {
		// Redis 缓存配置
		Cache struct {
			ReadingKeyPrefix string // 最新读数缓存键前缀，如 "pulse:user:"
			ReadingSuffix    string // 最新读数缓存键后缀，如 ":readings"
			ScoreKeyPrefix   string // 最新分数缓存键前缀，如 "pulse:user:"
			ScoreSuffix      string // 最新分数缓存键后缀，如 ":carescore"
			ScoreTTL         int    // 分数缓存 TTL（秒），默认 300
			StateKeyPrefix   string // 持续状态缓存键前缀，如 "care:state:"
		}

		// 读数接入 Streams 配置
		Ingest struct {
			Stream        string // 归一化读数流名称
			ConsumerGroup string // 消费者组名称
			ConsumerName  string // 消费者名称
			BatchSize     int64  // 单次读取消息数，默认 50
		}

		// 评估轮询配置
		PollInterval int // 轮询间隔（秒），默认 300（周期批处理，无实时保证）
		Evaluation   struct {
			BatchSize    int // 批量评估用户数量，默认 10
			HistoryLimit int // 稳定度计算取的历史分数条数，默认 30
		}

		// 评分策略覆盖（权重表是策略配置，默认值与验收场景一致）
		Policy struct {
			BaselineWindowDays int // 基线滚动窗口天数，默认 14
			BaselineMinSamples int // 基线最少观察天数，默认 5
		}

		// 外部健康建议服务（失败不影响评分）
		Insights struct {
			BaseURL string // 为空则只用本地回退文案
			Timeout int    // 超时（秒），默认 30
		}
	}

	Server struct {
		Port int
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "pulse")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 25)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "") // 为空则不启用 MQTT 接入
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "pulse-carescore")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "pulse/readings/#")

	// CareScore 服务配置
	cfg.Care.Cache.ReadingKeyPrefix = getEnv("CACHE_READING_PREFIX", "pulse:user:")
	cfg.Care.Cache.ReadingSuffix = ":readings"
	cfg.Care.Cache.ScoreKeyPrefix = getEnv("CACHE_SCORE_PREFIX", "pulse:user:")
	cfg.Care.Cache.ScoreSuffix = ":carescore"
	cfg.Care.Cache.ScoreTTL = 300 // 5分钟
	cfg.Care.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "care:state:")

	cfg.Care.Ingest.Stream = getEnv("INGEST_STREAM", "pulse:readings")
	cfg.Care.Ingest.ConsumerGroup = getEnv("INGEST_GROUP", "pulse-carescore")
	cfg.Care.Ingest.ConsumerName = getEnv("INGEST_CONSUMER", "carescore-1")
	cfg.Care.Ingest.BatchSize = 50

	cfg.Care.PollInterval = getEnvInt("POLL_INTERVAL", 300)
	cfg.Care.Evaluation.BatchSize = getEnvInt("EVAL_BATCH_SIZE", 10)
	cfg.Care.Evaluation.HistoryLimit = getEnvInt("EVAL_HISTORY_LIMIT", 30)

	cfg.Care.Policy.BaselineWindowDays = getEnvInt("BASELINE_WINDOW_DAYS", 14)
	cfg.Care.Policy.BaselineMinSamples = getEnvInt("BASELINE_MIN_SAMPLES", 5)

	cfg.Care.Insights.BaseURL = getEnv("INSIGHTS_BASE_URL", "")
	cfg.Care.Insights.Timeout = getEnvInt("INSIGHTS_TIMEOUT", 30)

	cfg.Server.Port = getEnvInt("HTTP_PORT", 8080)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
