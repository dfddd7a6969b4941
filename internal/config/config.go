package config

import (
	"os"
	"strconv"

	pkgconfig "github.com/MrMsnawi/healthguard-ops/pkg/config"
)

// Config 事件（incident）服务配置
type Config struct {
	Database pkgconfig.DatabaseConfig
	Redis    pkgconfig.RedisConfig

	// HTTP 服务配置
	HTTP struct {
		Addr string
	}

	// 值班（on-call）服务配置
	OnCall struct {
		BaseURL        string
		TimeoutSeconds int // 在线查询超时（秒），默认 5秒
	}

	// 通知服务配置
	Notification struct {
		BaseURL        string // mark-read 回调地址
		TimeoutSeconds int    // mark-read 超时（秒），默认 3秒
		Stream         string // 通知请求 stream，如 "notifications"
	}

	// 报警消息消费配置
	Consumer struct {
		Stream        string // 报警 stream，如 "alerts"
		Group         string // 消费者组
		Name          string // 消费者名称（多实例部署时区分）
		BlockSeconds  int    // 阻塞读取时长（秒），默认 5秒
		RetryAttempts int    // 单次连接的重试预算，默认 5次
		RetryDelay    int    // 重试间隔（秒），默认 5秒
		RestartDelay  int    // 整个 connect-consume 循环重启前的休眠（秒），默认 10秒
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
	cfg.Database.Database = getEnv("DB_NAME", "hospital")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 2)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8002")

	cfg.OnCall.BaseURL = getEnv("ONCALL_SERVICE_URL", "http://localhost:8003")
	cfg.OnCall.TimeoutSeconds = getEnvInt("ONCALL_TIMEOUT", 5)

	cfg.Notification.BaseURL = getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:8004")
	cfg.Notification.TimeoutSeconds = getEnvInt("NOTIFICATION_TIMEOUT", 3)
	cfg.Notification.Stream = getEnv("NOTIFICATION_STREAM", "notifications")

	cfg.Consumer.Stream = getEnv("ALERT_STREAM", "alerts")
	cfg.Consumer.Group = getEnv("ALERT_CONSUMER_GROUP", "incident-service")
	cfg.Consumer.Name = getEnv("ALERT_CONSUMER_NAME", "incident-consumer-1")
	cfg.Consumer.BlockSeconds = getEnvInt("ALERT_BLOCK_SECONDS", 5)
	cfg.Consumer.RetryAttempts = getEnvInt("ALERT_RETRY_ATTEMPTS", 5)
	cfg.Consumer.RetryDelay = getEnvInt("ALERT_RETRY_DELAY", 5)
	cfg.Consumer.RestartDelay = getEnvInt("ALERT_RESTART_DELAY", 10)

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
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
