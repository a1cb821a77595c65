package config

import (
	"os"
	"strconv"
)

// DBConfig 数据库配置
type DBConfig struct {
	Driver   string `yaml:"driver"` // sqlite | postgres
	Path     string `yaml:"path"`   // sqlite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// 慢查询阈值（毫秒），0 使用默认 100ms
	SlowQueryMS int `yaml:"slow_query_ms"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// TrackerConfig 日期与窗口配置
type TrackerConfig struct {
	Timezone    string `yaml:"timezone"`     // IANA 时区名
	HistoryDays int    `yaml:"history_days"` // 全量状态返回的天数
}

// SyncConfig 推送通道配置
type SyncConfig struct {
	Relay     string `yaml:"relay"`      // none | redis | amqp
	QueueSize int    `yaml:"queue_size"` // 每个连接的发送队列长度
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Driver = driver
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Path = path
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.DB = n
		}
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideTrackerFromEnv 从环境变量覆盖时区
func OverrideTrackerFromEnv(cfg *TrackerConfig) {
	if tz := os.Getenv("TRACKER_TIMEZONE"); tz != "" {
		cfg.Timezone = tz
	}
}

// OverrideSyncFromEnv 从环境变量覆盖跨实例转发方式
func OverrideSyncFromEnv(cfg *SyncConfig) {
	if relay := os.Getenv("SYNC_RELAY"); relay != "" {
		cfg.Relay = relay
	}
}

// OverrideLogFromEnv 从环境变量覆盖日志级别
func OverrideLogFromEnv(cfg *LogConfig) {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
}
