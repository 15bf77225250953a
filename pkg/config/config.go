// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string          `mapstructure:"environment"`
	HTTP        HTTPConfig      `mapstructure:"http"`
	GRPC        GRPCConfig      `mapstructure:"grpc"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Logger      LoggerConfig    `mapstructure:"logger"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Outbox      OutboxConfig    `mapstructure:"outbox"`
	Pricing     PricingConfig   `mapstructure:"pricing"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// Addr 返回监听地址
func (c HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 最大并发流数
	MaxConcurrentStreams uint32 `mapstructure:"max_concurrent_streams"`
	// 是否注册 reflection 服务
	Reflection bool `mapstructure:"reflection"`
}

// Addr 返回监听地址
func (c GRPCConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：目前仅支持 mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN             string `mapstructure:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogEnabled      bool   `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
	// 启动时是否执行 AutoMigrate
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// Addr 返回 host:port
func (c RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 是否同步等待 ack
	RequireAcks bool `mapstructure:"require_acks"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 每秒请求数
	Rate int `mapstructure:"rate"`
	// 突发容量
	Burst int `mapstructure:"burst"`
}

// OutboxConfig 发件箱中继配置
type OutboxConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Topic     string `mapstructure:"topic"`
	BatchSize int    `mapstructure:"batch_size"`
	// 轮询间隔（毫秒）
	IntervalMs int `mapstructure:"interval_ms"`
	MaxRetries int `mapstructure:"max_retries"`
	// 已发送消息保留天数
	RetentionDays int `mapstructure:"retention_days"`
}

// Interval 轮询间隔
func (c OutboxConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// PricingConfig 定价引擎配置
type PricingConfig struct {
	// 默认模型，有限差分模型同时作用于欧式与美式
	DefaultModel string `mapstructure:"default_model"`
	// 批量定价并发度
	Workers int `mapstructure:"workers"`
	// 最新结果缓存时长（秒）
	CacheTTL int `mapstructure:"cache_ttl"`
	// 定价结果保留天数，0 表示不清理
	RetentionDays int              `mapstructure:"retention_days"`
	Grid          GridConfig       `mapstructure:"grid"`
	SpotGrid      SpotGridConfig   `mapstructure:"spot_grid"`
	MonteCarlo    MonteCarloConfig `mapstructure:"monte_carlo"`
}

// CacheTTLDuration 缓存时长
func (c PricingConfig) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GridConfig 有限差分网格
type GridConfig struct {
	DX    float64 `mapstructure:"dx"`
	DT    float64 `mapstructure:"dt"`
	Minus int     `mapstructure:"minus"`
	Plus  int     `mapstructure:"plus"`
}

// SpotGridConfig 无现价时的价格曲线网格（以行权价倍数表示）
type SpotGridConfig struct {
	Lower  float64 `mapstructure:"lower"`
	Upper  float64 `mapstructure:"upper"`
	Points int     `mapstructure:"points"`
}

// MonteCarloConfig 蒙特卡洛参数
type MonteCarloConfig struct {
	Paths int   `mapstructure:"paths"`
	Steps int   `mapstructure:"steps"`
	Seed  int64 `mapstructure:"seed"`
}

// Load 从 TOML 文件加载配置，文件必须存在
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return decode(v)
}

// LoadWithDefaults 加载配置，文件不存在时仅使用默认值与环境变量
func LoadWithDefaults(configPath string) (*Config, error) {
	v := newViper(configPath)
	if fileExists(configPath) {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return decode(v)
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetConfigType("toml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Database.Driver != "" && c.Database.Driver != "mysql" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Outbox.Enabled && c.Outbox.Topic == "" {
		return fmt.Errorf("outbox.topic is required when outbox is enabled")
	}
	return c.Pricing.Validate()
}

// Validate 校验定价参数
func (p *PricingConfig) Validate() error {
	if p.Workers <= 0 {
		return fmt.Errorf("pricing.workers must be positive: %d", p.Workers)
	}
	if p.Grid.DX <= 0 || p.Grid.DT <= 0 {
		return fmt.Errorf("pricing.grid dx/dt must be positive")
	}
	if p.Grid.Minus >= p.Grid.Plus {
		return fmt.Errorf("pricing.grid minus (%d) must be below plus (%d)", p.Grid.Minus, p.Grid.Plus)
	}
	if p.SpotGrid.Points < 2 || p.SpotGrid.Lower <= 0 || p.SpotGrid.Upper <= p.SpotGrid.Lower {
		return fmt.Errorf("pricing.spot_grid is invalid: %+v", p.SpotGrid)
	}
	if p.MonteCarlo.Paths <= 0 || p.MonteCarlo.Steps <= 0 {
		return fmt.Errorf("pricing.monte_carlo paths/steps must be positive")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "pricing")
	v.SetDefault("version", "dev")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)
	v.SetDefault("grpc.reflection", true)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.write_timeout", 10)
	v.SetDefault("kafka.require_acks", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/pricing.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rate", 200)
	v.SetDefault("rate_limit.burst", 400)

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.topic", "pricing.events")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.interval_ms", 500)
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.retention_days", 7)

	v.SetDefault("pricing.default_model", "BlackScholes")
	v.SetDefault("pricing.workers", 8)
	v.SetDefault("pricing.cache_ttl", 900)
	v.SetDefault("pricing.retention_days", 30)
	v.SetDefault("pricing.grid.dx", 0.01)
	v.SetDefault("pricing.grid.dt", 0.00003)
	v.SetDefault("pricing.grid.minus", -1000)
	v.SetDefault("pricing.grid.plus", 1000)
	v.SetDefault("pricing.spot_grid.lower", 0.5)
	v.SetDefault("pricing.spot_grid.upper", 1.5)
	v.SetDefault("pricing.spot_grid.points", 21)
	v.SetDefault("pricing.monte_carlo.paths", 50000)
	v.SetDefault("pricing.monte_carlo.steps", 50)
	v.SetDefault("pricing.monte_carlo.seed", 42)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
