package config

import (
	"fmt"
	"time"

	"kickspot/pkg/config"
)

type Config struct {
	Server   config.ServerConfig `yaml:"server"`
	DB       config.DBConfig     `yaml:"db"`
	Redis    config.RedisConfig  `yaml:"redis"`
	MQ       config.MQConfig     `yaml:"mq"`
	JWT      config.JWTConfig    `yaml:"jwt"`
	Realtime RealtimeConfig      `yaml:"realtime"`
	Outbox   OutboxConfig        `yaml:"outbox"`
	Consumer ConsumerConfig      `yaml:"consumer"`
}

type RealtimeConfig struct {
	// 每个连接的发送缓冲，满了就认为连接已失效
	SendBuffer          int         `yaml:"send_buffer"`
	PingIntervalSeconds int         `yaml:"ping_interval_seconds"`
	AllowedOrigins      []string    `yaml:"allowed_origins"`
	Relay               RelayConfig `yaml:"relay"`
}

// PingInterval 默认 30 秒
func (c RealtimeConfig) PingInterval() time.Duration {
	if c.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PingIntervalSeconds) * time.Second
}

type RelayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

type OutboxConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
	BatchSize       int  `yaml:"batch_size"`
	MaxRetries      int  `yaml:"max_retries"`
}

type ConsumerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Queue    string `yaml:"queue"`
	DedupTTL int    `yaml:"dedup_ttl_seconds"`
}

// Load 使用统一配置中心加载，环境变量优先级最高
func Load(configDir string) (*Config, error) {
	env := config.GetConfigEnv()
	if configDir == "" {
		configDir = config.GetEnv("CONFIG_DIR", "config")
	}

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := Default()
	if err := config.Decode(cfgMap, cfg); err != nil {
		return nil, err
	}

	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideJWTFromEnv(&cfg.JWT)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回未配置字段的默认值
func Default() *Config {
	return &Config{
		Server: config.ServerConfig{Port: ":8085"},
		DB:     config.DBConfig{Driver: "postgres", Port: 5432, MaxConns: 10},
		Realtime: RealtimeConfig{
			SendBuffer:          32,
			PingIntervalSeconds: 30,
			Relay:               RelayConfig{Prefix: "kickspot:notify:"},
		},
		Outbox: OutboxConfig{
			IntervalSeconds: 1,
			BatchSize:       100,
			MaxRetries:      5,
		},
		Consumer: ConsumerConfig{
			Queue:    "notification.domain-events.q",
			DedupTTL: 86400,
		},
	}
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	switch c.DB.Driver {
	case "postgres":
	case "sqlite":
		if c.DB.Path == "" {
			return fmt.Errorf("db.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("realtime.send_buffer must be positive")
	}
	if (c.Consumer.Enabled || c.Outbox.Enabled) && c.MQ.URL == "" {
		return fmt.Errorf("mq.url is required when consumer or outbox is enabled")
	}
	if c.Consumer.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when consumer is enabled")
	}
	if c.Realtime.Relay.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when realtime.relay is enabled")
	}
	if c.Outbox.Enabled && c.DB.IsSQLite() {
		return fmt.Errorf("outbox requires the postgres driver")
	}
	return nil
}
