package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"plugintree/pkg/logger"
	"plugintree/pkg/plugin"
)

// EnvPath 是未显式指定配置文件时读取的环境变量。
const EnvPath = "PLUGINTREE_CONFIG"

// Config 描述了 plugind 在启动阶段需要加载的核心配置。
type Config struct {
	Server   ServerConfig           `yaml:"server"`
	Logging  logger.Config          `yaml:"logging"`
	Managers []plugin.ManagerConfig `yaml:"managers"`
	Events   EventsConfig           `yaml:"events"`
	Ledger   LedgerConfig           `yaml:"ledger"`
	Metrics  MetricsConfig          `yaml:"metrics"`
	Alerting AlertingConfig         `yaml:"alerting"`
}

// ServerConfig 控制内省 API 的监听地址。
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// EventsConfig 描述注册表事件的发布方式。
type EventsConfig struct {
	Driver         string         `yaml:"driver"`
	PublishTimeout time.Duration  `yaml:"publishTimeout"`
	Redis          RedisConfig    `yaml:"redis"`
	RabbitMQ       RabbitMQConfig `yaml:"rabbitmq"`
}

// RedisConfig 对应 Redis pub/sub 频道。
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// RabbitMQConfig 对应 RabbitMQ 队列。
type RabbitMQConfig struct {
	URL   string `yaml:"url"`
	Queue string `yaml:"queue"`
}

// LedgerConfig 描述加载流水的持久化方式。
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Capacity 仅对内存实现生效。
	Capacity        int           `yaml:"capacity"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// MetricsConfig 控制 Prometheus 指标的暴露。
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// AlertingConfig 控制插件加载失败时的告警。
type AlertingConfig struct {
	Enabled     bool          `yaml:"enabled"`
	WebhookURL  string        `yaml:"webhookURL"`
	MinSeverity string        `yaml:"minSeverity"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Load 负责解析指定路径的 YAML 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回不依赖配置文件的默认配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults(".")
	return cfg
}

// Validate 校验驱动名称与管理器声明。
func (c *Config) Validate() error {
	switch c.Events.Driver {
	case "memory", "redis", "rabbitmq", "none":
	default:
		return fmt.Errorf("未知的事件驱动: %s", c.Events.Driver)
	}
	switch c.Ledger.Driver {
	case "memory":
	case "mysql", "postgres", "sqlite":
		if c.Ledger.DSN == "" {
			return fmt.Errorf("%s 流水存储需要配置 dsn", c.Ledger.Driver)
		}
	default:
		return fmt.Errorf("未知的流水存储驱动: %s", c.Ledger.Driver)
	}
	switch c.Alerting.MinSeverity {
	case "info", "warning", "critical":
	default:
		return fmt.Errorf("未知的告警级别: %s", c.Alerting.MinSeverity)
	}
	for i, m := range c.Managers {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("managers[%d]: %w", i, err)
		}
	}
	return nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	c.Events.Driver = strings.ToLower(strings.TrimSpace(c.Events.Driver))
	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}
	if c.Events.PublishTimeout <= 0 {
		c.Events.PublishTimeout = 2 * time.Second
	}
	if c.Events.Redis.Addr == "" {
		c.Events.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Events.Redis.Channel == "" {
		c.Events.Redis.Channel = "plugintree:events"
	}
	if c.Events.RabbitMQ.Queue == "" {
		c.Events.RabbitMQ.Queue = "plugintree.events"
	}

	c.Ledger.Driver = strings.ToLower(strings.TrimSpace(c.Ledger.Driver))
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "memory"
	}
	if c.Ledger.Capacity <= 0 {
		c.Ledger.Capacity = 1024
	}

	c.Alerting.MinSeverity = strings.ToLower(strings.TrimSpace(c.Alerting.MinSeverity))
	if c.Alerting.MinSeverity == "" {
		c.Alerting.MinSeverity = "warning"
	}
	if c.Alerting.Timeout <= 0 {
		c.Alerting.Timeout = 5 * time.Second
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "plugintree"
	}

	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(baseDir, "logs", "audit.log")
	} else if c.Logging.Audit.Path != "" && !filepath.IsAbs(c.Logging.Audit.Path) {
		c.Logging.Audit.Path = filepath.Join(baseDir, c.Logging.Audit.Path)
	}

	for i := range c.Managers {
		dirs := c.Managers[i].Dirs
		for j, dir := range dirs {
			if dir != "" && !filepath.IsAbs(dir) {
				dirs[j] = filepath.Join(baseDir, dir)
			}
		}
	}
}
