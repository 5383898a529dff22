package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// PipelineConfig AI 流水线配置
type PipelineConfig struct {
	// 断路器：连续失败次数阈值与冷却时间
	BreakerThreshold int    `mapstructure:"breaker_threshold"`
	BreakerCooldown  string `mapstructure:"breaker_cooldown"` // 如 "10m"

	// 手动操作（regenerate 等）的限流：每 (租户, 用户) 在窗口内允许的次数
	ActionRateLimit  int    `mapstructure:"action_rate_limit"`
	ActionRateWindow string `mapstructure:"action_rate_window"` // 如 "1m"

	// store_outputs=false 的租户，产出保留的宽限期
	OutputRetention string `mapstructure:"output_retention"` // 如 "24h"

	// Worker 并发数
	WorkerConcurrency int `mapstructure:"worker_concurrency"`

	// 提示词版本，参与 input_hash 计算
	PromptVersion string `mapstructure:"prompt_version"`
}

// BreakerCooldownDuration 解析断路器冷却时间，非法值回退为 10 分钟
func (p *PipelineConfig) BreakerCooldownDuration() time.Duration {
	return parseDuration(p.BreakerCooldown, 10*time.Minute)
}

// ActionRateWindowDuration 解析限流窗口，非法值回退为 1 分钟
func (p *PipelineConfig) ActionRateWindowDuration() time.Duration {
	return parseDuration(p.ActionRateWindow, time.Minute)
}

// OutputRetentionDuration 解析产出保留宽限期，非法值回退为 24 小时
func (p *PipelineConfig) OutputRetentionDuration() time.Duration {
	return parseDuration(p.OutputRetention, 24*time.Hour)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	globalConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Pipeline.BreakerThreshold <= 0 {
		cfg.Pipeline.BreakerThreshold = 3
	}
	if cfg.Pipeline.ActionRateLimit <= 0 {
		cfg.Pipeline.ActionRateLimit = 10
	}
	if cfg.Pipeline.WorkerConcurrency <= 0 {
		cfg.Pipeline.WorkerConcurrency = 10
	}
	if cfg.Pipeline.PromptVersion == "" {
		cfg.Pipeline.PromptVersion = "v1"
	}
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
