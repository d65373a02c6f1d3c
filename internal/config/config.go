package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Quota       QuotaConfig       `yaml:"quota"`
	Cache       CacheConfig       `yaml:"cache"`
	OpenWeather OpenWeatherConfig `yaml:"openweather"`
	Issuance    IssuanceConfig    `yaml:"issuance"`
	Janitor     JanitorConfig     `yaml:"janitor"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QuotaConfig API Key 配额
type QuotaConfig struct {
	Limit         int `yaml:"limit"`          // 窗口内最多调用次数
	WindowMinutes int `yaml:"window_minutes"` // 分钟
}

// Window 窗口时长
func (q QuotaConfig) Window() time.Duration {
	return time.Duration(q.WindowMinutes) * time.Minute
}

// CacheConfig 天气缓存配置
type CacheConfig struct {
	TTLMinutes     int `yaml:"ttl_minutes"`     // 分钟
	RetentionHours int `yaml:"retention_hours"` // 超过该时长的缓存行由 janitor 清理
}

// TTL 缓存有效期
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// Retention 缓存保留时长
func (c CacheConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// OpenWeatherConfig 上游天气服务配置
type OpenWeatherConfig struct {
	BaseURL        string `yaml:"base_url"`
	AppID          string `yaml:"app_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout 上游请求超时
func (o OpenWeatherConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// IssuanceConfig 密钥签发配置
type IssuanceConfig struct {
	KeysPerRequest    int `yaml:"keys_per_request"`
	RequestsPerMinute int `yaml:"requests_per_minute"` // 每个客户端 IP
}

// JanitorConfig 后台清理配置
type JanitorConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

// Interval 清理间隔
func (j JanitorConfig) Interval() time.Duration {
	return time.Duration(j.IntervalMinutes) * time.Minute
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level         string `yaml:"level"`
	RetentionDays int    `yaml:"retention_days"`
}

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// 支持通过 "auto" 自动生成管理 Key（首次加载后落盘）
	if maybeGenerateKeys(cfg) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// 上游密钥优先取环境变量，避免写进配置文件
	if v := strings.TrimSpace(os.Getenv("OPENWEATHER_APP_ID")); v != "" {
		cfg.OpenWeather.AppID = v
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()

	return cfg, nil
}

// Parse 解析 YAML 并补全默认值
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func maybeGenerateKeys(cfg *Config) bool {
	if strings.EqualFold(strings.TrimSpace(cfg.Server.AdminAPIKey), "auto") {
		cfg.Server.AdminAPIKey = generateAPIKey("weather-admin")
		return true
	}
	return false
}

func generateAPIKey(prefix string) string {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return prefix + "-fallback-key"
	}
	return prefix + "-" + hex.EncodeToString(b)
}

// Get 获取全局配置
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/weather.db"
	}
	if cfg.Quota.Limit == 0 {
		cfg.Quota.Limit = 5
	}
	if cfg.Quota.WindowMinutes == 0 {
		cfg.Quota.WindowMinutes = 60
	}
	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = 60
	}
	if cfg.Cache.RetentionHours == 0 {
		cfg.Cache.RetentionHours = 24
	}
	if cfg.OpenWeather.BaseURL == "" {
		cfg.OpenWeather.BaseURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	if cfg.OpenWeather.TimeoutSeconds == 0 {
		cfg.OpenWeather.TimeoutSeconds = 10
	}
	if cfg.Issuance.KeysPerRequest == 0 {
		cfg.Issuance.KeysPerRequest = 5
	}
	if cfg.Issuance.RequestsPerMinute == 0 {
		cfg.Issuance.RequestsPerMinute = 10
	}
	if cfg.Janitor.IntervalMinutes == 0 {
		cfg.Janitor.IntervalMinutes = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.RetentionDays == 0 {
		cfg.Logging.RetentionDays = 7
	}
}

func validate(cfg *Config) error {
	if cfg.Quota.Limit < 0 || cfg.Quota.WindowMinutes < 0 {
		return fmt.Errorf("quota: limit and window_minutes must be positive")
	}
	if cfg.Cache.TTLMinutes < 0 || cfg.Cache.RetentionHours < 0 {
		return fmt.Errorf("cache: ttl_minutes and retention_hours must be positive")
	}
	if cfg.Issuance.KeysPerRequest < 0 || cfg.Issuance.KeysPerRequest > 100 {
		return fmt.Errorf("issuance: keys_per_request must be between 1 and 100")
	}
	return nil
}

// Save 保存配置到文件
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
