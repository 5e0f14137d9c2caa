package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Database      DatabaseConfig      `yaml:"database" json:"database"`
	Logger        LoggerConfig        `yaml:"logger" json:"logger"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch" json:"elasticsearch"`
	Alert         AlertConfig         `yaml:"alert" json:"alert"`
	Thresholds    map[string]float64  `yaml:"thresholds" json:"thresholds"`
	Signals       SignalsConfig       `yaml:"signals" json:"signals"`
	Notify        NotifyConfig        `yaml:"notify" json:"notify"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
}

type ServerConfig struct {
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Host     string `yaml:"host" json:"host"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Driver   string `yaml:"driver" json:"driver"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
	DBName   string `yaml:"dbname" json:"dbname"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Output string `yaml:"output" json:"output"` // stdout, stderr, or file path
}

type ElasticsearchConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`           // 是否启用 Elasticsearch
	Addresses   []string `yaml:"addresses" json:"addresses"`       // ES 节点地址，如 ["http://localhost:9200"]
	Username    string   `yaml:"username" json:"username"`         // ES 用户名
	Password    string   `yaml:"password" json:"-"`                // ES 密码
	IndexPrefix string   `yaml:"index_prefix" json:"index_prefix"` // 索引前缀，如 "alert-events"
}

// AlertConfig 告警引擎配置
type AlertConfig struct {
	Enabled                bool `yaml:"enabled" json:"enabled"`
	CheckInterval          int  `yaml:"check_interval" json:"check_interval"`                     // seconds
	HistoryCapacity        int  `yaml:"history_capacity" json:"history_capacity"`                 // ring size
	ProviderTimeoutSeconds int  `yaml:"provider_timeout_seconds" json:"provider_timeout_seconds"` // per provider fetch
	ChannelTimeoutSeconds  int  `yaml:"channel_timeout_seconds" json:"channel_timeout_seconds"`   // per channel send
	LogSuppressMinutes     int  `yaml:"log_suppress_minutes" json:"log_suppress_minutes"`         // cooldown for log rules
	ResolveNotify          bool `yaml:"resolve_notify" json:"resolve_notify"`                     // notify on resolve
}

// SignalsConfig 信号源配置
type SignalsConfig struct {
	LogDir           string `yaml:"log_dir" json:"log_dir"`
	LogWindowMinutes int    `yaml:"log_window_minutes" json:"log_window_minutes"`
	SystemEnabled    bool   `yaml:"system_enabled" json:"system_enabled"`
	// Probes 上游依赖探测目标
	Probes []ProbeConfig `yaml:"probes" json:"probes"`
}

type ProbeConfig struct {
	Name                string `yaml:"name" json:"name"`
	Type                string `yaml:"type" json:"type"` // http, https, tcp
	Address             string `yaml:"address" json:"address"`
	Method              string `yaml:"method" json:"method"`
	ExpectedStatusCodes []int  `yaml:"expected_status_codes" json:"expected_status_codes"`
}

// NotifyConfig 通知渠道配置
type NotifyConfig struct {
	Email     EmailConfig     `yaml:"email" json:"email"`
	Webhook   WebhookConfig   `yaml:"webhook" json:"webhook"`
	Chat      ChatConfig      `yaml:"chat" json:"chat"`
	Broadcast BroadcastConfig `yaml:"broadcast" json:"broadcast"`
	// RatePerMinute caps sends per channel; 0 disables limiting.
	RatePerMinute int `yaml:"rate_per_minute" json:"rate_per_minute"`
}

type EmailConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	SMTPHost string   `yaml:"smtp_host" json:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port" json:"smtp_port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"-"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
	UseTLS   bool     `yaml:"use_tls" json:"use_tls"`
}

type WebhookConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// ChatConfig 聊天机器人配置（dingtalk, wechat, telegram）
type ChatConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Provider   string `yaml:"provider" json:"provider"`
	WebhookURL string `yaml:"webhook_url" json:"webhook_url"`
	Secret     string `yaml:"secret" json:"-"`
	BotToken   string `yaml:"bot_token" json:"-"`
	ChatID     string `yaml:"chat_id" json:"chat_id"`
}

type BroadcastConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// LoadFromFile 从文件加载配置
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&config)

	return &config, nil
}

// SaveToFile 保存配置到文件
func SaveToFile(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load 从环境变量加载配置
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort: getEnvInt("HTTP_PORT", 8080),
			Host:     getEnv("HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("DB_ENABLED", true),
			Driver:   getEnv("DB_DRIVER", "sqlite"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "alerts.db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:     getEnvBool("ES_ENABLED", false),
			Addresses:   getEnvSlice("ES_ADDRESSES", []string{"http://localhost:9200"}),
			Username:    getEnv("ES_USERNAME", ""),
			Password:    getEnv("ES_PASSWORD", ""),
			IndexPrefix: getEnv("ES_INDEX_PREFIX", "alert-events"),
		},
		Alert: AlertConfig{
			Enabled:                getEnvBool("ALERT_ENABLED", true),
			CheckInterval:          getEnvInt("ALERT_CHECK_INTERVAL", 60),
			HistoryCapacity:        getEnvInt("ALERT_HISTORY_CAPACITY", 1000),
			ProviderTimeoutSeconds: getEnvInt("ALERT_PROVIDER_TIMEOUT", 10),
			ChannelTimeoutSeconds:  getEnvInt("ALERT_CHANNEL_TIMEOUT", 15),
			LogSuppressMinutes:     getEnvInt("ALERT_LOG_SUPPRESS_MINUTES", 30),
			ResolveNotify:          getEnvBool("ALERT_RESOLVE_NOTIFY", false),
		},
		Signals: SignalsConfig{
			LogDir:           getEnv("SIGNALS_LOG_DIR", "logs"),
			LogWindowMinutes: getEnvInt("SIGNALS_LOG_WINDOW", 5),
			SystemEnabled:    getEnvBool("SIGNALS_SYSTEM_ENABLED", true),
		},
		Notify: NotifyConfig{
			Email: EmailConfig{
				Enabled:  getEnvBool("NOTIFY_EMAIL_ENABLED", false),
				SMTPHost: getEnv("SMTP_HOST", ""),
				SMTPPort: getEnvInt("SMTP_PORT", 587),
				Username: getEnv("SMTP_USER", ""),
				Password: getEnv("SMTP_PASSWORD", ""),
				From:     getEnv("SMTP_FROM", ""),
				To:       getEnvSlice("ALERT_EMAIL_TO", nil),
				UseTLS:   getEnvBool("SMTP_USE_TLS", false),
			},
			Webhook: WebhookConfig{
				Enabled: getEnvBool("NOTIFY_WEBHOOK_ENABLED", false),
				URL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			},
			Chat: ChatConfig{
				Enabled:    getEnvBool("NOTIFY_CHAT_ENABLED", false),
				Provider:   getEnv("NOTIFY_CHAT_PROVIDER", "dingtalk"),
				WebhookURL: getEnv("NOTIFY_CHAT_WEBHOOK", ""),
				Secret:     getEnv("NOTIFY_CHAT_SECRET", ""),
				BotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
				ChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
			},
			Broadcast: BroadcastConfig{
				Enabled: getEnvBool("NOTIFY_BROADCAST_ENABLED", true),
			},
			RatePerMinute: getEnvInt("NOTIFY_RATE_PER_MINUTE", 30),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 100),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 200),
		},
	}
	setDefaults(cfg)
	return cfg
}

// setDefaults 设置默认值
func setDefaults(config *Config) {
	if config.Server.HTTPPort == 0 {
		config.Server.HTTPPort = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "sqlite"
	}
	if config.Database.DBName == "" {
		config.Database.DBName = "alerts.db"
	}
	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Output == "" {
		config.Logger.Output = "stdout"
	}
	if config.Elasticsearch.IndexPrefix == "" {
		config.Elasticsearch.IndexPrefix = "alert-events"
	}
	if config.Alert.CheckInterval == 0 {
		config.Alert.CheckInterval = 60
	}
	if config.Alert.HistoryCapacity == 0 {
		config.Alert.HistoryCapacity = 1000
	}
	if config.Alert.ProviderTimeoutSeconds == 0 {
		config.Alert.ProviderTimeoutSeconds = 10
	}
	if config.Alert.ChannelTimeoutSeconds == 0 {
		config.Alert.ChannelTimeoutSeconds = 15
	}
	if config.Alert.LogSuppressMinutes == 0 {
		config.Alert.LogSuppressMinutes = 30
	}
	if config.Signals.LogDir == "" {
		config.Signals.LogDir = "logs"
	}
	if config.Signals.LogWindowMinutes == 0 {
		config.Signals.LogWindowMinutes = 5
	}
	if config.Notify.Email.SMTPPort == 0 {
		config.Notify.Email.SMTPPort = 587
	}
	if config.Notify.Chat.Provider == "" {
		config.Notify.Chat.Provider = "dingtalk"
	}
	if config.RateLimit.RequestsPerSecond == 0 {
		config.RateLimit.RequestsPerSecond = 100
	}
	if config.RateLimit.Burst == 0 {
		config.RateLimit.Burst = 200
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		// 支持逗号分隔的字符串
		if result := splitAndTrim(val, ","); len(result) > 0 {
			return result
		}
	}
	return defaultVal
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	var result []string
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Database.Enabled {
		validDrivers := map[string]bool{
			"sqlite":   true,
			"mysql":    true,
			"postgres": true,
		}
		if !validDrivers[c.Database.Driver] {
			return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name cannot be empty")
		}
		if c.Database.Driver != "sqlite" {
			if c.Database.Host == "" {
				return fmt.Errorf("database host cannot be empty for %s", c.Database.Driver)
			}
			if c.Database.Port < 1 || c.Database.Port > 65535 {
				return fmt.Errorf("invalid database port: %d", c.Database.Port)
			}
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logger.Level)
	}

	if c.Elasticsearch.Enabled && len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("elasticsearch addresses cannot be empty when enabled")
	}

	// 告警引擎无法重新调度属于启动期配置错误
	if c.Alert.Enabled {
		if c.Alert.CheckInterval < 1 {
			return fmt.Errorf("alert check interval must be at least 1 second")
		}
		if c.Alert.HistoryCapacity < 1 {
			return fmt.Errorf("alert history capacity must be at least 1")
		}
		if c.Alert.ProviderTimeoutSeconds < 1 || c.Alert.ChannelTimeoutSeconds < 1 {
			return fmt.Errorf("alert provider and channel timeouts must be at least 1 second")
		}
		if c.Alert.LogSuppressMinutes < 0 {
			return fmt.Errorf("alert log suppress minutes cannot be negative")
		}
	}

	for key, value := range c.Thresholds {
		if value < 0 {
			return fmt.Errorf("threshold %s cannot be negative", key)
		}
	}

	if c.Notify.Email.Enabled {
		if c.Notify.Email.SMTPHost == "" || c.Notify.Email.From == "" || len(c.Notify.Email.To) == 0 {
			return fmt.Errorf("email notification requires smtp_host, from and to")
		}
	}
	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		return fmt.Errorf("webhook notification requires url")
	}
	if c.Notify.Chat.Enabled {
		switch c.Notify.Chat.Provider {
		case "dingtalk", "wechat":
			if c.Notify.Chat.WebhookURL == "" {
				return fmt.Errorf("%s chat notification requires webhook_url", c.Notify.Chat.Provider)
			}
		case "telegram":
			if c.Notify.Chat.BotToken == "" || c.Notify.Chat.ChatID == "" {
				return fmt.Errorf("telegram chat notification requires bot_token and chat_id")
			}
		default:
			return fmt.Errorf("invalid chat provider: %s", c.Notify.Chat.Provider)
		}
	}

	seen := make(map[string]bool, len(c.Signals.Probes))
	for _, p := range c.Signals.Probes {
		if p.Name == "" || p.Address == "" {
			return fmt.Errorf("probe requires name and address")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate probe name: %s", p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case "http", "https", "tcp":
		default:
			return fmt.Errorf("invalid probe type %q for %s", p.Type, p.Name)
		}
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}

	return nil
}
