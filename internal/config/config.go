package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ylxai/hafiportrait-monitor/internal/models"
)

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MonitorConfig struct {
	IntervalSeconds     int   `mapstructure:"interval_seconds"`
	ProbeTimeoutSeconds int   `mapstructure:"probe_timeout_seconds"`
	MaxConcurrentProbes int64 `mapstructure:"max_concurrent_probes"`
	HistorySize         int   `mapstructure:"history_size"`
}

// Thresholds drive overall status derivation. Hard thresholds map to
// critical, soft thresholds to warning.
type Thresholds struct {
	CPUCritical           float64 `mapstructure:"cpu_critical"`
	CPUWarning            float64 `mapstructure:"cpu_warning"`
	MemoryCritical        float64 `mapstructure:"memory_critical"`
	MemoryWarning         float64 `mapstructure:"memory_warning"`
	StorageCritical       float64 `mapstructure:"storage_critical"`
	StorageWarning        float64 `mapstructure:"storage_warning"`
	ErrorRateCritical     float64 `mapstructure:"error_rate_critical"`
	ErrorRateWarning      float64 `mapstructure:"error_rate_warning"`
	ResponseTimeWarningMs float64 `mapstructure:"response_time_warning_ms"`
	QueryTimeWarningMs    float64 `mapstructure:"query_time_warning_ms"`
}

type AlertingConfig struct {
	MinCooldownSeconds     int                `mapstructure:"min_cooldown_seconds"`
	DispatchTimeoutSeconds int                `mapstructure:"dispatch_timeout_seconds"`
	MaxRetained            int                `mapstructure:"max_retained"`
	Rules                  []models.AlertRule `mapstructure:"rules"`
}

type SlackSettings struct {
	Token    string `mapstructure:"token"`
	Channel  string `mapstructure:"channel"`
	Username string `mapstructure:"username"`
}

type EmailSettings struct {
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	From     string   `mapstructure:"from"`
	Password string   `mapstructure:"password"`
	To       []string `mapstructure:"to"`
}

type WebhookSettings struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type TelegramSettings struct {
	BotToken      string `mapstructure:"bot_token"`
	ChatID        int64  `mapstructure:"chat_id"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type SMSSettings struct {
	APIURL  string   `mapstructure:"api_url"`
	Token   string   `mapstructure:"token"`
	Numbers []string `mapstructure:"numbers"`
}

// ChannelConfig is a tagged union over channel kinds: Type selects which of
// the per-kind settings blocks applies.
type ChannelConfig struct {
	Type     string           `mapstructure:"type"`
	Slack    SlackSettings    `mapstructure:"slack"`
	Email    EmailSettings    `mapstructure:"email"`
	Webhook  WebhookSettings  `mapstructure:"webhook"`
	Telegram TelegramSettings `mapstructure:"telegram"`
	SMS      SMSSettings      `mapstructure:"sms"`
}

type InstanceConfig struct {
	Name   string  `mapstructure:"name"`
	Weight float64 `mapstructure:"weight"`
	URL    string  `mapstructure:"url"`
}

// AggregateConfig declares the fleet. Exactly one instance, named by
// LocalInstance, is served by this process; the rest must carry a URL.
type AggregateConfig struct {
	LocalInstance string           `mapstructure:"local_instance"`
	Instances     []InstanceConfig `mapstructure:"instances"`
}

type ServiceTarget struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type ProbesConfig struct {
	APIEndpoints     []string        `mapstructure:"api_endpoints"`
	ExternalServices []ServiceTarget `mapstructure:"external_services"`
	StoragePath      string          `mapstructure:"storage_path"`
}

type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Log        LogConfig       `mapstructure:"log"`
	Monitor    MonitorConfig   `mapstructure:"monitor"`
	Thresholds Thresholds      `mapstructure:"thresholds"`
	Alerting   AlertingConfig  `mapstructure:"alerting"`
	Channels   []ChannelConfig `mapstructure:"channels"`
	Aggregate  AggregateConfig `mapstructure:"aggregate"`
	Probes     ProbesConfig    `mapstructure:"probes"`

	viper *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "data/hafimon.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("monitor.interval_seconds", 60)
	v.SetDefault("monitor.probe_timeout_seconds", 10)
	v.SetDefault("monitor.max_concurrent_probes", 10)
	v.SetDefault("monitor.history_size", 100)
	v.SetDefault("thresholds.cpu_critical", 90)
	v.SetDefault("thresholds.cpu_warning", 70)
	v.SetDefault("thresholds.memory_critical", 90)
	v.SetDefault("thresholds.memory_warning", 80)
	v.SetDefault("thresholds.storage_critical", 95)
	v.SetDefault("thresholds.storage_warning", 85)
	v.SetDefault("thresholds.error_rate_critical", 10)
	v.SetDefault("thresholds.error_rate_warning", 5)
	v.SetDefault("thresholds.response_time_warning_ms", 1000)
	v.SetDefault("thresholds.query_time_warning_ms", 1000)
	v.SetDefault("alerting.min_cooldown_seconds", 60)
	v.SetDefault("alerting.dispatch_timeout_seconds", 15)
	v.SetDefault("alerting.max_retained", 1000)
	v.SetDefault("probes.storage_path", "/")
	v.SetDefault("aggregate.local_instance", "production")
	v.SetDefault("aggregate.instances", []map[string]interface{}{
		{"name": "production", "weight": 40},
		{"name": "realtime", "weight": 30},
		{"name": "backup", "weight": 30},
	})
}

// Load reads config.yaml (or the explicit file given) with HAFIMON_* env
// overrides. A missing config file is not an error; defaults apply.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	setDefaults(v)

	v.SetEnvPrefix("HAFIMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.viper = v
	return &cfg, nil
}

// Watch re-reads thresholds whenever the config file changes on disk and
// hands them to onChange. Other sections require a restart.
func (c *Config) Watch(onChange func(Thresholds)) {
	if c.viper == nil {
		return
	}
	c.viper.OnConfigChange(func(fsnotify.Event) {
		var next Config
		if err := c.viper.Unmarshal(&next); err != nil {
			return
		}
		onChange(next.Thresholds)
	})
	c.viper.WatchConfig()
}
