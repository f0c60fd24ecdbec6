package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr    string `yaml:"listen_addr"`
	Port          string `yaml:"port"`
	DatabasePath  string `yaml:"database_path"`
	SessionSecret string `yaml:"session_secret"`
	GinMode       string `yaml:"gin_mode"`
	AdminUserName string `yaml:"admin_user_name"`
	AdminPassword string `yaml:"admin_password"`
	LogLevel      string `yaml:"log_level"`

	// Timezone 为 IANA 时区名，决定“今天”是哪一天；为空时使用本地时区
	Timezone string `yaml:"timezone"`
	// LookaheadDays 为日历虚拟重复日期的前瞻天数
	LookaheadDays int `yaml:"lookahead_days"`

	Notify NotifyConfig `yaml:"notify"`
}

// NotifyConfig 控制定时通知摘要
type NotifyConfig struct {
	// Cron 为五段式 cron 表达式，为空时不启动定时任务
	Cron string `yaml:"cron"`
	// Days 为摘要中即将到来的天数
	Days int `yaml:"days"`
	// MaterializeDueToday 为 true 时，生成摘要会把今天的虚拟日期落地为实例
	MaterializeDueToday bool `yaml:"materialize_due_today"`
	// WebhookURL 非空时每份摘要额外以 JSON POST 到该地址
	WebhookURL string `yaml:"webhook_url"`
}

// Default 返回默认配置
func Default() AppConfig {
	return AppConfig{
		Port:          "8080",
		DatabasePath:  "tasknest.db",
		SessionSecret: "tasknest-dev-secret",
		GinMode:       "release",
		LogLevel:      "info",
		LookaheadDays: 30,
		Notify: NotifyConfig{
			Cron: "0 8 * * *",
			Days: 7,
		},
	}
}

// Load 依次应用默认值、YAML 文件（path 为空或文件不存在时跳过）与环境变量，
// 最后 Normalize。
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	return cfg, nil
}

func (c *AppConfig) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.SessionSecret, "SESSION_SECRET")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.AdminUserName, "ADMIN_USER_NAME")
	setString(&c.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.Timezone, "TIMEZONE")
	setString(&c.Notify.Cron, "NOTIFY_CRON")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Notify.WebhookURL, "NOTIFY_WEBHOOK_URL")

	if err := setInt(&c.LookaheadDays, "LOOKAHEAD_DAYS"); err != nil {
		return err
	}
	if err := setInt(&c.Notify.Days, "NOTIFY_DAYS"); err != nil {
		return err
	}
	if v := strings.TrimSpace(os.Getenv("MATERIALIZE_DUE_TODAY")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MATERIALIZE_DUE_TODAY: %w", err)
		}
		c.Notify.MaterializeDueToday = b
	}
	return nil
}

// Normalize 为缺失或非法的值补上默认值
func (c *AppConfig) Normalize() {
	def := Default()
	c.Port = strings.TrimSpace(c.Port)
	if c.Port == "" {
		c.Port = def.Port
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = fmt.Sprintf(":%s", c.Port)
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		c.DatabasePath = def.DatabasePath
	}
	if strings.TrimSpace(c.SessionSecret) == "" {
		c.SessionSecret = def.SessionSecret
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = def.GinMode
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = def.LookaheadDays
	}
	if c.Notify.Days <= 0 {
		c.Notify.Days = def.Notify.Days
	}
	c.Notify.Cron = strings.TrimSpace(c.Notify.Cron)
	c.Notify.WebhookURL = strings.TrimSpace(c.Notify.WebhookURL)
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.Timezone = strings.TrimSpace(c.Timezone)
}

// Location 解析 Timezone，失败时回退到本地时区
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
