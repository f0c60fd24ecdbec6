package main

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tasknest/internal/config"
	"github.com/tasknest/internal/db"
	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/notify"
)

type appEnv struct {
	cfg config.AppConfig
	loc *time.Location
	db  *gorm.DB
}

// loadRuntime 读取配置、设置日志级别并打开数据库
func loadRuntime(configPath string) (*appEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("invalid timezone, falling back to local time", "timezone", cfg.Timezone, "err", err)
	}

	if err := db.Init(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return &appEnv{cfg: cfg, loc: loc, db: db.DB}, nil
}

// notifiers 返回配置额外启用的通知渠道
func (e *appEnv) notifiers() []notify.Notifier {
	var out []notify.Notifier
	if e.cfg.Notify.WebhookURL != "" {
		out = append(out, notify.NewWebhookNotifier(e.cfg.Notify.WebhookURL))
	}
	return out
}
