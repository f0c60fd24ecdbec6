package recurrence

import (
	"encoding/json"
	"strings"
	"time"

	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
)

// RuleOf extracts the recurrence rule of a parent item. ok is false for
// non-recurring rows, instances and unknown patterns. A malformed config or
// end date is logged and ignored so the item keeps recurring on its anchor.
func RuleOf(item model.Item) (model.RecurrenceRule, bool) {
	if item.IsInstance() {
		return model.RecurrenceRule{}, false
	}

	pattern, known := model.ParsePattern(item.RawPattern)
	if !known {
		appLog.Warn("recurrence: unknown pattern, treating as non-recurring",
			"kind", item.Kind, "id", item.ID, "pattern", item.RawPattern)
		return model.RecurrenceRule{}, false
	}
	if pattern == model.PatternNone {
		return model.RecurrenceRule{}, false
	}

	rule := model.RecurrenceRule{
		Pattern: pattern,
		Config:  ParseConfig(item.RawConfig),
	}

	if end := strings.TrimSpace(item.RecurrenceEndDate); end != "" {
		if t, err := ParseDate(end); err == nil {
			rule.EndDate = t
		} else {
			appLog.Warn("recurrence: ignoring malformed end date",
				"kind", item.Kind, "id", item.ID, "end_date", end)
		}
	}

	return rule, true
}

// ParseConfig 解析存储的 JSON 配置。空值或格式错误返回零值配置，
// 即全部从锚点推导。
func ParseConfig(raw string) model.RecurrenceConfig {
	var cfg model.RecurrenceConfig
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return cfg
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		appLog.Warn("recurrence: malformed config, using anchor defaults", "config", raw, "err", err)
		return model.RecurrenceConfig{}
	}
	return cfg
}

// EncodeConfig 是 ParseConfig 的逆操作，零值配置编码为空字符串
func EncodeConfig(cfg model.RecurrenceConfig) string {
	if len(cfg.WeekDays) == 0 && cfg.DayOfMonth == 0 && cfg.Month == 0 && cfg.Day == 0 {
		return ""
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	return string(data)
}

// AnchorOf 返回父条目的投影锚点：截止日期，没有截止日期时用创建日期
func AnchorOf(item model.Item) time.Time {
	if item.DueDate != "" {
		if t, err := ParseDate(item.DueDate); err == nil {
			return t
		}
	}
	return Civil(item.CreatedAt)
}
