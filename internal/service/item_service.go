package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
)

// ItemService 负责任务与待办的最小化增删改查，供日历与通知验证使用
type ItemService struct {
	store *Store
}

// ItemInput 定义创建条目时可配置字段
// RecurrenceConfig 为 JSON 文本，例如 {"weekDays":[1,3]}
type ItemInput struct {
	Title             string
	Notes             string
	ProjectID         *uint
	Priority          string
	DueDate           string
	RecurrencePattern string
	RecurrenceConfig  string
	RecurrenceEndDate string
}

// NewItemService 构造 ItemService
func NewItemService(store *Store) *ItemService {
	return &ItemService{store: store}
}

// Create 校验输入并新建条目
func (s *ItemService) Create(ctx context.Context, kind model.Kind, input ItemInput) (model.Item, error) {
	item, err := buildItem(kind, input)
	if err != nil {
		return model.Item{}, err
	}
	return s.store.Insert(ctx, item)
}

// Get 根据 ID 获取条目
func (s *ItemService) Get(ctx context.Context, kind model.Kind, id uint) (model.Item, error) {
	return s.store.Get(ctx, kind, id)
}

// List 列出条目，completed 为 nil 时返回全部
func (s *ItemService) List(ctx context.Context, kind model.Kind, completed *bool) ([]model.Item, error) {
	return s.store.List(ctx, kind, completed)
}

// SetCompleted 更新完成状态
func (s *ItemService) SetCompleted(ctx context.Context, kind model.Kind, id uint, completed bool) (model.Item, error) {
	return s.store.SetCompleted(ctx, kind, id, completed)
}

// Delete 删除条目及其实例
func (s *ItemService) Delete(ctx context.Context, kind model.Kind, id uint) error {
	return s.store.Delete(ctx, kind, id)
}

func buildItem(kind model.Kind, input ItemInput) (model.Item, error) {
	if kind != model.KindTask && kind != model.KindTodo {
		return model.Item{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return model.Item{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	item := model.Item{
		Kind:  kind,
		Title: title,
		Notes: strings.TrimSpace(input.Notes),
	}
	if kind == model.KindTask {
		item.ProjectID = input.ProjectID
		item.Priority = normalizePriority(input.Priority)
	}

	due := strings.TrimSpace(input.DueDate)
	if due != "" {
		if _, err := recurrence.ParseDate(due); err != nil {
			return model.Item{}, fmt.Errorf("%w: due date %q", ErrInvalidDate, due)
		}
		item.DueDate = due
	}

	pattern, ok := model.ParsePattern(input.RecurrencePattern)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: unsupported pattern %s", ErrInvalidRecurrence, input.RecurrencePattern)
	}
	rawConfig := strings.TrimSpace(input.RecurrenceConfig)
	end := strings.TrimSpace(input.RecurrenceEndDate)
	if pattern == model.PatternNone {
		if rawConfig != "" || end != "" {
			return model.Item{}, fmt.Errorf("%w: config without pattern", ErrInvalidRecurrence)
		}
		return item, nil
	}
	item.RawPattern = string(pattern)

	if rawConfig != "" {
		var cfg model.RecurrenceConfig
		if err := json.Unmarshal([]byte(rawConfig), &cfg); err != nil {
			return model.Item{}, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
		}
		if err := validateConfig(cfg); err != nil {
			return model.Item{}, err
		}
		item.RawConfig = recurrence.EncodeConfig(cfg)
	}

	if end != "" {
		endDate, err := recurrence.ParseDate(end)
		if err != nil {
			return model.Item{}, fmt.Errorf("%w: end date %q", ErrInvalidDate, end)
		}
		if due != "" {
			if dueDate, _ := recurrence.ParseDate(due); endDate.Before(dueDate) {
				return model.Item{}, fmt.Errorf("%w: end date before due date", ErrInvalidRecurrence)
			}
		}
		item.RecurrenceEndDate = end
	}
	return item, nil
}

func validateConfig(cfg model.RecurrenceConfig) error {
	for _, d := range cfg.WeekDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRecurrence, d)
		}
	}
	if cfg.DayOfMonth < 0 || cfg.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month %d out of range", ErrInvalidRecurrence, cfg.DayOfMonth)
	}
	if cfg.Month < 0 || cfg.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidRecurrence, cfg.Month)
	}
	if cfg.Day < 0 || cfg.Day > 31 {
		return fmt.Errorf("%w: day %d out of range", ErrInvalidRecurrence, cfg.Day)
	}
	return nil
}

func normalizePriority(priority string) string {
	switch p := strings.TrimSpace(strings.ToLower(priority)); p {
	case "low", "high", "urgent":
		return p
	default:
		return "medium"
	}
}
