// Package model holds the data types shared by the projection engine, the
// calendar aggregator, the notification feed and the persistence layer.
package model

import (
	"strings"
	"time"
)

// Kind distinguishes the two item tables. Ids are only unique per kind.
type Kind string

const (
	KindTask Kind = "task"
	KindTodo Kind = "todo"
)

// Kinds 按固定顺序列出所有类别
var Kinds = []Kind{KindTask, KindTodo}

// ParseKind 同时接受单数和复数写法（"task"、"tasks"）
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "task", "tasks":
		return KindTask, true
	case "todo", "todos":
		return KindTodo, true
	default:
		return "", false
	}
}

// Pattern is the recurrence frequency of a parent item.
type Pattern string

const (
	PatternNone    Pattern = ""
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
	PatternYearly  Pattern = "yearly"
)

// ParsePattern 规范化存储的重复模式。未知值返回 ok=false，调用方按不重复处理
func ParsePattern(s string) (Pattern, bool) {
	switch p := Pattern(strings.ToLower(strings.TrimSpace(s))); p {
	case PatternNone, PatternDaily, PatternWeekly, PatternMonthly, PatternYearly:
		return p, true
	default:
		return PatternNone, false
	}
}

// RecurrenceConfig is the pattern-specific part of a rule, stored as JSON.
// Every field is optional; missing or invalid values fall back to the anchor.
type RecurrenceConfig struct {
	// WeekDays 中 0 表示周日，6 表示周六
	WeekDays   []int `json:"weekDays,omitempty"`
	DayOfMonth int   `json:"dayOfMonth,omitempty"`
	Month      int   `json:"month,omitempty"`
	Day        int   `json:"day,omitempty"`
}

// RecurrenceRule is attached to a parent task or todo.
type RecurrenceRule struct {
	Pattern Pattern
	Config  RecurrenceConfig
	// EndDate 包含当天，零值表示不结束
	EndDate time.Time
}

// Item is the persistence-neutral view of a task or todo row.
type Item struct {
	ID        uint
	Kind      Kind
	Title     string
	Notes     string
	ProjectID *uint
	Priority  string
	// DueDate is YYYY-MM-DD, empty when the item has no due date.
	DueDate   string
	Completed bool

	// RawPattern is the pattern exactly as stored.
	RawPattern string
	// RawConfig is the JSON text of the RecurrenceConfig.
	RawConfig string
	// RecurrenceEndDate is YYYY-MM-DD or empty.
	RecurrenceEndDate string
	RecurringParentID *uint

	CreatedAt time.Time
}

// IsInstance 判断该行是否为已落地的实例
func (i Item) IsInstance() bool {
	return i.RecurringParentID != nil
}

// IsRecurringParent reports whether the row carries a known recurrence
// pattern and is not itself an instance.
func (i Item) IsRecurringParent() bool {
	if i.IsInstance() {
		return false
	}
	p, ok := ParsePattern(i.RawPattern)
	return ok && p != PatternNone
}

// CalendarItem 是日历索引中统一的展示条目
type CalendarItem struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Type                Kind   `json:"type"`
	DueDate             string `json:"due_date"`
	Completed           bool   `json:"completed"`
	IsRecurring         bool   `json:"is_recurring"`
	IsVirtualOccurrence bool   `json:"is_virtual_occurrence"`
	RecurringParentID   *uint  `json:"recurring_parent_id,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// VirtualOccurrence 是投影出来、从不入库的日期
type VirtualOccurrence struct {
	ID       string `json:"id"`
	ParentID uint   `json:"parent_id"`
	Title    string `json:"title"`
	DueDate  string `json:"due_date"`
	Type     Kind   `json:"type"`
}

// UpcomingSummary lists the projected dates of one recurring parent.
type UpcomingSummary struct {
	ParentID uint     `json:"parent_id"`
	Title    string   `json:"title"`
	Type     Kind     `json:"type"`
	Dates    []string `json:"dates"`
}
