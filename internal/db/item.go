package db

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tasknest/internal/model"
)

// ErrUnknownKind 在条目类型既不是 task 也不是 todo 时返回
var ErrUnknownKind = errors.New("unknown item kind")

// Task 定义任务模型
// DueDate 以 YYYY-MM-DD 字符串保存，不参与时区换算
// RecurringParentID + DueDate 采用唯一索引，保证同一日期最多一个实例
// 普通条目的 RecurringParentID 为 NULL，不受唯一索引约束
type Task struct {
	gorm.Model
	Title             string `gorm:"not null"`
	Notes             string
	ProjectID         *uint  `gorm:"index"`
	Priority          string `gorm:"size:16;default:medium"`
	DueDate           string `gorm:"size:10;index;index:idx_task_instance,unique,priority:2"`
	Completed         bool   `gorm:"not null;default:false"`
	RecurrencePattern string `gorm:"size:16"`
	RecurrenceConfig  string
	RecurrenceEndDate string `gorm:"size:10"`
	RecurringParentID *uint  `gorm:"index:idx_task_instance,unique,priority:1"`
}

// Todo 定义待办模型，字段含义与 Task 相同，但没有项目与优先级
// 索引名需与 Task 区分，sqlite 的索引名在库内全局唯一
type Todo struct {
	gorm.Model
	Title             string `gorm:"not null"`
	Notes             string
	DueDate           string `gorm:"size:10;index;index:idx_todo_instance,unique,priority:2"`
	Completed         bool   `gorm:"not null;default:false"`
	RecurrencePattern string `gorm:"size:16"`
	RecurrenceConfig  string
	RecurrenceEndDate string `gorm:"size:10"`
	RecurringParentID *uint  `gorm:"index:idx_todo_instance,unique,priority:1"`
}

// Record 是 Task 与 Todo 的公共视图
type Record interface {
	Item() model.Item
}

// Row 约束泛型查询只接受两张条目表
type Row interface {
	Task | Todo
	Item() model.Item
}

// Item 转换为与存储无关的 model.Item
func (t Task) Item() model.Item {
	return model.Item{
		ID:                t.ID,
		Kind:              model.KindTask,
		Title:             t.Title,
		Notes:             t.Notes,
		ProjectID:         t.ProjectID,
		Priority:          t.Priority,
		DueDate:           t.DueDate,
		Completed:         t.Completed,
		RawPattern:        t.RecurrencePattern,
		RawConfig:         t.RecurrenceConfig,
		RecurrenceEndDate: t.RecurrenceEndDate,
		RecurringParentID: t.RecurringParentID,
		CreatedAt:         t.CreatedAt,
	}
}

// Item 转换为与存储无关的 model.Item
func (t Todo) Item() model.Item {
	return model.Item{
		ID:                t.ID,
		Kind:              model.KindTodo,
		Title:             t.Title,
		Notes:             t.Notes,
		DueDate:           t.DueDate,
		Completed:         t.Completed,
		RawPattern:        t.RecurrencePattern,
		RawConfig:         t.RecurrenceConfig,
		RecurrenceEndDate: t.RecurrenceEndDate,
		RecurringParentID: t.RecurringParentID,
		CreatedAt:         t.CreatedAt,
	}
}

// ModelFor 返回对应表的空模型，供 gorm 的 Model/Delete 使用
func ModelFor(kind model.Kind) (Record, error) {
	switch kind {
	case model.KindTask:
		return &Task{}, nil
	case model.KindTodo:
		return &Todo{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// NewRecord 根据 item 构造待写入的行，ID 与时间戳由数据库生成
func NewRecord(item model.Item) (Record, error) {
	switch item.Kind {
	case model.KindTask:
		return &Task{
			Title:             item.Title,
			Notes:             item.Notes,
			ProjectID:         item.ProjectID,
			Priority:          item.Priority,
			DueDate:           item.DueDate,
			Completed:         item.Completed,
			RecurrencePattern: item.RawPattern,
			RecurrenceConfig:  item.RawConfig,
			RecurrenceEndDate: item.RecurrenceEndDate,
			RecurringParentID: item.RecurringParentID,
		}, nil
	case model.KindTodo:
		return &Todo{
			Title:             item.Title,
			Notes:             item.Notes,
			DueDate:           item.DueDate,
			Completed:         item.Completed,
			RecurrencePattern: item.RawPattern,
			RecurrenceConfig:  item.RawConfig,
			RecurrenceEndDate: item.RecurrenceEndDate,
			RecurringParentID: item.RecurringParentID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, item.Kind)
	}
}

// FindItems 在 T 对应的表上执行查询并转换结果
func FindItems[T Row](query *gorm.DB) ([]model.Item, error) {
	var rows []T
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Item())
	}
	return items, nil
}

// FirstItem 返回查询的第一行，未找到时返回 gorm.ErrRecordNotFound
func FirstItem[T Row](query *gorm.DB) (model.Item, error) {
	var row T
	if err := query.First(&row).Error; err != nil {
		return model.Item{}, err
	}
	return row.Item(), nil
}
