package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tasknest/internal/db"
	"github.com/tasknest/internal/model"
)

// Store 是条目表的持久化协作者，为聚合器、通知与实例化提供查询
// 所有查询都按 kind 分表，id 只在同一张表内唯一
type Store struct {
	db *gorm.DB
}

// NewStore 构造 Store
func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

type scope func(*gorm.DB) *gorm.DB

func (s *Store) find(ctx context.Context, kind model.Kind, where scope) ([]model.Item, error) {
	query := s.db.WithContext(ctx)
	switch kind {
	case model.KindTask:
		return db.FindItems[db.Task](where(query.Model(&db.Task{})))
	case model.KindTodo:
		return db.FindItems[db.Todo](where(query.Model(&db.Todo{})))
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

func (s *Store) first(ctx context.Context, kind model.Kind, where scope) (model.Item, error) {
	query := s.db.WithContext(ctx)
	var (
		item model.Item
		err  error
	)
	switch kind {
	case model.KindTask:
		item, err = db.FirstItem[db.Task](where(query.Model(&db.Task{})))
	case model.KindTodo:
		item, err = db.FirstItem[db.Todo](where(query.Model(&db.Todo{})))
	default:
		return model.Item{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Item{}, ErrItemNotFound
	}
	return item, err
}

// DueDatedItems 返回所有带截止日期的行：普通条目、重复父条目与实例
func (s *Store) DueDatedItems(ctx context.Context, kind model.Kind) ([]model.Item, error) {
	items, err := s.find(ctx, kind, func(q *gorm.DB) *gorm.DB {
		return q.Where("due_date IS NOT NULL AND due_date <> ''").Order("due_date ASC, id ASC")
	})
	if err != nil {
		return nil, fmt.Errorf("list due-dated %ss: %w", kind, err)
	}
	return items, nil
}

// RecurringParents 返回设置了重复规则且自身不是实例的行
// 未知规则也会返回，由调用方按非重复处理
func (s *Store) RecurringParents(ctx context.Context, kind model.Kind) ([]model.Item, error) {
	items, err := s.find(ctx, kind, func(q *gorm.DB) *gorm.DB {
		return q.Where("recurring_parent_id IS NULL").
			Where("recurrence_pattern IS NOT NULL AND recurrence_pattern <> ''").
			Order("id ASC")
	})
	if err != nil {
		return nil, fmt.Errorf("list recurring %ss: %w", kind, err)
	}
	return items, nil
}

// ItemsDueOn 返回截止日期恰为 date 的行
func (s *Store) ItemsDueOn(ctx context.Context, kind model.Kind, date string) ([]model.Item, error) {
	items, err := s.find(ctx, kind, func(q *gorm.DB) *gorm.DB {
		return q.Where("due_date = ?", date).Order("id ASC")
	})
	if err != nil {
		return nil, fmt.Errorf("list %ss due %s: %w", kind, date, err)
	}
	return items, nil
}

// Get 根据 id 读取单行
func (s *Store) Get(ctx context.Context, kind model.Kind, id uint) (model.Item, error) {
	item, err := s.first(ctx, kind, func(q *gorm.DB) *gorm.DB {
		return q.Where("id = ?", id)
	})
	if err != nil && !errors.Is(err, ErrItemNotFound) && !errors.Is(err, ErrInvalidKind) {
		return model.Item{}, fmt.Errorf("get %s: %w", kind, err)
	}
	return item, err
}

// FindInstance 读取 parentID 在 date 上的实例，不存在时返回 ErrItemNotFound
func (s *Store) FindInstance(ctx context.Context, kind model.Kind, parentID uint, date string) (model.Item, error) {
	item, err := s.first(ctx, kind, func(q *gorm.DB) *gorm.DB {
		return q.Where("recurring_parent_id = ? AND due_date = ?", parentID, date)
	})
	if err != nil && !errors.Is(err, ErrItemNotFound) && !errors.Is(err, ErrInvalidKind) {
		return model.Item{}, fmt.Errorf("find %s instance: %w", kind, err)
	}
	return item, err
}

// HasInstanceOnDate 判断 parentID 在 date 上是否已有实例
func (s *Store) HasInstanceOnDate(ctx context.Context, kind model.Kind, parentID uint, date string) (bool, error) {
	_, err := s.FindInstance(ctx, kind, parentID, date)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrItemNotFound):
		return false, nil
	default:
		return false, err
	}
}

// CreateInstance 以 parent 的展示字段在 date 上创建实例。
// 插入使用 ON CONFLICT DO NOTHING，随后重新读取，并发调用最终得到同一行；
// created 仅在本次调用真正插入时为 true。重复规则本身不会复制到实例上。
func (s *Store) CreateInstance(ctx context.Context, kind model.Kind, parent model.Item, date string) (model.Item, bool, error) {
	parentID := parent.ID
	rec, err := db.NewRecord(model.Item{
		Kind:              kind,
		Title:             parent.Title,
		Notes:             parent.Notes,
		ProjectID:         parent.ProjectID,
		Priority:          parent.Priority,
		DueDate:           date,
		RecurringParentID: &parentID,
	})
	if err != nil {
		return model.Item{}, false, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recurring_parent_id"}, {Name: "due_date"}},
		DoNothing: true,
	}).Create(rec)
	if result.Error != nil {
		return model.Item{}, false, fmt.Errorf("create %s instance: %w", kind, result.Error)
	}

	item, err := s.FindInstance(ctx, kind, parentID, date)
	if err != nil {
		return model.Item{}, false, fmt.Errorf("reload %s instance: %w", kind, err)
	}
	return item, result.RowsAffected == 1, nil
}

// Insert 写入一行新条目
func (s *Store) Insert(ctx context.Context, item model.Item) (model.Item, error) {
	rec, err := db.NewRecord(item)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %q", ErrInvalidKind, item.Kind)
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return model.Item{}, fmt.Errorf("create %s: %w", item.Kind, err)
	}
	return rec.Item(), nil
}

// List 按截止日期列出条目，completed 为 nil 时不过滤
func (s *Store) List(ctx context.Context, kind model.Kind, completed *bool) ([]model.Item, error) {
	items, err := s.find(ctx, kind, func(q *gorm.DB) *gorm.DB {
		if completed != nil {
			q = q.Where("completed = ?", *completed)
		}
		return q.Order("due_date IS NULL OR due_date = '', due_date ASC, id ASC")
	})
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}
	return items, nil
}

// SetCompleted 更新完成状态
func (s *Store) SetCompleted(ctx context.Context, kind model.Kind, id uint, completed bool) (model.Item, error) {
	table, err := db.ModelFor(kind)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	result := s.db.WithContext(ctx).Model(table).Where("id = ?", id).Update("completed", completed)
	if result.Error != nil {
		return model.Item{}, fmt.Errorf("update %s: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return model.Item{}, ErrItemNotFound
	}
	return s.Get(ctx, kind, id)
}

// Delete 物理删除条目；删除父条目时一并删除其实例。
// 不使用软删除，否则已删除的实例仍会占用唯一索引。
func (s *Store) Delete(ctx context.Context, kind model.Kind, id uint) error {
	table, err := db.ModelFor(kind)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Unscoped().Where("id = ?", id).Delete(table)
		if result.Error != nil {
			return fmt.Errorf("delete %s: %w", kind, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrItemNotFound
		}
		if err := tx.Unscoped().Where("recurring_parent_id = ?", id).Delete(table).Error; err != nil {
			return fmt.Errorf("delete %s instances: %w", kind, err)
		}
		return nil
	})
}
