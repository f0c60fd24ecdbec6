package service

import (
	"context"
	"errors"
	"fmt"

	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
)

// OccurrenceService 把虚拟的重复日期落地为实例
// 没有进程级锁：同一 (kind, parent, date) 的并发调用依赖唯一索引收敛到同一行
type OccurrenceService struct {
	store *Store
}

// NewOccurrenceService 构造 OccurrenceService
func NewOccurrenceService(store *Store) *OccurrenceService {
	return &OccurrenceService{store: store}
}

// Materialize 返回 parentID 在 date 上的实例，不存在时创建。
// date 为父条目自身的截止日期时，该日期已由父条目占据，直接返回父条目。
func (s *OccurrenceService) Materialize(ctx context.Context, kind model.Kind, parentID uint, date string) (model.Item, error) {
	day, err := recurrence.ParseDate(date)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	date = recurrence.FormatDate(day)

	parent, err := s.store.Get(ctx, kind, parentID)
	if err != nil {
		return model.Item{}, err
	}
	rule, ok := recurrence.RuleOf(parent)
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %s %d", ErrNotRecurring, kind, parentID)
	}
	if !recurrence.Occurs(rule, recurrence.AnchorOf(parent), day) {
		return model.Item{}, fmt.Errorf("%w: %s %d on %s", ErrNotAnOccurrence, kind, parentID, date)
	}
	if parent.DueDate == date {
		return parent, nil
	}

	existing, err := s.store.FindInstance(ctx, kind, parentID, date)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrItemNotFound) {
		return model.Item{}, err
	}

	item, created, err := s.store.CreateInstance(ctx, kind, parent, date)
	if err != nil {
		return model.Item{}, fmt.Errorf("materialize occurrence: %w", err)
	}
	if created {
		appLog.Info("occurrence materialized", "kind", kind, "parent", parentID, "date", date, "id", item.ID)
	} else {
		appLog.Debug("occurrence already materialized", "kind", kind, "parent", parentID, "date", date, "id", item.ID)
	}
	return item, nil
}

// MaterializeVirtual 解析虚拟 id 后委托给 Materialize
func (s *OccurrenceService) MaterializeVirtual(ctx context.Context, kind model.Kind, virtualID string) (model.Item, error) {
	parentID, date, err := recurrence.ParseVirtualID(virtualID)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.Materialize(ctx, kind, parentID, date)
}

// CompleteOccurrence 先隐式实例化，再设置实例的完成状态
func (s *OccurrenceService) CompleteOccurrence(ctx context.Context, kind model.Kind, parentID uint, date string, completed bool) (model.Item, error) {
	item, err := s.Materialize(ctx, kind, parentID, date)
	if err != nil {
		return model.Item{}, err
	}
	if item.Completed == completed {
		return item, nil
	}
	return s.store.SetCompleted(ctx, kind, item.ID, completed)
}
