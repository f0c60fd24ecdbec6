// Package calendar merges plain items, materialized instances and virtual
// occurrences into the date-keyed index behind the month widget and the
// day agenda.
package calendar

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
)

// DefaultLookaheadDays 是虚拟日期的默认前瞻天数
const DefaultLookaheadDays = 30

// Source 提供所有带截止日期的行：普通条目、重复父条目和实例
type Source interface {
	DueDatedItems(ctx context.Context, kind model.Kind) ([]model.Item, error)
}

// UpcomingProvider yields the projected dates of every recurring parent
// over [today, today+days].
type UpcomingProvider interface {
	Upcoming(ctx context.Context, days int) ([]model.UpcomingSummary, error)
}

// Options 调整 Aggregator，零值使用默认值
type Options struct {
	LookaheadDays int
	Location      *time.Location
	Now           func() time.Time
}

// Aggregator 持有进程内唯一的日历索引
type Aggregator struct {
	source    Source
	upcoming  UpcomingProvider
	lookahead int
	loc       *time.Location
	now       func() time.Time

	seq atomic.Uint64

	mu           sync.RWMutex
	snapshot     *Index
	publishedSeq uint64
}

// NewAggregator wires an Aggregator to its data sources.
func NewAggregator(source Source, upcoming UpcomingProvider, opts Options) *Aggregator {
	if opts.LookaheadDays <= 0 {
		opts.LookaheadDays = DefaultLookaheadDays
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		source:    source,
		upcoming:  upcoming,
		lookahead: opts.LookaheadDays,
		loc:       opts.Location,
		now:       opts.Now,
		snapshot:  emptyIndex(),
	}
}

// LookaheadDays 返回配置的前瞻天数
func (a *Aggregator) LookaheadDays() int {
	return a.lookahead
}

// Snapshot 返回最近发布的索引，首次聚合前为空索引
func (a *Aggregator) Snapshot() *Index {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// Current 返回属于今天的快照。尚未聚合过，或者日期已经翻过已发布
// 快照的 Today 时，先跑一次 Refresh。
func (a *Aggregator) Current(ctx context.Context) (*Index, error) {
	idx := a.Snapshot()
	if idx.PassID != "" && idx.Today == recurrence.FormatDate(recurrence.Today(a.now(), a.loc)) {
		return idx, nil
	}
	return a.Refresh(ctx)
}

type fetchResult[T any] struct {
	rows []T
	err  error
}

// Refresh runs one aggregation pass and publishes its index. A failing
// source is logged and left out; the pass still publishes whatever the
// other sources returned. If a newer pass has already published, this
// pass is discarded and the newer index is returned. A cancelled context
// aborts without publishing.
func (a *Aggregator) Refresh(ctx context.Context) (*Index, error) {
	seq := a.seq.Add(1)
	passID := uuid.NewString()
	now := a.now()
	today := recurrence.Today(now, a.loc)
	windowEnd := recurrence.AddDays(today, a.lookahead)

	var (
		wg       sync.WaitGroup
		tasks    fetchResult[model.Item]
		todos    fetchResult[model.Item]
		upcoming fetchResult[model.UpcomingSummary]
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		tasks.rows, tasks.err = a.source.DueDatedItems(ctx, model.KindTask)
	}()
	go func() {
		defer wg.Done()
		todos.rows, todos.err = a.source.DueDatedItems(ctx, model.KindTodo)
	}()
	go func() {
		defer wg.Done()
		upcoming.rows, upcoming.err = a.upcoming.Upcoming(ctx, a.lookahead)
	}()
	// 所有实际行到齐之后才决定虚拟日期
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return a.Snapshot(), fmt.Errorf("refresh calendar: %w", err)
	}

	b := newBuilder(today, windowEnd)
	if tasks.err != nil {
		appLog.Error("calendar: task fetch failed, continuing without tasks", tasks.err, "pass", passID)
		b.failed = append(b.failed, "tasks")
	} else {
		b.addRows(tasks.rows)
	}
	if todos.err != nil {
		appLog.Error("calendar: todo fetch failed, continuing without todos", todos.err, "pass", passID)
		b.failed = append(b.failed, "todos")
	} else {
		b.addRows(todos.rows)
	}
	if upcoming.err != nil {
		appLog.Error("calendar: recurring look-ahead incomplete", upcoming.err, "pass", passID, "summaries", len(upcoming.rows))
		b.failed = append(b.failed, "recurring")
	}
	// 部分失败时仍保留可用类别的虚拟日期
	b.addVirtual(upcoming.rows)

	idx := b.build(passID, now)
	published := a.publish(seq, idx)

	appLog.Info("calendar: aggregation pass finished",
		"pass", passID,
		"items", idx.Len(),
		"virtual", b.virtualCount,
		"dropped_duplicates", b.duplicates,
		"failed_sources", len(b.failed),
		"stale", published != idx,
	)
	return published, nil
}

func (a *Aggregator) publish(seq uint64, idx *Index) *Index {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq < a.publishedSeq {
		return a.snapshot
	}
	a.publishedSeq = seq
	a.snapshot = idx
	return idx
}

// slotKey 标识一次逻辑上的发生：某行在自己的截止日期，或重复父条目在某个日期
type slotKey struct {
	kind   model.Kind
	parent uint
	date   string
}

type builder struct {
	today     time.Time
	windowEnd time.Time

	byDate    map[string][]model.CalendarItem
	occupied  map[slotKey]struct{}
	instances map[model.Kind]map[uint][]recurrence.Instance
	failed    []string

	virtualCount int
	duplicates   int
}

func newBuilder(today, windowEnd time.Time) *builder {
	return &builder{
		today:     today,
		windowEnd: windowEnd,
		byDate:    make(map[string][]model.CalendarItem),
		occupied:  make(map[slotKey]struct{}),
		instances: make(map[model.Kind]map[uint][]recurrence.Instance),
	}
}

func (b *builder) addRows(rows []model.Item) {
	for _, row := range rows {
		if row.DueDate == "" {
			continue
		}
		if _, err := recurrence.ParseDate(row.DueDate); err != nil {
			appLog.Warn("calendar: skipping row with malformed due date", "kind", row.Kind, "id", row.ID, "due_date", row.DueDate)
			continue
		}

		key := slotKey{kind: row.Kind, parent: row.ID, date: row.DueDate}
		if row.IsInstance() {
			key.parent = *row.RecurringParentID
		}
		if _, taken := b.occupied[key]; taken {
			b.duplicates++
			appLog.Warn("calendar: dropping second row for the same occurrence",
				"kind", row.Kind, "id", row.ID, "parent", key.parent, "date", key.date)
			continue
		}
		b.occupied[key] = struct{}{}

		if row.IsInstance() {
			byParent := b.instances[row.Kind]
			if byParent == nil {
				byParent = make(map[uint][]recurrence.Instance)
				b.instances[row.Kind] = byParent
			}
			byParent[key.parent] = append(byParent[key.parent], recurrence.Instance{
				ID: row.ID, ParentID: key.parent, DueDate: row.DueDate,
			})
		}

		b.byDate[row.DueDate] = append(b.byDate[row.DueDate], rowToCalendarItem(row))
	}
}

func (b *builder) addVirtual(summaries []model.UpcomingSummary) {
	for _, s := range summaries {
		slots := recurrence.Reconcile(s.ParentID, s.Dates, b.instances[s.Type][s.ParentID])
		for _, slot := range slots {
			if !slot.IsVirtual() {
				continue
			}
			d, err := recurrence.ParseDate(slot.Date)
			if err != nil || d.Before(b.today) || d.After(b.windowEnd) {
				continue
			}
			key := slotKey{kind: s.Type, parent: s.ParentID, date: slot.Date}
			if _, taken := b.occupied[key]; taken {
				continue
			}
			b.occupied[key] = struct{}{}

			parentID := s.ParentID
			b.byDate[slot.Date] = append(b.byDate[slot.Date], model.CalendarItem{
				ID:                  slot.Key(),
				Title:               s.Title,
				Type:                s.Type,
				DueDate:             slot.Date,
				IsRecurring:         true,
				IsVirtualOccurrence: true,
				RecurringParentID:   &parentID,
			})
			b.virtualCount++
		}
	}
}

func (b *builder) build(passID string, generatedAt time.Time) *Index {
	for _, items := range b.byDate {
		sortDay(items)
	}
	return &Index{
		PassID:        passID,
		GeneratedAt:   generatedAt,
		Today:         recurrence.FormatDate(b.today),
		WindowEnd:     recurrence.FormatDate(b.windowEnd),
		FailedSources: b.failed,
		byDate:        b.byDate,
	}
}

func rowToCalendarItem(row model.Item) model.CalendarItem {
	item := model.CalendarItem{
		ID:          strconv.FormatUint(uint64(row.ID), 10),
		Title:       row.Title,
		Type:        row.Kind,
		DueDate:     row.DueDate,
		Completed:   row.Completed,
		IsRecurring: row.IsRecurringParent() || row.IsInstance(),
		Notes:       row.Notes,
	}
	if row.IsInstance() {
		parentID := *row.RecurringParentID
		item.RecurringParentID = &parentID
	}
	return item
}
