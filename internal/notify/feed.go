// Package notify builds the look-ahead feed of recurring items and the
// digests handed to notifiers, on demand or on a cron schedule.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
)

// DefaultUpcomingDays 是摘要默认的前瞻天数
const DefaultUpcomingDays = 7

// Trigger 表示摘要由什么触发
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// Source 是 Feed 需要的条目读取接口
type Source interface {
	RecurringParents(ctx context.Context, kind model.Kind) ([]model.Item, error)
	ItemsDueOn(ctx context.Context, kind model.Kind, date string) ([]model.Item, error)
}

// Materializer 把投影出的日期落地为实例
type Materializer interface {
	Materialize(ctx context.Context, kind model.Kind, parentID uint, date string) (model.Item, error)
}

// Options tunes a Feed. Zero values pick defaults.
type Options struct {
	Location     *time.Location
	Now          func() time.Time
	UpcomingDays int
	// MaterializeDueToday 为 true 时 Run 会落地今天的虚拟日期，需要 Materializer
	MaterializeDueToday bool
	Materializer        Materializer
	// OnMaterialized 在 Run 落地了至少一个实例后、通知发出前调用，
	// 用来让日历索引重新聚合。
	OnMaterialized func(ctx context.Context, d Digest)
	Notifiers      []Notifier
}

// Feed answers "what is coming up" from the stored rules.
type Feed struct {
	source    Source
	loc       *time.Location
	now       func() time.Time
	days      int
	mat       Materializer
	matToday  bool
	onMat     func(ctx context.Context, d Digest)
	notifiers []Notifier
}

// NewFeed 创建 Feed
func NewFeed(source Source, opts Options) *Feed {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.UpcomingDays <= 0 {
		opts.UpcomingDays = DefaultUpcomingDays
	}
	return &Feed{
		source:    source,
		loc:       opts.Location,
		now:       opts.Now,
		days:      opts.UpcomingDays,
		mat:       opts.Materializer,
		matToday:  opts.MaterializeDueToday && opts.Materializer != nil,
		onMat:     opts.OnMaterialized,
		notifiers: opts.Notifiers,
	}
}

// Today is the current civil date in the feed's timezone.
func (f *Feed) Today() time.Time {
	return recurrence.Today(f.now(), f.loc)
}

// Upcoming projects every recurring parent over [today, today+days].
// Parents without a date in range are left out. When one kind cannot be
// read the others are still returned, together with the joined error.
func (f *Feed) Upcoming(ctx context.Context, days int) ([]model.UpcomingSummary, error) {
	if days < 0 {
		days = 0
	}
	today := f.Today()
	end := recurrence.AddDays(today, days)

	out := []model.UpcomingSummary{}
	var errs []error
	for _, kind := range model.Kinds {
		parents, err := f.source.RecurringParents(ctx, kind)
		if err != nil {
			appLog.Error("notify: recurring fetch failed, skipping kind", err, "kind", kind)
			errs = append(errs, fmt.Errorf("list recurring %ss: %w", kind, err))
			continue
		}
		for _, p := range parents {
			rule, ok := recurrence.RuleOf(p)
			if !ok {
				continue
			}
			dates := recurrence.ProjectStrings(rule, recurrence.AnchorOf(p), today, end)
			if len(dates) == 0 {
				continue
			}
			out = append(out, model.UpcomingSummary{
				ParentID: p.ID,
				Title:    p.Title,
				Type:     kind,
				Dates:    dates,
			})
		}
	}
	return out, errors.Join(errs...)
}

// DueToday 合并今天到期的行与今天会重复但还没有对应行的父条目，
// 后者以虚拟日期返回。
func (f *Feed) DueToday(ctx context.Context) ([]model.CalendarItem, error) {
	today := f.Today()
	date := recurrence.FormatDate(today)

	out := []model.CalendarItem{}
	for _, kind := range model.Kinds {
		rows, err := f.source.ItemsDueOn(ctx, kind, date)
		if err != nil {
			return nil, fmt.Errorf("list %ss due %s: %w", kind, date, err)
		}
		occupied := make(map[uint]struct{}, len(rows))
		for _, row := range rows {
			if row.IsInstance() {
				occupied[*row.RecurringParentID] = struct{}{}
			} else {
				occupied[row.ID] = struct{}{}
			}
			out = append(out, concreteItem(row))
		}

		parents, err := f.source.RecurringParents(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("list recurring %ss: %w", kind, err)
		}
		for _, p := range parents {
			if _, taken := occupied[p.ID]; taken {
				continue
			}
			rule, ok := recurrence.RuleOf(p)
			if !ok || !recurrence.Occurs(rule, recurrence.AnchorOf(p), today) {
				continue
			}
			parentID := p.ID
			out = append(out, model.CalendarItem{
				ID:                  recurrence.VirtualID(p.ID, date),
				Title:               p.Title,
				Type:                kind,
				DueDate:             date,
				IsRecurring:         true,
				IsVirtualOccurrence: true,
				RecurringParentID:   &parentID,
				Notes:               p.Notes,
			})
		}
	}
	return out, nil
}

// Digest 是一次通知的内容
type Digest struct {
	ID           string                  `json:"id"`
	Trigger      Trigger                 `json:"trigger"`
	Date         string                  `json:"date"`
	GeneratedAt  time.Time               `json:"generated_at"`
	DueToday     []model.CalendarItem    `json:"due_today"`
	Upcoming     []model.UpcomingSummary `json:"upcoming"`
	Materialized int                     `json:"materialized"`
}

// Run builds a digest and hands it to every notifier. A notifier failure
// does not stop the others; their errors are joined.
func (f *Feed) Run(ctx context.Context, trigger Trigger) (Digest, error) {
	now := f.now()
	d := Digest{
		ID:          uuid.NewString(),
		Trigger:     trigger,
		Date:        recurrence.FormatDate(recurrence.Today(now, f.loc)),
		GeneratedAt: now,
	}

	due, err := f.DueToday(ctx)
	if err != nil {
		return d, fmt.Errorf("build digest: %w", err)
	}
	upcoming, err := f.Upcoming(ctx, f.days)
	if err != nil {
		return d, fmt.Errorf("build digest: %w", err)
	}
	d.DueToday = due
	d.Upcoming = upcoming

	if f.matToday {
		f.materializeDue(ctx, &d)
		if d.Materialized > 0 && f.onMat != nil {
			f.onMat(ctx, d)
		}
	}

	var errs []error
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, d); err != nil {
			appLog.Error("notify: notifier failed", err, "digest", d.ID, "notifier", fmt.Sprintf("%T", n))
			errs = append(errs, err)
		}
	}
	return d, errors.Join(errs...)
}

// NotifyNow 以手动方式触发 Run
func (f *Feed) NotifyNow(ctx context.Context) (Digest, error) {
	return f.Run(ctx, TriggerManual)
}

func (f *Feed) materializeDue(ctx context.Context, d *Digest) {
	for i, item := range d.DueToday {
		if !item.IsVirtualOccurrence {
			continue
		}
		row, err := f.mat.Materialize(ctx, item.Type, *item.RecurringParentID, item.DueDate)
		if err != nil {
			// 保持虚拟，下次运行再试
			appLog.Error("notify: materialize failed", err, "kind", item.Type, "id", item.ID)
			continue
		}
		d.DueToday[i] = concreteItem(row)
		d.Materialized++
	}
}

func concreteItem(row model.Item) model.CalendarItem {
	item := model.CalendarItem{
		ID:          strconv.FormatUint(uint64(row.ID), 10),
		Title:       row.Title,
		Type:        row.Kind,
		DueDate:     row.DueDate,
		Completed:   row.Completed,
		IsRecurring: row.IsInstance() || row.IsRecurringParent(),
		Notes:       row.Notes,
	}
	if row.IsInstance() {
		parentID := *row.RecurringParentID
		item.RecurringParentID = &parentID
	}
	return item
}
