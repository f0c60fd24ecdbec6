package handler

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tasknest/internal/calendar"
	"github.com/tasknest/internal/notify"
	"github.com/tasknest/internal/service"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	store       *service.Store
	items       *service.ItemService
	occurrences *service.OccurrenceService
	calendar    *calendar.Aggregator
	feed        *notify.Feed
	recorder    *notify.Recorder
	loc         *time.Location
	now         func() time.Time
	notifyDays  int
}

// Options 描述构造 API 时可调整的运行参数，零值使用默认值
type Options struct {
	Location            *time.Location
	Now                 func() time.Time
	LookaheadDays       int
	NotifyDays          int
	MaterializeDueToday bool
	// Notifiers 追加在内置的日志与最近摘要记录之后
	Notifiers []notify.Notifier
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyDays <= 0 {
		opts.NotifyDays = notify.DefaultUpcomingDays
	}

	store := service.NewStore(gdb)
	occurrences := service.NewOccurrenceService(store)
	a := &API{
		db:          gdb,
		store:       store,
		items:       service.NewItemService(store),
		occurrences: occurrences,
		recorder:    notify.NewRecorder(),
		loc:         opts.Location,
		now:         opts.Now,
		notifyDays:  opts.NotifyDays,
	}

	notifiers := append([]notify.Notifier{notify.LogNotifier{}, a.recorder}, opts.Notifiers...)
	a.feed = notify.NewFeed(store, notify.Options{
		Location:            opts.Location,
		Now:                 opts.Now,
		UpcomingDays:        opts.NotifyDays,
		MaterializeDueToday: opts.MaterializeDueToday,
		Materializer:        occurrences,
		// 手动与定时摘要落地实例后都要重新聚合
		OnMaterialized: func(ctx context.Context, _ notify.Digest) { a.refreshCalendar(ctx) },
		Notifiers:      notifiers,
	})
	a.calendar = calendar.NewAggregator(store, a.feed, calendar.Options{
		LookaheadDays: opts.LookaheadDays,
		Location:      opts.Location,
		Now:           opts.Now,
	})
	return a
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Calendar exposes the aggregator so the process can warm it up.
func (a *API) Calendar() *calendar.Aggregator {
	return a.calendar
}

// Feed exposes the notification feed for the scheduler.
func (a *API) Feed() *notify.Feed {
	return a.feed
}
