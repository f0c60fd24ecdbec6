package notify

import (
	"context"
	"sync"

	"github.com/samber/mo"

	appLog "github.com/tasknest/internal/log"
)

// Notifier delivers a digest somewhere.
type Notifier interface {
	Notify(ctx context.Context, d Digest) error
}

// LogNotifier 每份摘要写一行日志，每个到期条目再写一行
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, d Digest) error {
	appLog.Info("notify: digest",
		"digest", d.ID,
		"trigger", d.Trigger,
		"date", d.Date,
		"due_today", len(d.DueToday),
		"upcoming", len(d.Upcoming),
		"materialized", d.Materialized,
	)
	for _, item := range d.DueToday {
		appLog.Info("notify: due today", "digest", d.ID, "type", item.Type, "id", item.ID, "title", item.Title, "completed", item.Completed)
	}
	return nil
}

// Recorder 保存最近一份摘要供接口读取
type Recorder struct {
	mu     sync.RWMutex
	latest mo.Option[Digest]
}

func NewRecorder() *Recorder {
	return &Recorder{latest: mo.None[Digest]()}
}

func (r *Recorder) Notify(_ context.Context, d Digest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = mo.Some(d)
	return nil
}

// Latest returns the last recorded digest, if any.
func (r *Recorder) Latest() mo.Option[Digest] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}
