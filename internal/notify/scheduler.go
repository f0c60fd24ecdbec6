package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/poll"
)

// DefaultSchedule 表示每天早上 8 点生成摘要
const DefaultSchedule = "0 8 * * *"

// Scheduler runs Feed.Run on a cron schedule, retrying failed runs.
type Scheduler struct {
	feed   *Feed
	cron   *cron.Cron
	policy poll.Policy
	sleep  poll.Sleeper

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec (standard five-field cron) in loc.
func NewScheduler(feed *Feed, spec string, loc *time.Location, policy poll.Policy) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		feed:   feed,
		cron:   cron.New(cron.WithLocation(loc)),
		policy: policy,
		sleep:  poll.SleepContext,
		ctx:    ctx,
		cancel: cancel,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.ctx) }); err != nil {
		cancel()
		return nil, fmt.Errorf("parse notify schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce 执行一次定时摘要，失败按策略重试
func (s *Scheduler) RunOnce(ctx context.Context) poll.Result {
	var digestID string
	res := poll.Retry(ctx, s.policy, s.sleep, func(ctx context.Context) error {
		d, err := s.feed.Run(ctx, TriggerScheduled)
		digestID = d.ID
		return err
	})
	switch res.State {
	case poll.Succeeded:
		appLog.Info("notify: scheduled run finished", "digest", digestID, "attempts", res.Attempts)
	case poll.Canceled:
		appLog.Warn("notify: scheduled run canceled", "attempts", res.Attempts)
	default:
		appLog.Error("notify: scheduled run failed", res.Err, "attempts", res.Attempts)
	}
	return res
}

// Start begins firing on schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度，取消正在执行的任务并等待其结束
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
