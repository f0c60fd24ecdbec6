package recurrence

import (
	"slices"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
)

// MaxOccurrences 是单次投影的上限。窗口通常只有几天到几周，
// 触顶说明调用方传入了不合理的范围。
const MaxOccurrences = 5000

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Project returns the ascending, de-duplicated civil dates on which rule
// fires inside [windowStart, windowEnd], never after rule.EndDate and never
// before anchor. The anchor itself is an occurrence when it is in range.
// Unknown patterns project nothing.
func Project(rule model.RecurrenceRule, anchor, windowStart, windowEnd time.Time) []time.Time {
	windowStart, windowEnd = Civil(windowStart), Civil(windowEnd)
	if windowEnd.Before(windowStart) {
		return nil
	}
	if anchor.IsZero() {
		anchor = windowStart
	}
	anchor = Civil(anchor)

	end := windowEnd
	if !rule.EndDate.IsZero() {
		if e := Civil(rule.EndDate); e.Before(end) {
			end = e
		}
	}
	start := windowStart
	if anchor.After(start) {
		start = anchor
	}
	if end.Before(start) {
		return nil
	}

	opt, ok := ruleOptions(rule.Pattern, rule.Config, anchor)
	if !ok {
		return nil
	}
	opt.Dtstart = fastForward(rule.Pattern, anchor, start)

	r, err := rrule.NewRRule(opt)
	if err != nil {
		// 配置通过了校验但 rrule 仍然拒绝，按锚点重复，不丢弃条目
		appLog.Error("recurrence: rrule rejected options, using anchor defaults", err, "pattern", rule.Pattern)
		opt, _ = ruleOptions(rule.Pattern, model.RecurrenceConfig{}, anchor)
		opt.Dtstart = fastForward(rule.Pattern, anchor, start)
		if r, err = rrule.NewRRule(opt); err != nil {
			appLog.Error("recurrence: anchor defaults rejected", err, "pattern", rule.Pattern)
			return nil
		}
	}

	dates := r.Between(start, end, true)
	if !anchor.Before(start) {
		dates = append(dates, anchor)
	}

	for i := range dates {
		dates[i] = Civil(dates[i])
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })
	dates = slices.CompactFunc(dates, func(a, b time.Time) bool { return a.Equal(b) })

	if len(dates) > MaxOccurrences {
		appLog.Warn("recurrence: projection truncated", "pattern", rule.Pattern, "cap", MaxOccurrences,
			"window_start", FormatDate(windowStart), "window_end", FormatDate(windowEnd))
		dates = dates[:MaxOccurrences]
	}
	return dates
}

// ProjectStrings 与 Project 相同，结果格式化为 YYYY-MM-DD
func ProjectStrings(rule model.RecurrenceRule, anchor, windowStart, windowEnd time.Time) []string {
	dates := Project(rule, anchor, windowStart, windowEnd)
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, FormatDate(d))
	}
	return out
}

// Occurs 判断 date 是否为规则的一次重复
func Occurs(rule model.RecurrenceRule, anchor, date time.Time) bool {
	return len(Project(rule, anchor, date, date)) == 1
}

func ruleOptions(pattern model.Pattern, cfg model.RecurrenceConfig, anchor time.Time) (rrule.ROption, bool) {
	opt := rrule.ROption{Dtstart: anchor, Interval: 1}

	switch pattern {
	case model.PatternDaily:
		opt.Freq = rrule.DAILY
	case model.PatternWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = configuredWeekdays(cfg).OrElse([]rrule.Weekday{rruleWeekdays[anchor.Weekday()]})
	case model.PatternMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{configuredDayOfMonth(cfg).OrElse(anchor.Day())}
	case model.PatternYearly:
		opt.Freq = rrule.YEARLY
		month, day := configuredMonthDay(cfg, anchor)
		opt.Bymonth = []int{month}
		opt.Bymonthday = []int{day}
	default:
		return opt, false
	}

	return opt, true
}

// configuredWeekdays 返回合法的星期配置。缺失和空数组都视为未配置，
// 回退到锚点所在的星期
func configuredWeekdays(cfg model.RecurrenceConfig) mo.Option[[]rrule.Weekday] {
	seen := make(map[int]bool, len(cfg.WeekDays))
	days := make([]rrule.Weekday, 0, len(cfg.WeekDays))
	for _, d := range cfg.WeekDays {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, rruleWeekdays[d])
	}
	if len(days) == 0 {
		return mo.None[[]rrule.Weekday]()
	}
	return mo.Some(days)
}

func configuredDayOfMonth(cfg model.RecurrenceConfig) mo.Option[int] {
	if cfg.DayOfMonth < 1 || cfg.DayOfMonth > 31 {
		return mo.None[int]()
	}
	return mo.Some(cfg.DayOfMonth)
}

// configuredMonthDay resolves the yearly (month, day). Each part falls back
// to the anchor independently; a combination that exists in no year
// (e.g. April 31) falls back to the anchor entirely.
func configuredMonthDay(cfg model.RecurrenceConfig, anchor time.Time) (int, int) {
	month := int(anchor.Month())
	if cfg.Month >= 1 && cfg.Month <= 12 {
		month = cfg.Month
	}
	day := anchor.Day()
	if cfg.Day >= 1 && cfg.Day <= 31 {
		day = cfg.Day
	}
	if day > maxDaysIn(time.Month(month)) {
		return int(anchor.Month()), anchor.Day()
	}
	return month, day
}

func maxDaysIn(m time.Month) int {
	// 2000 is a leap year, so February reports 29.
	return time.Date(2000, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// fastForward moves a daily or weekly dtstart to the last aligned date not
// after start, so expansion does not walk every period since the anchor.
func fastForward(pattern model.Pattern, anchor, start time.Time) time.Time {
	if !anchor.Before(start) {
		return anchor
	}
	days := int(start.Sub(anchor).Hours() / 24)
	switch pattern {
	case model.PatternDaily:
		return anchor.AddDate(0, 0, days)
	case model.PatternWeekly:
		return anchor.AddDate(0, 0, days/7*7)
	default:
		return anchor
	}
}
