package calendar

import (
	"cmp"
	"slices"
	"time"

	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
)

// MaxDots 是月视图每天最多绘制的圆点数
const MaxDots = 3

// DayCount is the month widget view of one date.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Dots  int    `json:"dots"`
}

// Index is an immutable date-keyed snapshot produced by one aggregation
// pass. Readers never mutate it; a new pass replaces it wholesale.
type Index struct {
	PassID      string
	GeneratedAt time.Time
	// Today and WindowEnd bound the virtual occurrences of this pass.
	Today     string
	WindowEnd string
	// FailedSources names the sources omitted from this pass.
	FailedSources []string

	byDate map[string][]model.CalendarItem
}

func emptyIndex() *Index {
	return &Index{byDate: map[string][]model.CalendarItem{}}
}

// ItemsForDate 返回某天条目的副本
func (x *Index) ItemsForDate(date string) []model.CalendarItem {
	if x == nil {
		return []model.CalendarItem{}
	}
	return slices.Clone(x.byDate[date])
}

// CountForDate 统计某天未完成的条目，已完成的仍在列表中但不计数
func (x *Index) CountForDate(date string) int {
	if x == nil {
		return 0
	}
	n := 0
	for _, item := range x.byDate[date] {
		if !item.Completed {
			n++
		}
	}
	return n
}

// DotsForDate 是截断到 MaxDots 的 CountForDate
func (x *Index) DotsForDate(date string) int {
	return min(x.CountForDate(date), MaxDots)
}

// CountsBetween returns one DayCount per day of [start, end].
func (x *Index) CountsBetween(start, end time.Time) []DayCount {
	start, end = recurrence.Civil(start), recurrence.Civil(end)
	if end.Before(start) {
		return []DayCount{}
	}
	out := make([]DayCount, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := recurrence.FormatDate(d)
		out = append(out, DayCount{Date: key, Count: x.CountForDate(key), Dots: x.DotsForDate(key)})
	}
	return out
}

// Dates 按升序列出至少有一个条目的日期
func (x *Index) Dates() []string {
	if x == nil {
		return []string{}
	}
	dates := make([]string, 0, len(x.byDate))
	for d := range x.byDate {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	return dates
}

// Items flattens the index in date order.
func (x *Index) Items() []model.CalendarItem {
	out := make([]model.CalendarItem, 0, x.Len())
	for _, d := range x.Dates() {
		out = append(out, x.byDate[d]...)
	}
	return out
}

// Len 返回条目总数
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	n := 0
	for _, items := range x.byDate {
		n += len(items)
	}
	return n
}

func sortDay(items []model.CalendarItem) {
	slices.SortStableFunc(items, func(a, b model.CalendarItem) int {
		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
