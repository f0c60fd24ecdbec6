package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tasknest/internal/calendar"
	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
)

type calendarItemPayload struct {
	model.CalendarItem
	NotesHTML string `json:"notes_html,omitempty"`
}

// snapshot 返回当前日历索引；首次读取或跨天后先重新聚合
func (a *API) snapshot(ctx context.Context) *calendar.Index {
	idx, err := a.calendar.Current(ctx)
	if err != nil {
		appLog.Warn("handler: calendar pass before read failed", "err", err)
	}
	return idx
}

// refreshCalendar 在写操作之后重建索引，失败只记录日志
func (a *API) refreshCalendar(ctx context.Context) {
	if _, err := a.calendar.Refresh(ctx); err != nil {
		appLog.Warn("handler: calendar refresh after write failed", "err", err)
	}
}

// RefreshCalendar 重新聚合日历并返回窗口内每天的数量
func (a *API) RefreshCalendar(c *gin.Context) {
	idx, err := a.calendar.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "日历刷新已取消")
		return
	}

	start, _ := recurrence.ParseDate(idx.Today)
	end, _ := recurrence.ParseDate(idx.WindowEnd)

	failed := idx.FailedSources
	if failed == nil {
		failed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"pass_id":        idx.PassID,
		"generated_at":   idx.GeneratedAt.Format(time.RFC3339),
		"today":          idx.Today,
		"window_end":     idx.WindowEnd,
		"total":          idx.Len(),
		"failed_sources": failed,
		"days":           idx.CountsBetween(start, end),
	})
}

// GetCalendarItems 返回某天的全部条目，已完成的也包含在内
func (a *API) GetCalendarItems(c *gin.Context) {
	date, ok := a.parseDateQuery(c, "date")
	if !ok {
		return
	}

	idx := a.snapshot(c.Request.Context())
	items := idx.ItemsForDate(date)
	payload := make([]calendarItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, calendarItemPayload{CalendarItem: item, NotesHTML: renderNotes(item.Notes)})
	}

	c.JSON(http.StatusOK, gin.H{
		"date":  date,
		"items": payload,
		"count": idx.CountForDate(date),
	})
}

// GetCalendarCount 返回某天未完成条目数及月视图圆点数
func (a *API) GetCalendarCount(c *gin.Context) {
	date, ok := a.parseDateQuery(c, "date")
	if !ok {
		return
	}

	idx := a.snapshot(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"date":  date,
		"count": idx.CountForDate(date),
		"dots":  idx.DotsForDate(date),
	})
}

// GetCalendarMonth 返回某月每一天的数量，month 形如 2026-10，缺省为本月
func (a *API) GetCalendarMonth(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("month"))
	var first time.Time
	if raw == "" {
		today := recurrence.Today(a.now(), a.loc)
		first = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "月份格式应为 YYYY-MM")
			return
		}
		first = parsed
	}
	last := first.AddDate(0, 1, -1)

	idx := a.snapshot(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"month": first.Format("2006-01"),
		"days":  idx.CountsBetween(first, last),
	})
}

// ExportCalendarICS 以 iCalendar 格式导出当前索引
func (a *API) ExportCalendarICS(c *gin.Context) {
	idx := a.snapshot(c.Request.Context())

	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="tasknest.ics"`)
	c.Status(http.StatusOK)
	if err := calendar.WriteICS(c.Writer, idx, a.now()); err != nil {
		appLog.Error("handler: ics export failed", err)
	}
}
