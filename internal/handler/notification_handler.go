package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxUpcomingDays = 366

// GetUpcoming 返回未来若干天内每个重复条目的日期
func (a *API) GetUpcoming(c *gin.Context) {
	days := a.notifyDays
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxUpcomingDays {
			respondError(c, http.StatusBadRequest, "days 必须是 0 到 366 之间的整数")
			return
		}
		days = n
	}

	upcoming, err := a.feed.Upcoming(c.Request.Context(), days)
	if err != nil {
		respondServiceError(c, err, "获取即将到来的重复条目失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "upcoming": upcoming})
}

// GetDueToday 返回今天到期的条目，包括尚未实例化的重复日期
func (a *API) GetDueToday(c *gin.Context) {
	items, err := a.feed.DueToday(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "获取今日条目失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// NotifyNow 立即生成一次通知摘要
func (a *API) NotifyNow(c *gin.Context) {
	ctx := c.Request.Context()
	digest, err := a.feed.NotifyNow(ctx)
	if err != nil && digest.DueToday == nil {
		respondServiceError(c, err, "生成通知摘要失败")
		return
	}
	body := gin.H{"digest": digest}
	if err != nil {
		// 摘要已生成，只是部分通知渠道失败
		body["warning"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// GetLatestDigest 返回最近一次通知摘要
func (a *API) GetLatestDigest(c *gin.Context) {
	digest, ok := a.recorder.Latest().Get()
	if !ok {
		respondError(c, http.StatusNotFound, "暂无通知摘要")
		return
	}
	c.JSON(http.StatusOK, gin.H{"digest": digest})
}
