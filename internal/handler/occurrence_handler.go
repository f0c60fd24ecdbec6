package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tasknest/internal/model"
)

type occurrencePayload struct {
	Type      string `json:"type"`
	ParentID  uint   `json:"parent_id"`
	Date      string `json:"date"`
	VirtualID string `json:"virtual_id"`
	Completed *bool  `json:"completed"`
}

// MaterializeOccurrence 把虚拟日期落地为实例，已存在时返回已有实例
func (a *API) MaterializeOccurrence(c *gin.Context) {
	var payload occurrencePayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}
	kind, ok := parseKind(c, payload.Type)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		item model.Item
		err  error
	)
	if virtualID := strings.TrimSpace(payload.VirtualID); virtualID != "" {
		item, err = a.occurrences.MaterializeVirtual(ctx, kind, virtualID)
	} else {
		if payload.ParentID == 0 {
			respondError(c, http.StatusBadRequest, "缺少 parent_id 或 virtual_id")
			return
		}
		item, err = a.occurrences.Materialize(ctx, kind, payload.ParentID, payload.Date)
	}
	if err != nil {
		respondServiceError(c, err, "实例化失败")
		return
	}

	a.refreshCalendar(ctx)
	c.JSON(http.StatusOK, gin.H{"item": itemToPayload(item)})
}

// CompleteOccurrence 标记某次重复的完成状态，必要时先实例化
func (a *API) CompleteOccurrence(c *gin.Context) {
	var payload occurrencePayload
	if !bindJSON(c, &payload, "请求格式错误") {
		return
	}
	kind, ok := parseKind(c, payload.Type)
	if !ok {
		return
	}
	if payload.ParentID == 0 {
		respondError(c, http.StatusBadRequest, "缺少 parent_id")
		return
	}
	completed := true
	if payload.Completed != nil {
		completed = *payload.Completed
	}

	ctx := c.Request.Context()
	item, err := a.occurrences.CompleteOccurrence(ctx, kind, payload.ParentID, payload.Date, completed)
	if err != nil {
		respondServiceError(c, err, "更新完成状态失败")
		return
	}

	a.refreshCalendar(ctx)
	c.JSON(http.StatusOK, gin.H{"item": itemToPayload(item)})
}
