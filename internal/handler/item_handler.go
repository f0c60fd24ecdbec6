package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
	"github.com/tasknest/internal/service"
)

type itemPayload struct {
	Title             string                  `json:"title"`
	Notes             string                  `json:"notes"`
	ProjectID         *uint                   `json:"project_id"`
	Priority          string                  `json:"priority"`
	DueDate           string                  `json:"due_date"`
	RecurrencePattern string                  `json:"recurrence_pattern"`
	RecurrenceConfig  *model.RecurrenceConfig `json:"recurrence_config"`
	RecurrenceEndDate string                  `json:"recurrence_end_date"`
}

type completePayload struct {
	Completed *bool `json:"completed"`
}

// ListItems 返回某一类条目，?completed=true/false 可过滤
func (a *API) ListItems(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var completed *bool
		if raw := strings.TrimSpace(c.Query("completed")); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				respondError(c, http.StatusBadRequest, "completed 参数无效")
				return
			}
			completed = &v
		}

		items, err := a.items.List(c.Request.Context(), kind, completed)
		if err != nil {
			respondServiceError(c, err, "获取列表失败")
			return
		}

		payload := make([]gin.H, 0, len(items))
		for _, item := range items {
			payload = append(payload, itemToPayload(item))
		}
		c.JSON(http.StatusOK, gin.H{"items": payload})
	}
}

// GetItem 返回单个条目
func (a *API) GetItem(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的ID")
			return
		}
		item, err := a.items.Get(c.Request.Context(), kind, id)
		if err != nil {
			respondServiceError(c, err, "获取条目失败")
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": itemToPayload(item)})
	}
}

// CreateItem 新建条目
func (a *API) CreateItem(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload itemPayload
		if !bindJSON(c, &payload, "请求格式错误") {
			return
		}

		input := service.ItemInput{
			Title:             payload.Title,
			Notes:             payload.Notes,
			ProjectID:         payload.ProjectID,
			Priority:          payload.Priority,
			DueDate:           payload.DueDate,
			RecurrencePattern: payload.RecurrencePattern,
			RecurrenceEndDate: payload.RecurrenceEndDate,
		}
		if payload.RecurrenceConfig != nil {
			input.RecurrenceConfig = recurrence.EncodeConfig(*payload.RecurrenceConfig)
		}

		ctx := c.Request.Context()
		item, err := a.items.Create(ctx, kind, input)
		if err != nil {
			respondServiceError(c, err, "创建条目失败")
			return
		}

		a.refreshCalendar(ctx)
		c.JSON(http.StatusCreated, gin.H{"item": itemToPayload(item)})
	}
}

// SetItemCompleted 更新完成状态，缺省 completed 视为 true
func (a *API) SetItemCompleted(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的ID")
			return
		}

		var payload completePayload
		if c.Request.ContentLength > 0 && !bindJSON(c, &payload, "请求格式错误") {
			return
		}
		completed := true
		if payload.Completed != nil {
			completed = *payload.Completed
		}

		ctx := c.Request.Context()
		item, err := a.items.SetCompleted(ctx, kind, id, completed)
		if err != nil {
			respondServiceError(c, err, "更新完成状态失败")
			return
		}

		a.refreshCalendar(ctx)
		c.JSON(http.StatusOK, gin.H{"item": itemToPayload(item)})
	}
}

// DeleteItem 删除条目，父条目的实例一并删除
func (a *API) DeleteItem(kind model.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUintParam(c, "id")
		if err != nil {
			respondError(c, http.StatusBadRequest, "无效的ID")
			return
		}

		ctx := c.Request.Context()
		if err := a.items.Delete(ctx, kind, id); err != nil {
			respondServiceError(c, err, "删除条目失败")
			return
		}

		a.refreshCalendar(ctx)
		c.JSON(http.StatusOK, gin.H{"message": "删除成功"})
	}
}

func itemToPayload(item model.Item) gin.H {
	payload := gin.H{
		"id":                  item.ID,
		"type":                item.Kind,
		"title":               item.Title,
		"notes":               item.Notes,
		"notes_html":          renderNotes(item.Notes),
		"due_date":            item.DueDate,
		"completed":           item.Completed,
		"recurrence_pattern":  item.RawPattern,
		"recurrence_end_date": item.RecurrenceEndDate,
		"recurring_parent_id": item.RecurringParentID,
		"is_recurring":        item.IsRecurringParent() || item.IsInstance(),
		"created_at":          item.CreatedAt.Format(time.RFC3339),
	}
	if item.RawConfig != "" {
		payload["recurrence_config"] = recurrence.ParseConfig(item.RawConfig)
	}
	if item.Kind == model.KindTask {
		payload["project_id"] = item.ProjectID
		payload["priority"] = item.Priority
	}
	return payload
}
