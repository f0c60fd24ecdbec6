package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appLog "github.com/tasknest/internal/log"
	"github.com/tasknest/internal/model"
	"github.com/tasknest/internal/recurrence"
	"github.com/tasknest/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// parseDateQuery 读取 YYYY-MM-DD 查询参数，缺省时返回今天
func (a *API) parseDateQuery(c *gin.Context, key string) (string, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return recurrence.FormatDate(recurrence.Today(a.now(), a.loc)), true
	}
	d, err := recurrence.ParseDate(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "日期格式应为 YYYY-MM-DD")
		return "", false
	}
	return recurrence.FormatDate(d), true
}

func parseKind(c *gin.Context, raw string) (model.Kind, bool) {
	kind, ok := model.ParseKind(raw)
	if !ok {
		respondError(c, http.StatusBadRequest, "类型必须是 task 或 todo")
		return "", false
	}
	return kind, true
}

// respondServiceError 把 service 层的哨兵错误映射为 HTTP 状态码
func respondServiceError(c *gin.Context, err error, fallback string) {
	var (
		status  int
		message string
	)
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		status, message = http.StatusNotFound, "条目不存在"
	case errors.Is(err, service.ErrInvalidKind):
		status, message = http.StatusBadRequest, "类型必须是 task 或 todo"
	case errors.Is(err, service.ErrInvalidDate):
		status, message = http.StatusBadRequest, "日期格式应为 YYYY-MM-DD"
	case errors.Is(err, service.ErrInvalidRecurrence):
		status, message = http.StatusBadRequest, "重复规则配置无效"
	case errors.Is(err, service.ErrInvalidInput):
		status, message = http.StatusBadRequest, "请求参数无效"
	case errors.Is(err, service.ErrNotRecurring):
		status, message = http.StatusUnprocessableEntity, "该条目不是重复条目"
	case errors.Is(err, service.ErrNotAnOccurrence):
		status, message = http.StatusUnprocessableEntity, "该日期不在重复规则内"
	default:
		appLog.Error("handler: request failed", err, "path", c.FullPath())
		respondError(c, http.StatusInternalServerError, fallback)
		return
	}
	c.JSON(status, gin.H{"error": message, "detail": err.Error()})
}
