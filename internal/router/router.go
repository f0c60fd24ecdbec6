package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/tasknest/internal/handler"
	"github.com/tasknest/internal/model"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions("tasknest_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/login", api.Login)
	r.POST("/logout", handler.Logout)

	// 需要认证的 API 路由
	auth := r.Group("/api")
	auth.Use(handler.AuthRequired())
	{
		cal := auth.Group("/calendar")
		{
			cal.POST("/refresh", api.RefreshCalendar)
			cal.GET("/items", api.GetCalendarItems)
			cal.GET("/count", api.GetCalendarCount)
			cal.GET("/month", api.GetCalendarMonth)
		}
		auth.GET("/calendar.ics", api.ExportCalendarICS)

		occ := auth.Group("/occurrences")
		{
			occ.POST("/materialize", api.MaterializeOccurrence)
			occ.POST("/complete", api.CompleteOccurrence)
		}

		notifications := auth.Group("/notifications")
		{
			notifications.GET("/upcoming", api.GetUpcoming)
			notifications.GET("/today", api.GetDueToday)
			notifications.POST("/notify-now", api.NotifyNow)
			notifications.GET("/latest", api.GetLatestDigest)
		}

		registerItemRoutes(auth.Group("/tasks"), api, model.KindTask)
		registerItemRoutes(auth.Group("/todos"), api, model.KindTodo)
	}

	return r
}

func registerItemRoutes(g *gin.RouterGroup, api *handler.API, kind model.Kind) {
	g.GET("", api.ListItems(kind))
	g.POST("", api.CreateItem(kind))
	g.GET("/:id", api.GetItem(kind))
	g.DELETE("/:id", api.DeleteItem(kind))
	g.PUT("/:id/complete", api.SetItemCompleted(kind))
}
