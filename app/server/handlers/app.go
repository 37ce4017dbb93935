package handlers

import (
	"moving-box-tracker/app/server/boxstore"
	"moving-box-tracker/app/server/constants"
	"moving-box-tracker/app/server/ingest"
	"moving-box-tracker/app/server/jwt"
	"moving-box-tracker/app/server/middlewares"
	"moving-box-tracker/app/server/models"
	"moving-box-tracker/app/server/users"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type App struct {
	l             *zap.Logger      // 日志
	users         users.Repository // 用户存储
	boxes         *boxstore.Store  // 箱子存储
	ingest        *ingest.Ingestor // 图片归一化
	jwt           *jwt.JWT         // JWT ，用于无状态验证
	allowedDomain string           // 允许注册的邮箱域名
}

func NewApp(l *zap.Logger, usersRepo users.Repository, boxes *boxstore.Store, ig *ingest.Ingestor, j *jwt.JWT, allowedDomain string) *App {
	return &App{
		l:             l,
		users:         usersRepo,
		boxes:         boxes,
		ingest:        ig,
		jwt:           j,
		allowedDomain: allowedDomain,
	}
}

// RegisterRoutes 绑定所有 API 路由， auth 为 Bearer 认证中间件
func (a *App) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc) {
	api := e.Group("/api")

	api.GET("/healthz", a.Healthcheck)

	api.POST("/auth/register", a.AuthRegister)
	api.POST("/auth/login", a.AuthLogin)

	boxes := api.Group("/boxes", auth)
	boxes.GET("", a.BoxList)
	boxes.POST("", a.BoxCreate, middlewares.RequireRole(models.RoleContributor))
	boxes.PUT("/:id", a.BoxUpdate, middlewares.RequireRole(models.RoleContributor))
	boxes.DELETE("/:id", a.BoxDelete, middlewares.RequireRole(models.RoleContributor))

	api.POST("/upload", a.Upload, auth, middleware.BodyLimit(constants.UploadBodyLimit))
}
