package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"moving-box-tracker/app/server/boxstore"
	"moving-box-tracker/app/server/handlers"
	"moving-box-tracker/app/server/ingest"
	"moving-box-tracker/app/server/inits"
	"moving-box-tracker/app/server/jwt"
	"moving-box-tracker/app/server/middlewares"
	"moving-box-tracker/app/server/users"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// 初始化配置
	cfg, err := inits.Config()
	if err != nil {
		log.Fatal(fmt.Errorf("error loading config: %w", err))
	}

	// 初始化日志
	l, err := inits.Logger(!cfg.System.IsProd)
	if err != nil {
		log.Fatal(fmt.Errorf("error initializing logger: %w", err))
	}

	// 切换日志系统
	l.Debug("logger initialized")

	// 初始化数据库连接
	db, err := inits.DB(cfg.System.DBConnectionString, cfg.Security.AllowedEmailDomain)
	if err != nil {
		l.Fatal("error initializing DB connection", zap.Error(err))
	}

	// 初始化 redis 连接（可选）
	rdb, err := inits.Redis(cfg.System.RedisConnectionString)
	if err != nil {
		l.Fatal("error initializing Redis connection", zap.Error(err))
	}

	// 初始化 JWT
	j, err := jwt.New(cfg.Security.SignatureSecretKey)
	if err != nil {
		l.Fatal("error initializing JWT", zap.Error(err))
	}

	// 初始化箱子存储
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DataFile), 0o755); err != nil {
		l.Fatal("error creating data dir", zap.Error(err))
	}
	boxes, err := boxstore.Load(cfg.Storage.DataFile)
	if err != nil {
		l.Fatal("error loading box data", zap.Error(err))
	}

	// 初始化图片归一化
	ig, err := ingest.New(cfg.Storage.UploadsDir, l)
	if err != nil {
		l.Fatal("error initializing image ingestion", zap.Error(err))
	}

	// 准备 handler app
	usersRepo := users.NewGormRepository(db)
	handlerApp := handlers.NewApp(l, usersRepo, boxes, ig, j, cfg.Security.AllowedEmailDomain)

	// 准备 echo 服务
	e := echo.New()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			l.Info("request",
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
			)

			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// 绑定 echo 服务
	handlerApp.RegisterRoutes(e, middlewares.Auth(j, usersRepo, rdb, l))

	// 静态提供归一化后的图片
	e.Static("/uploads", cfg.Storage.UploadsDir)

	// 启动 echo 服务
	if err := e.Start(cfg.System.Listen); err != nil {
		l.Fatal("shutting down the server", zap.Error(err))
	}
}
