package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/handler"
	"github.com/TIANLI0/CutoutKit/middleware"
	"github.com/TIANLI0/CutoutKit/service"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.New()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode, cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting CutoutKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("remover", cfg.Remover.Backend))

	// 初始化Redis（可选的二级缓存）
	var store service.CutoutStore
	if cfg.Redis.Enabled {
		redisService := service.NewRedisService(&cfg.Redis)
		if err := redisService.Ping(context.Background()); err != nil {
			utils.Logger.Warn("redis connection failed, cutout cache is memory only", zap.Error(err))
		} else {
			utils.Logger.Info("redis connected successfully")
			store = redisService
		}
		defer redisService.Close()
	}

	remover, err := newRemover(cfg, store)
	if err != nil {
		utils.Logger.Fatal("failed to initialize remover", zap.Error(err))
	}

	sessions := service.NewSessionStore(&cfg.Session)
	if err := sessions.Start(cfg.Session.SweepSpec); err != nil {
		utils.Logger.Fatal("failed to start session sweeper", zap.Error(err))
	}
	defer sessions.Stop()

	editor := service.NewEditorService(service.NewPipeline(&cfg.Pipeline, remover), sessions)
	sessionHandler := handler.NewSessionHandler(cfg, editor)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"version":  Version,
			"sessions": sessions.Len(),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	sessionHandler.Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
}

// newRemover 按配置选择抠图后端，并包上按内容缓存
func newRemover(cfg *config.Config, store service.CutoutStore) (service.Remover, error) {
	var backend service.Remover
	switch cfg.Remover.Backend {
	case "grabcut":
		backend = service.NewGrabCutRemover(&cfg.GrabCut)
	default:
		backend = service.NewHTTPRemover(&cfg.Remover)
	}
	return service.NewCachedRemover(backend, cfg.Cache.MaxEntries, store)
}
