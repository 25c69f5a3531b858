package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cfaquiz_backend/internal/config"
	"cfaquiz_backend/internal/controller"
	"cfaquiz_backend/internal/repository"
	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"
	"cfaquiz_backend/pkg/database"
	"cfaquiz_backend/pkg/inbox"
	"cfaquiz_backend/pkg/logger"
	"cfaquiz_backend/pkg/monitoring"
	"cfaquiz_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	Services *Services

	ctx    context.Context
	cancel context.CancelFunc
	tracer *sdktrace.TracerProvider
}

type repositories struct {
	catalog  *repository.CatalogRepository
	history  *repository.HistoryRepository
	sessions *repository.SessionRepository
	attempts *repository.AttemptRepository
	reports  *repository.ReportRepository
	imports  *repository.ImportReportRepository
}

// Services 命令行模式（-import / -validate）直接使用
type Services struct {
	Storage  *service.StorageService
	Assets   *service.AssetService
	Catalog  *service.CatalogService
	Import   *service.ImportService
	History  *service.HistoryService
	Sessions *service.QuizSessionService
	Reports  *service.QuestionReportService
}

type controllers struct {
	health  *controller.HealthController
	catalog *controller.CatalogController
	imports *controller.ImportController
	quiz    *controller.QuizController
	history *controller.HistoryController
	reports *controller.ReportController
}

// openBlobStore 按 catalog.backend 选择题库/历史/会话的持久化后端
func (a *App) openBlobStore(cfg *config.Config) (repository.BlobStore, error) {
	switch cfg.Catalog.Backend {
	case util.BackendFile, "":
		return repository.NewFileBlobStore(cfg.AppDataDir()), nil
	case util.BackendDatabase:
		db, err := database.InitDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.DB = db
		return repository.NewGormBlobStore(db), nil
	case util.BackendRedis:
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.Redis = rdb
		return repository.NewRedisBlobStore(rdb, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown catalog backend %q", cfg.Catalog.Backend)
	}
}

func (a *App) initRepositories(store repository.BlobStore, cfg *config.Config) *repositories {
	return &repositories{
		catalog:  repository.NewCatalogRepository(store, cfg.Catalog.BundledQuestions, cfg.Catalog.BundledFormulas),
		history:  repository.NewHistoryRepository(store),
		sessions: repository.NewSessionRepository(store),
		attempts: repository.NewAttemptRepository(store),
		reports:  repository.NewReportRepository(store),
		imports:  repository.NewImportReportRepository(store),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *Services {
	s := &Services{}

	s.Storage = service.NewStorageService(cfg)
	s.Assets = service.NewAssetService(s.Storage)
	s.Catalog = service.NewCatalogService(repos.catalog)
	s.Import = service.NewImportService(
		repos.catalog,
		repos.imports,
		s.Assets,
		service.ExplanationPolicy(cfg.Import.ExplanationPolicy),
		cfg.Import.MaxChoices,
	)
	s.History = service.NewHistoryService(repos.history, repos.attempts)
	s.Sessions = service.NewQuizSessionService(
		repos.catalog,
		repos.sessions,
		s.History,
		service.NewQuizEngine(),
		cfg.Quiz.SnapshotEvery,
	)
	s.Reports = service.NewQuestionReportService(repos.reports, repos.catalog)

	return s
}

func (a *App) initControllers(s *Services, cfg *config.Config) *controllers {
	return &controllers{
		health:  controller.NewHealthController(s.Catalog, a.DB, a.Redis),
		catalog: controller.NewCatalogController(s.Catalog),
		imports: controller.NewImportController(s.Import),
		quiz:    controller.NewQuizController(s.Sessions, cfg.Quiz.DefaultQuestions),
		history: controller.NewHistoryController(s.History),
		reports: controller.NewReportController(s.Reports),
	}
}

// NewApp 初始化日志、持久化后端和全部服务；HTTP 路由同时建好，但不启动后台任务
func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, ctx: ctx, cancel: cancel}

	store, err := app.openBlobStore(cfg)
	if err != nil {
		cancel()
		return nil, err
	}
	logger.Log.Info("Catalog backend ready",
		zap.String("backend", cfg.Catalog.Backend),
		zap.String("root", cfg.Catalog.Root))

	repos := app.initRepositories(store, cfg)
	app.Services = app.initServices(repos, cfg)
	controllers := app.initControllers(app.Services, cfg)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("cfaquiz-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app, nil
}

// startBackgroundTasks 恢复未完成的测验，启动计时器和导入收件箱
func (a *App) startBackgroundTasks(ctx context.Context) {
	if view, err := a.Services.Sessions.Resume(ctx); err == nil {
		logger.Log.Info("Quiz session resumed",
			zap.String("session", view.ID),
			zap.Int("currentIndex", view.CurrentIndex),
			zap.Int("total", view.Total))
	} else if !errors.Is(err, util.ErrSessionNotFound) {
		logger.Log.Warn("Quiz session resume failed", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Services.Sessions.Tick(ctx)
			}
		}
	}()

	if !a.Config.Import.WatchInbox {
		return
	}
	watcher := inbox.New(a.Config.Import.InboxDir, a.Config.Import.Debounce, util.AllowedImportExtensions,
		func(ctx context.Context, path string) error {
			_, err := a.Services.Import.ImportFile(ctx, path)
			if errors.Is(err, util.ErrImportInProgress) {
				return fmt.Errorf("%w: %v", inbox.ErrRetryLater, err)
			}
			return err
		})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Log.Error("Import inbox watcher stopped", zap.Error(err))
		}
	}()
}

// Close 释放后台资源；CLI 模式和 Run 退出时都要调用
func (a *App) Close() {
	a.cancel()
	a.Services.Sessions.Close()

	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logger.Sync()
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(a.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.startBackgroundTasks(ctx)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Log.Info("Server exiting")
	return nil
}
