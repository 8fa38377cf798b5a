package app

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	redisclient "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/clients/redis"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/data/db"
	httpPkg "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/http"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	srv      *httpPkg.Server
	cache    *redisclient.Service
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.Migrate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	theDB := pg.DB()

	var cache *redisclient.Service
	if cfg.RedisEnabled {
		cache, err = redisclient.NewService(log)
		if err != nil {
			// The cache is an optimization; the app runs without it.
			log.Warn("redis unavailable, search caching disabled", "error", err)
			cache = nil
		}
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, cache)
	if err != nil {
		log.Sync()
		return nil, err
	}
	handlerset := wireHandlers(log, serviceset, reposet)
	srv := wireRouter(log, handlerset)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   srv.Engine,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		srv:      srv,
		cache:    cache,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.srv == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.srv.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
