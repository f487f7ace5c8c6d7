// Package main - точка входа REST API сервера CubeScore.
//
// API обслуживает публичные чтения (стандинги, лента достижений,
// карточки студентов), ввод результатов с площадки и админские
// операции: финализацию соревнований и настройку скоринга.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cubescore/cubescore-backend/config"
	"github.com/cubescore/cubescore-backend/internal/application/command"
	"github.com/cubescore/cubescore-backend/internal/application/eventhandler"
	"github.com/cubescore/cubescore-backend/internal/application/query"
	"github.com/cubescore/cubescore-backend/internal/application/saga"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	httpapi "github.com/cubescore/cubescore-backend/internal/interface/http"
	"github.com/cubescore/cubescore-backend/internal/interface/http/handlers"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/messaging"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/persistence/postgres"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/persistence/redis"
	"github.com/cubescore/cubescore-backend/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.Observability.LogLevel))
	log.Info("starting CubeScore API",
		logger.F("env", string(cfg.App.Environment)),
		logger.F("version", cfg.App.Version))

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if cfg.Database.AutoMigrate {
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS, КЕШ СТАНДИНГОВ И ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var redisCache *redis.Cache
	var standingsCache query.StandingsCache
	var eventBus shared.EventBus

	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("redis unavailable, serving standings without cache", logger.Err(err))
			redisCache = nil
		}
	}

	if redisCache != nil {
		defer redisCache.Close()
		standingsCache = redis.NewStandingsCache(redisCache)

		adapter := messaging.NewCachePubSubAdapter(redisCache)
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         adapter,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		defer redisBus.Close()
		eventBus = redisBus
	} else {
		memBus := messaging.NewInMemoryEventBus(busConfig)
		defer memBus.Close()
		eventBus = memBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ, КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	competitionRepo := postgres.NewCompetitionRepository(dbConn)
	eventTypeRepo := postgres.NewEventTypeRepository(dbConn)
	resultRepo := postgres.NewResultRepository(dbConn)
	registrationRepo := postgres.NewRegistrationRepository(dbConn)
	studentRepo := postgres.NewStudentRepository(dbConn)
	schoolRepo := postgres.NewSchoolRepository(dbConn)
	thresholdRepo := postgres.NewThresholdRepository(dbConn)
	multiplierRepo := postgres.NewMultiplierRepository(dbConn)
	txRepo := postgres.NewTransactionRepository(dbConn)
	recordRepo := postgres.NewRecordRepository(dbConn)
	pbRepo := postgres.NewPersonalBestRepository(dbConn)
	achievementRepo := postgres.NewAchievementLogRepository(dbConn)
	schoolStandingRepo := postgres.NewSchoolStandingRepository(dbConn)
	studentStandingRepo := postgres.NewStudentStandingRepository(dbConn)

	scoreHandler := command.NewScoreResultHandler(
		resultRepo, studentRepo, thresholdRepo, multiplierRepo,
		txRepo, recordRepo, pbRepo, achievementRepo,
		eventBus, log, scoring.DefaultBonusValues())
	batchScorer := command.NewScoreBatchHandler(scoreHandler, resultRepo, log)

	flow := saga.NewCompletionFlow(
		competitionRepo, registrationRepo, txRepo,
		studentRepo, schoolRepo,
		schoolStandingRepo, studentStandingRepo,
		batchScorer, eventBus, log)

	if standingsCache != nil {
		if err := eventhandler.Register(eventBus, standingsCache, log); err != nil {
			return fmt.Errorf("failed to register event handlers: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCriticalCheck("postgres", handlers.NewPingCheck(dbConn))
	if redisCache != nil {
		health.AddCheck("redis", handlers.NewPingCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.EnableCORS = cfg.HTTP.EnableCORS
	serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		GetSchoolStandingsHandler:  query.NewGetSchoolStandingsHandler(schoolStandingRepo, standingsCache, log),
		GetStudentStandingsHandler: query.NewGetStudentStandingsHandler(studentStandingRepo),
		GetAchievementFeedHandler:  query.NewGetAchievementFeedHandler(achievementRepo),
		GetStudentSummaryHandler:   query.NewGetStudentSummaryHandler(studentRepo, pbRepo, txRepo, studentStandingRepo),
		RecordResultHandler:        command.NewRecordResultHandler(competitionRepo, resultRepo),
		SetBaselineHandler:         command.NewSetBaselineHandler(competitionRepo, resultRepo, recordRepo, eventBus, log),
		ReplaceThresholdsHandler:   command.NewReplaceThresholdsHandler(thresholdRepo, eventTypeRepo, log),
		UpsertMultiplierHandler:    command.NewUpsertMultiplierHandler(multiplierRepo, log),
		CompletionFlow:             flow,
		Logger:                     log,
		HealthChecker:              health,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	log.Info("CubeScore API is running", logger.F("address", serverCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.F("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed")
	return nil
}
