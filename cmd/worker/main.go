// Package main - точка входа фонового процесса (Worker) CubeScore.
//
// Worker отвечает за периодические задачи:
// - Пересчёт live-стандингов активных соревнований
// - Инвалидация кешей по событиям (рекорды, завершение соревнований)
//
// Философия: Worker держит таблицы актуальными между финализациями,
// чтобы школы видели свой прогресс в течение дня соревнований, а не
// только после финального пересчёта.
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
	"github.com/cubescore/cubescore-backend/internal/application/saga"
	"github.com/cubescore/cubescore-backend/internal/domain/scoring"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/messaging"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/persistence/postgres"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/persistence/redis"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/scheduler"
	"github.com/cubescore/cubescore-backend/internal/infrastructure/scheduler/jobs"
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
	log.Info("starting CubeScore worker",
		logger.F("env", string(cfg.App.Environment)),
		logger.F("version", cfg.App.Version),
		logger.F("timezone", cfg.App.Timezone))

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
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
		log.Info("database schema is up to date")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS И ШИНА СОБЫТИЙ
	// Без Redis worker продолжает работать: шина остаётся локальной,
	// а стандинги читаются из PostgreSQL.
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var redisCache *redis.Cache
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
			log.Warn("redis unavailable, running with local event bus", logger.Err(err))
		}
	}

	if redisCache != nil {
		defer redisCache.Close()

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
		log.Info("redis event bus connected")
	} else {
		memBus := messaging.NewInMemoryEventBus(busConfig)
		defer memBus.Close()
		eventBus = memBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ И СКОРИНГОВЫЙ КОНВЕЙЕР
	// ─────────────────────────────────────────────────────────────────────────
	competitionRepo := postgres.NewCompetitionRepository(dbConn)
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

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	if redisCache != nil {
		standingsCache := redis.NewStandingsCache(redisCache)
		if err := eventhandler.Register(eventBus, standingsCache, log); err != nil {
			return fmt.Errorf("failed to register event handlers: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	if cfg.Scheduler.Enabled {
		refreshJob := jobs.NewRefreshStandingsJob(competitionRepo, flow, log,
			jobs.RefreshStandingsConfig{
				Timeout:               cfg.Scheduler.RefreshTimeout,
				PerCompetitionTimeout: cfg.Scheduler.PerCompetitionTimeout,
			})
		// Cron-выражение имеет приоритет над интервалом.
		var schedule scheduler.Schedule
		if cfg.Scheduler.RefreshStandingsCron != "" {
			schedule, err = scheduler.ParseCronExpression(cfg.Scheduler.RefreshStandingsCron)
			if err != nil {
				return fmt.Errorf("invalid refresh cron %q: %w", cfg.Scheduler.RefreshStandingsCron, err)
			}
		} else {
			schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshStandingsInterval)
		}
		if err := sched.Register(refreshJob, schedule); err != nil {
			return fmt.Errorf("failed to register refresh job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
		log.Info("scheduler started",
			logger.F("refresh_schedule", refreshScheduleLabel(cfg.Scheduler)))
	} else {
		log.Warn("scheduler disabled, standings will only refresh on finalize")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("CubeScore worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.F("signal", sig.String()))
	case <-ctx.Done():
	}

	log.Info("shutdown completed")
	return nil
}

func refreshScheduleLabel(cfg config.SchedulerConfig) string {
	if cfg.RefreshStandingsCron != "" {
		return "cron " + cfg.RefreshStandingsCron
	}
	return "every " + cfg.RefreshStandingsInterval.String()
}
