// Package eventhandler содержит обработчики доменных событий.
// Эти обработчики реализуют event-driven архитектуру и связывают
// различные части системы через асинхронные события.
//
// Философия: обработчики событий — это "реактивная" часть системы.
// Основной пайплайн подсчёта очков никогда не зависит от них:
// обработчики только реагируют (сброс кешей, лента достижений),
// и их сбой не может испортить уже сохранённые данные.
package eventhandler

import (
	"context"
	"time"

	"github.com/cubescore/cubescore-backend/internal/application/query"
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
	"github.com/cubescore/cubescore-backend/pkg/logger"
	"github.com/cubescore/cubescore-backend/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STANDINGS RECOMPUTED HANDLER
// Сбрасывает кешированные таблицы после пересчёта, чтобы API-процессы
// не отдавали устаревшие ранги.
// ═══════════════════════════════════════════════════════════════════════════

// OnStandingsRecomputedHandler инвалидирует кеш стандингов соревнования.
type OnStandingsRecomputedHandler struct {
	cache   query.StandingsCache
	log     *logger.Logger
	retrier *retry.Retrier

	// InvalidateTimeout ограничивает каждую попытку сброса кеша.
	InvalidateTimeout time.Duration
}

// NewOnStandingsRecomputedHandler создаёт обработчик сброса кеша.
func NewOnStandingsRecomputedHandler(cache query.StandingsCache, log *logger.Logger) *OnStandingsRecomputedHandler {
	return &OnStandingsRecomputedHandler{
		cache: cache,
		log:   log.With(logger.F("handler", "on_standings_recomputed")),
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(100*time.Millisecond),
			retry.WithMaxDelay(time.Second),
		),
		InvalidateTimeout: 2 * time.Second,
	}
}

// Handle реализует shared.EventHandler.
// Кеш с TTL переживёт неудачный сброс, поэтому после исчерпания ретраев
// ошибка логируется, но не возвращается в шину.
func (h *OnStandingsRecomputedHandler) Handle(event shared.Event) error {
	competitionID := event.AggregateID()
	if competitionID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.InvalidateTimeout*3)
	defer cancel()

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, h.InvalidateTimeout)
		defer cancel()
		return h.cache.Invalidate(attemptCtx, competitionID)
	})
	if err != nil {
		h.log.Warn("standings cache invalidation failed, relying on TTL",
			logger.F("competition_id", competitionID), logger.Err(err))
		return nil
	}

	h.log.Info("standings cache invalidated", logger.F("competition_id", competitionID))
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ON RECORD BROKEN HANDLER
// Лента достижений кешируется, новый рекорд должен появиться в ней сразу.
// ═══════════════════════════════════════════════════════════════════════════

// OnRecordBrokenHandler инвалидирует кеш ленты достижений после рекорда
// или нового личного рекорда.
type OnRecordBrokenHandler struct {
	cache query.StandingsCache
	log   *logger.Logger
}

// NewOnRecordBrokenHandler создаёт обработчик обновления ленты.
func NewOnRecordBrokenHandler(cache query.StandingsCache, log *logger.Logger) *OnRecordBrokenHandler {
	return &OnRecordBrokenHandler{
		cache: cache,
		log:   log.With(logger.F("handler", "on_record_broken")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnRecordBrokenHandler) Handle(event shared.Event) error {
	payload := event.Payload()
	competitionID, _ := payload["competition_id"].(string)
	if competitionID == "" {
		competitionID = event.AggregateID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.cache.Invalidate(ctx, competitionID); err != nil {
		h.log.Warn("feed cache invalidation failed, relying on TTL",
			logger.F("competition_id", competitionID), logger.Err(err))
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// РЕГИСТРАЦИЯ
// ═══════════════════════════════════════════════════════════════════════════

// Register подписывает все обработчики кешей на шину событий.
func Register(bus shared.EventBus, cache query.StandingsCache, log *logger.Logger) error {
	standings := NewOnStandingsRecomputedHandler(cache, log)
	if err := bus.Subscribe(shared.EventStandingsRecomputed, standings.Handle); err != nil {
		return err
	}

	feed := NewOnRecordBrokenHandler(cache, log)
	for _, eventType := range []shared.EventType{
		shared.EventRecordBroken,
		shared.EventPBAchieved,
		shared.EventCompetitionCompleted,
	} {
		if err := bus.Subscribe(eventType, feed.Handle); err != nil {
			return err
		}
	}
	return nil
}
