// Package scoring содержит ядро подсчёта очков CubeScore: классификацию
// времени по тирам, грейдовые множители, калькуляцию очков с бонусами и
// неизменяемый журнал point transactions.
// Это чистая бизнес-логика без внешних зависимостей.
package scoring

import (
	"fmt"
	"sort"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIER
// ══════════════════════════════════════════════════════════════════════════════

// Tier представляет дискретную оценку результата: S (лучший) ... D (худший).
// D одновременно служит catch-all корзиной для DNF и непокрытых времён.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// tierOrder задаёт качество тира: меньше = лучше.
var tierOrder = map[Tier]int{
	TierS: 0,
	TierA: 1,
	TierB: 2,
	TierC: 3,
	TierD: 4,
}

// IsValid проверяет, что тир известен.
func (t Tier) IsValid() bool {
	_, ok := tierOrder[t]
	return ok
}

// BetterOrEqual возвращает true, если тир t не хуже other.
func (t Tier) BetterOrEqual(other Tier) bool {
	return tierOrder[t] <= tierOrder[other]
}

// AllTiers перечисляет тиры от лучшего к худшему.
func AllTiers() []Tier {
	return []Tier{TierS, TierA, TierB, TierC, TierD}
}

// ══════════════════════════════════════════════════════════════════════════════
// TIER THRESHOLDS
// ══════════════════════════════════════════════════════════════════════════════

// TierThreshold описывает интервал времени одного тира для одной дисциплины.
// Интервал полуоткрытый: [MinTimeMs, MaxTimeMs). MaxTimeMs == nil означает
// неограниченный верх (нижний тир D).
type TierThreshold struct {
	ID          string
	EventTypeID string
	Tier        Tier
	MinTimeMs   int64
	MaxTimeMs   *int64
	BasePoints  float64
	Color       string
}

// Validate проверяет отдельный threshold.
func (t *TierThreshold) Validate() error {
	if !t.Tier.IsValid() {
		return shared.NewDomainError("scoring", "ValidateThresholds", shared.ErrInvalidInput,
			fmt.Sprintf("unknown tier %q", string(t.Tier)))
	}
	if t.MinTimeMs < 0 {
		return shared.NewDomainError("scoring", "ValidateThresholds", shared.ErrNegativeValue,
			"min time cannot be negative")
	}
	if t.MaxTimeMs != nil && *t.MaxTimeMs <= t.MinTimeMs {
		return shared.NewDomainError("scoring", "ValidateThresholds", shared.ErrInvalidEntity,
			"max time must be greater than min time")
	}
	if t.BasePoints < 0 {
		return shared.ErrNegativeBasePoints
	}
	return nil
}

// Contains проверяет попадание времени в интервал [min, max).
func (t *TierThreshold) Contains(ms int64) bool {
	if ms < t.MinTimeMs {
		return false
	}
	return t.MaxTimeMs == nil || ms < *t.MaxTimeMs
}

// TierTable - полный набор thresholds одной дисциплины.
type TierTable struct {
	EventTypeID string
	Thresholds  []TierThreshold
}

// Validate проверяет инварианты таблицы: интервалы непрерывны, не
// пересекаются, качество тиров убывает с ростом времени (S быстрее A и т.д.),
// самый быстрый тир начинается с нуля, и только нижний тир не ограничен сверху.
// Эта проверка выполняется на admin-write, а не во время подсчёта очков.
func (tbl *TierTable) Validate() error {
	if len(tbl.Thresholds) == 0 {
		return shared.ErrThresholdsNotFound
	}

	sorted := make([]TierThreshold, len(tbl.Thresholds))
	copy(sorted, tbl.Thresholds)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinTimeMs < sorted[j].MinTimeMs
	})

	seen := make(map[Tier]bool, len(sorted))
	for i := range sorted {
		th := &sorted[i]
		if err := th.Validate(); err != nil {
			return err
		}
		if seen[th.Tier] {
			return shared.NewDomainError("scoring", "ValidateThresholds", shared.ErrInvalidEntity,
				fmt.Sprintf("duplicate tier %s", th.Tier))
		}
		seen[th.Tier] = true

		if i == 0 && th.MinTimeMs != 0 {
			return shared.ErrThresholdGap
		}
		if i > 0 {
			prev := &sorted[i-1]
			if prev.MaxTimeMs == nil {
				return shared.NewDomainError("scoring", "ValidateThresholds", shared.ErrInvalidEntity,
					"only the slowest tier may be unbounded")
			}
			switch {
			case th.MinTimeMs < *prev.MaxTimeMs:
				return shared.ErrThresholdOverlap
			case th.MinTimeMs > *prev.MaxTimeMs:
				return shared.ErrThresholdGap
			}
			// Время растёт - качество должно падать.
			if tierOrder[th.Tier] <= tierOrder[prev.Tier] {
				return shared.NewDomainError("scoring", "ValidateThresholds", shared.ErrInvalidEntity,
					"tier quality must descend as time ascends")
			}
		}
	}

	if sorted[len(sorted)-1].MaxTimeMs != nil {
		return shared.NewDomainError("scoring", "ValidateThresholds", shared.ErrInvalidEntity,
			"slowest tier must be unbounded")
	}

	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Classification - результат классификации одного времени.
type Classification struct {
	Tier       Tier
	BasePoints float64
	DNF        bool
}

// Classify сопоставляет время тиру дисциплины.
//
// DNF минует поиск по интервалам и всегда даёт нижний тир с нулём очков.
// Если ни один интервал не покрывает время (админ сконфигурировал таблицу
// с дыркой), классификация fail-closed: тир D, ноль очков. Подсчёт очков
// никогда не падает из-за кривой конфигурации - страдает один результат,
// а не вся финализация.
func (tbl *TierTable) Classify(t shared.SolveTime) Classification {
	if t.IsDNF() {
		return Classification{Tier: TierD, BasePoints: 0, DNF: true}
	}

	ms := t.Millis()
	for i := range tbl.Thresholds {
		th := &tbl.Thresholds[i]
		if th.Contains(ms) {
			return Classification{Tier: th.Tier, BasePoints: th.BasePoints}
		}
	}

	return Classification{Tier: TierD, BasePoints: 0}
}
