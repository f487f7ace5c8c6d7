package scoring

import (
	"fmt"
	"math"

	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE MULTIPLIERS
// ══════════════════════════════════════════════════════════════════════════════

// Границы грейдового множителя. Множитель обратно пропорционален классу:
// младшие классы получают больший множитель.
const (
	MinMultiplier = 0.5
	MaxMultiplier = 3.0
)

// GradeMultiplier - множитель очков для одного класса.
type GradeMultiplier struct {
	Grade      shared.Grade
	Multiplier float64
}

// Validate проверяет множитель. Значения вне [0.5, 3.0] отклоняются на
// admin-write, до подсчёта очков они не доходят.
func (g *GradeMultiplier) Validate() error {
	if !g.Grade.IsValid() {
		return shared.ErrInvalidGrade
	}
	if g.Multiplier < MinMultiplier || g.Multiplier > MaxMultiplier {
		return shared.ErrMultiplierOutOfRange
	}
	return nil
}

// MultiplierSet - множители всех классов.
type MultiplierSet map[shared.Grade]float64

// Lookup возвращает множитель класса. Для несконфигурированного класса
// используется нейтральный множитель 1.0 (консервативный дефолт, тот же
// принцип fail-closed, что и в классификации).
func (m MultiplierSet) Lookup(grade shared.Grade) float64 {
	if mult, ok := m[grade]; ok {
		return mult
	}
	return 1.0
}

// ══════════════════════════════════════════════════════════════════════════════
// POINT TYPES И БОНУСЫ
// ══════════════════════════════════════════════════════════════════════════════

// PointType - тип строки в журнале транзакций.
type PointType string

const (
	PointBestTime       PointType = "best_time"
	PointAverageTime    PointType = "average_time"
	PointPBBonus        PointType = "pb_bonus"
	PointClutchBonus    PointType = "clutch_bonus"
	PointStreakBonus    PointType = "streak_bonus"
	PointSchoolMomentum PointType = "school_momentum_bonus"
)

// IsValid проверяет тип транзакции.
func (p PointType) IsValid() bool {
	switch p {
	case PointBestTime, PointAverageTime, PointPBBonus,
		PointClutchBonus, PointStreakBonus, PointSchoolMomentum:
		return true
	default:
		return false
	}
}

// BonusFlags отмечает, какие бонусные условия выполнились для результата.
// Бонусы независимы и могут складываться.
type BonusFlags struct {
	PB             bool
	Clutch         bool
	Streak         bool
	SchoolMomentum bool
}

// BonusValues - плоские бонусные очки за каждое условие.
// Бонусы не умножаются на грейдовый множитель.
type BonusValues struct {
	PB             float64
	Clutch         float64
	Streak         float64
	SchoolMomentum float64
}

// DefaultBonusValues возвращает бонусы лиги по умолчанию.
func DefaultBonusValues() BonusValues {
	return BonusValues{
		PB:             5.0,
		Clutch:         3.0,
		Streak:         2.0,
		SchoolMomentum: 2.0,
	}
}

// Validate проверяет, что бонусы неотрицательны.
func (b BonusValues) Validate() error {
	for _, v := range []float64{b.PB, b.Clutch, b.Streak, b.SchoolMomentum} {
		if v < 0 {
			return shared.NewDomainError("scoring", "ValidateBonuses", shared.ErrNegativeValue,
				"bonus points cannot be negative")
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// POINT CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// RoundHalfUp1 округляет до одного десятичного знака методом half-up,
// как в отображении standings.
func RoundHalfUp1(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}

// Award - одна начисляемая строка очков.
type Award struct {
	Type   PointType
	Points float64
}

// ScoreBreakdown - полный результат калькуляции одного FinalScore.
type ScoreBreakdown struct {
	SingleTier  Classification
	AverageTier Classification
	Multiplier  float64
	Awards      []Award
}

// Total возвращает сумму всех начислений.
func (b ScoreBreakdown) Total() float64 {
	var sum float64
	for _, a := range b.Awards {
		sum += a.Points
	}
	return RoundHalfUp1(sum)
}

// String возвращает человекочитаемую сводку.
func (b ScoreBreakdown) String() string {
	return fmt.Sprintf("single=%s average=%s x%.2f total=%.1f",
		b.SingleTier.Tier, b.AverageTier.Tier, b.Multiplier, b.Total())
}

// ComputeScore начисляет очки за один финальный результат:
//
//	base_points(tier) × grade_multiplier + Σ бонусов
//
// Отдельные строки best_time и average_time считаются независимо по своим
// тирам. Полный DNF (оба времени невалидны) даёт ровно 0 очков и никаких
// бонусов, какие бы флаги ни стояли. Отрицательных итогов не бывает:
// base points и множители валидируются при записи конфигурации.
func ComputeScore(single, average Classification, multiplier float64, flags BonusFlags, bonuses BonusValues) ScoreBreakdown {
	breakdown := ScoreBreakdown{
		SingleTier:  single,
		AverageTier: average,
		Multiplier:  multiplier,
	}

	if single.DNF && average.DNF {
		return breakdown
	}

	if !single.DNF {
		breakdown.Awards = append(breakdown.Awards, Award{
			Type:   PointBestTime,
			Points: RoundHalfUp1(single.BasePoints * multiplier),
		})
	}
	if !average.DNF {
		breakdown.Awards = append(breakdown.Awards, Award{
			Type:   PointAverageTime,
			Points: RoundHalfUp1(average.BasePoints * multiplier),
		})
	}

	if flags.PB && bonuses.PB > 0 {
		breakdown.Awards = append(breakdown.Awards, Award{Type: PointPBBonus, Points: RoundHalfUp1(bonuses.PB)})
	}
	if flags.Clutch && bonuses.Clutch > 0 {
		breakdown.Awards = append(breakdown.Awards, Award{Type: PointClutchBonus, Points: RoundHalfUp1(bonuses.Clutch)})
	}
	if flags.Streak && bonuses.Streak > 0 {
		breakdown.Awards = append(breakdown.Awards, Award{Type: PointStreakBonus, Points: RoundHalfUp1(bonuses.Streak)})
	}
	if flags.SchoolMomentum && bonuses.SchoolMomentum > 0 {
		breakdown.Awards = append(breakdown.Awards, Award{Type: PointSchoolMomentum, Points: RoundHalfUp1(bonuses.SchoolMomentum)})
	}

	return breakdown
}
