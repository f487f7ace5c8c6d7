package records

import (
	"github.com/cubescore/cubescore-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD / PB DETECTOR
// ══════════════════════════════════════════════════════════════════════════════

// Detection - результат двух независимых проверок (рекорд и PB), каждая
// выполняется отдельно для single и average.
type Detection struct {
	// Рекорд против замороженного baseline.
	IsRecordSingle  bool
	IsRecordAverage bool

	// PB против собственного предыдущего лучшего.
	IsPBSingle   bool
	IsPBAverage  bool
	FirstAttempt bool

	// Предыдущие значения для журнала достижений.
	PreviousPBSingle  shared.SolveTime
	PreviousPBAverage shared.SolveTime
	BaselineSingle    shared.SolveTime
	BaselineAverage   shared.SolveTime
}

// IsPB возвращает true, если побит хотя бы один из PB.
func (d Detection) IsPB() bool {
	return d.IsPBSingle || d.IsPBAverage
}

// IsRecord возвращает true, если побит хотя бы один рекорд.
func (d Detection) IsRecord() bool {
	return d.IsRecordSingle || d.IsRecordAverage
}

// Detect выполняет детекцию рекордов и PB для одного результата.
//
// Детерминированная чистая функция: при одинаковых входах всегда одинаковый
// выход, скрытого состояния нет. Правила:
//
//   - Рекорд: current < baseline строго, current > 0. Нет baseline-строки -
//     проверка всегда false (нечего бить). DNF не ставит и не бьёт рекорды.
//   - PB: current < previous строго, current > 0. Нет PB-строки - первая
//     валидная попытка сама становится PB (first-attempt семантика).
//
// Transient-сбой чтения baseline/PB обрабатывает вызывающая сторона: она
// передаёт nil, и детекция деградирует до консервативного "нет рекорда,
// нет PB" вместо блокировки подсчёта.
func Detect(baseline *CompetitionRecord, pb *PersonalBest, single, average shared.SolveTime) Detection {
	var d Detection

	if baseline != nil && baseline.IsBaseline {
		d.BaselineSingle = baseline.SingleMs
		d.BaselineAverage = baseline.AverageMs
		d.IsRecordSingle = single.BeatsStrict(baseline.SingleMs)
		d.IsRecordAverage = average.BeatsStrict(baseline.AverageMs)
	}

	if pb == nil {
		// Первая валидная попытка - сама себе PB.
		if single.IsValid() || average.IsValid() {
			d.FirstAttempt = true
			d.IsPBSingle = single.IsValid()
			d.IsPBAverage = average.IsValid()
		}
		return d
	}

	d.PreviousPBSingle = pb.SingleMs
	d.PreviousPBAverage = pb.AverageMs

	// Поле без предыдущего значения тоже закрывается first-attempt семантикой.
	if single.IsValid() {
		if pb.SingleMs.IsDNF() {
			d.IsPBSingle = true
		} else {
			d.IsPBSingle = single < pb.SingleMs
		}
	}
	if average.IsValid() {
		if pb.AverageMs.IsDNF() {
			d.IsPBAverage = true
		} else {
			d.IsPBAverage = average < pb.AverageMs
		}
	}

	return d
}

// Achievements разворачивает детекцию в строки журнала достижений.
// Одна строка на каждое сработавшее условие; improvement_percent считается
// на момент записи. Идемпотентность здесь не гарантируется - за "ровно один
// вызов на событие" отвечает оркестратор.
func (d Detection) Achievements(studentID, competitionID, eventTypeID string, single, average shared.SolveTime) []AchievementEntry {
	var entries []AchievementEntry

	if d.FirstAttempt {
		achieved := single
		if !achieved.IsValid() {
			achieved = average
		}
		entries = append(entries, AchievementEntry{
			StudentID:       studentID,
			CompetitionID:   competitionID,
			EventTypeID:     eventTypeID,
			AchievementType: AchievementFirstAttempt,
			AchievedTimeMs:  achieved,
		})
	}

	if d.IsRecordSingle {
		entries = append(entries, AchievementEntry{
			StudentID:          studentID,
			CompetitionID:      competitionID,
			EventTypeID:        eventTypeID,
			AchievementType:    AchievementRecordSingle,
			AchievedTimeMs:     single,
			PreviousBestMs:     d.BaselineSingle,
			ImprovementPercent: ImprovementPercent(d.BaselineSingle, single),
		})
	}
	if d.IsRecordAverage {
		entries = append(entries, AchievementEntry{
			StudentID:          studentID,
			CompetitionID:      competitionID,
			EventTypeID:        eventTypeID,
			AchievementType:    AchievementRecordAverage,
			AchievedTimeMs:     average,
			PreviousBestMs:     d.BaselineAverage,
			ImprovementPercent: ImprovementPercent(d.BaselineAverage, average),
		})
	}
	// first_attempt уже покрывает дебютные PB - отдельные pb_* строки
	// пишутся только при улучшении существующего значения.
	if d.FirstAttempt {
		return entries
	}

	if d.IsPBSingle {
		entries = append(entries, AchievementEntry{
			StudentID:          studentID,
			CompetitionID:      competitionID,
			EventTypeID:        eventTypeID,
			AchievementType:    AchievementPBSingle,
			AchievedTimeMs:     single,
			PreviousBestMs:     d.PreviousPBSingle,
			ImprovementPercent: ImprovementPercent(d.PreviousPBSingle, single),
		})
	}
	if d.IsPBAverage {
		entries = append(entries, AchievementEntry{
			StudentID:          studentID,
			CompetitionID:      competitionID,
			EventTypeID:        eventTypeID,
			AchievementType:    AchievementPBAverage,
			AchievedTimeMs:     average,
			PreviousBestMs:     d.PreviousPBAverage,
			ImprovementPercent: ImprovementPercent(d.PreviousPBAverage, average),
		})
	}

	return entries
}
