// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that happened
// in the scoring pipeline; subscribers handle caching and notification concerns.
const (
	// Scoring events
	EventResultScored EventType = "scoring.result_scored"

	// Record events
	EventRecordBroken EventType = "records.record_broken"
	EventPBAchieved   EventType = "records.pb_achieved"
	EventFirstAttempt EventType = "records.first_attempt"

	// Competition events
	EventCompetitionActivated EventType = "competition.activated"
	EventCompetitionCompleted EventType = "competition.completed"
	EventBaselineDesignated   EventType = "competition.baseline_designated"

	// Standings events
	EventStandingsRecomputed EventType = "standings.recomputed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Scoring Events
// ═══════════════════════════════════════════════════════════════════════════

// ResultScoredEvent is emitted when a final score has been run through the
// scoring pipeline and its point transactions are committed.
type ResultScoredEvent struct {
	BaseEvent
	StudentID     string  `json:"student_id"`
	SchoolID      string  `json:"school_id"`
	CompetitionID string  `json:"competition_id"`
	RoundID       string  `json:"round_id"`
	EventTypeID   string  `json:"event_type_id"`
	Tier          string  `json:"tier"`
	TotalPoints   float64 `json:"total_points"`
}

// Payload implements Event interface.
func (e ResultScoredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"school_id":      e.SchoolID,
		"competition_id": e.CompetitionID,
		"round_id":       e.RoundID,
		"event_type_id":  e.EventTypeID,
		"tier":           e.Tier,
		"total_points":   e.TotalPoints,
	}
}

// NewResultScoredEvent creates a new ResultScoredEvent.
func NewResultScoredEvent(studentID, schoolID, competitionID, roundID, eventTypeID, tier string, totalPoints float64) ResultScoredEvent {
	return ResultScoredEvent{
		BaseEvent:     NewBaseEvent(EventResultScored, studentID),
		StudentID:     studentID,
		SchoolID:      schoolID,
		CompetitionID: competitionID,
		RoundID:       roundID,
		EventTypeID:   eventTypeID,
		Tier:          tier,
		TotalPoints:   totalPoints,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Record Events
// ═══════════════════════════════════════════════════════════════════════════

// RecordBrokenEvent is emitted when a baseline record falls.
type RecordBrokenEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	CompetitionID string `json:"competition_id"`
	EventTypeID   string `json:"event_type_id"`
	Kind          string `json:"kind"` // "single" or "average"
	AchievedMs    int64  `json:"achieved_ms"`
	BaselineMs    int64  `json:"baseline_ms"`
}

// Payload implements Event interface.
func (e RecordBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"competition_id": e.CompetitionID,
		"event_type_id":  e.EventTypeID,
		"kind":           e.Kind,
		"achieved_ms":    e.AchievedMs,
		"baseline_ms":    e.BaselineMs,
	}
}

// NewRecordBrokenEvent creates a new RecordBrokenEvent.
func NewRecordBrokenEvent(studentID, competitionID, eventTypeID, kind string, achievedMs, baselineMs int64) RecordBrokenEvent {
	return RecordBrokenEvent{
		BaseEvent:     NewBaseEvent(EventRecordBroken, studentID),
		StudentID:     studentID,
		CompetitionID: competitionID,
		EventTypeID:   eventTypeID,
		Kind:          kind,
		AchievedMs:    achievedMs,
		BaselineMs:    baselineMs,
	}
}

// PBAchievedEvent is emitted when a student beats their own personal best.
type PBAchievedEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	CompetitionID string `json:"competition_id"`
	EventTypeID   string `json:"event_type_id"`
	Kind          string `json:"kind"` // "single" or "average"
	AchievedMs    int64  `json:"achieved_ms"`
	PreviousMs    int64  `json:"previous_ms"`
	FirstAttempt  bool   `json:"first_attempt"`
}

// Payload implements Event interface.
func (e PBAchievedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"competition_id": e.CompetitionID,
		"event_type_id":  e.EventTypeID,
		"kind":           e.Kind,
		"achieved_ms":    e.AchievedMs,
		"previous_ms":    e.PreviousMs,
		"first_attempt":  e.FirstAttempt,
	}
}

// NewPBAchievedEvent creates a new PBAchievedEvent.
func NewPBAchievedEvent(studentID, competitionID, eventTypeID, kind string, achievedMs, previousMs int64, firstAttempt bool) PBAchievedEvent {
	eventType := EventPBAchieved
	if firstAttempt {
		eventType = EventFirstAttempt
	}
	return PBAchievedEvent{
		BaseEvent:     NewBaseEvent(eventType, studentID),
		StudentID:     studentID,
		CompetitionID: competitionID,
		EventTypeID:   eventTypeID,
		Kind:          kind,
		AchievedMs:    achievedMs,
		PreviousMs:    previousMs,
		FirstAttempt:  firstAttempt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Competition Events
// ═══════════════════════════════════════════════════════════════════════════

// CompetitionCompletedEvent is emitted after finalization flips the status.
type CompetitionCompletedEvent struct {
	BaseEvent
	CompetitionID   string  `json:"competition_id"`
	CompetitionName string  `json:"competition_name"`
	SchoolsRanked   int     `json:"schools_ranked"`
	ResultsScored   int     `json:"results_scored"`
	TotalPoints     float64 `json:"total_points"`
}

// Payload implements Event interface.
func (e CompetitionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competition_id":   e.CompetitionID,
		"competition_name": e.CompetitionName,
		"schools_ranked":   e.SchoolsRanked,
		"results_scored":   e.ResultsScored,
		"total_points":     e.TotalPoints,
	}
}

// NewCompetitionCompletedEvent creates a new CompetitionCompletedEvent.
func NewCompetitionCompletedEvent(competitionID, name string, schoolsRanked, resultsScored int, totalPoints float64) CompetitionCompletedEvent {
	return CompetitionCompletedEvent{
		BaseEvent:       NewBaseEvent(EventCompetitionCompleted, competitionID),
		CompetitionID:   competitionID,
		CompetitionName: name,
		SchoolsRanked:   schoolsRanked,
		ResultsScored:   resultsScored,
		TotalPoints:     totalPoints,
	}
}

// BaselineDesignatedEvent is emitted when a competition becomes the league
// baseline and its results are frozen as the record wall.
type BaselineDesignatedEvent struct {
	BaseEvent
	CompetitionID   string `json:"competition_id"`
	CompetitionName string `json:"competition_name"`
	RecordsFrozen   int    `json:"records_frozen"`
}

// Payload implements Event interface.
func (e BaselineDesignatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competition_id":   e.CompetitionID,
		"competition_name": e.CompetitionName,
		"records_frozen":   e.RecordsFrozen,
	}
}

// NewBaselineDesignatedEvent creates a new BaselineDesignatedEvent.
func NewBaselineDesignatedEvent(competitionID, name string, recordsFrozen int) BaselineDesignatedEvent {
	return BaselineDesignatedEvent{
		BaseEvent:       NewBaseEvent(EventBaselineDesignated, competitionID),
		CompetitionID:   competitionID,
		CompetitionName: name,
		RecordsFrozen:   recordsFrozen,
	}
}

// StandingsRecomputedEvent is emitted after an aggregator pass upserts standings.
type StandingsRecomputedEvent struct {
	BaseEvent
	CompetitionID string `json:"competition_id"`
	Schools       int    `json:"schools"`
	Students      int    `json:"students"`
}

// Payload implements Event interface.
func (e StandingsRecomputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competition_id": e.CompetitionID,
		"schools":        e.Schools,
		"students":       e.Students,
	}
}

// NewStandingsRecomputedEvent creates a new StandingsRecomputedEvent.
func NewStandingsRecomputedEvent(competitionID string, schools, students int) StandingsRecomputedEvent {
	return StandingsRecomputedEvent{
		BaseEvent:     NewBaseEvent(EventStandingsRecomputed, competitionID),
		CompetitionID: competitionID,
		Schools:       schools,
		Students:      students,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
