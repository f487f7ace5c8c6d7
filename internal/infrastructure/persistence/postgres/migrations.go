// Package postgres implements the PostgreSQL persistence layer for CubeScore.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ROSTER (schools, students)
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create roster tables
-- Version: 001

CREATE TABLE IF NOT EXISTS schools (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL,
    division VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_division CHECK (division IN ('elementary', 'middle', 'high', 'open'))
);

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    display_name VARCHAR(100) NOT NULL,
    grade SMALLINT NOT NULL,
    school_id UUID REFERENCES schools(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_grade CHECK (grade BETWEEN 1 AND 12)
);

CREATE INDEX IF NOT EXISTS idx_students_school_id ON students(school_id);
CREATE INDEX IF NOT EXISTS idx_schools_division ON schools(division);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS schools;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: COMPETITIONS (competitions, event types, rounds, results)
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create competition tables
-- Version: 002

CREATE TABLE IF NOT EXISTS competitions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(200) NOT NULL,
    date DATE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'upcoming',
    is_baseline BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_status CHECK (status IN ('upcoming', 'active', 'completing', 'completed'))
);

-- Не более одного baseline на лигу.
CREATE UNIQUE INDEX IF NOT EXISTS idx_competitions_baseline
    ON competitions(is_baseline) WHERE is_baseline;

CREATE TABLE IF NOT EXISTS event_types (
    id VARCHAR(20) PRIMARY KEY,
    name VARCHAR(50) NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS competition_events (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    competition_id UUID NOT NULL REFERENCES competitions(id),
    event_type_id VARCHAR(20) NOT NULL REFERENCES event_types(id),

    CONSTRAINT uq_competition_events UNIQUE (competition_id, event_type_id)
);

CREATE TABLE IF NOT EXISTS rounds (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    competition_event_id UUID NOT NULL REFERENCES competition_events(id),
    number INTEGER NOT NULL DEFAULT 1,
    name VARCHAR(50) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rounds_event ON rounds(competition_event_id);

CREATE TABLE IF NOT EXISTS final_scores (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    round_id UUID NOT NULL REFERENCES rounds(id),
    student_id UUID NOT NULL REFERENCES students(id),
    best_single_ms BIGINT NOT NULL DEFAULT 0,
    best_average_ms BIGINT NOT NULL DEFAULT 0,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_final_scores_round_student UNIQUE (round_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_final_scores_student ON final_scores(student_id);

CREATE TABLE IF NOT EXISTS registrations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    competition_id UUID NOT NULL REFERENCES competitions(id),
    student_id UUID NOT NULL REFERENCES students(id),
    school_id UUID REFERENCES schools(id),
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_registrations UNIQUE (competition_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_registrations_competition ON registrations(competition_id);
`

const migration002Down = `
DROP TABLE IF EXISTS registrations;
DROP TABLE IF EXISTS final_scores;
DROP TABLE IF EXISTS rounds;
DROP TABLE IF EXISTS competition_events;
DROP TABLE IF EXISTS event_types;
DROP TABLE IF EXISTS competitions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SCORING (thresholds, multipliers, point transactions)
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create scoring tables
-- Version: 003

CREATE TABLE IF NOT EXISTS tier_thresholds (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    event_type_id VARCHAR(20) NOT NULL REFERENCES event_types(id),
    tier VARCHAR(2) NOT NULL,
    min_time_ms BIGINT NOT NULL,
    max_time_ms BIGINT,
    base_points DECIMAL(6,1) NOT NULL,
    color VARCHAR(10) NOT NULL DEFAULT '',

    CONSTRAINT valid_tier CHECK (tier IN ('S', 'A', 'B', 'C', 'D')),
    CONSTRAINT non_negative_points CHECK (base_points >= 0),
    CONSTRAINT uq_tier_thresholds UNIQUE (event_type_id, tier)
);

CREATE TABLE IF NOT EXISTS grade_multipliers (
    grade SMALLINT PRIMARY KEY,
    multiplier DECIMAL(3,2) NOT NULL,

    CONSTRAINT valid_grade CHECK (grade BETWEEN 1 AND 12),
    CONSTRAINT valid_multiplier CHECK (multiplier BETWEEN 0.5 AND 3.0)
);

-- Append-only журнал начислений: единственный источник правды для standings.
CREATE TABLE IF NOT EXISTS point_transactions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id),
    school_id UUID REFERENCES schools(id),
    competition_id UUID NOT NULL REFERENCES competitions(id),
    round_id UUID NOT NULL REFERENCES rounds(id),
    point_type VARCHAR(30) NOT NULL,
    final_points DECIMAL(8,1) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_point_type CHECK (point_type IN
        ('best_time', 'average_time', 'pb_bonus', 'clutch_bonus', 'streak_bonus', 'school_momentum_bonus'))
);

CREATE INDEX IF NOT EXISTS idx_point_tx_competition ON point_transactions(competition_id);
CREATE INDEX IF NOT EXISTS idx_point_tx_student ON point_transactions(student_id);
CREATE INDEX IF NOT EXISTS idx_point_tx_round_student ON point_transactions(round_id, student_id);
`

const migration003Down = `
DROP TABLE IF EXISTS point_transactions;
DROP TABLE IF EXISTS grade_multipliers;
DROP TABLE IF EXISTS tier_thresholds;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: RECORDS (baseline records, personal bests, achievement log)
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create record tables
-- Version: 004

-- Write-once строки: рекордная стена меряется против замороженного baseline.
CREATE TABLE IF NOT EXISTS competition_records (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id),
    event_type_id VARCHAR(20) NOT NULL REFERENCES event_types(id),
    competition_id UUID NOT NULL REFERENCES competitions(id),
    single_ms BIGINT NOT NULL DEFAULT 0,
    average_ms BIGINT NOT NULL DEFAULT 0,
    is_baseline BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_records_baseline
    ON competition_records(student_id, event_type_id) WHERE is_baseline;

CREATE TABLE IF NOT EXISTS personal_bests (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id),
    event_type_id VARCHAR(20) NOT NULL REFERENCES event_types(id),
    single_ms BIGINT NOT NULL DEFAULT 0,
    average_ms BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_personal_bests UNIQUE (student_id, event_type_id)
);

CREATE TABLE IF NOT EXISTS achievement_log (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id),
    competition_id UUID NOT NULL REFERENCES competitions(id),
    event_type_id VARCHAR(20) NOT NULL REFERENCES event_types(id),
    achievement_type VARCHAR(20) NOT NULL,
    achieved_time_ms BIGINT NOT NULL,
    previous_best_ms BIGINT,
    improvement_percent DECIMAL(6,2),
    achieved_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_achievement_type CHECK (achievement_type IN
        ('record_single', 'record_average', 'pb_single', 'pb_average', 'first_attempt'))
);

CREATE INDEX IF NOT EXISTS idx_achievements_competition ON achievement_log(competition_id);
CREATE INDEX IF NOT EXISTS idx_achievements_achieved_at ON achievement_log(achieved_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS achievement_log;
DROP TABLE IF EXISTS personal_bests;
DROP TABLE IF EXISTS competition_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: STANDINGS (derived school and student standings)
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
-- Migration: Create standings tables
-- Version: 005

-- Производные таблицы: полностью пересчитываются из point_transactions.
CREATE TABLE IF NOT EXISTS school_standings (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    competition_id UUID NOT NULL REFERENCES competitions(id),
    school_id UUID NOT NULL REFERENCES schools(id),
    total_points DECIMAL(10,1) NOT NULL DEFAULT 0,
    avg_points_per_student DECIMAL(10,1) NOT NULL DEFAULT 0,
    total_students_participated INTEGER NOT NULL DEFAULT 0,
    overall_rank INTEGER NOT NULL DEFAULT 0,
    division_rank INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_school_standings UNIQUE (competition_id, school_id)
);

CREATE INDEX IF NOT EXISTS idx_school_standings_competition
    ON school_standings(competition_id, overall_rank);

CREATE TABLE IF NOT EXISTS student_standings (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    competition_id UUID NOT NULL REFERENCES competitions(id),
    student_id UUID NOT NULL REFERENCES students(id),
    total_points DECIMAL(10,1) NOT NULL DEFAULT 0,
    rank INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_student_standings UNIQUE (competition_id, student_id)
);

CREATE INDEX IF NOT EXISTS idx_student_standings_competition
    ON student_standings(competition_id, rank);
`

const migration005Down = `
DROP TABLE IF EXISTS student_standings;
DROP TABLE IF EXISTS school_standings;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_roster", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_competitions", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_scoring", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_records", UpSQL: migration004Up, DownSQL: migration004Down},
		{Version: 5, Name: "create_standings", UpSQL: migration005Up, DownSQL: migration005Down},
	}
}
