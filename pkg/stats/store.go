// Package stats persists rehearsal history in SQLite so progress survives
// restarts.
package stats

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SessionRecord is one completed rehearsal.
type SessionRecord struct {
	ID              string
	Role            string
	Company         string
	Seniority       string
	StartedAt       time.Time
	DurationSeconds int
	TurnCount       int
	OverallScore    int
}

// Totals aggregates the whole practice history.
type Totals struct {
	Sessions        int
	PracticeSeconds int64
	AverageScore    float64
}

// Store manages rehearsal persistence in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps concurrent reads cheap while a session is being recorded.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordSession persists one completed rehearsal.
func (s *Store) RecordSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("session record missing id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, role, company, seniority, started_at, duration_seconds, turn_count, overall_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Role, rec.Company, rec.Seniority, rec.StartedAt.UTC(),
		rec.DurationSeconds, rec.TurnCount, rec.OverallScore,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// TotalStats aggregates all recorded rehearsals. Unscored sessions (score 0)
// are excluded from the average.
func (s *Store) TotalStats(ctx context.Context) (Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(duration_seconds), 0),
		       COALESCE(AVG(CASE WHEN overall_score > 0 THEN overall_score END), 0)
		FROM sessions`)
	if err := row.Scan(&t.Sessions, &t.PracticeSeconds, &t.AverageScore); err != nil {
		return Totals{}, fmt.Errorf("aggregate sessions: %w", err)
	}
	return t, nil
}

// RecentSessions returns the newest sessions first, up to limit.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, company, seniority, started_at, duration_seconds, turn_count, overall_score
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var recs []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Role, &rec.Company, &rec.Seniority,
			&rec.StartedAt, &rec.DurationSeconds, &rec.TurnCount, &rec.OverallScore); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
