package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"kidintake/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS symptom_records (
	id TEXT PRIMARY KEY,
	childName TEXT NOT NULL,
	symptoms TEXT NOT NULL,
	createdAt REAL NOT NULL,
	isCompleted INTEGER NOT NULL DEFAULT 0,
	seq INTEGER NOT NULL
);
`

// SQLite keeps records in a local database so unsubmitted records survive
// an app restart.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path with WAL enabled.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Append(ctx context.Context, record domain.SymptomRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO symptom_records (id, childName, symptoms, createdAt, isCompleted, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM symptom_records))
	`, record.ID, record.ChildName, record.Symptoms, unixFromTime(record.Timestamp), boolToInt(record.IsCompleted))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (domain.SymptomRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, childName, symptoms, createdAt, isCompleted
		FROM symptom_records
		WHERE id = ?
	`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SymptomRecord{}, domain.ErrRecordNotFound
	}
	return record, err
}

// List returns records oldest first.
func (s *SQLite) List(ctx context.Context) ([]domain.SymptomRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, childName, symptoms, createdAt, isCompleted
		FROM symptom_records
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.SymptomRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLite) MarkCompleted(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE symptom_records SET isCompleted = 1
		WHERE id = ? AND isCompleted = 0
	`, id)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if affected == 1 {
		return nil
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrAlreadySubmitted
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.SymptomRecord, error) {
	var (
		record    domain.SymptomRecord
		createdAt float64
		completed int
	)
	if err := row.Scan(&record.ID, &record.ChildName, &record.Symptoms, &createdAt, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SymptomRecord{}, err
		}
		return domain.SymptomRecord{}, fmt.Errorf("scan record: %w", err)
	}
	record.Timestamp = timeFromUnix(createdAt)
	record.IsCompleted = completed != 0
	return record, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

func timeFromUnix(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1000))*int64(time.Millisecond))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
