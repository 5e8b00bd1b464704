package database

import (
	"database/sql"
	"fmt"
	"time"

	"victory-go/internal/database/migrations"
	"victory-go/internal/model"
	"victory-go/internal/victory"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements victory.History using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and migrates it to the latest
// schema. path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// CreateOperation records the start of an operation with status running.
func (s *SQLiteDatabase) CreateOperation(runID, plan, operation string, startedAt time.Time) (*model.Operation, error) {
	res, err := s.db.Exec(
		`INSERT INTO operations (run_id, plan, operation, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, plan, operation, victory.StatusRunning, startedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}

	return &model.Operation{
		ID:        id,
		RunID:     runID,
		Plan:      plan,
		Operation: operation,
		Status:    victory.StatusRunning,
		StartedAt: startedAt,
	}, nil
}

// FinishOperation stores the final status and metrics. res may be nil.
func (s *SQLiteDatabase) FinishOperation(id int64, status string, res *victory.Results, finishedAt time.Time) error {
	var files, failed, batches int
	if res != nil {
		files, failed, batches = res.Files, res.Failed, res.Batches
	}

	result, err := s.db.Exec(
		`UPDATE operations SET status = ?, files = ?, failed = ?, batches = ?, finished_at = ? WHERE id = ?`,
		status, files, failed, batches, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

// ListOperations returns up to limit operations, newest first. A limit of
// zero or less returns all of them.
func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, plan, operation, status, files, failed, batches, started_at, finished_at
		FROM operations ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		op := &model.Operation{}
		if err := rows.Scan(
			&op.ID, &op.RunID, &op.Plan, &op.Operation, &op.Status,
			&op.Files, &op.Failed, &op.Batches, &op.StartedAt, &op.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements victory.History
var _ victory.History = (*SQLiteDatabase)(nil)
