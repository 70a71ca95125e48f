package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/t77yq/cpm-analyzer/internal/model"
)

// AnalysisRecord is a persisted analysis run
type AnalysisRecord struct {
	ID          string               `json:"id"`
	Project     string               `json:"project"`
	Status      model.AnalysisStatus `json:"status"`
	DelayDays   int                  `json:"delay_days"`
	TotalCost   float64              `json:"total_cost"`
	Request     json.RawMessage      `json:"request,omitempty"`
	Result      json.RawMessage      `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// AnalysisHistoryStorage defines the interface for analysis history storage
type AnalysisHistoryStorage interface {
	// Store stores a new analysis record
	Store(ctx context.Context, record *AnalysisRecord) error

	// Update updates an existing analysis record
	Update(ctx context.Context, record *AnalysisRecord) error

	// Get retrieves an analysis record by ID
	Get(ctx context.Context, id string) (*AnalysisRecord, error)

	// List retrieves analysis records with pagination and filters
	List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*AnalysisRecord, error)

	// Count returns the total number of records matching the filters
	Count(ctx context.Context, filters map[string]interface{}) (int, error)

	// DeleteBefore deletes records started before the specified time
	DeleteBefore(ctx context.Context, before time.Time) error
}

// SQLiteAnalysisHistory implements AnalysisHistoryStorage using SQLite
type SQLiteAnalysisHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteAnalysisHistory creates a new SQLite-based analysis history
func NewSQLiteAnalysisHistory(logger *zap.Logger, dbPath string) (*SQLiteAnalysisHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteAnalysisHistory{
		logger: logger.Named("analysis-history"),
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteAnalysisHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_history (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			status TEXT NOT NULL,
			delay_days INTEGER NOT NULL DEFAULT 0,
			total_cost REAL NOT NULL DEFAULT 0,
			request TEXT,
			result TEXT,
			error TEXT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_analysis_history_project ON analysis_history(project);
		CREATE INDEX IF NOT EXISTS idx_analysis_history_status ON analysis_history(status);
		CREATE INDEX IF NOT EXISTS idx_analysis_history_started_at ON analysis_history(started_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Store implements AnalysisHistoryStorage.Store
func (s *SQLiteAnalysisHistory) Store(ctx context.Context, record *AnalysisRecord) error {
	var requestStr string
	if len(record.Request) > 0 {
		requestStr = string(record.Request)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_history (
			id, project, status, request, started_at
		) VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.Project,
		record.Status,
		sql.NullString{String: requestStr, Valid: requestStr != ""},
		record.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store analysis record: %w", err)
	}
	return nil
}

// Update implements AnalysisHistoryStorage.Update
func (s *SQLiteAnalysisHistory) Update(ctx context.Context, record *AnalysisRecord) error {
	var resultStr string
	if len(record.Result) > 0 {
		resultStr = string(record.Result)
	}

	var completedAt sql.NullTime
	if record.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *record.CompletedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_history SET
			status = ?,
			delay_days = ?,
			total_cost = ?,
			result = ?,
			error = ?,
			completed_at = ?
		WHERE id = ?`,
		record.Status,
		record.DelayDays,
		record.TotalCost,
		sql.NullString{String: resultStr, Valid: resultStr != ""},
		sql.NullString{String: record.Error, Valid: record.Error != ""},
		completedAt,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis record: %w", err)
	}
	return nil
}

// Get implements AnalysisHistoryStorage.Get
func (s *SQLiteAnalysisHistory) Get(ctx context.Context, id string) (*AnalysisRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			id, project, status, delay_days, total_cost, request, result, error,
			started_at, completed_at
		FROM analysis_history
		WHERE id = ?`, id)

	record, err := scanRecord(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan analysis record: %w", err)
	}
	return record, nil
}

// List implements AnalysisHistoryStorage.List
func (s *SQLiteAnalysisHistory) List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]*AnalysisRecord, error) {
	query := "SELECT id, project, status, delay_days, total_cost, request, result, error, started_at, completed_at FROM analysis_history"
	args := make([]interface{}, 0)

	if len(filters) > 0 {
		query += " WHERE"
		first := true
		for key, value := range filters {
			if !first {
				query += " AND"
			}
			query += fmt.Sprintf(" %s = ?", key)
			args = append(args, value)
			first = false
		}
	}

	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis records: %w", err)
	}
	defer rows.Close()

	var records []*AnalysisRecord
	for rows.Next() {
		record, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return records, nil
}

// Count implements AnalysisHistoryStorage.Count
func (s *SQLiteAnalysisHistory) Count(ctx context.Context, filters map[string]interface{}) (int, error) {
	query := "SELECT COUNT(*) FROM analysis_history"
	args := make([]interface{}, 0)

	if len(filters) > 0 {
		query += " WHERE"
		first := true
		for key, value := range filters {
			if !first {
				query += " AND"
			}
			query += fmt.Sprintf(" %s = ?", key)
			args = append(args, value)
			first = false
		}
	}

	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count analysis records: %w", err)
	}
	return count, nil
}

// DeleteBefore implements AnalysisHistoryStorage.DeleteBefore
func (s *SQLiteAnalysisHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM analysis_history WHERE started_at < ?", before)
	if err != nil {
		return fmt.Errorf("failed to delete analysis records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old analysis records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}

// Close closes the database connection
func (s *SQLiteAnalysisHistory) Close() error {
	return s.db.Close()
}

// scanRecord reads one row into an AnalysisRecord
func scanRecord(scan func(dest ...interface{}) error) (*AnalysisRecord, error) {
	record := &AnalysisRecord{}
	var request, result, errorStr sql.NullString
	var completedAt sql.NullTime

	err := scan(
		&record.ID,
		&record.Project,
		&record.Status,
		&record.DelayDays,
		&record.TotalCost,
		&request,
		&result,
		&errorStr,
		&record.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if request.Valid && request.String != "" {
		record.Request = json.RawMessage(request.String)
	}
	if result.Valid && result.String != "" {
		record.Result = json.RawMessage(result.String)
	}
	if errorStr.Valid {
		record.Error = errorStr.String
	}
	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return record, nil
}
