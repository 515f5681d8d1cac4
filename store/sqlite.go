package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	flowengine "github.com/queryflow/flowengine"
)

// SQLiteStore implements flowengine.ExecutionStore on top of an embedded
// SQLite database.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements ExecutionStore
var _ flowengine.ExecutionStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			execution_id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			workflow_name TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			updated_at TEXT NOT NULL,
			steps BLOB,
			metrics BLOB,
			error BLOB,
			caller BLOB,
			tags BLOB,
			ttl INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_executions_workflow
			ON executions (workflow_id, status);`,
	)
	return err
}

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeJSON(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

type executionRow struct {
	steps   []byte
	metrics []byte
	execErr []byte
	caller  []byte
	tags    []byte
}

func (s *SQLiteStore) encodeRecord(record *flowengine.ExecutionRecord) (*executionRow, error) {
	row := &executionRow{}
	var err error

	if row.steps, err = encodeJSON(record.Steps); err != nil {
		return nil, fmt.Errorf("failed to encode steps: %w", err)
	}
	if row.metrics, err = encodeJSON(record.Metrics); err != nil {
		return nil, fmt.Errorf("failed to encode metrics: %w", err)
	}
	if row.execErr, err = encodeJSON(record.Error); err != nil {
		return nil, fmt.Errorf("failed to encode error: %w", err)
	}
	if row.caller, err = encodeJSON(record.Caller); err != nil {
		return nil, fmt.Errorf("failed to encode caller: %w", err)
	}
	if row.tags, err = encodeJSON(record.Tags); err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	return row, nil
}

func (s *SQLiteStore) CreateExecution(ctx context.Context, record *flowengine.ExecutionRecord) error {
	row, err := s.encodeRecord(record)
	if err != nil {
		return err
	}

	var completedAt any
	if record.CompletedAt != nil {
		completedAt = encodeTime(*record.CompletedAt)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions
			(execution_id, workflow_id, workflow_name, status,
			 created_at, started_at, completed_at, updated_at,
			 steps, metrics, error, caller, tags, ttl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ExecutionID,
		record.WorkflowID,
		record.WorkflowName,
		string(record.Status),
		encodeTime(record.CreatedAt),
		encodeTime(record.StartedAt),
		completedAt,
		encodeTime(record.UpdatedAt),
		row.steps,
		row.metrics,
		row.execErr,
		row.caller,
		row.tags,
		record.TTL,
	)
	return err
}

func (s *SQLiteStore) GetExecution(ctx context.Context, executionID string) (*flowengine.ExecutionRecord, error) {
	record := &flowengine.ExecutionRecord{}
	row := executionRow{}

	var status, createdAt, startedAt, updatedAt string
	var completedAt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT execution_id, workflow_id, workflow_name, status,
		       created_at, started_at, completed_at, updated_at,
		       steps, metrics, error, caller, tags, ttl
		FROM executions WHERE execution_id = ?`, executionID).Scan(
		&record.ExecutionID,
		&record.WorkflowID,
		&record.WorkflowName,
		&status,
		&createdAt,
		&startedAt,
		&completedAt,
		&updatedAt,
		&row.steps,
		&row.metrics,
		&row.execErr,
		&row.caller,
		&row.tags,
		&record.TTL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", executionID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}

	record.Status = flowengine.RunStatus(status)
	if record.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if record.StartedAt, err = decodeTime(startedAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := decodeTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		record.CompletedAt = &t
	}

	if err := decodeJSON(row.steps, &record.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}
	if err := decodeJSON(row.metrics, &record.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}
	if err := decodeJSON(row.execErr, &record.Error); err != nil {
		return nil, fmt.Errorf("failed to decode error: %w", err)
	}
	if err := decodeJSON(row.caller, &record.Caller); err != nil {
		return nil, fmt.Errorf("failed to decode caller: %w", err)
	}
	if err := decodeJSON(row.tags, &record.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	return record, nil
}

func (s *SQLiteStore) UpdateExecution(ctx context.Context, record *flowengine.ExecutionRecord) error {
	record.UpdatedAt = time.Now()

	row, err := s.encodeRecord(record)
	if err != nil {
		return err
	}

	var completedAt any
	if record.CompletedAt != nil {
		completedAt = encodeTime(*record.CompletedAt)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE executions
		SET workflow_id = ?, workflow_name = ?, status = ?,
		    created_at = ?, started_at = ?, completed_at = ?, updated_at = ?,
		    steps = ?, metrics = ?, error = ?, caller = ?, tags = ?, ttl = ?
		WHERE execution_id = ?`,
		record.WorkflowID,
		record.WorkflowName,
		string(record.Status),
		encodeTime(record.CreatedAt),
		encodeTime(record.StartedAt),
		completedAt,
		encodeTime(record.UpdatedAt),
		row.steps,
		row.metrics,
		row.execErr,
		row.caller,
		row.tags,
		record.TTL,
		record.ExecutionID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", record.ExecutionID))
	}

	return nil
}

func (s *SQLiteStore) UpdateExecutionStatus(ctx context.Context, executionID string, status flowengine.RunStatus, execErr *flowengine.WorkflowError) error {
	record, err := s.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}

	record.Status = status
	record.Error = execErr

	if status.IsTerminal() && record.CompletedAt == nil {
		now := time.Now()
		record.CompletedAt = &now
	}

	return s.UpdateExecution(ctx, record)
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, filter flowengine.ExecutionFilter) ([]*flowengine.ExecutionRecord, error) {
	query := `SELECT execution_id FROM executions`
	var conditions []string
	var args []any

	if filter.WorkflowID != "" {
		conditions = append(conditions, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}
	query += " ORDER BY created_at ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records := make([]*flowengine.ExecutionRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.GetExecution(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func (s *SQLiteStore) DeleteExecution(ctx context.Context, executionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM executions WHERE execution_id = ?`, executionID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", executionID))
	}

	return nil
}
