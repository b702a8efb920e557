package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/atlas/pkg/audit"
)

// defaultQueryLimit caps unbounded queries on every backend.
const defaultQueryLimit = 100

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, initializes the schema, and
// enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store persists one record.
func (s *SQLiteStorage) Store(ctx context.Context, record *audit.Record) error {
	competing, _ := json.Marshal(record.Competing)
	violations, _ := json.Marshal(record.Violations)
	bindings, _ := json.Marshal(record.Bindings)

	const query = `
		INSERT INTO audit (
			id, kind, recorded_time, service,
			field, chosen_value, chosen_source, competing,
			mode, outcome, artifact_count, violations, bindings, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, string(record.Kind), record.RecordedTime, record.Service,
		record.Field, record.ChosenValue, record.ChosenSource, string(competing),
		record.Mode, string(record.Outcome), record.ArtifactCount,
		string(violations), string(bindings), record.Error,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query retrieves records matching the filters, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	where, args := buildWhereClause(query)

	sqlQuery := "SELECT id, kind, recorded_time, service, field, chosen_value, chosen_source, competing, mode, outcome, artifact_count, violations, bindings, error FROM audit"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += " ORDER BY recorded_time DESC"

	limit := query.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of records matching the filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *audit.Query) (int, error) {
	where, args := buildWhereClause(query)
	sqlQuery := "SELECT COUNT(*) FROM audit"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var n int
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&n); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func buildWhereClause(query *audit.Query) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if len(query.Kinds) > 0 {
		placeholders := make([]string, len(query.Kinds))
		for i, kind := range query.Kinds {
			placeholders[i] = "?"
			args = append(args, string(kind))
		}
		clauses = append(clauses, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}
	if query.Service != "" {
		clauses = append(clauses, "service = ?")
		args = append(args, query.Service)
	}
	if !query.Since.IsZero() {
		clauses = append(clauses, "recorded_time >= ?")
		args = append(args, query.Since)
	}
	if !query.Until.IsZero() {
		clauses = append(clauses, "recorded_time <= ?")
		args = append(args, query.Until)
	}
	return strings.Join(clauses, " AND "), args
}

func scanRow(rows *sql.Rows) (*audit.Record, error) {
	var (
		record                audit.Record
		kind, outcome         string
		competing, violations sql.NullString
		bindings, errText     sql.NullString
		field, chosenValue    sql.NullString
		chosenSource, mode    sql.NullString
		artifactCount         sql.NullInt64
	)
	err := rows.Scan(
		&record.ID, &kind, &record.RecordedTime, &record.Service,
		&field, &chosenValue, &chosenSource, &competing,
		&mode, &outcome, &artifactCount, &violations, &bindings, &errText,
	)
	if err != nil {
		return nil, err
	}

	record.Kind = audit.Kind(kind)
	record.Outcome = audit.Outcome(outcome)
	record.Field = field.String
	record.ChosenValue = chosenValue.String
	record.ChosenSource = chosenSource.String
	record.Mode = mode.String
	record.ArtifactCount = int(artifactCount.Int64)
	record.Error = errText.String

	if competing.Valid && competing.String != "" {
		if err := json.Unmarshal([]byte(competing.String), &record.Competing); err != nil {
			return nil, err
		}
	}
	if violations.Valid && violations.String != "" {
		if err := json.Unmarshal([]byte(violations.String), &record.Violations); err != nil {
			return nil, err
		}
	}
	if bindings.Valid && bindings.String != "" {
		if err := json.Unmarshal([]byte(bindings.String), &record.Bindings); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
