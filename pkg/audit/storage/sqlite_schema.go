package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS audit (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    recorded_time TIMESTAMP NOT NULL,
    service TEXT NOT NULL,

    -- Conflict section
    field TEXT,
    chosen_value TEXT,
    chosen_source TEXT,
    competing TEXT,

    -- Composition section
    mode TEXT,
    outcome TEXT,
    artifact_count INTEGER,
    violations TEXT,
    bindings TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_service ON audit(service);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit(kind);
CREATE INDEX IF NOT EXISTS idx_audit_recorded_time ON audit(recorded_time);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version after creation.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`
