package storage

// SchemaVersion is the current chain database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit chain schema.
// The chain is append-only: there are no UPDATE paths, and the primary key
// on seq enforces one record per chain position.
const Schema = `
-- Audit chain records
CREATE TABLE IF NOT EXISTS audit_chain (
    seq INTEGER PRIMARY KEY,
    id TEXT NOT NULL,
    kind TEXT NOT NULL,
    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL,

    -- Decision snapshot
    decision_id TEXT,
    message_id TEXT,
    score REAL,
    level TEXT,
    mode TEXT,
    action TEXT,
    reason TEXT,
    validating_roles TEXT,
    constitutional_hash TEXT,

    -- Operator action
    operator TEXT,
    from_mode TEXT,
    to_mode TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_chain_decision ON audit_chain(decision_id);
CREATE INDEX IF NOT EXISTS idx_audit_chain_recorded ON audit_chain(recorded_at);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`
