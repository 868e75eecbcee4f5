package index

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the statements that create the index tables. Instants are
// stored as Unix nanoseconds so the expiry comparison is exact on every
// backend.
const Schema = `
CREATE TABLE IF NOT EXISTS artifacts (
    id TEXT PRIMARY KEY,
    location TEXT NOT NULL UNIQUE,
    created_at BIGINT NOT NULL,
    expires_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_expires_at ON artifacts(expires_at);
CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
`

// InsertSchemaVersion records the schema version if it is not present yet.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, ?)
ON CONFLICT(version) DO NOTHING
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1
`

const (
	insertArtifact = `
INSERT INTO artifacts (id, location, created_at, expires_at)
VALUES (?, ?, ?, ?)
`

	queryExpired = `
SELECT id, location FROM artifacts WHERE expires_at <= ?
`

	getArtifact = `
SELECT id, location, created_at, expires_at FROM artifacts WHERE id = ?
`

	listArtifacts = `
SELECT id, location, created_at, expires_at FROM artifacts ORDER BY created_at, id
`

	countArtifacts = `
SELECT COUNT(*) FROM artifacts
`

	deleteByLocation = `
DELETE FROM artifacts WHERE location = ?
`
)
