package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql drivers.
const (
	DriverSQLite3  = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverSQLite   = "sqlite"  // modernc.org/sqlite (pure Go)
	DriverPostgres = "pgx"     // github.com/jackc/pgx/v5/stdlib
)

// deleteChunkSize keeps IN lists below SQLite's bound-parameter limit.
const deleteChunkSize = 500

// SQLConfig contains configuration for the SQL index backend.
type SQLConfig struct {
	// Driver is one of DriverSQLite3, DriverSQLite or DriverPostgres.
	Driver string

	// DSN is the database file path for SQLite drivers or the connection
	// string for PostgreSQL.
	DSN string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for SQLite drivers.
	WALMode bool

	// BusyTimeout is the duration SQLite waits when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLConfig returns the default SQL index configuration.
func DefaultSQLConfig() *SQLConfig {
	return &SQLConfig{
		Driver:       DriverSQLite3,
		DSN:          "data/artifacts.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLIndex implements Index on top of database/sql.
type SQLIndex struct {
	db     *sql.DB
	config *SQLConfig
	logger *slog.Logger
}

// NewSQLIndex opens the database, creates the schema if needed and verifies
// the schema version.
func NewSQLIndex(config *SQLConfig) (*SQLIndex, error) {
	if config == nil {
		config = DefaultSQLConfig()
	}

	logger := slog.Default().With("component", "index.sql", "driver", config.Driver)

	dsn, err := buildDSN(config)
	if err != nil {
		return nil, NewStorageError(config.Driver, "open", err)
	}

	db, err := sql.Open(config.Driver, dsn)
	if err != nil {
		return nil, NewStorageError(config.Driver, "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLIndex{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("retention index initialized",
		"wal_mode", config.WALMode && s.isSQLite(),
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// buildDSN appends per-connection pragmas for the SQLite drivers. Pragmas
// set through Exec would only apply to a single pooled connection.
func buildDSN(config *SQLConfig) (string, error) {
	if config.DSN == "" {
		return "", errors.New("dsn is required")
	}

	busyMs := config.BusyTimeout.Milliseconds()
	var params []string

	switch config.Driver {
	case DriverSQLite3:
		params = append(params, "_busy_timeout="+strconv.FormatInt(busyMs, 10))
		if config.WALMode {
			params = append(params, "_journal_mode=WAL")
		}
		params = append(params, "_txlock=immediate")
	case DriverSQLite:
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", busyMs))
		if config.WALMode {
			params = append(params, "_pragma=journal_mode(WAL)")
		}
		params = append(params, "_txlock=immediate")
	case DriverPostgres:
		return config.DSN, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", config.Driver)
	}

	sep := "?"
	if strings.Contains(config.DSN, "?") {
		sep = "&"
	}
	return config.DSN + sep + strings.Join(params, "&"), nil
}

func (s *SQLIndex) isSQLite() bool {
	return s.config.Driver == DriverSQLite3 || s.config.Driver == DriverSQLite
}

// initialize creates the schema and verifies its version.
func (s *SQLIndex) initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return NewStorageError(s.config.Driver, "create_schema", err)
	}
	s.logger.Debug("database schema created")

	if _, err := s.db.ExecContext(ctx, s.rebind(InsertSchemaVersion), SchemaVersion, time.Now().UnixNano()); err != nil {
		return NewStorageError(s.config.Driver, "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError(s.config.Driver, "get_schema_version", err)
	}

	if version != SchemaVersion {
		return NewStorageError(s.config.Driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)

	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *SQLIndex) rebind(query string) string {
	if s.config.Driver != DriverPostgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Insert registers an artifact and returns its new ID.
func (s *SQLIndex) Insert(ctx context.Context, location string, createdAt, expiresAt time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", NewStorageError(s.config.Driver, "insert", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(insertArtifact),
		id.String(), location, createdAt.UnixNano(), expiresAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return "", NewStorageError(s.config.Driver, "insert", fmt.Errorf("%w: %s", ErrDuplicateLocation, location))
		}
		return "", NewStorageError(s.config.Driver, "insert", err)
	}

	return id.String(), nil
}

// QueryExpired returns every record with expires_at <= asOf. It is a single
// SELECT, so the database's statement-level snapshot provides the isolation
// guarantee against concurrent inserts.
func (s *SQLIndex) QueryExpired(ctx context.Context, asOf time.Time) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(queryExpired), asOf.UnixNano())
	if err != nil {
		return nil, NewStorageError(s.config.Driver, "query_expired", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Location); err != nil {
			return nil, NewStorageError(s.config.Driver, "scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(s.config.Driver, "query_expired", err)
	}

	return entries, nil
}

// DeleteBatch removes the given records in one transaction.
func (s *SQLIndex) DeleteBatch(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, NewStorageError(s.config.Driver, "delete_batch", err)
	}
	defer tx.Rollback()

	var total int64
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(ids))
		chunk := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		query := s.rebind("DELETE FROM artifacts WHERE id IN (" + placeholders + ")")

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, NewStorageError(s.config.Driver, "delete_batch", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, NewStorageError(s.config.Driver, "delete_batch", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, NewStorageError(s.config.Driver, "delete_batch", err)
	}

	return total, nil
}

// Get returns the record with the given ID.
func (s *SQLIndex) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(getArtifact), id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, NewStorageError(s.config.Driver, "get", err)
	}
	return record, nil
}

// List returns up to limit records in insertion order.
func (s *SQLIndex) List(ctx context.Context, limit int) ([]*Record, error) {
	query := listArtifacts
	if limit > 0 {
		query = strings.TrimSpace(query) + fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewStorageError(s.config.Driver, "list", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, NewStorageError(s.config.Driver, "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(s.config.Driver, "list", err)
	}

	return records, nil
}

// Count returns the number of registered records.
func (s *SQLIndex) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, countArtifacts).Scan(&count); err != nil {
		return 0, NewStorageError(s.config.Driver, "count", err)
	}
	return count, nil
}

// DeleteByLocation removes the record for location.
func (s *SQLIndex) DeleteByLocation(ctx context.Context, location string) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(deleteByLocation), location)
	if err != nil {
		return false, NewStorageError(s.config.Driver, "delete_by_location", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, NewStorageError(s.config.Driver, "delete_by_location", err)
	}
	return n > 0, nil
}

// Ping verifies the database is reachable.
func (s *SQLIndex) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(s.config.Driver, "ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLIndex) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError(s.config.Driver, "close", err)
	}
	s.logger.Info("retention index closed")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r                  Record
		created, expiresAt int64
	)
	if err := row.Scan(&r.ID, &r.Location, &created, &expiresAt); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created).UTC()
	r.ExpiresAt = time.Unix(0, expiresAt).UTC()
	return &r, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// any supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	// modernc.org/sqlite reports constraint failures with SQLite's own text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Index = (*SQLIndex)(nil)
