package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/kailas-cloud/voicegate/internal/domain"
	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
)

// Supported history drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const dependency = "attempt log"

// DefaultLimit bounds history reads when the caller passes no limit.
const DefaultLimit = 50

const schema = `CREATE TABLE IF NOT EXISTS verification_attempts (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	voiceprint_id    TEXT NOT NULL DEFAULT '',
	probe_ref        TEXT NOT NULL,
	raw_score        DOUBLE PRECISION NOT NULL,
	normalized_score DOUBLE PRECISION NOT NULL,
	threshold        DOUBLE PRECISION NOT NULL,
	verified         BOOLEAN NOT NULL,
	enroll_mean      DOUBLE PRECISION NOT NULL,
	enroll_std       DOUBLE PRECISION NOT NULL,
	enroll_size      INTEGER NOT NULL,
	test_mean        DOUBLE PRECISION NOT NULL,
	test_std         DOUBLE PRECISION NOT NULL,
	test_size        INTEGER NOT NULL,
	low_confidence   BOOLEAN NOT NULL,
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       BIGINT NOT NULL
)`

const userIndex = `CREATE INDEX IF NOT EXISTS verification_attempts_user_created
	ON verification_attempts (user_id, created_at DESC)`

const insertQuery = `INSERT INTO verification_attempts (
	id, user_id, voiceprint_id, probe_ref, raw_score, normalized_score, threshold, verified,
	enroll_mean, enroll_std, enroll_size, test_mean, test_std, test_size, low_confidence,
	error_message, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

const selectByUser = `SELECT
	id, user_id, voiceprint_id, probe_ref, raw_score, normalized_score, threshold, verified,
	enroll_mean, enroll_std, enroll_size, test_mean, test_std, test_size, low_confidence,
	error_message, created_at
FROM verification_attempts
WHERE user_id = $1
ORDER BY created_at DESC, id ASC
LIMIT $2`

// Repo is the append-only verification attempt log over database/sql.
type Repo struct {
	db *sql.DB
}

// Open connects to the history database and bootstraps the schema.
func Open(ctx context.Context, driver, dsn string) (*Repo, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite, "":
		sqlDriver = "sqlite"
		if dsn == "" {
			dsn = ":memory:"
		}
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unknown history driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if sqlDriver == "sqlite" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	r := &Repo{db: db}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewWithDB wraps an already opened database; the schema must exist.
func NewWithDB(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) migrate(ctx context.Context) error {
	for _, stmt := range []string{schema, userIndex} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create attempt schema: %w", err)
		}
	}
	return nil
}

// Append writes attempts atomically.
func (r *Repo) Append(ctx context.Context, attempts ...domattempt.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(ctx, "begin attempt tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return wrapErr(ctx, "prepare attempt insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range attempts {
		rec := attempts[i].Record()
		_, err := stmt.ExecContext(ctx,
			rec.ID, rec.UserID, rec.VoiceprintID, rec.ProbeRef,
			rec.RawScore, rec.NormalizedScore, rec.Threshold, rec.Verified,
			rec.Stats.EnrollMean, rec.Stats.EnrollStd, rec.Stats.EnrollSize,
			rec.Stats.TestMean, rec.Stats.TestStd, rec.Stats.TestSize, rec.Stats.LowConfidence,
			rec.Error, rec.CreatedAt.UnixMicro(),
		)
		if err != nil {
			return wrapErr(ctx, "insert attempt", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(ctx, "commit attempts", err)
	}
	return nil
}

// ListByUser returns up to limit attempts of userID, newest first.
func (r *Repo) ListByUser(ctx context.Context, userID string, limit int) ([]domattempt.Attempt, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := r.db.QueryContext(ctx, selectByUser, userID, limit)
	if err != nil {
		return nil, wrapErr(ctx, "select attempts", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domattempt.Attempt
	for rows.Next() {
		var (
			rec       domattempt.Record
			createdAt int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.VoiceprintID, &rec.ProbeRef,
			&rec.RawScore, &rec.NormalizedScore, &rec.Threshold, &rec.Verified,
			&rec.Stats.EnrollMean, &rec.Stats.EnrollStd, &rec.Stats.EnrollSize,
			&rec.Stats.TestMean, &rec.Stats.TestStd, &rec.Stats.TestSize, &rec.Stats.LowConfidence,
			&rec.Error, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.CreatedAt = time.UnixMicro(createdAt).UTC()
		out = append(out, domattempt.Reconstruct(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(ctx, "iterate attempts", err)
	}
	return out, nil
}

// Ping checks the database connection.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return wrapErr(ctx, "ping attempt log", err)
	}
	return nil
}

// Close releases the database handle.
func (r *Repo) Close() error {
	return r.db.Close()
}

func wrapErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.NewDependencyError(dependency, fmt.Errorf("%s: %w", op, err))
}
