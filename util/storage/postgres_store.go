package storage

import (
	"context"
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

// PostgresSchema creates the tables PostgresStore uses. Status is
// kept one row per field, so stages can add fields without a
// migration.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS deposit_status (
	deposit_id TEXT NOT NULL,
	field      TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (deposit_id, field)
);
CREATE TABLE IF NOT EXISTS deposit_completed_job (
	deposit_id   TEXT NOT NULL,
	job_type     TEXT NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
	PRIMARY KEY (deposit_id, job_type)
);
CREATE TABLE IF NOT EXISTS deposit_expiry (
	deposit_id TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);`

const (
	sqlSelectStatus = `SELECT field, value FROM deposit_status
WHERE deposit_id = $1
AND NOT EXISTS (SELECT 1 FROM deposit_expiry e WHERE e.deposit_id = $1 AND e.expires_at <= now())`

	sqlUpsertStatus = `INSERT INTO deposit_status (deposit_id, field, value) VALUES ($1, $2, $3)
ON CONFLICT (deposit_id, field) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	sqlDeleteStatusFields = `DELETE FROM deposit_status WHERE deposit_id = $1 AND field = ANY($2)`

	sqlUpsertExpiry = `INSERT INTO deposit_expiry (deposit_id, expires_at) VALUES ($1, $2)
ON CONFLICT (deposit_id) DO UPDATE SET expires_at = EXCLUDED.expires_at`

	sqlSelectCompleted = `SELECT job_type FROM deposit_completed_job
WHERE deposit_id = $1
AND NOT EXISTS (SELECT 1 FROM deposit_expiry e WHERE e.deposit_id = $1 AND e.expires_at <= now())
ORDER BY completed_at, job_type`

	sqlInsertCompleted = `INSERT INTO deposit_completed_job (deposit_id, job_type) VALUES ($1, $2)
ON CONFLICT (deposit_id, job_type) DO NOTHING`

	sqlPurgeStatus    = `DELETE FROM deposit_status s USING deposit_expiry e WHERE s.deposit_id = e.deposit_id AND e.expires_at <= now()`
	sqlPurgeCompleted = `DELETE FROM deposit_completed_job c USING deposit_expiry e WHERE c.deposit_id = e.deposit_id AND e.expires_at <= now()`
	sqlPurgeExpiry    = `DELETE FROM deposit_expiry WHERE expires_at <= now()`
)

// PostgresStore keeps deposit status and completion logs in
// postgres. Expired deposits are hidden from reads at once and
// removed by PurgeExpired.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore connects to dsn and creates the schema if needed.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("Postgres DSN is empty. Set PostgresDSN or DEPOSIT_POSTGRES_DSN.")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("Cannot connect to postgres: %v", err)
	}
	store := &PostgresStore{pool: pool, timeout: 30 * time.Second}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Cannot create deposit tables: %v", err)
	}
	return store, nil
}

func (store *PostgresStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), store.timeout)
}

func (store *PostgresStore) GetStatus(depositId string) (*models.DepositStatus, error) {
	ctx, cancel := store.ctx()
	defer cancel()
	rows, err := store.pool.Query(ctx, sqlSelectStatus, depositId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, err
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models.NewDepositStatus(depositId, fields), nil
}

func (store *PostgresStore) UpdateStatus(depositId, field, value string) error {
	ctx, cancel := store.ctx()
	defer cancel()
	_, err := store.pool.Exec(ctx, sqlUpsertStatus, depositId, field, value)
	return err
}

func (store *PostgresStore) ClearStatusFields(depositId string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := store.ctx()
	defer cancel()
	_, err := store.pool.Exec(ctx, sqlDeleteStatusFields, depositId, fields)
	return err
}

func (store *PostgresStore) ExpireStatus(depositId string, ttl time.Duration) error {
	ctx, cancel := store.ctx()
	defer cancel()
	_, err := store.pool.Exec(ctx, sqlUpsertExpiry, depositId, time.Now().Add(ttl).UTC())
	return err
}

func (store *PostgresStore) CompletedJobTypes(depositId string) ([]string, error) {
	ctx, cancel := store.ctx()
	defer cancel()
	rows, err := store.pool.Query(ctx, sqlSelectCompleted, depositId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tokens := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (store *PostgresStore) JobSucceeded(depositId string, jobType constants.JobType) error {
	if !jobType.IsRecordable() {
		return fmt.Errorf("Job type %s cannot be recorded", jobType)
	}
	ctx, cancel := store.ctx()
	defer cancel()
	_, err := store.pool.Exec(ctx, sqlInsertCompleted, depositId, jobType.String())
	return err
}

// PurgeExpired deletes expired deposits in one transaction and
// returns the number of deposits removed.
func (store *PostgresStore) PurgeExpired() (int, error) {
	ctx, cancel := store.ctx()
	defer cancel()
	tx, err := store.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)
	for _, sql := range []string{sqlPurgeStatus, sqlPurgeCompleted} {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return 0, err
		}
	}
	tag, err := tx.Exec(ctx, sqlPurgeExpiry)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (store *PostgresStore) Close() error {
	store.pool.Close()
	return nil
}
