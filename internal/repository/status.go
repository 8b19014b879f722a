package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/stage-exporter/constants"
	"github.com/joseph-ayodele/stage-exporter/internal/common"
	"github.com/joseph-ayodele/stage-exporter/internal/entity"
)

type StatusRepository interface {
	// Upsert writes the terminal status for a work item and finalizes the
	// stage_table row in the same transaction, so a completed item can never
	// be reclaimed or claimed again. Keyed by item id, last write wins. The
	// message is truncated to constants.MaxMessageLength.
	Upsert(ctx context.Context, id uuid.UUID, status constants.ItemStatus, message string) error
	Get(ctx context.Context, id uuid.UUID) (*entity.StatusRecord, error)
}

type statusRepo struct {
	db  *DB
	log *slog.Logger
}

func NewStatusRepository(db *DB, log *slog.Logger) StatusRepository {
	if log == nil {
		log = slog.Default()
	}
	return &statusRepo{db: db, log: log}
}

func (r *statusRepo) Upsert(ctx context.Context, id uuid.UUID, status constants.ItemStatus, message string) error {
	message = Truncate(message, constants.MaxMessageLength)
	upsert := `INSERT INTO status_table (id, status, message, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			updated_at = excluded.updated_at`
	finalize := `UPDATE stage_table SET status = $1, claimed_at = NULL WHERE id = $2`
	if r.db.Dialect == DialectSQLite {
		upsert = `INSERT INTO status_table (id, status, message, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			updated_at = excluded.updated_at`
		finalize = `UPDATE stage_table SET status = ?, claimed_at = NULL WHERE id = ?`
	}

	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsert, id.String(), string(status), message, time.Now().UTC()); err != nil {
		r.log.Error("status upsert failed", "id", id, "status", status, "err", err)
		return fmt.Errorf("upsert status: %w", err)
	}
	if _, err := tx.ExecContext(ctx, finalize, string(status), id.String()); err != nil {
		r.log.Error("stage finalize failed", "id", id, "status", status, "err", err)
		return fmt.Errorf("finalize stage row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	if status == constants.StatusFailure {
		r.log.Warn("recorded item failure", "id", id, "message", message)
	} else {
		r.log.Info("recorded item status", "id", id, "status", status)
	}
	return nil
}

func (r *statusRepo) Get(ctx context.Context, id uuid.UUID) (*entity.StatusRecord, error) {
	q := `SELECT status, message, updated_at FROM status_table WHERE id = $1`
	if r.db.Dialect == DialectSQLite {
		q = `SELECT status, message, updated_at FROM status_table WHERE id = ?`
	}
	rec := &entity.StatusRecord{ID: id}
	err := r.db.SQL.QueryRowContext(ctx, q, id.String()).Scan(&rec.Status, &rec.Message, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status record: %w", err)
	}
	return rec, nil
}

// Truncate caps s at n bytes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
