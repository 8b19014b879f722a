package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/stage-exporter/constants"
	"github.com/joseph-ayodele/stage-exporter/internal/entity"
)

type WorkItemRepository interface {
	// Claim atomically flips up to limit PENDING rows to IN_PROGRESS and
	// returns their descriptors. Concurrent claimers never receive the
	// same row. An empty result is not an error.
	Claim(ctx context.Context, limit int) ([]*entity.WorkItem, error)
	// ReclaimExpired returns IN_PROGRESS rows whose lease (claimed_at + ttl)
	// has expired back to PENDING, and reports how many were reclaimed.
	ReclaimExpired(ctx context.Context, ttl time.Duration) (int, error)
	Insert(ctx context.Context, item *entity.WorkItem) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type workItemRepo struct {
	db  *DB
	log *slog.Logger
}

func NewWorkItemRepository(db *DB, log *slog.Logger) WorkItemRepository {
	if log == nil {
		log = slog.Default()
	}
	return &workItemRepo{db: db, log: log}
}

const claimPostgres = `
UPDATE stage_table SET status = 'IN_PROGRESS', claimed_at = $1
WHERE id IN (
	SELECT id FROM stage_table WHERE status = 'PENDING'
	ORDER BY random() LIMIT $2
	FOR UPDATE SKIP LOCKED
)
RETURNING id, file_name, source_query, options`

const claimSQLite = `
UPDATE stage_table SET status = 'IN_PROGRESS', claimed_at = ?
WHERE id IN (
	SELECT id FROM stage_table WHERE status = 'PENDING'
	ORDER BY random() LIMIT ?
)
RETURNING id, file_name, source_query, options`

func (r *workItemRepo) Claim(ctx context.Context, limit int) ([]*entity.WorkItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := claimPostgres
	if r.db.Dialect == DialectSQLite {
		q = claimSQLite
	}
	now := time.Now().UTC()

	rows, err := r.db.SQL.QueryContext(ctx, q, now, limit)
	if err != nil {
		r.log.Error("claim failed", "limit", limit, "err", err)
		return nil, fmt.Errorf("claim work items: %w", err)
	}
	defer rows.Close()

	var items []*entity.WorkItem
	for rows.Next() {
		var (
			id      string
			item    entity.WorkItem
			options sql.NullString
		)
		if err := rows.Scan(&id, &item.FileName, &item.SourceQuery, &options); err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}
		item.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse claimed id %q: %w", id, err)
		}
		if options.Valid && options.String != "" {
			item.Options = json.RawMessage(options.String)
		}
		item.Status = string(constants.StatusInProgress)
		item.ClaimedAt = &now
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed rows: %w", err)
	}
	r.log.Info("claimed work items", "requested", limit, "claimed", len(items))
	return items, nil
}

func (r *workItemRepo) ReclaimExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	q := `SELECT id, claimed_at FROM stage_table WHERE status = 'IN_PROGRESS'`
	rows, err := r.db.SQL.QueryContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("list in-progress items: %w", err)
	}
	defer rows.Close()

	cutoff := time.Now().UTC().Add(-ttl)
	var expired []string
	for rows.Next() {
		var (
			id        string
			claimedAt sql.NullTime
		)
		if err := rows.Scan(&id, &claimedAt); err != nil {
			return 0, fmt.Errorf("scan in-progress row: %w", err)
		}
		// Rows without a claimed_at predate the lease column; treat them
		// as expired so they are not stuck forever.
		if !claimedAt.Valid || claimedAt.Time.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate in-progress rows: %w", err)
	}

	reclaimed := 0
	for _, id := range expired {
		upd := `UPDATE stage_table SET status = 'PENDING', claimed_at = NULL
			WHERE id = $1 AND status = 'IN_PROGRESS'`
		if r.db.Dialect == DialectSQLite {
			upd = `UPDATE stage_table SET status = 'PENDING', claimed_at = NULL
			WHERE id = ? AND status = 'IN_PROGRESS'`
		}
		res, err := r.db.SQL.ExecContext(ctx, upd, id)
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim item %s: %w", id, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			reclaimed += int(n)
		}
	}
	if reclaimed > 0 {
		r.log.Warn("reclaimed expired leases", "count", reclaimed, "ttl", ttl)
	}
	return reclaimed, nil
}

func (r *workItemRepo) Insert(ctx context.Context, item *entity.WorkItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Status == "" {
		item.Status = string(constants.StatusPending)
	}
	var options any
	if len(item.Options) > 0 {
		options = string(item.Options)
	}
	q := `INSERT INTO stage_table (id, file_name, source_query, options, status)
		VALUES ($1, $2, $3, $4, $5)`
	if r.db.Dialect == DialectSQLite {
		q = `INSERT INTO stage_table (id, file_name, source_query, options, status)
		VALUES (?, ?, ?, ?, ?)`
	}
	if _, err := r.db.SQL.ExecContext(ctx, q, item.ID.String(), item.FileName, item.SourceQuery, options, item.Status); err != nil {
		r.log.Error("insert work item failed", "id", item.ID, "err", err)
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

func (r *workItemRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `SELECT status, COUNT(*) FROM stage_table GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
