package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/joseph-ayodele/stage-exporter/internal/common"
)

// ResultSet is a fully materialized query result, stringified for encoding.
type ResultSet struct {
	Columns []string
	Rows    [][]string
}

// QueryRunner executes a work item's source query against the analytical store.
type QueryRunner interface {
	Run(ctx context.Context, query string) (*ResultSet, error)
}

// SQLRunner runs queries over a database/sql handle.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

func NewSQLRunner(db *sql.DB, timeout time.Duration, logger *slog.Logger) *SQLRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLRunner{db: db, timeout: timeout, logger: logger}
}

func (r *SQLRunner) Run(ctx context.Context, query string) (*ResultSet, error) {
	log := r.logger
	if itemID := common.ItemIDFromContext(ctx); itemID != "" {
		log = log.With("item_id", itemID)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("warehouse query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	rs := &ResultSet{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}

	log.Debug("warehouse query complete",
		"columns", len(rs.Columns),
		"rows", len(rs.Rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rs, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
