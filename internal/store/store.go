// Package store is the local persistent cache of domain entities. All
// mutations go through Update, which commits atomically and then notifies
// live queries of the families it touched.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
)

// Store wraps the local database.
type Store struct {
	db  *sql.DB
	log *slog.Logger
	hub *hub

	// writeMu serializes write transactions so check-then-update sequences
	// (stock checks) cannot interleave.
	writeMu sync.Mutex
}

// New creates a Store over an open, migrated database.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger, hub: newHub()}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a read view or a write transaction over the store.
type Tx struct {
	q        querier
	writable bool
	touched  map[model.Family]bool
}

var errReadOnly = errors.New("write attempted in read-only view")

func (tx *Tx) write(f model.Family) error {
	if !tx.writable {
		return errReadOnly
	}
	tx.touched[f] = true
	return nil
}

// View runs fn against the database without a transaction.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := fn(&Tx{q: s.db}); err != nil {
		return classify("reading local store", err)
	}
	return nil
}

// Update runs fn inside a single transaction. If fn returns an error the
// transaction is rolled back; otherwise it is committed and every family
// fn wrote to is published to live queries.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("beginning transaction", err)
	}
	defer sqlTx.Rollback()

	tx := &Tx{q: sqlTx, writable: true, touched: map[model.Family]bool{}}
	if err := fn(tx); err != nil {
		return classify("updating local store", err)
	}

	if err := sqlTx.Commit(); err != nil {
		return errs.Storage("committing transaction", err)
	}

	families := make([]model.Family, 0, len(tx.touched))
	for f := range tx.touched {
		families = append(families, f)
	}
	s.hub.publish(families...)
	return nil
}

// classify passes classified errors through and marks the rest as storage
// failures.
func classify(op string, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Storage(op, err)
}

func view[T any](ctx context.Context, s *Store, fn func(tx *Tx) (T, error)) (T, error) {
	var out T
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

// Times are stored as Unix milliseconds; zero means unset.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}

func encodeList(list []string) (string, error) {
	if len(list) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(data), nil
}

func decodeList(s string) []string {
	var list []string
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil
	}
	return list
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// scopeFilter appends a department filter to query when departmentID is set.
func scopeFilter(query, departmentID string, args []any) (string, []any) {
	if departmentID == "" {
		return query, args
	}
	return query + ` AND department_id = ?`, append(args, departmentID)
}
