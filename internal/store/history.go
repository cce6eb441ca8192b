package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/izposoja/internal/model"
)

const historyColumns = `id, request_id, item_id, item_name, department_id, quantity,
	borrower_name, borrower_contact, operator_id, operator_name, operator_contact,
	borrow_date, expected_return_date, return_date, status,
	borrow_photos, return_photos, forced_return_by`

func scanHistory(row rowScanner) (model.BorrowHistoryEntry, error) {
	var h model.BorrowHistoryEntry
	var borrowDate, expected int64
	var returnDate sql.NullInt64
	var borrowPhotos, returnPhotos string
	err := row.Scan(&h.ID, &h.RequestID, &h.ItemID, &h.ItemName, &h.DepartmentID, &h.Quantity,
		&h.Borrower.Name, &h.Borrower.Contact, &h.Operator.ID, &h.Operator.Name, &h.Operator.Contact,
		&borrowDate, &expected, &returnDate, &h.Status,
		&borrowPhotos, &returnPhotos, &h.ForcedReturnBy)
	h.BorrowDate = fromMillis(borrowDate)
	h.ExpectedReturnDate = fromMillis(expected)
	h.ReturnDate = fromNullMillis(returnDate)
	h.BorrowPhotos = decodeList(borrowPhotos)
	h.ReturnPhotos = decodeList(returnPhotos)
	return h, err
}

func (tx *Tx) queryHistory(ctx context.Context, query string, args ...any) ([]model.BorrowHistoryEntry, error) {
	rows, err := tx.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrow history: %w", err)
	}
	defer rows.Close()

	var entries []model.BorrowHistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow history: %w", err)
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// GetHistory returns a history entry by ID, or nil if it is not cached.
func (tx *Tx) GetHistory(ctx context.Context, id string) (*model.BorrowHistoryEntry, error) {
	h, err := scanHistory(tx.q.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM borrow_history WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow history: %w", err)
	}
	return &h, nil
}

// ListHistory returns history of a department ("" for all), newest first.
func (tx *Tx) ListHistory(ctx context.Context, departmentID string) ([]model.BorrowHistoryEntry, error) {
	query, args := scopeFilter(`SELECT `+historyColumns+` FROM borrow_history WHERE 1=1`, departmentID, nil)
	return tx.queryHistory(ctx, query+` ORDER BY borrow_date DESC, id`, args...)
}

// ListOverdue returns open BORROWING entries whose expected return date is
// before now.
func (tx *Tx) ListOverdue(ctx context.Context, now time.Time) ([]model.BorrowHistoryEntry, error) {
	return tx.queryHistory(ctx,
		`SELECT `+historyColumns+` FROM borrow_history
		 WHERE status = ? AND expected_return_date < ?
		 ORDER BY expected_return_date, id`,
		model.StatusBorrowing, now.UnixMilli(),
	)
}

// PutHistory inserts or replaces a history entry.
func (tx *Tx) PutHistory(ctx context.Context, h model.BorrowHistoryEntry) error {
	if err := tx.write(model.FamilyBorrowHistory); err != nil {
		return err
	}
	borrowPhotos, err := encodeList(h.BorrowPhotos)
	if err != nil {
		return err
	}
	returnPhotos, err := encodeList(h.ReturnPhotos)
	if err != nil {
		return err
	}
	_, err = tx.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO borrow_history (`+historyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.RequestID, h.ItemID, h.ItemName, h.DepartmentID, h.Quantity,
		h.Borrower.Name, h.Borrower.Contact, h.Operator.ID, h.Operator.Name, h.Operator.Contact,
		millis(h.BorrowDate), millis(h.ExpectedReturnDate), nullMillis(h.ReturnDate), h.Status,
		borrowPhotos, returnPhotos, h.ForcedReturnBy,
	)
	if err != nil {
		return fmt.Errorf("putting borrow history: %w", err)
	}
	return nil
}

// ReplaceHistory replaces every cached history entry of a department (all
// entries when departmentID is empty).
func (tx *Tx) ReplaceHistory(ctx context.Context, departmentID string, entries []model.BorrowHistoryEntry) error {
	if err := tx.write(model.FamilyBorrowHistory); err != nil {
		return err
	}
	query, args := scopeFilter(`DELETE FROM borrow_history WHERE 1=1`, departmentID, nil)
	if _, err := tx.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing borrow history: %w", err)
	}
	for _, h := range entries {
		if err := tx.PutHistory(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// GetHistory returns a history entry by ID, or nil if it is not cached.
func (s *Store) GetHistory(ctx context.Context, id string) (*model.BorrowHistoryEntry, error) {
	return view(ctx, s, func(tx *Tx) (*model.BorrowHistoryEntry, error) { return tx.GetHistory(ctx, id) })
}

// ListHistory returns cached history of a department ("" for all).
func (s *Store) ListHistory(ctx context.Context, departmentID string) ([]model.BorrowHistoryEntry, error) {
	return view(ctx, s, func(tx *Tx) ([]model.BorrowHistoryEntry, error) { return tx.ListHistory(ctx, departmentID) })
}
