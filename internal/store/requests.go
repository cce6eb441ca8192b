package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const requestColumns = `id, item_id, item_name, department_id, quantity,
	borrower_name, borrower_contact, operator_id, operator_name, operator_contact,
	requested_at, expected_return_date, photos, status, reviewed_by, reviewed_at, history_id`

func scanRequest(row rowScanner) (model.BorrowRequest, error) {
	var r model.BorrowRequest
	var requestedAt, expected int64
	var reviewedAt sql.NullInt64
	var photos string
	err := row.Scan(&r.ID, &r.ItemID, &r.ItemName, &r.DepartmentID, &r.Quantity,
		&r.Borrower.Name, &r.Borrower.Contact, &r.Operator.ID, &r.Operator.Name, &r.Operator.Contact,
		&requestedAt, &expected, &photos, &r.Status, &r.ReviewedBy, &reviewedAt, &r.HistoryID)
	r.RequestedAt = fromMillis(requestedAt)
	r.ExpectedReturnDate = fromMillis(expected)
	r.ReviewedAt = fromNullMillis(reviewedAt)
	r.Photos = decodeList(photos)
	return r, err
}

// GetBorrowRequest returns a borrow request by ID, or nil if it is not cached.
func (tx *Tx) GetBorrowRequest(ctx context.Context, id string) (*model.BorrowRequest, error) {
	r, err := scanRequest(tx.q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM borrow_requests WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrow request: %w", err)
	}
	return &r, nil
}

// ListBorrowRequests returns borrow requests of a department ("" for all),
// newest first.
func (tx *Tx) ListBorrowRequests(ctx context.Context, departmentID string) ([]model.BorrowRequest, error) {
	query, args := scopeFilter(`SELECT `+requestColumns+` FROM borrow_requests WHERE 1=1`, departmentID, nil)
	rows, err := tx.q.QueryContext(ctx, query+` ORDER BY requested_at DESC, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrow requests: %w", err)
	}
	defer rows.Close()

	var requests []model.BorrowRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrow request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// PutBorrowRequest inserts or replaces a borrow request.
func (tx *Tx) PutBorrowRequest(ctx context.Context, r model.BorrowRequest) error {
	if err := tx.write(model.FamilyBorrowRequests); err != nil {
		return err
	}
	photos, err := encodeList(r.Photos)
	if err != nil {
		return err
	}
	_, err = tx.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO borrow_requests (`+requestColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ItemID, r.ItemName, r.DepartmentID, r.Quantity,
		r.Borrower.Name, r.Borrower.Contact, r.Operator.ID, r.Operator.Name, r.Operator.Contact,
		millis(r.RequestedAt), millis(r.ExpectedReturnDate), photos, r.Status, r.ReviewedBy, nullMillis(r.ReviewedAt), r.HistoryID,
	)
	if err != nil {
		return fmt.Errorf("putting borrow request: %w", err)
	}
	return nil
}

// ReplaceBorrowRequests replaces every cached borrow request of a department.
func (tx *Tx) ReplaceBorrowRequests(ctx context.Context, departmentID string, requests []model.BorrowRequest) error {
	if err := tx.write(model.FamilyBorrowRequests); err != nil {
		return err
	}
	query, args := scopeFilter(`DELETE FROM borrow_requests WHERE 1=1`, departmentID, nil)
	if _, err := tx.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing borrow requests: %w", err)
	}
	for _, r := range requests {
		if err := tx.PutBorrowRequest(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// GetBorrowRequest returns a borrow request by ID, or nil if it is not cached.
func (s *Store) GetBorrowRequest(ctx context.Context, id string) (*model.BorrowRequest, error) {
	return view(ctx, s, func(tx *Tx) (*model.BorrowRequest, error) { return tx.GetBorrowRequest(ctx, id) })
}

// ListBorrowRequests returns cached borrow requests of a department ("" for all).
func (s *Store) ListBorrowRequests(ctx context.Context, departmentID string) ([]model.BorrowRequest, error) {
	return view(ctx, s, func(tx *Tx) ([]model.BorrowRequest, error) { return tx.ListBorrowRequests(ctx, departmentID) })
}
