package syncer

import (
	"context"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

// Borrows reconciles borrow history and borrow requests and performs the
// borrow lifecycle.
type Borrows struct{ l *Layer }

// Borrows returns the borrow unit.
func (l *Layer) Borrows() *Borrows { return &Borrows{l: l} }

// SyncHistory refreshes the borrow history of a department ("" for all).
// The whole scope is replaced by the server's copy.
func (u *Borrows) SyncHistory(ctx context.Context, departmentID string) <-chan Result[[]model.BorrowHistoryEntry] {
	s := u.l.store
	return run(ctx, u.l, scopeSync[remote.HistoryEntry, model.BorrowHistoryEntry]{
		family: model.FamilyBorrowHistory,
		scope:  departmentID,
		fetch: func(ctx context.Context) ([]remote.HistoryEntry, error) {
			return u.l.remote.ListHistory(ctx, departmentID)
		},
		convert: sanitizeHistory,
		local: func(ctx context.Context) ([]model.BorrowHistoryEntry, error) {
			return s.ListHistory(ctx, departmentID)
		},
		replace: func(ctx context.Context, tx *store.Tx, rows []model.BorrowHistoryEntry) error {
			return tx.ReplaceHistory(ctx, departmentID, rows)
		},
	})
}

// SyncRequests refreshes the borrow requests of a department ("" for all).
func (u *Borrows) SyncRequests(ctx context.Context, departmentID string) <-chan Result[[]model.BorrowRequest] {
	s := u.l.store
	return run(ctx, u.l, scopeSync[remote.BorrowRequest, model.BorrowRequest]{
		family: model.FamilyBorrowRequests,
		scope:  departmentID,
		fetch: func(ctx context.Context) ([]remote.BorrowRequest, error) {
			return u.l.remote.ListBorrowRequests(ctx, departmentID)
		},
		convert: sanitizeRequest,
		local: func(ctx context.Context) ([]model.BorrowRequest, error) {
			return s.ListBorrowRequests(ctx, departmentID)
		},
		replace: func(ctx context.Context, tx *store.Tx, rows []model.BorrowRequest) error {
			return tx.ReplaceBorrowRequests(ctx, departmentID, rows)
		},
	})
}

// WatchHistory subscribes to cached history of a department.
func (u *Borrows) WatchHistory(ctx context.Context, departmentID string) (*store.Live[model.BorrowHistoryEntry], error) {
	return u.l.store.WatchHistory(ctx, departmentID)
}

// WatchRequests subscribes to cached borrow requests of a department.
func (u *Borrows) WatchRequests(ctx context.Context, departmentID string) (*store.Live[model.BorrowRequest], error) {
	return u.l.store.WatchBorrowRequests(ctx, departmentID)
}

// GetHistory returns a cached history entry, or nil.
func (u *Borrows) GetHistory(ctx context.Context, id string) (*model.BorrowHistoryEntry, error) {
	return u.l.store.GetHistory(ctx, id)
}

func applyOutcome(ctx context.Context, tx *store.Tx, out inventory.Outcome) error {
	return inventory.ApplyOutcomeTx(ctx, tx, out)
}

// Borrow borrows an item. In connected mode the service decides whether
// the borrow is immediate or needs approval, and a failure is returned
// without touching the local store. In local-only mode the borrow is
// always immediate.
func (u *Borrows) Borrow(ctx context.Context, in inventory.BorrowInput) (inventory.Outcome, error) {
	if err := inventory.ValidateBorrow(in); err != nil {
		return inventory.Outcome{}, err
	}
	if in.Quantity < 1 {
		return inventory.Outcome{}, errs.Validation("quantity must be at least 1")
	}
	return Mutate(ctx, u.l, Mutation[inventory.Outcome]{
		Family: model.FamilyBorrowHistory,
		Op:     OpBorrow,
		Remote: func(ctx context.Context) (inventory.Outcome, error) {
			w, err := u.l.remote.Borrow(ctx, remote.BorrowInput{
				ItemID:             in.ItemID,
				Quantity:           in.Quantity,
				Borrower:           in.Borrower,
				ExpectedReturnDate: in.ExpectedReturnDate,
				Photos:             in.Photos,
			})
			if err != nil {
				return inventory.Outcome{}, err
			}
			return sanitizeOutcome(w), nil
		},
		Apply: applyOutcome,
		Local: func(ctx context.Context, t session.Ticket) (inventory.Outcome, error) {
			a, err := actor(t)
			if err != nil {
				return inventory.Outcome{}, err
			}
			return u.l.machine.Borrow(ctx, a, in, false)
		},
	})
}

// Return returns a borrowed item. Return evidence is checked before the
// service is contacted. If the service cannot be reached the return is
// recorded locally.
func (u *Borrows) Return(ctx context.Context, in inventory.ReturnInput) (inventory.Outcome, error) {
	if p, ok := u.l.session.Principal(); ok {
		if err := inventory.CheckReturnEvidence(p.Role, in.Forced, in.Photos); err != nil {
			return inventory.Outcome{}, err
		}
	}
	return Mutate(ctx, u.l, Mutation[inventory.Outcome]{
		Family: model.FamilyBorrowHistory,
		Op:     OpReturn,
		Remote: func(ctx context.Context) (inventory.Outcome, error) {
			w, err := u.l.remote.Return(ctx, in.HistoryID, remote.ReturnInput{
				ItemID: in.ItemID,
				Forced: in.Forced,
				Photos: in.Photos,
			})
			if err != nil {
				return inventory.Outcome{}, err
			}
			return sanitizeOutcome(w), nil
		},
		Apply: applyOutcome,
		Local: func(ctx context.Context, t session.Ticket) (inventory.Outcome, error) {
			a, err := actor(t)
			if err != nil {
				return inventory.Outcome{}, err
			}
			return u.l.machine.Return(ctx, a, in)
		},
	})
}
