package inventory

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// Actor is the user performing an operation.
type Actor struct {
	model.Operator
	Role model.Role
}

// BorrowInput describes a new borrow.
type BorrowInput struct {
	ItemID             string
	Quantity           int
	Borrower           model.Contact
	ExpectedReturnDate time.Time
	Photos             []string
}

// ReturnInput describes a return. ItemID is optional and only cross-checked.
type ReturnInput struct {
	ItemID    string
	HistoryID string
	Forced    bool
	Photos    []string
}

// Outcome is the set of records a borrow-lifecycle operation produced. The
// sync layer stores remote outcomes through ApplyOutcome so that stock and
// history change in one transaction.
type Outcome struct {
	Item    *model.EquipmentItem      `json:"item"`
	History *model.BorrowHistoryEntry `json:"history"`
	Request *model.BorrowRequest      `json:"request"`
}

// Machine performs borrow-lifecycle mutations against the local store.
// Every operation runs in a single store transaction.
type Machine struct {
	store *store.Store
	clock clock.Clock
	log   *slog.Logger
	newID func() string
}

// NewMachine creates a Machine.
func NewMachine(s *store.Store, clk clock.Clock, logger *slog.Logger) *Machine {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{store: s, clock: clk, log: logger, newID: uuid.NewString}
}

// Now returns the machine's current time.
func (m *Machine) Now() time.Time { return m.clock.Now() }

// ValidateBorrow checks the fields every borrow needs.
func ValidateBorrow(in BorrowInput) error {
	if in.ItemID == "" {
		return errs.Validation("item is required")
	}
	if in.Borrower.Name == "" {
		return errs.Validation("borrower name is required")
	}
	if in.ExpectedReturnDate.IsZero() {
		return errs.Validation("expected return date is required")
	}
	return nil
}

// Borrow records a borrow. With requireApproval false the stock is
// decremented and a BORROWING history entry is created; otherwise a PENDING
// request is filed and the item is left unchanged.
func (m *Machine) Borrow(ctx context.Context, actor Actor, in BorrowInput, requireApproval bool) (Outcome, error) {
	if err := ValidateBorrow(in); err != nil {
		return Outcome{}, err
	}

	now := m.clock.Now()
	var out Outcome
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		item, err := tx.GetItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if err := CheckStock(item, in.Quantity); err != nil {
			return err
		}

		if requireApproval {
			req := model.BorrowRequest{
				ID:                 m.newID(),
				ItemID:             item.ID,
				ItemName:           item.Name,
				DepartmentID:       item.DepartmentID,
				Quantity:           in.Quantity,
				Borrower:           in.Borrower,
				Operator:           actor.Operator,
				RequestedAt:        now,
				ExpectedReturnDate: in.ExpectedReturnDate,
				Photos:             in.Photos,
				Status:             model.StatusPending,
			}
			if err := tx.PutBorrowRequest(ctx, req); err != nil {
				return err
			}
			out.Item, out.Request = item, &req
			return nil
		}

		h := model.BorrowHistoryEntry{
			ID:                 m.newID(),
			ItemID:             item.ID,
			ItemName:           item.Name,
			DepartmentID:       item.DepartmentID,
			Quantity:           in.Quantity,
			Borrower:           in.Borrower,
			Operator:           actor.Operator,
			BorrowDate:         now,
			ExpectedReturnDate: in.ExpectedReturnDate,
			Status:             model.StatusBorrowing,
			BorrowPhotos:       in.Photos,
		}
		updated, err := m.take(ctx, tx, item, in.Quantity)
		if err != nil {
			return err
		}
		if err := tx.PutHistory(ctx, h); err != nil {
			return err
		}
		out.Item, out.History = updated, &h
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// take decrements stock. The conditional update refuses to go below zero
// even if the row changed since it was read.
func (m *Machine) take(ctx context.Context, tx *store.Tx, item *model.EquipmentItem, quantity int) (*model.EquipmentItem, error) {
	ok, err := tx.AdjustAvailable(ctx, item.ID, -quantity)
	if err != nil {
		return nil, err
	}
	current, err := tx.GetItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := CheckStock(current, quantity); err != nil {
			return nil, err
		}
		return nil, errs.Validation("insufficient stock")
	}
	return current, nil
}

// Approve approves a PENDING borrow request. Stock is re-validated because
// it may have changed since the request was filed.
func (m *Machine) Approve(ctx context.Context, actor Actor, requestID string) (Outcome, error) {
	now := m.clock.Now()
	var out Outcome
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		req, err := tx.GetBorrowRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || !CanTransition(req.Status, model.StatusApproved) {
			return ErrFinalized()
		}

		item, err := tx.GetItem(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if err := CheckStock(item, req.Quantity); err != nil {
			return err
		}
		updated, err := m.take(ctx, tx, item, req.Quantity)
		if err != nil {
			return err
		}

		h := model.BorrowHistoryEntry{
			ID:                 m.newID(),
			RequestID:          req.ID,
			ItemID:             item.ID,
			ItemName:           item.Name,
			DepartmentID:       item.DepartmentID,
			Quantity:           req.Quantity,
			Borrower:           req.Borrower,
			Operator:           req.Operator,
			BorrowDate:         now,
			ExpectedReturnDate: req.ExpectedReturnDate,
			Status:             model.StatusBorrowing,
			BorrowPhotos:       req.Photos,
		}
		if err := tx.PutHistory(ctx, h); err != nil {
			return err
		}

		req.Status = model.StatusApproved
		req.ReviewedBy = actor.ID
		req.ReviewedAt = &now
		req.HistoryID = h.ID
		if err := tx.PutBorrowRequest(ctx, *req); err != nil {
			return err
		}

		out = Outcome{Item: updated, History: &h, Request: req}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Reject rejects a PENDING borrow request. Stock is not touched.
func (m *Machine) Reject(ctx context.Context, actor Actor, requestID string) (Outcome, error) {
	now := m.clock.Now()
	var out Outcome
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		req, err := tx.GetBorrowRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil || !CanTransition(req.Status, model.StatusRejected) {
			return ErrFinalized()
		}
		req.Status = model.StatusRejected
		req.ReviewedBy = actor.ID
		req.ReviewedAt = &now
		if err := tx.PutBorrowRequest(ctx, *req); err != nil {
			return err
		}
		out.Request = req
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// Return closes a BORROWING or OVERDUE_NOT_RETURNED entry and restores
// its quantity to the item, capped at the item's total.
func (m *Machine) Return(ctx context.Context, actor Actor, in ReturnInput) (Outcome, error) {
	if err := CheckReturnEvidence(actor.Role, in.Forced, in.Photos); err != nil {
		return Outcome{}, err
	}

	now := m.clock.Now()
	var out Outcome
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		h, err := tx.GetHistory(ctx, in.HistoryID)
		if err != nil {
			return err
		}
		if h == nil {
			return ErrFinalized()
		}
		if in.ItemID != "" && in.ItemID != h.ItemID {
			return errs.Validation("borrow record does not belong to this item")
		}
		next := ReturnStatus(h.Status, now, h.ExpectedReturnDate)
		if !CanTransition(h.Status, next) {
			return ErrFinalized()
		}

		h.Status = next
		h.ReturnDate = &now
		h.ReturnPhotos = in.Photos
		if in.Forced {
			h.ForcedReturnBy = actor.Name
		}
		if err := tx.PutHistory(ctx, *h); err != nil {
			return err
		}

		item, err := tx.GetItem(ctx, h.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			m.log.Warn("returned item no longer exists", "item", h.ItemID, "history", h.ID)
			out.History = h
			return nil
		}
		restore := min(h.Quantity, item.Borrowed())
		if restore > 0 {
			if _, err := tx.AdjustAvailable(ctx, item.ID, restore); err != nil {
				return err
			}
			if item, err = tx.GetItem(ctx, item.ID); err != nil {
				return err
			}
		}
		out.Item, out.History = item, h
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// SweepOverdue marks every BORROWING entry past its expected return date
// as OVERDUE_NOT_RETURNED and returns the affected IDs. Running it again
// without new overdue entries changes nothing.
func (m *Machine) SweepOverdue(ctx context.Context) ([]string, error) {
	now := m.clock.Now()
	var ids []string
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		overdue, err := tx.ListOverdue(ctx, now)
		if err != nil {
			return err
		}
		for _, h := range overdue {
			h.Status = model.StatusOverdueNotReturned
			if err := tx.PutHistory(ctx, h); err != nil {
				return err
			}
			ids = append(ids, h.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		m.log.Info("marked borrows overdue", "count", len(ids))
	}
	return ids, nil
}

// ApplyOutcome stores records produced by the remote service in one
// transaction.
func (m *Machine) ApplyOutcome(ctx context.Context, out Outcome) error {
	return m.store.Update(ctx, func(tx *store.Tx) error {
		return ApplyOutcomeTx(ctx, tx, out)
	})
}

// ApplyOutcomeTx stores out inside an existing transaction.
func ApplyOutcomeTx(ctx context.Context, tx *store.Tx, out Outcome) error {
	if out.Item != nil {
		if err := tx.PutItem(ctx, *out.Item); err != nil {
			return err
		}
	}
	if out.History != nil {
		if err := tx.PutHistory(ctx, *out.History); err != nil {
			return err
		}
	}
	if out.Request != nil {
		if err := tx.PutBorrowRequest(ctx, *out.Request); err != nil {
			return err
		}
	}
	return nil
}
