// Package approval reviews PENDING registrations and borrow requests.
package approval

import (
	"context"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/syncer"
)

// Minimum roles for reviewing each kind of request.
const (
	RegistrationReviewer = model.RoleAdmin
	BorrowReviewer       = model.RoleAdvancedUser
)

// Workflow approves and rejects pending requests through the sync layer.
type Workflow struct {
	l *syncer.Layer
}

// New creates a Workflow.
func New(l *syncer.Layer) *Workflow {
	return &Workflow{l: l}
}

func (w *Workflow) reviewer(minimum model.Role) (inventory.Actor, error) {
	p, ok := w.l.Session().Principal()
	if !ok {
		return inventory.Actor{}, errs.Unauthorized("sign in required")
	}
	if !model.RoleAtLeast(p.Role, minimum) {
		return inventory.Actor{}, errs.Unauthorized("insufficient permissions")
	}
	return inventory.Actor{Operator: p.Operator(), Role: p.Role}, nil
}

func ticketActor(t session.Ticket, fallback inventory.Actor) inventory.Actor {
	if p, ok := t.Principal(); ok {
		return inventory.Actor{Operator: p.Operator(), Role: p.Role}
	}
	return fallback
}

// ApproveRegistration turns a pending signup into a NORMAL_USER account.
func (w *Workflow) ApproveRegistration(ctx context.Context, id string) (model.User, error) {
	if _, err := w.reviewer(RegistrationReviewer); err != nil {
		return model.User{}, err
	}
	return syncer.Mutate(ctx, w.l, syncer.Mutation[model.User]{
		Family: model.FamilyRegistrations,
		Op:     syncer.OpApprove,
		Remote: func(ctx context.Context) (model.User, error) {
			u, err := w.l.Remote().ApproveRegistration(ctx, id)
			if err != nil {
				return model.User{}, err
			}
			return syncer.SanitizeUser(u)
		},
		Apply: func(ctx context.Context, tx *store.Tx, u model.User) error {
			if err := tx.PutServerUser(ctx, u); err != nil {
				return err
			}
			return tx.DeleteRegistration(ctx, id)
		},
		Local: func(ctx context.Context, _ session.Ticket) (model.User, error) {
			var u model.User
			err := w.l.Store().Update(ctx, func(tx *store.Tx) error {
				var err error
				u, err = inventory.MaterializeRegistration(ctx, tx, id, w.l.NewID())
				return err
			})
			return u, err
		},
	})
}

// RejectRegistration discards a pending signup.
func (w *Workflow) RejectRegistration(ctx context.Context, id string) error {
	if _, err := w.reviewer(RegistrationReviewer); err != nil {
		return err
	}
	_, err := syncer.Mutate(ctx, w.l, syncer.Mutation[struct{}]{
		Family: model.FamilyRegistrations,
		Op:     syncer.OpReject,
		Remote: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, w.l.Remote().RejectRegistration(ctx, id)
		},
		Apply: func(ctx context.Context, tx *store.Tx, _ struct{}) error {
			return tx.DeleteRegistration(ctx, id)
		},
		Local: func(ctx context.Context, _ session.Ticket) (struct{}, error) {
			return struct{}{}, w.l.Store().Update(ctx, func(tx *store.Tx) error {
				return inventory.RejectRegistration(ctx, tx, id)
			})
		},
	})
	return err
}

// ApproveBorrow approves a PENDING borrow request. The stock is checked
// again at approval time.
func (w *Workflow) ApproveBorrow(ctx context.Context, requestID string) (inventory.Outcome, error) {
	a, err := w.reviewer(BorrowReviewer)
	if err != nil {
		return inventory.Outcome{}, err
	}
	return syncer.Mutate(ctx, w.l, syncer.Mutation[inventory.Outcome]{
		Family: model.FamilyBorrowRequests,
		Op:     syncer.OpApprove,
		Remote: func(ctx context.Context) (inventory.Outcome, error) {
			out, err := w.l.Remote().ApproveBorrow(ctx, requestID)
			if err != nil {
				return inventory.Outcome{}, err
			}
			return syncer.SanitizeOutcome(out), nil
		},
		Apply: inventory.ApplyOutcomeTx,
		Local: func(ctx context.Context, t session.Ticket) (inventory.Outcome, error) {
			return w.l.Machine().Approve(ctx, ticketActor(t, a), requestID)
		},
	})
}

// RejectBorrow rejects a PENDING borrow request.
func (w *Workflow) RejectBorrow(ctx context.Context, requestID string) (inventory.Outcome, error) {
	a, err := w.reviewer(BorrowReviewer)
	if err != nil {
		return inventory.Outcome{}, err
	}
	return syncer.Mutate(ctx, w.l, syncer.Mutation[inventory.Outcome]{
		Family: model.FamilyBorrowRequests,
		Op:     syncer.OpReject,
		Remote: func(ctx context.Context) (inventory.Outcome, error) {
			out, err := w.l.Remote().RejectBorrow(ctx, requestID)
			if err != nil {
				return inventory.Outcome{}, err
			}
			return syncer.SanitizeOutcome(out), nil
		},
		Apply: inventory.ApplyOutcomeTx,
		Local: func(ctx context.Context, t session.Ticket) (inventory.Outcome, error) {
			return w.l.Machine().Reject(ctx, ticketActor(t, a), requestID)
		},
	})
}

// Pending lists cached PENDING borrow requests of a department.
func (w *Workflow) Pending(ctx context.Context, departmentID string) ([]model.BorrowRequest, error) {
	all, err := w.l.Store().ListBorrowRequests(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	var pending []model.BorrowRequest
	for _, r := range all {
		if r.Status == model.StatusPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}
