package syncer

import (
	"context"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

// Op is a kind of mutating operation.
type Op string

const (
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpBorrow  Op = "borrow"
	OpReturn  Op = "return"
	OpApprove Op = "approve"
	OpReject  Op = "reject"
)

// Strategy decides what happens when the remote half of a write fails.
type Strategy int

const (
	// Propagate returns the remote error and leaves the local store alone.
	Propagate Strategy = iota
	// Fallback performs the equivalent local mutation and reports success.
	Fallback
)

func (s Strategy) String() string {
	if s == Fallback {
		return "fallback"
	}
	return "propagate"
}

type policyKey struct {
	family model.Family
	op     Op
}

// policies is the write policy table. Equipment stock and new borrows must
// never fork from the service; the rest may degrade to a local write.
var policies = map[policyKey]Strategy{
	{model.FamilyEquipment, OpCreate}: Propagate,
	{model.FamilyEquipment, OpUpdate}: Propagate,
	{model.FamilyEquipment, OpDelete}: Propagate,

	{model.FamilyCategories, OpCreate}: Fallback,
	{model.FamilyCategories, OpDelete}: Propagate,

	{model.FamilyDepartments, OpCreate}: Fallback,
	{model.FamilyDepartments, OpUpdate}: Fallback,
	{model.FamilyDepartments, OpDelete}: Fallback,

	{model.FamilyUsers, OpCreate}: Fallback,
	{model.FamilyUsers, OpUpdate}: Fallback,
	{model.FamilyUsers, OpDelete}: Fallback,

	{model.FamilyBorrowHistory, OpBorrow}: Propagate,
	{model.FamilyBorrowHistory, OpReturn}: Fallback,

	{model.FamilyBorrowRequests, OpApprove}: Fallback,
	{model.FamilyBorrowRequests, OpReject}:  Fallback,

	{model.FamilyRegistrations, OpCreate}:  Propagate,
	{model.FamilyRegistrations, OpApprove}: Fallback,
	{model.FamilyRegistrations, OpReject}:  Fallback,
}

// StrategyFor returns the policy for an operation. Unlisted operations
// propagate.
func StrategyFor(family model.Family, op Op) Strategy {
	return policies[policyKey{family, op}]
}

// Mutation describes one write. Remote performs the remote call and
// returns its sanitized result, Apply stores that result locally, and
// Local performs the whole mutation against the local store. Local is used
// in local-only mode and, when the policy allows, after a remote failure.
type Mutation[T any] struct {
	Family model.Family
	Op     Op
	Remote func(ctx context.Context) (T, error)
	Apply  func(ctx context.Context, tx *store.Tx, v T) error
	Local  func(ctx context.Context, t session.Ticket) (T, error)
}

// Mutate runs m according to the session mode and the policy table.
func Mutate[T any](ctx context.Context, l *Layer, m Mutation[T]) (T, error) {
	var zero T
	ctx, ticket, stop := l.session.Begin(ctx)
	defer stop()

	if ticket.LocalOnly() {
		unlock := l.locks.lock(m.Family)
		defer unlock()
		v, err := m.Local(ctx, ticket)
		if err != nil {
			return zero, session.Superseded(ctx, err)
		}
		return v, nil
	}

	v, err := m.Remote(ctx)
	if err != nil {
		err = session.Superseded(ctx, err)
		if errs.Is(err, errs.KindSuperseded) {
			l.logFailure("remote write superseded", m.Family, err, "op", m.Op)
			return zero, err
		}
		if StrategyFor(m.Family, m.Op) != Fallback || !errs.CanFallback(err) {
			l.logFailure("remote write failed", m.Family, err, "op", m.Op)
			return zero, err
		}

		l.log.Warn("remote write failed, applying locally",
			"family", m.Family, "op", m.Op, "fallback", true, "error", err)
		unlock := l.locks.lock(m.Family)
		defer unlock()
		if !ticket.Valid() {
			return zero, session.ErrSuperseded
		}
		v, err := m.Local(ctx, ticket)
		if err != nil {
			return zero, session.Superseded(ctx, err)
		}
		return v, nil
	}

	unlock := l.locks.lock(m.Family)
	defer unlock()
	if !ticket.Valid() {
		// The service accepted the write; only the local copy is skipped.
		l.log.Info("remote write superseded, not applying locally", "family", m.Family, "op", m.Op)
		return v, nil
	}
	if m.Apply != nil {
		err := l.store.Update(ctx, func(tx *store.Tx) error { return m.Apply(ctx, tx, v) })
		if err != nil {
			return zero, session.Superseded(ctx, err)
		}
	}
	return v, nil
}
