// Package inventory enforces stock invariants and the borrow lifecycle.
//
// Lifecycle:
//
//	PENDING -> APPROVED | REJECTED
//	APPROVED -> BORROWING
//	BORROWING -> RETURNED | OVERDUE_RETURNED | OVERDUE_NOT_RETURNED
//	OVERDUE_NOT_RETURNED -> OVERDUE_RETURNED
//
// REJECTED, RETURNED and OVERDUE_RETURNED are terminal.
package inventory

import (
	"time"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
)

var transitions = map[model.BorrowStatus][]model.BorrowStatus{
	model.StatusPending:            {model.StatusApproved, model.StatusRejected},
	model.StatusApproved:           {model.StatusBorrowing},
	model.StatusBorrowing:          {model.StatusReturned, model.StatusOverdueReturned, model.StatusOverdueNotReturned},
	model.StatusOverdueNotReturned: {model.StatusOverdueReturned},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to model.BorrowStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s model.BorrowStatus) bool {
	return s == model.StatusRejected || s == model.StatusReturned || s == model.StatusOverdueReturned
}

// ErrFinalized is returned for operations on missing or terminal records.
func ErrFinalized() error {
	return errs.NotFound("record not found or already finalized")
}

// ErrNoPassword is returned when a registration carries no password to
// give the new account.
func ErrNoPassword() error {
	return errs.Validation("registration has no password")
}

// CheckStock validates a borrow of quantity against item.
func CheckStock(item *model.EquipmentItem, quantity int) error {
	if item == nil {
		return errs.NotFound("item not found")
	}
	if quantity < 1 {
		return errs.Validation("quantity must be at least 1")
	}
	if quantity > item.AvailableQuantity {
		return errs.Validation("insufficient stock, currently available = %d", item.AvailableQuantity)
	}
	return nil
}

// NeedsApproval reports whether a borrow by role must wait for review.
func NeedsApproval(item *model.EquipmentItem, role model.Role) bool {
	return item.RequiresApproval && !model.RoleAtLeast(role, model.RoleAdmin)
}

// ReturnStatus is the status an entry in status from takes when returned at now.
func ReturnStatus(from model.BorrowStatus, now, expected time.Time) model.BorrowStatus {
	if from == model.StatusOverdueNotReturned || now.After(expected) {
		return model.StatusOverdueReturned
	}
	return model.StatusReturned
}

// CanForceReturn reports whether role may return an item on someone else's behalf.
func CanForceReturn(role model.Role) bool {
	return model.RoleAtLeast(role, model.RoleAdvancedUser)
}

// CheckReturnEvidence enforces the photo requirement. A normal return always
// needs a photo; a forced return needs one when the actor is below ADMIN.
func CheckReturnEvidence(role model.Role, forced bool, photos []string) error {
	if forced && !CanForceReturn(role) {
		return errs.Unauthorized("forced return requires %s or higher", model.RoleAdvancedUser)
	}
	if len(photos) > 0 {
		return nil
	}
	if !forced {
		return errs.Validation("photo evidence is required to return an item")
	}
	if !model.RoleAtLeast(role, model.RoleAdmin) {
		return errs.Validation("photo evidence is required for a forced return below %s", model.RoleAdmin)
	}
	return nil
}

// Resize applies an administrative change of total quantity, shifting the
// available quantity by the same amount so the borrowed count is kept.
func Resize(item model.EquipmentItem, newTotal int) (model.EquipmentItem, error) {
	if newTotal < 0 {
		return item, errs.Validation("total quantity must not be negative")
	}
	available := item.AvailableQuantity + newTotal - item.TotalQuantity
	if available < 0 {
		return item, errs.Validation("total quantity %d is below the %d currently borrowed", newTotal, item.Borrowed())
	}
	item.TotalQuantity = newTotal
	item.AvailableQuantity = available
	return item, nil
}

// ValidateItem checks the fields an administrator sets on an item.
func ValidateItem(item model.EquipmentItem) error {
	if item.Name == "" {
		return errs.Validation("item name is required")
	}
	if item.TotalQuantity < 0 {
		return errs.Validation("total quantity must not be negative")
	}
	if item.AvailableQuantity < 0 || item.AvailableQuantity > item.TotalQuantity {
		return errs.Validation("available quantity must be between 0 and %d", item.TotalQuantity)
	}
	return nil
}
