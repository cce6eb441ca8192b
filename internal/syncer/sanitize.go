package syncer

import (
	"log/slog"
	"time"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
)

// Every field from the service may be missing. Missing strings become "",
// missing numbers 0, and missing enums take a fallback value. Records
// without an ID cannot be stored and are dropped.

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func flag(p *bool) bool {
	return p != nil && *p
}

func when(p *time.Time) time.Time {
	if p == nil {
		return time.Time{}
	}
	return p.UTC()
}

func whenPtr(p *time.Time) *time.Time {
	if p == nil || p.IsZero() {
		return nil
	}
	t := p.UTC()
	return &t
}

func strs(in []*string) []string {
	var out []string
	for _, s := range in {
		if s != nil && *s != "" {
			out = append(out, *s)
		}
	}
	return out
}

func sanitizeAll[W, T any](log *slog.Logger, family model.Family, in []W, convert func(W) (T, bool)) []T {
	out := make([]T, 0, len(in))
	dropped := 0
	for _, w := range in {
		v, ok := convert(w)
		if !ok {
			dropped++
			continue
		}
		out = append(out, v)
	}
	if dropped > 0 {
		log.Warn("dropped records without id", "family", family, "count", dropped)
	}
	return out
}

func sanitizeItem(w remote.Item) (model.EquipmentItem, bool) {
	if str(w.ID) == "" {
		return model.EquipmentItem{}, false
	}
	total := max(0, num(w.TotalQuantity))
	return model.EquipmentItem{
		ID:                str(w.ID),
		Name:              str(w.Name),
		Description:       str(w.Description),
		CategoryID:        str(w.CategoryID),
		DepartmentID:      str(w.DepartmentID),
		TotalQuantity:     total,
		AvailableQuantity: min(max(0, num(w.AvailableQuantity)), total),
		RequiresApproval:  flag(w.RequiresApproval),
		ImageRef:          str(w.ImageRef),
		UpdatedAt:         when(w.UpdatedAt),
	}, true
}

func sanitizeCategory(w remote.Category) (model.Category, bool) {
	if str(w.ID) == "" {
		return model.Category{}, false
	}
	return model.Category{ID: str(w.ID), Name: str(w.Name)}, true
}

func sanitizeDepartment(w remote.Department) (model.Department, bool) {
	if str(w.ID) == "" {
		return model.Department{}, false
	}
	return model.Department{ID: str(w.ID), Name: str(w.Name), ParentID: str(w.ParentID)}, true
}

func sanitizeUser(w remote.User) (model.User, bool) {
	if str(w.ID) == "" {
		return model.User{}, false
	}
	role := model.Role(str(w.Role))
	if !role.Valid() {
		role = model.RoleNormalUser
	}
	status := model.UserStatus(str(w.Status))
	if !status.Valid() {
		status = model.UserStatusNormal
	}
	return model.User{
		ID:             str(w.ID),
		Name:           str(w.Name),
		Contact:        str(w.Contact),
		DepartmentID:   str(w.DepartmentID),
		Role:           role,
		Status:         status,
		InvitationCode: str(w.InvitationCode),
	}, true
}

func sanitizeContact(w *remote.Contact) model.Contact {
	if w == nil {
		return model.Contact{}
	}
	return model.Contact{Name: str(w.Name), Contact: str(w.Contact)}
}

func sanitizeOperator(w *remote.Operator) model.Operator {
	if w == nil {
		return model.Operator{}
	}
	return model.Operator{ID: str(w.ID), Name: str(w.Name), Contact: str(w.Contact)}
}

func sanitizeHistory(w remote.HistoryEntry) (model.BorrowHistoryEntry, bool) {
	if str(w.ID) == "" {
		return model.BorrowHistoryEntry{}, false
	}
	returned := whenPtr(w.ReturnDate)
	status := model.BorrowStatus(str(w.Status))
	if !status.Valid() || status.IsRequestStatus() {
		status = model.StatusBorrowing
		if returned != nil {
			status = model.StatusReturned
		}
	}
	return model.BorrowHistoryEntry{
		ID:                 str(w.ID),
		RequestID:          str(w.RequestID),
		ItemID:             str(w.ItemID),
		ItemName:           str(w.ItemName),
		DepartmentID:       str(w.DepartmentID),
		Quantity:           max(0, num(w.Quantity)),
		Borrower:           sanitizeContact(w.Borrower),
		Operator:           sanitizeOperator(w.Operator),
		BorrowDate:         when(w.BorrowDate),
		ExpectedReturnDate: when(w.ExpectedReturnDate),
		ReturnDate:         returned,
		Status:             status,
		BorrowPhotos:       strs(w.BorrowPhotos),
		ReturnPhotos:       strs(w.ReturnPhotos),
		ForcedReturnBy:     str(w.ForcedReturnBy),
	}, true
}

func sanitizeRequest(w remote.BorrowRequest) (model.BorrowRequest, bool) {
	if str(w.ID) == "" {
		return model.BorrowRequest{}, false
	}
	status := model.BorrowStatus(str(w.Status))
	if !status.IsRequestStatus() {
		status = model.StatusPending
	}
	return model.BorrowRequest{
		ID:                 str(w.ID),
		ItemID:             str(w.ItemID),
		ItemName:           str(w.ItemName),
		DepartmentID:       str(w.DepartmentID),
		Quantity:           max(0, num(w.Quantity)),
		Borrower:           sanitizeContact(w.Borrower),
		Operator:           sanitizeOperator(w.Operator),
		RequestedAt:        when(w.RequestedAt),
		ExpectedReturnDate: when(w.ExpectedReturnDate),
		Photos:             strs(w.Photos),
		Status:             status,
		ReviewedBy:         str(w.ReviewedBy),
		ReviewedAt:         whenPtr(w.ReviewedAt),
		HistoryID:          str(w.HistoryID),
	}, true
}

func sanitizeRegistration(w remote.Registration) (model.RegistrationRequest, bool) {
	if str(w.ID) == "" {
		return model.RegistrationRequest{}, false
	}
	return model.RegistrationRequest{
		ID:             str(w.ID),
		Name:           str(w.Name),
		Contact:        str(w.Contact),
		DepartmentID:   str(w.DepartmentID),
		InviterID:      str(w.InviterID),
		InvitationCode: str(w.InvitationCode),
		CreatedAt:      when(w.CreatedAt),
		Password:       passwordHash(w.PasswordHash),
	}, true
}

// passwordHash keeps a remote password only if it is a bcrypt hash.
func passwordHash(v *string) string {
	if h := str(v); auth.IsHash(h) {
		return h
	}
	return ""
}

// sanitizeOutcome converts a remote borrow-lifecycle result. Parts
// without an ID are left out.
func sanitizeOutcome(w *remote.Outcome) inventory.Outcome {
	var out inventory.Outcome
	if w == nil {
		return out
	}
	if w.Item != nil {
		if item, ok := sanitizeItem(*w.Item); ok {
			out.Item = &item
		}
	}
	if w.History != nil {
		if h, ok := sanitizeHistory(*w.History); ok {
			out.History = &h
		}
	}
	if w.Request != nil {
		if r, ok := sanitizeRequest(*w.Request); ok {
			out.Request = &r
		}
	}
	return out
}

// SanitizeUser converts a user returned by a remote write.
func SanitizeUser(w *remote.User) (model.User, error) {
	return one(w, sanitizeUser)
}

// SanitizeOutcome converts a remote borrow-lifecycle result.
func SanitizeOutcome(w *remote.Outcome) inventory.Outcome {
	return sanitizeOutcome(w)
}
