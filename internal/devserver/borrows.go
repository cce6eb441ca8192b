package devserver

import (
	"context"
	"net/http"

	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/remote"
)

// listHistory handles GET /api/borrows.
func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListHistory(r.Context(), r.URL.Query().Get("department_id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list(entries))
}

// borrow handles POST /api/borrows. Items that require approval file a
// request unless the operator is an administrator.
func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var req remote.BorrowInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	actor := actorOf(r)
	item, err := s.store.GetItem(ctx, req.ItemID)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	requireApproval := item != nil && inventory.NeedsApproval(item, actor.Role)

	out, err := s.machine.Borrow(ctx, actor, inventory.BorrowInput{
		ItemID:             req.ItemID,
		Quantity:           req.Quantity,
		Borrower:           req.Borrower,
		ExpectedReturnDate: req.ExpectedReturnDate,
		Photos:             req.Photos,
	}, requireApproval)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, out)
}

// returnItem handles POST /api/borrows/{id}/return.
func (s *Server) returnItem(w http.ResponseWriter, r *http.Request) {
	var req remote.ReturnInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := s.machine.Return(r.Context(), actorOf(r), inventory.ReturnInput{
		ItemID:    req.ItemID,
		HistoryID: r.PathValue("id"),
		Forced:    req.Forced,
		Photos:    req.Photos,
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// listBorrowRequests handles GET /api/borrow-requests.
func (s *Server) listBorrowRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.store.ListBorrowRequests(r.Context(), r.URL.Query().Get("department_id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list(requests))
}

// approveBorrow handles POST /api/borrow-requests/{id}/approve.
func (s *Server) approveBorrow(w http.ResponseWriter, r *http.Request) {
	out, err := s.machine.Approve(r.Context(), actorOf(r), r.PathValue("id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// rejectBorrow handles POST /api/borrow-requests/{id}/reject.
func (s *Server) rejectBorrow(w http.ResponseWriter, r *http.Request) {
	out, err := s.machine.Reject(r.Context(), actorOf(r), r.PathValue("id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// SweepOverdue marks overdue borrows on the server.
func (s *Server) SweepOverdue(ctx context.Context) ([]string, error) {
	return s.machine.SweepOverdue(ctx)
}
