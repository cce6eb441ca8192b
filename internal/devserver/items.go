package devserver

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/store"
)

// listItems handles GET /api/items.
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context(), r.URL.Query().Get("department_id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list(items))
}

// createItem handles POST /api/items.
func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req remote.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item := model.EquipmentItem{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Description:       req.Description,
		CategoryID:        req.CategoryID,
		DepartmentID:      req.DepartmentID,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
		RequiresApproval:  req.RequiresApproval,
		ImageRef:          req.ImageRef,
		UpdatedAt:         s.clock.Now(),
	}
	if err := inventory.ValidateItem(item); err != nil {
		s.failure(w, r, err)
		return
	}
	if err := s.store.Update(r.Context(), func(tx *store.Tx) error { return tx.PutItem(r.Context(), item) }); err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// updateItem handles PUT /api/items/{id}. A new total shifts the
// available quantity by the same amount.
func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req remote.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	ctx := r.Context()
	var out model.EquipmentItem
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return errs.NotFound("item not found")
		}
		item, err := inventory.Resize(*existing, req.TotalQuantity)
		if err != nil {
			return err
		}
		item.Name = req.Name
		item.Description = req.Description
		item.CategoryID = req.CategoryID
		item.DepartmentID = req.DepartmentID
		item.RequiresApproval = req.RequiresApproval
		item.ImageRef = req.ImageRef
		item.UpdatedAt = s.clock.Now()
		out = item
		return tx.PutItem(ctx, item)
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// deleteItem handles DELETE /api/items/{id}.
func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return errs.NotFound("item not found")
		}
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
