package devserver

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/store"
)

// listCategories handles GET /api/categories.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list(categories))
}

// createCategory handles POST /api/categories.
func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req remote.NamedInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	c := model.Category{ID: uuid.NewString(), Name: req.Name}
	if err := s.store.Update(r.Context(), func(tx *store.Tx) error { return tx.PutCategory(r.Context(), c) }); err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// deleteCategory handles DELETE /api/categories/{id}.
func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Update(r.Context(), func(tx *store.Tx) error { return tx.DeleteCategory(r.Context(), id) }); err != nil {
		s.failure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listDepartments handles GET /api/departments.
func (s *Server) listDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.store.ListDepartments(r.Context())
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list(departments))
}

// createDepartment handles POST /api/departments.
func (s *Server) createDepartment(w http.ResponseWriter, r *http.Request) {
	var req remote.NamedInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	d := model.Department{ID: uuid.NewString(), Name: req.Name, ParentID: req.ParentID}
	if err := s.store.Update(r.Context(), func(tx *store.Tx) error { return tx.PutDepartment(r.Context(), d) }); err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, d)
}

// updateDepartment handles PUT /api/departments/{id}.
func (s *Server) updateDepartment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req remote.NamedInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	ctx := r.Context()
	d := model.Department{ID: id, Name: req.Name, ParentID: req.ParentID}
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.GetDepartment(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return errs.NotFound("department not found")
		}
		return tx.PutDepartment(ctx, d)
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, d)
}

// deleteDepartment handles DELETE /api/departments/{id}.
func (s *Server) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Update(r.Context(), func(tx *store.Tx) error { return tx.DeleteDepartment(r.Context(), id) }); err != nil {
		s.failure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
