package devserver

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/store"
)

func withoutPasswords(users []model.User) []model.User {
	for i := range users {
		users[i].Password = ""
	}
	return list(users)
}

// listUsers handles GET /api/users.
func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), r.URL.Query().Get("department_id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, withoutPasswords(users))
}

func validateUserInput(req remote.UserInput) error {
	if req.Name == "" || req.Contact == "" {
		return errs.Validation("name and contact required")
	}
	if req.Role != "" && !model.Role(req.Role).Valid() {
		return errs.Validation("invalid role")
	}
	if req.Status != "" && !model.UserStatus(req.Status).Valid() {
		return errs.Validation("invalid status")
	}
	return nil
}

// createUser handles POST /api/users.
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req remote.UserInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateUserInput(req); err != nil {
		s.failure(w, r, err)
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	u := model.User{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Contact:        req.Contact,
		DepartmentID:   req.DepartmentID,
		Role:           model.Role(req.Role),
		Status:         model.UserStatus(req.Status),
		Password:       hash,
		InvitationCode: req.InvitationCode,
	}
	if u.Role == "" {
		u.Role = model.RoleNormalUser
	}
	if u.Status == "" {
		u.Status = model.UserStatusNormal
	}

	ctx := r.Context()
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.GetUserByContact(ctx, u.Contact)
		if err != nil {
			return err
		}
		if existing != nil {
			return errs.New(errs.KindConflict, "contact already registered")
		}
		return tx.PutUser(ctx, u)
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}

	s.log.Info("user created", "user", u.ID, "role", u.Role, "by", GetClaims(ctx).UserID)
	u.Password = ""
	jsonResponse(w, http.StatusCreated, u)
}

// updateUser handles PUT /api/users/{id}. An empty password keeps the
// current one.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req remote.UserInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validateUserInput(req); err != nil {
		s.failure(w, r, err)
		return
	}

	var hash string
	if req.Password != "" {
		if err := model.ValidatePassword(req.Password); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		var err error
		if hash, err = auth.HashPassword(req.Password); err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
	}

	ctx := r.Context()
	var out model.User
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return errs.NotFound("user not found")
		}
		other, err := tx.GetUserByContact(ctx, req.Contact)
		if err != nil {
			return err
		}
		if other != nil && other.ID != id {
			return errs.New(errs.KindConflict, "contact already registered")
		}

		u := *existing
		u.Name = req.Name
		u.Contact = req.Contact
		u.DepartmentID = req.DepartmentID
		u.InvitationCode = req.InvitationCode
		if req.Role != "" {
			u.Role = model.Role(req.Role)
		}
		if req.Status != "" {
			u.Status = model.UserStatus(req.Status)
		}
		u.Password = hash
		if err := tx.PutUser(ctx, u); err != nil {
			return err
		}
		u.Password = ""
		out = u
		return nil
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, out)
}

// deleteUser handles DELETE /api/users/{id}.
func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	if claims := GetClaims(ctx); claims != nil && claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}
	if err := s.store.Update(ctx, func(tx *store.Tx) error { return tx.DeleteUser(ctx, id) }); err != nil {
		s.failure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
