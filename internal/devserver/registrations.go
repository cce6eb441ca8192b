package devserver

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/store"
)

// registrationBody is a registration as the API returns it. The password
// only travels as its bcrypt hash.
type registrationBody struct {
	model.RegistrationRequest
	PasswordHash string `json:"password_hash,omitempty"`
}

func newRegistrationBody(reg model.RegistrationRequest) registrationBody {
	hash := reg.Password
	reg.Password = ""
	return registrationBody{RegistrationRequest: reg, PasswordHash: hash}
}

// listRegistrations handles GET /api/registrations.
func (s *Server) listRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := s.store.ListRegistrations(r.Context(), r.URL.Query().Get("department_id"))
	if err != nil {
		s.failure(w, r, err)
		return
	}
	out := make([]registrationBody, 0, len(regs))
	for _, reg := range regs {
		out = append(out, newRegistrationBody(reg))
	}
	jsonResponse(w, http.StatusOK, out)
}

// createRegistration handles POST /api/registrations. No token is needed.
func (s *Server) createRegistration(w http.ResponseWriter, r *http.Request) {
	var req remote.RegistrationInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Contact == "" {
		jsonError(w, http.StatusBadRequest, "name and contact required")
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
	reg := model.RegistrationRequest{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Contact:        req.Contact,
		DepartmentID:   req.DepartmentID,
		Password:       hash,
		InviterID:      req.InviterID,
		InvitationCode: req.InvitationCode,
		CreatedAt:      s.clock.Now(),
	}

	ctx := r.Context()
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		existing, err := tx.GetUserByContact(ctx, reg.Contact)
		if err != nil {
			return err
		}
		if existing != nil {
			return errs.New(errs.KindConflict, "contact already registered")
		}
		return tx.PutRegistration(ctx, reg)
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, newRegistrationBody(reg))
}

// approveRegistration handles POST /api/registrations/{id}/approve.
func (s *Server) approveRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var u model.User
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		u, err = inventory.MaterializeRegistration(ctx, tx, r.PathValue("id"), uuid.NewString())
		return err
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.log.Info("registration approved", "user", u.ID, "by", GetClaims(ctx).UserID)
	jsonResponse(w, http.StatusOK, u)
}

// rejectRegistration handles POST /api/registrations/{id}/reject.
func (s *Server) rejectRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		return inventory.RejectRegistration(ctx, tx, r.PathValue("id"))
	})
	if err != nil {
		s.failure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
