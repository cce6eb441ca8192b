package syncer

import (
	"context"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

// Registrations reconciles self-service signups awaiting approval.
type Registrations struct{ l *Layer }

// Registrations returns the registration unit.
func (l *Layer) Registrations() *Registrations { return &Registrations{l: l} }

// RegistrationInput is a signup.
type RegistrationInput struct {
	Name           string
	Contact        string
	DepartmentID   string
	Password       string
	InviterID      string
	InvitationCode string
}

// Sync refreshes the registrations of a department ("" for all).
func (u *Registrations) Sync(ctx context.Context, departmentID string) <-chan Result[[]model.RegistrationRequest] {
	s := u.l.store
	return run(ctx, u.l, scopeSync[remote.Registration, model.RegistrationRequest]{
		family: model.FamilyRegistrations,
		scope:  departmentID,
		fetch: func(ctx context.Context) ([]remote.Registration, error) {
			return u.l.remote.ListRegistrations(ctx, departmentID)
		},
		convert: sanitizeRegistration,
		local: func(ctx context.Context) ([]model.RegistrationRequest, error) {
			return s.ListRegistrations(ctx, departmentID)
		},
		replace: func(ctx context.Context, tx *store.Tx, rows []model.RegistrationRequest) error {
			return tx.ReplaceRegistrations(ctx, departmentID, rows)
		},
	})
}

// Watch subscribes to cached registrations of a department.
func (u *Registrations) Watch(ctx context.Context, departmentID string) (*store.Live[model.RegistrationRequest], error) {
	return u.l.store.WatchRegistrations(ctx, departmentID)
}

// Create files a signup. In connected mode failures are returned; in
// local-only mode the signup is stored with a hashed password. The
// returned registration never carries the password.
func (u *Registrations) Create(ctx context.Context, in RegistrationInput) (model.RegistrationRequest, error) {
	if in.Name == "" || in.Contact == "" {
		return model.RegistrationRequest{}, errs.Validation("name and contact are required")
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return model.RegistrationRequest{}, errs.Validation("%s", err.Error())
	}
	reg, err := Mutate(ctx, u.l, Mutation[model.RegistrationRequest]{
		Family: model.FamilyRegistrations,
		Op:     OpCreate,
		Remote: func(ctx context.Context) (model.RegistrationRequest, error) {
			w, err := u.l.remote.CreateRegistration(ctx, remote.RegistrationInput{
				Name:           in.Name,
				Contact:        in.Contact,
				DepartmentID:   in.DepartmentID,
				Password:       in.Password,
				InviterID:      in.InviterID,
				InvitationCode: in.InvitationCode,
			})
			if err != nil {
				return model.RegistrationRequest{}, err
			}
			return one(w, sanitizeRegistration)
		},
		Apply: func(ctx context.Context, tx *store.Tx, r model.RegistrationRequest) error {
			return tx.PutRegistration(ctx, r)
		},
		Local: func(ctx context.Context, _ session.Ticket) (model.RegistrationRequest, error) {
			hash, err := auth.HashPassword(in.Password)
			if err != nil {
				return model.RegistrationRequest{}, err
			}
			r := model.RegistrationRequest{
				ID:             u.l.newID(),
				Name:           in.Name,
				Contact:        in.Contact,
				DepartmentID:   in.DepartmentID,
				Password:       hash,
				InviterID:      in.InviterID,
				InvitationCode: in.InvitationCode,
				CreatedAt:      u.l.clock.Now(),
			}
			err = u.l.store.Update(ctx, func(tx *store.Tx) error { return tx.PutRegistration(ctx, r) })
			return r, err
		},
	})
	reg.Password = ""
	return reg, err
}
