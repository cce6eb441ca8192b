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

// Users reconciles user accounts.
type Users struct{ l *Layer }

// Users returns the user unit.
func (l *Layer) Users() *Users { return &Users{l: l} }

// UserInput holds the editable fields of a user. An empty Password leaves
// the current one unchanged on update.
type UserInput struct {
	Name           string
	Contact        string
	DepartmentID   string
	Role           model.Role
	Status         model.UserStatus
	Password       string
	InvitationCode string
}

func (in UserInput) wire() remote.UserInput {
	return remote.UserInput{
		Name:           in.Name,
		Contact:        in.Contact,
		DepartmentID:   in.DepartmentID,
		Role:           string(in.Role),
		Status:         string(in.Status),
		Password:       in.Password,
		InvitationCode: in.InvitationCode,
	}
}

func (in UserInput) validate() error {
	if in.Name == "" || in.Contact == "" {
		return errs.Validation("name and contact are required")
	}
	if in.Role != "" && !in.Role.Valid() {
		return errs.Validation("invalid role")
	}
	if in.Status != "" && !in.Status.Valid() {
		return errs.Validation("invalid status")
	}
	return nil
}

// Sync refreshes the users of a department ("" for all).
func (u *Users) Sync(ctx context.Context, departmentID string) <-chan Result[[]model.User] {
	s := u.l.store
	return run(ctx, u.l, scopeSync[remote.User, model.User]{
		family:  model.FamilyUsers,
		scope:   departmentID,
		fetch:   func(ctx context.Context) ([]remote.User, error) { return u.l.remote.ListUsers(ctx, departmentID) },
		convert: sanitizeUser,
		local:   func(ctx context.Context) ([]model.User, error) { return s.ListUsers(ctx, departmentID) },
		replace: func(ctx context.Context, tx *store.Tx, rows []model.User) error {
			return tx.ReplaceUsers(ctx, departmentID, rows)
		},
	})
}

// Get returns a cached user, or nil.
func (u *Users) Get(ctx context.Context, id string) (*model.User, error) {
	return u.l.store.GetUser(ctx, id)
}

// Watch subscribes to cached users of a department.
func (u *Users) Watch(ctx context.Context, departmentID string) (*store.Live[model.User], error) {
	return u.l.store.WatchUsers(ctx, departmentID)
}

// putUser stores a user returned by the service. Remote payloads never
// carry a password, so the cached hash is kept.
func putUser(ctx context.Context, tx *store.Tx, user model.User) error {
	return tx.PutServerUser(ctx, user)
}

// Create adds a user, locally if the service cannot be reached.
func (u *Users) Create(ctx context.Context, in UserInput) (model.User, error) {
	if err := in.validate(); err != nil {
		return model.User{}, err
	}
	if err := model.ValidatePassword(in.Password); err != nil {
		return model.User{}, errs.Validation("%s", err.Error())
	}
	return Mutate(ctx, u.l, Mutation[model.User]{
		Family: model.FamilyUsers,
		Op:     OpCreate,
		Remote: func(ctx context.Context) (model.User, error) {
			w, err := u.l.remote.CreateUser(ctx, in.wire())
			if err != nil {
				return model.User{}, err
			}
			return one(w, sanitizeUser)
		},
		Apply: putUser,
		Local: func(ctx context.Context, _ session.Ticket) (model.User, error) {
			hash, err := auth.HashPassword(in.Password)
			if err != nil {
				return model.User{}, err
			}
			user := model.User{
				ID:             u.l.newID(),
				Name:           in.Name,
				Contact:        in.Contact,
				DepartmentID:   in.DepartmentID,
				Role:           in.Role,
				Status:         in.Status,
				Password:       hash,
				InvitationCode: in.InvitationCode,
			}
			if user.Role == "" {
				user.Role = model.RoleNormalUser
			}
			if user.Status == "" {
				user.Status = model.UserStatusNormal
			}
			err = u.l.store.Update(ctx, func(tx *store.Tx) error {
				existing, err := tx.GetUserByContact(ctx, user.Contact)
				if err != nil {
					return err
				}
				if existing != nil {
					return errs.Validation("contact already registered")
				}
				return tx.PutUser(ctx, user)
			})
			user.Password = ""
			return user, err
		},
	})
}

// Update edits a user.
func (u *Users) Update(ctx context.Context, id string, in UserInput) (model.User, error) {
	if err := in.validate(); err != nil {
		return model.User{}, err
	}
	if in.Password != "" {
		if err := model.ValidatePassword(in.Password); err != nil {
			return model.User{}, errs.Validation("%s", err.Error())
		}
	}
	return Mutate(ctx, u.l, Mutation[model.User]{
		Family: model.FamilyUsers,
		Op:     OpUpdate,
		Remote: func(ctx context.Context) (model.User, error) {
			w, err := u.l.remote.UpdateUser(ctx, id, in.wire())
			if err != nil {
				return model.User{}, err
			}
			return one(w, sanitizeUser)
		},
		Apply: putUser,
		Local: func(ctx context.Context, _ session.Ticket) (model.User, error) {
			var out model.User
			err := u.l.store.Update(ctx, func(tx *store.Tx) error {
				existing, err := tx.GetUser(ctx, id)
				if err != nil {
					return err
				}
				if existing == nil {
					return errs.NotFound("user not found")
				}
				other, err := tx.GetUserByContact(ctx, in.Contact)
				if err != nil {
					return err
				}
				if other != nil && other.ID != id {
					return errs.Validation("contact already registered")
				}

				user := *existing
				user.Name = in.Name
				user.Contact = in.Contact
				user.DepartmentID = in.DepartmentID
				user.InvitationCode = in.InvitationCode
				if in.Role != "" {
					user.Role = in.Role
				}
				if in.Status != "" {
					user.Status = in.Status
				}
				user.Password = ""
				if in.Password != "" {
					if user.Password, err = auth.HashPassword(in.Password); err != nil {
						return err
					}
				}
				if err := tx.PutUser(ctx, user); err != nil {
					return err
				}
				user.Password = ""
				out = user
				return nil
			})
			return out, err
		},
	})
}

// Ban marks a user as banned. Banned users cannot sign in.
func (u *Users) Ban(ctx context.Context, id string) (model.User, error) {
	existing, err := u.l.store.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if existing == nil {
		return model.User{}, errs.NotFound("user not found")
	}
	return u.Update(ctx, id, UserInput{
		Name:           existing.Name,
		Contact:        existing.Contact,
		DepartmentID:   existing.DepartmentID,
		Role:           existing.Role,
		Status:         model.UserStatusBanned,
		InvitationCode: existing.InvitationCode,
	})
}

// Delete removes a user.
func (u *Users) Delete(ctx context.Context, id string) error {
	_, err := Mutate(ctx, u.l, Mutation[none]{
		Family: model.FamilyUsers,
		Op:     OpDelete,
		Remote: func(ctx context.Context) (none, error) {
			return none{}, u.l.remote.DeleteUser(ctx, id)
		},
		Apply: func(ctx context.Context, tx *store.Tx, _ none) error {
			return tx.DeleteUser(ctx, id)
		},
		Local: func(ctx context.Context, _ session.Ticket) (none, error) {
			return none{}, u.l.store.Update(ctx, func(tx *store.Tx) error { return tx.DeleteUser(ctx, id) })
		},
	})
	return err
}
