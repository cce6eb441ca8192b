package inventory

import (
	"context"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

// MaterializeRegistration turns a pending registration into a NORMAL_USER
// account with the given ID and deletes the registration. A password that
// is not yet a bcrypt hash is hashed. A registration without a password is
// refused, since its account could never sign in. The returned user has no
// password.
func MaterializeRegistration(ctx context.Context, tx *store.Tx, registrationID, userID string) (model.User, error) {
	reg, err := tx.GetRegistration(ctx, registrationID)
	if err != nil {
		return model.User{}, err
	}
	if reg == nil {
		return model.User{}, ErrFinalized()
	}
	existing, err := tx.GetUserByContact(ctx, reg.Contact)
	if err != nil {
		return model.User{}, err
	}
	if existing != nil {
		return model.User{}, errs.Validation("contact already registered")
	}

	password := reg.Password
	if password == "" {
		return model.User{}, ErrNoPassword()
	}
	if !auth.IsHash(password) {
		if password, err = auth.HashPassword(password); err != nil {
			return model.User{}, err
		}
	}
	u := model.User{
		ID:             userID,
		Name:           reg.Name,
		Contact:        reg.Contact,
		DepartmentID:   reg.DepartmentID,
		Role:           model.RoleNormalUser,
		Status:         model.UserStatusNormal,
		Password:       password,
		InvitationCode: reg.InvitationCode,
	}
	if err := tx.PutUser(ctx, u); err != nil {
		return model.User{}, err
	}
	if err := tx.DeleteRegistration(ctx, registrationID); err != nil {
		return model.User{}, err
	}
	u.Password = ""
	return u, nil
}

// RejectRegistration deletes a pending registration.
func RejectRegistration(ctx context.Context, tx *store.Tx, registrationID string) error {
	reg, err := tx.GetRegistration(ctx, registrationID)
	if err != nil {
		return err
	}
	if reg == nil {
		return ErrFinalized()
	}
	return tx.DeleteRegistration(ctx, registrationID)
}
