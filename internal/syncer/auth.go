package syncer

import (
	"context"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

// Auth signs users in and out.
type Auth struct{ l *Layer }

// Auth returns the sign-in unit.
func (l *Layer) Auth() *Auth { return &Auth{l: l} }

func principalOf(u model.User) session.Principal {
	return session.Principal{
		ID:           u.ID,
		Name:         u.Name,
		Contact:      u.Contact,
		DepartmentID: u.DepartmentID,
		Role:         u.Role,
	}
}

// Login authenticates and signs the session in. Connected mode asks the
// service and caches the account with a local password hash so the same
// credentials work in local-only mode. Local-only mode checks the cached
// hash and mints a local token.
func (a *Auth) Login(ctx context.Context, contact, password string) (session.Principal, error) {
	if contact == "" || password == "" {
		return session.Principal{}, errs.Validation("contact and password are required")
	}
	if a.l.session.LocalOnly() {
		return a.localLogin(ctx, contact, password)
	}

	res, err := a.l.remote.Login(ctx, contact, password)
	if err != nil {
		a.l.logFailure("login failed", model.FamilyUsers, err)
		return session.Principal{}, err
	}
	if res == nil || str(res.Token) == "" {
		return session.Principal{}, errs.New(errs.KindServer, "login response without token")
	}
	user, err := one(res.User, sanitizeUser)
	if err != nil {
		return session.Principal{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return session.Principal{}, err
	}
	cached := user
	cached.Password = hash
	unlock := a.l.locks.lock(model.FamilyUsers)
	err = a.l.store.Update(ctx, func(tx *store.Tx) error { return tx.PutServerUser(ctx, cached) })
	unlock()
	if err != nil {
		// Sign-in still succeeds; only offline sign-in is affected.
		a.l.log.Warn("caching signed-in user failed", "user", user.ID, "error", err)
	}

	p := principalOf(user)
	a.l.session.SignIn(p, str(res.Token))
	a.l.log.Info("signed in", "user", p.ID, "mode", session.Connected)
	return p, nil
}

func (a *Auth) localLogin(ctx context.Context, contact, password string) (session.Principal, error) {
	user, err := a.l.store.GetUserByContact(ctx, contact)
	if err != nil {
		return session.Principal{}, err
	}
	if user == nil || !auth.CheckPassword(user.Password, password) {
		return session.Principal{}, errs.Unauthorized("invalid credentials")
	}
	if user.Status == model.UserStatusBanned {
		return session.Principal{}, errs.Unauthorized("account is banned")
	}

	secret, err := a.l.store.JWTSecret(ctx)
	if err != nil {
		return session.Principal{}, err
	}
	token, err := auth.GenerateToken(secret, *user, a.l.clock.Now())
	if err != nil {
		return session.Principal{}, err
	}

	p := principalOf(*user)
	a.l.session.SignIn(p, token)
	a.l.log.Info("signed in", "user", p.ID, "mode", session.LocalOnly)
	return p, nil
}

// Logout signs the session out. In-flight operations are superseded.
func (a *Auth) Logout() {
	a.l.session.SignOut()
	a.l.log.Info("signed out")
}
