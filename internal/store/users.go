package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const userColumns = `id, name, contact, department_id, role, status, password, invitation_code`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Contact, &u.DepartmentID, &u.Role, &u.Status, &u.Password, &u.InvitationCode)
	return u, err
}

// GetUser returns a user by ID, or nil if it is not cached.
func (tx *Tx) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(tx.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// GetUserByContact returns a user by contact, or nil if none matches.
func (tx *Tx) GetUserByContact(ctx context.Context, contact string) (*model.User, error) {
	u, err := scanUser(tx.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE contact = ?`, contact))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by contact: %w", err)
	}
	return &u, nil
}

// ListUsers returns users of a department, or all users when departmentID is empty.
func (tx *Tx) ListUsers(ctx context.Context, departmentID string) ([]model.User, error) {
	query, args := scopeFilter(`SELECT `+userColumns+` FROM users WHERE 1=1`, departmentID, nil)
	rows, err := tx.q.QueryContext(ctx, query+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// PutUser inserts or replaces a user. An empty password keeps the cached one.
func (tx *Tx) PutUser(ctx context.Context, u model.User) error {
	if err := tx.write(model.FamilyUsers); err != nil {
		return err
	}
	_, err := tx.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     name = excluded.name,
		     contact = excluded.contact,
		     department_id = excluded.department_id,
		     role = excluded.role,
		     status = excluded.status,
		     password = CASE WHEN excluded.password = '' THEN users.password ELSE excluded.password END,
		     invitation_code = excluded.invitation_code`,
		u.ID, u.Name, u.Contact, u.DepartmentID, u.Role, u.Status, u.Password, u.InvitationCode,
	)
	if err != nil {
		return fmt.Errorf("putting user: %w", err)
	}
	return nil
}

// PutServerUser stores a user as reported by the service. Another cached
// user holding the same non-empty contact under a different ID is removed
// first, since the service is authoritative for contacts.
func (tx *Tx) PutServerUser(ctx context.Context, u model.User) error {
	if err := tx.displaceContact(ctx, u); err != nil {
		return err
	}
	return tx.PutUser(ctx, u)
}

func (tx *Tx) displaceContact(ctx context.Context, u model.User) error {
	if u.Contact == "" {
		return nil
	}
	if err := tx.write(model.FamilyUsers); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM users WHERE contact = ? AND id != ?`, u.Contact, u.ID); err != nil {
		return fmt.Errorf("displacing user contact: %w", err)
	}
	return nil
}

// DeleteUser removes a user.
func (tx *Tx) DeleteUser(ctx context.Context, id string) error {
	if err := tx.write(model.FamilyUsers); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// ReplaceUsers replaces every cached user of a department (all users when
// departmentID is empty). Cached password hashes of users that survive the
// replacement are kept so local-only sign-in keeps working. Users outside
// the scope that hold an incoming contact under another ID are removed.
func (tx *Tx) ReplaceUsers(ctx context.Context, departmentID string, users []model.User) error {
	if err := tx.write(model.FamilyUsers); err != nil {
		return err
	}

	existing, err := tx.ListUsers(ctx, departmentID)
	if err != nil {
		return err
	}
	hashes := make(map[string]string, len(existing))
	for _, u := range existing {
		hashes[u.ID] = u.Password
	}

	query, args := scopeFilter(`DELETE FROM users WHERE 1=1`, departmentID, nil)
	if _, err := tx.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing users: %w", err)
	}
	for _, u := range users {
		if u.Password == "" {
			u.Password = hashes[u.ID]
		}
		if err := tx.PutServerUser(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// GetUser returns a user by ID, or nil if it is not cached.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	return view(ctx, s, func(tx *Tx) (*model.User, error) { return tx.GetUser(ctx, id) })
}

// GetUserByContact returns a user by contact, or nil if none matches.
func (s *Store) GetUserByContact(ctx context.Context, contact string) (*model.User, error) {
	return view(ctx, s, func(tx *Tx) (*model.User, error) { return tx.GetUserByContact(ctx, contact) })
}

// ListUsers returns cached users of a department ("" for all).
func (s *Store) ListUsers(ctx context.Context, departmentID string) ([]model.User, error) {
	return view(ctx, s, func(tx *Tx) ([]model.User, error) { return tx.ListUsers(ctx, departmentID) })
}
