package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const registrationColumns = `id, name, contact, department_id, password, inviter_id, invitation_code, created_at`

func scanRegistration(row rowScanner) (model.RegistrationRequest, error) {
	var r model.RegistrationRequest
	var createdAt int64
	err := row.Scan(&r.ID, &r.Name, &r.Contact, &r.DepartmentID, &r.Password, &r.InviterID, &r.InvitationCode, &createdAt)
	r.CreatedAt = fromMillis(createdAt)
	return r, err
}

// GetRegistration returns a pending registration by ID, or nil if none exists.
func (tx *Tx) GetRegistration(ctx context.Context, id string) (*model.RegistrationRequest, error) {
	r, err := scanRegistration(tx.q.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registration_requests WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting registration: %w", err)
	}
	return &r, nil
}

// ListRegistrations returns pending registrations of a department ("" for all).
func (tx *Tx) ListRegistrations(ctx context.Context, departmentID string) ([]model.RegistrationRequest, error) {
	query, args := scopeFilter(`SELECT `+registrationColumns+` FROM registration_requests WHERE 1=1`, departmentID, nil)
	rows, err := tx.q.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.RegistrationRequest
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}

// PutRegistration inserts or replaces a pending registration.
func (tx *Tx) PutRegistration(ctx context.Context, r model.RegistrationRequest) error {
	if err := tx.write(model.FamilyRegistrations); err != nil {
		return err
	}
	_, err := tx.q.ExecContext(ctx,
		`INSERT OR REPLACE INTO registration_requests (`+registrationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Contact, r.DepartmentID, r.Password, r.InviterID, r.InvitationCode, millis(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("putting registration: %w", err)
	}
	return nil
}

// DeleteRegistration removes a pending registration.
func (tx *Tx) DeleteRegistration(ctx context.Context, id string) error {
	if err := tx.write(model.FamilyRegistrations); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM registration_requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting registration: %w", err)
	}
	return nil
}

// ReplaceRegistrations replaces every cached registration of a department.
// A cached password hash is kept when the incoming row carries none.
func (tx *Tx) ReplaceRegistrations(ctx context.Context, departmentID string, regs []model.RegistrationRequest) error {
	if err := tx.write(model.FamilyRegistrations); err != nil {
		return err
	}
	existing, err := tx.ListRegistrations(ctx, departmentID)
	if err != nil {
		return err
	}
	hashes := make(map[string]string, len(existing))
	for _, r := range existing {
		hashes[r.ID] = r.Password
	}

	query, args := scopeFilter(`DELETE FROM registration_requests WHERE 1=1`, departmentID, nil)
	if _, err := tx.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing registrations: %w", err)
	}
	for _, r := range regs {
		if r.Password == "" {
			r.Password = hashes[r.ID]
		}
		if err := tx.PutRegistration(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// GetRegistration returns a pending registration by ID, or nil if none exists.
func (s *Store) GetRegistration(ctx context.Context, id string) (*model.RegistrationRequest, error) {
	return view(ctx, s, func(tx *Tx) (*model.RegistrationRequest, error) { return tx.GetRegistration(ctx, id) })
}

// ListRegistrations returns pending registrations of a department ("" for all).
func (s *Store) ListRegistrations(ctx context.Context, departmentID string) ([]model.RegistrationRequest, error) {
	return view(ctx, s, func(tx *Tx) ([]model.RegistrationRequest, error) { return tx.ListRegistrations(ctx, departmentID) })
}
