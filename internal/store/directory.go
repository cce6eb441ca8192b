package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

// ListCategories returns all cached categories.
func (tx *Tx) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// PutCategory inserts or replaces a category.
func (tx *Tx) PutCategory(ctx context.Context, c model.Category) error {
	if err := tx.write(model.FamilyCategories); err != nil {
		return err
	}
	_, err := tx.q.ExecContext(ctx,
		`INSERT INTO categories (id, name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		c.ID, c.Name,
	)
	if err != nil {
		return fmt.Errorf("putting category: %w", err)
	}
	return nil
}

// DeleteCategory removes a category.
func (tx *Tx) DeleteCategory(ctx context.Context, id string) error {
	if err := tx.write(model.FamilyCategories); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return nil
}

// ReplaceCategories replaces every cached category.
func (tx *Tx) ReplaceCategories(ctx context.Context, categories []model.Category) error {
	if err := tx.write(model.FamilyCategories); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("clearing categories: %w", err)
	}
	for _, c := range categories {
		if err := tx.PutCategory(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// GetDepartment returns a department by ID, or nil if it is not cached.
func (tx *Tx) GetDepartment(ctx context.Context, id string) (*model.Department, error) {
	d := &model.Department{}
	err := tx.q.QueryRowContext(ctx,
		`SELECT id, name, parent_id FROM departments WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.ParentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting department: %w", err)
	}
	return d, nil
}

// ListDepartments returns all cached departments.
func (tx *Tx) ListDepartments(ctx context.Context) ([]model.Department, error) {
	rows, err := tx.q.QueryContext(ctx, `SELECT id, name, parent_id FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	var departments []model.Department
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.ParentID); err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

// PutDepartment inserts or replaces a department.
func (tx *Tx) PutDepartment(ctx context.Context, d model.Department) error {
	if err := tx.write(model.FamilyDepartments); err != nil {
		return err
	}
	_, err := tx.q.ExecContext(ctx,
		`INSERT INTO departments (id, name, parent_id) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id`,
		d.ID, d.Name, d.ParentID,
	)
	if err != nil {
		return fmt.Errorf("putting department: %w", err)
	}
	return nil
}

// DeleteDepartment removes a department.
func (tx *Tx) DeleteDepartment(ctx context.Context, id string) error {
	if err := tx.write(model.FamilyDepartments); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM departments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting department: %w", err)
	}
	return nil
}

// ReplaceDepartments replaces every cached department.
func (tx *Tx) ReplaceDepartments(ctx context.Context, departments []model.Department) error {
	if err := tx.write(model.FamilyDepartments); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM departments`); err != nil {
		return fmt.Errorf("clearing departments: %w", err)
	}
	for _, d := range departments {
		if err := tx.PutDepartment(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// ListCategories returns all cached categories.
func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	return view(ctx, s, func(tx *Tx) ([]model.Category, error) { return tx.ListCategories(ctx) })
}

// GetDepartment returns a department by ID, or nil if it is not cached.
func (s *Store) GetDepartment(ctx context.Context, id string) (*model.Department, error) {
	return view(ctx, s, func(tx *Tx) (*model.Department, error) { return tx.GetDepartment(ctx, id) })
}

// ListDepartments returns all cached departments.
func (s *Store) ListDepartments(ctx context.Context) ([]model.Department, error) {
	return view(ctx, s, func(tx *Tx) ([]model.Department, error) { return tx.ListDepartments(ctx) })
}
