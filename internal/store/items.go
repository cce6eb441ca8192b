package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/izposoja/internal/model"
)

const itemColumns = `id, name, description, category_id, department_id,
	total_quantity, available_quantity, requires_approval, image_ref, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (model.EquipmentItem, error) {
	var item model.EquipmentItem
	var requiresApproval int
	var updatedAt int64
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.CategoryID, &item.DepartmentID,
		&item.TotalQuantity, &item.AvailableQuantity, &requiresApproval, &item.ImageRef, &updatedAt)
	item.RequiresApproval = requiresApproval != 0
	item.UpdatedAt = fromMillis(updatedAt)
	return item, err
}

// GetItem returns an item by ID, or nil if it is not cached.
func (tx *Tx) GetItem(ctx context.Context, id string) (*model.EquipmentItem, error) {
	item, err := scanItem(tx.q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return &item, nil
}

// ListItems returns items of a department, or all items when departmentID is empty.
func (tx *Tx) ListItems(ctx context.Context, departmentID string) ([]model.EquipmentItem, error) {
	query, args := scopeFilter(`SELECT `+itemColumns+` FROM items WHERE 1=1`, departmentID, nil)
	rows, err := tx.q.QueryContext(ctx, query+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.EquipmentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PutItem inserts or replaces an item.
func (tx *Tx) PutItem(ctx context.Context, item model.EquipmentItem) error {
	if err := tx.write(model.FamilyEquipment); err != nil {
		return err
	}
	_, err := tx.q.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		     name = excluded.name,
		     description = excluded.description,
		     category_id = excluded.category_id,
		     department_id = excluded.department_id,
		     total_quantity = excluded.total_quantity,
		     available_quantity = excluded.available_quantity,
		     requires_approval = excluded.requires_approval,
		     image_ref = excluded.image_ref,
		     updated_at = excluded.updated_at`,
		item.ID, item.Name, item.Description, item.CategoryID, item.DepartmentID,
		item.TotalQuantity, item.AvailableQuantity, boolInt(item.RequiresApproval), item.ImageRef, millis(item.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("putting item: %w", err)
	}
	return nil
}

// AdjustAvailable changes an item's available quantity by delta. It
// reports false without changing anything if the result would leave
// 0..total, so a concurrent change can never push stock out of range.
func (tx *Tx) AdjustAvailable(ctx context.Context, id string, delta int) (bool, error) {
	if err := tx.write(model.FamilyEquipment); err != nil {
		return false, err
	}
	result, err := tx.q.ExecContext(ctx,
		`UPDATE items SET available_quantity = available_quantity + ?
		 WHERE id = ? AND available_quantity + ? >= 0 AND available_quantity + ? <= total_quantity`,
		delta, id, delta, delta,
	)
	if err != nil {
		return false, fmt.Errorf("adjusting available quantity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adjusting available quantity: %w", err)
	}
	return n == 1, nil
}

// DeleteItem removes an item. History rows keep their item name snapshot.
func (tx *Tx) DeleteItem(ctx context.Context, id string) error {
	if err := tx.write(model.FamilyEquipment); err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// ReplaceItems replaces every cached item of a department (all items when
// departmentID is empty) with items.
func (tx *Tx) ReplaceItems(ctx context.Context, departmentID string, items []model.EquipmentItem) error {
	if err := tx.write(model.FamilyEquipment); err != nil {
		return err
	}
	query, args := scopeFilter(`DELETE FROM items WHERE 1=1`, departmentID, nil)
	if _, err := tx.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}
	for _, item := range items {
		if err := tx.PutItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// GetItem returns an item by ID, or nil if it is not cached.
func (s *Store) GetItem(ctx context.Context, id string) (*model.EquipmentItem, error) {
	return view(ctx, s, func(tx *Tx) (*model.EquipmentItem, error) { return tx.GetItem(ctx, id) })
}

// ListItems returns cached items of a department ("" for all).
func (s *Store) ListItems(ctx context.Context, departmentID string) ([]model.EquipmentItem, error) {
	return view(ctx, s, func(tx *Tx) ([]model.EquipmentItem, error) { return tx.ListItems(ctx, departmentID) })
}
