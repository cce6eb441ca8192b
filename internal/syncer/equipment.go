package syncer

import (
	"context"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

// none is the result of mutations that return nothing.
type none struct{}

// one sanitizes a single record returned by a remote write.
func one[W, T any](w *W, convert func(W) (T, bool)) (T, error) {
	var zero T
	if w == nil {
		return zero, errs.New(errs.KindServer, "empty response from server")
	}
	v, ok := convert(*w)
	if !ok {
		return zero, errs.New(errs.KindServer, "server returned a record without id")
	}
	return v, nil
}

// Equipment reconciles equipment items.
type Equipment struct{ l *Layer }

// Equipment returns the equipment unit.
func (l *Layer) Equipment() *Equipment { return &Equipment{l: l} }

// ItemInput holds the administrator-editable fields of an item.
type ItemInput struct {
	Name             string
	Description      string
	CategoryID       string
	DepartmentID     string
	TotalQuantity    int
	RequiresApproval bool
	ImageRef         string
}

func (in ItemInput) wire() remote.ItemInput {
	return remote.ItemInput{
		Name:             in.Name,
		Description:      in.Description,
		CategoryID:       in.CategoryID,
		DepartmentID:     in.DepartmentID,
		TotalQuantity:    in.TotalQuantity,
		RequiresApproval: in.RequiresApproval,
		ImageRef:         in.ImageRef,
	}
}

// Sync refreshes the items of a department ("" for all).
func (u *Equipment) Sync(ctx context.Context, departmentID string) <-chan Result[[]model.EquipmentItem] {
	s := u.l.store
	return run(ctx, u.l, scopeSync[remote.Item, model.EquipmentItem]{
		family:  model.FamilyEquipment,
		scope:   departmentID,
		fetch:   func(ctx context.Context) ([]remote.Item, error) { return u.l.remote.ListItems(ctx, departmentID) },
		convert: sanitizeItem,
		local:   func(ctx context.Context) ([]model.EquipmentItem, error) { return s.ListItems(ctx, departmentID) },
		replace: func(ctx context.Context, tx *store.Tx, rows []model.EquipmentItem) error {
			return tx.ReplaceItems(ctx, departmentID, rows)
		},
	})
}

// Get returns a cached item, or nil.
func (u *Equipment) Get(ctx context.Context, id string) (*model.EquipmentItem, error) {
	return u.l.store.GetItem(ctx, id)
}

// Watch subscribes to cached items of a department.
func (u *Equipment) Watch(ctx context.Context, departmentID string) (*store.Live[model.EquipmentItem], error) {
	return u.l.store.WatchItems(ctx, departmentID)
}

func putItem(ctx context.Context, tx *store.Tx, item model.EquipmentItem) error {
	return tx.PutItem(ctx, item)
}

// Create adds an item. Remote failures are returned; no local item is invented.
func (u *Equipment) Create(ctx context.Context, in ItemInput) (model.EquipmentItem, error) {
	if err := inventory.ValidateItem(model.EquipmentItem{Name: in.Name, TotalQuantity: in.TotalQuantity}); err != nil {
		return model.EquipmentItem{}, err
	}
	return Mutate(ctx, u.l, Mutation[model.EquipmentItem]{
		Family: model.FamilyEquipment,
		Op:     OpCreate,
		Remote: func(ctx context.Context) (model.EquipmentItem, error) {
			body := in.wire()
			body.AvailableQuantity = &in.TotalQuantity
			w, err := u.l.remote.CreateItem(ctx, body)
			if err != nil {
				return model.EquipmentItem{}, err
			}
			return one(w, sanitizeItem)
		},
		Apply: putItem,
		Local: func(ctx context.Context, _ session.Ticket) (model.EquipmentItem, error) {
			item := model.EquipmentItem{
				ID:                u.l.newID(),
				Name:              in.Name,
				Description:       in.Description,
				CategoryID:        in.CategoryID,
				DepartmentID:      in.DepartmentID,
				TotalQuantity:     in.TotalQuantity,
				AvailableQuantity: in.TotalQuantity,
				RequiresApproval:  in.RequiresApproval,
				ImageRef:          in.ImageRef,
				UpdatedAt:         u.l.clock.Now(),
			}
			err := u.l.store.Update(ctx, func(tx *store.Tx) error { return tx.PutItem(ctx, item) })
			return item, err
		},
	})
}

// Update edits an item. A change of total quantity shifts the available
// quantity by the same amount.
func (u *Equipment) Update(ctx context.Context, id string, in ItemInput) (model.EquipmentItem, error) {
	if in.Name == "" {
		return model.EquipmentItem{}, errs.Validation("item name is required")
	}
	return Mutate(ctx, u.l, Mutation[model.EquipmentItem]{
		Family: model.FamilyEquipment,
		Op:     OpUpdate,
		Remote: func(ctx context.Context) (model.EquipmentItem, error) {
			w, err := u.l.remote.UpdateItem(ctx, id, in.wire())
			if err != nil {
				return model.EquipmentItem{}, err
			}
			return one(w, sanitizeItem)
		},
		Apply: putItem,
		Local: func(ctx context.Context, _ session.Ticket) (model.EquipmentItem, error) {
			var out model.EquipmentItem
			err := u.l.store.Update(ctx, func(tx *store.Tx) error {
				existing, err := tx.GetItem(ctx, id)
				if err != nil {
					return err
				}
				if existing == nil {
					return errs.NotFound("item not found")
				}
				item, err := inventory.Resize(*existing, in.TotalQuantity)
				if err != nil {
					return err
				}
				item.Name = in.Name
				item.Description = in.Description
				item.CategoryID = in.CategoryID
				item.DepartmentID = in.DepartmentID
				item.RequiresApproval = in.RequiresApproval
				item.ImageRef = in.ImageRef
				item.UpdatedAt = u.l.clock.Now()
				out = item
				return tx.PutItem(ctx, item)
			})
			return out, err
		},
	})
}

// Delete removes an item. History entries keep their item name.
func (u *Equipment) Delete(ctx context.Context, id string) error {
	_, err := Mutate(ctx, u.l, Mutation[none]{
		Family: model.FamilyEquipment,
		Op:     OpDelete,
		Remote: func(ctx context.Context) (none, error) {
			return none{}, u.l.remote.DeleteItem(ctx, id)
		},
		Apply: func(ctx context.Context, tx *store.Tx, _ none) error {
			return tx.DeleteItem(ctx, id)
		},
		Local: func(ctx context.Context, _ session.Ticket) (none, error) {
			return none{}, u.l.store.Update(ctx, func(tx *store.Tx) error {
				existing, err := tx.GetItem(ctx, id)
				if err != nil {
					return err
				}
				if existing == nil {
					return errs.NotFound("item not found")
				}
				return tx.DeleteItem(ctx, id)
			})
		},
	})
	return err
}
