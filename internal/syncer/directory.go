package syncer

import (
	"context"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

// Categories reconciles categories.
type Categories struct{ l *Layer }

// Categories returns the category unit.
func (l *Layer) Categories() *Categories { return &Categories{l: l} }

// Sync refreshes all categories.
func (u *Categories) Sync(ctx context.Context) <-chan Result[[]model.Category] {
	return run(ctx, u.l, scopeSync[remote.Category, model.Category]{
		family:  model.FamilyCategories,
		fetch:   u.l.remote.ListCategories,
		convert: sanitizeCategory,
		local:   u.l.store.ListCategories,
		replace: func(ctx context.Context, tx *store.Tx, rows []model.Category) error {
			return tx.ReplaceCategories(ctx, rows)
		},
	})
}

// Watch subscribes to cached categories.
func (u *Categories) Watch(ctx context.Context) (*store.Live[model.Category], error) {
	return u.l.store.WatchCategories(ctx)
}

// Create adds a category, locally if the service cannot be reached.
func (u *Categories) Create(ctx context.Context, name string) (model.Category, error) {
	if name == "" {
		return model.Category{}, errs.Validation("category name is required")
	}
	return Mutate(ctx, u.l, Mutation[model.Category]{
		Family: model.FamilyCategories,
		Op:     OpCreate,
		Remote: func(ctx context.Context) (model.Category, error) {
			w, err := u.l.remote.CreateCategory(ctx, remote.NamedInput{Name: name})
			if err != nil {
				return model.Category{}, err
			}
			return one(w, sanitizeCategory)
		},
		Apply: func(ctx context.Context, tx *store.Tx, c model.Category) error {
			return tx.PutCategory(ctx, c)
		},
		Local: func(ctx context.Context, _ session.Ticket) (model.Category, error) {
			c := model.Category{ID: u.l.newID(), Name: name}
			return c, u.l.store.Update(ctx, func(tx *store.Tx) error { return tx.PutCategory(ctx, c) })
		},
	})
}

// Delete removes a category. Remote failures are returned.
func (u *Categories) Delete(ctx context.Context, id string) error {
	_, err := Mutate(ctx, u.l, Mutation[none]{
		Family: model.FamilyCategories,
		Op:     OpDelete,
		Remote: func(ctx context.Context) (none, error) {
			return none{}, u.l.remote.DeleteCategory(ctx, id)
		},
		Apply: func(ctx context.Context, tx *store.Tx, _ none) error {
			return tx.DeleteCategory(ctx, id)
		},
		Local: func(ctx context.Context, _ session.Ticket) (none, error) {
			return none{}, u.l.store.Update(ctx, func(tx *store.Tx) error { return tx.DeleteCategory(ctx, id) })
		},
	})
	return err
}

// Departments reconciles departments.
type Departments struct{ l *Layer }

// Departments returns the department unit.
func (l *Layer) Departments() *Departments { return &Departments{l: l} }

// Sync refreshes all departments.
func (u *Departments) Sync(ctx context.Context) <-chan Result[[]model.Department] {
	return run(ctx, u.l, scopeSync[remote.Department, model.Department]{
		family:  model.FamilyDepartments,
		fetch:   u.l.remote.ListDepartments,
		convert: sanitizeDepartment,
		local:   u.l.store.ListDepartments,
		replace: func(ctx context.Context, tx *store.Tx, rows []model.Department) error {
			return tx.ReplaceDepartments(ctx, rows)
		},
	})
}

// Get returns a cached department, or nil.
func (u *Departments) Get(ctx context.Context, id string) (*model.Department, error) {
	return u.l.store.GetDepartment(ctx, id)
}

// Watch subscribes to cached departments.
func (u *Departments) Watch(ctx context.Context) (*store.Live[model.Department], error) {
	return u.l.store.WatchDepartments(ctx)
}

func putDepartment(ctx context.Context, tx *store.Tx, d model.Department) error {
	return tx.PutDepartment(ctx, d)
}

// Create adds a department. Parent links are not checked for cycles.
func (u *Departments) Create(ctx context.Context, name, parentID string) (model.Department, error) {
	if name == "" {
		return model.Department{}, errs.Validation("department name is required")
	}
	return Mutate(ctx, u.l, Mutation[model.Department]{
		Family: model.FamilyDepartments,
		Op:     OpCreate,
		Remote: func(ctx context.Context) (model.Department, error) {
			w, err := u.l.remote.CreateDepartment(ctx, remote.NamedInput{Name: name, ParentID: parentID})
			if err != nil {
				return model.Department{}, err
			}
			return one(w, sanitizeDepartment)
		},
		Apply: putDepartment,
		Local: func(ctx context.Context, _ session.Ticket) (model.Department, error) {
			d := model.Department{ID: u.l.newID(), Name: name, ParentID: parentID}
			return d, u.l.store.Update(ctx, func(tx *store.Tx) error { return tx.PutDepartment(ctx, d) })
		},
	})
}

// Update renames or moves a department.
func (u *Departments) Update(ctx context.Context, id, name, parentID string) (model.Department, error) {
	if name == "" {
		return model.Department{}, errs.Validation("department name is required")
	}
	return Mutate(ctx, u.l, Mutation[model.Department]{
		Family: model.FamilyDepartments,
		Op:     OpUpdate,
		Remote: func(ctx context.Context) (model.Department, error) {
			w, err := u.l.remote.UpdateDepartment(ctx, id, remote.NamedInput{Name: name, ParentID: parentID})
			if err != nil {
				return model.Department{}, err
			}
			return one(w, sanitizeDepartment)
		},
		Apply: putDepartment,
		Local: func(ctx context.Context, _ session.Ticket) (model.Department, error) {
			d := model.Department{ID: id, Name: name, ParentID: parentID}
			err := u.l.store.Update(ctx, func(tx *store.Tx) error {
				existing, err := tx.GetDepartment(ctx, id)
				if err != nil {
					return err
				}
				if existing == nil {
					return errs.NotFound("department not found")
				}
				return tx.PutDepartment(ctx, d)
			})
			return d, err
		},
	})
}

// Delete removes a department.
func (u *Departments) Delete(ctx context.Context, id string) error {
	_, err := Mutate(ctx, u.l, Mutation[none]{
		Family: model.FamilyDepartments,
		Op:     OpDelete,
		Remote: func(ctx context.Context) (none, error) {
			return none{}, u.l.remote.DeleteDepartment(ctx, id)
		},
		Apply: func(ctx context.Context, tx *store.Tx, _ none) error {
			return tx.DeleteDepartment(ctx, id)
		},
		Local: func(ctx context.Context, _ session.Ticket) (none, error) {
			return none{}, u.l.store.Update(ctx, func(tx *store.Tx) error { return tx.DeleteDepartment(ctx, id) })
		},
	})
	return err
}
