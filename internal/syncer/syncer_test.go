package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/inventory"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/remote"
	"github.com/erazemk/izposoja/internal/session"
	"github.com/erazemk/izposoja/internal/store"
)

func ptr[T any](v T) *T { return &v }

// fakeRemote implements the calls a test needs; any other call panics on
// the nil embedded interface.
type fakeRemote struct {
	remote.Client

	listItems        func(ctx context.Context, departmentID string) ([]remote.Item, error)
	createItem       func(ctx context.Context, in remote.ItemInput) (*remote.Item, error)
	updateItem       func(ctx context.Context, id string, in remote.ItemInput) (*remote.Item, error)
	deleteItem       func(ctx context.Context, id string) error
	createCategory   func(ctx context.Context, in remote.NamedInput) (*remote.Category, error)
	deleteCategory   func(ctx context.Context, id string) error
	listUsers        func(ctx context.Context, departmentID string) ([]remote.User, error)
	updateUser       func(ctx context.Context, id string, in remote.UserInput) (*remote.User, error)
	updateDepartment func(ctx context.Context, id string, in remote.NamedInput) (*remote.Department, error)
	borrow           func(ctx context.Context, in remote.BorrowInput) (*remote.Outcome, error)
	returnItem       func(ctx context.Context, historyID string, in remote.ReturnInput) (*remote.Outcome, error)
}

func (f *fakeRemote) ListItems(ctx context.Context, departmentID string) ([]remote.Item, error) {
	return f.listItems(ctx, departmentID)
}

func (f *fakeRemote) CreateItem(ctx context.Context, in remote.ItemInput) (*remote.Item, error) {
	return f.createItem(ctx, in)
}

func (f *fakeRemote) DeleteItem(ctx context.Context, id string) error {
	return f.deleteItem(ctx, id)
}

func (f *fakeRemote) DeleteCategory(ctx context.Context, id string) error {
	return f.deleteCategory(ctx, id)
}

func (f *fakeRemote) ListUsers(ctx context.Context, departmentID string) ([]remote.User, error) {
	return f.listUsers(ctx, departmentID)
}

func (f *fakeRemote) UpdateUser(ctx context.Context, id string, in remote.UserInput) (*remote.User, error) {
	return f.updateUser(ctx, id, in)
}

func (f *fakeRemote) UpdateItem(ctx context.Context, id string, in remote.ItemInput) (*remote.Item, error) {
	return f.updateItem(ctx, id, in)
}

func (f *fakeRemote) CreateCategory(ctx context.Context, in remote.NamedInput) (*remote.Category, error) {
	return f.createCategory(ctx, in)
}

func (f *fakeRemote) UpdateDepartment(ctx context.Context, id string, in remote.NamedInput) (*remote.Department, error) {
	return f.updateDepartment(ctx, id, in)
}

func (f *fakeRemote) Borrow(ctx context.Context, in remote.BorrowInput) (*remote.Outcome, error) {
	return f.borrow(ctx, in)
}

func (f *fakeRemote) Return(ctx context.Context, historyID string, in remote.ReturnInput) (*remote.Outcome, error) {
	return f.returnItem(ctx, historyID, in)
}

var admin = session.Principal{ID: "u-1", Name: "Ana", Contact: "ana@example.com", DepartmentID: "d-1", Role: model.RoleAdmin}

type harness struct {
	layer  *Layer
	store  *store.Store
	sess   *session.Context
	remote *fakeRemote
	clock  *clock.Stub
}

func newHarness(t *testing.T, mode session.Mode) harness {
	t.Helper()
	clk := clock.Fixed()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(db.NewTestDB(t), logger)
	sess := session.New(mode)
	t.Cleanup(sess.Release)
	sess.SignIn(admin, "token")

	fake := &fakeRemote{}
	n := 0
	l := New(st, fake, sess, inventory.NewMachine(st, clk, logger), Options{
		Clock:  clk,
		Logger: logger,
		NewID: func() string {
			n++
			return fmt.Sprintf("local-%d", n)
		},
	})
	return harness{layer: l, store: st, sess: sess, remote: fake, clock: clk}
}

func (h harness) seedItem(t *testing.T, item model.EquipmentItem) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.store.Update(ctx, func(tx *store.Tx) error { return tx.PutItem(ctx, item) }))
}

func connectivity() error { return errs.New(errs.KindConnectivity, "service unreachable") }

func TestSanitizeItem(t *testing.T) {
	item, ok := sanitizeItem(remote.Item{
		ID:                ptr("i-1"),
		TotalQuantity:     ptr(3),
		AvailableQuantity: ptr(7),
	})
	require.True(t, ok)
	assert.Equal(t, "", item.Name)
	assert.Equal(t, 3, item.TotalQuantity)
	assert.Equal(t, 3, item.AvailableQuantity, "available is capped at total")
	assert.False(t, item.RequiresApproval)

	_, ok = sanitizeItem(remote.Item{Name: ptr("no id")})
	assert.False(t, ok)
}

func TestSanitizeUserDefaults(t *testing.T) {
	u, ok := sanitizeUser(remote.User{ID: ptr("u-1"), Role: ptr("SUPERUSER")})
	require.True(t, ok)
	assert.Equal(t, model.RoleNormalUser, u.Role)
	assert.Equal(t, model.UserStatusNormal, u.Status)
}

func TestSanitizeRegistrationKeepsOnlyHashes(t *testing.T) {
	hash, err := auth.HashPassword("long-enough")
	require.NoError(t, err)

	r, ok := sanitizeRegistration(remote.Registration{ID: ptr("r-1"), PasswordHash: ptr(hash)})
	require.True(t, ok)
	assert.Equal(t, hash, r.Password)

	r, ok = sanitizeRegistration(remote.Registration{ID: ptr("r-2"), PasswordHash: ptr("long-enough")})
	require.True(t, ok)
	assert.Empty(t, r.Password, "plain text is never stored as a hash")
}

func TestSanitizeHistoryStatus(t *testing.T) {
	returned := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	h, ok := sanitizeHistory(remote.HistoryEntry{ID: ptr("h-1"), Status: ptr("PENDING"), ReturnDate: &returned})
	require.True(t, ok)
	assert.Equal(t, model.StatusReturned, h.Status)
	assert.Equal(t, model.Contact{}, h.Borrower)
}

func TestSyncReplacesScopeAndDropsRecordsWithoutID(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedItem(t, model.EquipmentItem{ID: "stale", Name: "Old", DepartmentID: "d-1"})
	h.remote.listItems = func(context.Context, string) ([]remote.Item, error) {
		return []remote.Item{
			{ID: ptr("i-1"), Name: ptr("Laser"), DepartmentID: ptr("d-1"), TotalQuantity: ptr(2), AvailableQuantity: ptr(2)},
			{Name: ptr("Broken")},
		}, nil
	}

	ctx := context.Background()
	ch := h.layer.Equipment().Sync(ctx, "d-1")
	first := <-ch
	assert.Equal(t, Loading, first.Status)
	items, err := Await(ctx, ch)
	require.NoError(t, err)
	require.Len(t, items, 1)

	cached, err := h.store.ListItems(ctx, "d-1")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "i-1", cached[0].ID)
}

func TestSyncFailureKeepsCache(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", DepartmentID: "d-1"})
	h.remote.listItems = func(context.Context, string) ([]remote.Item, error) { return nil, connectivity() }

	ctx := context.Background()
	_, err := Await(ctx, h.layer.Equipment().Sync(ctx, "d-1"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnectivity))

	cached, err := h.store.ListItems(ctx, "d-1")
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestSyncLocalOnlyReadsStore(t *testing.T) {
	h := newHarness(t, session.LocalOnly)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", DepartmentID: "d-1"})

	ctx := context.Background()
	items, err := Await(ctx, h.layer.Equipment().Sync(ctx, "d-1"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestConcurrentSyncsShareOneRemoteCall(t *testing.T) {
	h := newHarness(t, session.Connected)
	var calls atomic.Int32
	release := make(chan struct{})
	h.remote.listItems = func(context.Context, string) ([]remote.Item, error) {
		calls.Add(1)
		<-release
		return []remote.Item{{ID: ptr("i-1"), Name: ptr("Laser")}}, nil
	}

	ctx := context.Background()
	first := h.layer.Equipment().Sync(ctx, "")
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	second := h.layer.Equipment().Sync(ctx, "")
	time.Sleep(50 * time.Millisecond)
	close(release)

	var wg sync.WaitGroup
	for _, ch := range []<-chan Result[[]model.EquipmentItem]{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := Await(ctx, ch)
			assert.NoError(t, err)
			assert.Len(t, items, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestSharedSyncIsBounded(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.layer.syncTimeout = 20 * time.Millisecond
	h.remote.listItems = func(ctx context.Context, _ string) ([]remote.Item, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok, "shared sync runs with a deadline")
		<-ctx.Done()
		return nil, errs.Wrap(errs.KindConnectivity, "listing items", ctx.Err())
	}

	ctx := context.Background()
	_, err := Await(ctx, h.layer.Equipment().Sync(ctx, ""))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnectivity))
}

func TestModeSwitchSupersedesSync(t *testing.T) {
	h := newHarness(t, session.Connected)
	started := make(chan struct{})
	h.remote.listItems = func(ctx context.Context, _ string) ([]remote.Item, error) {
		close(started)
		<-ctx.Done()
		return nil, errs.Wrap(errs.KindConnectivity, "listing items", ctx.Err())
	}

	ctx := context.Background()
	ch := h.layer.Equipment().Sync(ctx, "")
	<-started
	h.sess.SetMode(session.LocalOnly)

	_, err := Await(ctx, ch)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindSuperseded))
}

func TestEquipmentUpdatePropagatesConnectivityFailure(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", TotalQuantity: 2, AvailableQuantity: 2})
	h.remote.updateItem = func(context.Context, string, remote.ItemInput) (*remote.Item, error) {
		return nil, connectivity()
	}

	ctx := context.Background()
	_, err := h.layer.Equipment().Update(ctx, "i-1", ItemInput{Name: "Renamed", TotalQuantity: 5})
	require.Error(t, err)
	assert.True(t, errs.NeedsEndpointPrompt(err))

	item, err := h.store.GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, "Laser", item.Name)
	assert.Equal(t, 2, item.TotalQuantity)
}

func TestEquipmentUpdateLeavesAvailableToService(t *testing.T) {
	h := newHarness(t, session.Connected)
	var sent remote.ItemInput
	h.remote.updateItem = func(_ context.Context, id string, in remote.ItemInput) (*remote.Item, error) {
		sent = in
		return &remote.Item{ID: ptr(id), Name: ptr(in.Name), TotalQuantity: ptr(in.TotalQuantity), AvailableQuantity: ptr(4)}, nil
	}

	ctx := context.Background()
	item, err := h.layer.Equipment().Update(ctx, "i-1", ItemInput{Name: "Laser", TotalQuantity: 5})
	require.NoError(t, err)
	assert.Nil(t, sent.AvailableQuantity)
	assert.Equal(t, 4, item.AvailableQuantity)
}

func TestEquipmentCreateSendsInitialAvailable(t *testing.T) {
	h := newHarness(t, session.Connected)
	var sent remote.ItemInput
	h.remote.createItem = func(_ context.Context, in remote.ItemInput) (*remote.Item, error) {
		sent = in
		return &remote.Item{ID: ptr("i-9"), Name: ptr(in.Name), TotalQuantity: ptr(in.TotalQuantity), AvailableQuantity: in.AvailableQuantity}, nil
	}

	_, err := h.layer.Equipment().Create(context.Background(), ItemInput{Name: "Laser", TotalQuantity: 3})
	require.NoError(t, err)
	require.NotNil(t, sent.AvailableQuantity)
	assert.Equal(t, 3, *sent.AvailableQuantity)
}

func TestEquipmentCreatePropagatesConnectivityFailure(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.remote.createItem = func(context.Context, remote.ItemInput) (*remote.Item, error) { return nil, connectivity() }

	ctx := context.Background()
	_, err := h.layer.Equipment().Create(ctx, ItemInput{Name: "Laser", DepartmentID: "d-1", TotalQuantity: 2})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnectivity))

	items, err := h.store.ListItems(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items, "no local item is invented")
}

func TestEquipmentDeletePropagatesServerFailure(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", TotalQuantity: 1, AvailableQuantity: 1})
	h.remote.deleteItem = func(context.Context, string) error { return errs.New(errs.KindServer, "internal error") }

	ctx := context.Background()
	err := h.layer.Equipment().Delete(ctx, "i-1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindServer))

	item, err := h.store.GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.NotNil(t, item, "item stays cached")
}

func TestCategoryDeletePropagatesConnectivityFailure(t *testing.T) {
	h := newHarness(t, session.Connected)
	ctx := context.Background()
	require.NoError(t, h.store.Update(ctx, func(tx *store.Tx) error {
		return tx.PutCategory(ctx, model.Category{ID: "c-1", Name: "Optics"})
	}))
	h.remote.deleteCategory = func(context.Context, string) error { return connectivity() }

	err := h.layer.Categories().Delete(ctx, "c-1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnectivity))

	cats, err := h.store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "c-1", cats[0].ID)
}

func TestUsersSyncAcceptsUsersWithoutContact(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.remote.listUsers = func(context.Context, string) ([]remote.User, error) {
		return []remote.User{{ID: ptr("u-a"), Name: ptr("A")}, {ID: ptr("u-b"), Name: ptr("B")}}, nil
	}

	ctx := context.Background()
	users, err := Await(ctx, h.layer.Users().Sync(ctx, ""))
	require.NoError(t, err)
	assert.Len(t, users, 2)

	cached, err := h.store.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func (h harness) seedUser(t *testing.T, u model.User) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.store.Update(ctx, func(tx *store.Tx) error { return tx.PutUser(ctx, u) }))
}

func TestUserUpdateFallsBackLocally(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedUser(t, model.User{ID: "u-2", Name: "Bor", Contact: "bor@example.com", DepartmentID: "d-1", Role: model.RoleNormalUser, Status: model.UserStatusNormal, Password: "$2a$hash"})
	h.remote.updateUser = func(context.Context, string, remote.UserInput) (*remote.User, error) { return nil, connectivity() }

	ctx := context.Background()
	u, err := h.layer.Users().Update(ctx, "u-2", UserInput{Name: "Bor K.", Contact: "bor@example.com", DepartmentID: "d-1"})
	require.NoError(t, err)
	assert.Equal(t, "Bor K.", u.Name)

	got, err := h.store.GetUser(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "Bor K.", got.Name)
	assert.Equal(t, "$2a$hash", got.Password, "password hash is kept")
}

func TestUserBanFallsBackLocally(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedUser(t, model.User{ID: "u-2", Name: "Bor", Contact: "bor@example.com", DepartmentID: "d-1", Role: model.RoleNormalUser, Status: model.UserStatusNormal})
	h.remote.updateUser = func(context.Context, string, remote.UserInput) (*remote.User, error) {
		return nil, errs.New(errs.KindServer, "internal error")
	}

	ctx := context.Background()
	u, err := h.layer.Users().Ban(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusBanned, u.Status)

	got, err := h.store.GetUser(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, model.UserStatusBanned, got.Status)
}

func TestUserUpdateNotFoundDoesNotFallBack(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedUser(t, model.User{ID: "u-2", Name: "Bor", Contact: "bor@example.com", Role: model.RoleNormalUser, Status: model.UserStatusNormal})
	h.remote.updateUser = func(context.Context, string, remote.UserInput) (*remote.User, error) {
		return nil, errs.NotFound("user not found")
	}

	ctx := context.Background()
	_, err := h.layer.Users().Update(ctx, "u-2", UserInput{Name: "Renamed", Contact: "bor@example.com"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	got, err := h.store.GetUser(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "Bor", got.Name)
}

func TestDepartmentUpdateFallsBackLocally(t *testing.T) {
	h := newHarness(t, session.Connected)
	ctx := context.Background()
	require.NoError(t, h.store.Update(ctx, func(tx *store.Tx) error {
		return tx.PutDepartment(ctx, model.Department{ID: "d-1", Name: "Physics"})
	}))
	h.remote.updateDepartment = func(context.Context, string, remote.NamedInput) (*remote.Department, error) {
		return nil, errs.New(errs.KindServer, "internal error")
	}

	d, err := h.layer.Departments().Update(ctx, "d-1", "Optics", "")
	require.NoError(t, err)
	assert.Equal(t, "Optics", d.Name)

	got, err := h.store.GetDepartment(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "Optics", got.Name)
}

func TestDepartmentUpdateValidationDoesNotFallBack(t *testing.T) {
	h := newHarness(t, session.Connected)
	ctx := context.Background()
	require.NoError(t, h.store.Update(ctx, func(tx *store.Tx) error {
		return tx.PutDepartment(ctx, model.Department{ID: "d-1", Name: "Physics"})
	}))
	h.remote.updateDepartment = func(context.Context, string, remote.NamedInput) (*remote.Department, error) {
		return nil, errs.Validation("name taken")
	}

	_, err := h.layer.Departments().Update(ctx, "d-1", "Optics", "")
	require.Error(t, err)
	assert.Equal(t, "name taken", errs.Message(err))

	got, err := h.store.GetDepartment(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "Physics", got.Name)
}

func TestSupersededRemoteWriteIsNotApplied(t *testing.T) {
	h := newHarness(t, session.Connected)
	started := make(chan struct{})
	release := make(chan struct{})
	h.remote.createCategory = func(_ context.Context, in remote.NamedInput) (*remote.Category, error) {
		close(started)
		<-release
		return &remote.Category{ID: ptr("c-1"), Name: ptr(in.Name)}, nil
	}

	ctx := context.Background()
	done := make(chan error, 1)
	var got model.Category
	go func() {
		var err error
		got, err = h.layer.Categories().Create(ctx, "Optics")
		done <- err
	}()
	<-started
	h.sess.SignOut()
	close(release)

	require.NoError(t, <-done)
	assert.Equal(t, "c-1", got.ID)

	categories, err := h.store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestLocalOnlyBorrowIsImmediate(t *testing.T) {
	h := newHarness(t, session.LocalOnly)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", TotalQuantity: 2, AvailableQuantity: 2, RequiresApproval: true})

	ctx := context.Background()
	out, err := h.layer.Borrows().Borrow(ctx, inventory.BorrowInput{
		ItemID:             "i-1",
		Quantity:           1,
		Borrower:           model.Contact{Name: "Dora"},
		ExpectedReturnDate: h.clock.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, out.History)
	assert.Nil(t, out.Request)
	assert.Equal(t, model.StatusBorrowing, out.History.Status)
	assert.Equal(t, admin.ID, out.History.Operator.ID)
	assert.Equal(t, 1, out.Item.AvailableQuantity)
}

func TestBorrowRejectsBadInputBeforeRemote(t *testing.T) {
	h := newHarness(t, session.Connected)
	_, err := h.layer.Borrows().Borrow(context.Background(), inventory.BorrowInput{
		ItemID:             "i-1",
		Quantity:           0,
		Borrower:           model.Contact{Name: "Dora"},
		ExpectedReturnDate: h.clock.Now(),
	})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestBorrowConnectivityFailureLeavesStock(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", TotalQuantity: 2, AvailableQuantity: 2})
	h.remote.borrow = func(context.Context, remote.BorrowInput) (*remote.Outcome, error) { return nil, connectivity() }

	ctx := context.Background()
	_, err := h.layer.Borrows().Borrow(ctx, inventory.BorrowInput{
		ItemID:             "i-1",
		Quantity:           1,
		Borrower:           model.Contact{Name: "Dora"},
		ExpectedReturnDate: h.clock.Now().Add(time.Hour),
	})
	require.Error(t, err)

	item, err := h.store.GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 2, item.AvailableQuantity)
	history, err := h.store.ListHistory(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBorrowAppliesRemoteOutcome(t *testing.T) {
	h := newHarness(t, session.Connected)
	h.remote.borrow = func(_ context.Context, in remote.BorrowInput) (*remote.Outcome, error) {
		return &remote.Outcome{
			Item:    &remote.Item{ID: ptr(in.ItemID), Name: ptr("Laser"), TotalQuantity: ptr(2), AvailableQuantity: ptr(1)},
			History: &remote.HistoryEntry{ID: ptr("h-1"), ItemID: ptr(in.ItemID), Quantity: ptr(in.Quantity), Status: ptr("BORROWING")},
		}, nil
	}

	ctx := context.Background()
	_, err := h.layer.Borrows().Borrow(ctx, inventory.BorrowInput{
		ItemID:             "i-1",
		Quantity:           1,
		Borrower:           model.Contact{Name: "Dora"},
		ExpectedReturnDate: h.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	item, err := h.store.GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.AvailableQuantity)
	entry, err := h.store.GetHistory(ctx, "h-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBorrowing, entry.Status)
}

func TestReturnFallsBackLocally(t *testing.T) {
	h := newHarness(t, session.LocalOnly)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", TotalQuantity: 2, AvailableQuantity: 2})

	ctx := context.Background()
	out, err := h.layer.Borrows().Borrow(ctx, inventory.BorrowInput{
		ItemID:             "i-1",
		Quantity:           2,
		Borrower:           model.Contact{Name: "Dora"},
		ExpectedReturnDate: h.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	h.sess.SetMode(session.Connected)
	h.remote.returnItem = func(context.Context, string, remote.ReturnInput) (*remote.Outcome, error) {
		return nil, connectivity()
	}
	ret, err := h.layer.Borrows().Return(ctx, inventory.ReturnInput{HistoryID: out.History.ID, Photos: []string{"photo.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, ret.History.Status)
	assert.Equal(t, 2, ret.Item.AvailableQuantity)
}

func TestReturnOfLocalHistoryUnknownToServiceFails(t *testing.T) {
	h := newHarness(t, session.LocalOnly)
	h.seedItem(t, model.EquipmentItem{ID: "i-1", Name: "Laser", TotalQuantity: 2, AvailableQuantity: 2})

	ctx := context.Background()
	out, err := h.layer.Borrows().Borrow(ctx, inventory.BorrowInput{
		ItemID:             "i-1",
		Quantity:           1,
		Borrower:           model.Contact{Name: "Dora"},
		ExpectedReturnDate: h.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	h.sess.SetMode(session.Connected)
	h.remote.returnItem = func(context.Context, string, remote.ReturnInput) (*remote.Outcome, error) {
		return nil, errs.NotFound("history entry not found")
	}
	_, err = h.layer.Borrows().Return(ctx, inventory.ReturnInput{HistoryID: out.History.ID, Photos: []string{"photo.jpg"}})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound), "not found is never replaced by a local return")

	item, err := h.store.GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.AvailableQuantity, "stock stays borrowed")
}

func TestReturnRequiresEvidence(t *testing.T) {
	h := newHarness(t, session.Connected)
	_, err := h.layer.Borrows().Return(context.Background(), inventory.ReturnInput{HistoryID: "h-1"})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestStrategyTable(t *testing.T) {
	assert.Equal(t, Propagate, StrategyFor(model.FamilyEquipment, OpUpdate))
	assert.Equal(t, Propagate, StrategyFor(model.FamilyBorrowHistory, OpBorrow))
	assert.Equal(t, Fallback, StrategyFor(model.FamilyBorrowHistory, OpReturn))
	assert.Equal(t, Fallback, StrategyFor(model.FamilyDepartments, OpUpdate))
	assert.Equal(t, Propagate, StrategyFor(model.FamilyCategories, Op("rename")))
}

func TestLocalLogin(t *testing.T) {
	h := newHarness(t, session.LocalOnly)
	h.sess.SignOut()
	ctx := context.Background()

	hash, err := auth.HashPassword("secret-pass")
	require.NoError(t, err)
	require.NoError(t, h.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.PutUser(ctx, model.User{
			ID: "u-2", Name: "Bor", Contact: "bor@example.com", Role: model.RoleAdvancedUser,
			Status: model.UserStatusNormal, Password: hash,
		}); err != nil {
			return err
		}
		return tx.PutUser(ctx, model.User{
			ID: "u-3", Name: "Cene", Contact: "cene@example.com", Role: model.RoleNormalUser,
			Status: model.UserStatusBanned, Password: hash,
		})
	}))

	p, err := h.layer.Auth().Login(ctx, "bor@example.com", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "u-2", p.ID)
	assert.Equal(t, model.RoleAdvancedUser, p.Role)
	assert.NotEmpty(t, h.sess.Token())

	_, err = h.layer.Auth().Login(ctx, "bor@example.com", "wrong")
	assert.Equal(t, "invalid credentials", errs.Message(err))

	_, err = h.layer.Auth().Login(ctx, "cene@example.com", "secret-pass")
	assert.Equal(t, "account is banned", errs.Message(err))

	_, err = h.layer.Auth().Login(ctx, "", "")
	assert.True(t, errs.Is(err, errs.KindValidation))

	h.layer.Auth().Logout()
	_, ok := h.sess.Principal()
	assert.False(t, ok)
}
