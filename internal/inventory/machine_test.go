package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/clock"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
)

var (
	admin    = Actor{Operator: model.Operator{ID: "u-admin", Name: "Ana"}, Role: model.RoleAdmin}
	advanced = Actor{Operator: model.Operator{ID: "u-adv", Name: "Bojan"}, Role: model.RoleAdvancedUser}
	normal   = Actor{Operator: model.Operator{ID: "u-norm", Name: "Cene"}, Role: model.RoleNormalUser}
	borrower = model.Contact{Name: "Dora", Contact: "dora@example.com"}
	evidence = []string{"img:evidence"}
)

type fixture struct {
	store   *store.Store
	clock   *clock.Stub
	machine *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.New(db.NewTestDB(t), nil)
	clk := clock.Fixed()
	return &fixture{store: s, clock: clk, machine: NewMachine(s, clk, nil)}
}

func (f *fixture) addItem(t *testing.T, id string, total, available int, requiresApproval bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Update(ctx, func(tx *store.Tx) error {
		return tx.PutItem(ctx, model.EquipmentItem{
			ID: id, Name: "Item " + id, DepartmentID: "d1",
			TotalQuantity: total, AvailableQuantity: available, RequiresApproval: requiresApproval,
		})
	}))
}

func (f *fixture) item(t *testing.T, id string) *model.EquipmentItem {
	t.Helper()
	item, err := f.store.GetItem(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.GreaterOrEqual(t, item.AvailableQuantity, 0)
	assert.LessOrEqual(t, item.AvailableQuantity, item.TotalQuantity)
	return item
}

func (f *fixture) borrow(t *testing.T, itemID string, qty int, due time.Duration) Outcome {
	t.Helper()
	out, err := f.machine.Borrow(context.Background(), admin, BorrowInput{
		ItemID: itemID, Quantity: qty, Borrower: borrower,
		ExpectedReturnDate: f.clock.Now().Add(due),
	}, false)
	require.NoError(t, err)
	return out
}

func TestBorrowThenInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "i1", 5, 5, false)

	out := f.borrow(t, "i1", 3, 24*time.Hour)
	require.NotNil(t, out.History)
	assert.Equal(t, model.StatusBorrowing, out.History.Status)
	assert.Equal(t, "Item i1", out.History.ItemName)
	assert.Equal(t, 2, f.item(t, "i1").AvailableQuantity)

	_, err := f.machine.Borrow(context.Background(), admin, BorrowInput{
		ItemID: "i1", Quantity: 3, Borrower: borrower, ExpectedReturnDate: f.clock.Now().Add(time.Hour),
	}, false)
	require.Error(t, err)
	assert.Equal(t, "insufficient stock, currently available = 2", errs.Message(err))
	assert.Equal(t, 2, f.item(t, "i1").AvailableQuantity, "failed borrow must not change stock")

	history, err := f.store.ListHistory(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestBorrowMissingItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.Borrow(context.Background(), admin, BorrowInput{
		ItemID: "nope", Quantity: 1, Borrower: borrower, ExpectedReturnDate: f.clock.Now(),
	}, false)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, "item not found", errs.Message(err))
}

func TestBorrowValidatesInput(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "i1", 5, 5, false)
	_, err := f.machine.Borrow(context.Background(), admin, BorrowInput{ItemID: "i1", Quantity: 1}, false)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestRequestApproveMaterializes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 5, 5, true)

	out, err := f.machine.Borrow(ctx, normal, BorrowInput{
		ItemID: "i1", Quantity: 2, Borrower: borrower, ExpectedReturnDate: f.clock.Now().Add(time.Hour),
	}, true)
	require.NoError(t, err)
	require.NotNil(t, out.Request)
	assert.Nil(t, out.History)
	assert.Equal(t, model.StatusPending, out.Request.Status)
	assert.Equal(t, 5, f.item(t, "i1").AvailableQuantity, "pending request must not touch stock")

	approved, err := f.machine.Approve(ctx, advanced, out.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Request.Status)
	assert.Equal(t, "u-adv", approved.Request.ReviewedBy)
	require.NotNil(t, approved.History)
	assert.Equal(t, model.StatusBorrowing, approved.History.Status)
	assert.Equal(t, out.Request.ID, approved.History.RequestID)
	assert.Equal(t, approved.History.ID, approved.Request.HistoryID)
	assert.Equal(t, 3, f.item(t, "i1").AvailableQuantity)

	_, err = f.machine.Approve(ctx, advanced, out.Request.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err), "approving twice must fail")
	_, err = f.machine.Reject(ctx, advanced, out.Request.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestApproveRevalidatesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 3, 3, true)

	out, err := f.machine.Borrow(ctx, normal, BorrowInput{
		ItemID: "i1", Quantity: 2, Borrower: borrower, ExpectedReturnDate: f.clock.Now().Add(time.Hour),
	}, true)
	require.NoError(t, err)

	f.borrow(t, "i1", 2, time.Hour)

	_, err = f.machine.Approve(ctx, admin, out.Request.ID)
	require.Error(t, err)
	assert.Equal(t, "insufficient stock, currently available = 1", errs.Message(err))

	req, err := f.store.GetBorrowRequest(ctx, out.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, 1, f.item(t, "i1").AvailableQuantity)
}

func TestRejectLeavesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 3, 3, true)

	out, err := f.machine.Borrow(ctx, normal, BorrowInput{
		ItemID: "i1", Quantity: 1, Borrower: borrower, ExpectedReturnDate: f.clock.Now().Add(time.Hour),
	}, true)
	require.NoError(t, err)

	rejected, err := f.machine.Reject(ctx, admin, out.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Request.Status)
	assert.Equal(t, 3, f.item(t, "i1").AvailableQuantity)

	_, err = f.machine.Approve(ctx, admin, out.Request.ID)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestSweepThenOverdueReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 5, 5, false)

	out := f.borrow(t, "i1", 2, time.Hour)
	f.clock.Advance(2 * time.Hour)

	first, err := f.machine.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{out.History.ID}, first)

	h, err := f.store.GetHistory(ctx, out.History.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOverdueNotReturned, h.Status)

	second, err := f.machine.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)

	overdue := overdueIDs(t, f)
	assert.Equal(t, []string{out.History.ID}, overdue)

	returned, err := f.machine.Return(ctx, normal, ReturnInput{ItemID: "i1", HistoryID: out.History.ID, Photos: evidence})
	require.NoError(t, err)
	assert.Equal(t, model.StatusOverdueReturned, returned.History.Status)
	require.NotNil(t, returned.History.ReturnDate)
	assert.True(t, returned.History.ReturnDate.Equal(f.clock.Now()))
	assert.Equal(t, 5, f.item(t, "i1").AvailableQuantity)
}

func overdueIDs(t *testing.T, f *fixture) []string {
	t.Helper()
	history, err := f.store.ListHistory(context.Background(), "")
	require.NoError(t, err)
	var ids []string
	for _, h := range history {
		if h.Status == model.StatusOverdueNotReturned {
			ids = append(ids, h.ID)
		}
	}
	return ids
}

func TestSweepSkipsReturnedAndFuture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 5, 5, false)

	done := f.borrow(t, "i1", 1, time.Hour)
	_, err := f.machine.Return(ctx, admin, ReturnInput{HistoryID: done.History.ID, Photos: evidence})
	require.NoError(t, err)
	f.borrow(t, "i1", 1, 48*time.Hour)

	f.clock.Advance(2 * time.Hour)
	ids, err := f.machine.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestOnTimeReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 5, 5, false)

	out := f.borrow(t, "i1", 3, 24*time.Hour)
	f.clock.Advance(time.Hour)

	returned, err := f.machine.Return(ctx, normal, ReturnInput{HistoryID: out.History.ID, Photos: evidence})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturned, returned.History.Status)
	assert.Equal(t, evidence, returned.History.ReturnPhotos)
	assert.Empty(t, returned.History.ForcedReturnBy)
	assert.Equal(t, 5, returned.Item.AvailableQuantity)

	_, err = f.machine.Return(ctx, normal, ReturnInput{HistoryID: out.History.ID, Photos: evidence})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err), "returned entry is terminal")
	assert.Equal(t, 5, f.item(t, "i1").AvailableQuantity)
}

func TestForcedReturnEvidenceByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 5, 5, false)
	out := f.borrow(t, "i1", 1, time.Hour)

	_, err := f.machine.Return(ctx, advanced, ReturnInput{HistoryID: out.History.ID, Forced: true})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, 4, f.item(t, "i1").AvailableQuantity)

	returned, err := f.machine.Return(ctx, admin, ReturnInput{HistoryID: out.History.ID, Forced: true})
	require.NoError(t, err)
	assert.Equal(t, "Ana", returned.History.ForcedReturnBy)
	assert.Equal(t, 5, f.item(t, "i1").AvailableQuantity)
}

func TestReturnCapsAtTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 5, 5, false)
	out := f.borrow(t, "i1", 3, time.Hour)

	// An administrative edit shrinks the item while the borrow is open.
	require.NoError(t, f.store.Update(ctx, func(tx *store.Tx) error {
		item, err := tx.GetItem(ctx, "i1")
		if err != nil {
			return err
		}
		item.TotalQuantity, item.AvailableQuantity = 2, 1
		return tx.PutItem(ctx, *item)
	}))

	returned, err := f.machine.Return(ctx, admin, ReturnInput{HistoryID: out.History.ID, Photos: evidence})
	require.NoError(t, err)
	assert.Equal(t, 2, returned.Item.AvailableQuantity)
}

func TestReturnRejectsWrongItem(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, "i1", 5, 5, false)
	out := f.borrow(t, "i1", 1, time.Hour)

	_, err := f.machine.Return(context.Background(), admin, ReturnInput{ItemID: "i2", HistoryID: out.History.ID, Photos: evidence})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestInterleavedOperationsKeepInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addItem(t, "i1", 4, 4, false)

	var open []string
	for step := 0; step < 24; step++ {
		switch step % 4 {
		case 0, 1:
			out, err := f.machine.Borrow(ctx, admin, BorrowInput{
				ItemID: "i1", Quantity: 1 + step%3, Borrower: borrower,
				ExpectedReturnDate: f.clock.Now().Add(time.Duration(step%3) * time.Hour),
			}, false)
			if err == nil {
				open = append(open, out.History.ID)
			} else {
				assert.Equal(t, errs.KindValidation, errs.KindOf(err))
			}
		case 2:
			_, err := f.machine.SweepOverdue(ctx)
			require.NoError(t, err)
		case 3:
			if len(open) > 0 {
				_, err := f.machine.Return(ctx, admin, ReturnInput{HistoryID: open[0], Forced: true})
				require.NoError(t, err)
				open = open[1:]
			}
		}
		f.clock.Advance(30 * time.Minute)
		f.item(t, "i1")
	}
}

func TestApplyOutcomeStoresAllRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	err := f.machine.ApplyOutcome(ctx, Outcome{
		Item: &model.EquipmentItem{ID: "i9", Name: "Remote", TotalQuantity: 2, AvailableQuantity: 1},
		History: &model.BorrowHistoryEntry{
			ID: "h9", ItemID: "i9", ItemName: "Remote", Quantity: 1,
			BorrowDate: now, ExpectedReturnDate: now.Add(time.Hour), Status: model.StatusBorrowing,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.item(t, "i9").AvailableQuantity)

	h, err := f.store.GetHistory(ctx, "h9")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, model.StatusBorrowing, h.Status)
}
