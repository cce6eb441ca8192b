package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/izposoja/internal/errs"
	"github.com/erazemk/izposoja/internal/model"
)

func TestTerminalStatesHaveNoExit(t *testing.T) {
	all := []model.BorrowStatus{
		model.StatusPending, model.StatusApproved, model.StatusRejected,
		model.StatusBorrowing, model.StatusReturned,
		model.StatusOverdueNotReturned, model.StatusOverdueReturned,
	}
	for _, from := range all {
		if !IsTerminal(from) {
			continue
		}
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.True(t, CanTransition(model.StatusOverdueNotReturned, model.StatusOverdueReturned))
	assert.False(t, CanTransition(model.StatusOverdueNotReturned, model.StatusReturned))
	assert.False(t, CanTransition(model.StatusPending, model.StatusBorrowing))
}

func TestCheckStock(t *testing.T) {
	item := &model.EquipmentItem{ID: "i1", TotalQuantity: 5, AvailableQuantity: 2}

	assert.NoError(t, CheckStock(item, 2))

	err := CheckStock(item, 3)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.Equal(t, "insufficient stock, currently available = 2", errs.Message(err))

	assert.Equal(t, errs.KindValidation, errs.KindOf(CheckStock(item, 0)))

	err = CheckStock(nil, 1)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	assert.Equal(t, "item not found", errs.Message(err))
}

func TestReturnStatus(t *testing.T) {
	expected := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, model.StatusReturned, ReturnStatus(model.StatusBorrowing, expected.Add(-time.Hour), expected))
	assert.Equal(t, model.StatusReturned, ReturnStatus(model.StatusBorrowing, expected, expected))
	assert.Equal(t, model.StatusOverdueReturned, ReturnStatus(model.StatusBorrowing, expected.Add(time.Minute), expected))
	assert.Equal(t, model.StatusOverdueReturned, ReturnStatus(model.StatusOverdueNotReturned, expected.Add(-time.Hour), expected))
}

func TestCheckReturnEvidence(t *testing.T) {
	photos := []string{"img:1"}
	tests := []struct {
		name   string
		role   model.Role
		forced bool
		photos []string
		kind   errs.Kind
	}{
		{"normal with photo", model.RoleNormalUser, false, photos, errs.KindUnknown},
		{"normal without photo", model.RoleSuperAdmin, false, nil, errs.KindValidation},
		{"forced by normal user", model.RoleNormalUser, true, photos, errs.KindUnauthorized},
		{"forced by advanced without photo", model.RoleAdvancedUser, true, nil, errs.KindValidation},
		{"forced by advanced with photo", model.RoleAdvancedUser, true, photos, errs.KindUnknown},
		{"forced by admin without photo", model.RoleAdmin, true, nil, errs.KindUnknown},
		{"forced by super admin without photo", model.RoleSuperAdmin, true, nil, errs.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReturnEvidence(tt.role, tt.forced, tt.photos)
			if tt.kind == errs.KindUnknown {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.kind, errs.KindOf(err))
		})
	}
}

func TestNeedsApproval(t *testing.T) {
	item := &model.EquipmentItem{RequiresApproval: true}
	assert.True(t, NeedsApproval(item, model.RoleNormalUser))
	assert.True(t, NeedsApproval(item, model.RoleAdvancedUser))
	assert.False(t, NeedsApproval(item, model.RoleAdmin))
	assert.False(t, NeedsApproval(&model.EquipmentItem{}, model.RoleNormalUser))
}

func TestResizeKeepsBorrowedCount(t *testing.T) {
	item := model.EquipmentItem{TotalQuantity: 5, AvailableQuantity: 2}

	grown, err := Resize(item, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, grown.TotalQuantity)
	assert.Equal(t, 5, grown.AvailableQuantity)

	shrunk, err := Resize(item, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, shrunk.AvailableQuantity)

	_, err = Resize(item, 2)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
