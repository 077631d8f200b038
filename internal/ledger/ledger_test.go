package ledger

import (
	"testing"

	"inventory-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestReserve(t *testing.T) {
	entry := &models.SizeStock{Stock: 10, Reserved: 0}

	err := Reserve(entry, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Reserved)
	assert.Equal(t, 7, entry.Available())
	assert.False(t, entry.SoldOut)
}

func TestReserveInsufficientStock(t *testing.T) {
	entry := &models.SizeStock{Stock: 10, Reserved: 3}

	err := Reserve(entry, 8)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Rejection leaves the entry untouched.
	assert.Equal(t, 10, entry.Stock)
	assert.Equal(t, 3, entry.Reserved)
}

func TestReserveExactlyAvailable(t *testing.T) {
	entry := &models.SizeStock{Stock: 5, Reserved: 0}

	err := Reserve(entry, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Available())
	assert.True(t, entry.SoldOut)
}

func TestReleaseClampsAtZero(t *testing.T) {
	entry := &models.SizeStock{Stock: 10, Reserved: 2}

	Release(entry, 5)
	assert.Equal(t, 0, entry.Reserved)
	assert.Equal(t, 10, entry.Available())
	assert.False(t, entry.SoldOut)
}

func TestSale(t *testing.T) {
	entry := &models.SizeStock{Stock: 10, Reserved: 3}

	Sale(entry, 3)
	assert.Equal(t, 7, entry.Stock)
	assert.Equal(t, 0, entry.Reserved)
	assert.False(t, entry.SoldOut)
}

func TestSaleClampsAndDerivesSoldOut(t *testing.T) {
	entry := &models.SizeStock{Stock: 1, Reserved: 0}

	Sale(entry, 2)
	assert.Equal(t, 0, entry.Stock)
	assert.Equal(t, 0, entry.Reserved)
	assert.True(t, entry.SoldOut)
}

func TestApplySet(t *testing.T) {
	entry := &models.SizeStock{Stock: 1, Reserved: 1}

	ApplySet(entry, models.SetChange{
		Stock:             intPtr(20),
		Reserved:          intPtr(2),
		LowStockThreshold: intPtr(3),
	})
	assert.Equal(t, 20, entry.Stock)
	assert.Equal(t, 2, entry.Reserved)
	assert.Equal(t, 3, entry.LowStockThreshold)
	assert.False(t, entry.SoldOut)
}

func TestApplySetClampsNegatives(t *testing.T) {
	entry := &models.SizeStock{Stock: 5}

	ApplySet(entry, models.SetChange{Stock: intPtr(-3)})
	assert.Equal(t, 0, entry.Stock)
	assert.True(t, entry.SoldOut)
}

func TestApplySetReservedCanExceedStock(t *testing.T) {
	entry := &models.SizeStock{Stock: 5, Reserved: 0}

	ApplySet(entry, models.SetChange{Reserved: intPtr(8)})
	assert.Equal(t, 8, entry.Reserved)
	assert.Equal(t, -3, entry.Available())
	assert.True(t, entry.SoldOut)
}

func TestSoldOutOverridePersists(t *testing.T) {
	entry := &models.SizeStock{Stock: 10, Reserved: 0}

	ApplySet(entry, models.SetChange{SoldOut: boolPtr(true)})
	assert.True(t, entry.SoldOut)
	assert.Equal(t, 10, entry.Available())

	// A later mutation that does not touch soldOut keeps the override.
	ApplyAdjust(entry, models.AdjustChange{Stock: intPtr(5)})
	assert.True(t, entry.SoldOut)

	// Explicitly clearing it restores derivation.
	ApplySet(entry, models.SetChange{SoldOut: boolPtr(false)})
	assert.False(t, entry.SoldOut)
}

func TestApplyAdjust(t *testing.T) {
	entry := &models.SizeStock{Stock: 10, Reserved: 5}

	ApplyAdjust(entry, models.AdjustChange{Stock: intPtr(-4), Reserved: intPtr(-10)})
	assert.Equal(t, 6, entry.Stock)
	assert.Equal(t, 0, entry.Reserved)
	assert.False(t, entry.SoldOut)
}

func TestApplyReset(t *testing.T) {
	entry := &models.SizeStock{Stock: 3, Reserved: 2, SoldOut: true, SoldOutOverride: true}

	ApplyReset(entry, models.ResetChange{Stock: intPtr(20)})
	assert.Equal(t, 20, entry.Stock)
	assert.Equal(t, 0, entry.Reserved)
	assert.False(t, entry.SoldOut)
	assert.False(t, entry.SoldOutOverride)
}

func TestApplyResetWithoutStock(t *testing.T) {
	entry := &models.SizeStock{Stock: 3, Reserved: 2}

	ApplyReset(entry, models.ResetChange{})
	assert.Equal(t, 3, entry.Stock)
	assert.Equal(t, 0, entry.Reserved)
}
