package ledger

import (
	"errors"

	"inventory-service/internal/models"
)

// ErrInsufficientStock is returned when a reservation asks for more units than
// are currently available on a variant.
var ErrInsufficientStock = errors.New("insufficient stock")

// Reserve places a hold of qty units on the entry. It fails without mutating
// anything when available stock does not cover the request.
func Reserve(entry *models.SizeStock, qty int) error {
	if entry.Available() < qty {
		return ErrInsufficientStock
	}
	entry.Reserved += qty
	Rederive(entry)
	return nil
}

// Release returns qty held units to availability, clamped at zero. It never
// fails; releasing more than is held leaves reserved at zero.
func Release(entry *models.SizeStock, qty int) {
	entry.Reserved = clamp(entry.Reserved - qty)
	Rederive(entry)
}

// Sale commits a purchase: both stock and reserved drop by qty, clamped at
// zero so an unreserved sale cannot push either count negative.
func Sale(entry *models.SizeStock, qty int) {
	entry.Stock = clamp(entry.Stock - qty)
	entry.Reserved = clamp(entry.Reserved - qty)
	Rederive(entry)
}

// ApplySet assigns absolute values for any provided field. An explicit soldOut
// value sets or clears the admin override.
func ApplySet(entry *models.SizeStock, change models.SetChange) {
	if change.Stock != nil {
		entry.Stock = clamp(*change.Stock)
	}
	if change.Reserved != nil {
		entry.Reserved = clamp(*change.Reserved)
	}
	if change.LowStockThreshold != nil {
		entry.LowStockThreshold = clamp(*change.LowStockThreshold)
	}
	if change.SoldOut != nil {
		entry.SoldOutOverride = *change.SoldOut
	}
	Rederive(entry)
}

// ApplyAdjust adds signed deltas to stock and reserved, clamped at zero.
func ApplyAdjust(entry *models.SizeStock, change models.AdjustChange) {
	if change.Stock != nil {
		entry.Stock = clamp(entry.Stock + *change.Stock)
	}
	if change.Reserved != nil {
		entry.Reserved = clamp(entry.Reserved + *change.Reserved)
	}
	Rederive(entry)
}

// ApplyReset zeroes reserved, optionally reassigns stock, and clears any
// soldOut override.
func ApplyReset(entry *models.SizeStock, change models.ResetChange) {
	entry.Reserved = 0
	if change.Stock != nil {
		entry.Stock = clamp(*change.Stock)
	}
	entry.SoldOutOverride = false
	Rederive(entry)
}

// Rederive recomputes the soldOut flag: a variant is sold out when nothing is
// available or when an admin override is in force.
func Rederive(entry *models.SizeStock) {
	entry.SoldOut = entry.SoldOutOverride || entry.Available() <= 0
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
