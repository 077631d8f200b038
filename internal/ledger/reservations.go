package ledger

import (
	"time"

	"inventory-service/internal/models"
)

// Partition splits the reservation list into expired and live holds relative
// to now. The snapshot itself is not modified.
func Partition(reservations []*models.Reservation, now time.Time) (expired, live []*models.Reservation) {
	for _, r := range reservations {
		if r.Expired(now) {
			expired = append(expired, r)
		} else {
			live = append(live, r)
		}
	}
	return expired, live
}

// RemoveBySession removes every reservation held by the given session and
// returns the removed entries for ledger reconciliation.
func RemoveBySession(sn *models.Snapshot, sessionID string) []*models.Reservation {
	var removed []*models.Reservation
	kept := sn.Reservations[:0]
	for _, r := range sn.Reservations {
		if r.SessionID == sessionID {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	sn.Reservations = kept
	return removed
}

// Sweep folds every expired reservation back into its variant's ledger entry
// and drops it from the table. Returns the number of holds released. Sweeping
// is idempotent: a swept hold no longer exists, so re-sweeping is a no-op.
func Sweep(sn *models.Snapshot, now time.Time) int {
	expired, live := Partition(sn.Reservations, now)
	if len(expired) == 0 {
		return 0
	}
	for _, r := range expired {
		product := sn.FindProduct(r.ProductID)
		if product == nil {
			continue
		}
		entry, ok := product.Sizes[r.Size]
		if !ok {
			continue
		}
		Release(entry, r.Quantity)
		product.LastUpdated = now
	}
	sn.Reservations = live
	return len(expired)
}
