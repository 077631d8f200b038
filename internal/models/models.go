package models

import "time"

// ReservationTTL is the fixed reservation lifetime. A hold past this age is
// logically dead even before a sweep runs.
const ReservationTTL = 30 * time.Minute

// Quantity bounds for a single reservation.
const (
	MinReserveQuantity = 1
	MaxReserveQuantity = 10
)

// DefaultLowStockThreshold applies when a size entry has no explicit threshold.
const DefaultLowStockThreshold = 5

// Product groups the per-size stock entries for one catalog item
type Product struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Category    string                `json:"category"`
	Price       int64                 `json:"price"`
	Sizes       map[string]*SizeStock `json:"sizes"`
	RestockDate string                `json:"restockDate,omitempty"`
	LastUpdated time.Time             `json:"lastUpdated"`
}

// SizeStock is the ledger entry for one product variant (product + size).
// SoldOut is re-derived from available stock after every mutation;
// SoldOutOverride records an explicit admin override that survives
// re-derivation until it is explicitly cleared or the variant is reset.
type SizeStock struct {
	Stock             int    `json:"stock"`
	Reserved          int    `json:"reserved"`
	LowStockThreshold int    `json:"lowStockThreshold"`
	SoldOut           bool   `json:"soldOut"`
	SoldOutOverride   bool   `json:"soldOutOverride,omitempty"`
	RestockDate       string `json:"restockDate,omitempty"`
	SkuID             string `json:"skuId,omitempty"`
	PriceID           string `json:"priceId,omitempty"`
}

// Available returns the quantity purchasable right now.
func (s *SizeStock) Available() int {
	return s.Stock - s.Reserved
}

// Threshold returns the low-stock threshold, falling back to the default.
func (s *SizeStock) Threshold() int {
	if s.LowStockThreshold <= 0 {
		return DefaultLowStockThreshold
	}
	return s.LowStockThreshold
}

// IsLowStock reports whether the variant is in the low-stock band.
func (s *SizeStock) IsLowStock() bool {
	a := s.Available()
	return a > 0 && a <= s.Threshold()
}

// Clone returns a copy of the entry, used for before/after audit values.
func (s *SizeStock) Clone() *SizeStock {
	c := *s
	return &c
}

// Reservation is a time-bounded hold on a variant created during checkout.
type Reservation struct {
	SessionID string    `json:"sessionId"`
	ProductID string    `json:"productId"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the hold is past its TTL at the given instant.
func (r *Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Snapshot is the full ledger state. It is always persisted and replaced as a
// single unit so a reservation and its ledger counterpart can never diverge.
type Snapshot struct {
	Products     []*Product     `json:"products"`
	Reservations []*Reservation `json:"reservations"`
}

// FindProduct returns the product with the given ID, or nil.
func (sn *Snapshot) FindProduct(productID string) *Product {
	for _, p := range sn.Products {
		if p.ID == productID {
			return p
		}
	}
	return nil
}

// FindBySku resolves a variant by its external SKU identifier. Used when a
// payment notification arrives without a matching reservation.
func (sn *Snapshot) FindBySku(skuID string) (*Product, string, *SizeStock) {
	for _, p := range sn.Products {
		for size, entry := range p.Sizes {
			if entry.SkuID == skuID {
				return p, size, entry
			}
		}
	}
	return nil, "", nil
}

// AuditRecord describes one committed mutation for the append-only audit log.
type AuditRecord struct {
	ID        string     `json:"id"`
	Action    string     `json:"action"`
	Actor     string     `json:"actor,omitempty"`
	ProductID string     `json:"productId,omitempty"`
	Size      string     `json:"size,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Quantity  int        `json:"quantity,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Before    *SizeStock `json:"before,omitempty"`
	After     *SizeStock `json:"after,omitempty"`
	Count     int        `json:"count,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Audit actions
const (
	AuditActionReserve    = "reserve"
	AuditActionRelease    = "release"
	AuditActionSale       = "sale"
	AuditActionUpdate     = "update"
	AuditActionBulkUpdate = "bulk_update"
)

// Release reasons recorded on audit entries
const (
	ReleaseReasonManual  = "manual"
	ReleaseReasonExpired = "expired"
)

// SetChange assigns absolute values. Nil fields are left untouched.
type SetChange struct {
	Stock             *int  `json:"stock,omitempty"`
	Reserved          *int  `json:"reserved,omitempty"`
	LowStockThreshold *int  `json:"lowStockThreshold,omitempty"`
	SoldOut           *bool `json:"soldOut,omitempty"`
}

// AdjustChange adds signed deltas, clamped at zero.
type AdjustChange struct {
	Stock    *int `json:"stock,omitempty"`
	Reserved *int `json:"reserved,omitempty"`
}

// ResetChange zeroes reserved and optionally reassigns stock.
type ResetChange struct {
	Stock *int `json:"stock,omitempty"`
}

// VariantUpdate is one entry of an admin per-variant update request.
type VariantUpdate struct {
	ProductID         string  `json:"productId"`
	Size              string  `json:"size"`
	Stock             *int    `json:"stock,omitempty"`
	AdjustStock       *int    `json:"adjustStock,omitempty"`
	Reserved          *int    `json:"reserved,omitempty"`
	LowStockThreshold *int    `json:"lowStockThreshold,omitempty"`
	SoldOut           *bool   `json:"soldOut,omitempty"`
	RestockDate       *string `json:"restockDate,omitempty"`
}

// Bulk update actions
const (
	BulkActionSet    = "set"
	BulkActionAdjust = "adjust"
	BulkActionReset  = "reset"
)

// BulkFilter selects the variants a bulk update applies to. Provided fields
// are combined with AND semantics.
type BulkFilter struct {
	Category     string   `json:"category,omitempty"`
	ProductIDs   []string `json:"productIds,omitempty"`
	LowStockOnly bool     `json:"lowStockOnly,omitempty"`
}

// InventoryFilter narrows a read-only inventory projection.
type InventoryFilter struct {
	ProductID    string
	Category     string
	LowStockOnly bool
}
