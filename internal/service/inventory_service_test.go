package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memAudit struct {
	mu      sync.Mutex
	records []*models.AuditRecord
	fail    bool
}

func (m *memAudit) Append(ctx context.Context, rec *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("audit sink down")
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memAudit) byAction(action string) []*models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AuditRecord
	for _, r := range m.records {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

func newTestService(t *testing.T, sn *models.Snapshot) (*InventoryService, store.SnapshotStore, *fakeClock, *memAudit) {
	t.Helper()

	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "inventory.json"))
	require.NoError(t, err)
	require.NoError(t, fs.Replace(context.Background(), sn))

	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	audit := &memAudit{}

	svc := NewInventoryService(fs, audit, nil)
	svc.now = clock.Now

	return svc, fs, clock, audit
}

func seedSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Products: []*models.Product{
			{
				ID:       "tee-01",
				Name:     "Classic Tee",
				Category: "shirts",
				Price:    2500,
				Sizes: map[string]*models.SizeStock{
					"M": {Stock: 10, Reserved: 0, SkuID: "sku-tee-m"},
					"L": {Stock: 4, Reserved: 0, SkuID: "sku-tee-l"},
				},
			},
			{
				ID:       "hoodie-01",
				Name:     "Heavy Hoodie",
				Category: "hoodies",
				Price:    6500,
				Sizes: map[string]*models.SizeStock{
					"M": {Stock: 6, Reserved: 0, SkuID: "sku-hoodie-m"},
				},
			},
		},
	}
}

func TestReserveThenCommitSaleScenario(t *testing.T) {
	svc, fs, clock, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	res, err := svc.Reserve(ctx, &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 3, SessionID: "sess-a",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Stock.Available)
	assert.Equal(t, clock.Now().Add(30*time.Minute), res.ExpiresAt)

	// Session B asks for more than what is left.
	_, err = svc.Reserve(ctx, &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 8, SessionID: "sess-b",
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// The failed reservation left no trace.
	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	entry := sn.FindProduct("tee-01").Sizes["M"]
	assert.Equal(t, 10, entry.Stock)
	assert.Equal(t, 3, entry.Reserved)
	require.Len(t, sn.Reservations, 1)

	sale, err := svc.CommitSale(ctx, &SaleRequest{SessionID: "sess-a"})
	require.NoError(t, err)
	assert.Equal(t, 10, sale.OldStock)
	assert.Equal(t, 7, sale.NewStock)

	sn, err = fs.Load(ctx)
	require.NoError(t, err)
	entry = sn.FindProduct("tee-01").Sizes["M"]
	assert.Equal(t, 7, entry.Stock)
	assert.Equal(t, 0, entry.Reserved)
	assert.Empty(t, sn.Reservations)
	assert.False(t, entry.SoldOut)
}

func TestReserveValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &ReserveRequest{Size: "M", SessionID: "s"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Reserve(ctx, &ReserveRequest{ProductID: "tee-01", Size: "M", Quantity: 11, SessionID: "s"})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Reserve(ctx, &ReserveRequest{ProductID: "ghost", Size: "M", Quantity: 1, SessionID: "s"})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.Reserve(ctx, &ReserveRequest{ProductID: "tee-01", Size: "XS", Quantity: 1, SessionID: "s"})
	assert.ErrorIs(t, err, ErrSizeNotFound)
}

func TestReserveDefaultsQuantityToOne(t *testing.T) {
	svc, fs, _, _ := newTestService(t, seedSnapshot())

	res, err := svc.Reserve(context.Background(), &ReserveRequest{
		ProductID: "tee-01", Size: "M", SessionID: "sess-a",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Quantity)

	sn, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sn.FindProduct("tee-01").Sizes["M"].Reserved)
}

func TestRepeatedReservesAccumulate(t *testing.T) {
	svc, fs, _, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Reserve(ctx, &ReserveRequest{
			ProductID: "tee-01", Size: "M", Quantity: 2, SessionID: "sess-a",
		})
		require.NoError(t, err)
	}

	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, sn.FindProduct("tee-01").Sizes["M"].Reserved)
	assert.Len(t, sn.Reservations, 3)
}

func TestReleaseUnknownSessionIsNoop(t *testing.T) {
	svc, fs, _, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 2, SessionID: "sess-a",
	})
	require.NoError(t, err)

	result, err := svc.Release(ctx, "sess-missing")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Released)
	assert.Equal(t, 1, result.Remaining)

	// Unrelated reservations are untouched.
	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sn.FindProduct("tee-01").Sizes["M"].Reserved)
}

func TestReleaseReturnsUnits(t *testing.T) {
	svc, fs, _, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 3, SessionID: "sess-a",
	})
	require.NoError(t, err)

	result, err := svc.Release(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Released)
	assert.Equal(t, 0, result.Remaining)

	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sn.FindProduct("tee-01").Sizes["M"].Reserved)

	// Releasing again is still a success no-op.
	result, err = svc.Release(ctx, "sess-a")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Released)
}

func TestLazySweepRunsOnUnrelatedMutation(t *testing.T) {
	svc, fs, clock, audit := newTestService(t, seedSnapshot())
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 3, SessionID: "sess-a",
	})
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	// Mutating a different variant folds the expired hold back first.
	_, err = svc.Reserve(ctx, &ReserveRequest{
		ProductID: "hoodie-01", Size: "M", Quantity: 1, SessionID: "sess-b",
	})
	require.NoError(t, err)

	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sn.FindProduct("tee-01").Sizes["M"].Reserved)
	require.Len(t, sn.Reservations, 1)
	assert.Equal(t, "sess-b", sn.Reservations[0].SessionID)

	expired := audit.byAction(models.AuditActionRelease)
	require.Len(t, expired, 1)
	assert.Equal(t, models.ReleaseReasonExpired, expired[0].Reason)
	assert.Equal(t, 1, expired[0].Count)
}

func TestReleaseExpired(t *testing.T) {
	svc, fs, clock, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &ReserveRequest{ProductID: "tee-01", Size: "M", Quantity: 2, SessionID: "sess-a"})
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, &ReserveRequest{ProductID: "tee-01", Size: "L", Quantity: 1, SessionID: "sess-b"})
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	_, err = svc.Reserve(ctx, &ReserveRequest{ProductID: "hoodie-01", Size: "M", Quantity: 1, SessionID: "sess-c"})
	require.NoError(t, err)

	// Only the first two holds are past their TTL now.
	clock.Advance(15 * time.Minute)

	result, err := svc.ReleaseExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Released)
	assert.Equal(t, 1, result.Remaining)

	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sn.FindProduct("tee-01").Sizes["M"].Reserved)
	assert.Equal(t, 0, sn.FindProduct("tee-01").Sizes["L"].Reserved)
	assert.Equal(t, 1, sn.FindProduct("hoodie-01").Sizes["M"].Reserved)
	require.Len(t, sn.Reservations, 1)
	assert.Equal(t, "sess-c", sn.Reservations[0].SessionID)

	// Nothing left to sweep.
	result, err = svc.ReleaseExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Released)
}

func TestCommitSaleBySkuFallback(t *testing.T) {
	svc, fs, _, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	sale, err := svc.CommitSale(ctx, &SaleRequest{SessionID: "sess-gone", SkuID: "sku-tee-l"})
	require.NoError(t, err)
	assert.Equal(t, "tee-01", sale.ProductID)
	assert.Equal(t, "L", sale.Size)
	assert.Equal(t, 4, sale.OldStock)
	assert.Equal(t, 3, sale.NewStock)

	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	entry := sn.FindProduct("tee-01").Sizes["L"]
	assert.Equal(t, 3, entry.Stock)
	assert.Equal(t, 0, entry.Reserved)
}

func TestCommitSaleAfterReservationExpired(t *testing.T) {
	svc, fs, clock, _ := newTestService(t, seedSnapshot())
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 1, SessionID: "sess-a",
	})
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	// The hold is swept before resolution, so the sale falls back to the SKU.
	sale, err := svc.CommitSale(ctx, &SaleRequest{SessionID: "sess-a", SkuID: "sku-tee-m"})
	require.NoError(t, err)
	assert.Equal(t, 10, sale.OldStock)
	assert.Equal(t, 9, sale.NewStock)

	sn, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sn.FindProduct("tee-01").Sizes["M"].Reserved)
}

func TestCommitSaleVariantNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, seedSnapshot())

	_, err := svc.CommitSale(context.Background(), &SaleRequest{SessionID: "sess-x", SkuID: "sku-ghost"})
	assert.ErrorIs(t, err, ErrVariantNotFound)

	_, err = svc.CommitSale(context.Background(), &SaleRequest{})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestCommitSaleDerivesSoldOut(t *testing.T) {
	sn := seedSnapshot()
	sn.FindProduct("tee-01").Sizes["L"].Stock = 1
	svc, fs, _, _ := newTestService(t, sn)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, &ReserveRequest{ProductID: "tee-01", Size: "L", Quantity: 1, SessionID: "sess-a"})
	require.NoError(t, err)

	_, err = svc.CommitSale(ctx, &SaleRequest{SessionID: "sess-a"})
	require.NoError(t, err)

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.FindProduct("tee-01").Sizes["L"].SoldOut)
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context) (*models.Snapshot, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Replace(ctx context.Context, sn *models.Snapshot) error {
	return errors.New("disk on fire")
}

func TestStorageUnavailableSurfaces(t *testing.T) {
	rs := store.NewRetryingStore(failingStore{}, store.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})
	svc := NewInventoryService(rs, nil, nil)

	_, err := svc.Reserve(context.Background(), &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 1, SessionID: "sess-a",
	})
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	svc, fs, _, audit := newTestService(t, seedSnapshot())
	audit.fail = true

	res, err := svc.Reserve(context.Background(), &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 2, SessionID: "sess-a",
	})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Stock.Available)

	// The mutation committed despite the sink being down.
	sn, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sn.FindProduct("tee-01").Sizes["M"].Reserved)
}

func TestReserveWritesAudit(t *testing.T) {
	svc, _, _, audit := newTestService(t, seedSnapshot())

	_, err := svc.Reserve(context.Background(), &ReserveRequest{
		ProductID: "tee-01", Size: "M", Quantity: 2, SessionID: "sess-a",
	})
	require.NoError(t, err)

	records := audit.byAction(models.AuditActionReserve)
	require.Len(t, records, 1)
	assert.Equal(t, "sess-a", records[0].SessionID)
	assert.Equal(t, 0, records[0].Before.Reserved)
	assert.Equal(t, 2, records[0].After.Reserved)
}
