package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inventory-service/internal/ledger"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 10")
	ErrInvalidAction      = errors.New("invalid action, must be: set, adjust, or reset")
	ErrNoUpdates          = errors.New("no updates provided")
	ErrProductNotFound    = errors.New("product not found")
	ErrSizeNotFound       = errors.New("size not found")
	ErrVariantNotFound    = errors.New("no reservation or variant matched the sale")
	ErrInsufficientStock  = ledger.ErrInsufficientStock
	ErrStorageUnavailable = store.ErrUnavailable
)

// Publisher emits domain events after a mutation has been committed. Publish
// failures never unwind the committed mutation.
type Publisher interface {
	PublishInventoryChanged(ctx context.Context, event *models.InventoryChangedEvent) error
	PublishReservationsExpired(ctx context.Context, event *models.ReservationsExpiredEvent) error
}

// InventoryService is the single mutation pipeline over the durable snapshot.
// Every write follows the same cycle: lock, load, sweep expired reservations,
// validate, apply, persist atomically, then emit audit and events best-effort.
type InventoryService struct {
	mu        sync.Mutex
	store     store.SnapshotStore
	audit     store.AuditSink
	publisher Publisher
	logger    *zap.Logger

	ttl time.Duration
	now func() time.Time
}

// NewInventoryService creates the mutation gateway over the given store.
// The audit sink and publisher may be nil; both are best-effort collaborators.
func NewInventoryService(st store.SnapshotStore, audit store.AuditSink, publisher Publisher) *InventoryService {
	return &InventoryService{
		store:     st,
		audit:     audit,
		publisher: publisher,
		logger:    util.GetLogger(),
		ttl:       models.ReservationTTL,
		now:       time.Now,
	}
}

// StockSnapshot is the caller-visible view of one variant's counts.
type StockSnapshot struct {
	Total     int `json:"total"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}

// ReserveRequest asks for a hold on one variant for a checkout session.
type ReserveRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity"`
	SessionID string `json:"sessionId" binding:"required"`
}

// ReserveResult reports the created hold and the variant's counts after it.
type ReserveResult struct {
	ProductID string        `json:"productId"`
	Size      string        `json:"size"`
	Quantity  int           `json:"quantity"`
	SessionID string        `json:"sessionId"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Stock     StockSnapshot `json:"stock"`
}

// Reserve places a time-bounded hold on a variant. Repeated reserves for the
// same session accumulate; reservation creation and the ledger increment
// commit as one unit or not at all.
func (s *InventoryService) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Reserve")
	defer span.End()
	defer s.observe("reserve")()

	if req.ProductID == "" || req.Size == "" || req.SessionID == "" {
		util.ReservationsFailedTotal.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: productId, size, sessionId", ErrMissingFields)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < models.MinReserveQuantity || req.Quantity > models.MaxReserveQuantity {
		util.ReservationsFailedTotal.WithLabelValues("validation").Inc()
		return nil, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.store.Load(ctx)
	if err != nil {
		util.ReservationsFailedTotal.WithLabelValues("storage").Inc()
		util.StorageFailuresTotal.WithLabelValues("load").Inc()
		return nil, err
	}

	now := s.now()
	swept := ledger.Sweep(sn, now)

	product := sn.FindProduct(req.ProductID)
	if product == nil {
		util.ReservationsFailedTotal.WithLabelValues("not_found").Inc()
		return nil, ErrProductNotFound
	}
	entry, ok := product.Sizes[req.Size]
	if !ok {
		util.ReservationsFailedTotal.WithLabelValues("not_found").Inc()
		return nil, ErrSizeNotFound
	}

	before := entry.Clone()
	if err := ledger.Reserve(entry, req.Quantity); err != nil {
		util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		return nil, fmt.Errorf("%w: available=%d, requested=%d", err, entry.Available(), req.Quantity)
	}

	reservation := &models.Reservation{
		SessionID: req.SessionID,
		ProductID: req.ProductID,
		Size:      req.Size,
		Quantity:  req.Quantity,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	sn.Reservations = append(sn.Reservations, reservation)
	product.LastUpdated = now

	if err := s.store.Replace(ctx, sn); err != nil {
		util.ReservationsFailedTotal.WithLabelValues("storage").Inc()
		util.StorageFailuresTotal.WithLabelValues("replace").Inc()
		return nil, err
	}

	util.ReservationsCreatedTotal.Inc()
	s.emitSweep(ctx, swept, now)
	s.appendAudit(ctx, &models.AuditRecord{
		ID:        uuid.New().String(),
		Action:    models.AuditActionReserve,
		ProductID: req.ProductID,
		Size:      req.Size,
		SessionID: req.SessionID,
		Quantity:  req.Quantity,
		Before:    before,
		After:     entry.Clone(),
		Timestamp: now,
	})
	s.publishChanged(ctx, models.AuditActionReserve, req.ProductID, req.Size, entry)

	s.logger.Info("Reservation created",
		zap.String("product_id", req.ProductID),
		zap.String("size", req.Size),
		zap.Int("quantity", req.Quantity),
		zap.String("session_id", req.SessionID))

	return &ReserveResult{
		ProductID: req.ProductID,
		Size:      req.Size,
		Quantity:  req.Quantity,
		SessionID: req.SessionID,
		ExpiresAt: reservation.ExpiresAt,
		Stock: StockSnapshot{
			Total:     entry.Stock,
			Reserved:  entry.Reserved,
			Available: entry.Available(),
		},
	}, nil
}

// ReleaseResult reports how many holds were removed and how many remain.
type ReleaseResult struct {
	Released  int `json:"released"`
	Remaining int `json:"remaining"`
}

// Release removes every hold owned by the session and returns the held units
// to availability. Releasing an unknown or already-released session is a
// success no-op.
func (s *InventoryService) Release(ctx context.Context, sessionID string) (*ReleaseResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Release")
	defer span.End()
	defer s.observe("release")()

	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionId", ErrMissingFields)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.store.Load(ctx)
	if err != nil {
		util.StorageFailuresTotal.WithLabelValues("load").Inc()
		return nil, err
	}

	now := s.now()
	swept := ledger.Sweep(sn, now)

	removed := ledger.RemoveBySession(sn, sessionID)
	for _, r := range removed {
		if product := sn.FindProduct(r.ProductID); product != nil {
			if entry, ok := product.Sizes[r.Size]; ok {
				ledger.Release(entry, r.Quantity)
				product.LastUpdated = now
			}
		}
	}

	if swept == 0 && len(removed) == 0 {
		return &ReleaseResult{Released: 0, Remaining: len(sn.Reservations)}, nil
	}

	if err := s.store.Replace(ctx, sn); err != nil {
		util.StorageFailuresTotal.WithLabelValues("replace").Inc()
		return nil, err
	}

	s.emitSweep(ctx, swept, now)
	if len(removed) > 0 {
		util.ReservationsReleasedTotal.WithLabelValues(models.ReleaseReasonManual).Add(float64(len(removed)))
		s.appendAudit(ctx, &models.AuditRecord{
			ID:        uuid.New().String(),
			Action:    models.AuditActionRelease,
			SessionID: sessionID,
			Reason:    models.ReleaseReasonManual,
			Count:     len(removed),
			Timestamp: now,
		})
		s.logger.Info("Reservations released",
			zap.String("session_id", sessionID),
			zap.Int("count", len(removed)))
	}

	return &ReleaseResult{Released: len(removed), Remaining: len(sn.Reservations)}, nil
}

// ReleaseExpired sweeps every expired hold back into the ledger. The interval
// worker calls this proactively; every mutation also sweeps lazily.
func (s *InventoryService) ReleaseExpired(ctx context.Context) (*ReleaseResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ReleaseExpired")
	defer span.End()
	defer s.observe("release_expired")()

	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.store.Load(ctx)
	if err != nil {
		util.StorageFailuresTotal.WithLabelValues("load").Inc()
		return nil, err
	}

	now := s.now()
	swept := ledger.Sweep(sn, now)
	if swept == 0 {
		return &ReleaseResult{Released: 0, Remaining: len(sn.Reservations)}, nil
	}

	if err := s.store.Replace(ctx, sn); err != nil {
		util.StorageFailuresTotal.WithLabelValues("replace").Inc()
		return nil, err
	}

	s.emitSweep(ctx, swept, now)
	return &ReleaseResult{Released: swept, Remaining: len(sn.Reservations)}, nil
}

// SaleRequest identifies the variant a completed payment applies to: by the
// checkout session that reserved it, or by SKU when no reservation survives.
type SaleRequest struct {
	SessionID string `json:"sessionId"`
	SkuID     string `json:"skuId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// SaleResult reports the variant's stock before and after the sale.
type SaleResult struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	OldStock  int    `json:"oldStock"`
	NewStock  int    `json:"newStock"`
}

// CommitSale reconciles a successful payment: stock and reserved both drop by
// the sale quantity (clamped at zero) and the session's reservations are
// consumed. When the reservation already expired, the variant is resolved via
// the external SKU key with a default quantity of one.
func (s *InventoryService) CommitSale(ctx context.Context, req *SaleRequest) (*SaleResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.CommitSale")
	defer span.End()
	defer s.observe("sale")()

	if req.SessionID == "" && req.SkuID == "" {
		return nil, fmt.Errorf("%w: sessionId or skuId", ErrMissingFields)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.store.Load(ctx)
	if err != nil {
		util.StorageFailuresTotal.WithLabelValues("load").Inc()
		return nil, err
	}

	now := s.now()
	swept := ledger.Sweep(sn, now)

	var result *SaleResult
	var before, after *models.SizeStock
	quantity := 0

	var removed []*models.Reservation
	if req.SessionID != "" {
		removed = ledger.RemoveBySession(sn, req.SessionID)
	}
	if len(removed) > 0 {
		for _, r := range removed {
			product := sn.FindProduct(r.ProductID)
			if product == nil {
				continue
			}
			entry, ok := product.Sizes[r.Size]
			if !ok {
				continue
			}
			if result == nil {
				before = entry.Clone()
			}
			ledger.Sale(entry, r.Quantity)
			product.LastUpdated = now
			quantity += r.Quantity
			if result == nil {
				after = entry.Clone()
				result = &SaleResult{
					ProductID: r.ProductID,
					Size:      r.Size,
					OldStock:  before.Stock,
					NewStock:  entry.Stock,
				}
			}
		}
	}

	if result == nil {
		// No surviving reservation: fall back to the external variant key.
		if req.SkuID == "" {
			return nil, ErrVariantNotFound
		}
		product, size, entry := sn.FindBySku(req.SkuID)
		if entry == nil {
			return nil, ErrVariantNotFound
		}
		qty := req.Quantity
		if qty <= 0 {
			qty = 1
		}
		before = entry.Clone()
		ledger.Sale(entry, qty)
		product.LastUpdated = now
		after = entry.Clone()
		quantity = qty
		result = &SaleResult{
			ProductID: product.ID,
			Size:      size,
			OldStock:  before.Stock,
			NewStock:  entry.Stock,
		}
	}

	if err := s.store.Replace(ctx, sn); err != nil {
		util.StorageFailuresTotal.WithLabelValues("replace").Inc()
		return nil, err
	}

	util.SalesCommittedTotal.Inc()
	s.emitSweep(ctx, swept, now)
	s.appendAudit(ctx, &models.AuditRecord{
		ID:        uuid.New().String(),
		Action:    models.AuditActionSale,
		ProductID: result.ProductID,
		Size:      result.Size,
		SessionID: req.SessionID,
		Quantity:  quantity,
		Before:    before,
		After:     after,
		Timestamp: now,
	})
	s.publishChanged(ctx, models.AuditActionSale, result.ProductID, result.Size, after)

	s.logger.Info("Sale committed",
		zap.String("product_id", result.ProductID),
		zap.String("size", result.Size),
		zap.Int("old_stock", result.OldStock),
		zap.Int("new_stock", result.NewStock))

	return result, nil
}

// emitSweep records one audit entry and one event per sweep batch.
func (s *InventoryService) emitSweep(ctx context.Context, swept int, now time.Time) {
	if swept == 0 {
		return
	}
	util.ReservationsReleasedTotal.WithLabelValues(models.ReleaseReasonExpired).Add(float64(swept))
	s.appendAudit(ctx, &models.AuditRecord{
		ID:        uuid.New().String(),
		Action:    models.AuditActionRelease,
		Reason:    models.ReleaseReasonExpired,
		Count:     swept,
		Timestamp: now,
	})
	if s.publisher != nil {
		event := &models.ReservationsExpiredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeReservationsExpired,
				Timestamp: now,
			},
			Released: swept,
		}
		if err := s.publisher.PublishReservationsExpired(ctx, event); err != nil {
			s.logger.Error("Failed to publish ReservationsExpired event", zap.Error(err))
		}
	}
}

// appendAudit writes one audit record; failures are logged, never surfaced.
func (s *InventoryService) appendAudit(ctx context.Context, rec *models.AuditRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		util.AuditFailuresTotal.Inc()
		s.logger.Error("Failed to append audit record",
			zap.String("action", rec.Action),
			zap.Error(err))
	}
}

func (s *InventoryService) publishChanged(ctx context.Context, action, productID, size string, entry *models.SizeStock) {
	if s.publisher == nil {
		return
	}
	event := &models.InventoryChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeInventoryChanged,
			Timestamp: s.now(),
		},
		Action:    action,
		ProductID: productID,
		Size:      size,
		Stock:     entry.Stock,
		Reserved:  entry.Reserved,
		Available: entry.Available(),
		SoldOut:   entry.SoldOut,
	}
	if err := s.publisher.PublishInventoryChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish InventoryChanged event", zap.Error(err))
	}
}

func (s *InventoryService) observe(operation string) func() {
	start := time.Now()
	return func() {
		util.MutationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
