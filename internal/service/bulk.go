package service

import (
	"context"
	"fmt"
	"sort"

	"inventory-service/internal/ledger"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BulkChange is the tagged payload of a bulk update: exactly one of the
// fields is set and it determines the action.
type BulkChange struct {
	Set    *models.SetChange
	Adjust *models.AdjustChange
	Reset  *models.ResetChange
}

func (c BulkChange) action() (string, error) {
	switch {
	case c.Set != nil && c.Adjust == nil && c.Reset == nil:
		return models.BulkActionSet, nil
	case c.Adjust != nil && c.Set == nil && c.Reset == nil:
		return models.BulkActionAdjust, nil
	case c.Reset != nil && c.Set == nil && c.Adjust == nil:
		return models.BulkActionReset, nil
	default:
		return "", ErrInvalidAction
	}
}

// ItemDelta records the before/after values of one variant in a batch.
type ItemDelta struct {
	ProductID string            `json:"productId"`
	Size      string            `json:"size"`
	Before    *models.SizeStock `json:"oldValues"`
	After     *models.SizeStock `json:"newValues"`
}

// BulkResult summarizes one committed batch mutation.
type BulkResult struct {
	Action           string      `json:"action"`
	ProductsAffected int         `json:"productsAffected"`
	ItemsUpdated     int         `json:"itemsUpdated"`
	Deltas           []ItemDelta `json:"deltas"`
}

// BulkUpdate applies one action to every size entry of every product matched
// by the filter, in a single commit. An empty match is a no-op success.
func (s *InventoryService) BulkUpdate(ctx context.Context, change BulkChange, filter models.BulkFilter) (*BulkResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.BulkUpdate")
	defer span.End()
	defer s.observe("bulk_update")()

	action, err := change.action()
	if err != nil {
		return nil, err
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

	matched := matchProducts(sn, filter)
	if len(matched) == 0 {
		if swept > 0 {
			if err := s.store.Replace(ctx, sn); err != nil {
				util.StorageFailuresTotal.WithLabelValues("replace").Inc()
				return nil, err
			}
			s.emitSweep(ctx, swept, now)
		}
		return &BulkResult{Action: action}, nil
	}

	result := &BulkResult{Action: action, ProductsAffected: len(matched)}
	for _, product := range matched {
		for _, size := range sortedSizes(product) {
			entry := product.Sizes[size]
			before := entry.Clone()

			switch action {
			case models.BulkActionSet:
				ledger.ApplySet(entry, *change.Set)
			case models.BulkActionAdjust:
				ledger.ApplyAdjust(entry, *change.Adjust)
			case models.BulkActionReset:
				ledger.ApplyReset(entry, *change.Reset)
			}

			result.Deltas = append(result.Deltas, ItemDelta{
				ProductID: product.ID,
				Size:      size,
				Before:    before,
				After:     entry.Clone(),
			})
			result.ItemsUpdated++
		}
		product.LastUpdated = now
	}

	if err := s.store.Replace(ctx, sn); err != nil {
		util.StorageFailuresTotal.WithLabelValues("replace").Inc()
		return nil, err
	}

	util.BulkUpdatesTotal.WithLabelValues(action).Inc()
	s.emitSweep(ctx, swept, now)
	s.appendAudit(ctx, &models.AuditRecord{
		ID:        uuid.New().String(),
		Action:    models.AuditActionBulkUpdate,
		Reason:    action,
		Count:     result.ItemsUpdated,
		Timestamp: now,
	})

	s.logger.Info("Bulk update committed",
		zap.String("action", action),
		zap.Int("products_affected", result.ProductsAffected),
		zap.Int("items_updated", result.ItemsUpdated))

	return result, nil
}

// UpdateResult reports per-item outcomes of an admin variant update.
type UpdateResult struct {
	Successful []ItemDelta    `json:"successful"`
	Failed     []FailedUpdate `json:"failed"`
}

// FailedUpdate names one update entry that could not be applied.
type FailedUpdate struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Reason    string `json:"reason"`
}

// UpdateVariants applies per-variant admin changes in a single commit.
// Unknown variants are reported per item; the rest of the batch still commits.
func (s *InventoryService) UpdateVariants(ctx context.Context, updates []models.VariantUpdate) (*UpdateResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.UpdateVariants")
	defer span.End()
	defer s.observe("update")()

	if len(updates) == 0 {
		return nil, ErrNoUpdates
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

	result := &UpdateResult{}
	for _, u := range updates {
		if u.ProductID == "" || u.Size == "" {
			result.Failed = append(result.Failed, FailedUpdate{
				ProductID: u.ProductID,
				Size:      u.Size,
				Reason:    "missing productId or size",
			})
			continue
		}

		product := sn.FindProduct(u.ProductID)
		if product == nil {
			result.Failed = append(result.Failed, FailedUpdate{
				ProductID: u.ProductID,
				Size:      u.Size,
				Reason:    fmt.Sprintf("product not found: %s", u.ProductID),
			})
			continue
		}
		entry, ok := product.Sizes[u.Size]
		if !ok {
			result.Failed = append(result.Failed, FailedUpdate{
				ProductID: u.ProductID,
				Size:      u.Size,
				Reason:    fmt.Sprintf("size not found: %s for product %s", u.Size, u.ProductID),
			})
			continue
		}

		before := entry.Clone()
		ledger.ApplySet(entry, models.SetChange{
			Stock:             u.Stock,
			Reserved:          u.Reserved,
			LowStockThreshold: u.LowStockThreshold,
			SoldOut:           u.SoldOut,
		})
		if u.Stock == nil && u.AdjustStock != nil {
			ledger.ApplyAdjust(entry, models.AdjustChange{Stock: u.AdjustStock})
		}
		if u.RestockDate != nil {
			entry.RestockDate = *u.RestockDate
		}
		product.LastUpdated = now

		result.Successful = append(result.Successful, ItemDelta{
			ProductID: u.ProductID,
			Size:      u.Size,
			Before:    before,
			After:     entry.Clone(),
		})
	}

	if swept == 0 && len(result.Successful) == 0 {
		return result, nil
	}

	if err := s.store.Replace(ctx, sn); err != nil {
		util.StorageFailuresTotal.WithLabelValues("replace").Inc()
		return nil, err
	}

	s.emitSweep(ctx, swept, now)
	if len(result.Successful) > 0 {
		s.appendAudit(ctx, &models.AuditRecord{
			ID:        uuid.New().String(),
			Action:    models.AuditActionUpdate,
			Count:     len(result.Successful),
			Timestamp: now,
		})
		s.logger.Info("Inventory updated",
			zap.Int("successful", len(result.Successful)),
			zap.Int("failed", len(result.Failed)))
	}

	return result, nil
}

// matchProducts resolves a bulk filter to its candidate set. Provided fields
// combine with AND semantics; a product is low-stock when any size entry is.
func matchProducts(sn *models.Snapshot, filter models.BulkFilter) []*models.Product {
	matched := sn.Products

	if filter.Category != "" {
		matched = filterProducts(matched, func(p *models.Product) bool {
			return p.Category == filter.Category
		})
	}

	if len(filter.ProductIDs) > 0 {
		ids := make(map[string]bool, len(filter.ProductIDs))
		for _, id := range filter.ProductIDs {
			ids[id] = true
		}
		matched = filterProducts(matched, func(p *models.Product) bool {
			return ids[p.ID]
		})
	}

	if filter.LowStockOnly {
		matched = filterProducts(matched, func(p *models.Product) bool {
			for _, entry := range p.Sizes {
				if entry.IsLowStock() {
					return true
				}
			}
			return false
		})
	}

	return matched
}

func filterProducts(products []*models.Product, keep func(*models.Product) bool) []*models.Product {
	var out []*models.Product
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func sortedSizes(product *models.Product) []string {
	sizes := make([]string, 0, len(product.Sizes))
	for size := range product.Sizes {
		sizes = append(sizes, size)
	}
	sort.Strings(sizes)
	return sizes
}
