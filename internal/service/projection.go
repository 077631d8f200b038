package service

import (
	"context"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"
)

// SizeInventory is the read-only projection of one variant.
type SizeInventory struct {
	Size              string `json:"size"`
	Stock             int    `json:"stock"`
	Reserved          int    `json:"reserved"`
	Available         int    `json:"available"`
	LowStockThreshold int    `json:"lowStockThreshold"`
	IsLowStock        bool   `json:"isLowStock"`
	IsOutOfStock      bool   `json:"isOutOfStock"`
	SoldOut           bool   `json:"soldOut"`
	RestockDate       string `json:"restockDate,omitempty"`
	SkuID             string `json:"skuId,omitempty"`
	PriceID           string `json:"priceId,omitempty"`
}

// ProductInventory is the read-only projection of one product.
type ProductInventory struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       int64           `json:"price"`
	Sizes       []SizeInventory `json:"sizes"`
	Totals      StockSnapshot   `json:"totals"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// InventorySummary aggregates the projection for dashboards.
type InventorySummary struct {
	TotalProducts   int `json:"totalProducts"`
	LowStockItems   int `json:"lowStockItems"`
	OutOfStockItems int `json:"outOfStockItems"`
}

// InventoryResult is the full response of a GetInventory read.
type InventoryResult struct {
	Inventory []ProductInventory `json:"inventory"`
	Summary   InventorySummary   `json:"summary"`
}

// GetInventory builds an advisory read-only projection from the latest
// durable snapshot. Availability is re-derived at read time; expired
// reservations are not swept here, only by the mutation pipeline.
func (s *InventoryService) GetInventory(ctx context.Context, filter models.InventoryFilter) (*InventoryResult, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.GetInventory")
	defer span.End()

	sn, err := s.store.Load(ctx)
	if err != nil {
		util.StorageFailuresTotal.WithLabelValues("load").Inc()
		return nil, err
	}

	products := sn.Products
	if filter.ProductID != "" {
		product := sn.FindProduct(filter.ProductID)
		if product == nil {
			return nil, ErrProductNotFound
		}
		products = []*models.Product{product}
	}
	if filter.Category != "" {
		products = filterProducts(products, func(p *models.Product) bool {
			return p.Category == filter.Category
		})
	}

	result := &InventoryResult{Inventory: []ProductInventory{}}
	for _, product := range products {
		item := ProductInventory{
			ProductID:   product.ID,
			Name:        product.Name,
			Category:    product.Category,
			Price:       product.Price,
			LastUpdated: product.LastUpdated,
		}

		outOfStockSizes := 0
		lowStock := false
		for _, size := range sortedSizes(product) {
			entry := product.Sizes[size]
			available := entry.Available()
			isOut := available <= 0

			restockDate := entry.RestockDate
			if restockDate == "" {
				restockDate = product.RestockDate
			}

			item.Sizes = append(item.Sizes, SizeInventory{
				Size:              size,
				Stock:             entry.Stock,
				Reserved:          entry.Reserved,
				Available:         available,
				LowStockThreshold: entry.Threshold(),
				IsLowStock:        entry.IsLowStock(),
				IsOutOfStock:      isOut,
				SoldOut:           entry.SoldOut || isOut,
				RestockDate:       restockDate,
				SkuID:             entry.SkuID,
				PriceID:           entry.PriceID,
			})

			item.Totals.Total += entry.Stock
			item.Totals.Reserved += entry.Reserved
			item.Totals.Available += available
			if isOut {
				outOfStockSizes++
			}
			if entry.IsLowStock() {
				lowStock = true
			}
		}

		if lowStock {
			result.Summary.LowStockItems++
		}
		if len(item.Sizes) > 0 && outOfStockSizes == len(item.Sizes) {
			result.Summary.OutOfStockItems++
		}

		if filter.LowStockOnly {
			if !lowStock {
				continue
			}
			var lowSizes []SizeInventory
			for _, si := range item.Sizes {
				if si.IsLowStock {
					lowSizes = append(lowSizes, si)
				}
			}
			item.Sizes = lowSizes
		}

		result.Inventory = append(result.Inventory, item)
	}

	result.Summary.TotalProducts = len(result.Inventory)
	return result, nil
}
