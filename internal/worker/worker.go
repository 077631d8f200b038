package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"inventory-service/internal/broker"
	"inventory-service/internal/models"
	"inventory-service/internal/service"
)

// PaymentWorker reconciles payment outcomes against the inventory ledger:
// completed payments commit the sale, expired or failed ones release the hold.
type PaymentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	inventory    *service.InventoryService
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer *broker.Consumer, inventory *service.InventoryService) *PaymentWorker {
	eventHandler := broker.NewEventHandler()

	w := &PaymentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		inventory:    inventory,
	}

	eventHandler.OnPaymentCompleted(w.handlePaymentCompleted)
	eventHandler.OnPaymentExpired(w.handlePaymentExpired)
	eventHandler.OnPaymentFailed(w.handlePaymentFailed)

	return w
}

// Start starts the worker
func (w *PaymentWorker) Start(ctx context.Context) error {
	log.Println("Starting payment worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *PaymentWorker) Stop() error {
	log.Println("Stopping payment worker...")
	return w.consumer.Close()
}

func (w *PaymentWorker) handlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	result, err := w.inventory.CommitSale(ctx, &service.SaleRequest{
		SessionID: event.SessionID,
		SkuID:     event.SkuID,
		Quantity:  event.Quantity,
	})
	if err != nil {
		// An unknown variant means the catalog and the payment stream disagree;
		// there is nothing to retry, so acknowledge and log.
		if errors.Is(err, service.ErrVariantNotFound) {
			log.Printf("No variant matched completed payment session %s", event.SessionID)
			return nil
		}
		return err
	}

	log.Printf("Sale committed for session %s: %s/%s stock %d -> %d",
		event.SessionID, result.ProductID, result.Size, result.OldStock, result.NewStock)
	return nil
}

func (w *PaymentWorker) handlePaymentExpired(ctx context.Context, event *models.PaymentExpiredEvent) error {
	result, err := w.inventory.Release(ctx, event.SessionID)
	if err != nil {
		return err
	}

	log.Printf("Released %d reservations for expired session %s", result.Released, event.SessionID)
	return nil
}

func (w *PaymentWorker) handlePaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error {
	result, err := w.inventory.Release(ctx, event.SessionID)
	if err != nil {
		return err
	}

	log.Printf("Released %d reservations for failed payment session %s", result.Released, event.SessionID)
	return nil
}

// ExpiryWorker proactively sweeps expired reservations on a fixed interval,
// complementing the lazy sweep inside every mutation.
type ExpiryWorker struct {
	inventory *service.InventoryService
	interval  time.Duration
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(inventory *service.InventoryService, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{inventory: inventory, interval: interval}
}

// Start runs the sweep loop until the context is cancelled.
func (ew *ExpiryWorker) Start(ctx context.Context) error {
	log.Printf("Starting expiry worker (interval %s)...", ew.interval)

	ticker := time.NewTicker(ew.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry worker context cancelled, stopping...")
			return ctx.Err()
		case <-ticker.C:
			result, err := ew.inventory.ReleaseExpired(ctx)
			if err != nil {
				log.Printf("Expiry sweep failed: %v", err)
				continue
			}
			if result.Released > 0 {
				log.Printf("Expiry sweep released %d reservations", result.Released)
			}
		}
	}
}
