package models

import "time"

// Event types
const (
	EventTypePaymentCompleted    = "PAYMENT_COMPLETED"
	EventTypePaymentExpired      = "PAYMENT_EXPIRED"
	EventTypePaymentFailed       = "PAYMENT_FAILED"
	EventTypeInventoryChanged    = "INVENTORY_CHANGED"
	EventTypeReservationsExpired = "RESERVATIONS_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent arrives from the payment collaborator when a checkout
// session was paid. SessionID resolves the reservation; SkuID is the fallback
// variant key when no reservation exists for the session.
type PaymentCompletedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id,omitempty"`
	SkuID     string `json:"sku_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// PaymentExpiredEvent arrives when a checkout session expired or was cancelled
// before payment; the session's reservation must be released.
type PaymentExpiredEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
}

// PaymentFailedEvent arrives when a payment attempt failed terminally.
type PaymentFailedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// InventoryChangedEvent is published after every committed mutation.
type InventoryChangedEvent struct {
	BaseEvent
	Action    string `json:"action"`
	ProductID string `json:"product_id,omitempty"`
	Size      string `json:"size,omitempty"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
	SoldOut   bool   `json:"sold_out"`
}

// ReservationsExpiredEvent is published once per sweep batch.
type ReservationsExpiredEvent struct {
	BaseEvent
	Released int `json:"released"`
}
