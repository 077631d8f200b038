package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresAuditSink appends audit records to an inventory_audit table.
// Inserts only, no updates: the table is the durable append-only log.
type PostgresAuditSink struct {
	db *sqlx.DB
}

// NewPostgresAuditSink connects to postgres and returns an audit sink.
func NewPostgresAuditSink(databaseURL string) (*PostgresAuditSink, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresAuditSink{db: db}, nil
}

// Append inserts one audit record. Before/after values are stored as JSON.
func (pa *PostgresAuditSink) Append(ctx context.Context, rec *models.AuditRecord) error {
	before, err := json.Marshal(rec.Before)
	if err != nil {
		return fmt.Errorf("failed to encode before values: %w", err)
	}
	after, err := json.Marshal(rec.After)
	if err != nil {
		return fmt.Errorf("failed to encode after values: %w", err)
	}

	_, err = pa.db.ExecContext(ctx, `
		INSERT INTO inventory_audit
			(id, action, actor, product_id, size, session_id, quantity, reason, before_values, after_values, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Action, rec.Actor, rec.ProductID, rec.Size,
		rec.SessionID, rec.Quantity, rec.Reason, before, after, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (pa *PostgresAuditSink) Close() error {
	return pa.db.Close()
}
