package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/miyagi/internal/contracts"
)

// EventRepository implements contracts.EventRepository
// ⭐ SSOT: 웹훅 이벤트 저장소는 여기서만
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new event repository
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Create inserts a webhook event, honoring the idempotency key.
// A duplicate key returns the existing record's id with deduped=true
// instead of an error, so replayed alerts are acknowledged quietly.
func (r *EventRepository) Create(ctx context.Context, event *contracts.InboundEvent) (string, bool, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	query := `
		INSERT INTO webhook_events (id, idempotency_key, signature_ok, ip, user_agent, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`

	var id string
	err := r.pool.QueryRow(ctx, query,
		event.ID, event.IdempotencyKey, event.SignatureOK, event.IP, event.UserAgent,
		event.Payload, event.Status,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return "", false, fmt.Errorf("insert webhook event: %w", err)
	}

	// Conflict path: the key already exists, fetch the original id
	query = `SELECT id FROM webhook_events WHERE idempotency_key = $1`
	if err := r.pool.QueryRow(ctx, query, event.IdempotencyKey).Scan(&id); err != nil {
		return "", false, fmt.Errorf("lookup deduped webhook event: %w", err)
	}
	return id, true, nil
}

// GetByID retrieves a webhook event by id
func (r *EventRepository) GetByID(ctx context.Context, id string) (*contracts.InboundEvent, error) {
	query := `
		SELECT id, idempotency_key, signature_ok, ip, user_agent, payload, status,
		       COALESCE(error, ''), COALESCE(source, ''), COALESCE(version, ''),
		       COALESCE(strategy_id, ''), COALESCE(event, ''), COALESCE(side, ''),
		       COALESCE(symbol, ''), COALESCE(timeframe, ''), timestamp_ms, confidence,
		       created_at, updated_at
		FROM webhook_events
		WHERE id = $1
	`

	var e contracts.InboundEvent
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.IdempotencyKey, &e.SignatureOK, &e.IP, &e.UserAgent, &e.Payload, &e.Status,
		&e.Error, &e.Source, &e.Version,
		&e.StrategyID, &e.Event, &e.Side,
		&e.Symbol, &e.Timeframe, &e.TimestampMs, &e.Confidence,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get webhook event %s: %w", id, err)
	}
	return &e, nil
}

// UpdateStatus moves an event through its lifecycle
func (r *EventRepository) UpdateStatus(ctx context.Context, id string, status contracts.EventStatus, errMsg string) error {
	query := `
		UPDATE webhook_events
		SET status = $2, error = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("update webhook event status: %w", err)
	}
	return nil
}

// UpdateNormalized fills the indexed normalized columns after parsing
func (r *EventRepository) UpdateNormalized(ctx context.Context, id string, n *contracts.NormalizedAlert) error {
	query := `
		UPDATE webhook_events
		SET source = NULLIF($2, ''), version = NULLIF($3, ''), strategy_id = NULLIF($4, ''),
		    event = NULLIF($5, ''), side = NULLIF($6, ''), symbol = NULLIF($7, ''),
		    timeframe = NULLIF($8, ''), timestamp_ms = $9, confidence = $10,
		    status = $11, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id,
		n.Source, n.Version, n.StrategyID,
		n.Event, n.Side, n.Symbol,
		n.Timeframe, n.TimestampMs, n.Confidence,
		contracts.EventNormalized,
	)
	if err != nil {
		return fmt.Errorf("update webhook event normalized columns: %w", err)
	}
	return nil
}
