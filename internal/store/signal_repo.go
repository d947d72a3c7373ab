package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/miyagi/internal/contracts"
)

// SignalRepository implements contracts.SignalRepository
// ⭐ SSOT: 시그널 저장소는 여기서만
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// Create inserts a decision record
func (r *SignalRepository) Create(ctx context.Context, signal *contracts.Signal) error {
	if signal.ID == "" {
		signal.ID = uuid.NewString()
	}

	query := `
		INSERT INTO signals (id, webhook_id, strategy_id, symbol, side, timeframe, event,
		                     base_score, final_score, decision, decision_why,
		                     scanner_rank, scanner_total, scanner_window_sec,
		                     expires_at, enrichment, option_pick)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.pool.Exec(ctx, query,
		signal.ID, signal.WebhookID, signal.StrategyID, signal.Symbol, signal.Side,
		signal.Timeframe, signal.Event,
		signal.BaseScore, signal.FinalScore, signal.Decision, signal.DecisionWhy,
		signal.ScannerRank, signal.ScannerTotal, signal.ScannerWindowSec,
		signal.ExpiresAt, signal.Enrichment, signal.OptionPick,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

const signalColumns = `
	id, webhook_id, strategy_id, symbol, side, timeframe, event,
	base_score, final_score, decision, decision_why,
	scanner_rank, scanner_total, scanner_window_sec,
	expires_at, enrichment, option_pick, created_at
`

func scanSignal(row interface{ Scan(dest ...any) error }) (*contracts.Signal, error) {
	var s contracts.Signal
	err := row.Scan(
		&s.ID, &s.WebhookID, &s.StrategyID, &s.Symbol, &s.Side, &s.Timeframe, &s.Event,
		&s.BaseScore, &s.FinalScore, &s.Decision, &s.DecisionWhy,
		&s.ScannerRank, &s.ScannerTotal, &s.ScannerWindowSec,
		&s.ExpiresAt, &s.Enrichment, &s.OptionPick, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a signal by id
func (r *SignalRepository) GetByID(ctx context.Context, id string) (*contracts.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	s, err := scanSignal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get signal %s: %w", id, err)
	}
	return s, nil
}

// GetByWebhookID retrieves the signal created for a webhook event, if any
func (r *SignalRepository) GetByWebhookID(ctx context.Context, webhookID string) (*contracts.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE webhook_id = $1`

	s, err := scanSignal(r.pool.QueryRow(ctx, query, webhookID))
	if err != nil {
		return nil, fmt.Errorf("get signal for webhook %s: %w", webhookID, err)
	}
	return s, nil
}

// List retrieves recent signals, newest first
func (r *SignalRepository) List(ctx context.Context, limit int) ([]contracts.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var signals []contracts.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, *s)
	}
	return signals, rows.Err()
}

// RecentCandidates returns ranking candidates for the Top-N gate:
// signals of the same strategy and timeframe created at or after since.
func (r *SignalRepository) RecentCandidates(ctx context.Context, strategyID, timeframe string, since time.Time) ([]contracts.Candidate, error) {
	query := `
		SELECT id, symbol, final_score, created_at
		FROM signals
		WHERE strategy_id = $1 AND timeframe = $2 AND created_at >= $3
	`

	rows, err := r.pool.Query(ctx, query, strategyID, timeframe, since)
	if err != nil {
		return nil, fmt.Errorf("query recent candidates: %w", err)
	}
	defer rows.Close()

	var candidates []contracts.Candidate
	for rows.Next() {
		var c contracts.Candidate
		var createdAt time.Time
		if err := rows.Scan(&c.ID, &c.Symbol, &c.FinalScore, &createdAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Ts = createdAt.UnixMilli()
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// AttachOptionPick stores the contract selection snapshot on a signal
func (r *SignalRepository) AttachOptionPick(ctx context.Context, id string, pick json.RawMessage) error {
	query := `UPDATE signals SET option_pick = $2 WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id, pick)
	if err != nil {
		return fmt.Errorf("attach option pick: %w", err)
	}
	return nil
}

// Downgrade updates the decision and appends to the reason trail
func (r *SignalRepository) Downgrade(ctx context.Context, id string, decision contracts.Decision, appendWhy string) error {
	query := `
		UPDATE signals
		SET decision = $2, decision_why = decision_why || ', ' || $3
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, decision, appendWhy)
	if err != nil {
		return fmt.Errorf("downgrade signal: %w", err)
	}
	return nil
}
