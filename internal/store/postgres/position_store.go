package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokenwave/positiond/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, agent_id, wallet, token_address, token_symbol,
	purchase_price, purchase_amount, total_invested, remaining_amount,
	peak_price, current_stop_loss_pct,
	tp_levels_hit, tp_batch_start_level, total_tp_levels,
	moon_bag_activated, moon_bag_amount,
	dca_count, last_dca_at, realized_profit,
	status, opened_at, closed_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status string

	err := row.Scan(
		&p.ID, &p.AgentID, &p.Wallet, &p.TokenAddress, &p.TokenSymbol,
		&p.PurchasePrice, &p.PurchaseAmount, &p.TotalInvested, &p.RemainingAmount,
		&p.PeakPrice, &p.CurrentStopLossPct,
		&p.TakeProfitLevelsHit, &p.TPBatchStartLevel, &p.TotalTakeProfitLevels,
		&p.MoonBagActivated, &p.MoonBagAmount,
		&p.DCACount, &p.LastDCAAt, &p.RealizedProfit,
		&status, &p.OpenedAt, &p.ClosedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Create inserts a new open position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, agent_id, wallet, token_address, token_symbol,
			purchase_price, purchase_amount, total_invested, remaining_amount,
			peak_price, current_stop_loss_pct,
			tp_levels_hit, tp_batch_start_level, total_tp_levels,
			moon_bag_activated, moon_bag_amount,
			dca_count, last_dca_at, realized_profit,
			status, opened_at, closed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11,
			$12, $13, $14,
			$15, $16,
			$17, $18, $19,
			$20, $21, $22, NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.AgentID, p.Wallet, p.TokenAddress, p.TokenSymbol,
		p.PurchasePrice, p.PurchaseAmount, p.TotalInvested, p.RemainingAmount,
		p.PeakPrice, p.CurrentStopLossPct,
		p.TakeProfitLevelsHit, p.TPBatchStartLevel, p.TotalTakeProfitLevels,
		p.MoonBagActivated, p.MoonBagAmount,
		p.DCACount, p.LastDCAAt, p.RealizedProfit,
		string(p.Status), p.OpenedAt, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// Update applies the non-nil fields of upd to the position. A no-op update
// (all fields nil) returns immediately without touching the database.
func (s *PositionStore) Update(ctx context.Context, id string, upd domain.PositionUpdate) error {
	sets := []string{}
	args := []any{id}
	argIdx := 2

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	if upd.PurchasePrice != nil {
		add("purchase_price", *upd.PurchasePrice)
	}
	if upd.PurchaseAmount != nil {
		add("purchase_amount", *upd.PurchaseAmount)
	}
	if upd.TotalInvested != nil {
		add("total_invested", *upd.TotalInvested)
	}
	if upd.RemainingAmount != nil {
		add("remaining_amount", *upd.RemainingAmount)
	}
	if upd.PeakPrice != nil {
		add("peak_price", *upd.PeakPrice)
	}
	if upd.CurrentStopLossPct != nil {
		add("current_stop_loss_pct", *upd.CurrentStopLossPct)
	}
	if upd.TakeProfitLevelsHit != nil {
		add("tp_levels_hit", *upd.TakeProfitLevelsHit)
	}
	if upd.TPBatchStartLevel != nil {
		add("tp_batch_start_level", *upd.TPBatchStartLevel)
	}
	if upd.TotalTakeProfitLevels != nil {
		add("total_tp_levels", *upd.TotalTakeProfitLevels)
	}
	if upd.MoonBagActivated != nil {
		add("moon_bag_activated", *upd.MoonBagActivated)
	}
	if upd.MoonBagAmount != nil {
		add("moon_bag_amount", *upd.MoonBagAmount)
	}
	if upd.DCACount != nil {
		add("dca_count", *upd.DCACount)
	}
	if upd.LastDCAAt != nil {
		add("last_dca_at", *upd.LastDCAAt)
	}
	if upd.RealizedProfit != nil {
		add("realized_profit", *upd.RealizedProfit)
	}

	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE positions SET " + sets[0]
	for _, s := range sets[1:] {
		query += ", " + s
	}
	query += ", updated_at = NOW() WHERE id = $1"

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Close marks a position as closed, removing it from the open set.
func (s *PositionStore) Close(ctx context.Context, id string) error {
	const query = `
		UPDATE positions SET
			status     = 'closed',
			closed_at  = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: close position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListOpenByToken returns all open positions holding the given token.
func (s *PositionStore) ListOpenByToken(ctx context.Context, tokenAddress string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE token_address = $1 AND status = 'open'
		 ORDER BY opened_at`, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions by token: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// ListOpenByWallet returns all open positions for the given wallet.
func (s *PositionStore) ListOpenByWallet(ctx context.Context, wallet string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE wallet = $1 AND status = 'open'
		 ORDER BY opened_at DESC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions by wallet: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// ListOpenTokens returns the distinct token addresses with open positions.
func (s *PositionStore) ListOpenTokens(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT token_address FROM positions WHERE status = 'open'`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("postgres: scan open token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
