// Package engine orchestrates position evaluation: a price tick fans out to
// the open positions holding the token, each evaluation runs under a
// per-position lock, and decisions that move money are applied through the
// balance ledger inside a single database transaction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	cacheredis "github.com/tokenwave/positiond/internal/cache/redis"
	"github.com/tokenwave/positiond/internal/config"
	"github.com/tokenwave/positiond/internal/domain"
	"github.com/tokenwave/positiond/internal/evaluator"
	"github.com/tokenwave/positiond/internal/ledger"
	"github.com/tokenwave/positiond/internal/notify"
	"github.com/tokenwave/positiond/internal/tracker"
)

// Engine ties the evaluators, ledger, lock manager, and collaborators
// together.
type Engine struct {
	pool      *pgxpool.Pool
	positions domain.PositionStore
	configs   *ConfigProvider
	locks     domain.LockManager
	ledger    *ledger.Ledger
	balances  domain.BalanceCache

	stopLoss   *evaluator.StopLoss
	takeProfit *evaluator.TakeProfit
	dca        *evaluator.DCA

	tracker  *tracker.Tracker
	executor TradeExecutor
	notifier *notify.Notifier

	lockTTL       time.Duration
	maxConcurrent int
	baseToken     string
	baseSymbol    string

	logger *slog.Logger
}

// Options bundle the engine's dependencies.
type Options struct {
	Pool      *pgxpool.Pool
	Positions domain.PositionStore
	Configs   *ConfigProvider
	Locks     domain.LockManager
	Ledger    *ledger.Ledger
	Balances  domain.BalanceCache
	Tracker   *tracker.Tracker
	Executor  TradeExecutor
	Notifier  *notify.Notifier
	Engine    config.EngineConfig
	Logger    *slog.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger.With(slog.String("component", "engine"))
	return &Engine{
		pool:          opts.Pool,
		positions:     opts.Positions,
		configs:       opts.Configs,
		locks:         opts.Locks,
		ledger:        opts.Ledger,
		balances:      opts.Balances,
		stopLoss:      evaluator.NewStopLoss(opts.Positions, opts.Logger),
		takeProfit:    evaluator.NewTakeProfit(opts.Logger),
		dca:           evaluator.NewDCA(opts.Logger),
		tracker:       opts.Tracker,
		executor:      opts.Executor,
		notifier:      opts.Notifier,
		lockTTL:       opts.Engine.LockTTL(),
		maxConcurrent: opts.Engine.MaxConcurrentEvaluations,
		baseToken:     opts.Engine.BaseTokenAddress,
		baseSymbol:    opts.Engine.BaseTokenSymbol,
		logger:        logger,
	}
}

// HandlePriceTick evaluates every open position holding the token at the new
// price. Positions are evaluated concurrently up to the configured bound;
// two different positions never contend beyond their own locks.
func (e *Engine) HandlePriceTick(ctx context.Context, tokenAddress string, price decimal.Decimal) error {
	if !price.IsPositive() {
		e.logger.DebugContext(ctx, "skipping tick with non-positive price",
			slog.String("token", tokenAddress),
			slog.String("price", price.String()),
		)
		return nil
	}

	positions, err := e.positions.ListOpenByToken(ctx, tokenAddress)
	if err != nil {
		return fmt.Errorf("engine: list positions for %s: %w", tokenAddress, err)
	}
	if len(positions) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)
	for _, pos := range positions {
		pos := pos
		g.Go(func() error {
			return e.EvaluatePosition(gctx, pos.ID, price)
		})
	}
	return g.Wait()
}

// EvaluatePosition runs one evaluation cycle for a position under its lock:
// stop-loss first, then take-profit, then DCA. A held lock means another
// evaluation is in flight and this cycle is skipped, which is not an error.
func (e *Engine) EvaluatePosition(ctx context.Context, positionID string, price decimal.Decimal) error {
	unlock, err := e.locks.Acquire(ctx, cacheredis.PositionLockKey(positionID), e.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			e.logger.DebugContext(ctx, "evaluation skipped, lock held",
				slog.String("position_id", positionID))
			return nil
		}
		return fmt.Errorf("engine: acquire lock for %s: %w", positionID, err)
	}
	defer unlock()

	// Reload under the lock; the snapshot from the tick fan-out may be stale.
	pos, err := e.positions.GetByID(ctx, positionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("engine: reload position %s: %w", positionID, err)
	}
	if pos.Status != domain.PositionStatusOpen {
		return nil
	}

	cfg, err := e.configs.GetConfig(ctx, pos.AgentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.WarnContext(ctx, "no trading config for agent, skipping",
				slog.String("agent_id", pos.AgentID),
				slog.String("position_id", pos.ID),
			)
			return nil
		}
		return err
	}

	slRes, err := e.stopLoss.Evaluate(ctx, pos, cfg.StopLoss, price)
	if err != nil {
		return err
	}
	if slRes.ShouldTrigger {
		return e.executeStopLoss(ctx, pos, price, slRes)
	}

	tpRes := e.takeProfit.Evaluate(pos, cfg.TakeProfit, price)
	if tpRes.ShouldExecute {
		return e.executeTakeProfit(ctx, pos, price, tpRes)
	}

	dcaRes := e.dca.Evaluate(pos, cfg.DCA, price, time.Now().UTC())
	if dcaRes.ShouldTrigger {
		return e.executeDCA(ctx, pos, cfg, price, dcaRes)
	}

	return nil
}

// executeStopLoss sells the full remaining holding, moon bag included, and
// closes the position.
func (e *Engine) executeStopLoss(ctx context.Context, pos domain.Position, price decimal.Decimal, res evaluator.StopLossResult) error {
	remaining := pos.Remaining()
	if !remaining.IsPositive() {
		return e.positions.Close(ctx, pos.ID)
	}

	fill, err := e.executor.Sell(ctx, pos, remaining)
	if err != nil {
		return fmt.Errorf("engine: stop-loss sell %s: %w", pos.ID, err)
	}

	if err := e.settleSell(ctx, pos, fill); err != nil {
		return err
	}

	zero := decimal.Zero
	realized := pos.RealizedProfit.Add(fill.OutputAmount)
	if err := e.positions.Update(ctx, pos.ID, domain.PositionUpdate{
		RemainingAmount: &zero,
		RealizedProfit:  &realized,
	}); err != nil {
		return fmt.Errorf("engine: update position %s after stop-loss: %w", pos.ID, err)
	}
	if err := e.positions.Close(ctx, pos.ID); err != nil {
		return fmt.Errorf("engine: close position %s: %w", pos.ID, err)
	}

	e.notify(ctx, "stop_loss_triggered", "Stop loss executed", fmt.Sprintf(
		"position %s sold %s %s at %s (stop at %s)",
		pos.ID, remaining.String(), pos.TokenSymbol, price.String(), res.StopLossPrice.String(),
	))
	return nil
}

// executeTakeProfit applies one take-profit decision: the sized sell (when
// any), the level counters, and moon-bag activation.
func (e *Engine) executeTakeProfit(ctx context.Context, pos domain.Position, price decimal.Decimal, res evaluator.TakeProfitResult) error {
	upd := domain.PositionUpdate{
		TakeProfitLevelsHit: &res.NewLevelsHit,
	}

	newRemaining := res.NewRemainingAmount
	if res.SellAmount.IsPositive() {
		fill, err := e.executor.Sell(ctx, pos, res.SellAmount)
		if err != nil {
			return fmt.Errorf("engine: take-profit sell %s: %w", pos.ID, err)
		}
		if err := e.settleSell(ctx, pos, fill); err != nil {
			return err
		}

		newRemaining = pos.Remaining().Sub(fill.InputAmount)
		if newRemaining.IsNegative() {
			newRemaining = decimal.Zero
		}
		realized := pos.RealizedProfit.Add(fill.OutputAmount)
		upd.RealizedProfit = &realized
	}
	upd.RemainingAmount = &newRemaining

	if res.ActivateMoonBag {
		activated := true
		upd.MoonBagActivated = &activated
		upd.MoonBagAmount = &res.MoonBagAmount
	}

	if err := e.positions.Update(ctx, pos.ID, upd); err != nil {
		return fmt.Errorf("engine: update position %s after take-profit: %w", pos.ID, err)
	}

	// Full sell-down with no moon bag left closes the position.
	if newRemaining.IsZero() && !res.ActivateMoonBag && !pos.MoonBagActivated {
		if err := e.positions.Close(ctx, pos.ID); err != nil {
			return fmt.Errorf("engine: close position %s: %w", pos.ID, err)
		}
	}

	e.notify(ctx, "take_profit_executed", "Take profit executed", fmt.Sprintf(
		"position %s hit %d level(s) at %s%% gain, sold %s %s",
		pos.ID, len(res.LevelsToExecute), res.GainPercent.StringFixed(2),
		res.SellAmount.String(), pos.TokenSymbol,
	))
	return nil
}

// executeDCA buys the dip, folds the fill into the weighted-average cost
// basis, and advances the take-profit batch offsets so a fresh ladder
// appends to the levels already hit.
func (e *Engine) executeDCA(ctx context.Context, pos domain.Position, cfg domain.TradingConfig, price decimal.Decimal, res evaluator.DCAResult) error {
	fill, err := e.executor.Buy(ctx, pos, res.BuyAmountBase)
	if err != nil {
		return fmt.Errorf("engine: dca buy %s: %w", pos.ID, err)
	}

	if err := e.settleBuy(ctx, pos, fill); err != nil {
		return err
	}

	avg := evaluator.CalculateNewAveragePrice(pos.TotalInvested, pos.PurchaseAmount, fill.InputAmount, fill.OutputAmount)
	newRemaining := pos.Remaining().Add(fill.OutputAmount)
	now := time.Now().UTC()
	dcaCount := pos.DCACount + 1

	// Append-levels model: the current hit count becomes the new batch
	// start, and the cumulative total grows by the current ladder's length.
	batchStart := pos.TakeProfitLevelsHit
	totalLevels := batchStart + len(domain.ResolveTakeProfitLevels(cfg.TakeProfit))

	if err := e.positions.Update(ctx, pos.ID, domain.PositionUpdate{
		PurchasePrice:         &avg.NewAveragePrice,
		PurchaseAmount:        &avg.NewTotalAmount,
		TotalInvested:         &avg.NewTotalInvested,
		RemainingAmount:       &newRemaining,
		DCACount:              &dcaCount,
		LastDCAAt:             &now,
		TPBatchStartLevel:     &batchStart,
		TotalTakeProfitLevels: &totalLevels,
	}); err != nil {
		return fmt.Errorf("engine: update position %s after dca: %w", pos.ID, err)
	}

	e.notify(ctx, "dca_executed", "DCA executed", fmt.Sprintf(
		"position %s bought %s %s at %s (drop %s%%), new average %s",
		pos.ID, fill.OutputAmount.String(), pos.TokenSymbol, price.String(),
		res.CurrentDropPercent.StringFixed(2), avg.NewAveragePrice.String(),
	))
	return nil
}

// settleSell records the sell transaction and applies its balance deltas in
// one unit of work: debit the position token, credit the base currency.
func (e *Engine) settleSell(ctx context.Context, pos domain.Position, fill TradeFill) error {
	t := domain.Transaction{
		ID:                 fill.TransactionID,
		AgentID:            pos.AgentID,
		Wallet:             pos.Wallet,
		Type:               domain.TransactionTypeSwap,
		InputTokenAddress:  pos.TokenAddress,
		InputTokenSymbol:   pos.TokenSymbol,
		InputAmount:        fill.InputAmount,
		OutputTokenAddress: e.baseToken,
		OutputTokenSymbol:  e.baseSymbol,
		OutputAmount:       fill.OutputAmount,
		CreatedAt:          time.Now().UTC(),
	}
	return e.settle(ctx, t)
}

// settleBuy records the buy transaction and applies its balance deltas in
// one unit of work: debit the base currency, credit the position token.
func (e *Engine) settleBuy(ctx context.Context, pos domain.Position, fill TradeFill) error {
	t := domain.Transaction{
		ID:                 fill.TransactionID,
		AgentID:            pos.AgentID,
		Wallet:             pos.Wallet,
		Type:               domain.TransactionTypeSwap,
		InputTokenAddress:  e.baseToken,
		InputTokenSymbol:   e.baseSymbol,
		InputAmount:        fill.InputAmount,
		OutputTokenAddress: pos.TokenAddress,
		OutputTokenSymbol:  pos.TokenSymbol,
		OutputAmount:       fill.OutputAmount,
		CreatedAt:          time.Now().UTC(),
	}
	return e.settle(ctx, t)
}

// settle runs "create transaction + update balances" as one atomic unit of
// work. An error aborts the whole transaction, leaving balances in their
// last committed state. After commit, touched rows are projected into the
// balance cache and announced, both best-effort.
func (e *Engine) settle(ctx context.Context, t domain.Transaction) error {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("engine: begin settle %s: %w", t.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.ledger.RecordTransaction(ctx, tx, t); err != nil {
		return err
	}

	touched, err := e.ledger.ApplyTransactionDeltas(ctx, tx, ledger.ApplyParams{
		Wallet:             t.Wallet,
		AgentID:            t.AgentID,
		Type:               t.Type,
		InputTokenAddress:  t.InputTokenAddress,
		InputTokenSymbol:   t.InputTokenSymbol,
		InputAmount:        t.InputAmount,
		OutputTokenAddress: t.OutputTokenAddress,
		OutputTokenSymbol:  t.OutputTokenSymbol,
		OutputAmount:       t.OutputAmount,
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("engine: commit settle %s: %w", t.ID, err)
	}

	e.projectBalances(ctx, touched)
	return nil
}

// EditTransaction reverses a recorded transaction's balance effect and
// applies the corrected one, atomically. The edit fails wholesale when the
// reversal cannot find its rows or the new debit lacks balance.
func (e *Engine) EditTransaction(ctx context.Context, oldTx, newTx domain.Transaction) error {
	deltas, err := ledger.ComputeUpdateDeltas(oldTx, newTx)
	if err != nil {
		return err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("engine: begin edit %s: %w", oldTx.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	touched, err := e.ledger.ApplyDeltas(ctx, tx, deltas)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE transactions SET
			type = $2,
			input_token_address = $3, input_token_symbol = $4, input_amount = $5,
			output_token_address = $6, output_token_symbol = $7, output_amount = $8
		WHERE id = $1`,
		oldTx.ID, string(newTx.Type),
		newTx.InputTokenAddress, newTx.InputTokenSymbol, newTx.InputAmount,
		newTx.OutputTokenAddress, newTx.OutputTokenSymbol, newTx.OutputAmount,
	); err != nil {
		return fmt.Errorf("engine: rewrite transaction %s: %w", oldTx.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("engine: commit edit %s: %w", oldTx.ID, err)
	}

	e.projectBalances(ctx, touched)
	return nil
}

// OpenPositionParams describe a fresh purchase.
type OpenPositionParams struct {
	AgentID      string
	Wallet       string
	TokenAddress string
	TokenSymbol  string
	BaseAmount   decimal.Decimal
}

// OpenPosition buys the token, creates the position, and initializes the
// stop-loss state from the agent's configuration.
func (e *Engine) OpenPosition(ctx context.Context, p OpenPositionParams) (domain.Position, error) {
	if !p.BaseAmount.IsPositive() {
		return domain.Position{}, &domain.ValidationError{Field: "baseAmount", Message: "must be positive"}
	}

	cfg, err := e.configs.GetConfig(ctx, p.AgentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, err
	}

	pos := domain.Position{
		ID:           uuid.New().String(),
		AgentID:      p.AgentID,
		Wallet:       p.Wallet,
		TokenAddress: p.TokenAddress,
		TokenSymbol:  p.TokenSymbol,
		Status:       domain.PositionStatusOpen,
		OpenedAt:     time.Now().UTC(),
	}

	fill, err := e.executor.Buy(ctx, pos, p.BaseAmount)
	if err != nil {
		return domain.Position{}, fmt.Errorf("engine: open-position buy: %w", err)
	}
	if err := e.settleBuy(ctx, pos, fill); err != nil {
		return domain.Position{}, err
	}

	pos.PurchaseAmount = fill.OutputAmount
	pos.TotalInvested = fill.InputAmount
	if fill.OutputAmount.IsPositive() {
		pos.PurchasePrice = fill.InputAmount.Div(fill.OutputAmount)
	}
	pos.PeakPrice = pos.PurchasePrice
	pos.RealizedProfit = decimal.Zero

	if err := e.positions.Create(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("engine: create position: %w", err)
	}

	if _, ok, err := e.stopLoss.Initialize(ctx, pos, cfg.StopLoss); err != nil {
		return domain.Position{}, err
	} else if ok {
		pct := cfg.StopLoss.DefaultPercentage
		pos.CurrentStopLossPct = &pct
	}

	return pos, nil
}

// HandleSignal executes an agent action for a signal at most once. The
// action returns the transaction id it produced; a second delivery of the
// same signal to the same agent is a no-op.
func (e *Engine) HandleSignal(ctx context.Context, signalID, agentID string, action func(context.Context) (string, error)) error {
	execID, err := e.tracker.CreatePendingExecution(ctx, signalID, agentID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyHandled) {
			e.logger.DebugContext(ctx, "signal already handled",
				slog.String("signal_id", signalID),
				slog.String("agent_id", agentID),
			)
			return nil
		}
		return err
	}

	transactionID, actionErr := action(ctx)
	if actionErr != nil {
		if updErr := e.tracker.UpdateExecutionFailure(ctx, execID, actionErr.Error()); updErr != nil {
			e.logger.ErrorContext(ctx, "failed to record execution failure",
				slog.String("execution_id", execID),
				slog.String("error", updErr.Error()),
			)
		}
		return actionErr
	}
	if transactionID == "" {
		return e.tracker.UpdateExecutionSkipped(ctx, execID, "no action taken")
	}
	return e.tracker.UpdateExecutionSuccess(ctx, execID, transactionID)
}

// projectBalances pushes committed rows into the balance cache and announces
// the change. Both are fire-and-forget: a failure here never unwinds the
// committed unit of work.
func (e *Engine) projectBalances(ctx context.Context, rows []domain.BalanceRow) {
	for _, row := range rows {
		if err := e.balances.SetBalance(ctx, row); err != nil {
			e.logger.WarnContext(ctx, "failed to project balance",
				slog.String("wallet", row.Wallet),
				slog.String("token", row.TokenAddress),
				slog.String("error", err.Error()),
			)
		}
	}
	if len(rows) > 0 {
		e.notify(ctx, "balance_change", "Balances updated", fmt.Sprintf(
			"%d balance row(s) changed for wallet %s", len(rows), rows[0].Wallet,
		))
	}
}

func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
