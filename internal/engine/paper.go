package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tokenwave/positiond/internal/domain"
)

// PaperExecutor fills trades instantly at the latest cached price, with no
// routing or slippage. It stands in for a live executor in dry runs and
// tests.
type PaperExecutor struct {
	prices domain.PriceSource
	logger *slog.Logger
}

// NewPaperExecutor creates a PaperExecutor pricing fills from the given
// source.
func NewPaperExecutor(prices domain.PriceSource, logger *slog.Logger) *PaperExecutor {
	return &PaperExecutor{
		prices: prices,
		logger: logger.With(slog.String("component", "paper_executor")),
	}
}

// Sell fills a token sale at the cached price.
func (p *PaperExecutor) Sell(ctx context.Context, pos domain.Position, tokenAmount decimal.Decimal) (TradeFill, error) {
	price, err := p.prices.CurrentPrice(ctx, pos.TokenAddress)
	if err != nil {
		return TradeFill{}, fmt.Errorf("paper_executor: price for %s: %w", pos.TokenAddress, err)
	}
	if !price.IsPositive() {
		return TradeFill{}, &domain.ValidationError{Field: "price", Message: "no positive price for " + pos.TokenSymbol}
	}

	fill := TradeFill{
		TransactionID: uuid.New().String(),
		InputAmount:   tokenAmount,
		OutputAmount:  tokenAmount.Mul(price),
	}
	p.logger.InfoContext(ctx, "paper sell filled",
		slog.String("position_id", pos.ID),
		slog.String("amount", tokenAmount.String()),
		slog.String("price", price.String()),
	)
	return fill, nil
}

// Buy fills a base-currency purchase at the cached price.
func (p *PaperExecutor) Buy(ctx context.Context, pos domain.Position, baseAmount decimal.Decimal) (TradeFill, error) {
	price, err := p.prices.CurrentPrice(ctx, pos.TokenAddress)
	if err != nil {
		return TradeFill{}, fmt.Errorf("paper_executor: price for %s: %w", pos.TokenAddress, err)
	}
	if !price.IsPositive() {
		return TradeFill{}, &domain.ValidationError{Field: "price", Message: "no positive price for " + pos.TokenSymbol}
	}

	fill := TradeFill{
		TransactionID: uuid.New().String(),
		InputAmount:   baseAmount,
		OutputAmount:  baseAmount.Div(price),
	}
	p.logger.InfoContext(ctx, "paper buy filled",
		slog.String("position_id", pos.ID),
		slog.String("base_amount", baseAmount.String()),
		slog.String("price", price.String()),
	)
	return fill, nil
}

// Compile-time interface check.
var _ TradeExecutor = (*PaperExecutor)(nil)
