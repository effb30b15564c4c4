package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/application/engine"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// Tick runs one demo trade-generation step synchronously. The periodic
// ticker calls the same code; Tick exists for tests and manual triggers.
func (c *Controller) Tick(ctx context.Context) error {
	var (
		epoch   uint64
		running bool
	)
	if err := c.exec(ctx, func() {
		epoch = c.epoch
		running = c.session.Running && c.session.Mode == domain.ModeDemo
	}); err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("session.Tick: no demo session running: %w", domain.ErrInvalidStateTransition)
	}
	return c.tick(ctx, epoch)
}

func (c *Controller) runTicker(ctx context.Context, epoch uint64) {
	t := time.NewTicker(c.cfg.TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.tick(ctx, epoch); errors.Is(err, ErrStaleTick) || errors.Is(err, ErrClosed) {
				return
			}
		}
	}
}

// tick builds a draft off the actor and applies it only if the session
// is still the one that started the tick. Failures are logged and counted;
// they never change session state.
func (c *Controller) tick(ctx context.Context, epoch uint64) error {
	if c.deps.Drafts == nil {
		return nil
	}

	var (
		in    domain.DraftInput
		stale bool
	)
	if err := c.exec(ctx, func() {
		if stale = c.epoch != epoch; !stale {
			in = c.draftInput()
		}
	}); err != nil {
		return err
	}
	if stale {
		return ErrStaleTick
	}

	draft, err := c.deps.Drafts.Draft(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := "draft"
		if errors.Is(err, domain.ErrNotFound) {
			reason = "no_price"
		}
		c.deps.Metrics.TickFailed(reason)
		slog.Warn("session: tick failed", "reason", reason, "err", err)
		return fmt.Errorf("session.tick: %w", err)
	}

	if err := c.exec(ctx, func() {
		if stale = c.epoch != epoch; !stale {
			c.applyDraft(draft)
		}
	}); err != nil {
		return err
	}
	if stale {
		slog.Debug("session: stale tick discarded")
		return ErrStaleTick
	}
	return nil
}

// applyDraft turns a demo draft into a trade. Actor only.
func (c *Controller) applyDraft(d domain.TradeDraft) {
	pred := c.deps.Scorer.Predict(d.Features)
	c.recordPrices(d)
	c.commit(domain.Trade{
		ID:            newTradeID(),
		Timestamp:     c.now().UTC(),
		From:          d.From,
		To:            d.To,
		InputAmount:   d.InputAmount,
		USDValue:      d.USDValue,
		Profit:        engine.RoundCents(d.USDValue * d.ProfitPercent / 100),
		ProfitPercent: d.ProfitPercent,
		Succeeded:     d.Succeeded,
		Mode:          domain.ModeDemo,
		Prediction:    &pred,
	})
}

// RegisterPending records a prepared live trade and attaches the scorer's
// prediction. Only a running live session accepts pending trades.
func (c *Controller) RegisterPending(ctx context.Context, draft domain.TradeDraft, quote domain.Quote) (domain.PendingTrade, error) {
	var (
		pending domain.PendingTrade
		err     error
	)
	if xerr := c.exec(ctx, func() {
		if !c.session.Running || c.session.Mode != domain.ModeLive {
			err = fmt.Errorf("session.RegisterPending: session is %s: %w", c.session.Mode, domain.ErrInvalidStateTransition)
			return
		}
		pred := c.deps.Scorer.Predict(draft.Features)
		pending = domain.PendingTrade{
			ID:          newTradeID(),
			PreparedAt:  c.now().UTC(),
			From:        draft.From,
			To:          draft.To,
			InputAmount: draft.InputAmount,
			USDValue:    draft.USDValue,
			Quote:       quote,
			Prediction:  &pred,
		}
		if len(c.pendingOrder) >= maxPending && !c.evictPending() {
			err = fmt.Errorf("session.RegisterPending: %d trades executing: %w", len(c.pendingOrder), domain.ErrInvalidStateTransition)
			return
		}
		c.pending[pending.ID] = pending
		c.pendingOrder = append(c.pendingOrder, pending.ID)
		c.recordPrices(draft)
		c.refreshView()
	}); xerr != nil {
		return domain.PendingTrade{}, xerr
	}
	return pending, err
}

// evictPending drops the oldest pending trade the signer is not holding.
// Actor only.
func (c *Controller) evictPending() bool {
	for _, id := range c.pendingOrder {
		if c.pending[id].Executing {
			continue
		}
		c.removePending(id)
		slog.Warn("session: pending trade evicted", "id", id)
		return true
	}
	return false
}

func (c *Controller) removePending(id string) {
	delete(c.pending, id)
	for i, pid := range c.pendingOrder {
		if pid == id {
			c.pendingOrder = append(c.pendingOrder[:i:i], c.pendingOrder[i+1:]...)
			return
		}
	}
}

// ClaimPending hands a pending live trade to exactly one executor. It
// returns the trade and the session identity to sign with. A trade that
// is already claimed yields ErrInvalidStateTransition; the claim ends when
// the trade's result is ingested.
func (c *Controller) ClaimPending(ctx context.Context, tradeID string) (domain.PendingTrade, string, error) {
	var (
		pending  domain.PendingTrade
		identity string
		err      error
	)
	if xerr := c.exec(ctx, func() {
		p, ok := c.pending[tradeID]
		switch {
		case !ok:
			err = fmt.Errorf("session.ClaimPending: trade %s: %w", tradeID, domain.ErrNotFound)
		case p.Executing:
			err = fmt.Errorf("session.ClaimPending: trade %s already executing: %w", tradeID, domain.ErrInvalidStateTransition)
		default:
			p.Executing = true
			c.pending[tradeID] = p
			pending, identity = p, c.session.Identity
			c.refreshView()
		}
	}); xerr != nil {
		return domain.PendingTrade{}, "", xerr
	}
	return pending, identity, err
}

func (c *Controller) executing() int {
	n := 0
	for _, p := range c.pending {
		if p.Executing {
			n++
		}
	}
	return n
}

// IngestTradeResult finalizes a pending live trade with its outcome.
// Unknown or already finalized IDs yield ErrNotFound.
func (c *Controller) IngestTradeResult(ctx context.Context, tradeID string, outcome domain.TradeOutcome) (domain.Trade, error) {
	var (
		trade domain.Trade
		err   error
	)
	if xerr := c.exec(ctx, func() {
		p, ok := c.pending[tradeID]
		if !ok {
			err = fmt.Errorf("session.IngestTradeResult: trade %s: %w", tradeID, domain.ErrNotFound)
			return
		}
		c.removePending(tradeID)

		profitPct := 0.0
		if p.USDValue > 0 {
			profitPct = outcome.Profit / p.USDValue * 100
		}
		if outcome.Error != "" {
			slog.Warn("session: live trade failed", "id", tradeID, "err", outcome.Error)
		}
		trade = domain.Trade{
			ID:            p.ID,
			Timestamp:     c.now().UTC(),
			From:          p.From,
			To:            p.To,
			InputAmount:   p.InputAmount,
			USDValue:      p.USDValue,
			Profit:        outcome.Profit,
			ProfitPercent: profitPct,
			Succeeded:     outcome.Succeeded,
			Signature:     outcome.Signature,
			Mode:          domain.ModeLive,
			Prediction:    p.Prediction,
		}
		c.commit(trade)

		if c.stopWhenDrained && c.executing() == 0 {
			c.stopWhenDrained = false
			if serr := c.stop(ctx); serr != nil {
				slog.Error("session: deferred stop failed", "err", serr)
			}
		}
	}); xerr != nil {
		return domain.Trade{}, xerr
	}
	return trade, err
}

// commit applies a finished trade everywhere. Actor only.
func (c *Controller) commit(t domain.Trade) {
	locked := c.ledger.ApplyTrade(t, c.now())
	c.trades.Append(t)
	c.deps.Scorer.Learn(t)
	c.deps.Metrics.ObserveTrade(string(t.Mode), t.Succeeded)

	slog.Info("session: trade",
		"id", t.ID,
		"pair", t.From.Symbol+"→"+t.To.Symbol,
		"usd", fmt.Sprintf("$%.2f", t.USDValue),
		"profit", fmt.Sprintf("$%.2f", t.Profit),
		"locked", fmt.Sprintf("$%s", locked.StringFixed(2)),
		"succeeded", t.Succeeded,
	)

	c.publish(domain.TradeCreated{Trade: t})
	c.publishPortfolio()
	c.publish(domain.ScorerStatsUpdated{Stats: c.deps.Scorer.Stats()})
	c.refreshView()
}

func (c *Controller) recordPrices(d domain.TradeDraft) {
	c.pushPrice(d.From.Mint, d.FromPrice)
	c.pushPrice(d.To.Mint, d.ToPrice)
}

func (c *Controller) pushPrice(mint string, price float64) {
	if price <= 0 {
		return
	}
	series := append(c.history[mint], price)
	if len(series) > c.cfg.HistorySize {
		series = append([]float64(nil), series[len(series)-c.cfg.HistorySize:]...)
	}
	c.history[mint] = series
}
