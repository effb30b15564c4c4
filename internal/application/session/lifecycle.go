package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// Start moves the session from Idle into Demo or Live. Live requires an
// identity. When a session is already running, Start is a no-op that
// returns the current mode.
func (c *Controller) Start(ctx context.Context, mode domain.Mode, identity string) (domain.Mode, error) {
	switch mode {
	case domain.ModeDemo:
	case domain.ModeLive:
		if identity == "" {
			return c.View().Session.Mode, fmt.Errorf("session.Start: live session without identity: %w", domain.ErrInvalidStateTransition)
		}
	default:
		return c.View().Session.Mode, fmt.Errorf("session.Start: cannot start mode %q: %w", mode, domain.ErrInvalidStateTransition)
	}

	var restored *loadResult
	if mode == domain.ModeLive {
		var (
			current domain.Mode
			running bool
		)
		if err := c.exec(ctx, func() { current, running = c.session.Mode, c.session.Running }); err != nil {
			return "", err
		}
		if running {
			slog.Debug("session: start ignored, already running", "mode", current)
			return current, nil
		}
		// The snapshot is read off the actor so a slow store never
		// blocks other commands.
		snap, err := c.load(ctx, identity)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		restored = &loadResult{snap: snap, err: err}
	}

	var current domain.Mode
	if err := c.exec(ctx, func() { current = c.start(mode, identity, restored) }); err != nil {
		return "", err
	}
	return current, nil
}

// Stop returns the session to Idle. A live session is persisted before
// Stop returns; if that fails the session stays live and the error is
// returned so the caller can retry. While the signer holds a trade Stop
// fails with ErrExecutionInFlight. Stopping an idle session is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	var err error
	if xerr := c.exec(ctx, func() { err = c.stop(ctx) }); xerr != nil {
		return xerr
	}
	return err
}

// Disconnect stops the live session if it belongs to identity. While the
// signer holds trades the stop is deferred until the last result is
// ingested.
func (c *Controller) Disconnect(ctx context.Context, identity string) error {
	var err error
	if xerr := c.exec(ctx, func() {
		if !c.session.Running || c.session.Mode != domain.ModeLive || c.session.Identity != identity {
			return
		}
		if n := c.executing(); n > 0 {
			slog.Info("session: identity disconnected, stopping once executions finish", "executing", n)
			c.stopWhenDrained = true
			return
		}
		slog.Info("session: identity disconnected, stopping live session")
		err = c.stop(ctx)
	}); xerr != nil {
		return xerr
	}
	return err
}

type loadResult struct {
	snap domain.WalletSnapshot
	err  error
}

func (c *Controller) start(mode domain.Mode, identity string, restored *loadResult) domain.Mode {
	if c.session.Running {
		slog.Debug("session: start ignored, already running", "mode", c.session.Mode)
		return c.session.Mode
	}

	now := c.now()
	prev := c.session.Mode
	c.trades.Reset()
	c.clearPending()
	c.stopWhenDrained = false

	switch mode {
	case domain.ModeDemo:
		c.ledger.Reset(c.cfg.DemoStartingBalance, now)
		c.history = make(map[string][]float64)
	case domain.ModeLive:
		c.restore(restored)
	}

	c.epoch++
	c.session = domain.Session{
		Mode:      mode,
		StartedAt: now.UTC(),
		Identity:  identity,
		Running:   true,
	}
	if mode == domain.ModeDemo && c.deps.Drafts != nil {
		tickCtx, cancel := context.WithCancel(c.base)
		c.stopTick = cancel
		go c.runTicker(tickCtx, c.epoch)
	}

	c.deps.Metrics.SessionStarted(string(mode))
	slog.Info("session: started",
		"mode", mode,
		"balance", fmt.Sprintf("$%s", c.ledger.State().Balance.StringFixed(2)),
		"trades", c.trades.Len(),
	)

	c.publish(domain.SessionStatusChanged{Session: c.session, Previous: prev})
	c.publishPortfolio()
	c.refreshView()
	return mode
}

func (c *Controller) load(ctx context.Context, identity string) (domain.WalletSnapshot, error) {
	if c.deps.Store == nil {
		return domain.WalletSnapshot{}, fmt.Errorf("session.load: no snapshot store: %w", domain.ErrNotFound)
	}
	loadCtx, cancel := context.WithTimeout(ctx, c.cfg.PersistTimeout)
	defer cancel()
	return c.deps.Store.Load(loadCtx, identity)
}

// restore applies a loaded snapshot. Not found or unreadable both yield a
// fresh zero-balance book; scorer stats are kept either way. Actor only.
func (c *Controller) restore(r *loadResult) {
	now := c.now()
	if r == nil {
		c.ledger.Reset(decimal.Zero, now)
		return
	}
	snap, err := r.snap, r.err
	switch {
	case err == nil:
		if snap.Portfolio.StartedAt.IsZero() {
			snap.Portfolio.StartedAt = now
		}
		c.ledger.Restore(snap.Portfolio, snap.ProfitLock)
		c.trades.Replace(snap.Trades)
		c.deps.Scorer.Restore(snap.ScorerStats)
		c.publish(domain.ScorerStatsUpdated{Stats: c.deps.Scorer.Stats()})
		slog.Info("session: wallet restored",
			"trades", len(snap.Trades),
			"saved_at", snap.SavedAt,
		)
	case errors.Is(err, domain.ErrNotFound):
		c.ledger.Reset(decimal.Zero, now)
		slog.Info("session: no saved wallet, starting fresh")
	default:
		c.ledger.Reset(decimal.Zero, now)
		slog.Warn("session: wallet load failed, starting fresh", "err", err)
	}
}

func (c *Controller) stop(ctx context.Context) error {
	if !c.session.Running {
		return nil
	}
	if n := c.executing(); n > 0 {
		return fmt.Errorf("session.Stop: %d trades: %w", n, ErrExecutionInFlight)
	}

	// Fence in-flight ticks before anything is persisted.
	c.epoch++
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}

	if c.session.Mode == domain.ModeLive {
		if err := c.persist(ctx); err != nil {
			c.refreshView()
			return fmt.Errorf("session.Stop: %w", err)
		}
	}

	prev := c.session.Mode
	c.session = domain.Session{Mode: domain.ModeIdle}
	c.clearPending()
	c.stopWhenDrained = false

	slog.Info("session: stopped",
		"mode", prev,
		"balance", fmt.Sprintf("$%s", c.ledger.State().Balance.StringFixed(2)),
		"trades", c.trades.Len(),
	)
	c.publish(domain.SessionStatusChanged{Session: c.session, Previous: prev})
	c.refreshView()
	return nil
}

// persist saves the live session. The save outlives a cancelled caller
// context but not the persist timeout.
func (c *Controller) persist(ctx context.Context) error {
	if c.deps.Store == nil {
		slog.Warn("session: no snapshot store, live state not persisted")
		return nil
	}
	snap := domain.WalletSnapshot{
		Portfolio:   c.ledger.State(),
		Trades:      c.trades.Snapshot(),
		ProfitLock:  c.ledger.ProfitLock(),
		ScorerStats: c.deps.Scorer.Stats(),
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.PersistTimeout)
	defer cancel()
	return c.deps.Store.Save(saveCtx, c.session.Identity, snap)
}

func (c *Controller) clearPending() {
	c.pending = make(map[string]domain.PendingTrade)
	c.pendingOrder = nil
}
