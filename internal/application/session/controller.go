// Package session owns the single process-wide trading session.
//
// The Controller is an actor: one goroutine owns the session, the ledger,
// the trade log and the scorer, and every mutation runs on it as a queued
// function. Readers never touch that state; they load an immutable
// SessionView published through an atomic pointer after every mutation.
// Network I/O (prices, quotes, the signer) happens off the actor; its
// results are applied by a later command.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/dexpilot/internal/application/ledger"
	"github.com/alejandrodnm/dexpilot/internal/application/scorer"
	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/observability"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

const (
	DefaultTickInterval   = 5 * time.Second
	DefaultTradeRetention = 100
	DefaultHistorySize    = 64
	DefaultPersistTimeout = 10 * time.Second
	maxPending            = 100
)

// DefaultDemoBalance is the play balance every demo session starts with.
var DefaultDemoBalance = decimal.NewFromInt(50)

var (
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("session controller closed")

	// ErrStaleTick is returned by Tick when the session changed while the
	// draft was being built; the draft was discarded.
	ErrStaleTick = errors.New("stale tick discarded")

	// ErrExecutionInFlight is returned by Stop while a claimed live trade
	// has not had its result ingested.
	ErrExecutionInFlight = fmt.Errorf("live trade execution in flight: %w", domain.ErrInvalidStateTransition)
)

const closeRetry = 100 * time.Millisecond

// SnapshotStore persists live sessions. *wallet.Store implements it.
type SnapshotStore interface {
	Save(ctx context.Context, identity string, snap domain.WalletSnapshot) error
	Load(ctx context.Context, identity string) (domain.WalletSnapshot, error)
}

// DraftSource builds demo trade drafts. *demo.Engine implements it.
type DraftSource interface {
	Draft(ctx context.Context, in domain.DraftInput) (domain.TradeDraft, error)
}

// Config holds session settings.
type Config struct {
	TickInterval        time.Duration
	DemoStartingBalance decimal.Decimal
	TradeRetention      int
	HistorySize         int
	ProfitLock          domain.ProfitLockConfig
	PersistTimeout      time.Duration
}

// Deps are the controller's collaborators. Store and Drafts may be nil:
// live sessions are then not persisted and demo sessions never trade.
type Deps struct {
	Scorer     ports.Scorer
	Store      SnapshotStore
	Drafts     DraftSource
	Publishers []ports.EventPublisher
	Metrics    *observability.Metrics
	// Now is the controller's clock; time.Now when nil.
	Now func() time.Time
}

// Controller is the session state machine.
type Controller struct {
	cfg  Config
	deps Deps
	now  func() time.Time

	reqs      chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	base       context.Context
	cancelBase context.CancelFunc

	view atomic.Pointer[domain.SessionView]

	// Owned by the actor goroutine.
	session      domain.Session
	ledger       *ledger.Ledger
	trades       *domain.TradeLog
	pending      map[string]domain.PendingTrade
	pendingOrder []string
	history      map[string][]float64
	epoch        uint64
	stopTick     context.CancelFunc
	// stopWhenDrained defers a disconnect until no trade is executing.
	stopWhenDrained bool
}

// New creates an idle controller and starts its actor goroutine.
func New(cfg Config, deps Deps) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DemoStartingBalance.IsZero() {
		cfg.DemoStartingBalance = DefaultDemoBalance
	}
	if cfg.TradeRetention <= 0 {
		cfg.TradeRetention = DefaultTradeRetention
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if deps.Scorer == nil {
		deps.Scorer = scorer.New(scorer.Config{})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:        cfg,
		deps:       deps,
		now:        deps.Now,
		reqs:       make(chan func()),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		base:       base,
		cancelBase: cancel,
		session:    domain.Session{Mode: domain.ModeIdle},
		ledger:     ledger.New(decimal.Zero, deps.Now(), cfg.ProfitLock),
		trades:     domain.NewTradeLog(cfg.TradeRetention),
		pending:    make(map[string]domain.PendingTrade),
		history:    make(map[string][]float64),
	}
	c.refreshView()
	go c.loop()
	return c
}

// Close stops the session (persisting a live one) and shuts the actor
// down. Trades held by the signer are waited for until ctx is done.
// Returns the Stop error, if any.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	for errors.Is(err, ErrExecutionInFlight) && ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case <-time.After(closeRetry):
			err = c.Stop(ctx)
		}
	}
	if errors.Is(err, ErrClosed) {
		err = nil
	}
	c.closeOnce.Do(func() {
		c.cancelBase()
		close(c.quit)
	})
	<-c.done
	return err
}

// View returns the latest published session view. Safe from any goroutine;
// the returned value must not be modified.
func (c *Controller) View() domain.SessionView {
	return *c.view.Load()
}

// Dispatch runs a typed command from the push channel or the HTTP API.
func (c *Controller) Dispatch(ctx context.Context, cmd domain.Command) error {
	switch cmd := cmd.(type) {
	case domain.StartCommand:
		_, err := c.Start(ctx, cmd.Mode, cmd.Identity)
		return err
	case domain.StopCommand:
		return c.Stop(ctx)
	case domain.ConfigureProfitLockCommand:
		return c.ConfigureProfitLock(ctx, cmd.PercentagePoints, cmd.Enabled)
	case domain.WithdrawLockCommand:
		_, err := c.WithdrawLock(ctx, cmd.Amount)
		return err
	case domain.IngestTradeResultCommand:
		_, err := c.IngestTradeResult(ctx, cmd.TradeID, cmd.Outcome)
		return err
	case domain.ConfigureScorerCommand:
		return c.ConfigureScorer(ctx, cmd.Enabled)
	case nil:
		return fmt.Errorf("session.Dispatch: nil command: %w", domain.ErrValidation)
	}
	return fmt.Errorf("session.Dispatch: unsupported command %q: %w", cmd.Type(), domain.ErrValidation)
}

// ConfigureProfitLock updates the profit lock. Allowed in any mode.
func (c *Controller) ConfigureProfitLock(ctx context.Context, percentagePoints *int, enabled *bool) error {
	var err error
	if xerr := c.exec(ctx, func() {
		if err = c.ledger.Configure(percentagePoints, enabled); err != nil {
			return
		}
		c.publishPortfolio()
		c.refreshView()
	}); xerr != nil {
		return xerr
	}
	if err != nil {
		return fmt.Errorf("session.ConfigureProfitLock: %w", err)
	}
	return nil
}

// ConfigureScorer switches predictions on or off. Trades made while the
// scorer is off carry a disabled prediction that is never scored.
func (c *Controller) ConfigureScorer(ctx context.Context, enabled bool) error {
	return c.exec(ctx, func() {
		c.deps.Scorer.SetEnabled(enabled)
		slog.Info("session: scorer configured", "enabled", enabled)
		c.publish(domain.ScorerStatsUpdated{Stats: c.deps.Scorer.Stats()})
		c.refreshView()
	})
}

// WithdrawLock moves locked profit back into the balance and returns the
// amount moved.
func (c *Controller) WithdrawLock(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	var (
		moved decimal.Decimal
		err   error
	)
	if xerr := c.exec(ctx, func() {
		if moved, err = c.ledger.WithdrawLock(amount); err != nil {
			return
		}
		c.publishPortfolio()
		c.refreshView()
	}); xerr != nil {
		return decimal.Zero, xerr
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("session.WithdrawLock: %w", err)
	}
	return moved, nil
}

// DraftInput returns a copy of the state draft builders need.
func (c *Controller) DraftInput(ctx context.Context) (domain.DraftInput, error) {
	var in domain.DraftInput
	if err := c.exec(ctx, func() { in = c.draftInput() }); err != nil {
		return domain.DraftInput{}, err
	}
	return in, nil
}

// --- actor plumbing ---

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.reqs:
			fn()
		case <-c.quit:
			return
		}
	}
}

// exec runs fn on the actor goroutine and waits for it. Once fn has been
// accepted it always runs to completion, even if ctx is cancelled.
func (c *Controller) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		defer close(done)
		fn()
	}
	select {
	case c.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrClosed
	}
	<-done
	return nil
}

// refreshView publishes a fresh immutable view. Actor only.
func (c *Controller) refreshView() {
	pending := make([]domain.PendingTrade, 0, len(c.pendingOrder))
	for _, id := range c.pendingOrder {
		pending = append(pending, c.pending[id])
	}
	portfolio := c.ledger.State()
	stats := c.deps.Scorer.Stats()

	c.view.Store(&domain.SessionView{
		Session:     c.session,
		Portfolio:   portfolio,
		ProfitLock:  c.ledger.ProfitLock(),
		Trades:      c.trades.Snapshot(),
		Pending:     pending,
		ScorerStats: stats,
		UpdatedAt:   c.now().UTC(),
	})

	c.deps.Metrics.SetLedger(portfolio.Balance.InexactFloat64(), portfolio.LockedBalance.InexactFloat64())
	c.deps.Metrics.SetAccuracy(stats.Accuracy)
}

func (c *Controller) publish(e domain.Event) {
	for _, p := range c.deps.Publishers {
		p.Publish(e)
	}
}

func (c *Controller) publishPortfolio() {
	c.publish(domain.PortfolioUpdated{Portfolio: c.ledger.State(), ProfitLock: c.ledger.ProfitLock()})
}

func (c *Controller) draftInput() domain.DraftInput {
	hist := make(map[string][]float64, len(c.history))
	for mint, series := range c.history {
		hist[mint] = append([]float64(nil), series...)
	}
	return domain.DraftInput{
		Balance: c.ledger.State().Balance.InexactFloat64(),
		History: hist,
	}
}

func newTradeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
