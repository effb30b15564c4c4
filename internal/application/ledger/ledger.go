// Package ledger is the session's money book: balance, P&L, daily return
// and the profit-lock skim. It is not safe for concurrent use; the session
// controller is its only owner.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const historyRetention = 1000

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Ledger owns a PortfolioState and its profit-lock configuration.
type Ledger struct {
	state domain.PortfolioState
	lock  domain.ProfitLockConfig
}

// New returns a ledger holding startBalance.
func New(startBalance decimal.Decimal, startedAt time.Time, lock domain.ProfitLockConfig) *Ledger {
	l := &Ledger{lock: lock}
	l.Reset(startBalance, startedAt)
	return l
}

// Reset starts a fresh book: balance set, every counter and the lock
// history cleared. The profit-lock configuration is kept.
func (l *Ledger) Reset(startBalance decimal.Decimal, startedAt time.Time) {
	l.state = domain.PortfolioState{
		StartedAt: startedAt,
		Balance:   startBalance,
	}
}

// Restore replaces the book with a persisted one.
func (l *Ledger) Restore(state domain.PortfolioState, lock domain.ProfitLockConfig) {
	l.state = state.Clone()
	if lock.PercentagePoints < 0 || lock.PercentagePoints > 100 {
		slog.Warn("ledger: restored profit lock out of range, disabling", "pp", lock.PercentagePoints)
		lock = domain.ProfitLockConfig{}
	}
	l.lock = lock
}

// ApplyTrade books a trade's profit and skims the profit lock. Returns the
// amount locked, zero when nothing was locked.
func (l *Ledger) ApplyTrade(trade domain.Trade, now time.Time) decimal.Decimal {
	profit := decimal.NewFromFloat(trade.Profit)

	l.state.Balance = l.state.Balance.Add(profit)
	l.state.CumulativePnL = l.state.CumulativePnL.Add(profit)
	l.state.DailyReturnPercent = dailyReturn(l.state.CumulativePnL, l.state.StartedAt, now)

	if !l.lock.Enabled || l.lock.PercentagePoints == 0 || !profit.IsPositive() {
		return decimal.Zero
	}

	lockAmount := profit.Mul(decimal.NewFromInt(int64(l.lock.PercentagePoints))).Div(hundred)
	l.state.LockedBalance = l.state.LockedBalance.Add(lockAmount)
	l.state.TotalLocked = l.state.TotalLocked.Add(lockAmount)
	l.state.History = append(l.state.History, domain.LockEntry{
		TradeID:    trade.ID,
		LockAmount: lockAmount,
		Timestamp:  now,
	})
	if len(l.state.History) > historyRetention {
		l.state.History = append([]domain.LockEntry(nil), l.state.History[len(l.state.History)-historyRetention:]...)
	}

	slog.Debug("ledger: profit locked",
		"trade_id", trade.ID,
		"locked", fmt.Sprintf("$%s", lockAmount.StringFixed(2)),
		"locked_total", fmt.Sprintf("$%s", l.state.LockedBalance.StringFixed(2)),
	)
	return lockAmount
}

// WithdrawLock moves min(amount, locked) from the locked balance into the
// balance and returns the amount moved.
func (l *Ledger) WithdrawLock(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("ledger.WithdrawLock: amount %s must be positive: %w", amount, domain.ErrValidation)
	}
	if !l.state.LockedBalance.IsPositive() {
		return decimal.Zero, fmt.Errorf("ledger.WithdrawLock: nothing locked: %w", domain.ErrValidation)
	}

	moved := decimal.Min(amount, l.state.LockedBalance)
	l.state.LockedBalance = l.state.LockedBalance.Sub(moved)
	l.state.Balance = l.state.Balance.Add(moved)
	l.state.TotalWithdrawn = l.state.TotalWithdrawn.Add(moved)
	return moved, nil
}

// Configure updates the profit lock. Nil arguments are left unchanged;
// on error nothing changes.
func (l *Ledger) Configure(percentagePoints *int, enabled *bool) error {
	next := l.lock
	if percentagePoints != nil {
		pp := *percentagePoints
		if pp < 0 || pp > 100 {
			return fmt.Errorf("ledger.Configure: percentage points %d outside [0,100]: %w", pp, domain.ErrValidation)
		}
		next.PercentagePoints = pp
	}
	if enabled != nil {
		next.Enabled = *enabled
	}
	l.lock = next
	return nil
}

// State returns a copy of the book.
func (l *Ledger) State() domain.PortfolioState {
	return l.state.Clone()
}

// ProfitLock returns the current profit-lock configuration.
func (l *Ledger) ProfitLock() domain.ProfitLockConfig {
	return l.lock
}

// dailyReturn is cumulativePnL / (days × 100) × 100. The day count is
// floored at one rather than only guarded against zero, so a session
// younger than a day reports its cumulative return instead of
// extrapolating a few minutes of trading to a full day.
func dailyReturn(cumulative decimal.Decimal, startedAt, now time.Time) decimal.Decimal {
	days := decimal.NewFromFloat(now.Sub(startedAt).Hours() / 24)
	if days.LessThan(one) {
		days = one
	}
	return cumulative.Div(days.Mul(hundred)).Mul(hundred)
}
