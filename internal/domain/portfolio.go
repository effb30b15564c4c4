package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LockEntry records one profit-lock skim.
type LockEntry struct {
	TradeID    string          `json:"tradeId"`
	LockAmount decimal.Decimal `json:"lockAmount"`
	Timestamp  time.Time       `json:"timestamp"`
}

// PortfolioState is the session ledger. Balance may go negative in demo
// sessions; LockedBalance <= TotalLocked always holds.
type PortfolioState struct {
	StartedAt          time.Time       `json:"startedAt"`
	Balance            decimal.Decimal `json:"balance"`
	CumulativePnL      decimal.Decimal `json:"cumulativePnL"`
	DailyReturnPercent decimal.Decimal `json:"dailyReturnPercent"`
	LockedBalance      decimal.Decimal `json:"lockedBalance"`
	TotalLocked        decimal.Decimal `json:"totalLocked"`
	TotalWithdrawn     decimal.Decimal `json:"totalWithdrawn"`
	History            []LockEntry     `json:"history"`
}

// Clone returns a deep copy.
func (p PortfolioState) Clone() PortfolioState {
	c := p
	c.History = append([]LockEntry(nil), p.History...)
	return c
}

// ProfitLockConfig controls the automatic profit skim.
type ProfitLockConfig struct {
	Enabled          bool `json:"enabled"`
	PercentagePoints int  `json:"percentagePoints"`
}
