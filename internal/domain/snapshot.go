package domain

import "time"

// SnapshotVersion is the current WalletSnapshot schema version.
const SnapshotVersion = 1

// WalletSnapshot is the persisted state of a live session for one identity.
// Absent fields decode to their zero values.
type WalletSnapshot struct {
	Version     int              `json:"version"`
	Portfolio   PortfolioState   `json:"portfolio"`
	Trades      []Trade          `json:"trades"`
	ProfitLock  ProfitLockConfig `json:"profitLock"`
	ScorerStats ScorerStats      `json:"scorerStats"`
	SavedAt     time.Time        `json:"savedAt"`
}
