package domain

import (
	"fmt"
	"time"
)

// Mode is the session mode.
type Mode string

const (
	ModeIdle Mode = "idle"
	ModeDemo Mode = "demo"
	ModeLive Mode = "live"
)

// ParseMode accepts the wire names of a mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeIdle, ModeDemo, ModeLive:
		return Mode(s), nil
	}
	return "", fmt.Errorf("domain.ParseMode: unknown mode %q: %w", s, ErrValidation)
}

// Session is the single process-wide trading run.
// Invariant: Mode == ModeLive implies Identity != "".
type Session struct {
	Mode      Mode      `json:"mode"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	Identity  string    `json:"identity,omitempty"`
	Running   bool      `json:"running"`
}

// SessionView is the read-only picture of the session handed to observers.
// It is rebuilt after every mutation and never modified afterwards.
type SessionView struct {
	Session     Session          `json:"session"`
	Portfolio   PortfolioState   `json:"portfolio"`
	ProfitLock  ProfitLockConfig `json:"profitLock"`
	Trades      []Trade          `json:"trades"`
	Pending     []PendingTrade   `json:"pending,omitempty"`
	ScorerStats ScorerStats      `json:"scorerStats"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}
