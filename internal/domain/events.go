package domain

import "time"

// EventType names an event on the push channel.
type EventType string

const (
	EventTradeCreated         EventType = "trade_created"
	EventPortfolioUpdated     EventType = "portfolio_updated"
	EventSessionStatusChanged EventType = "session_status_changed"
	EventScorerStatsUpdated   EventType = "scorer_stats_updated"
)

// Event is the closed set of events the session emits.
type Event interface {
	Type() EventType
	isEvent()
}

// TradeCreated is emitted once per appended trade.
type TradeCreated struct {
	Trade Trade `json:"trade"`
}

// PortfolioUpdated carries the ledger after a mutation.
type PortfolioUpdated struct {
	Portfolio  PortfolioState   `json:"portfolio"`
	ProfitLock ProfitLockConfig `json:"profitLock"`
}

// SessionStatusChanged is emitted on every mode transition.
type SessionStatusChanged struct {
	Session  Session `json:"session"`
	Previous Mode    `json:"previous"`
}

// ScorerStatsUpdated is emitted after the scorer learns or retrains.
type ScorerStatsUpdated struct {
	Stats ScorerStats `json:"stats"`
}

func (TradeCreated) Type() EventType         { return EventTradeCreated }
func (PortfolioUpdated) Type() EventType     { return EventPortfolioUpdated }
func (SessionStatusChanged) Type() EventType { return EventSessionStatusChanged }
func (ScorerStatsUpdated) Type() EventType   { return EventScorerStatsUpdated }

func (TradeCreated) isEvent()         {}
func (PortfolioUpdated) isEvent()     {}
func (SessionStatusChanged) isEvent() {}
func (ScorerStatsUpdated) isEvent()   {}

// EventEnvelope is the wire form of an event.
type EventEnvelope struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`
	Data Event     `json:"data"`
}

// Envelope wraps an event for transport.
func Envelope(e Event, at time.Time) EventEnvelope {
	return EventEnvelope{Type: e.Type(), At: at.UTC(), Data: e}
}
