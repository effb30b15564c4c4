package domain

import "time"

// Trade is a completed swap, synthesized in demo sessions or ingested from
// the external signer in live sessions. Immutable once created.
type Trade struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	From          Asset             `json:"fromAsset"`
	To            Asset             `json:"toAsset"`
	InputAmount   float64           `json:"inputAmount"` // UI units of From
	USDValue      float64           `json:"usdValue"`
	Profit        float64           `json:"profit"`        // USD
	ProfitPercent float64           `json:"profitPercent"` // of USDValue
	Succeeded     bool              `json:"succeeded"`
	Signature     string            `json:"signature,omitempty"` // live only
	Mode          Mode              `json:"mode"`
	Prediction    *PredictionRecord `json:"predictionDetails,omitempty"`
}

// Outcome returns 1 for a successful trade and 0 otherwise, matching the
// scorer's numeric prediction space.
func (t Trade) Outcome() int {
	if t.Succeeded {
		return 1
	}
	return 0
}

// TradeOutcome is what the signer (or a manual ingest) reports for a
// pending live trade.
type TradeOutcome struct {
	Succeeded bool    `json:"succeeded"`
	Profit    float64 `json:"profit"`
	Signature string  `json:"signature,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// PendingTrade is a prepared live trade waiting for its outcome.
type PendingTrade struct {
	ID          string            `json:"id"`
	PreparedAt  time.Time         `json:"preparedAt"`
	From        Asset             `json:"fromAsset"`
	To          Asset             `json:"toAsset"`
	InputAmount float64           `json:"inputAmount"`
	USDValue    float64           `json:"usdValue"`
	Quote       Quote             `json:"quote"`
	Prediction  *PredictionRecord `json:"predictionDetails,omitempty"`
	// Executing is set while the signer holds the trade.
	Executing bool `json:"executing,omitempty"`
}

// TradeLog is an append-only, bounded log of trades. The zero value is
// unbounded; use NewTradeLog to cap retention.
type TradeLog struct {
	retention int
	trades    []Trade
}

// NewTradeLog returns a log that keeps at most retention trades.
func NewTradeLog(retention int) *TradeLog {
	return &TradeLog{retention: retention}
}

// Append adds a trade, dropping the oldest entries beyond retention.
func (l *TradeLog) Append(t Trade) {
	l.trades = append(l.trades, t)
	if l.retention > 0 && len(l.trades) > l.retention {
		drop := len(l.trades) - l.retention
		l.trades = append([]Trade(nil), l.trades[drop:]...)
	}
}

// Replace swaps the log contents, e.g. when restoring a snapshot.
func (l *TradeLog) Replace(trades []Trade) {
	l.trades = nil
	for _, t := range trades {
		l.Append(t)
	}
}

// Reset clears the log.
func (l *TradeLog) Reset() {
	l.trades = nil
}

// Len returns the number of retained trades.
func (l *TradeLog) Len() int {
	return len(l.trades)
}

// Snapshot returns a copy safe to hand to readers.
func (l *TradeLog) Snapshot() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// TradeDraft is a candidate trade built off the session actor from fresh
// prices. The session turns it into a Trade (demo) or a PendingTrade (live),
// attaching the scorer's prediction.
type TradeDraft struct {
	From          Asset
	To            Asset
	FromPrice     float64 // USD
	ToPrice       float64 // USD
	InputAmount   float64 // UI units of From
	USDValue      float64
	ProfitPercent float64 // realised edge, demo only
	Succeeded     bool    // demo only
	Features      Features
}

// DraftInput is the session state a draft source needs. It is a copy and
// may be read freely.
type DraftInput struct {
	Balance float64
	History map[string][]float64 // mint → recent USD prices, oldest first
}
