package domain

import "time"

// Quote is a non-binding estimate for swapping InAmount of InputMint into
// OutputMint. Amounts are atomic units.
type Quote struct {
	InputMint      string  `json:"inputMint"`
	OutputMint     string  `json:"outputMint"`
	InAmount       uint64  `json:"inAmount"`
	OutAmount      uint64  `json:"outAmount"`
	PriceImpactPct float64 `json:"priceImpactPct"`
	SlippageBps    int     `json:"slippageBps"`
}

// QuoteRequest asks the aggregator for a quote.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
}

// PriceSourceName identifies where a price came from.
type PriceSourceName string

const (
	SourceOracle PriceSourceName = "oracle"
	SourceQuote  PriceSourceName = "quote"
	SourceStatic PriceSourceName = "static"
)

// ExecutionResult is what the external signer returns after submitting a
// prepared quote.
type ExecutionResult struct {
	Success   bool   `json:"success"`
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// TradeabilityReason explains why an asset failed the round-trip check.
type TradeabilityReason string

const (
	ReasonNone              TradeabilityReason = ""
	ReasonNoPrice           TradeabilityReason = "NoPrice"
	ReasonNoForwardQuote    TradeabilityReason = "NoForwardQuote"
	ReasonNoReverseQuote    TradeabilityReason = "NoReverseQuote"
	ReasonExcessiveSlippage TradeabilityReason = "ExcessiveSlippage"
)

// Tradeability is the result of a buy-then-sell quote round trip.
type Tradeability struct {
	Asset     Asset `json:"asset"`
	Tradeable bool  `json:"tradeable"`
	// ImpliedSlippagePercent is the round-trip loss as a fraction,
	// 1 - reverseOut/forwardIn; 0.02 means two percent was lost.
	ImpliedSlippagePercent float64            `json:"impliedSlippagePercent"`
	Reason                 TradeabilityReason `json:"reason,omitempty"`
}

// PriceCacheEntry is a resolved price. One per asset is cached for the
// resolver's TTL; entries are overwritten on refresh.
type PriceCacheEntry struct {
	Asset      Asset           `json:"asset"`
	Price      float64         `json:"price"`
	ResolvedAt time.Time       `json:"resolvedAt"`
	Source     PriceSourceName `json:"source"`
}
