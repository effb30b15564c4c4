package jupiter

// Raw API DTOs. Only used inside this package; mapping to domain types
// happens in price.go and quote.go.

// priceResponse is GET /price/v2?ids=...
type priceResponse struct {
	Data map[string]*priceEntry `json:"data"`
}

type priceEntry struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Price string `json:"price"`
}

// quoteResponse is GET /swap/v1/quote. Amounts come as decimal strings.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`
}
