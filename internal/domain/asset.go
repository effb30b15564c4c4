package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	mintKeyLen  = 32
	maxDecimals = 18
)

// Well-known Solana mints.
const (
	MintSOL  = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qNJxxSkfGs8BuELKgt7Kb8yBM9"
)

// Asset is a tradeable SPL token. Built once by NewAsset and passed by value.
type Asset struct {
	Mint     string `json:"mint"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NewAsset validates and builds an Asset. The mint must be the base58
// encoding of a 32-byte public key.
func NewAsset(mint, symbol string, decimals int) (Asset, error) {
	mint = strings.TrimSpace(mint)
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if symbol == "" {
		return Asset{}, fmt.Errorf("domain.NewAsset: empty symbol for mint %q: %w", mint, ErrValidation)
	}
	if decimals < 0 || decimals > maxDecimals {
		return Asset{}, fmt.Errorf("domain.NewAsset: %s decimals %d out of range: %w", symbol, decimals, ErrValidation)
	}
	raw, err := base58.Decode(mint)
	if err != nil {
		return Asset{}, fmt.Errorf("domain.NewAsset: %s mint %q not base58: %w", symbol, mint, ErrValidation)
	}
	if len(raw) != mintKeyLen {
		return Asset{}, fmt.Errorf("domain.NewAsset: %s mint decodes to %d bytes, want %d: %w",
			symbol, len(raw), mintKeyLen, ErrValidation)
	}
	return Asset{Mint: mint, Symbol: symbol, Decimals: uint8(decimals)}, nil
}

// UnitAmount returns the number of atomic units in one whole token.
func (a Asset) UnitAmount() uint64 {
	n := uint64(1)
	for i := uint8(0); i < a.Decimals; i++ {
		n *= 10
	}
	return n
}

// ToAtomic converts a UI amount (e.g. 1.5 SOL) into atomic units.
func (a Asset) ToAtomic(amount float64) uint64 {
	if amount <= 0 {
		return 0
	}
	return uint64(math.Round(amount * float64(a.UnitAmount())))
}

// FromAtomic converts atomic units into a UI amount.
func (a Asset) FromAtomic(atomic uint64) float64 {
	return float64(atomic) / float64(a.UnitAmount())
}

func (a Asset) String() string {
	return a.Symbol
}

// Universe is the ordered set of assets a session may trade.
type Universe struct {
	Base   Asset
	Assets []Asset
	byMint map[string]Asset
}

// NewUniverse indexes the assets. The base asset is always included.
func NewUniverse(base Asset, assets []Asset) *Universe {
	u := &Universe{Base: base, byMint: make(map[string]Asset, len(assets)+1)}
	u.byMint[base.Mint] = base
	u.Assets = append(u.Assets, base)
	for _, a := range assets {
		if _, dup := u.byMint[a.Mint]; dup {
			continue
		}
		u.byMint[a.Mint] = a
		u.Assets = append(u.Assets, a)
	}
	return u
}

// Lookup returns the asset for a mint or a symbol.
func (u *Universe) Lookup(key string) (Asset, bool) {
	if a, ok := u.byMint[key]; ok {
		return a, true
	}
	want := strings.ToUpper(key)
	for _, a := range u.Assets {
		if a.Symbol == want {
			return a, true
		}
	}
	return Asset{}, false
}
