package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// Config is the full process configuration.
type Config struct {
	Session SessionConfig `yaml:"session"`
	Pricing PricingConfig `yaml:"pricing"`
	Assets  []AssetConfig `yaml:"assets"`
	API     APIConfig     `yaml:"api"`
	Signer  SignerConfig  `yaml:"signer"`
	Storage StorageConfig `yaml:"storage"`
	Scorer  ScorerConfig  `yaml:"scorer"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// SessionConfig controls the session controller and both engines.
type SessionConfig struct {
	TickIntervalSeconds   int              `yaml:"tick_interval_seconds"`
	DemoStartingBalance   float64          `yaml:"demo_starting_balance"`
	TradeRetention        int              `yaml:"trade_retention"`
	HistorySize           int              `yaml:"history_size"`
	PersistTimeoutSeconds int              `yaml:"persist_timeout_seconds"`
	BaseAsset             string           `yaml:"base_asset"` // symbol or mint
	ProfitLock            ProfitLockConfig `yaml:"profit_lock"`
	Demo                  DemoConfig       `yaml:"demo"`
	Live                  LiveConfig       `yaml:"live"`
}

// ProfitLockConfig is the initial profit lock.
type ProfitLockConfig struct {
	Enabled          bool `yaml:"enabled"`
	PercentagePoints int  `yaml:"percentage_points"`
}

// DemoConfig tunes trade synthesis.
type DemoConfig struct {
	MinFraction       float64 `yaml:"min_fraction"`
	MaxFraction       float64 `yaml:"max_fraction"`
	MinTradeUSD       float64 `yaml:"min_trade_usd"`
	CheckTradeability bool    `yaml:"check_tradeability"`
	Workers           int     `yaml:"workers"`
}

// LiveConfig bounds live trades.
type LiveConfig struct {
	MinTradeUSD           float64 `yaml:"min_trade_usd"`
	MaxTradeUSD           float64 `yaml:"max_trade_usd"`
	CheckTradeability     bool    `yaml:"check_tradeability"`
	ExecuteTimeoutSeconds int     `yaml:"execute_timeout_seconds"`
}

// PricingConfig controls the resolver and the tradeability check.
type PricingConfig struct {
	TTLSeconds         int     `yaml:"ttl_seconds"`
	CallTimeoutSeconds int     `yaml:"call_timeout_seconds"`
	SlippageBps        int     `yaml:"slippage_bps"`
	MaxRoundTripLoss   float64 `yaml:"max_round_trip_loss"` // fraction, 0.10 = 10%
	ForwardAmount      uint64  `yaml:"forward_amount"`      // atomic units of the base asset
	USDMint            string  `yaml:"usd_mint"`
}

// AssetConfig is one entry of the trading universe. StaticPrice, when set,
// is the last-resort USD price.
type AssetConfig struct {
	Mint        string  `yaml:"mint"`
	Symbol      string  `yaml:"symbol"`
	Decimals    int     `yaml:"decimals"`
	StaticPrice float64 `yaml:"static_price"`
}

// APIConfig points at the swap aggregator.
type APIConfig struct {
	JupiterBase    string  `yaml:"jupiter_base"`
	JupiterAPIKey  string  `yaml:"jupiter_api_key"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// SignerConfig points at the external signer bridge. An empty URL disables
// live execution.
type SignerConfig struct {
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | file
	DSN    string `yaml:"dsn"`    // sqlite path, postgres URL or directory
}

// ScorerConfig controls the adaptive scorer.
type ScorerConfig struct {
	Enabled      *bool  `yaml:"enabled"` // default true
	RetrainEvery int    `yaml:"retrain_every"`
	Seed         uint64 `yaml:"seed"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Console        bool     `yaml:"console"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment
// values override the YAML.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies env overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TickInterval returns the demo tick interval.
func (c *Config) TickInterval() time.Duration {
	return seconds(c.Session.TickIntervalSeconds)
}

// PersistTimeout bounds snapshot saves and loads.
func (c *Config) PersistTimeout() time.Duration {
	return seconds(c.Session.PersistTimeoutSeconds)
}

// PriceTTL is the price cache lifetime.
func (c *Config) PriceTTL() time.Duration {
	return seconds(c.Pricing.TTLSeconds)
}

// CallTimeout bounds each upstream price call.
func (c *Config) CallTimeout() time.Duration {
	return seconds(c.Pricing.CallTimeoutSeconds)
}

// Universe builds the trading universe and the USD reference asset.
func (c *Config) Universe() (*domain.Universe, domain.Asset, error) {
	assets := make([]domain.Asset, 0, len(c.Assets))
	for i, ac := range c.Assets {
		a, err := domain.NewAsset(ac.Mint, ac.Symbol, ac.Decimals)
		if err != nil {
			return nil, domain.Asset{}, fmt.Errorf("config.Universe: assets[%d]: %w", i, err)
		}
		assets = append(assets, a)
	}

	var base, usd domain.Asset
	var haveBase, haveUSD bool
	want := strings.ToUpper(c.Session.BaseAsset)
	for _, a := range assets {
		if !haveBase && (a.Mint == c.Session.BaseAsset || a.Symbol == want) {
			base, haveBase = a, true
		}
		if a.Mint == c.Pricing.USDMint {
			usd, haveUSD = a, true
		}
	}
	if !haveBase {
		return nil, domain.Asset{}, fmt.Errorf("config.Universe: base asset %q not in assets: %w", c.Session.BaseAsset, domain.ErrValidation)
	}
	if !haveUSD {
		return nil, domain.Asset{}, fmt.Errorf("config.Universe: usd mint %q not in assets: %w", c.Pricing.USDMint, domain.ErrValidation)
	}
	return domain.NewUniverse(base, assets), usd, nil
}

// StaticPrices returns the configured fallback prices by mint.
func (c *Config) StaticPrices() map[string]float64 {
	out := make(map[string]float64)
	for _, a := range c.Assets {
		if a.StaticPrice > 0 {
			out[a.Mint] = a.StaticPrice
		}
	}
	return out
}

func (c *Config) validate() error {
	pl := c.Session.ProfitLock
	if pl.PercentagePoints < 0 || pl.PercentagePoints > 100 {
		return fmt.Errorf("config.Load: profit_lock.percentage_points %d out of [0,100]: %w", pl.PercentagePoints, domain.ErrValidation)
	}
	if c.Pricing.MaxRoundTripLoss <= 0 || c.Pricing.MaxRoundTripLoss >= 1 {
		return fmt.Errorf("config.Load: max_round_trip_loss %.3f out of (0,1): %w", c.Pricing.MaxRoundTripLoss, domain.ErrValidation)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "file":
	default:
		return fmt.Errorf("config.Load: unknown storage driver %q: %w", c.Storage.Driver, domain.ErrValidation)
	}
	return nil
}

// applyEnvOverrides overrides values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("JUPITER_API_KEY"); v != "" {
		cfg.API.JupiterAPIKey = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SIGNER_URL"); v != "" {
		cfg.Signer.URL = v
	}
	if v := os.Getenv("SIGNER_TOKEN"); v != "" {
		cfg.Signer.Token = v
	}
}

// setDefaults fills in required values.
func setDefaults(cfg *Config) {
	s := &cfg.Session
	if s.TickIntervalSeconds <= 0 {
		s.TickIntervalSeconds = 5
	}
	if s.DemoStartingBalance <= 0 {
		s.DemoStartingBalance = 50
	}
	if s.TradeRetention <= 0 {
		s.TradeRetention = 100
	}
	if s.HistorySize <= 0 {
		s.HistorySize = 64
	}
	if s.PersistTimeoutSeconds <= 0 {
		s.PersistTimeoutSeconds = 10
	}
	if s.BaseAsset == "" {
		s.BaseAsset = "SOL"
	}
	if s.ProfitLock.PercentagePoints == 0 {
		s.ProfitLock.PercentagePoints = 10
	}
	if s.Live.ExecuteTimeoutSeconds <= 0 {
		s.Live.ExecuteTimeoutSeconds = 60
	}

	p := &cfg.Pricing
	if p.TTLSeconds <= 0 {
		p.TTLSeconds = 60
	}
	if p.CallTimeoutSeconds <= 0 {
		p.CallTimeoutSeconds = 4
	}
	if p.SlippageBps <= 0 {
		p.SlippageBps = 50
	}
	if p.MaxRoundTripLoss == 0 {
		p.MaxRoundTripLoss = 0.10
	}
	if p.USDMint == "" {
		p.USDMint = domain.MintUSDC
	}

	if len(cfg.Assets) == 0 {
		cfg.Assets = []AssetConfig{
			{Mint: domain.MintSOL, Symbol: "SOL", Decimals: 9},
			{Mint: domain.MintUSDC, Symbol: "USDC", Decimals: 6, StaticPrice: 1},
		}
	}

	if cfg.API.JupiterBase == "" {
		cfg.API.JupiterBase = "https://api.jup.ag"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 5
	}
	if cfg.Signer.TimeoutSeconds <= 0 {
		cfg.Signer.TimeoutSeconds = 30
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "dexpilot.db"
	}
	if cfg.Scorer.Enabled == nil {
		on := true
		cfg.Scorer.Enabled = &on
	}
	if cfg.Scorer.RetrainEvery <= 0 {
		cfg.Scorer.RetrainEvery = 50
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
