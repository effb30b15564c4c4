package notify_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/dexpilot/internal/adapters/notify"
	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

var _ ports.EventPublisher = (*notify.Console)(nil)

var (
	sol  = domain.Asset{Mint: domain.MintSOL, Symbol: "SOL", Decimals: 9}
	usdc = domain.Asset{Mint: domain.MintUSDC, Symbol: "USDC", Decimals: 6}
)

func makeTrade(id string, profit float64, ok bool) domain.Trade {
	return domain.Trade{
		ID:            id,
		Timestamp:     time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC),
		From:          sol,
		To:            usdc,
		USDValue:      10,
		Profit:        profit,
		ProfitPercent: profit * 10,
		Succeeded:     ok,
		Mode:          domain.ModeDemo,
		Prediction:    &domain.PredictionRecord{PredictedOutcome: 1, Probability: 0.7, Confidence: 0.5},
	}
}

func TestConsole_TradeLine(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.Publish(domain.TradeCreated{Trade: makeTrade("t1", 0.25, true)})
	c.Publish(domain.TradeCreated{Trade: makeTrade("t2", -0.1, false)})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[10:30:00][DEMO] SOL/USDC $10.00 +2.50% pnl +$0.25")
	assert.Contains(t, lines[0], "pred 1 p0.70")
	assert.Contains(t, lines[1], "pnl -$0.10 FAILED")
}

func TestConsole_LiveSignatureShortened(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	tr := makeTrade("t1", 1, true)
	tr.Mode = domain.ModeLive
	tr.Signature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb"
	c.Publish(domain.TradeCreated{Trade: tr})

	assert.Contains(t, buf.String(), "[LIVE]")
	assert.Contains(t, buf.String(), "sig 5VERv8..BRnb")
}

func TestConsole_ReportOnStop(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.Publish(domain.SessionStatusChanged{Session: domain.Session{Mode: domain.ModeDemo, Running: true}, Previous: domain.ModeIdle})
	c.Publish(domain.TradeCreated{Trade: makeTrade("t1", 0.5, true)})
	c.Publish(domain.TradeCreated{Trade: makeTrade("t2", 0.5, true)})
	c.Publish(domain.PortfolioUpdated{Portfolio: domain.PortfolioState{
		Balance:       decimal.RequireFromString("51"),
		CumulativePnL: decimal.RequireFromString("1"),
	}})
	c.Publish(domain.ScorerStatsUpdated{Stats: domain.ScorerStats{TotalPredictions: 2, Accuracy: 0.5}})
	c.Publish(domain.SessionStatusChanged{Session: domain.Session{Mode: domain.ModeIdle}, Previous: domain.ModeDemo})

	out := buf.String()
	assert.Contains(t, out, "session demo started")
	assert.Contains(t, out, "SESSION REPORT (DEMO)")
	assert.Contains(t, out, "SOL/USDC")
	assert.Contains(t, out, "Trades:        2 (2 won, 100%)")
	assert.Contains(t, out, "Balance:       $51.00")
	assert.Contains(t, out, "50.0% accuracy over 2 predictions")
}

func TestConsole_ReportWithoutTrades(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.Publish(domain.SessionStatusChanged{Session: domain.Session{Mode: domain.ModeDemo}, Previous: domain.ModeIdle})
	c.Publish(domain.SessionStatusChanged{Session: domain.Session{Mode: domain.ModeIdle}, Previous: domain.ModeDemo})

	assert.Contains(t, buf.String(), "No trades this session.")
}

func TestConsole_RestartClearsTally(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.Publish(domain.SessionStatusChanged{Session: domain.Session{Mode: domain.ModeDemo}, Previous: domain.ModeIdle})
	c.Publish(domain.TradeCreated{Trade: makeTrade("t1", 0.5, true)})
	c.Publish(domain.SessionStatusChanged{Session: domain.Session{Mode: domain.ModeDemo}, Previous: domain.ModeDemo})
	buf.Reset()
	c.Publish(domain.SessionStatusChanged{Session: domain.Session{Mode: domain.ModeIdle}, Previous: domain.ModeDemo})

	assert.Contains(t, buf.String(), "No trades this session.")
}

func TestConsole_PrintTradeability(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintTradeability([]domain.Tradeability{
		{Asset: sol, Tradeable: true},
		{Asset: usdc, Tradeable: true, ImpliedSlippagePercent: 0.004},
		{Asset: domain.Asset{Symbol: "BONK", Mint: "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"}, ImpliedSlippagePercent: 0.2, Reason: domain.ReasonExcessiveSlippage},
	})

	out := buf.String()
	assert.Contains(t, out, "2/3 assets pass")
	assert.Contains(t, out, "0.40%")
	assert.Contains(t, out, "20.00%")
	assert.Contains(t, out, "ExcessiveSlippage")
	assert.Contains(t, out, "DezXAZ..B263")
}
