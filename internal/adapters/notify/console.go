package notify

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// Console implements ports.EventPublisher by printing a line per trade and
// a report when a session stops.
type Console struct {
	mu  sync.Mutex
	out io.Writer

	session   domain.Session
	portfolio domain.PortfolioState
	stats     domain.ScorerStats
	pairs     map[string]*pairStats
	trades    int
	wins      int
}

type pairStats struct {
	pair   string
	trades int
	wins   int
	volume float64
	pnl    float64
}

// NewConsole prints to stdout.
func NewConsole() *Console {
	return NewConsoleWriter(os.Stdout)
}

// NewConsoleWriter prints to w. Used in tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, pairs: make(map[string]*pairStats)}
}

// Publish handles one session event.
func (c *Console) Publish(e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := e.(type) {
	case domain.TradeCreated:
		c.recordTrade(ev.Trade)
	case domain.PortfolioUpdated:
		c.portfolio = ev.Portfolio
	case domain.ScorerStatsUpdated:
		c.stats = ev.Stats
	case domain.SessionStatusChanged:
		c.statusChanged(ev)
	}
}

func (c *Console) recordTrade(t domain.Trade) {
	pair := t.From.Symbol + "/" + t.To.Symbol
	ps, ok := c.pairs[pair]
	if !ok {
		ps = &pairStats{pair: pair}
		c.pairs[pair] = ps
	}
	ps.trades++
	ps.volume += t.USDValue
	ps.pnl += t.Profit
	c.trades++
	if t.Succeeded {
		ps.wins++
		c.wins++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s][%s] %s $%.2f %+.2f%% pnl %s",
		t.Timestamp.Format("15:04:05"), strings.ToUpper(string(t.Mode)),
		pair, t.USDValue, t.ProfitPercent, signedUSD(t.Profit))
	if !t.Succeeded {
		sb.WriteString(" FAILED")
	}
	if p := t.Prediction; p != nil && !p.IsDisabled {
		fmt.Fprintf(&sb, " | pred %d p%.2f c%.2f", p.PredictedOutcome, p.Probability, p.Confidence)
	}
	if t.Signature != "" {
		fmt.Fprintf(&sb, " | sig %s", shortSig(t.Signature))
	}
	fmt.Fprintln(c.out, sb.String())
}

func (c *Console) statusChanged(ev domain.SessionStatusChanged) {
	now := time.Now().Format("15:04:05")
	if ev.Session.Mode != domain.ModeIdle {
		c.pairs = make(map[string]*pairStats)
		c.trades, c.wins = 0, 0
		c.session = ev.Session
		fmt.Fprintf(c.out, "[%s] session %s started\n", now, ev.Session.Mode)
		return
	}
	fmt.Fprintf(c.out, "[%s] session %s stopped\n", now, ev.Previous)
	c.printReport(ev.Previous)
}

// printReport prints the per-pair table and the ledger summary.
func (c *Console) printReport(mode domain.Mode) {
	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  SESSION REPORT (%s)\n", strings.ToUpper(string(mode)))
	if !c.session.StartedAt.IsZero() {
		fmt.Fprintf(c.out, "  started %s\n", c.session.StartedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(c.out, "========================================================\n\n")

	if c.trades == 0 {
		fmt.Fprintln(c.out, "  No trades this session.")
		return
	}

	rows := make([]*pairStats, 0, len(c.pairs))
	for _, ps := range c.pairs {
		rows = append(rows, ps)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].pnl != rows[j].pnl {
			return rows[i].pnl > rows[j].pnl
		}
		return rows[i].pair < rows[j].pair
	})

	tbl := tablewriter.NewWriter(c.out)
	tbl.Header("Pair", "Trades", "Win%", "Volume", "PnL")
	for _, ps := range rows {
		tbl.Append(
			ps.pair,
			fmt.Sprintf("%d", ps.trades),
			fmt.Sprintf("%.0f%%", float64(ps.wins)/float64(ps.trades)*100),
			fmt.Sprintf("$%.2f", ps.volume),
			signedUSD(ps.pnl),
		)
	}
	tbl.Render()

	p := c.portfolio
	fmt.Fprintf(c.out, "\n  Trades:        %d (%d won, %.0f%%)\n", c.trades, c.wins, float64(c.wins)/float64(c.trades)*100)
	fmt.Fprintf(c.out, "  Balance:       $%s\n", p.Balance.StringFixed(2))
	fmt.Fprintf(c.out, "  Cumulative:    $%s\n", p.CumulativePnL.StringFixed(2))
	fmt.Fprintf(c.out, "  Daily return:  %s%%\n", p.DailyReturnPercent.StringFixed(2))
	fmt.Fprintf(c.out, "  Locked:        $%s (total $%s, withdrawn $%s)\n",
		p.LockedBalance.StringFixed(2), p.TotalLocked.StringFixed(2), p.TotalWithdrawn.StringFixed(2))
	if c.stats.TotalPredictions > 0 {
		fmt.Fprintf(c.out, "  Scorer:        %.1f%% accuracy over %d predictions, %d retrains\n",
			c.stats.Accuracy*100, c.stats.TotalPredictions, c.stats.Retrains)
	}
	fmt.Fprintln(c.out)
}

func signedUSD(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("+$%.2f", v)
}

func shortSig(sig string) string {
	if len(sig) <= 12 {
		return sig
	}
	return sig[:6] + ".." + sig[len(sig)-4:]
}
