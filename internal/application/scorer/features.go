package scorer

import (
	"math"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// Feature names. Keys of domain.Features and of the weight map.
const (
	FeatureProfitPercent = "profit_percent"
	FeatureSlippage      = "slippage"
	FeatureLiquidity     = "liquidity"
	FeatureVolume        = "volume"
	FeatureRSI           = "rsi"
	FeatureVolatility    = "volatility"
	FeatureMomentum      = "momentum"
	FeatureMACD          = "macd"
	FeatureHourOfDay     = "hour_of_day"
	FeatureDayOfWeek     = "day_of_week"
)

// Neutral values used when an input is missing.
const (
	neutralRSI        = 50.0
	neutralVolatility = 0.0
	neutralMomentum   = 0.0
	neutralMACD       = 0.0
	neutralHour       = 12.0
	neutralDay        = 3.0

	rsiWindow      = 14
	momentumWindow = 5
	macdFast       = 5
	macdSlow       = 12
)

// EngineerFeatures turns raw trade context into the named feature vector.
// It never fails; missing inputs produce neutral values.
func EngineerFeatures(in domain.FeatureInput) domain.Features {
	f := domain.Features{
		FeatureProfitPercent: in.ExpectedProfit,
		FeatureSlippage:      math.Max(0, in.SlippagePercent),
		FeatureLiquidity:     math.Max(0, in.LiquidityUSD),
		FeatureVolume:        math.Max(0, in.Volume24hUSD),
		FeatureHourOfDay:     neutralHour,
		FeatureDayOfWeek:     neutralDay,
		FeatureRSI:           neutralRSI,
		FeatureVolatility:    neutralVolatility,
		FeatureMomentum:      neutralMomentum,
		FeatureMACD:          neutralMACD,
	}
	if !in.Timestamp.IsZero() {
		ts := in.Timestamp.UTC()
		f[FeatureHourOfDay] = float64(ts.Hour())
		f[FeatureDayOfWeek] = float64(ts.Weekday())
	}

	hist := in.PriceHistory
	if len(hist) >= 2 {
		f[FeatureVolatility] = volatility(hist)
	}
	if len(hist) >= momentumWindow {
		f[FeatureMomentum] = momentum(hist, momentumWindow)
	}
	if len(hist) > rsiWindow {
		f[FeatureRSI] = rsi(hist, rsiWindow)
	}
	if len(hist) >= macdSlow {
		f[FeatureMACD] = macd(hist, macdFast, macdSlow)
	}
	return f
}

// returns yields simple period returns, skipping non-positive prices.
func returns(hist []float64) []float64 {
	out := make([]float64, 0, len(hist)-1)
	for i := 1; i < len(hist); i++ {
		if hist[i-1] <= 0 {
			continue
		}
		out = append(out, (hist[i]-hist[i-1])/hist[i-1])
	}
	return out
}

// volatility is the population standard deviation of returns.
func volatility(hist []float64) float64 {
	r := returns(hist)
	if len(r) == 0 {
		return 0
	}
	var mean float64
	for _, v := range r {
		mean += v
	}
	mean /= float64(len(r))
	var ss float64
	for _, v := range r {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(r)))
}

// momentum is the relative change over the last n samples.
func momentum(hist []float64, n int) float64 {
	first := hist[len(hist)-n]
	if first <= 0 {
		return 0
	}
	return (hist[len(hist)-1] - first) / first
}

// rsi over the last n price changes; 100 when there were no losses.
func rsi(hist []float64, n int) float64 {
	var gain, loss float64
	for i := len(hist) - n; i < len(hist); i++ {
		d := hist[i] - hist[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if gain == 0 && loss == 0 {
		return neutralRSI
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// macd is fast SMA minus slow SMA, relative to the slow SMA.
func macd(hist []float64, fast, slow int) float64 {
	fastAvg := mean(hist[len(hist)-fast:])
	slowAvg := mean(hist[len(hist)-slow:])
	if slowAvg <= 0 {
		return 0
	}
	return (fastAvg - slowAvg) / slowAvg
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// impact maps a feature value onto a bounded contribution in [-1, 1].
// Each curve is monotonic or sweet-spot shaped, never unbounded.
func impact(name string, v float64) (float64, bool) {
	switch name {
	case FeatureProfitPercent:
		// Diminishing returns: 1% edge ≈ 0.46, saturates near 1.
		return math.Tanh(v / 2), true
	case FeatureSlippage:
		// Penalty grows with slippage, capped at -1 around 5%.
		return -math.Min(1, v/5), true
	case FeatureLiquidity:
		return logReward(v, 1e3, 1e7), true
	case FeatureVolume:
		return logReward(v, 1e3, 1e8), true
	case FeatureRSI:
		// Sweet spot 40–60; overbought or oversold is penalised.
		d := math.Abs(v-50) / 50
		return 1 - 2*math.Min(1, d*1.5), true
	case FeatureVolatility:
		// Some movement is good, too much is noise. Peak around 2%.
		return sweetSpot(v, 0.02, 0.05), true
	case FeatureMomentum:
		return math.Tanh(v * 20), true
	case FeatureMACD:
		return math.Tanh(v * 50), true
	case FeatureHourOfDay:
		// Busier markets during 13–21 UTC.
		if v >= 13 && v <= 21 {
			return 0.5, true
		}
		return -0.2, true
	}
	return 0, false
}

// logReward maps [lo, hi] onto [-1, 1] on a log scale.
func logReward(v, lo, hi float64) float64 {
	if v <= 0 {
		return 0
	}
	x := (math.Log10(v) - math.Log10(lo)) / (math.Log10(hi) - math.Log10(lo))
	return clamp(2*x-1, -1, 1)
}

// sweetSpot is 1 at peak and falls linearly to -1 at peak±width.
func sweetSpot(v, peak, width float64) float64 {
	return clamp(1-2*math.Abs(v-peak)/width, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
