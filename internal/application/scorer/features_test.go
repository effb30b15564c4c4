package scorer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/dexpilot/internal/application/scorer"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

func TestEngineerFeatures_NeutralDefaults(t *testing.T) {
	f := scorer.EngineerFeatures(domain.FeatureInput{})
	assert.Equal(t, 50.0, f[scorer.FeatureRSI])
	assert.Equal(t, 0.0, f[scorer.FeatureVolatility])
	assert.Equal(t, 0.0, f[scorer.FeatureMomentum])
	assert.Equal(t, 0.0, f[scorer.FeatureMACD])
	assert.Equal(t, 12.0, f[scorer.FeatureHourOfDay])
}

func TestEngineerFeatures_Time(t *testing.T) {
	ts := time.Date(2025, 6, 7, 18, 30, 0, 0, time.UTC) // Saturday
	f := scorer.EngineerFeatures(domain.FeatureInput{Timestamp: ts})
	assert.Equal(t, 18.0, f[scorer.FeatureHourOfDay])
	assert.Equal(t, 6.0, f[scorer.FeatureDayOfWeek])
}

func TestEngineerFeatures_RisingHistory(t *testing.T) {
	hist := make([]float64, 20)
	for i := range hist {
		hist[i] = 100 + float64(i)
	}
	f := scorer.EngineerFeatures(domain.FeatureInput{PriceHistory: hist})

	assert.Equal(t, 100.0, f[scorer.FeatureRSI], "no losses")
	// last 5 samples: 115 → 119
	assert.InDelta(t, 4.0/115.0, f[scorer.FeatureMomentum], 1e-9)
	assert.Greater(t, f[scorer.FeatureMACD], 0.0)
	assert.Greater(t, f[scorer.FeatureVolatility], 0.0)
}

func TestEngineerFeatures_FlatHistory(t *testing.T) {
	hist := make([]float64, 20)
	for i := range hist {
		hist[i] = 42
	}
	f := scorer.EngineerFeatures(domain.FeatureInput{PriceHistory: hist})
	assert.Equal(t, 50.0, f[scorer.FeatureRSI])
	assert.Equal(t, 0.0, f[scorer.FeatureVolatility])
	assert.Equal(t, 0.0, f[scorer.FeatureMomentum])
	assert.Equal(t, 0.0, f[scorer.FeatureMACD])
}

func TestEngineerFeatures_ShortHistoryStaysNeutral(t *testing.T) {
	f := scorer.EngineerFeatures(domain.FeatureInput{PriceHistory: []float64{1, 2, 3}})
	assert.Equal(t, 50.0, f[scorer.FeatureRSI])
	assert.Equal(t, 0.0, f[scorer.FeatureMomentum])
	assert.Greater(t, f[scorer.FeatureVolatility], 0.0)
}
