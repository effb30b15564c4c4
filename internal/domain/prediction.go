package domain

import "time"

// FeatureImpact is one feature's contribution to a prediction.
type FeatureImpact struct {
	Name           string  `json:"name"`
	Value          float64 `json:"value"`
	WeightedImpact float64 `json:"weightedImpact"`
}

// PredictionRecord is attached to a trade when it is created and consumed
// once when the outcome is known.
type PredictionRecord struct {
	PredictedOutcome     int             `json:"predictedOutcome"` // 0 | 1
	Probability          float64         `json:"probability"`
	Confidence           float64         `json:"confidence"`
	ContributingFeatures []FeatureImpact `json:"contributingFeatures,omitempty"`
	IsDisabled           bool            `json:"isDisabled,omitempty"`
}

// Features is the named input vector for the scorer.
type Features map[string]float64

// FeatureInput is the raw material for feature engineering. Zero values
// mean "unknown" and yield neutral features.
type FeatureInput struct {
	Timestamp       time.Time
	ExpectedProfit  float64 // percent
	SlippagePercent float64
	LiquidityUSD    float64
	Volume24hUSD    float64
	PriceHistory    []float64 // oldest first
}

// Hyperparameters are the pseudo-hyperparameters resampled on retrain.
type Hyperparameters struct {
	LearningRate   float64 `json:"learningRate"`
	Regularization float64 `json:"regularization"`
	Momentum       float64 `json:"momentum"`
}

// ScorerStats is the persistent, cumulative state of the adaptive scorer.
type ScorerStats struct {
	Enabled            bool               `json:"enabled"`
	TotalPredictions   int                `json:"totalPredictions"`
	CorrectPredictions int                `json:"correctPredictions"`
	Accuracy           float64            `json:"accuracy"`
	CalibrationBonus   float64            `json:"calibrationBonus"`
	SuccessCount       int                `json:"successCount"`
	FailureCount       int                `json:"failureCount"`
	LearningEvents     int                `json:"learningEvents"`
	Retrains           int                `json:"retrains"`
	LastRetrainAt      time.Time          `json:"lastRetrainAt,omitempty"`
	Hyperparameters    Hyperparameters    `json:"hyperparameters"`
	Weights            map[string]float64 `json:"weights"`
}

// Clone returns a deep copy.
func (s ScorerStats) Clone() ScorerStats {
	c := s
	c.Weights = make(map[string]float64, len(s.Weights))
	for k, v := range s.Weights {
		c.Weights[k] = v
	}
	return c
}
