// Package scorer implements the heuristic adaptive scorer: a weighted sum of
// bounded feature impacts, nudged by realised outcomes. It is not a trained
// model; ports.Scorer lets a real one replace it.
package scorer

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const (
	MinWeight           = 0.01
	MaxWeight           = 0.5
	WeightStep          = 0.01
	MinProbability      = 0.05
	MaxProbability      = 0.95
	MaxAccuracy         = 0.95
	MaxCalibrationBonus = 0.05
	DefaultRetrainEvery = 50

	disabledProbability = 0.6
	learnedMemory       = 1000
)

// DefaultWeights returns the initial feature weights.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		FeatureProfitPercent: 0.25,
		FeatureSlippage:      0.15,
		FeatureLiquidity:     0.15,
		FeatureVolume:        0.10,
		FeatureRSI:           0.10,
		FeatureVolatility:    0.10,
		FeatureMomentum:      0.08,
		FeatureMACD:          0.07,
		FeatureHourOfDay:     0.05,
	}
}

// Config controls the scorer.
type Config struct {
	Enabled      bool
	RetrainEvery int
	Seed         uint64
}

// Scorer is the adaptive heuristic scorer. Safe for concurrent use, though
// the session controller is its only writer.
type Scorer struct {
	mu           sync.Mutex
	cfg          Config
	rng          *rand.Rand
	now          func() time.Time
	stats        domain.ScorerStats
	learned      map[string]struct{}
	learnedOrder []string
}

// New creates a scorer with default weights.
func New(cfg Config) *Scorer {
	if cfg.RetrainEvery <= 0 {
		cfg.RetrainEvery = DefaultRetrainEvery
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return NewWithRand(cfg, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// NewWithRand creates a scorer drawing randomness from rng.
func NewWithRand(cfg Config, rng *rand.Rand) *Scorer {
	if cfg.RetrainEvery <= 0 {
		cfg.RetrainEvery = DefaultRetrainEvery
	}
	return &Scorer{
		cfg: cfg,
		rng: rng,
		now: time.Now,
		stats: domain.ScorerStats{
			Enabled:         cfg.Enabled,
			Weights:         DefaultWeights(),
			Hyperparameters: domain.Hyperparameters{LearningRate: 0.005, Regularization: 0.0005, Momentum: 0.9},
		},
		learned: make(map[string]struct{}),
	}
}

// Predict scores a candidate trade.
func (s *Scorer) Predict(features domain.Features) domain.PredictionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stats.Enabled {
		outcome := 0
		if s.rng.Float64() < disabledProbability {
			outcome = 1
		}
		return domain.PredictionRecord{
			PredictedOutcome: outcome,
			Probability:      disabledProbability,
			IsDisabled:       true,
		}
	}

	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)

	probability := 0.5
	contributions := make([]domain.FeatureImpact, 0, len(names))
	for _, name := range names {
		w := s.stats.Weights[name]
		if w <= 0 {
			continue
		}
		imp, ok := impact(name, features[name])
		if !ok {
			continue
		}
		weighted := w * imp
		probability += weighted
		contributions = append(contributions, domain.FeatureImpact{
			Name:           name,
			Value:          features[name],
			WeightedImpact: weighted,
		})
	}
	probability = clamp(probability, MinProbability, MaxProbability)

	acc := s.stats.Accuracy
	if s.stats.TotalPredictions == 0 {
		acc = 0.5
	}
	confidence := clamp(math.Abs(probability-0.5)*2*0.6+acc*0.4, 0, 1)

	outcome := 0
	if probability > 0.5 {
		outcome = 1
	}
	return domain.PredictionRecord{
		PredictedOutcome:     outcome,
		Probability:          probability,
		Confidence:           confidence,
		ContributingFeatures: contributions,
	}
}

// Learn consumes the trade's prediction. A trade is learned at most once;
// repeats are ignored.
func (s *Scorer) Learn(trade domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.learned[trade.ID]; seen {
		return
	}
	s.remember(trade.ID)

	if trade.Succeeded {
		s.stats.SuccessCount++
	} else {
		s.stats.FailureCount++
	}

	pred := trade.Prediction
	if !s.stats.Enabled || pred == nil || pred.IsDisabled {
		return
	}

	s.stats.TotalPredictions++
	if pred.PredictedOutcome == trade.Outcome() {
		s.stats.CorrectPredictions++
	} else {
		for _, fi := range pred.ContributingFeatures {
			w, ok := s.stats.Weights[fi.Name]
			if !ok {
				continue
			}
			s.stats.Weights[fi.Name] = clamp(w-sign(fi.WeightedImpact)*WeightStep, MinWeight, MaxWeight)
		}
	}
	s.recomputeAccuracy()

	s.stats.LearningEvents++
	if s.stats.LearningEvents%s.cfg.RetrainEvery == 0 {
		s.retrain()
	}
}

// retrain resamples the pseudo-hyperparameters and applies a bounded
// calibration bump to accuracy.
func (s *Scorer) retrain() {
	s.stats.Hyperparameters = domain.Hyperparameters{
		LearningRate:   0.001 + s.rng.Float64()*0.009,
		Regularization: 0.0001 + s.rng.Float64()*0.0009,
		Momentum:       0.85 + s.rng.Float64()*0.1,
	}
	s.stats.CalibrationBonus = math.Min(MaxCalibrationBonus, s.stats.CalibrationBonus+s.rng.Float64()*0.01)
	s.stats.Retrains++
	s.stats.LastRetrainAt = s.now()
	s.recomputeAccuracy()

	slog.Info("scorer: retrained",
		"retrains", s.stats.Retrains,
		"accuracy", s.stats.Accuracy,
		"learning_rate", s.stats.Hyperparameters.LearningRate,
	)
}

// Stats returns a copy of the cumulative state.
func (s *Scorer) Stats() domain.ScorerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Clone()
}

// Restore replaces the cumulative state with a persisted one. The enabled
// flag stays as configured; unknown weights are dropped and missing ones
// take their defaults.
func (s *Scorer) Restore(stats domain.ScorerStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := stats.Clone()
	restored.Enabled = s.stats.Enabled
	weights := DefaultWeights()
	for name := range weights {
		if w, ok := stats.Weights[name]; ok {
			weights[name] = clamp(w, MinWeight, MaxWeight)
		}
	}
	restored.Weights = weights
	restored.CalibrationBonus = clamp(restored.CalibrationBonus, 0, MaxCalibrationBonus)
	s.stats = restored
	s.recomputeAccuracy()
}

// SetEnabled toggles prediction. Cumulative stats are kept while disabled.
func (s *Scorer) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.stats.Enabled = enabled
	s.mu.Unlock()
}

func (s *Scorer) recomputeAccuracy() {
	if s.stats.TotalPredictions == 0 {
		s.stats.Accuracy = 0
		return
	}
	raw := float64(s.stats.CorrectPredictions) / float64(s.stats.TotalPredictions)
	s.stats.Accuracy = math.Min(MaxAccuracy, raw+s.stats.CalibrationBonus)
}

func (s *Scorer) remember(id string) {
	if id == "" {
		return
	}
	s.learned[id] = struct{}{}
	s.learnedOrder = append(s.learnedOrder, id)
	if len(s.learnedOrder) > learnedMemory {
		delete(s.learned, s.learnedOrder[0])
		s.learnedOrder = s.learnedOrder[1:]
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
