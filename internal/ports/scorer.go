package ports

import "github.com/alejandrodnm/dexpilot/internal/domain"

// Scorer predicts trade success and learns from outcomes. The session
// controller is its only caller, so implementations need no locking.
type Scorer interface {
	Predict(features domain.Features) domain.PredictionRecord

	// Learn consumes trade.Prediction once. Calls for a trade that was
	// already learned are ignored.
	Learn(trade domain.Trade)

	Stats() domain.ScorerStats
	Restore(stats domain.ScorerStats)
	SetEnabled(enabled bool)
}
