package ports

import "github.com/alejandrodnm/dexpilot/internal/domain"

// EventPublisher fans session events out to observers. Publish must not
// block the caller on slow consumers.
type EventPublisher interface {
	Publish(event domain.Event)
}
