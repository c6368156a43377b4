package services

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// Activity event types published to the broker.
const (
	EventUserRegistered = "user.registered"
	EventPostCreated    = "post.created"
	EventPostDeleted    = "post.deleted"
)

// EventPublisher pushes activity events to the message broker. A nil
// publisher disables events entirely.
type EventPublisher interface {
	Publish(eventType string, body []byte) error
}

// publishEvent marshals and publishes an activity event. Publishing is
// best-effort: failures are logged and never fail the request.
func publishEvent(events EventPublisher, log *logrus.Logger, eventType string, payload any) {
	if events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).WithField("event", eventType).Warn("failed to marshal activity event")
		return
	}
	if err := events.Publish(eventType, body); err != nil {
		log.WithError(err).WithField("event", eventType).Warn("failed to publish activity event")
	}
}
