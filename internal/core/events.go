// Package core implements the domain services behind every protocol
// surface. Handlers translate transport concerns; services own the
// business rules.
package core

import (
	"context"

	"mangahub/pkg/models"
)

// EventSink receives the side effects of successful intents: progress
// events for the TCP bus and notifications for the UDP bus. Publishing
// is best-effort; a sink must never fail the intent that produced the
// event.
type EventSink interface {
	PublishProgress(ctx context.Context, event models.ProgressEvent)
	PublishNotification(ctx context.Context, notification models.Notification)
}

// NopSink drops every event. Used by tests and the seed script.
type NopSink struct{}

func (NopSink) PublishProgress(context.Context, models.ProgressEvent)    {}
func (NopSink) PublishNotification(context.Context, models.Notification) {}
