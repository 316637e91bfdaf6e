// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Content actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Notification outcomes.
const (
	NotificationQueued       = "queued"
	NotificationSent         = "sent"
	NotificationFailed       = "failed"
	NotificationDeadLettered = "dead_lettered"
)

// Recorder captures metric events for the application.
type Recorder interface {
	// Account lifecycle
	IncRegistrationRequested()
	IncRegistrationCompleted()
	IncLogin(success bool)
	IncLogout()
	IncAccountDeleted()

	// Content
	IncArticle(action string)
	IncComment(action string)
	IncPermissionDenied(resource string)

	// Outbound mail
	IncNotification(status string)
	ObserveNotificationDuration(d time.Duration)
	SetMailQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
