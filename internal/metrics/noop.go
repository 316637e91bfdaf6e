package metrics

import "time"

// NoopRecorder discards everything.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) IncRegistrationRequested()                  {}
func (NoopRecorder) IncRegistrationCompleted()                  {}
func (NoopRecorder) IncLogin(bool)                              {}
func (NoopRecorder) IncLogout()                                 {}
func (NoopRecorder) IncAccountDeleted()                         {}
func (NoopRecorder) IncArticle(string)                          {}
func (NoopRecorder) IncComment(string)                          {}
func (NoopRecorder) IncPermissionDenied(string)                 {}
func (NoopRecorder) IncNotification(string)                     {}
func (NoopRecorder) ObserveNotificationDuration(time.Duration)  {}
func (NoopRecorder) SetMailQueueDepth(int64)                    {}
