package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RegistrationsRequested uint64
	RegistrationsCompleted uint64
	LoginsSucceeded        uint64
	LoginsFailed           uint64
	Logouts                uint64
	AccountsDeleted        uint64

	Articles          map[string]uint64
	Comments          map[string]uint64
	PermissionDenials map[string]uint64
	Notifications     map[string]uint64

	NotificationDurationCount   uint64
	NotificationDurationTotalNs int64
	MailQueueDepth              int64
}

// InMemoryRecorder keeps counters in process memory.
type InMemoryRecorder struct {
	registrationsRequested atomic.Uint64
	registrationsCompleted atomic.Uint64
	loginsSucceeded        atomic.Uint64
	loginsFailed           atomic.Uint64
	logouts                atomic.Uint64
	accountsDeleted        atomic.Uint64

	notificationDurationCount   atomic.Uint64
	notificationDurationTotalNs atomic.Int64
	mailQueueDepth              atomic.Int64

	mu       sync.Mutex
	labelled map[string]map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labelled: make(map[string]map[string]uint64)}
}

func (m *InMemoryRecorder) inc(family, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.labelled[family]
	if !ok {
		f = make(map[string]uint64)
		m.labelled[family] = f
	}
	f[label]++
}

func (m *InMemoryRecorder) copyFamily(family string) map[string]uint64 {
	out := make(map[string]uint64, len(m.labelled[family]))
	for k, v := range m.labelled[family] {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		RegistrationsRequested:      m.registrationsRequested.Load(),
		RegistrationsCompleted:      m.registrationsCompleted.Load(),
		LoginsSucceeded:             m.loginsSucceeded.Load(),
		LoginsFailed:                m.loginsFailed.Load(),
		Logouts:                     m.logouts.Load(),
		AccountsDeleted:             m.accountsDeleted.Load(),
		Articles:                    m.copyFamily("articles"),
		Comments:                    m.copyFamily("comments"),
		PermissionDenials:           m.copyFamily("permission_denials"),
		Notifications:               m.copyFamily("notifications"),
		NotificationDurationCount:   m.notificationDurationCount.Load(),
		NotificationDurationTotalNs: m.notificationDurationTotalNs.Load(),
		MailQueueDepth:              m.mailQueueDepth.Load(),
	}
}

func (m *InMemoryRecorder) IncRegistrationRequested() { m.registrationsRequested.Add(1) }
func (m *InMemoryRecorder) IncRegistrationCompleted() { m.registrationsCompleted.Add(1) }
func (m *InMemoryRecorder) IncLogout()                { m.logouts.Add(1) }
func (m *InMemoryRecorder) IncAccountDeleted()        { m.accountsDeleted.Add(1) }

// IncLogin counts a login attempt by outcome.
func (m *InMemoryRecorder) IncLogin(success bool) {
	if success {
		m.loginsSucceeded.Add(1)
		return
	}
	m.loginsFailed.Add(1)
}

func (m *InMemoryRecorder) IncArticle(action string)            { m.inc("articles", action) }
func (m *InMemoryRecorder) IncComment(action string)            { m.inc("comments", action) }
func (m *InMemoryRecorder) IncPermissionDenied(resource string) { m.inc("permission_denials", resource) }
func (m *InMemoryRecorder) IncNotification(status string)       { m.inc("notifications", status) }

// ObserveNotificationDuration records one delivery attempt.
func (m *InMemoryRecorder) ObserveNotificationDuration(d time.Duration) {
	m.notificationDurationCount.Add(1)
	m.notificationDurationTotalNs.Add(d.Nanoseconds())
}

// SetMailQueueDepth stores the latest pending + lag count of the mail stream.
func (m *InMemoryRecorder) SetMailQueueDepth(depth int64) {
	m.mailQueueDepth.Store(depth)
}
