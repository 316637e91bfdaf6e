package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/inkpost/inkpost/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
// GET /metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "inkpost_registrations_total{stage=\"requested\"} %d\n", snap.RegistrationsRequested)
	writeMetric(w, "inkpost_registrations_total{stage=\"completed\"} %d\n", snap.RegistrationsCompleted)
	writeMetric(w, "inkpost_logins_total{result=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "inkpost_logins_total{result=\"failure\"} %d\n", snap.LoginsFailed)
	writeMetric(w, "inkpost_logouts_total %d\n", snap.Logouts)
	writeMetric(w, "inkpost_accounts_deleted_total %d\n", snap.AccountsDeleted)

	writeFamily(w, "inkpost_articles_total", "action", snap.Articles)
	writeFamily(w, "inkpost_comments_total", "action", snap.Comments)
	writeFamily(w, "inkpost_permission_denials_total", "resource", snap.PermissionDenials)
	writeFamily(w, "inkpost_notifications_total", "status", snap.Notifications)

	writeMetric(w, "inkpost_notification_duration_seconds_count %d\n", snap.NotificationDurationCount)
	writeMetric(w, "inkpost_notification_duration_seconds_sum %.6f\n", float64(snap.NotificationDurationTotalNs)/1e9)
	writeMetric(w, "inkpost_mail_queue_depth %d\n", snap.MailQueueDepth)
}

// writeFamily prints one labelled counter per entry, sorted for stable output.
func writeFamily(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
