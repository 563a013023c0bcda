package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"

	"folio/internal/metrics"
	"folio/internal/middleware"
)

const maxBatch = 50

// knownEvents bounds the label values of the event counter. Anything else
// is counted as "other".
var knownEvents = map[string]bool{
	"page_view":         true,
	"click":             true,
	"scroll_depth":      true,
	"time_on_page":      true,
	"form_submit":       true,
	"newsletter_signup": true,
	"theme_change":      true,
	"error":             true,
}

var eventName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,39}$`)

// Event is one client analytics event as batched by site.js.
type Event struct {
	Name  string         `json:"name"`
	Path  string         `json:"path"`
	TS    int64          `json:"ts"`
	Props map[string]any `json:"props,omitempty"`
}

// Analytics ingests event batches sent with navigator.sendBeacon.
type Analytics struct {
	metrics *metrics.Metrics
}

// NewAnalytics creates the analytics handler.
func NewAnalytics(m *metrics.Metrics) *Analytics {
	return &Analytics{metrics: m}
}

// Collect handles POST /api/analytics.
func (a *Analytics) Collect(w http.ResponseWriter, r *http.Request) {
	var batch struct {
		Events []Event `json:"events"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&batch); err != nil {
		writeMessage(w, http.StatusBadRequest, "Expected a JSON object with an events array.")
		return
	}
	if len(batch.Events) > maxBatch {
		batch.Events = batch.Events[:maxBatch]
	}

	counts := make(map[string]int)
	for _, e := range batch.Events {
		if !eventName.MatchString(e.Name) {
			continue
		}
		label := e.Name
		if !knownEvents[label] {
			label = "other"
		}
		counts[label]++
		slog.Debug("analytics event", "name", e.Name, "path", e.Path, "ts", e.TS)
	}

	accepted := 0
	for name, n := range counts {
		a.metrics.CountEvent(name, n)
		accepted += n
	}
	slog.Info("analytics batch", "received", len(batch.Events), "accepted", accepted, "remote", middleware.ClientIP(r))
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}
