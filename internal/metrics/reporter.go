// internal/metrics/reporter.go
package metrics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/agentdeck/internal/types"
)

// DefaultPollInterval is how often the agent's metrics endpoint is polled.
const DefaultPollInterval = 5 * time.Second

// Defaults is the snapshot displayed until the agent's metrics endpoint has
// answered at least once.
var Defaults = types.Metrics{
	AvgFirstTokenLatencyMs: 120,
	AvgTokensPerSec:        25.5,
	ErrorRatePct:           0.7,
}

// Reporter polls the agent's metrics endpoint on a fixed interval and keeps
// the last good snapshot. A failed poll leaves the previous values in
// place; there is no aggregation of its own.
type Reporter struct {
	url      string
	interval time.Duration
	client   *http.Client
	cron     *cron.Cron

	mu       sync.RWMutex
	snapshot types.Metrics
}

// NewReporter creates a reporter for the metrics endpoint at url.
func NewReporter(url string, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Reporter{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 4 * time.Second},
		cron:     cron.New(),
		snapshot: Defaults,
	}
}

// Start polls once immediately, then on every interval tick.
func (r *Reporter) Start() error {
	r.Poll()
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), r.Poll); err != nil {
		return fmt.Errorf("schedule metrics poll: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop stops the poll ticker.
func (r *Reporter) Stop() {
	r.cron.Stop()
}

// Snapshot returns the current metrics values.
func (r *Reporter) Snapshot() types.Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Poll fetches the endpoint once. On success the snapshot is replaced with
// the response verbatim; on any failure the previous values stay displayed.
func (r *Reporter) Poll() {
	resp, err := r.client.Get(r.url)
	if err != nil {
		slog.Debug("metrics poll failed", "url", r.url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("metrics poll non-ok status", "url", r.url, "status", resp.StatusCode)
		return
	}

	var m types.Metrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		slog.Debug("metrics poll bad body", "url", r.url, "error", err)
		return
	}

	r.mu.Lock()
	r.snapshot = m
	r.mu.Unlock()
}
