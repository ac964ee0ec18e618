// Package metrics records publish run metrics and pushes them to a
// Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/meigma/shipper/core"
)

// Compile-time interface implementation check.
var _ core.Observer = (*Recorder)(nil)

// Status label values.
const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Recorder turns publish events into Prometheus metrics:
//   - Traffic: uploads and pins by provider and status
//   - Latency: upload duration by provider
//   - Volume: archive bytes read by provider
type Recorder struct {
	registry *prometheus.Registry

	uploads  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pins     *prometheus.CounterVec
	bytes    *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time
	read    map[string]int64
	now     func() time.Time
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shipper",
			Name:      "uploads_total",
			Help:      "Provider upload attempts by result.",
		}, []string{"provider", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shipper",
			Name:      "upload_duration_seconds",
			Help:      "Provider upload latency in seconds.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"provider"}),
		pins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shipper",
			Name:      "pins_total",
			Help:      "Content pin attempts by result.",
		}, []string{"provider", "status"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shipper",
			Name:      "upload_bytes_total",
			Help:      "Archive bytes read by providers.",
		}, []string{"provider"}),
		started: make(map[string]time.Time),
		read:    make(map[string]int64),
		now:     time.Now,
	}
	r.registry.MustRegister(r.uploads, r.duration, r.pins, r.bytes)
	return r
}

// Gatherer returns the registry holding the recorded metrics.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// OnEvent implements core.Observer.
func (r *Recorder) OnEvent(e core.Event) {
	switch e.Kind {
	case core.UploadBegin:
		r.mu.Lock()
		r.started[e.Provider] = r.now()
		r.read[e.Provider] = 0
		r.mu.Unlock()
	case core.UploadSuccess:
		r.finish(e.Provider, statusSuccess)
	case core.UploadFail:
		r.finish(e.Provider, statusFailure)
	case core.UploadProgress:
		r.mu.Lock()
		delta := e.BytesTransferred - r.read[e.Provider]
		if delta > 0 {
			r.read[e.Provider] = e.BytesTransferred
		}
		r.mu.Unlock()
		if delta > 0 {
			r.bytes.WithLabelValues(e.Provider).Add(float64(delta))
		}
	case core.PinSuccess:
		r.pins.WithLabelValues(e.Provider, statusSuccess).Inc()
	case core.PinFail:
		r.pins.WithLabelValues(e.Provider, statusFailure).Inc()
	}
}

func (r *Recorder) finish(provider, status string) {
	r.uploads.WithLabelValues(provider, status).Inc()

	r.mu.Lock()
	start, ok := r.started[provider]
	delete(r.started, provider)
	r.mu.Unlock()
	if ok {
		r.duration.WithLabelValues(provider).Observe(r.now().Sub(start).Seconds())
	}
}

// Push sends the recorded metrics to the Pushgateway at url under job,
// replacing the group identified by job and grouping.
func (r *Recorder) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(r.registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
