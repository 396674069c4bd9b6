package metrics

import (
	"net/http"

	"pollcast/contexts/live-polling/tally-engine/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes Prometheus metrics for the tally engine. A nil *Recorder
// records nothing.
type Recorder struct {
	sessionsOpened prometheus.Counter
	sessionsActive prometheus.Gauge
	votes          *prometheus.CounterVec
	broadcasts     prometheus.Counter
	deliveries     prometheus.Counter
	deliveryFails  prometheus.Counter
	evictions      prometheus.Counter
	resets         prometheus.Counter
}

// NewRecorder registers metrics with provided registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollcast_sessions_opened_total",
			Help: "Total number of websocket sessions registered",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pollcast_sessions_active",
			Help: "Number of currently registered sessions",
		}),
		votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pollcast_votes_total",
			Help: "Vote messages processed grouped by result",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollcast_broadcasts_total",
			Help: "Total number of tally broadcasts",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollcast_broadcast_deliveries_total",
			Help: "Snapshots successfully handed to sessions",
		}),
		deliveryFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollcast_delivery_failures_total",
			Help: "Snapshot deliveries that failed on the session transport",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollcast_liveness_evictions_total",
			Help: "Sessions evicted by the liveness sweep",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pollcast_tally_resets_total",
			Help: "Number of times the tally was cleared",
		}),
	}

	reg.MustRegister(
		r.sessionsOpened,
		r.sessionsActive,
		r.votes,
		r.broadcasts,
		r.deliveries,
		r.deliveryFails,
		r.evictions,
		r.resets,
	)
	return r
}

// Handler returns HTTP handler serving /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func (r *Recorder) SessionOpened() {
	if r == nil {
		return
	}
	r.sessionsOpened.Inc()
	r.sessionsActive.Inc()
}

func (r *Recorder) SessionClosed() {
	if r == nil {
		return
	}
	r.sessionsActive.Dec()
}

// VoteProcessed counts one vote message by its result label.
func (r *Recorder) VoteProcessed(result string) {
	if r == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	r.votes.WithLabelValues(result).Inc()
}

func (r *Recorder) BroadcastDelivered(sessions int) {
	if r == nil {
		return
	}
	r.broadcasts.Inc()
	r.deliveries.Add(float64(sessions))
}

func (r *Recorder) DeliveryFailed() {
	if r == nil {
		return
	}
	r.deliveryFails.Inc()
}

func (r *Recorder) LivenessEvicted() {
	if r == nil {
		return
	}
	r.evictions.Inc()
}

func (r *Recorder) TallyReset() {
	if r == nil {
		return
	}
	r.resets.Inc()
}

// SnapshotSource yields the current tally.
type SnapshotSource interface {
	Snapshot() entities.Snapshot
}

// TallyCollector reports the live tally at scrape time.
type TallyCollector struct {
	source SnapshotSource
	votes  *prometheus.Desc
	total  *prometheus.Desc
	active *prometheus.Desc
}

func NewTallyCollector(source SnapshotSource) *TallyCollector {
	return &TallyCollector{
		source: source,
		votes:  prometheus.NewDesc("pollcast_tally_votes", "Current votes per option", []string{"option"}, nil),
		total:  prometheus.NewDesc("pollcast_tally_total_votes", "Current total votes", nil, nil),
		active: prometheus.NewDesc("pollcast_poll_active", "Poll activation gate (1=open)", nil, nil),
	}
}

func (c *TallyCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.votes
	ch <- c.total
	ch <- c.active
}

func (c *TallyCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.source.Snapshot()
	for _, option := range entities.Options() {
		ch <- prometheus.MustNewConstMetric(c.votes, prometheus.GaugeValue, float64(snapshot.Count(option)), string(option))
	}
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(snapshot.TotalVotes))
	active := 0.0
	if snapshot.Active {
		active = 1
	}
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, active)
}
