package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"igleads/pkg/logger"
	"igleads/pkg/models"
)

// Recorder receives traversal events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	HandleVisited(depth int)
	FetchObserved(d time.Duration, err error)
	ExpandObserved(d time.Duration, err error)
	LeadEmitted(category models.Category)
	SinkFailed()
	Irrelevant()
	DepthStarted(depth, frontier int)
}

// Nop discards every event
type Nop struct{}

func (Nop) HandleVisited(int)                   {}
func (Nop) FetchObserved(time.Duration, error)  {}
func (Nop) ExpandObserved(time.Duration, error) {}
func (Nop) LeadEmitted(models.Category)         {}
func (Nop) SinkFailed()                         {}
func (Nop) Irrelevant()                         {}
func (Nop) DepthStarted(int, int)               {}

// Prometheus exports traversal progress as Prometheus collectors
type Prometheus struct {
	visited       *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	expands       *prometheus.CounterVec
	leads         *prometheus.CounterVec
	sinkFailures  prometheus.Counter
	irrelevant    prometheus.Counter
	depth         prometheus.Gauge
	frontier      prometheus.Gauge
}

// NewPrometheus registers the collectors against reg. A nil registerer
// means the default one.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		visited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "igleads_handles_visited_total",
			Help: "Handles taken from the frontier, by depth.",
		}, []string{"depth"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "igleads_fetches_total",
			Help: "Profile fetches partitioned by result.",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "igleads_fetch_duration_seconds",
			Help:    "Profile fetch latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		expands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "igleads_expansions_total",
			Help: "Neighbor expansions partitioned by result.",
		}, []string{"result"}),
		leads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "igleads_leads_emitted_total",
			Help: "Leads emitted, by category.",
		}, []string{"category"}),
		sinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igleads_sink_failures_total",
			Help: "Leads the result sink failed to accept.",
		}),
		irrelevant: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "igleads_irrelevant_total",
			Help: "Fetched profiles rejected by the relevance filter.",
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "igleads_current_depth",
			Help: "Depth currently being processed.",
		}),
		frontier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "igleads_frontier_size",
			Help: "Handles queued at the current depth when it started.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		p.visited, p.fetches, p.fetchDuration, p.expands, p.leads,
		p.sinkFailures, p.irrelevant, p.depth, p.frontier,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return p, nil
}

func (p *Prometheus) HandleVisited(depth int) {
	p.visited.WithLabelValues(fmt.Sprint(depth)).Inc()
}

func (p *Prometheus) FetchObserved(d time.Duration, err error) {
	p.fetches.WithLabelValues(result(err)).Inc()
	if d > 0 {
		p.fetchDuration.Observe(d.Seconds())
	}
}

func (p *Prometheus) ExpandObserved(_ time.Duration, err error) {
	p.expands.WithLabelValues(result(err)).Inc()
}

func (p *Prometheus) LeadEmitted(category models.Category) {
	p.leads.WithLabelValues(string(category)).Inc()
}

func (p *Prometheus) SinkFailed() {
	p.sinkFailures.Inc()
}

func (p *Prometheus) Irrelevant() {
	p.irrelevant.Inc()
}

func (p *Prometheus) DepthStarted(depth, frontier int) {
	p.depth.Set(float64(depth))
	p.frontier.Set(float64(frontier))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Serve exposes /metrics for g on addr until ctx is done
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log logger.Logger) error {
	log = logger.OrDefault(log).WithField("component", "metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoWithFields("Metrics server listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
