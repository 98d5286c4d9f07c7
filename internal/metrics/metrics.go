package metrics

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry. It satisfies the metrics interfaces of
// sim, fanout and publisher.
type Collector struct {
	reg *prometheus.Registry

	ActiveJourneys    prometheus.Gauge
	JourneysStarted   prometheus.Counter
	JourneysCompleted prometheus.Counter
	JourneysStopped   prometheus.Counter

	ActiveSubscribers  prometheus.Gauge
	SubscriberRemovals *prometheus.CounterVec // reason label
	Dropped            prometheus.Counter

	Published          prometheus.Counter
	PublishErrs        prometheus.Counter
	PublisherConnected prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	SpeedMultiplier prometheus.Gauge
	TickInterval    prometheus.Gauge // seconds
}

func NewCollector(speedMultiplier float64, tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveJourneys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_active_journeys",
			Help: "Number of journeys held in the registry.",
		}),
		JourneysStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_journeys_started_total",
			Help: "Total journeys started.",
		}),
		JourneysCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_journeys_completed_total",
			Help: "Total journeys that reached their last waypoint.",
		}),
		JourneysStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_journeys_stopped_total",
			Help: "Total journeys stopped before completion.",
		}),
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_active_subscribers",
			Help: "Number of live stream subscribers.",
		}),
		SubscriberRemovals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_subscriber_removals_total",
			Help: "Subscribers removed, by reason.",
		}, []string{"reason"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_publish_dropped_total",
			Help: "Events dropped because the publish queue was full.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_published_total",
			Help: "Total events published to the broker.",
		}),
		PublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_publish_errors_total",
			Help: "Total broker publish errors.",
		}),
		PublisherConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_publisher_connected",
			Help: "1 if the broker connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_tick_duration_seconds",
			Help:    "Duration of journey tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_publish_duration_seconds",
			Help:    "Duration to publish one event to the broker.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_speed_multiplier",
			Help: "Current speed multiplier.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_tick_interval_seconds",
			Help: "Tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.ActiveJourneys, c.JourneysStarted, c.JourneysCompleted, c.JourneysStopped,
		c.ActiveSubscribers, c.SubscriberRemovals, c.Dropped,
		c.Published, c.PublishErrs, c.PublisherConnected,
		c.TickDuration, c.PublishDuration,
		c.SpeedMultiplier, c.TickInterval,
	)

	c.SpeedMultiplier.Set(speedMultiplier)
	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

// sim.Metrics

func (c *Collector) JourneyStarted()             { c.JourneysStarted.Inc() }
func (c *Collector) JourneyCompleted()           { c.JourneysCompleted.Inc() }
func (c *Collector) JourneyStopped()             { c.JourneysStopped.Inc() }
func (c *Collector) SetActiveJourneys(n int)     { c.ActiveJourneys.Set(float64(n)) }
func (c *Collector) ObserveTick(d time.Duration) { c.TickDuration.Observe(d.Seconds()) }

// fanout.Metrics

func (c *Collector) SetSubscribers(n int) { c.ActiveSubscribers.Set(float64(n)) }
func (c *Collector) SubscriberRemoved(reason string) {
	c.SubscriberRemovals.WithLabelValues(reason).Inc()
}
func (c *Collector) PublishDropped() { c.Dropped.Inc() }

// publisher.PublisherMetrics

func (c *Collector) PublishedInc()                  { c.Published.Inc() }
func (c *Collector) PublishErrInc()                 { c.PublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) SetConnected(b bool) {
	if b {
		c.PublisherConnected.Set(1)
	} else {
		c.PublisherConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}
