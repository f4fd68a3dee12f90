package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubev2v/prio-scheduler/pkg/scheduler"
)

const namespace = "prioschedd"

const (
	MetricTasksEnqueued    = "tasks_enqueued_total"
	MetricTasksDispatched  = "tasks_dispatched_total"
	MetricPreemptSignals   = "preempt_signals_total"
	MetricTasksFinished    = "tasks_finished_total"
	MetricTasksDropped     = "tasks_dropped_total"
	MetricTaskRunSeconds   = "task_run_seconds"
	MetricQueueDepth       = "queue_depth"
	MetricDelayedAdmission = "tasks_delayed_total"
)

// Observer exports scheduler events as Prometheus metrics. It only updates
// in-memory collectors and never blocks.
type Observer struct {
	registry   *prometheus.Registry
	enqueued   *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	preempts   *prometheus.CounterVec
	finished   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	delayed    *prometheus.CounterVec
	runTime    *prometheus.HistogramVec
	depth      prometheus.Gauge
}

// NewObserver creates the collectors and registers them on a private registry.
func NewObserver() *Observer {
	byPriority := []string{"priority"}
	o := &Observer{
		registry: prometheus.NewRegistry(),
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTasksEnqueued,
			Help:      "Tasks appended to a priority level, requeues included.",
		}, byPriority),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTasksDispatched,
			Help:      "Task attempts handed to the worker.",
		}, byPriority),
		preempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricPreemptSignals,
			Help:      "Cancellation signals sent to a running task, by its priority.",
		}, byPriority),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTasksFinished,
			Help:      "Task attempts reconciled, by priority and outcome.",
		}, []string{"priority", "outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTasksDropped,
			Help:      "Tasks discarded before running, by cancellation or shutdown.",
		}, byPriority),
		delayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricDelayedAdmission,
			Help:      "Tasks submitted with an admission delay.",
		}, byPriority),
		runTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricTaskRunSeconds,
			Help:      "Duration of one task attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"priority", "outcome"}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricQueueDepth,
			Help:      "Tasks waiting in the queue table.",
		}),
	}

	o.registry.MustRegister(
		o.enqueued, o.dispatched, o.preempts, o.finished,
		o.dropped, o.delayed, o.runTime, o.depth,
	)
	return o
}

func (o *Observer) Observe(e scheduler.Event) {
	p := e.Priority.String()
	switch e.Kind {
	case scheduler.EventDelayed:
		o.delayed.WithLabelValues(p).Inc()
	case scheduler.EventEnqueued:
		o.enqueued.WithLabelValues(p).Inc()
	case scheduler.EventDispatched:
		o.dispatched.WithLabelValues(p).Inc()
	case scheduler.EventPreemptSignal:
		o.preempts.WithLabelValues(p).Inc()
	case scheduler.EventFinished:
		outcome := e.Outcome.String()
		o.finished.WithLabelValues(p, outcome).Inc()
		o.runTime.WithLabelValues(p, outcome).Observe(e.Duration.Seconds())
	case scheduler.EventDropped:
		o.dropped.WithLabelValues(p).Inc()
	}
	o.depth.Set(float64(e.Pending))
}

func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{Registry: o.registry})
}
