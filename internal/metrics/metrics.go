// Package metrics is a thin, nil-safe facade over Prometheus counters for
// the Directory and Node. A nil *Directory or *Node is always safe to call
// methods on: every observer becomes a no-op when metrics are disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Directory collects the Directory's counters: volume and handling
// latency of Client requests, cache hit/miss, and Node purges.
type Directory struct {
	registry *prometheus.Registry

	dispatches     *prometheus.CounterVec
	dispatchTiming *prometheus.HistogramVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	purges         prometheus.Counter
}

// NewDirectory builds a registered Directory metrics facade, or returns nil
// when enabled is false so callers can pass it through unconditionally.
func NewDirectory(enabled bool) *Directory {
	if !enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	return &Directory{
		registry: reg,
		dispatches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_directory_dispatches_total",
			Help: "Client requests handled by the Directory, by message type and outcome.",
		}, []string{"msg_type", "outcome"}),
		dispatchTiming: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbor_directory_dispatch_seconds",
			Help:    "Time the Directory spends handling one Client request.",
			Buckets: prometheus.DefBuckets,
		}, []string{"msg_type"}),
		cacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arbor_directory_cache_hits_total",
			Help: "Location cache hits.",
		}),
		cacheMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arbor_directory_cache_misses_total",
			Help: "Location cache misses.",
		}),
		purges: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arbor_directory_node_purges_total",
			Help: "Node registry slots purged due to failure or dead report.",
		}),
	}
}

func (d *Directory) ObserveDispatch(msgType string, ok bool, duration time.Duration) {
	if d == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	d.dispatches.WithLabelValues(msgType, outcome).Inc()
	d.dispatchTiming.WithLabelValues(msgType).Observe(duration.Seconds())
}

func (d *Directory) ObserveCacheHit() {
	if d == nil {
		return
	}
	d.cacheHits.Inc()
}

func (d *Directory) ObserveCacheMiss() {
	if d == nil {
		return
	}
	d.cacheMisses.Inc()
}

func (d *Directory) ObservePurge() {
	if d == nil {
		return
	}
	d.purges.Inc()
}

// Handler returns the Prometheus scrape handler, or nil if disabled.
func (d *Directory) Handler() http.Handler {
	if d == nil {
		return nil
	}
	return promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})
}

// Node collects the Node's counters: commits, undos, and lock conflicts.
type Node struct {
	registry *prometheus.Registry

	commits        prometheus.Counter
	undos          *prometheus.CounterVec
	lockConflicts  prometheus.Counter
	streamsServed  prometheus.Counter
}

// NewNode builds a registered Node metrics facade, or returns nil when
// enabled is false.
func NewNode(enabled bool) *Node {
	if !enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	return &Node{
		registry: reg,
		commits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arbor_node_commits_total",
			Help: "Successful ETIRW commits.",
		}),
		undos: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "arbor_node_undos_total",
			Help: "UNDO attempts, by outcome.",
		}, []string{"outcome"}),
		lockConflicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arbor_node_lock_conflicts_total",
			Help: "WRITE attempts rejected with ERR_409 due to an existing sentence lock.",
		}),
		streamsServed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "arbor_node_streams_total",
			Help: "STREAM sessions served to completion.",
		}),
	}
}

func (n *Node) ObserveCommit() {
	if n == nil {
		return
	}
	n.commits.Inc()
}

func (n *Node) ObserveUndo(ok bool) {
	if n == nil {
		return
	}
	outcome := "restored"
	if !ok {
		outcome = "no_history"
	}
	n.undos.WithLabelValues(outcome).Inc()
}

func (n *Node) ObserveLockConflict() {
	if n == nil {
		return
	}
	n.lockConflicts.Inc()
}

func (n *Node) ObserveStreamComplete() {
	if n == nil {
		return
	}
	n.streamsServed.Inc()
}

func (n *Node) Handler() http.Handler {
	if n == nil {
		return nil
	}
	return promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing h at addr under /metrics. It blocks
// until the listener fails and is meant to be run in its own goroutine.
func Serve(addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	return http.ListenAndServe(addr, mux)
}
