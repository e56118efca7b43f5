// Package metrics exposes Prometheus counters/gauges for the acquisition
// pipeline plus a local atomic mirror for cheap in-process logging, and
// serves them over HTTP alongside a readiness probe.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/omnisurfer/dataq-logger/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges.
var (
	SamplesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "samples_received_total",
		Help: "Total ADC samples decoded from the wire, excluding synthesized fill.",
	})
	SamplesFilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "samples_filled_total",
		Help: "Total filler samples synthesized to repair detected gaps.",
	})
	PacketsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adc_packets_received_total",
		Help: "Total ADC-data packets processed by the demultiplexer.",
	})
	PacketsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adc_packets_dropped_total",
		Help: "Total ADC-data packets dropped due to state regression.",
	})
	CommandsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commands_sent_total",
		Help: "Total command frames sent to the logger.",
	})
	CommandTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "command_timeouts_total",
		Help: "Total command/response round trips that exceeded the deadline.",
	})
	KeepalivesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keepalives_sent_total",
		Help: "Total keepalive commands sent while streaming.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total inbound datagrams rejected as undersized or unparseable.",
	})
	UnknownFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unknown_frames_total",
		Help: "Total inbound datagrams with an unrecognized frame id.",
	})
	QueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "channel_queue_depth_max",
		Help: "Observed max per-channel output queue depth since last sample window.",
	})
	QueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "channel_queue_depth_avg",
		Help: "Approximate average per-channel output queue depth in last sample window.",
	})
	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "connection_state",
		Help: "Current session lifecycle state, as a small integer (see session.State).",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	BroadcastSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_subscribers",
		Help: "Number of sink subscribers currently registered with the broadcast fanout.",
	})
	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_drops_total",
		Help: "Total sample batches dropped because a subscriber's queue was full (drop policy).",
	})
	BroadcastKicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_kicks_total",
		Help: "Total subscribers disconnected for falling behind (kick policy).",
	})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrCommandTimeout  = "command_timeout"
	ErrCommandSend     = "command_send"
	ErrMalformedFrame  = "malformed_frame"
	ErrStateRegression = "state_regression"
	ErrBind            = "bind"
	ErrConfiguration   = "configuration"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap in-process logging without scraping
// Prometheus.
var (
	localSamplesReceived uint64
	localSamplesFilled   uint64
	localPacketsReceived uint64
	localPacketsDropped  uint64
	localCommandsSent    uint64
	localCommandTimeouts uint64
	localKeepalivesSent  uint64
	localMalformed       uint64
	localUnknown         uint64
	localErrors          uint64
	localQDMax           uint64
	localQDAvg           uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	SamplesReceived uint64
	SamplesFilled   uint64
	PacketsReceived uint64
	PacketsDropped  uint64
	CommandsSent    uint64
	CommandTimeouts uint64
	KeepalivesSent  uint64
	Malformed       uint64
	Unknown         uint64
	Errors          uint64
	QueueDepthMax   uint64
	QueueDepthAvg   uint64
}

func Snap() Snapshot {
	return Snapshot{
		SamplesReceived: atomic.LoadUint64(&localSamplesReceived),
		SamplesFilled:   atomic.LoadUint64(&localSamplesFilled),
		PacketsReceived: atomic.LoadUint64(&localPacketsReceived),
		PacketsDropped:  atomic.LoadUint64(&localPacketsDropped),
		CommandsSent:    atomic.LoadUint64(&localCommandsSent),
		CommandTimeouts: atomic.LoadUint64(&localCommandTimeouts),
		KeepalivesSent:  atomic.LoadUint64(&localKeepalivesSent),
		Malformed:       atomic.LoadUint64(&localMalformed),
		Unknown:         atomic.LoadUint64(&localUnknown),
		Errors:          atomic.LoadUint64(&localErrors),
		QueueDepthMax:   atomic.LoadUint64(&localQDMax),
		QueueDepthAvg:   atomic.LoadUint64(&localQDAvg),
	}
}

func AddSamplesReceived(n int) {
	SamplesReceived.Add(float64(n))
	atomic.AddUint64(&localSamplesReceived, uint64(n))
}

func AddSamplesFilled(n int) {
	SamplesFilled.Add(float64(n))
	atomic.AddUint64(&localSamplesFilled, uint64(n))
}

func IncPacketsReceived() {
	PacketsReceived.Inc()
	atomic.AddUint64(&localPacketsReceived, 1)
}

func IncPacketsDropped() {
	PacketsDropped.Inc()
	atomic.AddUint64(&localPacketsDropped, 1)
}

func IncCommandsSent() {
	CommandsSent.Inc()
	atomic.AddUint64(&localCommandsSent, 1)
}

func IncCommandTimeouts() {
	CommandTimeouts.Inc()
	atomic.AddUint64(&localCommandTimeouts, 1)
}

func IncKeepalivesSent() {
	KeepalivesSent.Inc()
	atomic.AddUint64(&localKeepalivesSent, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncUnknown() {
	UnknownFrames.Inc()
	atomic.AddUint64(&localUnknown, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// SetQueueDepth records a snapshot of max and avg per-channel queue depth.
func SetQueueDepth(max, avg int) {
	QueueDepthMax.Set(float64(max))
	QueueDepthAvg.Set(float64(avg))
	atomic.StoreUint64(&localQDMax, uint64(max))
	atomic.StoreUint64(&localQDAvg, uint64(avg))
}

// SetConnectionState records the session's current lifecycle state.
func SetConnectionState(n int) { ConnectionState.Set(float64(n)) }

// SetBroadcastSubscribers records the current fanout subscriber count.
func SetBroadcastSubscribers(n int) { BroadcastSubscribers.Set(float64(n)) }

// IncBroadcastDrop counts one dropped batch under the drop backpressure policy.
func IncBroadcastDrop() { BroadcastDrops.Inc() }

// IncBroadcastKick counts one subscriber disconnected under the kick policy.
func IncBroadcastKick() { BroadcastKicks.Inc() }

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrCommandTimeout, ErrCommandSend, ErrMalformedFrame,
		ErrStateRegression, ErrBind, ErrConfiguration,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
