// Package metrics exposes bbsyncer's Prometheus counters/gauges and a
// small HTTP endpoint set (/metrics, /ready): frames decoded off the
// wire, CRC/Huffman failures, flash read retries, erase outcomes, LED
// transitions, and web requests.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/bbsyncer/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters and gauges.
var (
	MSPFramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msp_frames_decoded_total",
		Help: "Total MSP frames successfully decoded off the serial link.",
	})
	MSPChecksumErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "msp_checksum_errors_total",
		Help: "Total MSP frames discarded by the decoder due to checksum mismatch.",
	})
	MSPRequestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msp_requests_sent_total",
		Help: "Total MSP requests sent, by command code.",
	}, []string{"code"})
	MSPTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "msp_response_timeouts_total",
		Help: "Total MSP requests that timed out waiting for a response, by command code.",
	}, []string{"code"})
	HuffmanDecodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "huffman_decode_errors_total",
		Help: "Total flash chunks that failed Huffman decompression.",
	})
	FlashBytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flash_bytes_read_total",
		Help: "Total decompressed flash bytes streamed to a session file.",
	})
	FlashReadRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flash_read_retries_total",
		Help: "Total flash-read window retries (transport error or address mismatch).",
	})
	SyncResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_results_total",
		Help: "Total orchestrator runs, by terminal result.",
	}, []string{"result"})
	EraseOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erase_outcomes_total",
		Help: "Total conditional-erase attempts, by outcome.",
	}, []string{"outcome"})
	LEDTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "led_transitions_total",
		Help: "Total LED state changes, by target state.",
	}, []string{"state"})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "web_requests_total",
		Help: "Total web surface requests, by route and status class.",
	}, []string{"route", "status"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrSerialRead   = "serial_read"
	ErrSerialWrite  = "serial_write"
	ErrDetection    = "detection"
	ErrFlashRead    = "flash_read"
	ErrVerify       = "verify"
	ErrManifest     = "manifest"
	ErrErase        = "erase"
	ErrStorageSpace = "storage_space"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
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

// Local mirrored counters so cmd/bbsyncer can log a periodic summary
// without scraping Prometheus in-process.
var (
	localFramesDecoded uint64
	localChecksumErr   uint64
	localFlashBytes    uint64
	localRetries       uint64
	localErrors        uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	FramesDecoded uint64
	ChecksumErr   uint64
	FlashBytes    uint64
	Retries       uint64
	Errors        uint64
}

// Snap returns the current local counter values.
func Snap() Snapshot {
	return Snapshot{
		FramesDecoded: atomic.LoadUint64(&localFramesDecoded),
		ChecksumErr:   atomic.LoadUint64(&localChecksumErr),
		FlashBytes:    atomic.LoadUint64(&localFlashBytes),
		Retries:       atomic.LoadUint64(&localRetries),
		Errors:        atomic.LoadUint64(&localErrors),
	}
}

// IncFramesDecoded records one successfully decoded MSP frame.
func IncFramesDecoded() {
	MSPFramesDecoded.Inc()
	atomic.AddUint64(&localFramesDecoded, 1)
}

// IncChecksumError records one frame dropped by the decoder.
func IncChecksumError() {
	MSPChecksumErrors.Inc()
	atomic.AddUint64(&localChecksumErr, 1)
}

// IncRequestSent records one MSP request, by command code.
func IncRequestSent(code int) {
	MSPRequestsSent.WithLabelValues(codeLabel(code)).Inc()
}

// IncTimeout records one MSP response timeout, by command code.
func IncTimeout(code int) {
	MSPTimeouts.WithLabelValues(codeLabel(code)).Inc()
}

// IncHuffmanError records one failed Huffman decompression.
func IncHuffmanError() {
	HuffmanDecodeErrors.Inc()
}

// AddFlashBytes records n decompressed flash bytes written to disk.
func AddFlashBytes(n int) {
	FlashBytesRead.Add(float64(n))
	atomic.AddUint64(&localFlashBytes, uint64(n))
}

// IncFlashRetry records one flash-read window retry.
func IncFlashRetry() {
	FlashReadRetries.Inc()
	atomic.AddUint64(&localRetries, 1)
}

// IncSyncResult records one terminal orchestrator result.
func IncSyncResult(result string) {
	SyncResults.WithLabelValues(result).Inc()
}

// IncEraseOutcome records one conditional-erase outcome ("completed",
// "timeout", or "skipped").
func IncEraseOutcome(outcome string) {
	EraseOutcomes.WithLabelValues(outcome).Inc()
}

// IncLEDTransition records one LED state change.
func IncLEDTransition(state string) {
	LEDTransitions.WithLabelValues(state).Inc()
}

// IncHTTPRequest records one web surface request, by route and status
// class (e.g. "2xx", "4xx", "5xx").
func IncHTTPRequest(route, statusClass string) {
	HTTPRequests.WithLabelValues(route, statusClass).Inc()
}

// IncError records one error, by subsystem label.
func IncError(where string) {
	Errors.WithLabelValues(where).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers the stable
// error label series so the first error of each kind doesn't pay
// registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrSerialRead, ErrSerialWrite, ErrDetection,
		ErrFlashRead, ErrVerify, ErrManifest, ErrErase, ErrStorageSpace,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function, if any.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// codeLabel renders an MSP command code as a bounded-cardinality metric
// label without importing the msp package (msp imports metrics, so that
// would be an import cycle).
func codeLabel(code int) string {
	switch code {
	case 1:
		return "api_version"
	case 2:
		return "fc_variant"
	case 70:
		return "dataflash_summary"
	case 71:
		return "dataflash_erase"
	case 72:
		return "dataflash_read"
	case 80:
		return "blackbox_config"
	case 160:
		return "uid"
	default:
		return "other"
	}
}
