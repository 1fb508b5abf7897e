package appstats

import (
	"net/http"

	"github.com/bigbluebutton/bbb-screen-recorder/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "in_requests",
		Help:      "Number of requests received by the recorder",
	},
		[]string{
			"method",
		})

	InvalidRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "invalid_requests",
		Help:      "Number of invalid requests",
	})

	Responses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "out_responses",
		Help:      "Number of responses from the recorder",
	},
		[]string{
			"method",
		})

	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "recorder",
		Name:      "sessions",
		Help:      "Current number of recorder sessions",
	})

	ActiveRecordings = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "recorder",
		Name:      "active_recordings",
		Help:      "Number of recordings in progress by storage mode",
	},
		[]string{
			"storage", // on-disk/in-memory
		})

	RecordingsStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "recordings_started_total",
		Help:      "Total number of recordings started",
	},
		[]string{
			"container", // e.g. video/webm
			"storage",
		})

	RecordingsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "recordings_finished_total",
		Help:      "Total number of recordings finalized into an artifact",
	},
		[]string{
			"storage",
		})

	RecordingsAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "recordings_aborted_total",
		Help:      "Total number of recordings discarded before finalization",
	},
		[]string{
			"reason", // reset/error
		})

	RecordingSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "recorder",
		Name:      "recording_size_bytes",
		Help:      "Size of finalized recordings",
		Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 8), // 1MB to 16GB
	},
		[]string{
			"storage",
		})

	RecordingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "recorder",
		Name:      "recording_duration_seconds",
		Help:      "Wall clock duration of finalized recordings",
		Buckets:   []float64{10, 30, 60, 300, 900, 1800, 3600, 7200, 14400},
	})

	Chunks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "chunks_total",
		Help:      "Total number of recorded chunks stored",
	},
		[]string{
			"storage",
		})

	ChunkBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "chunk_bytes_total",
		Help:      "Total number of recorded bytes stored",
	},
		[]string{
			"storage",
		})

	StorageFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "storage_fallbacks_total",
		Help:      "Number of recordings kept in memory because scratch storage failed",
	})

	SessionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "session_errors_total",
		Help:      "Total number of session failures by kind",
	},
		[]string{
			"kind",
		})
)

func Init() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(InvalidRequests)
	prometheus.MustRegister(Responses)
	prometheus.MustRegister(Sessions)
	prometheus.MustRegister(ActiveRecordings)
	prometheus.MustRegister(RecordingsStarted)
	prometheus.MustRegister(RecordingsFinished)
	prometheus.MustRegister(RecordingsAborted)
	prometheus.MustRegister(RecordingSize)
	prometheus.MustRegister(RecordingDuration)
	prometheus.MustRegister(Chunks)
	prometheus.MustRegister(ChunkBytes)
	prometheus.MustRegister(StorageFallbacks)
	prometheus.MustRegister(SessionErrors)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// ServePromMetrics exposes the metrics on their own listener. The returned
// server is nil when metrics are disabled.
func ServePromMetrics(cfg config.Prometheus) *http.Server {
	if !cfg.Enable {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: cfg.ListenAddress, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("failed to start metrics server: %s", err)
		}
	}()

	log.Infof("Prometheus metrics exported on %s", cfg.ListenAddress)
	return srv
}
