// Package appstats keeps the recorder's Prometheus metrics.
package appstats

import "time"

const (
	storageOnDisk   = "on-disk"
	storageInMemory = "in-memory"
)

func OnServerRequest(method string, valid bool) {
	if valid {
		Requests.WithLabelValues(method).Inc()
	} else {
		InvalidRequests.Inc()
	}
}

func OnServerResponse(method string) {
	if method == "" {
		method = "unknown"
	}
	Responses.WithLabelValues(method).Inc()
}

func OnRecordingStarted(container, storage string) {
	RecordingsStarted.WithLabelValues(container, storage).Inc()
	ActiveRecordings.WithLabelValues(storage).Inc()
}

func OnRecordingFinished(storage string, size int64, duration time.Duration) {
	ActiveRecordings.WithLabelValues(storage).Dec()
	RecordingsFinished.WithLabelValues(storage).Inc()
	RecordingSize.WithLabelValues(storage).Observe(float64(size))
	RecordingDuration.Observe(duration.Seconds())
}

func OnRecordingAborted(storage, reason string) {
	ActiveRecordings.WithLabelValues(storage).Dec()
	RecordingsAborted.WithLabelValues(reason).Inc()
}

func OnChunk(onDisk bool, n int) {
	storage := storageInMemory
	if onDisk {
		storage = storageOnDisk
	}
	Chunks.WithLabelValues(storage).Inc()
	ChunkBytes.WithLabelValues(storage).Add(float64(n))
}

func OnStorageFallback() {
	StorageFallbacks.Inc()
}

func OnSessionError(kind string) {
	SessionErrors.WithLabelValues(kind).Inc()
}
