// Package metrics provides per-run metrics collection for a delivery workflow.
//
// The Collector accumulates counters during a single run. It is a leaf package
// with no internal dependencies: stages are recorded by name so callers can
// pass types.Stage values converted to string.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stage lifecycle, keyed by stage name
	StagesStarted   map[string]int64 `json:"stages_started"`
	StagesCompleted map[string]int64 `json:"stages_completed"`
	StagesFailed    map[string]int64 `json:"stages_failed"`

	// Transfer
	PartsUploaded int64 `json:"parts_uploaded"`
	BytesUploaded int64 `json:"bytes_uploaded"`
	Aborts        int64 `json:"aborts"`
	AbortFailures int64 `json:"abort_failures"`

	// Transport
	Retries int64 `json:"retries"`

	// Dimensions (informational, set at construction)
	StoreBackend string `json:"store_backend"`
	Server       string `json:"server"`
	RunID        string `json:"run_id"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	stagesStarted   map[string]int64
	stagesCompleted map[string]int64
	stagesFailed    map[string]int64

	partsUploaded int64
	bytesUploaded int64
	aborts        int64
	abortFailures int64

	retries int64

	storeBackend string
	server       string
	runID        string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(storeBackend, server, runID string) *Collector {
	return &Collector{
		stagesStarted:   make(map[string]int64),
		stagesCompleted: make(map[string]int64),
		stagesFailed:    make(map[string]int64),
		storeBackend:    storeBackend,
		server:          server,
		runID:           runID,
	}
}

// --- Stage lifecycle ---

// IncStageStarted records a stage start.
func (c *Collector) IncStageStarted(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagesStarted[stage]++
	c.mu.Unlock()
}

// IncStageCompleted records a successful stage completion.
func (c *Collector) IncStageCompleted(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagesCompleted[stage]++
	c.mu.Unlock()
}

// IncStageFailed records a stage failure.
func (c *Collector) IncStageFailed(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stagesFailed[stage]++
	c.mu.Unlock()
}

// --- Transfer ---

// AddPartUploaded records one acknowledged part of size bytes.
func (c *Collector) AddPartUploaded(size int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsUploaded++
	c.bytesUploaded += size
	c.mu.Unlock()
}

// IncAbort records an abort attempt.
func (c *Collector) IncAbort() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.aborts++
	c.mu.Unlock()
}

// IncAbortFailure records an abort the store did not acknowledge.
// The transfer may have left orphaned parts behind.
func (c *Collector) IncAbortFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.abortFailures++
	c.mu.Unlock()
}

// --- Transport ---

// IncRetry records a retried idempotent call.
func (c *Collector) IncRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		StagesStarted:   copyCounts(c.stagesStarted),
		StagesCompleted: copyCounts(c.stagesCompleted),
		StagesFailed:    copyCounts(c.stagesFailed),

		PartsUploaded: c.partsUploaded,
		BytesUploaded: c.bytesUploaded,
		Aborts:        c.aborts,
		AbortFailures: c.abortFailures,

		Retries: c.retries,

		StoreBackend: c.storeBackend,
		Server:       c.server,
		RunID:        c.runID,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
