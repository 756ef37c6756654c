// Package monitor records cache performance events (operation timings,
// compression outcomes, memory snapshots, invalidations) in bounded ring
// buffers and derives aggregate statistics and threshold alerts on read.
package monitor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config bounds retention and sets alert thresholds.
type Config struct {
	MaxMeasurements int           // Per-category record cap (default: 1000)
	RetentionWindow time.Duration // Per-category time window (default: 1 hour)

	MemoryWarnBytes     int64 // default: 50 MiB
	MemoryCriticalBytes int64 // default: 100 MiB

	InvalidationWarnPerHour     float64 // default: 50
	InvalidationCriticalPerHour float64 // default: 100

	SlowOpMultiplier float64       // Multiple of category mean (default: 2.0)
	KeyGenFloor      time.Duration // Absolute slow floor for key generation (default: 100ms)
	CacheOpFloor     time.Duration // Absolute slow floor for cache operations (default: 50ms)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxMeasurements:             1000,
		RetentionWindow:             time.Hour,
		MemoryWarnBytes:             50 << 20,
		MemoryCriticalBytes:         100 << 20,
		InvalidationWarnPerHour:     50,
		InvalidationCriticalPerHour: 100,
		SlowOpMultiplier:            2.0,
		KeyGenFloor:                 100 * time.Millisecond,
		CacheOpFloor:                50 * time.Millisecond,
	}
}

// Outcome classifies an operation for hit-ratio accounting. Writes and
// key-generation timings record OutcomeNone so they never skew the ratio.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeHit
	OutcomeMiss
)

// OpKeyGen is the reserved operation label for key generation timings; it
// gets its own slow-operation floor.
const OpKeyGen = "key_generation"

// OperationRecord is a single timed cache operation.
type OperationRecord struct {
	Op         string        `json:"op"`
	Duration   time.Duration `json:"duration"`
	Hit        bool          `json:"hit"`
	TextLength int           `json:"text_length"`
	At         time.Time     `json:"at"`
}

// CompressionRecord is the outcome of one payload compression.
type CompressionRecord struct {
	OriginalBytes   int           `json:"original_bytes"`
	CompressedBytes int           `json:"compressed_bytes"`
	Duration        time.Duration `json:"duration"`
	Ratio           float64       `json:"ratio"`
	At              time.Time     `json:"at"`
}

// MemoryRecord is a point-in-time memory snapshot.
type MemoryRecord struct {
	L1Bytes     int64     `json:"l1_bytes"`
	EntryCount  int       `json:"entry_count"`
	RemoteBytes int64     `json:"remote_bytes,omitempty"`
	At          time.Time `json:"at"`
}

// InvalidationRecord is one pattern invalidation event.
type InvalidationRecord struct {
	Pattern     string        `json:"pattern"`
	KeysRemoved int           `json:"keys_removed"`
	Duration    time.Duration `json:"duration"`
	Reason      string        `json:"reason"`
	At          time.Time     `json:"at"`
}

// Monitor is a thread-safe recorder. Writes are non-blocking best-effort:
// when a ring is full the oldest record is dropped and a counter bumped so
// overflow stays observable.
type Monitor struct {
	mu            sync.Mutex
	cfg           Config
	operations    []OperationRecord
	compressions  []CompressionRecord
	memories      []MemoryRecord
	invalidations []InvalidationRecord

	hits   atomic.Int64
	misses atomic.Int64
	drops  atomic.Int64

	remoteReachable bool
	remoteNote      string

	exporter *PromExporter
}

// New creates a monitor with the given configuration.
func New(cfg Config) *Monitor {
	def := DefaultConfig()
	if cfg.MaxMeasurements <= 0 {
		cfg.MaxMeasurements = def.MaxMeasurements
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = def.RetentionWindow
	}
	if cfg.MemoryWarnBytes <= 0 {
		cfg.MemoryWarnBytes = def.MemoryWarnBytes
	}
	if cfg.MemoryCriticalBytes <= 0 {
		cfg.MemoryCriticalBytes = def.MemoryCriticalBytes
	}
	if cfg.InvalidationWarnPerHour <= 0 {
		cfg.InvalidationWarnPerHour = def.InvalidationWarnPerHour
	}
	if cfg.InvalidationCriticalPerHour <= 0 {
		cfg.InvalidationCriticalPerHour = def.InvalidationCriticalPerHour
	}
	if cfg.SlowOpMultiplier <= 0 {
		cfg.SlowOpMultiplier = def.SlowOpMultiplier
	}
	if cfg.KeyGenFloor <= 0 {
		cfg.KeyGenFloor = def.KeyGenFloor
	}
	if cfg.CacheOpFloor <= 0 {
		cfg.CacheOpFloor = def.CacheOpFloor
	}
	return &Monitor{cfg: cfg}
}

// WithPrometheus attaches a Prometheus exporter; subsequent records are
// mirrored into its metric vectors.
func (m *Monitor) WithPrometheus(e *PromExporter) *Monitor {
	m.exporter = e
	return m
}

// RecordOperation records a timed cache operation.
func (m *Monitor) RecordOperation(op string, duration time.Duration, outcome Outcome, textLength int) {
	switch outcome {
	case OutcomeHit:
		m.hits.Add(1)
	case OutcomeMiss:
		m.misses.Add(1)
	}
	if m.exporter != nil {
		m.exporter.observeOperation(op, duration, outcome)
	}

	rec := OperationRecord{Op: op, Duration: duration, Hit: outcome == OutcomeHit, TextLength: textLength, At: time.Now()}
	m.mu.Lock()
	m.operations = appendBounded(m.operations, rec, m.cfg.MaxMeasurements, &m.drops)
	m.mu.Unlock()
}

// RecordCompression records one compression outcome.
func (m *Monitor) RecordCompression(originalBytes, compressedBytes int, duration time.Duration) {
	ratio := 1.0
	if originalBytes > 0 {
		ratio = float64(compressedBytes) / float64(originalBytes)
	}
	if m.exporter != nil {
		m.exporter.observeCompression(originalBytes, compressedBytes)
	}

	rec := CompressionRecord{
		OriginalBytes:   originalBytes,
		CompressedBytes: compressedBytes,
		Duration:        duration,
		Ratio:           ratio,
		At:              time.Now(),
	}
	m.mu.Lock()
	m.compressions = appendBounded(m.compressions, rec, m.cfg.MaxMeasurements, &m.drops)
	m.mu.Unlock()
}

// RecordMemory records a memory snapshot.
func (m *Monitor) RecordMemory(l1Bytes int64, entryCount int, remoteBytes int64) {
	if m.exporter != nil {
		m.exporter.observeMemory(l1Bytes, entryCount)
	}

	rec := MemoryRecord{L1Bytes: l1Bytes, EntryCount: entryCount, RemoteBytes: remoteBytes, At: time.Now()}
	m.mu.Lock()
	m.memories = appendBounded(m.memories, rec, m.cfg.MaxMeasurements, &m.drops)
	m.mu.Unlock()
}

// RecordInvalidation records a pattern invalidation event.
func (m *Monitor) RecordInvalidation(pattern string, keysRemoved int, duration time.Duration, reason string) {
	if m.exporter != nil {
		m.exporter.observeInvalidation(keysRemoved)
	}

	rec := InvalidationRecord{Pattern: pattern, KeysRemoved: keysRemoved, Duration: duration, Reason: reason, At: time.Now()}
	m.mu.Lock()
	m.invalidations = appendBounded(m.invalidations, rec, m.cfg.MaxMeasurements, &m.drops)
	m.mu.Unlock()
}

// appendBounded appends to a ring-like slice, dropping the oldest record
// when the cap is reached.
func appendBounded[T any](s []T, rec T, limit int, drops *atomic.Int64) []T {
	if len(s) >= limit {
		copy(s, s[1:])
		s[len(s)-1] = rec
		drops.Add(1)
		return s
	}
	return append(s, rec)
}

// LatencyStats summarizes a latency distribution.
type LatencyStats struct {
	Count int           `json:"count"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// CompressionStats summarizes compression efficiency.
type CompressionStats struct {
	Count       int           `json:"count"`
	AvgRatio    float64       `json:"avg_ratio"`
	SavedBytes  int64         `json:"saved_bytes"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// MemoryTrend summarizes memory use over the window.
type MemoryTrend struct {
	CurrentL1Bytes int64 `json:"current_l1_bytes"`
	PeakL1Bytes    int64 `json:"peak_l1_bytes"`
	EntryCount     int   `json:"entry_count"`
	RemoteBytes    int64 `json:"remote_bytes,omitempty"`
	Samples        int   `json:"samples"`
}

// SlowOperation flags an operation far above its category mean.
type SlowOperation struct {
	Op       string        `json:"op"`
	Duration time.Duration `json:"duration"`
	Mean     time.Duration `json:"mean"`
	At       time.Time     `json:"at"`
}

// Report is the aggregate view consumed by stats endpoints.
type Report struct {
	GeneratedAt        time.Time               `json:"generated_at"`
	HitRatio           float64                 `json:"hit_ratio"`
	TotalHits          int64                   `json:"total_hits"`
	TotalMisses        int64                   `json:"total_misses"`
	Operations         map[string]LatencyStats `json:"operations"`
	Compression        CompressionStats        `json:"compression"`
	Memory             MemoryTrend             `json:"memory"`
	InvalidationRate   float64                 `json:"invalidations_per_hour"`
	InvalidatedKeys    int                     `json:"invalidated_keys"`
	SlowOperations     []SlowOperation         `json:"slow_operations,omitempty"`
	DroppedRecords     int64                   `json:"dropped_records"`
	Alerts             []Alert                 `json:"alerts,omitempty"`
	RemoteReachable    bool                    `json:"remote_reachable"`
	RemoteNote         string                  `json:"remote_note,omitempty"`
}

// SetRemoteState marks the remote tier's reachability for inclusion in
// reports and alert derivation.
func (m *Monitor) SetRemoteState(reachable bool, note string) {
	m.mu.Lock()
	m.remoteReachable = reachable
	m.remoteNote = note
	m.mu.Unlock()
}

// Report prunes expired records and returns the aggregate snapshot,
// including alerts derived from current thresholds.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.pruneLocked(now)

	hits := m.hits.Load()
	misses := m.misses.Load()
	var hitRatio float64
	if hits+misses > 0 {
		hitRatio = float64(hits) / float64(hits+misses)
	}

	rep := Report{
		GeneratedAt:     now,
		HitRatio:        hitRatio,
		TotalHits:       hits,
		TotalMisses:     misses,
		Operations:      m.latencyByOpLocked(),
		Compression:     m.compressionStatsLocked(),
		Memory:          m.memoryTrendLocked(),
		DroppedRecords:  m.drops.Load(),
		RemoteReachable: m.remoteReachable,
		RemoteNote:      m.remoteNote,
	}

	rate, keys := m.invalidationRateLocked(now)
	rep.InvalidationRate = rate
	rep.InvalidatedKeys = keys
	rep.SlowOperations = m.slowOpsLocked(rep.Operations)
	rep.Alerts = m.alertsLocked(rep)
	return rep
}

// pruneLocked discards records older than the retention window.
func (m *Monitor) pruneLocked(now time.Time) {
	cutoff := now.Add(-m.cfg.RetentionWindow)
	m.operations = pruneBefore(m.operations, cutoff, func(r OperationRecord) time.Time { return r.At })
	m.compressions = pruneBefore(m.compressions, cutoff, func(r CompressionRecord) time.Time { return r.At })
	m.memories = pruneBefore(m.memories, cutoff, func(r MemoryRecord) time.Time { return r.At })
	m.invalidations = pruneBefore(m.invalidations, cutoff, func(r InvalidationRecord) time.Time { return r.At })
}

func pruneBefore[T any](s []T, cutoff time.Time, at func(T) time.Time) []T {
	idx := 0
	for idx < len(s) && at(s[idx]).Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return s
	}
	return append(s[:0], s[idx:]...)
}

func (m *Monitor) latencyByOpLocked() map[string]LatencyStats {
	byOp := make(map[string][]time.Duration)
	for _, rec := range m.operations {
		byOp[rec.Op] = append(byOp[rec.Op], rec.Duration)
	}

	out := make(map[string]LatencyStats, len(byOp))
	for op, durs := range byOp {
		out[op] = summarize(durs)
	}
	return out
}

func summarize(durs []time.Duration) LatencyStats {
	if len(durs) == 0 {
		return LatencyStats{}
	}
	sorted := make([]time.Duration, len(durs))
	copy(sorted, durs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return LatencyStats{
		Count: len(sorted),
		Mean:  sum / time.Duration(len(sorted)),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}
}

// percentile returns the element at index floor(p*n) of a sorted slice,
// clamped to the last element.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (m *Monitor) compressionStatsLocked() CompressionStats {
	if len(m.compressions) == 0 {
		return CompressionStats{}
	}
	var (
		ratioSum float64
		saved    int64
		durSum   time.Duration
	)
	for _, rec := range m.compressions {
		ratioSum += rec.Ratio
		saved += int64(rec.OriginalBytes - rec.CompressedBytes)
		durSum += rec.Duration
	}
	n := len(m.compressions)
	return CompressionStats{
		Count:       n,
		AvgRatio:    ratioSum / float64(n),
		SavedBytes:  saved,
		AvgDuration: durSum / time.Duration(n),
	}
}

func (m *Monitor) memoryTrendLocked() MemoryTrend {
	if len(m.memories) == 0 {
		return MemoryTrend{}
	}
	latest := m.memories[len(m.memories)-1]
	trend := MemoryTrend{
		CurrentL1Bytes: latest.L1Bytes,
		EntryCount:     latest.EntryCount,
		RemoteBytes:    latest.RemoteBytes,
		Samples:        len(m.memories),
	}
	for _, rec := range m.memories {
		if rec.L1Bytes > trend.PeakL1Bytes {
			trend.PeakL1Bytes = rec.L1Bytes
		}
	}
	return trend
}

func (m *Monitor) invalidationRateLocked(_ time.Time) (float64, int) {
	if len(m.invalidations) == 0 {
		return 0, 0
	}
	keys := 0
	for _, rec := range m.invalidations {
		keys += rec.KeysRemoved
	}
	window := m.cfg.RetentionWindow
	if window <= 0 {
		window = time.Hour
	}
	perHour := float64(len(m.invalidations)) * float64(time.Hour) / float64(window)
	return perHour, keys
}

func (m *Monitor) slowOpsLocked(stats map[string]LatencyStats) []SlowOperation {
	var slow []SlowOperation
	for _, rec := range m.operations {
		s, ok := stats[rec.Op]
		if !ok || s.Count < 2 {
			continue
		}
		floor := m.cfg.CacheOpFloor
		if rec.Op == OpKeyGen {
			floor = m.cfg.KeyGenFloor
		}
		threshold := time.Duration(float64(s.Mean) * m.cfg.SlowOpMultiplier)
		if threshold < floor {
			threshold = floor
		}
		if rec.Duration >= threshold {
			slow = append(slow, SlowOperation{Op: rec.Op, Duration: rec.Duration, Mean: s.Mean, At: rec.At})
		}
	}
	return slow
}
