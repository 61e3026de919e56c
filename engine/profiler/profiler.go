package profiler

import (
	"fmt"
	"log"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// passStats accumulates the time spent in one named pass since the last report.
type passStats struct {
	total time.Duration
	count int
}

// Profiler tracks frame rate, per-pass GPU/CPU time and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             sync.Mutex
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	passes     map[string]*passStats
	lastReport map[string]time.Duration
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
		passes:         make(map[string]*passStats),
		lastReport:     make(map[string]time.Duration),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// RecordPass adds the duration of one execution of a named pass, such as the shadow map
// or ray marching dispatch. Safe to call from any goroutine.
//
// Parameters:
//   - name: the pass name
//   - d: the time the pass took
func (p *Profiler) RecordPass(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.passes[name]
	if !ok {
		s = &passStats{}
		p.passes[name] = s
	}
	s.total += d
	s.count++
}

// PassAverages returns the mean duration of each pass over the last reported interval.
func (p *Profiler) PassAverages() map[string]time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]time.Duration, len(p.lastReport))
	for k, v := range p.lastReport {
		out[k] = v
	}
	return out
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, mean pass times, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// Sys: Total bytes of memory obtained from the OS (actual process footprint)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024

	// Calculate allocation rate (MB/sec)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// Calculate GC pause stats (last pause and max recent pause)
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			pause := p.memStats.PauseNs[i%256] / 1000
			if pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	log.Printf("[Profiler] FPS: %.2f%s | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		fps, p.passSummary(), allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// passSummary moves the accumulated pass times into lastReport and formats them.
// Caller must hold the mutex.
func (p *Profiler) passSummary() string {
	if len(p.passes) == 0 {
		return ""
	}
	names := make([]string, 0, len(p.passes))
	for name := range p.passes {
		names = append(names, name)
	}
	sort.Strings(names)

	clear(p.lastReport)
	var b strings.Builder
	for _, name := range names {
		s := p.passes[name]
		avg := s.total / time.Duration(s.count)
		p.lastReport[name] = avg
		fmt.Fprintf(&b, " | %s: %.2f ms", name, float64(avg.Microseconds())/1000)
	}
	clear(p.passes)
	return b.String()
}
