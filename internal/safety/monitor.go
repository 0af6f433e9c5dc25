// Package safety owns the shared fusion and emergency-stop state.
//
// A Monitor is the only mutable state touched by both the ingest goroutine
// and the control loop. Every exported method takes the one lock for a
// single bounded transition, so readers never see a half-written ring, a
// torn status pair, or a debounce state caught mid-transition.
package safety

import (
	"log"
	"sync"
	"time"

	"github.com/sweeney/rangeguard/internal/logic"
)

// LineCounts tracks what the ingest path has seen since startup.
type LineCounts struct {
	Samples int
	Stops   int
	Dropped int
}

// Monitor serializes all access to the fusion buffer and state machine.
type Monitor struct {
	mu      sync.Mutex
	fusion  *logic.FusionBuffer
	machine *logic.Machine
	lines   LineCounts
}

// NewMonitor creates a Monitor. window must already be validated.
func NewMonitor(cfg logic.Thresholds, window int, startTime time.Time) *Monitor {
	return &Monitor{
		fusion:  logic.NewFusionBuffer(window),
		machine: logic.NewMachine(cfg, startTime),
	}
}

// HandleLine parses one raw line and applies it. Unrecognized lines are
// counted and dropped with a diagnostic; they never surface as errors.
func (m *Monitor) HandleLine(line string, now time.Time) []logic.Event {
	r := logic.ParseLine(line)
	if r.Kind == logic.ReadingUnrecognized {
		m.mu.Lock()
		m.lines.Dropped++
		m.mu.Unlock()
		log.Printf("parser: dropped unrecognized line %q", line)
		return nil
	}
	return m.Apply(r, now)
}

// Apply applies an already parsed reading.
func (m *Monitor) Apply(r logic.Reading, now time.Time) []logic.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch r.Kind {
	case logic.ReadingSamples:
		m.lines.Samples++
		m.fusion.Record(r.Samples)
		return m.machine.Observe(m.fusion.FusedAll(), now)
	case logic.ReadingStop:
		m.lines.Stops++
		return m.machine.Stop(now)
	default:
		m.lines.Dropped++
		return nil
	}
}

// Tick drives the timer transitions.
func (m *Monitor) Tick(now time.Time) []logic.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Tick(now)
}

// Report returns the status, phase, and fused ranges read together.
func (m *Monitor) Report(now time.Time) logic.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return logic.Report{
		Timestamp: now,
		Status:    m.machine.Status(),
		Phase:     m.machine.Phase(),
		Ranges:    m.fusion.FusedAll(),
	}
}

// Status returns the current flags.
func (m *Monitor) Status() logic.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Status()
}

// MotionInhibited reports whether the e-stop output should be asserted:
// an emergency is active, or no samples line has arrived yet.
func (m *Monitor) MotionInhibited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.Status().Emergency || m.lines.Samples == 0
}

// Counts returns the transition and line counters.
func (m *Monitor) Counts() (logic.EventCounts, LineCounts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.EventCountsSnapshot(), m.lines
}

// Fill reports how many ring slots hold real samples, and the window size.
func (m *Monitor) Fill() (filled, window int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fusion.Filled(), m.fusion.Window()
}

// CheckHeartbeat forwards to the machine under the lock.
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.machine.CheckHeartbeat(now, interval)
}
