// Package status provides a thread-safe status tracker for the rangeguard daemon.
// It is read by the HTTP handlers and used to build lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/rangeguard/internal/logic"
	"github.com/sweeney/rangeguard/internal/safety"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	EmergencyCm float64
	WarningCm   float64
	Window      int
	DelayMs     int64
	HoldMs      int64
	PublishMs   int64
	TickMs      int64
	HeartbeatMs int64
	Serial      string // device path, or "replay:<path>"
	Broker      string
	Redis       string // empty = disabled
	HTTPPort    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Report          logic.Report
	Counts          logic.EventCounts
	Lines           safety.LineCounts
	Filled          int
	Window          int
	StartTime       time.Time
	Now             time.Time
	BootID          string
	MQTTConnected   bool
	SerialConnected bool
	Network         *NetworkInfo
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// WarmingUp reports whether the fusion rings still hold start-up zeros.
func (s Snapshot) WarmingUp() bool {
	return s.Filled < s.Window
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, boot ID, and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			BootID:    bootID,
			Window:    cfg.Window,
			Config:    cfg,
			Report:    logic.Report{Phase: logic.PhaseClear},
		},
	}
}

// Update copies the latest safety state from the monitor.
// Called from runLoop on every publish tick.
func (t *Tracker) Update(m *safety.Monitor, now time.Time) {
	report := m.Report(now)
	counts, lines := m.Counts()
	filled, window := m.Fill()

	t.mu.Lock()
	t.snap.Report = report
	t.snap.Counts = counts
	t.snap.Lines = lines
	t.snap.Filled = filled
	t.snap.Window = window
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetSerialConnected sets the line source connection status.
func (t *Tracker) SetSerialConnected(connected bool) {
	t.mu.Lock()
	t.snap.SerialConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
