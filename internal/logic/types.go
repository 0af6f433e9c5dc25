// Package logic contains the pure sensor-fusion and emergency-stop logic.
// This package has NO external dependencies (no serial, MQTT, GPIO, OS, or time.Sleep).
// Time is always injectable via time.Time parameters, and nothing here is
// safe for concurrent use; internal/safety owns the locking.
package logic

import "time"

// Channel identifies one ultrasonic sensor position.
type Channel int

const (
	Left Channel = iota
	Center
	Right
)

// NumChannels is the size of the closed channel set.
const NumChannels = 3

// Channels lists every channel in wire order (FL, FC, FR).
var Channels = [NumChannels]Channel{Left, Center, Right}

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Samples holds one raw distance per channel in centimeters, indexed by Channel.
type Samples [NumChannels]uint32

// Ranges holds one fused distance per channel in centimeters, indexed by Channel.
type Ranges [NumChannels]float64

// AnyBelow reports whether any channel is strictly below threshold.
func (r Ranges) AnyBelow(threshold float64) bool {
	for _, v := range r {
		if v < threshold {
			return true
		}
	}
	return false
}

// Meters converts centimeters to meters.
func (r Ranges) Meters() Ranges {
	var m Ranges
	for i, v := range r {
		m[i] = v / 100
	}
	return m
}

// Status is the process-wide safety output.
// Emergency and Warning are independent flags.
type Status struct {
	Emergency bool
	Warning   bool
}

// Phase is the conceptual severity layer of the machine, derived from
// Status and the debounce state. It is reported, never stored.
type Phase string

const (
	PhaseClear            Phase = "CLEAR"
	PhaseWarning          Phase = "WARNING"
	PhasePendingEmergency Phase = "PENDING_EMERGENCY"
	PhaseEmergencyActive  Phase = "EMERGENCY_ACTIVE"
)

// EventType represents a state transition event.
type EventType string

const (
	EventEmergencyPending EventType = "EMERGENCY_PENDING"
	EventEmergencyOn      EventType = "EMERGENCY_ON"
	EventEmergencyOff     EventType = "EMERGENCY_OFF"
	EventWarningOn        EventType = "WARNING_ON"
	EventWarningOff       EventType = "WARNING_OFF"
)

// Reason says what caused a transition.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonObstacle    Reason = "OBSTACLE"
	ReasonStopSignal  Reason = "STOP_SIGNAL"
	ReasonHoldElapsed Reason = "HOLD_ELAPSED"
	ReasonCleared     Reason = "CLEARED"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Reason    Reason
	// Status after the transition was applied.
	Status Status
}

// IsEmergencyFlag reports whether the event flipped the emergency flag.
func (e Event) IsEmergencyFlag() bool {
	return e.Type == EventEmergencyOn || e.Type == EventEmergencyOff
}

// Report is a consistent point-in-time view of the safety output.
type Report struct {
	Timestamp time.Time
	Status    Status
	Phase     Phase
	Ranges    Ranges // centimeters
}

// Thresholds configures the machine. Immutable after startup.
type Thresholds struct {
	EmergencyCm float64
	WarningCm   float64
	// Delay between a breach and committing the emergency.
	Delay time.Duration
	// Hold is the minimum time an emergency stays committed.
	Hold time.Duration
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	EmergencyOn  int
	EmergencyOff int
	WarningOn    int
	WarningOff   int
	StopSignals  int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
