// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/rangeguard/internal/logic"
)

// Topics.
const (
	// TopicStatus carries the periodic safety status. Retained so late
	// subscribers (the motion controller) start from the current flags.
	TopicStatus = "vehicle/safety/status"

	// TopicEvents carries emergency and warning transitions.
	TopicEvents = "vehicle/safety/events"

	// TopicSystem carries lifecycle events (startup, shutdown, heartbeat).
	TopicSystem = "vehicle/safety/system"
)

// TimestampFormat is RFC 3339 with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Publisher publishes safety output to the bus.
type Publisher interface {
	// PublishStatus sends the current status report.
	PublishStatus(report logic.Report) error

	// Publish sends a state transition event.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StatusPayload is the message published on TopicStatus.
type StatusPayload struct {
	Safety SafetyStatus `json:"safety"`
}

// SafetyStatus contains the flags, phase, and fused ranges.
type SafetyStatus struct {
	Timestamp string        `json:"timestamp"`
	Emergency bool          `json:"emergency"`
	Warning   bool          `json:"warning"`
	State     string        `json:"state"`
	Ranges    RangesPayload `json:"ranges"`
}

// RangesPayload holds fused distances in meters.
type RangesPayload struct {
	Left   float64 `json:"left"`
	Center float64 `json:"center"`
	Right  float64 `json:"right"`
}

// NewRangesPayload converts centimeter ranges to the meter payload.
func NewRangesPayload(r logic.Ranges) RangesPayload {
	m := r.Meters()
	return RangesPayload{
		Left:   m[logic.Left],
		Center: m[logic.Center],
		Right:  m[logic.Right],
	}
}

// FormatStatus creates the JSON payload for a status report.
func FormatStatus(report logic.Report) ([]byte, error) {
	payload := StatusPayload{
		Safety: SafetyStatus{
			Timestamp: report.Timestamp.UTC().Format(TimestampFormat),
			Emergency: report.Status.Emergency,
			Warning:   report.Status.Warning,
			State:     string(report.Phase),
			Ranges:    NewRangesPayload(report.Ranges),
		},
	}
	return json.Marshal(payload)
}

// Payload is the message published on TopicEvents.
type Payload struct {
	Safety EventPayload `json:"safety"`
}

// EventPayload contains the transition details.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Emergency bool   `json:"emergency"`
	Warning   bool   `json:"warning"`
}

// FormatPayload creates the JSON payload for a transition event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Safety: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(TimestampFormat),
			Event:     string(event.Type),
			Reason:    string(event.Reason),
			Emergency: event.Status.Emergency,
			Warning:   event.Status.Warning,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
