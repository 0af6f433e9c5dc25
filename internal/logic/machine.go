package logic

import "time"

// Machine derives the debounced emergency and warning flags.
//
// Arming (a breach or an explicit stop) only schedules the emergency; the
// flag is committed by Tick once the delay has elapsed. Release happens
// either on Tick after the hold time, or on a clear Observe once the hold
// time has passed. The hold time always wins: a committed emergency is
// never released earlier than Hold after it was set.
type Machine struct {
	cfg    Thresholds
	status Status

	pending        bool
	pendingReason  Reason
	triggerTime    time.Time
	emergencyStart time.Time // valid while status.Emergency

	startTime     time.Time
	lastHeartbeat time.Time
	eventCounts   EventCounts
}

// NewMachine creates a machine in the clear state.
// The startTime is used for calculating uptime in heartbeat events.
func NewMachine(cfg Thresholds, startTime time.Time) *Machine {
	return &Machine{
		cfg:           cfg,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Observe applies a freshly fused set of ranges.
func (m *Machine) Observe(r Ranges, now time.Time) []Event {
	var events []Event

	warning := r.AnyBelow(m.cfg.WarningCm)
	if warning != m.status.Warning {
		m.status.Warning = warning
		typ := EventWarningOff
		if warning {
			typ = EventWarningOn
		}
		events = append(events, m.event(now, typ, ReasonNone))
	}

	breach := r.AnyBelow(m.cfg.EmergencyCm)
	switch {
	case breach && !m.status.Emergency:
		events = append(events, m.arm(now, ReasonObstacle)...)
	case !breach && m.status.Emergency:
		if now.Sub(m.emergencyStart) >= m.cfg.Hold {
			events = append(events, m.release(now, ReasonCleared))
		}
	}

	return events
}

// Stop applies an explicit stop signal. It takes the same debounce path as
// a distance breach.
func (m *Machine) Stop(now time.Time) []Event {
	m.eventCounts.StopSignals++
	if m.status.Emergency {
		return nil
	}
	return m.arm(now, ReasonStopSignal)
}

// Tick evaluates the timers. It must be called periodically even when no
// readings arrive; comparisons use now, not the number of ticks.
func (m *Machine) Tick(now time.Time) []Event {
	if m.pending && now.Sub(m.triggerTime) >= m.cfg.Delay {
		m.pending = false
		m.status.Emergency = true
		m.emergencyStart = now
		return []Event{m.event(now, EventEmergencyOn, m.pendingReason)}
	}

	if m.status.Emergency && now.Sub(m.emergencyStart) >= m.cfg.Hold {
		return []Event{m.release(now, ReasonHoldElapsed)}
	}

	return nil
}

// arm enters the pending state. Re-arming while pending keeps the original
// trigger time.
func (m *Machine) arm(now time.Time, reason Reason) []Event {
	if m.pending {
		return nil
	}
	m.pending = true
	m.pendingReason = reason
	m.triggerTime = now
	return []Event{m.event(now, EventEmergencyPending, reason)}
}

func (m *Machine) release(now time.Time, reason Reason) Event {
	m.status.Emergency = false
	m.emergencyStart = time.Time{}
	return m.event(now, EventEmergencyOff, reason)
}

func (m *Machine) event(now time.Time, typ EventType, reason Reason) Event {
	switch typ {
	case EventEmergencyOn:
		m.eventCounts.EmergencyOn++
	case EventEmergencyOff:
		m.eventCounts.EmergencyOff++
	case EventWarningOn:
		m.eventCounts.WarningOn++
	case EventWarningOff:
		m.eventCounts.WarningOff++
	}
	return Event{
		Timestamp: now,
		Type:      typ,
		Reason:    reason,
		Status:    m.status,
	}
}

// Status returns the current flags.
func (m *Machine) Status() Status {
	return m.status
}

// Pending reports whether an emergency is armed but not yet committed.
func (m *Machine) Pending() bool {
	return m.pending
}

// Phase returns the most severe layer the machine is currently in.
func (m *Machine) Phase() Phase {
	switch {
	case m.status.Emergency:
		return PhaseEmergencyActive
	case m.pending:
		return PhasePendingEmergency
	case m.status.Warning:
		return PhaseWarning
	default:
		return PhaseClear
	}
}

// EventCountsSnapshot returns a copy of the event counters.
func (m *Machine) EventCountsSnapshot() EventCounts {
	return m.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (m *Machine) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.eventCounts,
	}
}
