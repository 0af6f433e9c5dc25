package logic

import (
	"testing"
	"time"
)

var defaultThresholds = Thresholds{
	EmergencyCm: 30,
	WarningCm:   50,
	Delay:       200 * time.Millisecond,
	Hold:        5 * time.Second,
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const epsilon = time.Millisecond

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func hasEvent(events []Event, typ EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

// setupEmergencyMachine returns a machine whose emergency was committed at t0+delay.
func setupEmergencyMachine(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine(defaultThresholds, t0)
	m.Observe(Ranges{10, 200, 200}, t0)
	events := m.Tick(t0.Add(defaultThresholds.Delay))
	if !hasEvent(events, EventEmergencyOn) {
		t.Fatalf("setup: expected EMERGENCY_ON, got %v", eventTypes(events))
	}
	return m
}

func TestNewMachine(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)
	if m.Status() != (Status{}) {
		t.Errorf("expected clear status, got %+v", m.Status())
	}
	if m.Phase() != PhaseClear {
		t.Errorf("expected CLEAR, got %s", m.Phase())
	}
	if m.Pending() {
		t.Error("new machine should not be pending")
	}
	if !m.lastHeartbeat.Equal(t0) {
		t.Errorf("expected lastHeartbeat %v, got %v", t0, m.lastHeartbeat)
	}
}

func TestClearRangesStayClear(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)
	for i := 0; i < 10; i++ {
		now := t0.Add(time.Duration(i) * 100 * time.Millisecond)
		if events := m.Observe(Ranges{60, 60, 60}, now); len(events) != 0 {
			t.Errorf("iteration %d: expected no events, got %v", i, eventTypes(events))
		}
		if events := m.Tick(now); len(events) != 0 {
			t.Errorf("iteration %d: expected no tick events, got %v", i, eventTypes(events))
		}
	}
	if m.Status() != (Status{}) {
		t.Errorf("expected both flags false, got %+v", m.Status())
	}
}

func TestBreachIsDebounced(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)

	events := m.Observe(Ranges{10, 200, 200}, t0)
	if got := eventTypes(events); len(got) != 2 || got[0] != EventWarningOn || got[1] != EventEmergencyPending {
		t.Fatalf("expected [WARNING_ON EMERGENCY_PENDING], got %v", got)
	}
	if events[1].Reason != ReasonObstacle {
		t.Errorf("expected OBSTACLE reason, got %s", events[1].Reason)
	}

	// Warning is immediate, emergency is not.
	if !m.Status().Warning {
		t.Error("warning should be set immediately")
	}
	if m.Status().Emergency {
		t.Error("emergency must not be set before the delay")
	}
	if m.Phase() != PhasePendingEmergency {
		t.Errorf("expected PENDING_EMERGENCY, got %s", m.Phase())
	}

	if events := m.Tick(t0.Add(defaultThresholds.Delay - epsilon)); len(events) != 0 {
		t.Errorf("expected no events before delay, got %v", eventTypes(events))
	}
	if m.Status().Emergency {
		t.Error("emergency must not be set before the delay")
	}

	events = m.Tick(t0.Add(defaultThresholds.Delay + epsilon))
	if len(events) != 1 || events[0].Type != EventEmergencyOn {
		t.Fatalf("expected EMERGENCY_ON, got %v", eventTypes(events))
	}
	if events[0].Reason != ReasonObstacle {
		t.Errorf("expected OBSTACLE reason, got %s", events[0].Reason)
	}
	if !events[0].Status.Emergency || !events[0].Status.Warning {
		t.Errorf("event status: got %+v", events[0].Status)
	}
	if m.Pending() {
		t.Error("pending should be cleared after commit")
	}
	if m.Phase() != PhaseEmergencyActive {
		t.Errorf("expected EMERGENCY_ACTIVE, got %s", m.Phase())
	}
}

func TestRearmDoesNotResetTrigger(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)
	m.Observe(Ranges{10, 200, 200}, t0)

	// Keeps breaching; the timer must still run from t0.
	if events := m.Observe(Ranges{10, 200, 200}, t0.Add(150*time.Millisecond)); len(events) != 0 {
		t.Errorf("re-arm should be silent, got %v", eventTypes(events))
	}

	events := m.Tick(t0.Add(defaultThresholds.Delay))
	if !hasEvent(events, EventEmergencyOn) {
		t.Errorf("expected commit at t0+delay, got %v", eventTypes(events))
	}
}

func TestStopSignalTakesDebouncePath(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)

	events := m.Stop(t0)
	if len(events) != 1 || events[0].Type != EventEmergencyPending || events[0].Reason != ReasonStopSignal {
		t.Fatalf("expected EMERGENCY_PENDING/STOP_SIGNAL, got %+v", events)
	}
	if m.Status().Emergency {
		t.Error("stop signal must not set emergency immediately")
	}
	if m.Status().Warning {
		t.Error("stop signal does not touch warning")
	}

	events = m.Tick(t0.Add(defaultThresholds.Delay))
	if len(events) != 1 || events[0].Type != EventEmergencyOn {
		t.Fatalf("expected EMERGENCY_ON, got %v", eventTypes(events))
	}
	if events[0].Reason != ReasonStopSignal {
		t.Errorf("expected STOP_SIGNAL reason, got %s", events[0].Reason)
	}
	if m.EventCountsSnapshot().StopSignals != 1 {
		t.Errorf("StopSignals: got %d, want 1", m.EventCountsSnapshot().StopSignals)
	}
}

func TestStopSignalWhileActiveIgnored(t *testing.T) {
	m := setupEmergencyMachine(t)
	if events := m.Stop(t0.Add(time.Second)); len(events) != 0 {
		t.Errorf("expected no events, got %v", eventTypes(events))
	}
	if m.Pending() {
		t.Error("stop while active must not arm")
	}
	if m.EventCountsSnapshot().StopSignals != 1 {
		t.Error("stop signal should still be counted")
	}
}

func TestPendingNotCancelledByClearReadings(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)
	m.Observe(Ranges{10, 200, 200}, t0)

	events := m.Observe(Ranges{200, 200, 200}, t0.Add(100*time.Millisecond))
	if len(events) != 1 || events[0].Type != EventWarningOff {
		t.Errorf("expected only WARNING_OFF, got %v", eventTypes(events))
	}
	if !m.Pending() {
		t.Error("pending is only resolved by Tick")
	}

	events = m.Tick(t0.Add(defaultThresholds.Delay))
	if !hasEvent(events, EventEmergencyOn) {
		t.Errorf("expected commit, got %v", eventTypes(events))
	}
}

func TestHoldTimeTakesPrecedenceOverClear(t *testing.T) {
	m := setupEmergencyMachine(t)
	committed := t0.Add(defaultThresholds.Delay)

	// Obstacle gone one second later: emergency holds.
	events := m.Observe(Ranges{200, 200, 200}, committed.Add(time.Second))
	if hasEvent(events, EventEmergencyOff) {
		t.Fatal("emergency released before hold time")
	}
	if !m.Status().Emergency {
		t.Error("emergency should still be active")
	}
	if m.Status().Warning {
		t.Error("warning is always refreshed and should be clear")
	}

	if events := m.Tick(committed.Add(defaultThresholds.Hold - epsilon)); len(events) != 0 {
		t.Errorf("expected no release before hold, got %v", eventTypes(events))
	}

	events = m.Tick(committed.Add(defaultThresholds.Hold))
	if len(events) != 1 || events[0].Type != EventEmergencyOff || events[0].Reason != ReasonHoldElapsed {
		t.Fatalf("expected EMERGENCY_OFF/HOLD_ELAPSED, got %+v", events)
	}
	if m.Status().Emergency {
		t.Error("emergency should be released")
	}
	if m.Phase() != PhaseClear {
		t.Errorf("expected CLEAR, got %s", m.Phase())
	}
}

func TestClearAfterHoldReleasesImmediately(t *testing.T) {
	m := setupEmergencyMachine(t)
	committed := t0.Add(defaultThresholds.Delay)

	// 40cm: out of emergency range, still inside warning range.
	events := m.Observe(Ranges{40, 200, 200}, committed.Add(defaultThresholds.Hold+epsilon))
	if len(events) != 1 || events[0].Type != EventEmergencyOff {
		t.Fatalf("expected [EMERGENCY_OFF], got %v", eventTypes(events))
	}
	if events[0].Reason != ReasonCleared {
		t.Errorf("expected CLEARED reason, got %s", events[0].Reason)
	}
	if events[0].Status != (Status{Emergency: false, Warning: true}) {
		t.Errorf("event status: got %+v", events[0].Status)
	}
	if m.Phase() != PhaseWarning {
		t.Errorf("expected WARNING, got %s", m.Phase())
	}
}

func TestHoldReleaseWithObstaclePresentRearms(t *testing.T) {
	m := setupEmergencyMachine(t)
	committed := t0.Add(defaultThresholds.Delay)

	// No input during the hold: the tick releases anyway.
	events := m.Tick(committed.Add(defaultThresholds.Hold))
	if !hasEvent(events, EventEmergencyOff) {
		t.Fatalf("expected release, got %v", eventTypes(events))
	}

	// The next breaching sample arms again and commits after another delay.
	later := committed.Add(defaultThresholds.Hold + 100*time.Millisecond)
	events = m.Observe(Ranges{10, 200, 200}, later)
	if !hasEvent(events, EventEmergencyPending) {
		t.Fatalf("expected re-arm, got %v", eventTypes(events))
	}
	events = m.Tick(later.Add(defaultThresholds.Delay))
	if !hasEvent(events, EventEmergencyOn) {
		t.Fatalf("expected second commit, got %v", eventTypes(events))
	}

	counts := m.EventCountsSnapshot()
	if counts.EmergencyOn != 2 || counts.EmergencyOff != 1 {
		t.Errorf("counts: got %+v", counts)
	}
}

func TestBreachWhileActiveDoesNotArm(t *testing.T) {
	m := setupEmergencyMachine(t)
	if events := m.Observe(Ranges{5, 5, 5}, t0.Add(time.Second)); len(events) != 0 {
		t.Errorf("expected no events, got %v", eventTypes(events))
	}
	if m.Pending() {
		t.Error("must not be pending while active")
	}
}

func TestLateTickUsesElapsedTime(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)
	m.Observe(Ranges{10, 200, 200}, t0)

	// A single tick arriving far too late still commits.
	events := m.Tick(t0.Add(3 * time.Second))
	if !hasEvent(events, EventEmergencyOn) {
		t.Fatalf("expected commit on late tick, got %v", eventTypes(events))
	}

	// Hold counts from the commit time, not the trigger time.
	if events := m.Tick(t0.Add(6 * time.Second)); len(events) != 0 {
		t.Errorf("hold runs from commit; expected no release, got %v", eventTypes(events))
	}
	if events := m.Tick(t0.Add(8 * time.Second)); !hasEvent(events, EventEmergencyOff) {
		t.Errorf("expected release at commit+hold, got %v", eventTypes(events))
	}
}

func TestCommitAndReleaseNeverShareATick(t *testing.T) {
	cfg := defaultThresholds
	cfg.Hold = 0
	m := NewMachine(cfg, t0)
	m.Stop(t0)

	events := m.Tick(t0.Add(time.Second))
	if len(events) != 1 || events[0].Type != EventEmergencyOn {
		t.Fatalf("expected only EMERGENCY_ON, got %v", eventTypes(events))
	}
	events = m.Tick(t0.Add(time.Second))
	if len(events) != 1 || events[0].Type != EventEmergencyOff {
		t.Fatalf("expected EMERGENCY_OFF on next tick, got %v", eventTypes(events))
	}
}

func TestWarningWithoutEmergency(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)

	events := m.Observe(Ranges{200, 40, 200}, t0)
	if len(events) != 1 || events[0].Type != EventWarningOn {
		t.Fatalf("expected WARNING_ON, got %v", eventTypes(events))
	}
	if m.Phase() != PhaseWarning {
		t.Errorf("expected WARNING, got %s", m.Phase())
	}
	if events := m.Tick(t0.Add(time.Minute)); len(events) != 0 {
		t.Errorf("warning alone never commits, got %v", eventTypes(events))
	}

	events = m.Observe(Ranges{200, 60, 200}, t0.Add(time.Minute))
	if len(events) != 1 || events[0].Type != EventWarningOff {
		t.Fatalf("expected WARNING_OFF, got %v", eventTypes(events))
	}
	counts := m.EventCountsSnapshot()
	if counts.WarningOn != 1 || counts.WarningOff != 1 {
		t.Errorf("counts: got %+v", counts)
	}
}

func TestThresholdsAreStrict(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)
	if events := m.Observe(Ranges{30, 50, 50}, t0); len(events) != 0 {
		t.Errorf("values equal to thresholds are not breaches, got %v", eventTypes(events))
	}
}

func TestCheckHeartbeat(t *testing.T) {
	m := NewMachine(defaultThresholds, t0)

	if hb := m.CheckHeartbeat(t0.Add(time.Hour), 0); hb != nil {
		t.Error("interval 0 disables heartbeats")
	}
	if hb := m.CheckHeartbeat(t0.Add(10*time.Minute), 15*time.Minute); hb != nil {
		t.Error("heartbeat before interval")
	}

	m.Stop(t0)
	hb := m.CheckHeartbeat(t0.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", hb.Uptime)
	}
	if hb.Counts.StopSignals != 1 {
		t.Errorf("Counts.StopSignals: got %d, want 1", hb.Counts.StopSignals)
	}

	if hb := m.CheckHeartbeat(t0.Add(20*time.Minute), 15*time.Minute); hb != nil {
		t.Error("interval restarts from the last heartbeat")
	}
	if hb := m.CheckHeartbeat(t0.Add(30*time.Minute), 15*time.Minute); hb == nil {
		t.Error("expected second heartbeat")
	}
}
