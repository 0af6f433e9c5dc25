package internal

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sweeney/rangeguard/internal/gpio"
	"github.com/sweeney/rangeguard/internal/logic"
	"github.com/sweeney/rangeguard/internal/mqtt"
	"github.com/sweeney/rangeguard/internal/safety"
	"github.com/sweeney/rangeguard/internal/serial"
	"github.com/sweeney/rangeguard/internal/status"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func thresholds() logic.Thresholds {
	return logic.Thresholds{
		EmergencyCm: 30,
		WarningCm:   50,
		Delay:       200 * time.Millisecond,
		Hold:        5 * time.Second,
	}
}

// pipeline wires the fakes the way the daemon does, stepping a simulated
// clock instead of real tickers.
type pipeline struct {
	src     *serial.FakeSource
	monitor *safety.Monitor
	pub     *mqtt.FakePublisher
	gate    *gpio.FakeGate
	now     time.Time
}

func newPipeline(lines ...string) *pipeline {
	return &pipeline{
		src:     serial.NewFakeSource(lines...),
		monitor: safety.NewMonitor(thresholds(), 5, startTime),
		pub:     mqtt.NewFakePublisher(),
		gate:    gpio.NewFakeGate(),
		now:     startTime,
	}
}

func (p *pipeline) deliver(t *testing.T, events []logic.Event) {
	t.Helper()
	for _, e := range events {
		if e.IsEmergencyFlag() {
			if err := p.gate.Set(p.monitor.Status().Emergency); err != nil {
				t.Fatalf("gate: %v", err)
			}
		}
		if err := p.pub.Publish(e); err != nil {
			t.Logf("publish error (ignored): %v", err)
		}
	}
}

// readOne ingests the next line at the current time.
func (p *pipeline) readOne(t *testing.T) bool {
	t.Helper()
	line, err := p.src.ReadLine()
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	p.deliver(t, p.monitor.HandleLine(line, p.now))
	return true
}

// advance moves the clock forward in 100ms ticks.
func (p *pipeline) advance(t *testing.T, d time.Duration) {
	t.Helper()
	for end := p.now.Add(d); p.now.Before(end); {
		p.now = p.now.Add(100 * time.Millisecond)
		p.deliver(t, p.monitor.Tick(p.now))
	}
}

func TestIntegrationObstacleCommitsAndHoldReleases(t *testing.T) {
	p := newPipeline("FL:10,FC:200,FR:200")

	if !p.readOne(t) {
		t.Fatal("expected a line")
	}
	p.advance(t, 300*time.Millisecond)

	st := p.monitor.Status()
	if !st.Emergency || !st.Warning {
		t.Fatalf("expected emergency and warning after delay, got %+v", st)
	}

	// No input for the hold time: released by the tick path.
	p.advance(t, 5*time.Second)
	if p.monitor.Status().Emergency {
		t.Error("expected emergency released after hold")
	}

	want := []logic.EventType{
		logic.EventWarningOn,
		logic.EventEmergencyPending,
		logic.EventEmergencyOn,
		logic.EventEmergencyOff,
	}
	got := p.pub.EventTypes()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	writes := p.gate.Writes()
	if len(writes) != 2 || !writes[0] || writes[1] {
		t.Errorf("expected gate writes [true false], got %v", writes)
	}
}

func TestIntegrationSpikeAveragedAway(t *testing.T) {
	// Warm the ring with clear readings, then one 20cm spike.
	p := newPipeline(
		"FL:300,FC:300,FR:300",
		"FL:300,FC:300,FR:300",
		"FL:300,FC:300,FR:300",
		"FL:300,FC:300,FR:300",
		"FL:300,FC:300,FR:300",
		"FL:20,FC:300,FR:300",
		"FL:300,FC:300,FR:300",
	)
	for p.readOne(t) {
		p.advance(t, 100*time.Millisecond)
	}
	p.advance(t, time.Second)

	if len(p.pub.Events) != 0 {
		t.Errorf("expected no events, got %v", p.pub.EventTypes())
	}
	if len(p.gate.Writes()) != 0 {
		t.Errorf("expected no gate writes, got %v", p.gate.Writes())
	}
}

func TestIntegrationStopSignal(t *testing.T) {
	p := newPipeline("FL:300,FC:300,FR:300", "s")
	p.readOne(t)
	p.readOne(t)
	p.advance(t, 200*time.Millisecond)

	if !p.monitor.Status().Emergency {
		t.Fatal("expected stop signal to commit after the delay")
	}
	on := p.pub.Events[len(p.pub.Events)-1]
	if on.Type != logic.EventEmergencyOn || on.Reason != logic.ReasonStopSignal {
		t.Errorf("expected EMERGENCY_ON/STOP_SIGNAL, got %s/%s", on.Type, on.Reason)
	}
}

func TestIntegrationNoiseIsDropped(t *testing.T) {
	p := newPipeline("", "FL:-1,FC:2,FR:3", "hello", "FL:1,FC:2", "FR:1,FC:2,FL:3")
	for p.readOne(t) {
	}

	_, lines := p.monitor.Counts()
	if lines.Dropped != 5 || lines.Samples != 0 {
		t.Errorf("expected 5 dropped and 0 samples, got %+v", lines)
	}
	if len(p.pub.Events) != 0 {
		t.Errorf("expected no events, got %v", p.pub.EventTypes())
	}
}

func TestIntegrationPublishFailureDoesNotStopGate(t *testing.T) {
	p := newPipeline("FL:5,FC:5,FR:5")
	p.pub.PublishError = errors.New("broker down")

	p.readOne(t)
	p.advance(t, 300*time.Millisecond)

	if !p.monitor.Status().Emergency {
		t.Fatal("expected emergency despite publish failures")
	}
	if stop, ok := p.gate.Stopped(); !ok || !stop {
		t.Error("expected gate asserted")
	}
}

func TestIntegrationStatusPayloadFormat(t *testing.T) {
	p := newPipeline("FL:10,FC:200,FR:250")
	p.readOne(t)
	p.advance(t, 200*time.Millisecond)

	payload, err := mqtt.FormatStatus(p.monitor.Report(p.now))
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	var parsed mqtt.StatusPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !parsed.Safety.Emergency || !parsed.Safety.Warning {
		t.Errorf("expected both flags, got %+v", parsed.Safety)
	}
	// Warm-up: one sample in a window of five.
	want := mqtt.RangesPayload{Left: 0.02, Center: 0.4, Right: 0.5}
	if parsed.Safety.Ranges != want {
		t.Errorf("ranges: got %+v, want %+v", parsed.Safety.Ranges, want)
	}
}

func TestIntegrationShutdownPayload(t *testing.T) {
	p := newPipeline("FL:10,FC:200,FR:200")
	p.readOne(t)
	p.advance(t, 200*time.Millisecond)

	tracker := status.NewTracker(startTime, "boot-1", status.Config{Window: 5, Broker: "tcp://localhost:1883"})
	tracker.Update(p.monitor, p.now)

	event := mqtt.SystemEvent{
		Timestamp:  p.now,
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", "SIGTERM"),
	}
	if err := p.pub.PublishSystem(event); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.gate.Close(); err != nil {
		t.Fatalf("gate close: %v", err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(p.pub.SystemPayloads[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected event/reason: %s/%s", parsed.Status.Event, parsed.Status.Reason)
	}
	if !parsed.Status.Emergency {
		t.Error("expected emergency in shutdown snapshot")
	}
	if parsed.Status.Counts.EmergencyOn != 1 {
		t.Errorf("expected 1 emergency_on, got %d", parsed.Status.Counts.EmergencyOn)
	}
	if stop, _ := p.gate.Stopped(); !stop {
		t.Error("gate close must leave stop asserted")
	}
}
