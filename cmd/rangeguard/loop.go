package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/rangeguard/internal/gpio"
	"github.com/sweeney/rangeguard/internal/logic"
	"github.com/sweeney/rangeguard/internal/mqtt"
	"github.com/sweeney/rangeguard/internal/safety"
	"github.com/sweeney/rangeguard/internal/status"
)

// connectionStatus is satisfied by sources and publishers that can report
// whether their transport is up.
type connectionStatus interface {
	IsConnected() bool
}

// loop is the control goroutine: timer transitions, status cadence,
// transition fan-out, gate output, heartbeat and shutdown. Network I/O
// goes through the outbox; the loop itself only touches the monitor and
// the gate.
type loop struct {
	monitor      *safety.Monitor
	out          *outbox
	mqttStatus   mqtt.ConnectionStatus // may be nil
	serialStatus connectionStatus      // may be nil
	gate         gpio.Gate
	tracker      *status.Tracker // may be nil
	heartbeat    time.Duration
	now          func() time.Time

	gateSet   bool // a write has succeeded at least once
	gateDirty bool // last gate write failed
	gateStop  bool
}

func (l *loop) run(tick, publish <-chan time.Time, transitions <-chan []logic.Event, sig <-chan os.Signal) error {
	defer l.out.Close()
	l.syncGate()

	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case events := <-transitions:
			l.handle(events, l.now())

		case <-tick:
			t := l.now()
			l.handle(l.monitor.Tick(t), t)
			l.checkHeartbeat(t)

		case <-publish:
			l.syncGate()
			l.publishStatus(l.now())
		}
	}
}

// handle fans out transitions. Batches from ingest can arrive after a
// later tick transition, so the gate follows the monitor, not the events.
func (l *loop) handle(events []logic.Event, t time.Time) {
	l.syncGate()

	flagChanged := false
	for _, event := range events {
		log.Printf("event: %s (reason=%s emergency=%t warning=%t)",
			event.Type, event.Reason, event.Status.Emergency, event.Status.Warning)
		if event.IsEmergencyFlag() {
			flagChanged = true
		}
		l.out.Event(event)
	}

	if flagChanged {
		l.publishStatus(t)
	}
}

// syncGate drives the gate from the monitor's current state. It writes
// only on a change or to retry a failed write.
func (l *loop) syncGate() {
	stop := l.monitor.MotionInhibited()
	if l.gateSet && !l.gateDirty && stop == l.gateStop {
		return
	}
	l.gateStop = stop
	if err := l.gate.Set(stop); err != nil {
		log.Printf("gate: set stop=%t: %v", stop, err)
		l.gateDirty = true
		return
	}
	l.gateSet = true
	l.gateDirty = false
}

func (l *loop) publishStatus(t time.Time) {
	l.out.Status(l.monitor.Report(t))
	l.refreshTracker(t)
}

// refreshTracker updates the status tracker for HTTP consumers.
func (l *loop) refreshTracker(t time.Time) {
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.monitor, t)
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
	if l.serialStatus != nil {
		l.tracker.SetSerialConnected(l.serialStatus.IsConnected())
	}
}

func (l *loop) checkHeartbeat(t time.Time) {
	hbData := l.monitor.CheckHeartbeat(t, l.heartbeat)
	if hbData == nil {
		return
	}
	counts, lines := l.monitor.Counts()
	log.Printf("heartbeat: uptime=%v emergency_on=%d emergency_off=%d warning_on=%d warning_off=%d stops=%d samples=%d dropped=%d",
		hbData.Uptime, counts.EmergencyOn, counts.EmergencyOff, counts.WarningOn, counts.WarningOff,
		counts.StopSignals, lines.Samples, lines.Dropped)

	hbEvent := mqtt.SystemEvent{
		Timestamp: hbData.Timestamp,
		Event:     "HEARTBEAT",
	}
	if l.tracker != nil {
		// Refresh network info for heartbeat
		if net := readNetworkInfo(); net != nil {
			l.tracker.SetNetwork(net)
		}
		l.refreshTracker(t)
		hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
	}
	l.out.System(hbEvent)
}

func (l *loop) shutdown(s os.Signal) {
	log.Printf("received %v, shutting down", s)
	name := signalName(s)
	t := l.now()

	event := mqtt.SystemEvent{
		Timestamp: t,
		Event:     "SHUTDOWN",
		Reason:    name,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refreshTracker(t)
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", name)
	}
	l.out.System(event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
