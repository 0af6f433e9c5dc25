package main

import (
	"log"
	"sync"

	"github.com/sweeney/rangeguard/internal/logic"
	"github.com/sweeney/rangeguard/internal/mqtt"
)

// outboxSize bounds the queue of transitions and system events.
const outboxSize = 64

// outbox runs publishing on its own goroutine so the control loop never
// waits on a broker. Transitions and system events are sent in order;
// status reports are latest-value, an unsent report is replaced by the next.
type outbox struct {
	pub     mqtt.Publisher
	queue   chan outItem
	reports chan logic.Report
	quit    chan struct{}
	once    sync.Once
}

// outItem is either a transition or a system event.
type outItem struct {
	event  *logic.Event
	system *mqtt.SystemEvent
}

func newOutbox(pub mqtt.Publisher) *outbox {
	return &outbox{
		pub:     pub,
		queue:   make(chan outItem, outboxSize),
		reports: make(chan logic.Report, 1),
		quit:    make(chan struct{}),
	}
}

// Event queues a transition. It never blocks; a full queue drops the event.
func (o *outbox) Event(e logic.Event) {
	o.enqueue(outItem{event: &e}, string(e.Type))
}

// System queues a lifecycle event. It never blocks.
func (o *outbox) System(e mqtt.SystemEvent) {
	o.enqueue(outItem{system: &e}, e.Event)
}

func (o *outbox) enqueue(it outItem, name string) {
	select {
	case o.queue <- it:
	default:
		log.Printf("publish: queue full, dropping %s", name)
	}
}

// Status replaces any report still waiting to be sent. Single producer only.
func (o *outbox) Status(r logic.Report) {
	for {
		select {
		case o.reports <- r:
			return
		default:
		}
		select {
		case <-o.reports:
		default:
		}
	}
}

// Close makes run flush what is queued and return. Safe to call twice.
func (o *outbox) Close() {
	o.once.Do(func() { close(o.quit) })
}

// run publishes until Close.
func (o *outbox) run() error {
	for {
		select {
		case it := <-o.queue:
			o.send(it)
		case r := <-o.reports:
			o.sendStatus(r)
		case <-o.quit:
			o.flush()
			return nil
		}
	}
}

// flush sends the pending report, then the queue in order.
func (o *outbox) flush() {
	select {
	case r := <-o.reports:
		o.sendStatus(r)
	default:
	}
	for {
		select {
		case it := <-o.queue:
			o.send(it)
		default:
			return
		}
	}
}

func (o *outbox) sendStatus(r logic.Report) {
	if err := o.pub.PublishStatus(r); err != nil {
		log.Printf("status publish error: %v", err)
	}
}

func (o *outbox) send(it outItem) {
	switch {
	case it.event != nil:
		if err := o.pub.Publish(*it.event); err != nil {
			log.Printf("publish error: %v", err)
		}
	case it.system != nil:
		if err := o.pub.PublishSystem(*it.system); err != nil {
			log.Printf("failed to publish %s event: %v", it.system.Event, err)
		} else if it.system.Event == "SHUTDOWN" {
			log.Printf("published shutdown event")
		}
	}
}
