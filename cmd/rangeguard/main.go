// Command rangeguard fuses ultrasonic range readings from the sensor board
// and drives a debounced emergency stop, publishing safety status to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/rangeguard/internal/config"
	"github.com/sweeney/rangeguard/internal/gpio"
	"github.com/sweeney/rangeguard/internal/logic"
	"github.com/sweeney/rangeguard/internal/mqtt"
	"github.com/sweeney/rangeguard/internal/redisbus"
	"github.com/sweeney/rangeguard/internal/safety"
	"github.com/sweeney/rangeguard/internal/serial"
	"github.com/sweeney/rangeguard/internal/status"
	"github.com/sweeney/rangeguard/internal/web"
)

// options are the process-level flags that are not safety configuration.
type options struct {
	serialDev    string
	baud         int
	serialRetry  time.Duration
	replay       string
	broker       string
	redisAddr    string
	httpAddr     string
	pinStop      int
	gpioChip     string
	heartbeat    time.Duration
	printReading bool
}

func main() {
	flagged := config.Default()
	flagged.BindFlags(flag.CommandLine)

	configPath := flag.String("config", "", "JSON config file overlaid on the defaults (optional)")
	var o options
	flag.StringVar(&o.serialDev, "serial", "/dev/ttyACM0", "Serial device of the sensor board")
	flag.IntVar(&o.baud, "baud", serial.DefaultBaudRate, "Serial baud rate")
	flag.DurationVar(&o.serialRetry, "serial-retry", 2*time.Second, "Delay before reopening the serial device after an error")
	flag.StringVar(&o.replay, "replay", "", `Read recorded lines from this file instead of the serial device ("-" for stdin)`)
	flag.StringVar(&o.broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&o.redisAddr, "redis", "", "Redis address for the safety hash (empty to disable)")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.IntVar(&o.pinStop, "pin-stop", gpio.DefaultPinStop, "BCM pin driving the e-stop line (-1 to disable)")
	flag.StringVar(&o.gpioChip, "gpio-chip", gpio.DefaultChip, "GPIO chip for the e-stop line")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.BoolVar(&o.printReading, "print-reading", false, "Print the first parsed reading and exit")

	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}
	cfg.ApplyFlags(flag.CommandLine, flagged)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}

	if err := run(cfg, o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, o options) error {
	src, device, err := openSource(o)
	if err != nil {
		return err
	}

	// Print reading mode
	if o.printReading {
		defer src.Close()
		return printReading(src, os.Stdout)
	}

	gate, err := openGate(o)
	if err != nil {
		src.Close()
		return err
	}

	bootID := uuid.New().String()
	mqttPub := mqtt.NewRealPublisher(o.broker, "rangeguard-"+bootID[:8])
	pubs := fanout{mqttPub}
	if o.redisAddr != "" {
		rp := redisbus.NewPublisher(o.redisAddr)
		if err := rp.Ping(context.Background()); err != nil {
			log.Printf("redis: %v (will keep trying on publish)", err)
		}
		pubs = append(pubs, rp)
	}
	defer pubs.Close()

	start := time.Now()
	monitor := safety.NewMonitor(cfg.Thresholds(), cfg.FusionWindowSize, start)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(start, bootID, status.Config{
		EmergencyCm: cfg.EmergencyThresholdCm,
		WarningCm:   cfg.WarningThresholdCm,
		Window:      cfg.FusionWindowSize,
		DelayMs:     cfg.Thresholds().Delay.Milliseconds(),
		HoldMs:      cfg.Thresholds().Hold.Milliseconds(),
		PublishMs:   cfg.PublishPeriod().Milliseconds(),
		TickMs:      cfg.TickPeriod().Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Serial:      device,
		Broker:      o.broker,
		Redis:       o.redisAddr,
		HTTPPort:    o.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := pubs.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: source=%s emergency<%vcm warning<%vcm window=%d delay=%v hold=%v broker=%s",
		device, cfg.EmergencyThresholdCm, cfg.WarningThresholdCm, cfg.FusionWindowSize,
		cfg.Thresholds().Delay, cfg.Thresholds().Hold, o.broker)

	tick := time.NewTicker(cfg.TickPeriod())
	defer tick.Stop()
	publish := time.NewTicker(cfg.PublishPeriod())
	defer publish.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	out := newOutbox(pubs)
	l := &loop{
		monitor:    monitor,
		out:        out,
		mqttStatus: mqttPub,
		gate:       gate,
		tracker:    tracker,
		heartbeat:  o.heartbeat,
		now:        time.Now,
	}
	if c, ok := src.(connectionStatus); ok {
		l.serialStatus = c
	}

	transitions := make(chan []logic.Event, 64)
	loopDone := make(chan struct{})

	var g errgroup.Group
	g.Go(out.run)
	g.Go(func() error {
		return runIngest(src, monitor, time.Now, transitions, loopDone)
	})
	g.Go(func() error {
		defer src.Close() // unblocks ReadLine so ingest can drain
		defer close(loopDone)
		// The loop owns the gate; assert stop before the outbox drains.
		defer closeGate(gate)
		return l.run(tick.C, publish.C, transitions, sigCh)
	})
	return g.Wait()
}

func closeGate(gate gpio.Gate) {
	if err := gate.Close(); err != nil {
		log.Printf("gate: close: %v", err)
		return
	}
	log.Printf("gate: stop asserted")
}

// openSource returns the line source and a label for the status page.
func openSource(o options) (serial.Source, string, error) {
	if o.replay != "" {
		src, err := serial.OpenReplay(o.replay)
		if err != nil {
			return nil, "", err
		}
		return src, "replay:" + o.replay, nil
	}

	portOpts := serial.PortOptions{BaudRate: o.baud}
	if _, err := portOpts.Normalize(); err != nil {
		return nil, "", fmt.Errorf("serial options: %w", err)
	}
	listed := false
	open := func() (serial.Source, error) {
		src, err := serial.Open(o.serialDev, portOpts)
		if err != nil {
			if !listed {
				listed = true
				logPorts()
			}
			return nil, err
		}
		return src, nil
	}
	return serial.NewReconnector(open, o.serialRetry), o.serialDev, nil
}

func logPorts() {
	ports, err := serial.ListPorts()
	if err != nil {
		log.Printf("serial: %v", err)
		return
	}
	if len(ports) == 0 {
		log.Printf("serial: no serial ports found")
		return
	}
	log.Printf("serial: available ports: %s", strings.Join(ports, ", "))
}

func openGate(o options) (gpio.Gate, error) {
	if o.pinStop < 0 {
		log.Printf("gate: disabled")
		return gpio.NopGate{}, nil
	}
	g, err := gpio.NewRealGate(o.gpioChip, o.pinStop)
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	return g, nil
}

// runIngest feeds lines into the monitor until the source is closed. A
// failed source ends ingest only; the control loop keeps evaluating the
// last fused values.
func runIngest(src serial.Source, monitor *safety.Monitor, now func() time.Time, out chan<- []logic.Event, done <-chan struct{}) error {
	for {
		line, err := src.ReadLine()
		if err != nil {
			switch {
			case errors.Is(err, serial.ErrClosed):
			case errors.Is(err, io.EOF):
				log.Printf("serial: end of input, ingest stopped")
			default:
				log.Printf("serial: read error: %v, ingest stopped", err)
			}
			return nil
		}

		events := monitor.HandleLine(line, now())
		if len(events) == 0 {
			continue
		}
		select {
		case out <- events:
		case <-done:
			return nil
		}
	}
}

func printReading(src serial.Source, w io.Writer) error {
	for {
		line, err := src.ReadLine()
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		r := logic.ParseLine(line)
		switch r.Kind {
		case logic.ReadingSamples:
			fmt.Fprintf(w, "FL: %dcm, FC: %dcm, FR: %dcm\n",
				r.Samples[logic.Left], r.Samples[logic.Center], r.Samples[logic.Right])
			return nil
		case logic.ReadingStop:
			fmt.Fprintln(w, "STOP")
			return nil
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
