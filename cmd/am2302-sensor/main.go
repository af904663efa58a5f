// Command am2302-sensor reads an AM2302 (DHT22) temperature and humidity
// sensor over a single GPIO line and publishes readings to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sweeney/am2302-sensor/internal/am2302"
	"github.com/sweeney/am2302-sensor/internal/gpio"
	"github.com/sweeney/am2302-sensor/internal/logic"
	"github.com/sweeney/am2302-sensor/internal/metrics"
	"github.com/sweeney/am2302-sensor/internal/mqtt"
	"github.com/sweeney/am2302-sensor/internal/status"
	"github.com/sweeney/am2302-sensor/internal/web"
)

// options holds the parsed command line.
type options struct {
	chip         string
	pin          int
	backend      string
	interval     time.Duration
	session      am2302.Config
	broker       string
	heartbeat    time.Duration
	policy       logic.Policy
	httpAddr     string
	printReading bool
}

func main() {
	var o options
	o.session = am2302.DefaultConfig
	var tempDelta, humidityDelta float64

	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip name (cdev backend)")
	flag.IntVar(&o.pin, "pin", gpio.DefaultPin, "BCM line offset of the sensor data pin")
	flag.StringVar(&o.backend, "backend", "cdev", `GPIO backend: "cdev" (character device) or "rpio" (/dev/gpiomem)`)
	flag.DurationVar(&o.interval, "interval", 2*time.Second, "Delay between reading attempts (the sensor needs at least 2s)")
	flag.DurationVar(&o.session.Capture.Window, "window", am2302.DefaultCaptureConfig.Window, "Capture window per attempt")
	flag.IntVar(&o.session.Capture.MaxEdges, "max-edges", am2302.DefaultCaptureConfig.MaxEdges, "Stop capturing after this many edges")
	flag.DurationVar(&o.session.StartSignal, "start-signal", am2302.DefaultConfig.StartSignal, "How long the host holds the line low")
	flag.BoolVar(&o.session.PauseGC, "pause-gc", am2302.DefaultConfig.PauseGC, "Pause the garbage collector during capture")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.Float64Var(&tempDelta, "temp-delta", 0.2, "Temperature change in °C that triggers a publish")
	flag.Float64Var(&humidityDelta, "humidity-delta", 1.0, "Humidity change in %RH that triggers a publish")
	flag.DurationVar(&o.policy.MaxSilence, "max-silence", 5*time.Minute, "Republish an unchanged reading after this long (0 to disable)")
	flag.IntVar(&o.policy.LostAfter, "lost-after", 5, "Consecutive failures before SENSOR_LOST (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.BoolVar(&o.printReading, "print-reading", false, "Take one reading, print it and exit")

	flag.Parse()

	o.policy.TempDelta = tenths(tempDelta)
	o.policy.HumidityDelta = tenths(humidityDelta)

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// tenths converts a flag value in whole units to the sensor's fixed point.
func tenths(v float64) int {
	return int(math.Round(v * 10))
}

func openChip(backend, name string) (gpio.Chip, error) {
	switch backend {
	case "cdev":
		return gpio.NewRealChip(name)
	case "rpio":
		return gpio.NewRpioChip()
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func run(o options) error {
	chip, err := openChip(o.backend, o.chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()

	session := am2302.NewSession(chip, o.session)

	// Print reading mode
	if o.printReading {
		a, err := session.Attempt(o.pin)
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Printf("%s (edges=%d bits=%d offset=%d took=%v)\n",
			a.Reading, a.Edges, a.Bits, a.Offset, a.Duration.Round(time.Millisecond))
		return nil
	}

	// Initialize MQTT. Publisher stays nil when disabled.
	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Chip:        o.chip,
		Pin:         o.pin,
		Backend:     o.backend,
		IntervalMs:  o.interval.Milliseconds(),
		WindowMs:    o.session.Capture.Window.Milliseconds(),
		MaxEdges:    o.session.Capture.MaxEdges,
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Publish startup event with full status snapshot
	if publisher != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.SystemEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := publisher.PublishSystem(startupEvent); err != nil {
			log.Printf("failed to publish startup event: %v", err)
		} else {
			log.Printf("published startup event")
		}
	}

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker,
			web.WithMetrics(metrics.Handler(reg), m),
			web.WithAccessLog(os.Stdout))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	log.Printf("started: backend=%s chip=%s pin=%d interval=%v window=%v broker=%q heartbeat=%v",
		o.backend, o.chip, o.pin, o.interval, o.session.Capture.Window, o.broker, o.heartbeat)

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		reader:     session,
		pin:        o.pin,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    m,
		reporter:   logic.NewReporter(o.policy, time.Now()),
		heartbeat:  o.heartbeat,
		now:        time.Now,
	}
	err = l.run(ticker.C, sigCh)

	if p, ok := publisher.(interface{ Pending() int }); ok && p.Pending() > 0 {
		log.Printf("mqtt: %d messages still queued at shutdown", p.Pending())
	}
	return err
}

// reader performs one reading attempt.
type reader interface {
	Attempt(offset int) (am2302.Attempt, error)
}

// loop owns the per-tick work: attempt, policy, publish, status.
// publisher, mqttStatus, tracker and metrics may be nil.
type loop struct {
	reader     reader
	pin        int
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	reporter   *logic.Reporter
	heartbeat  time.Duration
	now        func() time.Time
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(s)
			return nil

		case <-tick:
			l.step()
		}
	}
}

func (l *loop) step() {
	a, err := l.reader.Attempt(l.pin)
	t := l.now()

	in := logic.Input{Err: err, Time: t}
	if err != nil {
		log.Printf("read failed: %v (edges=%d bits=%d)", err, a.Edges, a.Bits)
	} else {
		r := a.Reading
		in.Reading = &r
	}
	l.metrics.ObserveAttempt(a, err)
	if l.tracker != nil {
		l.tracker.RecordAttempt(a, err, t)
	}

	for _, event := range l.reporter.Process(in) {
		l.metrics.ObserveEvent(event)
		switch event.Type {
		case logic.EventSensorLost:
			log.Printf("event: %s after %d failures (%s)", event.Type, event.Failures, event.Reason)
		default:
			log.Printf("event: %s %s", event.Type, event.Reading)
		}
		if l.publisher == nil {
			continue
		}
		if err := l.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}

	// Update status tracker for HTTP consumers
	l.refreshStatus()

	if hbData := l.reporter.CheckHeartbeat(t, l.heartbeat); hbData != nil {
		log.Printf("heartbeat: uptime=%v readings=%d failures=%d published=%d",
			hbData.Uptime, hbData.Counts.Readings, hbData.Counts.Failures, hbData.Counts.Published)

		if l.publisher == nil {
			return
		}
		hbEvent := mqtt.SystemEvent{
			Timestamp: hbData.Timestamp,
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			// Refresh network info for heartbeat
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}
}

func (l *loop) refreshStatus() {
	connected := l.mqttStatus != nil && l.mqttStatus.IsConnected()
	l.metrics.SetMQTTConnected(connected)
	if l.tracker == nil {
		return
	}
	l.tracker.Update(l.reporter.CountsSnapshot(), l.reporter.IsLost())
	l.tracker.SetMQTTConnected(connected)
}

func (l *loop) shutdown(s os.Signal) {
	if l.publisher == nil {
		return
	}
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: l.now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		l.refreshStatus()
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
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
