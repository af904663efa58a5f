package logic

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sweeney/am2302-sensor/internal/am2302"
)

var start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

var defaultPolicy = Policy{
	TempDelta:     2,  // 0.2°C
	HumidityDelta: 10, // 1.0%RH
	MaxSilence:    5 * time.Minute,
	LostAfter:     3,
}

func ok(temp int16, hum uint16, at time.Time) Input {
	r := am2302.Reading{Temperature: temp, Humidity: hum}
	return Input{Reading: &r, Time: at}
}

func failed(at time.Time) Input {
	return Input{Err: fmt.Errorf("decode: %w", am2302.ErrNoValidFrame), Time: at}
}

func TestNewReporter(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	if r == nil {
		t.Fatal("NewReporter returned nil")
	}
	if r.IsBaselined() {
		t.Error("new reporter should not be baselined")
	}
	if r.IsLost() {
		t.Error("new reporter should not be lost")
	}
	if !r.lastHeartbeat.Equal(start) {
		t.Errorf("expected lastHeartbeat %v, got %v", start, r.lastHeartbeat)
	}
	if _, _, has := r.Latest(); has {
		t.Error("new reporter should have no reading")
	}
}

func TestFirstReadingIsPublished(t *testing.T) {
	r := NewReporter(defaultPolicy, start)

	events := r.Process(ok(215, 480, start))
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventReading {
		t.Errorf("expected READING, got %s", e.Type)
	}
	if e.Reading == nil || e.Reading.Temperature != 215 || e.Reading.Humidity != 480 {
		t.Errorf("unexpected reading: %+v", e.Reading)
	}
	if !e.Timestamp.Equal(start) {
		t.Errorf("expected timestamp %v, got %v", start, e.Timestamp)
	}
	if !r.IsBaselined() {
		t.Error("should be baselined after first reading")
	}
}

func TestUnchangedReadingIsNotPublished(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	for i := 1; i <= 5; i++ {
		events := r.Process(ok(215, 480, start.Add(time.Duration(i)*2*time.Second)))
		if len(events) != 0 {
			t.Errorf("attempt %d: expected no events, got %d", i, len(events))
		}
	}
	if got := r.CountsSnapshot(); got.Readings != 6 || got.Published != 1 {
		t.Errorf("unexpected counts: %+v", got)
	}
}

func TestSmallDriftIsNotPublished(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	if events := r.Process(ok(216, 485, start.Add(2*time.Second))); len(events) != 0 {
		t.Errorf("expected drift below thresholds to be ignored, got %d events", len(events))
	}
}

func TestTemperatureChangeIsPublished(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	events := r.Process(ok(213, 480, start.Add(2*time.Second)))
	if len(events) != 1 || events[0].Type != EventReading {
		t.Fatalf("expected one READING, got %+v", events)
	}
	if events[0].Reading.Temperature != 213 {
		t.Errorf("expected new temperature, got %d", events[0].Reading.Temperature)
	}
}

func TestHumidityChangeIsPublished(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	events := r.Process(ok(215, 490, start.Add(2*time.Second)))
	if len(events) != 1 || events[0].Type != EventReading {
		t.Fatalf("expected one READING, got %+v", events)
	}
}

func TestDriftAccumulatesAgainstLastPublished(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	// Each step is below the threshold but the total is not.
	if events := r.Process(ok(216, 480, start.Add(2*time.Second))); len(events) != 0 {
		t.Fatalf("step 1: expected no events, got %d", len(events))
	}
	events := r.Process(ok(217, 480, start.Add(4*time.Second)))
	if len(events) != 1 {
		t.Fatalf("step 2: expected accumulated drift to publish, got %d events", len(events))
	}
}

func TestNegativeTemperatureDelta(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(1, 480, start))

	events := r.Process(ok(-1, 480, start.Add(2*time.Second)))
	if len(events) != 1 {
		t.Errorf("expected crossing zero by 0.2°C to publish, got %d events", len(events))
	}
}

func TestZeroDeltaPublishesEveryChange(t *testing.T) {
	r := NewReporter(Policy{}, start)
	r.Process(ok(215, 480, start))

	if events := r.Process(ok(215, 480, start.Add(2*time.Second))); len(events) != 0 {
		t.Errorf("unchanged reading: expected no events, got %d", len(events))
	}
	if events := r.Process(ok(215, 481, start.Add(4*time.Second))); len(events) != 1 {
		t.Errorf("0.1%%RH change: expected 1 event, got %d", len(events))
	}
}

func TestMaxSilenceRepublishes(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	if events := r.Process(ok(215, 480, start.Add(5*time.Minute-time.Second))); len(events) != 0 {
		t.Errorf("before MaxSilence: expected no events, got %d", len(events))
	}
	events := r.Process(ok(215, 480, start.Add(5*time.Minute)))
	if len(events) != 1 || events[0].Type != EventReading {
		t.Fatalf("at MaxSilence: expected READING, got %+v", events)
	}
	if events := r.Process(ok(215, 480, start.Add(6*time.Minute))); len(events) != 0 {
		t.Errorf("silence timer should restart after publish, got %d events", len(events))
	}
}

func TestMaxSilenceDisabled(t *testing.T) {
	p := defaultPolicy
	p.MaxSilence = 0
	r := NewReporter(p, start)
	r.Process(ok(215, 480, start))

	if events := r.Process(ok(215, 480, start.Add(24*time.Hour))); len(events) != 0 {
		t.Errorf("expected no republish with MaxSilence=0, got %d events", len(events))
	}
}

func TestFailuresBeforeLostAfter(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	for i := 1; i < defaultPolicy.LostAfter; i++ {
		if events := r.Process(failed(start.Add(time.Duration(i) * 2 * time.Second))); len(events) != 0 {
			t.Errorf("failure %d: expected no events, got %d", i, len(events))
		}
	}
	if r.IsLost() {
		t.Error("should not be lost yet")
	}
}

func TestSensorLost(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	var events []Event
	for i := 1; i <= defaultPolicy.LostAfter; i++ {
		events = r.Process(failed(start.Add(time.Duration(i) * 2 * time.Second)))
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventSensorLost {
		t.Errorf("expected SENSOR_LOST, got %s", e.Type)
	}
	if e.Failures != 3 {
		t.Errorf("expected 3 failures, got %d", e.Failures)
	}
	if e.Reason != "no_valid_frame" {
		t.Errorf("expected reason no_valid_frame, got %q", e.Reason)
	}
	if e.Reading == nil || e.Reading.Temperature != 215 {
		t.Errorf("expected last good reading, got %+v", e.Reading)
	}
	if !r.IsLost() {
		t.Error("should be lost")
	}

	// Further failures do not repeat the event.
	if events := r.Process(failed(start.Add(time.Minute))); len(events) != 0 {
		t.Errorf("expected SENSOR_LOST only once, got %d events", len(events))
	}
	if got := r.CountsSnapshot(); got.Failures != 4 || got.Lost != 1 {
		t.Errorf("unexpected counts: %+v", got)
	}
}

func TestSensorLostBeforeFirstReading(t *testing.T) {
	r := NewReporter(defaultPolicy, start)

	var events []Event
	for i := 0; i < defaultPolicy.LostAfter; i++ {
		events = r.Process(Input{Err: errors.New("line busy"), Time: start.Add(time.Duration(i) * time.Second)})
	}

	if len(events) != 1 || events[0].Type != EventSensorLost {
		t.Fatalf("expected SENSOR_LOST, got %+v", events)
	}
	if events[0].Reading != nil {
		t.Errorf("expected no reading, got %+v", events[0].Reading)
	}
	if events[0].Reason != "unknown" {
		t.Errorf("expected reason unknown, got %q", events[0].Reason)
	}
}

func TestSensorRecovered(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))
	for i := 1; i <= defaultPolicy.LostAfter; i++ {
		r.Process(failed(start.Add(time.Duration(i) * 2 * time.Second)))
	}

	// Same values as before the loss: still published after recovery.
	events := r.Process(ok(215, 480, start.Add(time.Minute)))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventSensorRecovered {
		t.Errorf("event 0: expected SENSOR_RECOVERED, got %s", events[0].Type)
	}
	if events[1].Type != EventReading {
		t.Errorf("event 1: expected READING, got %s", events[1].Type)
	}
	if r.IsLost() {
		t.Error("should no longer be lost")
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	r.Process(failed(start.Add(2 * time.Second)))
	r.Process(failed(start.Add(4 * time.Second)))
	r.Process(ok(215, 480, start.Add(6*time.Second)))
	r.Process(failed(start.Add(8 * time.Second)))
	if events := r.Process(failed(start.Add(10 * time.Second))); len(events) != 0 {
		t.Errorf("streak should have restarted, got %+v", events)
	}
}

func TestLostAfterDisabled(t *testing.T) {
	p := defaultPolicy
	p.LostAfter = 0
	r := NewReporter(p, start)

	for i := 0; i < 100; i++ {
		if events := r.Process(failed(start.Add(time.Duration(i) * time.Second))); len(events) != 0 {
			t.Fatalf("failure %d: expected no events, got %d", i, len(events))
		}
	}
}

func TestLatest(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))
	r.Process(ok(216, 481, start.Add(2*time.Second)))
	r.Process(failed(start.Add(4 * time.Second)))

	reading, at, has := r.Latest()
	if !has {
		t.Fatal("expected a reading")
	}
	// The latest reading is tracked even when it was not published.
	if reading.Temperature != 216 || reading.Humidity != 481 {
		t.Errorf("unexpected reading: %+v", reading)
	}
	if !at.Equal(start.Add(2 * time.Second)) {
		t.Errorf("unexpected time: %v", at)
	}
}

func TestEventReadingIsACopy(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	in := ok(215, 480, start)
	events := r.Process(in)

	in.Reading.Temperature = 999
	if events[0].Reading.Temperature != 215 {
		t.Error("event reading should not alias the input")
	}
}

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))

	if hb := r.CheckHeartbeat(start.Add(time.Hour), 0); hb != nil {
		t.Error("expected nil heartbeat with zero interval")
	}
	if hb := r.CheckHeartbeat(start.Add(time.Hour), -time.Minute); hb != nil {
		t.Error("expected nil heartbeat with negative interval")
	}
}

func TestCheckHeartbeatBeforeFirstReading(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(failed(start.Add(time.Second)))

	hb := r.CheckHeartbeat(start.Add(15*time.Minute), 15*time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat even without a reading")
	}
	if hb.Counts.Failures != 1 {
		t.Errorf("expected 1 failure, got %d", hb.Counts.Failures)
	}
}

func TestCheckHeartbeatInterval(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	interval := 15 * time.Minute

	if hb := r.CheckHeartbeat(start.Add(interval-time.Second), interval); hb != nil {
		t.Error("expected nil before interval")
	}

	hb := r.CheckHeartbeat(start.Add(interval), interval)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != interval {
		t.Errorf("expected uptime %v, got %v", interval, hb.Uptime)
	}
	if !hb.Timestamp.Equal(start.Add(interval)) {
		t.Errorf("unexpected timestamp %v", hb.Timestamp)
	}

	if hb := r.CheckHeartbeat(start.Add(interval+time.Minute), interval); hb != nil {
		t.Error("expected nil right after a heartbeat")
	}
	hb = r.CheckHeartbeat(start.Add(2*interval), interval)
	if hb == nil {
		t.Fatal("expected second heartbeat")
	}
	if hb.Uptime != 2*interval {
		t.Errorf("expected uptime %v, got %v", 2*interval, hb.Uptime)
	}
}

func TestHeartbeatContainsCounts(t *testing.T) {
	r := NewReporter(defaultPolicy, start)
	r.Process(ok(215, 480, start))
	r.Process(ok(215, 480, start.Add(2*time.Second)))
	r.Process(ok(240, 480, start.Add(4*time.Second)))
	r.Process(failed(start.Add(6 * time.Second)))

	hb := r.CheckHeartbeat(start.Add(time.Hour), time.Minute)
	if hb == nil {
		t.Fatal("expected heartbeat")
	}
	want := Counts{Readings: 3, Failures: 1, Published: 2}
	if hb.Counts != want {
		t.Errorf("expected %+v, got %+v", want, hb.Counts)
	}
}
