package logic

import (
	"time"

	"github.com/sweeney/am2302-sensor/internal/am2302"
)

// Reporter turns attempt outcomes into publishable events.
type Reporter struct {
	policy    Policy
	startTime time.Time

	baselined       bool
	lastPublished   am2302.Reading
	lastPublishedAt time.Time

	hasReading  bool
	lastReading am2302.Reading
	lastAt      time.Time

	failures int // consecutive
	lost     bool

	counts        Counts
	lastHeartbeat time.Time
}

// NewReporter creates a Reporter with the given policy.
// The startTime is used for calculating uptime in heartbeat events.
func NewReporter(policy Policy, startTime time.Time) *Reporter {
	return &Reporter{
		policy:        policy,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes the outcome of an attempt and returns any events that
// should be published. The first reading is always published; after that
// only significant changes, readings after a long silence, and sensor
// loss or recovery are.
func (r *Reporter) Process(in Input) []Event {
	if in.Reading == nil {
		return r.processFailure(in)
	}

	reading := *in.Reading
	r.counts.Readings++
	r.failures = 0
	r.hasReading = true
	r.lastReading = reading
	r.lastAt = in.Time

	var events []Event
	recovered := r.lost
	if recovered {
		r.lost = false
		events = append(events, Event{
			Timestamp: in.Time,
			Type:      EventSensorRecovered,
			Reading:   &reading,
		})
	}

	if !r.baselined || recovered || r.significant(reading) || r.silent(in.Time) {
		r.baselined = true
		r.lastPublished = reading
		r.lastPublishedAt = in.Time
		r.counts.Published++
		events = append(events, Event{
			Timestamp: in.Time,
			Type:      EventReading,
			Reading:   &reading,
		})
	}
	return events
}

func (r *Reporter) processFailure(in Input) []Event {
	r.counts.Failures++
	r.failures++

	if r.lost || r.policy.LostAfter <= 0 || r.failures < r.policy.LostAfter {
		return nil
	}

	r.lost = true
	r.counts.Lost++
	e := Event{
		Timestamp: in.Time,
		Type:      EventSensorLost,
		Failures:  r.failures,
		Reason:    am2302.Reason(in.Err),
	}
	if r.hasReading {
		last := r.lastReading
		e.Reading = &last
	}
	return []Event{e}
}

// significant reports whether reading moved far enough from the last
// published one. A zero delta counts any change.
func (r *Reporter) significant(reading am2302.Reading) bool {
	dt := abs(int(reading.Temperature) - int(r.lastPublished.Temperature))
	dh := abs(int(reading.Humidity) - int(r.lastPublished.Humidity))
	return dt >= max(r.policy.TempDelta, 1) || dh >= max(r.policy.HumidityDelta, 1)
}

func (r *Reporter) silent(now time.Time) bool {
	return r.policy.MaxSilence > 0 && now.Sub(r.lastPublishedAt) >= r.policy.MaxSilence
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// IsBaselined returns whether a reading has been published yet.
func (r *Reporter) IsBaselined() bool {
	return r.baselined
}

// IsLost returns whether SENSOR_LOST is in effect.
func (r *Reporter) IsLost() bool {
	return r.lost
}

// Latest returns the last successful reading and when it was taken.
func (r *Reporter) Latest() (am2302.Reading, time.Time, bool) {
	return r.lastReading, r.lastAt, r.hasReading
}

// CountsSnapshot returns a copy of the counters.
func (r *Reporter) CountsSnapshot() Counts {
	return r.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since
// the last heartbeat (or startup). Returns nil if the interval has not
// elapsed or is <= 0 (disabled). Heartbeats do not wait for a first
// reading so a sensor that never answers is still visible.
func (r *Reporter) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(r.lastHeartbeat) < interval {
		return nil
	}

	r.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(r.startTime),
		Counts:    r.counts,
	}
}
