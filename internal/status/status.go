// Package status provides a thread-safe status tracker for the am2302-sensor daemon.
// It is written by the read loop and read by HTTP handlers and MQTT snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/am2302-sensor/internal/am2302"
	"github.com/sweeney/am2302-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Chip        string
	Pin         int
	Backend     string
	IntervalMs  int64
	WindowMs    int64
	MaxEdges    int
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Attempt summarises the most recent reading attempt.
type Attempt struct {
	Time    time.Time
	Outcome string // am2302.Reason label, "ok" on success
	Edges   int
	Bits    int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Reading       am2302.Reading
	HasReading    bool
	RecordedAt    time.Time
	LastAttempt   Attempt
	Lost          bool
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Age returns how old the latest reading is, or zero without one.
func (s Snapshot) Age() time.Duration {
	if !s.HasReading {
		return 0
	}
	return s.Now.Sub(s.RecordedAt)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordAttempt stores the outcome of one attempt. A successful attempt
// replaces the latest reading; a failed one leaves it in place.
func (t *Tracker) RecordAttempt(a am2302.Attempt, err error, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.LastAttempt = Attempt{
		Time:    at,
		Outcome: am2302.Reason(err),
		Edges:   a.Edges,
		Bits:    a.Bits,
	}
	if err == nil {
		t.snap.Reading = a.Reading
		t.snap.HasReading = true
		t.snap.RecordedAt = at
	}
}

// Update sets the policy counters and loss state.
// Called from runLoop after every attempt.
func (t *Tracker) Update(counts logic.Counts, lost bool) {
	t.mu.Lock()
	t.snap.Counts = counts
	t.snap.Lost = lost
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Latest returns the most recent successful reading.
func (t *Tracker) Latest() (am2302.Reading, time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Reading, t.snap.RecordedAt, t.snap.HasReading
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
