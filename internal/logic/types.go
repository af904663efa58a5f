// Package logic contains the pure publish policy for sensor readings.
// This package does NO I/O (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/am2302-sensor/internal/am2302"
)

// EventType is the kind of event to be published.
type EventType string

const (
	EventReading         EventType = "READING"
	EventSensorLost      EventType = "SENSOR_LOST"
	EventSensorRecovered EventType = "SENSOR_RECOVERED"
)

// Event is something worth publishing.
type Event struct {
	Timestamp time.Time
	Type      EventType
	// Reading is the new reading for READING, the last good one otherwise.
	// nil if the sensor has never answered.
	Reading *am2302.Reading
	// Failures is the number of consecutive failed attempts (SENSOR_LOST only).
	Failures int
	// Reason labels the last failure (SENSOR_LOST only).
	Reason string
}

// Input is the outcome of one reading attempt.
type Input struct {
	Reading *am2302.Reading // nil if the attempt failed
	Err     error
	Time    time.Time
}

// Policy controls when readings are published.
type Policy struct {
	// TempDelta is the temperature change, in tenths of a degree, that
	// triggers a publish. Zero publishes every change.
	TempDelta int
	// HumidityDelta is the humidity change, in tenths of a percent, that
	// triggers a publish. Zero publishes every change.
	HumidityDelta int
	// MaxSilence republishes an unchanged reading once this long has
	// passed since the last publish. Zero disables.
	MaxSilence time.Duration
	// LostAfter is the number of consecutive failures that raise
	// SENSOR_LOST. Zero disables.
	LostAfter int
}

// Counts tracks attempt and publish totals since startup.
type Counts struct {
	Readings  int
	Failures  int
	Published int
	Lost      int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
