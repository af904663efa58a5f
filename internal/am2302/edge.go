// Package am2302 reads AM2302/DHT22 humidity and temperature sensors by
// bit-banging their single-wire data line.
//
// A reading attempt sends the host start signal, captures level
// transitions for a bounded window, classifies high pulse widths into bits
// and scans the bits for a 40-bit frame with a valid checksum.
package am2302

import (
	"fmt"
	"time"
)

// EdgeKind is the direction of a level transition.
type EdgeKind int

const (
	RisingEdge EdgeKind = iota + 1
	FallingEdge
)

func (k EdgeKind) String() string {
	switch k {
	case RisingEdge:
		return "rising"
	case FallingEdge:
		return "falling"
	default:
		return fmt.Sprintf("EdgeKind(%d)", int(k))
	}
}

// Edge is a transition observed on the data line.
type Edge struct {
	Time time.Time
	Kind EdgeKind
}

// LevelReader reads the current level of an input line.
type LevelReader interface {
	Value() (int, error)
}

// CaptureConfig bounds a capture.
type CaptureConfig struct {
	// Window is the longest the line is polled.
	Window time.Duration
	// MaxEdges caps the number of recorded edges, whatever the noise.
	MaxEdges int
}

// DefaultCaptureConfig holds room for one transmission: the sensor's
// response pulses plus 40 data bits make 83 transitions.
var DefaultCaptureConfig = CaptureConfig{
	Window:   10 * time.Second,
	MaxEdges: 83,
}

// Capture busy-polls line and records every level transition until the
// window elapses or MaxEdges edges have been recorded. It never writes
// the line. A read failure discards everything captured so far.
func Capture(line LevelReader, cfg CaptureConfig, now func() time.Time) ([]Edge, error) {
	if cfg.MaxEdges <= 0 || cfg.Window <= 0 {
		return []Edge{}, nil
	}

	edges := make([]Edge, 0, cfg.MaxEdges)

	last, err := line.Value()
	if err != nil {
		return nil, fmt.Errorf("read initial level: %w: %w", ErrLineIO, err)
	}

	start := now()
	for now().Sub(start) < cfg.Window {
		level, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read level after %d edges: %w: %w", len(edges), ErrLineIO, err)
		}
		if level == last {
			continue
		}

		kind := FallingEdge
		if level > last {
			kind = RisingEdge
		}
		edges = append(edges, Edge{Time: now(), Kind: kind})
		if len(edges) >= cfg.MaxEdges {
			break
		}
		last = level
	}
	return edges, nil
}
