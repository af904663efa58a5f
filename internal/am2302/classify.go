package am2302

import "time"

// PulseThreshold separates the sensor's short high pulse (~26-28µs, bit 0)
// from its long one (~70µs, bit 1).
const PulseThreshold = 35 * time.Microsecond

// Classify turns consecutive edge pairs into bits. Only pairs ending in a
// falling edge measure a high pulse and yield a bit; pairs ending in a
// rising edge measure the low gap between bits and are skipped.
func Classify(edges []Edge) []byte {
	if len(edges) < 2 {
		return []byte{}
	}

	bits := make([]byte, 0, len(edges)/2)
	for i := 0; i+1 < len(edges); i++ {
		next := edges[i+1]
		if next.Kind != FallingEdge {
			continue
		}
		if next.Time.Sub(edges[i].Time) > PulseThreshold {
			bits = append(bits, 1)
		} else {
			bits = append(bits, 0)
		}
	}
	return bits
}
