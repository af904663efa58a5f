package am2302

import (
	"time"

	"github.com/sweeney/am2302-sensor/internal/gpio"
)

// Nominal timings of a transmission as seen by the host after it releases
// the bus, from the AM2302 datasheet.
const (
	busReleaseHigh = 20 * time.Microsecond
	responseLow    = 80 * time.Microsecond
	responseHigh   = 80 * time.Microsecond
	bitLow         = 50 * time.Microsecond
	zeroHigh       = 26 * time.Microsecond
	oneHigh        = 70 * time.Microsecond
	trailerLow     = 50 * time.Microsecond
)

// Transmission returns the line segments a sensor drives to send f,
// starting from the moment the host releases the bus. Play it back with
// gpio.Waveform (Idle: gpio.High) to simulate a sensor.
func Transmission(f Frame) []gpio.Segment {
	segs := []gpio.Segment{
		{Level: gpio.High, Duration: busReleaseHigh},
		{Level: gpio.Low, Duration: responseLow},
		{Level: gpio.High, Duration: responseHigh},
	}
	for _, b := range f.Bits() {
		high := zeroHigh
		if b == 1 {
			high = oneHigh
		}
		segs = append(segs,
			gpio.Segment{Level: gpio.Low, Duration: bitLow},
			gpio.Segment{Level: gpio.High, Duration: high},
		)
	}
	return append(segs, gpio.Segment{Level: gpio.Low, Duration: trailerLow})
}

// Encode builds the frame that carries r, checksum included.
func Encode(r Reading) Frame {
	t := uint16(r.Temperature)
	if r.Temperature < 0 {
		t = uint16(-r.Temperature) | 0x8000
	}
	f := Frame{byte(r.Humidity >> 8), byte(r.Humidity), byte(t >> 8), byte(t)}
	f[4] = f.Checksum()
	return f
}
