package am2302

import (
	"fmt"
	"strconv"
)

// FrameBits is the length of one sensor transmission.
const FrameBits = 40

// Frame is one transmission:
// humidity high/low, temperature high/low, checksum.
type Frame [5]byte

// Checksum returns the low byte of the sum of the four data bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the transmitted checksum matches the data bytes.
func (f Frame) Valid() bool {
	return f.Checksum() == f[4]
}

// Reading decodes a valid frame.
func (f Frame) Reading() (Reading, error) {
	if !f.Valid() {
		return Reading{}, fmt.Errorf("%w: got %#02x, want %#02x", ErrChecksumMismatch, f[4], f.Checksum())
	}

	humidity := uint16(f[0])<<8 | uint16(f[1])

	// Bit 15 is a sign flag, not two's complement.
	magnitude := int16(f[2]&0x7f)<<8 | int16(f[3])
	if f[2]&0x80 != 0 {
		magnitude = -magnitude
	}

	return Reading{Temperature: magnitude, Humidity: humidity}, nil
}

// Bits returns the frame as 40 bits, most significant first.
func (f Frame) Bits() []byte {
	bits := make([]byte, 0, FrameBits)
	for _, b := range f {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>i)&1)
		}
	}
	return bits
}

// PackFrame packs the first 40 bits, most significant bit first within
// each byte. Any non-zero value counts as a 1. bits must hold at least
// FrameBits values.
func PackFrame(bits []byte) Frame {
	var f Frame
	for i := 0; i < FrameBits; i++ {
		f[i/8] <<= 1
		if bits[i] != 0 {
			f[i/8] |= 1
		}
	}
	return f
}

// FindFrame slides a 40-bit window over bits, one bit at a time, and
// returns the first window whose checksum validates together with its
// offset. Leading noise bits are skipped this way.
func FindFrame(bits []byte) (int, Frame, error) {
	if len(bits) < FrameBits {
		return 0, Frame{}, fmt.Errorf("%w: %d bits, need %d", ErrInsufficientData, len(bits), FrameBits)
	}

	windows := len(bits) - FrameBits + 1
	for off := 0; off < windows; off++ {
		f := PackFrame(bits[off : off+FrameBits])
		if f.Valid() {
			return off, f, nil
		}
	}
	return 0, Frame{}, fmt.Errorf("%w: %d windows checked over %d bits", ErrNoValidFrame, windows, len(bits))
}

// Decode returns the reading carried by the first valid window of bits.
func Decode(bits []byte) (Reading, error) {
	_, f, err := FindFrame(bits)
	if err != nil {
		return Reading{}, err
	}
	return f.Reading()
}

// Reading is a decoded measurement in fixed point tenths.
type Reading struct {
	// Temperature in tenths of a degree Celsius.
	Temperature int16
	// Humidity in tenths of a percent relative humidity.
	Humidity uint16
}

// Celsius returns the temperature in degrees Celsius.
func (r Reading) Celsius() float64 {
	return float64(r.Temperature) / 10
}

// RelativeHumidity returns the humidity in percent.
func (r Reading) RelativeHumidity() float64 {
	return float64(r.Humidity) / 10
}

func (r Reading) String() string {
	return strconv.FormatFloat(r.Celsius(), 'f', 1, 64) + "°C " +
		strconv.FormatFloat(r.RelativeHumidity(), 'f', 1, 64) + "%RH"
}
