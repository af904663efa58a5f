// Package gpio provides single-line GPIO access with hardware abstraction.
// The real implementations use the Linux GPIO character device or the
// memory-mapped BCM2835 registers. The fake implementation allows testing
// without hardware.
package gpio

// Logical line levels.
const (
	Low  = 0
	High = 1
)

// Defaults for a Raspberry Pi with the sensor data pin on GPIO4 (header pin 7).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 4
)

// Chip hands out exclusive access to individual lines.
type Chip interface {
	// RequestOutput claims the line as an output driven to initial.
	// consumer is the label shown by tools such as gpioinfo.
	RequestOutput(offset, initial int, consumer string) (OutputLine, error)

	// RequestInput claims the line as an input.
	RequestInput(offset int, consumer string) (InputLine, error)

	// Close releases the chip.
	Close() error
}

// OutputLine is a line claimed for output.
type OutputLine interface {
	SetValue(value int) error
	Close() error
}

// InputLine is a line claimed for input.
type InputLine interface {
	// Value returns the current level, Low or High.
	Value() (int, error)
	Close() error
}
