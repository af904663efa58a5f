//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealChip accesses lines through the Linux GPIO character device.
type RealChip struct {
	chip *gpiocdev.Chip
}

// NewRealChip opens the named chip, e.g. "gpiochip0".
func NewRealChip(name string) (*RealChip, error) {
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &RealChip{chip: chip}, nil
}

// RequestOutput claims the line as an output driven to initial.
func (c *RealChip) RequestOutput(offset, initial int, consumer string) (OutputLine, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsOutput(initial), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request output line %d: %w", offset, err)
	}
	return line, nil
}

// RequestInput claims the line as an input. No bias is applied; the
// sensor module carries its own pull-up.
func (c *RealChip) RequestInput(offset int, consumer string) (InputLine, error) {
	line, err := c.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request input line %d: %w", offset, err)
	}
	return line, nil
}

// Close releases the chip. Lines must be closed separately.
func (c *RealChip) Close() error {
	if c.chip == nil {
		return nil
	}
	if err := c.chip.Close(); err != nil {
		return fmt.Errorf("close chip: %w", err)
	}
	return nil
}
