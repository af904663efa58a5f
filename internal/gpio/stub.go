//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealChip is not available on non-Linux platforms.
type RealChip struct{}

// NewRealChip returns an error on non-Linux platforms.
func NewRealChip(name string) (*RealChip, error) {
	return nil, errUnsupported
}

// RequestOutput is not implemented on non-Linux platforms.
func (c *RealChip) RequestOutput(offset, initial int, consumer string) (OutputLine, error) {
	return nil, errUnsupported
}

// RequestInput is not implemented on non-Linux platforms.
func (c *RealChip) RequestInput(offset int, consumer string) (InputLine, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *RealChip) Close() error {
	return nil
}

// RpioChip is not available on non-Linux platforms.
type RpioChip struct{}

// NewRpioChip returns an error on non-Linux platforms.
func NewRpioChip() (*RpioChip, error) {
	return nil, errUnsupported
}

// RequestOutput is not implemented on non-Linux platforms.
func (c *RpioChip) RequestOutput(offset, initial int, consumer string) (OutputLine, error) {
	return nil, errUnsupported
}

// RequestInput is not implemented on non-Linux platforms.
func (c *RpioChip) RequestInput(offset int, consumer string) (InputLine, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *RpioChip) Close() error {
	return nil
}
