package am2302

import "errors"

// Errors reported by a reading attempt. They are wrapped with context;
// test with errors.Is.
var (
	// ErrLineAcquisition means the GPIO layer refused the line.
	ErrLineAcquisition = errors.New("line acquisition failed")

	// ErrLineIO means a read or write on an acquired line failed.
	ErrLineIO = errors.New("line io failed")

	// ErrInsufficientData means fewer than 40 bits were classified.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrChecksumMismatch means a 40-bit window failed checksum validation.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrNoValidFrame means no window of the bit sequence validated.
	ErrNoValidFrame = errors.New("no valid frame")
)

// Reason returns a short label for err, suitable for logs and metric labels.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrLineAcquisition):
		return "line_acquisition"
	case errors.Is(err, ErrLineIO):
		return "line_io"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrNoValidFrame):
		return "no_valid_frame"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum_mismatch"
	default:
		return "unknown"
	}
}
