package am2302

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/am2302-sensor/internal/gpio"
)

// Consumer labels shown by gpioinfo while the session holds the line.
const (
	consumerStart = "am2302-start"
	consumerRead  = "am2302-read"
)

// State is the phase of a reading attempt.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateCapturing
	StateClassifying
	StateDecoding
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateInitializing:
		return "INITIALIZING"
	case StateCapturing:
		return "CAPTURING"
	case StateClassifying:
		return "CLASSIFYING"
	case StateDecoding:
		return "DECODING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config tunes a session for a board.
type Config struct {
	// StartSignal is how long the host holds the line low to wake the
	// sensor. The datasheet asks for at least 1ms.
	StartSignal time.Duration

	Capture CaptureConfig

	// PauseGC stops the garbage collector while capturing so a collection
	// cannot stretch a pulse past the threshold.
	PauseGC bool
}

// DefaultConfig works for a Raspberry Pi with the sensor on a short cable.
var DefaultConfig = Config{
	StartSignal: 3 * time.Millisecond,
	Capture:     DefaultCaptureConfig,
	PauseGC:     true,
}

// Attempt describes one reading attempt.
type Attempt struct {
	Reading  Reading
	State    State
	Edges    int
	Bits     int
	Offset   int // bit offset of the decoded frame
	Started  time.Time
	Duration time.Duration
}

// Option customises a Session.
type Option func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithSleep replaces time.Sleep for the start signal hold.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Session) { s.sleep = sleep }
}

// Session performs reading attempts against one chip. Attempts on the
// same Session never overlap.
type Session struct {
	chip  gpio.Chip
	cfg   Config
	now   func() time.Time
	sleep func(time.Duration)

	mu    sync.Mutex // held for a whole attempt
	state atomic.Int32
}

// NewSession creates a Session. The chip stays owned by the caller.
func NewSession(chip gpio.Chip, cfg Config, opts ...Option) *Session {
	s := &Session{
		chip:  chip,
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the phase of the current or last attempt.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// TryRead performs one attempt on the line at offset and reports whether
// it produced a reading. Use Attempt for the reason of a failure.
func (s *Session) TryRead(offset int) (Reading, bool) {
	a, err := s.Attempt(offset)
	if err != nil {
		return Reading{}, false
	}
	return a.Reading, true
}

// Attempt sends the start signal on the line at offset, captures the
// sensor's response and decodes it. It blocks for up to the capture
// window and cannot be interrupted.
func (s *Session) Attempt(offset int) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := Attempt{Started: s.now()}
	err := s.attempt(offset, &a)
	a.Duration = s.now().Sub(a.Started)
	if err != nil {
		s.setState(StateFailed)
		a.State = StateFailed
		return a, err
	}
	s.setState(StateSuccess)
	a.State = StateSuccess
	return a, nil
}

func (s *Session) attempt(offset int, a *Attempt) error {
	s.setState(StateInitializing)
	if err := s.startSignal(offset); err != nil {
		return err
	}

	s.setState(StateCapturing)
	edges, err := s.capture(offset)
	if err != nil {
		return err
	}
	a.Edges = len(edges)

	s.setState(StateClassifying)
	bits := Classify(edges)
	a.Bits = len(bits)

	s.setState(StateDecoding)
	off, f, err := FindFrame(bits)
	if err != nil {
		return err
	}
	r, err := f.Reading()
	if err != nil {
		return err
	}
	a.Offset = off
	a.Reading = r
	return nil
}

// startSignal pulls the line low for the configured hold, then releases
// it so the sensor can answer.
func (s *Session) startSignal(offset int) error {
	out, err := s.chip.RequestOutput(offset, gpio.High, consumerStart)
	if err != nil {
		return fmt.Errorf("start signal: %w: %w", ErrLineAcquisition, err)
	}
	if err := out.SetValue(gpio.Low); err != nil {
		out.Close()
		return fmt.Errorf("start signal: %w: %w", ErrLineIO, err)
	}
	s.sleep(s.cfg.StartSignal)
	if err := out.Close(); err != nil {
		return fmt.Errorf("release line: %w: %w", ErrLineIO, err)
	}
	return nil
}

func (s *Session) capture(offset int) (edges []Edge, err error) {
	in, err := s.chip.RequestInput(offset, consumerRead)
	if err != nil {
		return nil, fmt.Errorf("capture: %w: %w", ErrLineAcquisition, err)
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			edges, err = nil, fmt.Errorf("release line: %w: %w", ErrLineIO, cerr)
		}
	}()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if s.cfg.PauseGC {
		defer debug.SetGCPercent(debug.SetGCPercent(-1))
	}

	edges, err = Capture(in, s.cfg.Capture, s.now)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return edges, nil
}
