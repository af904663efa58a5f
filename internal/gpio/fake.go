package gpio

import (
	"errors"
	"sync"
	"time"
)

// Request records a line request made against a FakeChip.
type Request struct {
	Offset   int
	Output   bool
	Initial  int
	Consumer string
}

// FakeChip is a test double that hands out FakeLines.
type FakeChip struct {
	// Requests contains every line request, in order.
	Requests []Request

	// Output is returned by RequestOutput. Created on demand if nil.
	Output *FakeLine

	// Input is returned by RequestInput. Created on demand if nil.
	Input *FakeLine

	// RequestOutputError, if set, will be returned by RequestOutput.
	RequestOutputError error

	// RequestInputError, if set, will be returned by RequestInput.
	RequestInputError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeChip creates a FakeChip whose input line replays levels.
func NewFakeChip(levels []int) *FakeChip {
	return &FakeChip{Input: NewFakeLine(levels)}
}

// RequestOutput records the request and returns the Output line.
func (c *FakeChip) RequestOutput(offset, initial int, consumer string) (OutputLine, error) {
	c.Requests = append(c.Requests, Request{Offset: offset, Output: true, Initial: initial, Consumer: consumer})
	if c.RequestOutputError != nil {
		return nil, c.RequestOutputError
	}
	if c.Output == nil {
		c.Output = &FakeLine{}
	}
	c.Output.Closed = false
	c.Output.Writes = append(c.Output.Writes, initial)
	return c.Output, nil
}

// RequestInput records the request and returns the Input line.
func (c *FakeChip) RequestInput(offset int, consumer string) (InputLine, error) {
	c.Requests = append(c.Requests, Request{Offset: offset, Consumer: consumer})
	if c.RequestInputError != nil {
		return nil, c.RequestInputError
	}
	if c.Input == nil {
		c.Input = &FakeLine{}
	}
	c.Input.Closed = false
	return c.Input, nil
}

// Close marks the chip as closed.
func (c *FakeChip) Close() error {
	c.Closed = true
	return nil
}

// FakeLine is a scripted line.
type FakeLine struct {
	// Levels contains scripted values for Value().
	// Each call consumes the next level; the last one repeats.
	Levels []int

	// ValueFunc, if set, replaces Levels.
	ValueFunc func() (int, error)

	// ReadError, if set, is returned by Value() once Reads reaches ErrorAfter.
	ReadError  error
	ErrorAfter int

	// WriteError, if set, will be returned by SetValue().
	WriteError error

	// Writes contains every level driven onto the line,
	// including the initial level of an output request.
	Writes []int

	// Reads counts calls to Value().
	Reads int

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFakeLine creates a FakeLine with the given levels.
func NewFakeLine(levels []int) *FakeLine {
	return &FakeLine{Levels: levels}
}

// Value returns the next scripted level.
func (l *FakeLine) Value() (int, error) {
	reads := l.Reads
	l.Reads++

	if l.ReadError != nil && reads >= l.ErrorAfter {
		return Low, l.ReadError
	}
	if l.ValueFunc != nil {
		return l.ValueFunc()
	}
	if len(l.Levels) == 0 {
		return Low, errors.New("no levels configured")
	}

	level := l.Levels[l.index]
	if l.index < len(l.Levels)-1 {
		l.index++
	}
	return level, nil
}

// SetValue records the written level.
func (l *FakeLine) SetValue(value int) error {
	if l.WriteError != nil {
		return l.WriteError
	}
	l.Writes = append(l.Writes, value)
	return nil
}

// Close marks the line as closed.
func (l *FakeLine) Close() error {
	l.Closed = true
	return nil
}

// Reset rewinds Levels and clears recorded activity.
func (l *FakeLine) Reset() {
	l.index = 0
	l.Reads = 0
	l.Writes = nil
	l.Closed = false
}

// Segment is a level held on the line for Duration.
type Segment struct {
	Level    int
	Duration time.Duration
}

// Waveform plays back segments against a clock. The timeline starts at
// the first Value() call; once all segments have elapsed the line sits at Idle.
type Waveform struct {
	Segments []Segment
	Idle     int
	Now      func() time.Time

	start   time.Time
	started bool
}

// Value returns the level at the clock's current instant.
func (w *Waveform) Value() (int, error) {
	t := w.Now()
	if !w.started {
		w.start = t
		w.started = true
	}
	elapsed := t.Sub(w.start)
	for _, s := range w.Segments {
		if elapsed < s.Duration {
			return s.Level, nil
		}
		elapsed -= s.Duration
	}
	return w.Idle, nil
}

// SteppingClock is a virtual clock that advances by Step on every Now().
// Current and Sleep let fakes observe and move time without stepping.
type SteppingClock struct {
	mu   sync.Mutex
	t    time.Time
	Step time.Duration
}

// NewSteppingClock creates a clock starting at start.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{t: start, Step: step}
}

// Now advances the clock by Step and returns the new instant.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.Step)
	return c.t
}

// Current returns the current instant without advancing.
func (c *SteppingClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Sleep advances the clock by d.
func (c *SteppingClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
