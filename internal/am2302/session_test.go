package am2302

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/am2302-sensor/internal/gpio"
)

const testPin = 4

var testConfig = Config{
	StartSignal: 3 * time.Millisecond,
	Capture:     CaptureConfig{Window: 20 * time.Millisecond, MaxEdges: 83},
}

// simulatedSensor returns a chip whose input line plays back the
// transmission of f against clock.
func simulatedSensor(f Frame, clock *gpio.SteppingClock) *gpio.FakeChip {
	w := &gpio.Waveform{Segments: Transmission(f), Idle: gpio.High, Now: clock.Current}
	return &gpio.FakeChip{Input: &gpio.FakeLine{ValueFunc: w.Value}}
}

func newTestSession(chip gpio.Chip, clock *gpio.SteppingClock, cfg Config) *Session {
	return NewSession(chip, cfg, WithClock(clock.Now), WithSleep(clock.Sleep))
}

func TestSessionReadsSimulatedSensor(t *testing.T) {
	clock := newClock()
	chip := simulatedSensor(exampleFrame, clock)
	s := newTestSession(chip, clock, testConfig)

	a, err := s.Attempt(testPin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Reading.Celsius() != 34.5 || a.Reading.RelativeHumidity() != 65.2 {
		t.Errorf("Reading: got %v, want 34.5°C 65.2%%RH", a.Reading)
	}
	if a.State != StateSuccess || s.State() != StateSuccess {
		t.Errorf("State: got %s / %s, want SUCCESS", a.State, s.State())
	}
	// Three response edges plus two per bit fill the cap exactly.
	if a.Edges != 83 {
		t.Errorf("Edges: got %d, want 83", a.Edges)
	}
	// The 80µs response pulse classifies as a leading 1.
	if a.Bits != 41 {
		t.Errorf("Bits: got %d, want 41", a.Bits)
	}
	if a.Offset != 1 {
		t.Errorf("Offset: got %d, want 1", a.Offset)
	}
	if a.Duration < testConfig.StartSignal {
		t.Errorf("Duration %v should include the start signal", a.Duration)
	}
}

func TestSessionStartSignal(t *testing.T) {
	clock := newClock()
	chip := simulatedSensor(exampleFrame, clock)
	var slept []time.Duration
	var stateWhileHolding State
	var s *Session
	s = NewSession(chip, testConfig, WithClock(clock.Now), WithSleep(func(d time.Duration) {
		stateWhileHolding = s.State()
		slept = append(slept, d)
		clock.Sleep(d)
	}))

	if _, ok := s.TryRead(testPin); !ok {
		t.Fatal("expected a reading")
	}

	if len(chip.Requests) != 2 {
		t.Fatalf("expected 2 line requests, got %d", len(chip.Requests))
	}
	out, in := chip.Requests[0], chip.Requests[1]
	if !out.Output || out.Offset != testPin || out.Initial != gpio.High || out.Consumer != consumerStart {
		t.Errorf("unexpected output request: %+v", out)
	}
	if in.Output || in.Offset != testPin || in.Consumer != consumerRead {
		t.Errorf("unexpected input request: %+v", in)
	}
	if w := chip.Output.Writes; len(w) != 2 || w[0] != gpio.High || w[1] != gpio.Low {
		t.Errorf("output writes: got %v, want [1 0]", w)
	}
	if !chip.Output.Closed {
		t.Error("output line should be released before capture")
	}
	if !chip.Input.Closed {
		t.Error("input line should be released after capture")
	}
	if len(slept) != 1 || slept[0] != 3*time.Millisecond {
		t.Errorf("start signal hold: got %v, want [3ms]", slept)
	}
	if stateWhileHolding != StateInitializing {
		t.Errorf("state during start signal: got %s, want INITIALIZING", stateWhileHolding)
	}
}

func TestSessionStateDuringCapture(t *testing.T) {
	clock := newClock()
	chip := simulatedSensor(Encode(Reading{Temperature: 215, Humidity: 480}), clock)
	s := newTestSession(chip, clock, testConfig)

	play := chip.Input.ValueFunc
	var states []State
	chip.Input.ValueFunc = func() (int, error) {
		if len(states) == 0 {
			states = append(states, s.State())
		}
		return play()
	}

	r, ok := s.TryRead(testPin)
	if !ok {
		t.Fatal("expected a reading")
	}
	if r.Temperature != 215 || r.Humidity != 480 {
		t.Errorf("Reading: got %+v", r)
	}
	if len(states) != 1 || states[0] != StateCapturing {
		t.Errorf("state during capture: got %v, want CAPTURING", states)
	}
}

func TestSessionNegativeTemperature(t *testing.T) {
	clock := newClock()
	want := Reading{Temperature: -349, Humidity: 652}
	chip := simulatedSensor(Encode(want), clock)
	s := newTestSession(chip, clock, testConfig)

	got, ok := s.TryRead(testPin)
	if !ok {
		t.Fatal("expected a reading")
	}
	if got != want {
		t.Errorf("Reading: got %+v, want %+v", got, want)
	}
}

func TestSessionPauseGC(t *testing.T) {
	clock := newClock()
	cfg := testConfig
	cfg.PauseGC = true
	chip := simulatedSensor(exampleFrame, clock)
	s := newTestSession(chip, clock, cfg)

	if _, ok := s.TryRead(testPin); !ok {
		t.Fatal("expected a reading with the collector paused")
	}
}

func TestSessionFailures(t *testing.T) {
	cause := errors.New("device or resource busy")

	tests := []struct {
		name    string
		chip    func(clock *gpio.SteppingClock) *gpio.FakeChip
		wantErr error
	}{
		{
			name: "output request refused",
			chip: func(*gpio.SteppingClock) *gpio.FakeChip {
				return &gpio.FakeChip{RequestOutputError: cause}
			},
			wantErr: ErrLineAcquisition,
		},
		{
			name: "start signal write fails",
			chip: func(*gpio.SteppingClock) *gpio.FakeChip {
				return &gpio.FakeChip{Output: &gpio.FakeLine{WriteError: cause}}
			},
			wantErr: ErrLineIO,
		},
		{
			name: "input request refused",
			chip: func(*gpio.SteppingClock) *gpio.FakeChip {
				return &gpio.FakeChip{RequestInputError: cause}
			},
			wantErr: ErrLineAcquisition,
		},
		{
			name: "read fails mid capture",
			chip: func(clock *gpio.SteppingClock) *gpio.FakeChip {
				c := simulatedSensor(exampleFrame, clock)
				c.Input.ReadError = cause
				c.Input.ErrorAfter = 100
				return c
			},
			wantErr: ErrLineIO,
		},
		{
			name: "sensor silent",
			chip: func(*gpio.SteppingClock) *gpio.FakeChip {
				return gpio.NewFakeChip([]int{gpio.High})
			},
			wantErr: ErrInsufficientData,
		},
		{
			name: "corrupted checksum",
			chip: func(clock *gpio.SteppingClock) *gpio.FakeChip {
				return simulatedSensor(Frame{0x02, 0x8C, 0x01, 0x59, 0xE9}, clock)
			},
			wantErr: ErrNoValidFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock()
			chip := tt.chip(clock)
			s := newTestSession(chip, clock, testConfig)

			a, err := s.Attempt(testPin)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if a.State != StateFailed || s.State() != StateFailed {
				t.Errorf("State: got %s / %s, want FAILED", a.State, s.State())
			}
			if a.Reading != (Reading{}) {
				t.Errorf("failed attempt carried a reading: %+v", a.Reading)
			}
			if chip.Output != nil && chip.RequestOutputError == nil && !chip.Output.Closed {
				t.Error("output line left open")
			}
			if chip.Input != nil && chip.RequestInputError == nil && len(chip.Requests) == 2 && !chip.Input.Closed {
				t.Error("input line left open")
			}
		})
	}
}

func TestSessionTryReadFailure(t *testing.T) {
	clock := newClock()
	s := newTestSession(&gpio.FakeChip{RequestOutputError: errors.New("no such line")}, clock, testConfig)

	r, ok := s.TryRead(testPin)
	if ok {
		t.Error("expected no reading")
	}
	if r != (Reading{}) {
		t.Errorf("expected zero reading, got %+v", r)
	}
}

func TestSessionAttemptsDoNotOverlap(t *testing.T) {
	clock := newClock()
	chip := simulatedSensor(exampleFrame, clock)
	s := newTestSession(chip, clock, testConfig)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = s.TryRead(testPin)
		}(i)
	}
	wg.Wait()

	// The waveform plays once, so exactly one attempt sees the frame.
	if results[0] == results[1] {
		t.Errorf("expected exactly one success, got %v", results)
	}
	if len(chip.Requests) != 4 {
		t.Fatalf("expected 4 line requests, got %d", len(chip.Requests))
	}
	for i, r := range chip.Requests {
		if r.Output != (i%2 == 0) {
			t.Errorf("request %d: attempts interleaved: %+v", i, chip.Requests)
			break
		}
	}
}

func TestStateString(t *testing.T) {
	names := map[State]string{
		StateIdle:         "IDLE",
		StateInitializing: "INITIALIZING",
		StateCapturing:    "CAPTURING",
		StateClassifying:  "CLASSIFYING",
		StateDecoding:     "DECODING",
		StateSuccess:      "SUCCESS",
		StateFailed:       "FAILED",
		State(99):         "State(99)",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("%d: got %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestNewSessionStartsIdle(t *testing.T) {
	s := NewSession(&gpio.FakeChip{}, DefaultConfig)
	if s.State() != StateIdle {
		t.Errorf("State: got %s, want IDLE", s.State())
	}
}

func TestDefaultConfig(t *testing.T) {
	if DefaultConfig.StartSignal != 3*time.Millisecond {
		t.Errorf("StartSignal: got %v", DefaultConfig.StartSignal)
	}
	if DefaultConfig.Capture.Window != 10*time.Second {
		t.Errorf("Window: got %v", DefaultConfig.Capture.Window)
	}
	if DefaultConfig.Capture.MaxEdges != 83 {
		t.Errorf("MaxEdges: got %d", DefaultConfig.Capture.MaxEdges)
	}
	if !DefaultConfig.PauseGC {
		t.Error("PauseGC should default to true")
	}
}
