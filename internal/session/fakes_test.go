package session

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// fakeSensor is a discrete sensor driven by the test through Emit.
type fakeSensor struct {
	mu        sync.Mutex
	x, y, z   float64
	listeners *platform.Target[struct{}]
	started   int
	stopped   int
	startErr  error
	stopErr   error
	stopPanic bool
}

func newFakeSensor() *fakeSensor {
	return &fakeSensor{
		x: math.NaN(), y: math.NaN(), z: math.NaN(),
		listeners: platform.NewTarget[struct{}](),
	}
}

func (s *fakeSensor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.startErr
}

func (s *fakeSensor) Stop() error {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
	if s.stopPanic {
		panic("sensor already torn down")
	}
	return s.stopErr
}

func (s *fakeSensor) Values() (float64, float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y, s.z
}

func (s *fakeSensor) OnReading(fn func()) *platform.Subscription {
	return s.listeners.Listen(func(struct{}) { fn() })
}

func (s *fakeSensor) Emit(x, y, z float64) {
	s.mu.Lock()
	s.x, s.y, s.z = x, y, z
	s.mu.Unlock()
	s.listeners.Dispatch(struct{}{})
}

// fakeHardware registers Accelerometer and Gyroscope constructors and
// remembers every sensor it built.
type fakeHardware struct {
	mu       sync.Mutex
	built    map[string][]*fakeSensor
	ctorErr  map[string]error
	startErr map[string]error
}

func newFakeHardware(env *platform.Registry) *fakeHardware {
	hw := &fakeHardware{
		built:    make(map[string][]*fakeSensor),
		ctorErr:  make(map[string]error),
		startErr: make(map[string]error),
	}
	for _, name := range []string{platform.Accelerometer, platform.Gyroscope} {
		env.RegisterConstructor(name, func(platform.SensorOptions) (platform.Sensor, error) {
			hw.mu.Lock()
			defer hw.mu.Unlock()
			if err := hw.ctorErr[name]; err != nil {
				return nil, err
			}
			s := newFakeSensor()
			s.startErr = hw.startErr[name]
			hw.built[name] = append(hw.built[name], s)
			return s, nil
		})
	}
	return hw
}

func (hw *fakeHardware) sensors(name string) []*fakeSensor {
	hw.mu.Lock()
	defer hw.mu.Unlock()
	return append([]*fakeSensor(nil), hw.built[name]...)
}

// recorder is a Sink remembering every reading.
type recorder struct {
	mu       sync.Mutex
	readings []motion.Reading
}

func (r *recorder) Deliver(rd motion.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, rd)
}

func (r *recorder) all() []motion.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]motion.Reading(nil), r.readings...)
}

func (r *recorder) of(c motion.Category) []motion.Reading {
	var out []motion.Reading
	for _, rd := range r.all() {
		if rd.Category == c {
			out = append(out, rd)
		}
	}
	return out
}

// stepClock advances by one millisecond per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func f(v float64) *float64 { return &v }

var errNotAllowed = errors.New("NotAllowedError: feature policy")

func grant(context.Context) (platform.PermissionState, error) {
	return platform.PermissionGranted, nil
}
