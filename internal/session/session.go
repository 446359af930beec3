// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session owns the start/stop lifecycle of one acquisition per
// category: permission, backend selection, listener registration and
// teardown.
//
// Hardware and permission failures never surface as errors. A session
// degrades to the combined-event backend when the discrete sensors cannot
// be built, and stays silent when nothing is available. Callers that care
// can inspect Result, Status or install an Observer.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/motion_sensors/internal/adapter"
	"github.com/relabs-tech/motion_sensors/internal/capability"
	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/permission"
	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// ErrStopped is reported in Result.Err when Stop interrupted a pending Start.
var ErrStopped = errors.New("session stopped while starting")

// Sink consumes readings. Deliver is called synchronously on the reading
// path; a slow sink delays the next reading of the same session.
type Sink interface {
	Deliver(r motion.Reading)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r motion.Reading)

func (f SinkFunc) Deliver(r motion.Reading) { f(r) }

// Multi fans readings out to every non-nil sink, in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(r motion.Reading) {
		for _, s := range sinks {
			if s != nil {
				s.Deliver(r)
			}
		}
	})
}

// Status is the observable state of a session.
type Status struct {
	Category   motion.Category    `json:"category"`
	State      motion.State       `json:"state"`
	Backend    motion.Backend     `json:"backend"`
	Degraded   bool               `json:"degraded"` // discrete sensors failed, running on events
	Permission permission.Outcome `json:"permission"`
}

// Result is returned by Start. Err is only set when the start was
// abandoned (context done or Stop called while permission was pending).
type Result struct {
	Status
	Err error
}

// Running reports whether the category can produce readings.
func (r Result) Running() bool {
	return r.Err == nil && r.State == motion.Active && r.Backend != motion.Unavailable
}

// Observer is told about every state transition. It must not block.
type Observer func(Status)

// Options configures sessions. Env is required; everything else has a
// default.
type Options struct {
	Env        platform.Environment
	Prober     capability.Prober      // default capability.New(Env)
	Negotiator *permission.Negotiator // default permission.NewNegotiator(Env, Logger)
	Sink       Sink
	Observer   Observer
	Logger     *log.Logger
	Clock      func() time.Time
	Frequency  float64 // Hz requested from discrete sensors
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Prober == nil {
		o.Prober = capability.New(o.Env)
	}
	if o.Negotiator == nil {
		o.Negotiator = permission.NewNegotiator(o.Env, o.Logger)
	}
	if o.Sink == nil {
		o.Sink = SinkFunc(func(motion.Reading) {})
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Frequency <= 0 {
		o.Frequency = platform.DefaultFrequency
	}
	return o
}

// Session manages one category. Use Controller to guarantee a single
// session per category.
type Session struct {
	category motion.Category
	opts     Options

	mu        sync.Mutex
	status    Status
	gen       uint64 // bumped on every start and stop; stale callbacks compare against it
	handles   *handles
	cancelReq context.CancelFunc

	deliverMu sync.Mutex // serializes sink calls
	lastAt    time.Time
}

// New creates an idle session for c.
func New(c motion.Category, opts Options) *Session {
	return &Session{
		category: c,
		opts:     opts.withDefaults(),
		status:   Status{Category: c},
	}
}

// Category returns the category this session serves.
func (s *Session) Category() motion.Category { return s.category }

// State returns the current lifecycle state.
func (s *Session) State() motion.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.State
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start requests permission, selects a backend and registers listeners.
// It blocks until the permission prompts settle. Calling Start on a
// session that is already requesting or active does nothing.
func (s *Session) Start(ctx context.Context) Result {
	return s.start(ctx, s.opts.Negotiator.RequestMotionPermission)
}

func (s *Session) start(ctx context.Context, negotiate func(context.Context) permission.Outcome) Result {
	a, st, ok := s.begin(ctx)
	if !ok {
		return Result{Status: st}
	}
	s.notify(st)
	return s.finish(ctx, a, negotiate(a.ctx))
}

// activation is a start waiting for permission under one generation.
type activation struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// begin moves an idle or stopped session to Requesting. It reports false
// with the current status when the session is already requesting or
// active. The caller notifies the observer.
func (s *Session) begin(ctx context.Context) (activation, Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.State == motion.Requesting || s.status.State == motion.Active {
		return activation{}, s.status, false
	}
	s.gen++
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancelReq = cancel
	s.status = Status{Category: s.category, State: motion.Requesting}
	return activation{gen: s.gen, ctx: reqCtx, cancel: cancel}, s.status, true
}

// finish attaches the backend once permission has settled, unless Stop or
// ctx abandoned the activation in the meantime.
func (s *Session) finish(ctx context.Context, a activation, outcome permission.Outcome) Result {
	a.cancel()
	gen := a.gen

	s.mu.Lock()
	if s.gen != gen || s.status.State != motion.Requesting {
		st := s.status
		s.mu.Unlock()
		return Result{Status: st, Err: ErrStopped}
	}
	s.cancelReq = nil
	if err := ctx.Err(); err != nil {
		s.status = Status{Category: s.category, State: motion.Idle, Permission: outcome}
		st := s.status
		s.mu.Unlock()
		s.notify(st)
		return Result{Status: st, Err: err}
	}
	s.status.Permission = outcome
	s.status.State = motion.Active
	s.mu.Unlock()

	backend := s.opts.Prober.Probe(s.category)
	h, backend, degraded := s.attach(gen, backend)

	s.mu.Lock()
	if s.gen != gen || s.status.State != motion.Active {
		st := s.status
		s.mu.Unlock()
		h.release(s.opts.Logger, s.category)
		return Result{Status: st, Err: ErrStopped}
	}
	s.handles = h
	s.status.Backend = backend
	s.status.Degraded = degraded
	st := s.status
	s.mu.Unlock()

	if backend == motion.Unavailable {
		s.opts.Logger.Printf("session: %s has no usable backend, no readings will be produced", s.category)
	} else {
		s.opts.Logger.Printf("session: %s active on %s backend", s.category, backend)
	}
	s.notify(st)
	return Result{Status: st}
}

// Stop releases every listener and backend held by the session. It is
// always safe: stopping an idle or stopped session does nothing, and
// backend errors are logged, never returned.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.status.State == motion.Idle || s.status.State == motion.Stopped {
		s.mu.Unlock()
		return
	}
	s.gen++
	h := s.handles
	s.handles = nil
	cancel := s.cancelReq
	s.cancelReq = nil
	s.status.State = motion.Stopped
	s.status.Backend = motion.Unavailable
	st := s.status
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.release(s.opts.Logger, s.category)
	s.opts.Logger.Printf("session: %s stopped", s.category)
	s.notify(st)
}

func (s *Session) notify(st Status) {
	if s.opts.Observer != nil {
		s.opts.Observer(st)
	}
}

// attach builds the backend chosen by the probe, degrading from discrete
// sensors to combined events when construction fails.
func (s *Session) attach(gen uint64, backend motion.Backend) (*handles, motion.Backend, bool) {
	if backend == motion.Unavailable {
		return nil, motion.Unavailable, false
	}
	if s.category == motion.Orientation || backend == motion.Fallback {
		h, ok := s.attachEvents(gen)
		if !ok {
			return nil, motion.Unavailable, false
		}
		return h, motion.Fallback, false
	}

	h, err := s.attachSensor(gen)
	if err == nil {
		return h, motion.Primary, false
	}
	s.opts.Logger.Printf("session: %s discrete sensor failed, falling back to events: %v", s.category, err)
	h, ok := s.attachEvents(gen)
	if !ok {
		return nil, motion.Unavailable, true
	}
	return h, motion.Fallback, true
}

func (s *Session) attachSensor(gen uint64) (*handles, error) {
	name := platform.Accelerometer
	if s.category == motion.AngularMotion {
		name = platform.Gyroscope
	}
	ctor, ok := s.opts.Env.Constructor(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, platform.ErrNoConstructor)
	}

	sensor, err := construct(ctor, platform.SensorOptions{Frequency: s.opts.Frequency})
	if err != nil {
		return nil, fmt.Errorf("%s: construct: %w", name, err)
	}

	h := &handles{sensors: []platform.Sensor{sensor}}
	h.subs = append(h.subs, sensor.OnReading(func() {
		if r, ok := adapter.Normalize(s.category, motion.Primary, sensor, s.opts.Clock()); ok {
			s.deliver(gen, r)
		}
	}))
	if err := guard(sensor.Start); err != nil {
		h.release(s.opts.Logger, s.category)
		return nil, fmt.Errorf("%s: start: %w", name, err)
	}
	return h, nil
}

func (s *Session) attachEvents(gen uint64) (*handles, bool) {
	if s.category == motion.Orientation {
		target, ok := s.opts.Env.OrientationEvents()
		if !ok {
			return nil, false
		}
		sub := target.Listen(func(ev platform.OrientationEvent) {
			if r, ok := adapter.Normalize(s.category, motion.Fallback, ev, s.opts.Clock()); ok {
				s.deliver(gen, r)
			}
		})
		return &handles{subs: []*platform.Subscription{sub}}, true
	}

	target, ok := s.opts.Env.MotionEvents()
	if !ok {
		return nil, false
	}
	sub := target.Listen(func(ev platform.MotionEvent) {
		if r, ok := adapter.Normalize(s.category, motion.Fallback, ev, s.opts.Clock()); ok {
			s.deliver(gen, r)
		}
	})
	return &handles{subs: []*platform.Subscription{sub}}, true
}

// deliver forwards r to the sink unless the activation that produced it
// has ended. CapturedAt never goes backwards within a session.
func (s *Session) deliver(gen uint64, r motion.Reading) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	live := s.gen == gen && s.status.State == motion.Active
	s.mu.Unlock()
	if !live {
		return
	}

	if r.CapturedAt.Before(s.lastAt) {
		r.CapturedAt = s.lastAt
	}
	s.lastAt = r.CapturedAt
	s.opts.Sink.Deliver(r)
}

// handles are the listener registrations and backend objects of one
// activation.
type handles struct {
	sensors []platform.Sensor
	subs    []*platform.Subscription
}

func (h *handles) release(logger *log.Logger, c motion.Category) {
	if h == nil {
		return
	}
	for _, sub := range h.subs {
		sub.Release()
	}
	for _, sensor := range h.sensors {
		if err := guard(sensor.Stop); err != nil {
			logger.Printf("session: %s backend stop: %v", c, err)
		}
	}
}

func construct(ctor platform.SensorConstructor, opts platform.SensorOptions) (sensor platform.Sensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	sensor, err = ctor(opts)
	if err == nil && sensor == nil {
		err = errors.New("constructor returned no sensor")
	}
	return sensor, err
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
