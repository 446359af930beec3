package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/permission"
)

// Controller holds at most one Session per category, created on first
// start. It is the only owner of listeners for its environment.
type Controller struct {
	opts Options

	mu       sync.Mutex
	sessions map[motion.Category]*Session
}

// NewController returns a controller whose sessions share opts.
func NewController(opts Options) *Controller {
	return &Controller{
		opts:     opts.withDefaults(),
		sessions: make(map[motion.Category]*Session),
	}
}

func (c *Controller) session(cat motion.Category, create bool) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked(cat, create)
}

func (c *Controller) sessionLocked(cat motion.Category, create bool) *Session {
	s, ok := c.sessions[cat]
	if !ok && create {
		s = New(cat, c.opts)
		c.sessions[cat] = s
	}
	return s
}

// Start starts one category. See Session.Start.
func (c *Controller) Start(ctx context.Context, cat motion.Category) Result {
	return c.session(cat, true).Start(ctx)
}

// Stop stops one category. Stopping a category that was never started
// does nothing.
func (c *Controller) Stop(cat motion.Category) {
	if s := c.session(cat, false); s != nil {
		s.Stop()
	}
}

// StartAll starts every category after a single permission negotiation,
// the way the "start motion" action works: linear and angular motion pick
// their backend, orientation always listens to orientation events.
//
// Every idle or stopped category enters Requesting before the prompt is
// shown, so Stop or StopAll during the prompt abandons each of them.
func (c *Controller) StartAll(ctx context.Context) []Result {
	type pending struct {
		index int
		s     *Session
		a     activation
		st    Status
	}

	cats := motion.Categories()
	results := make([]Result, len(cats))
	var starting []pending

	c.mu.Lock()
	for i, cat := range cats {
		s := c.sessionLocked(cat, true)
		a, st, ok := s.begin(ctx)
		if !ok {
			results[i] = Result{Status: st}
			continue
		}
		starting = append(starting, pending{index: i, s: s, a: a, st: st})
	}
	c.mu.Unlock()

	if len(starting) == 0 {
		return results
	}
	acts := make([]activation, 0, len(starting))
	for _, p := range starting {
		p.s.notify(p.st)
		acts = append(acts, p.a)
	}

	outcome := c.negotiate(ctx, acts)
	for _, p := range starting {
		results[p.index] = p.s.finish(ctx, p.a, outcome)
	}
	return results
}

// negotiate runs one permission request on behalf of acts. The request is
// cancelled when ctx is done or once every activation has been abandoned;
// stopping one category leaves the prompt up for the others.
func (c *Controller) negotiate(ctx context.Context, acts []activation) permission.Outcome {
	shared, cancel := context.WithCancel(ctx)
	defer cancel()

	var remaining atomic.Int32
	remaining.Store(int32(len(acts)))
	for _, a := range acts {
		stop := context.AfterFunc(a.ctx, func() {
			if remaining.Add(-1) == 0 {
				cancel()
			}
		})
		defer stop()
	}
	return c.opts.Negotiator.RequestMotionPermission(shared)
}

// StopAll stops every started category.
func (c *Controller) StopAll() {
	for _, cat := range motion.Categories() {
		c.Stop(cat)
	}
}

// Status returns the status of one category, Idle if it was never started.
func (c *Controller) Status(cat motion.Category) Status {
	if s := c.session(cat, false); s != nil {
		return s.Status()
	}
	return Status{Category: cat, State: motion.Idle}
}

// Statuses returns the status of every category in order.
func (c *Controller) Statuses() []Status {
	out := make([]Status, 0, len(motion.Categories()))
	for _, cat := range motion.Categories() {
		out = append(out, c.Status(cat))
	}
	return out
}
