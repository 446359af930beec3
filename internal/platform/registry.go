package platform

import (
	"sync"
)

// Registry is a mutable Environment. The commands fill it with whatever
// hardware and bridges are configured; tests fill it with fakes.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]SensorConstructor
	permissions  map[Family]PermissionRequester
	motion       *Target[MotionEvent]
	orientation  *Target[OrientationEvent]
}

// NewRegistry returns an environment with nothing available.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]SensorConstructor),
		permissions:  make(map[Family]PermissionRequester),
	}
}

// RegisterConstructor makes a named discrete sensor available.
func (r *Registry) RegisterConstructor(name string, ctor SensorConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = ctor
}

// RegisterPermission installs the permission prompt for an event family.
func (r *Registry) RegisterPermission(f Family, req PermissionRequester) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permissions[f] = req
}

// EnableMotionEvents makes the combined motion event available and returns
// its target so a source can dispatch into it. Calling it again returns the
// same target.
func (r *Registry) EnableMotionEvents() *Target[MotionEvent] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.motion == nil {
		r.motion = NewTarget[MotionEvent]()
	}
	return r.motion
}

// EnableOrientationEvents is EnableMotionEvents for orientation events.
func (r *Registry) EnableOrientationEvents() *Target[OrientationEvent] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.orientation == nil {
		r.orientation = NewTarget[OrientationEvent]()
	}
	return r.orientation
}

func (r *Registry) Constructor(name string) (SensorConstructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.constructors[name]
	return ctor, ok
}

func (r *Registry) MotionEvents() (*Target[MotionEvent], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.motion, r.motion != nil
}

func (r *Registry) OrientationEvents() (*Target[OrientationEvent], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orientation, r.orientation != nil
}

func (r *Registry) PermissionRequester(f Family) (PermissionRequester, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.permissions[f]
	return req, ok
}
var _ Environment = (*Registry)(nil)
