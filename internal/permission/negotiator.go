// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package permission

import (
	"context"
	"fmt"
	"log"

	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// Result is what happened to one permission request.
type Result int

const (
	Unsupported Result = iota // no prompt exists for the family
	Granted
	Denied
	Failed // the prompt returned an error or panicked
)

func (r Result) String() string {
	switch r {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	case Failed:
		return "failed"
	default:
		return "unsupported"
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Outcome records both requests made before starting motion sensors.
type Outcome struct {
	Motion      Result `json:"motion"`
	Orientation Result `json:"orientation"`
}

// Negotiator requests motion permissions on a best-effort basis.
type Negotiator struct {
	env    platform.Environment
	logger *log.Logger
}

// NewNegotiator returns a Negotiator for env. A nil logger uses log.Default().
func NewNegotiator(env platform.Environment, logger *log.Logger) *Negotiator {
	if logger == nil {
		logger = log.Default()
	}
	return &Negotiator{env: env, logger: logger}
}

// RequestMotionPermission asks for motion, then orientation, permission,
// waiting for each answer in turn. It never fails: absence, refusal and
// errors are logged and recorded in the outcome, and a failed motion prompt
// does not skip the orientation prompt. The only way to return before both
// prompts settle is ctx being done.
func (n *Negotiator) RequestMotionPermission(ctx context.Context) Outcome {
	var out Outcome
	out.Motion = n.request(ctx, platform.MotionFamily)
	out.Orientation = n.request(ctx, platform.OrientationFamily)
	return out
}

func (n *Negotiator) request(ctx context.Context, f platform.Family) Result {
	req, ok := n.env.PermissionRequester(f)
	if !ok || req == nil {
		return Unsupported
	}
	if err := ctx.Err(); err != nil {
		n.logger.Printf("permission: %s request skipped: %v", f, err)
		return Failed
	}

	state, err := call(ctx, req)
	if err != nil {
		n.logger.Printf("permission: %s request: %v", f, err)
		return Failed
	}
	switch state {
	case platform.PermissionGranted:
		return Granted
	case platform.PermissionDenied:
		n.logger.Printf("permission: %s denied, continuing without it", f)
		return Denied
	default:
		n.logger.Printf("permission: %s request settled as %q", f, state)
		return Denied
	}
}

func call(ctx context.Context, req platform.PermissionRequester) (state platform.PermissionState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("permission prompt panicked: %v", r)
		}
	}()
	return req(ctx)
}
