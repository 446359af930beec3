package permission

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/motion_sensors/internal/platform"
)

func newTestNegotiator(env platform.Environment) (*Negotiator, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewNegotiator(env, log.New(&buf, "", 0)), &buf
}

func TestNoPermissionAPI(t *testing.T) {
	n, buf := newTestNegotiator(platform.NewRegistry())

	out := n.RequestMotionPermission(context.Background())
	assert.Equal(t, Outcome{Motion: Unsupported, Orientation: Unsupported}, out)
	assert.Empty(t, buf.String())
}

func TestRequestsMotionBeforeOrientation(t *testing.T) {
	env := platform.NewRegistry()
	var order []platform.Family
	env.RegisterPermission(platform.MotionFamily, func(context.Context) (platform.PermissionState, error) {
		order = append(order, platform.MotionFamily)
		return platform.PermissionGranted, nil
	})
	env.RegisterPermission(platform.OrientationFamily, func(context.Context) (platform.PermissionState, error) {
		order = append(order, platform.OrientationFamily)
		return platform.PermissionGranted, nil
	})
	n, _ := newTestNegotiator(env)

	out := n.RequestMotionPermission(context.Background())
	assert.Equal(t, Outcome{Motion: Granted, Orientation: Granted}, out)
	assert.Equal(t, []platform.Family{platform.MotionFamily, platform.OrientationFamily}, order)
}

func TestErrorsAreSwallowed(t *testing.T) {
	env := platform.NewRegistry()
	env.RegisterPermission(platform.MotionFamily, func(context.Context) (platform.PermissionState, error) {
		return "", errors.New("NotAllowedError")
	})
	orientationAsked := false
	env.RegisterPermission(platform.OrientationFamily, func(context.Context) (platform.PermissionState, error) {
		orientationAsked = true
		return platform.PermissionDenied, nil
	})
	n, buf := newTestNegotiator(env)

	out := n.RequestMotionPermission(context.Background())
	assert.Equal(t, Failed, out.Motion)
	assert.Equal(t, Denied, out.Orientation)
	assert.True(t, orientationAsked)
	assert.Contains(t, buf.String(), "NotAllowedError")
}

func TestPanickingPromptIsSwallowed(t *testing.T) {
	env := platform.NewRegistry()
	env.RegisterPermission(platform.MotionFamily, func(context.Context) (platform.PermissionState, error) {
		panic("boom")
	})
	n, buf := newTestNegotiator(env)

	out := n.RequestMotionPermission(context.Background())
	assert.Equal(t, Failed, out.Motion)
	assert.Equal(t, Unsupported, out.Orientation)
	assert.Contains(t, buf.String(), "boom")
}

func TestCancelledContextSkipsPrompts(t *testing.T) {
	env := platform.NewRegistry()
	asked := false
	env.RegisterPermission(platform.MotionFamily, func(context.Context) (platform.PermissionState, error) {
		asked = true
		return platform.PermissionGranted, nil
	})
	n, _ := newTestNegotiator(env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := n.RequestMotionPermission(ctx)
	assert.Equal(t, Failed, out.Motion)
	assert.False(t, asked)
}
