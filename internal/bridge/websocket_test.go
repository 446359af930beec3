package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_sensors/internal/format"
	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/platform"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, b *WebSocketBridge, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return b.Clients() == n }, time.Second, 5*time.Millisecond)
}

func TestWebSocketForwardsDeviceMotion(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	srv := httptest.NewServer(b)
	defer srv.Close()

	target, ok := env.MotionEvents()
	require.True(t, ok)
	got := make(chan platform.MotionEvent, 1)
	target.Listen(func(ev platform.MotionEvent) { got <- ev })

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"devicemotion","motion":{"rotationRate":{"alpha":1,"beta":2,"gamma":3},"interval":16}}`)))

	select {
	case ev := <-got:
		require.NotNil(t, ev.RotationRate)
		assert.Equal(t, 2.0, *ev.RotationRate.Beta)
	case <-time.After(time.Second):
		t.Fatal("motion event not forwarded")
	}
}

func TestWebSocketForwardsDeviceOrientation(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	srv := httptest.NewServer(b)
	defer srv.Close()

	target, _ := env.OrientationEvents()
	got := make(chan platform.OrientationEvent, 1)
	target.Listen(func(ev platform.OrientationEvent) { got <- ev })

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Message{
		Type:        TypeDeviceOrientation,
		Orientation: &platform.OrientationEvent{Alpha: ptr(90), Beta: ptr(0), Gamma: ptr(-45)},
	}))

	select {
	case ev := <-got:
		assert.Equal(t, -45.0, *ev.Gamma)
	case <-time.After(time.Second):
		t.Fatal("orientation event not forwarded")
	}
}

func TestWebSocketRejectsUnknownType(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Message{Type: "devicelight"}))

	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, TypeError, reply.Type)
	assert.Contains(t, reply.Error, "devicelight")
}

func TestPermissionWithoutClient(t *testing.T) {
	env := platform.NewRegistry()
	NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)

	req, ok := env.PermissionRequester(platform.MotionFamily)
	require.True(t, ok)
	_, err := req(context.Background())
	assert.ErrorIs(t, err, ErrNoClient)
}

func TestPermissionAnsweredByClient(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, b, 1)

	req, _ := env.PermissionRequester(platform.OrientationFamily)
	type answer struct {
		state platform.PermissionState
		err   error
	}
	done := make(chan answer, 1)
	go func() {
		st, err := req(context.Background())
		done <- answer{st, err}
	}()

	var prompt Message
	require.NoError(t, conn.ReadJSON(&prompt))
	assert.Equal(t, TypeRequestPermission, prompt.Type)
	assert.Equal(t, platform.OrientationFamily, prompt.Family)
	require.NotEmpty(t, prompt.ID)

	require.NoError(t, conn.WriteJSON(Message{Type: TypePermission, ID: prompt.ID, State: platform.PermissionGranted}))

	select {
	case a := <-done:
		require.NoError(t, a.err)
		assert.Equal(t, platform.PermissionGranted, a.state)
	case <-time.After(time.Second):
		t.Fatal("permission answer not delivered")
	}
}

func TestPermissionHonoursContext(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	srv := httptest.NewServer(b)
	defer srv.Close()

	dial(t, srv)
	waitClients(t, b, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := env.PermissionRequester(platform.MotionFamily)
	_, err := req(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeliverBroadcastsFormattedReading(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, b, 1)

	b.Deliver(motion.Reading{Category: motion.LinearMotion, X: 3.14159, Y: -9.8, Z: motion.Axis(nil)})

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, TypeReading, msg.Type)
	assert.Equal(t, []string{"3.14", "-9.80", format.Placeholder}, msg.Text)
	require.NotNil(t, msg.Reading)
	assert.Equal(t, motion.LinearMotion, msg.Reading.Category)
}

func TestClientRemovedOnDisconnect(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, b, 1)
	conn.Close()
	waitClients(t, b, 0)
}

func ptr(v float64) *float64 { return &v }

func TestWebSocketDropsClientWhenWriteTimesOut(t *testing.T) {
	env := platform.NewRegistry()
	b := NewWebSocketBridge(env, format.DefaultPrecision, quietLogger)
	b.timeout = -time.Second // every write is already past its deadline
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, b, 1)

	done := make(chan struct{})
	go func() {
		b.Deliver(motion.Reading{Category: motion.LinearMotion, X: 1, Y: 2, Z: 3})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Deliver blocked on a client that cannot be written")
	}
	assert.Zero(t, b.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server closes the dropped connection")
}
