// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/motion_sensors/internal/format"
	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// ErrNoClient is returned by permission prompts when no browser is connected.
var ErrNoClient = errors.New("no browser client connected")

// Message types exchanged with browser clients.
const (
	TypeDeviceMotion      = "devicemotion"
	TypeDeviceOrientation = "deviceorientation"
	TypeRequestPermission = "request_permission" // server -> client
	TypePermission        = "permission"         // client -> server answer
	TypeReading           = "reading"            // server -> client
	TypeError             = "error"
)

// Message is the JSON envelope used on the websocket.
type Message struct {
	Type        string                     `json:"type"`
	ID          string                     `json:"id,omitempty"`
	Family      platform.Family            `json:"family,omitempty"`
	State       platform.PermissionState   `json:"state,omitempty"`
	Error       string                     `json:"error,omitempty"`
	Motion      *platform.MotionEvent      `json:"motion,omitempty"`
	Orientation *platform.OrientationEvent `json:"orientation,omitempty"`
	Reading     *motion.Reading            `json:"reading,omitempty"`
	Text        []string                   `json:"text,omitempty"` // formatted axes
}

// writeTimeout bounds every write to a client.
const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

type wsClient struct {
	id      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) send(m Message, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(m)
}

// WebSocketBridge lets a browser act as the combined-event backend: it
// forwards devicemotion and deviceorientation events from the page into
// the environment, answers permission prompts, and receives readings back
// for display.
type WebSocketBridge struct {
	motion      *platform.Target[platform.MotionEvent]
	orientation *platform.Target[platform.OrientationEvent]
	precision   format.Precision
	logger      *log.Logger
	timeout     time.Duration

	mu      sync.Mutex
	clients []*wsClient // in connection order
	pending map[string]chan Message
}

// NewWebSocketBridge enables both combined events on env and installs
// permission prompts that are answered by the most recently connected
// client.
func NewWebSocketBridge(env *platform.Registry, precision format.Precision, logger *log.Logger) *WebSocketBridge {
	if logger == nil {
		logger = log.Default()
	}
	b := &WebSocketBridge{
		motion:      env.EnableMotionEvents(),
		orientation: env.EnableOrientationEvents(),
		precision:   precision,
		logger:      logger,
		timeout:     writeTimeout,
		pending:     make(map[string]chan Message),
	}
	env.RegisterPermission(platform.MotionFamily, b.permissionPrompt(platform.MotionFamily))
	env.RegisterPermission(platform.OrientationFamily, b.permissionPrompt(platform.OrientationFamily))
	return b
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (b *WebSocketBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Printf("bridge: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	client := &wsClient{id: uuid.NewString(), conn: conn}
	b.addClient(client)
	defer b.removeClient(client)
	b.logger.Printf("bridge: client %s connected from %s", client.id, r.RemoteAddr)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Printf("bridge: client %s websocket error: %v", client.id, err)
			}
			break
		}
		if err := b.handle(msg); err != nil {
			b.logger.Printf("bridge: client %s: %v", client.id, err)
			if err := b.send(client, Message{Type: TypeError, Error: err.Error()}); err != nil {
				break
			}
		}
	}
	b.logger.Printf("bridge: client %s disconnected", client.id)
}

func (b *WebSocketBridge) handle(msg Message) error {
	switch msg.Type {
	case TypeDeviceMotion:
		if msg.Motion == nil {
			return fmt.Errorf("%s message without motion payload", msg.Type)
		}
		b.motion.Dispatch(*msg.Motion)
	case TypeDeviceOrientation:
		if msg.Orientation == nil {
			return fmt.Errorf("%s message without orientation payload", msg.Type)
		}
		b.orientation.Dispatch(*msg.Orientation)
	case TypePermission:
		b.mu.Lock()
		ch, ok := b.pending[msg.ID]
		delete(b.pending, msg.ID)
		b.mu.Unlock()
		if !ok {
			return fmt.Errorf("permission answer for unknown request %q", msg.ID)
		}
		ch <- msg
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func (b *WebSocketBridge) permissionPrompt(f platform.Family) platform.PermissionRequester {
	return func(ctx context.Context) (platform.PermissionState, error) {
		client := b.latestClient()
		if client == nil {
			return "", ErrNoClient
		}

		id := uuid.NewString()
		reply := make(chan Message, 1)
		b.mu.Lock()
		b.pending[id] = reply
		b.mu.Unlock()
		defer func() {
			b.mu.Lock()
			delete(b.pending, id)
			b.mu.Unlock()
		}()

		if err := b.send(client, Message{Type: TypeRequestPermission, ID: id, Family: f}); err != nil {
			return "", fmt.Errorf("send %s permission request: %w", f, err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case msg := <-reply:
			if msg.Error != "" {
				return "", errors.New(msg.Error)
			}
			return msg.State, nil
		}
	}
}

// Deliver sends a reading to every connected client. A client whose write
// fails or times out is dropped.
func (b *WebSocketBridge) Deliver(r motion.Reading) {
	text := format.Axes(r, b.precision.For(r.Category))
	msg := Message{Type: TypeReading, Reading: &r, Text: text[:]}
	for _, c := range b.snapshot() {
		_ = b.send(c, msg)
	}
}

// send writes m to c. On failure c is removed and its connection closed,
// which also ends its read loop.
func (b *WebSocketBridge) send(c *wsClient, m Message) error {
	err := c.send(m, b.timeout)
	if err != nil {
		b.logger.Printf("bridge: client %s send error, dropping: %v", c.id, err)
		b.removeClient(c)
		c.conn.Close()
	}
	return err
}

// Clients returns the number of connected clients.
func (b *WebSocketBridge) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *WebSocketBridge) addClient(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients = append(b.clients, c)
}

func (b *WebSocketBridge) removeClient(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.clients {
		if existing == c {
			b.clients = append(b.clients[:i], b.clients[i+1:]...)
			return
		}
	}
}

func (b *WebSocketBridge) latestClient() *wsClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) == 0 {
		return nil
	}
	return b.clients[len(b.clients)-1]
}

func (b *WebSocketBridge) snapshot() []*wsClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*wsClient(nil), b.clients...)
}
