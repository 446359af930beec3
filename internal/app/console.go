// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_sensors/internal/bridge"
	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/format"
	"github.com/relabs-tech/motion_sensors/internal/geo"
	"github.com/relabs-tech/motion_sensors/internal/motion"
)

var categoryTags = map[motion.Category]string{
	motion.LinearMotion:  "LIN",
	motion.AngularMotion: "ANG",
	motion.Orientation:   "ORI",
}

// axisLabels names the three axes of each category on screen.
func axisLabels(c motion.Category) [3]string {
	if c == motion.Orientation {
		return [3]string{"alpha", "beta", "gamma"}
	}
	return [3]string{"x", "y", "z"}
}

// FormatLine renders r as one console line, e.g. "[LIN] x=0.10 y=-9.80 z=0.30".
func FormatLine(r motion.Reading, p format.Precision) string {
	text := format.Axes(r, p.For(r.Category))
	labels := axisLabels(r.Category)
	return fmt.Sprintf("[%s] %s=%s %s=%s %s=%s",
		categoryTags[r.Category],
		labels[0], text[0],
		labels[1], text[1],
		labels[2], text[2],
	)
}

// FormatFixLine renders a position fix as one console line.
func FormatFixLine(f geo.Fix, p format.Precision) string {
	text := f.Format(p)
	return fmt.Sprintf("[GEO] lat=%s lon=%s acc=%sm speed=%sm/s",
		text.Latitude, text.Longitude, text.Accuracy, text.Speed)
}

// ConsoleSink prints every reading it receives.
type ConsoleSink struct {
	mu        sync.Mutex
	w         io.Writer
	precision format.Precision
}

// NewConsoleSink prints to w using precision p.
func NewConsoleSink(w io.Writer, p format.Precision) *ConsoleSink {
	return &ConsoleSink{w: w, precision: p}
}

// Deliver implements session.Sink.
func (c *ConsoleSink) Deliver(r motion.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, FormatLine(r, c.precision))
}

// RunConsole acquires readings locally and prints them, without MQTT
// publication. MQTT is only used as an event source in the modes that
// take bridged events.
func RunConsole() error {
	cfg := config.Get()
	logger := log.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var client mqtt.Client
	if usesBridgedEvents(cfg.BackendMode) {
		var err error
		client, err = bridge.Connect(cfg.MQTTBroker, clientID(cfg.MQTTClientIDConsole))
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		logger.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)
	}

	env, err := newEnvironment(ctx, cfg, client, logger)
	if err != nil {
		return err
	}
	ctrl := newController(env, cfg, NewConsoleSink(os.Stdout, cfg.Precision()), nil, logger)
	logResults(logger, ctrl.StartAll(ctx))

	<-ctx.Done()
	ctrl.StopAll()
	logger.Println("console: shutting down")
	return nil
}
