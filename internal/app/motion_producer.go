// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/motion_sensors/internal/bridge"
	"github.com/relabs-tech/motion_sensors/internal/config"
)

// RunMotionProducer starts all three categories and publishes their
// readings and status to MQTT until interrupted.
func RunMotionProducer() error {
	cfg := config.Get()
	logger := log.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bridge.Connect(cfg.MQTTBroker, clientID(cfg.MQTTClientIDMotion))
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	logger.Printf("producer: connected to MQTT broker at %s (mode %s)", cfg.MQTTBroker, cfg.BackendMode)

	env, err := newEnvironment(ctx, cfg, client, logger)
	if err != nil {
		return err
	}

	pub := bridge.NewReadingPublisher(client, readingTopics(cfg), cfg.TopicStatus, logger)
	ctrl := newController(env, cfg, pub, pub.PublishStatus, logger)
	logResults(logger, ctrl.StartAll(ctx))

	<-ctx.Done()
	logger.Println("producer: shutting down")
	ctrl.StopAll()
	return nil
}
