// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bridge

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_sensors/internal/motion"
	"github.com/relabs-tech/motion_sensors/internal/platform"
	"github.com/relabs-tech/motion_sensors/internal/session"
)

// Subscriber is the part of mqtt.Client used by SubscribeEvents.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Publisher is the part of mqtt.Client used by ReadingPublisher.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Connect creates and connects an MQTT client.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}

// SubscribeEvents forwards combined motion and orientation events published
// on MQTT into env, making a remote device the combined-event backend.
// Malformed payloads are logged and dropped.
func SubscribeEvents(client Subscriber, env *platform.Registry, motionTopic, orientationTopic string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	motionTarget := env.EnableMotionEvents()
	orientationTarget := env.EnableOrientationEvents()

	onMotion := func(_ mqtt.Client, msg mqtt.Message) {
		var ev platform.MotionEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			logger.Printf("bridge: bad motion event on %s: %v", msg.Topic(), err)
			return
		}
		motionTarget.Dispatch(ev)
	}
	onOrientation := func(_ mqtt.Client, msg mqtt.Message) {
		var ev platform.OrientationEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			logger.Printf("bridge: bad orientation event on %s: %v", msg.Topic(), err)
			return
		}
		orientationTarget.Dispatch(ev)
	}

	if token := client.Subscribe(motionTopic, 0, onMotion); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", motionTopic, token.Error())
	}
	if token := client.Subscribe(orientationTopic, 0, onOrientation); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", orientationTopic, token.Error())
	}
	logger.Printf("bridge: subscribed to %s and %s", motionTopic, orientationTopic)
	return nil
}

// ReadingPublisher publishes readings as JSON on one topic per category and
// session status changes on a status topic. It is both a session.Sink and,
// through PublishStatus, a session.Observer.
type ReadingPublisher struct {
	client      Publisher
	topics      map[motion.Category]string
	statusTopic string
	logger      *log.Logger
}

// NewReadingPublisher creates a publisher. Categories without a topic are
// not published.
func NewReadingPublisher(client Publisher, topics map[motion.Category]string, statusTopic string, logger *log.Logger) *ReadingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &ReadingPublisher{client: client, topics: topics, statusTopic: statusTopic, logger: logger}
}

// Deliver implements session.Sink.
func (p *ReadingPublisher) Deliver(r motion.Reading) {
	topic, ok := p.topics[r.Category]
	if !ok || topic == "" {
		return
	}
	p.publish(topic, false, r)
}

// PublishStatus publishes st retained, so late subscribers see the current
// state of each category.
func (p *ReadingPublisher) PublishStatus(st session.Status) {
	if p.statusTopic == "" {
		return
	}
	p.publish(p.statusTopic+"/"+st.Category.String(), true, st)
}

func (p *ReadingPublisher) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Printf("bridge: json marshal for %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, 0, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.logger.Printf("bridge: mqtt publish to %s: %v", topic, err)
	}
}
