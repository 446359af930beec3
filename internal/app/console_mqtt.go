package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/motion_sensors/internal/bridge"
	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/geo"
	"github.com/relabs-tech/motion_sensors/internal/motion"
)

// RunConsoleMQTT prints readings, position fixes and session status
// published by the producers.
func RunConsoleMQTT() error {
	cfg := config.Get()
	precision := cfg.Precision()

	client, err := bridge.Connect(cfg.MQTTBroker, clientID(cfg.MQTTClientIDConsole))
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	for _, cat := range motion.Categories() {
		topic := readingTopics(cfg)[cat]
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var r motion.Reading
			if err := json.Unmarshal(msg.Payload(), &r); err != nil {
				log.Printf("console: %s unmarshal error: %v", msg.Topic(), err)
				return
			}
			fmt.Println(FormatLine(r, precision))
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	geoToken := client.Subscribe(cfg.TopicGeo, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f geo.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: geo unmarshal error: %v", err)
			return
		}
		fmt.Println(FormatFixLine(f, precision))
	})
	geoToken.Wait()
	if geoToken.Error() != nil {
		return geoToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGeo)

	statusTopic := cfg.TopicStatus + "/+"
	statusToken := client.Subscribe(statusTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st statusMessage
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("console: status unmarshal error: %v", err)
			return
		}
		fmt.Printf("[STS] %s %s backend=%s degraded=%v\n", st.Category, st.State, st.Backend, st.Degraded)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("console: subscribed to %s", statusTopic)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("console: shutting down")
	return nil
}

// statusMessage mirrors the JSON of session.Status with its enums as text.
type statusMessage struct {
	Category string `json:"category"`
	State    string `json:"state"`
	Backend  string `json:"backend"`
	Degraded bool   `json:"degraded"`
}
