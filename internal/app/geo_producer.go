package app

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/motion_sensors/internal/bridge"
	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/geo"
)

// RunGeoProducer watches the GPS receiver and publishes each fix as JSON
// on the geo topic until interrupted.
func RunGeoProducer() error {
	cfg := config.Get()
	precision := cfg.Precision()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bridge.Connect(cfg.MQTTBroker, clientID(cfg.MQTTClientIDGeo))
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("geo: connected to MQTT broker at %s", cfg.MQTTBroker)

	watcher := geo.NewWatcher(cfg.GPSSerialPort, cfg.GPSBaudRate, log.Default())
	err = watcher.Watch(ctx, func(f geo.Fix) {
		payload, err := json.Marshal(f)
		if err != nil {
			log.Printf("geo: JSON marshal error: %v", err)
			return
		}
		token := client.Publish(cfg.TopicGeo, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			log.Printf("geo: publish error: %v", token.Error())
			return
		}
		log.Println(FormatFixLine(f, precision))
	})
	if err != nil {
		return err
	}
	defer watcher.Clear()

	<-ctx.Done()
	log.Println("geo: shutting down")
	return nil
}
