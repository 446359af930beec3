package main

import (
	"log"

	"github.com/relabs-tech/motion_sensors/internal/app"
	"github.com/relabs-tech/motion_sensors/internal/config"
)

func main() {
	log.Println("starting motion-sensors console (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("motion_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsoleMQTT(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
