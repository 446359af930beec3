package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_sensors/internal/bridge"
	"github.com/relabs-tech/motion_sensors/internal/config"
	"github.com/relabs-tech/motion_sensors/internal/format"
	"github.com/relabs-tech/motion_sensors/internal/geo"
	"github.com/relabs-tech/motion_sensors/internal/motion"
)

// DisplayContentGeo shows the latest position fix instead of a category.
const DisplayContentGeo = "geo"

// displayPlaceholder replaces format.Placeholder, which basicfont cannot
// draw.
const displayPlaceholder = "--"

var displayTitles = map[motion.Category]string{
	motion.LinearMotion:  "Linear m/s2",
	motion.AngularMotion: "Angular",
	motion.Orientation:   "Orientation",
}

// ssd1306DefaultAddr is the address the driver always talks to.
const ssd1306DefaultAddr = 0x3C

// addrBus sends the driver's transfers to the configured address.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b addrBus) Tx(addr uint16, w, r []byte) error {
	if addr == ssd1306DefaultAddr {
		addr = b.addr
	}
	return b.Bus.Tx(addr, w, r)
}

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	reading     motion.Reading
	haveReading bool

	fix     geo.Fix
	haveFix bool
}

func (d *DisplayData) setReading(r motion.Reading) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reading = r
	d.haveReading = true
}

func (d *DisplayData) setFix(f geo.Fix) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fix = f
	d.haveFix = true
}

// displayLines returns the text for the configured content, at most four
// lines for a 128x64 panel.
func displayLines(content string, d *DisplayData, p format.Precision) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if content == DisplayContentGeo {
		if !d.haveFix {
			return []string{"GPS Position", "Waiting..."}
		}
		text := d.fix.Format(p)
		return asciiLines(
			"Lat "+text.Latitude,
			"Lon "+text.Longitude,
			"Acc "+text.Accuracy+"m",
			"Spd "+text.Speed+"m/s",
		)
	}

	cat, err := motion.ParseCategory(content)
	if err != nil {
		return []string{"Unknown content", content}
	}
	if !d.haveReading || d.reading.Category != cat {
		return []string{displayTitles[cat], "Waiting..."}
	}

	text := format.Axes(d.reading, p.For(cat))
	labels := [3]string{"X", "Y", "Z"}
	if cat == motion.Orientation {
		labels = [3]string{"A", "B", "G"}
	}
	return asciiLines(
		displayTitles[cat],
		labels[0]+": "+text[0],
		labels[1]+": "+text[1],
		labels[2]+": "+text[2],
	)
}

func asciiLines(lines ...string) []string {
	for i, l := range lines {
		lines[i] = strings.ReplaceAll(l, format.Placeholder, displayPlaceholder)
	}
	return lines
}

// renderLines draws up to four lines of text on a blank 128x64 frame.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}

func subscribeForContent(client mqtt.Client, content string, data *DisplayData, cfg *config.Config) error {
	topic := cfg.TopicGeo
	var handler mqtt.MessageHandler = func(_ mqtt.Client, msg mqtt.Message) {
		var f geo.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("display: geo unmarshal error: %v", err)
			return
		}
		data.setFix(f)
	}

	if content != DisplayContentGeo {
		cat, err := motion.ParseCategory(content)
		if err != nil {
			return fmt.Errorf("unknown display content type: %s", content)
		}
		topic = readingTopics(cfg)[cat]
		handler = func(_ mqtt.Client, msg mqtt.Message) {
			var r motion.Reading
			if err := json.Unmarshal(msg.Payload(), &r); err != nil {
				log.Printf("display: %s unmarshal error: %v", content, err)
				return
			}
			data.setReading(r)
		}
	}

	token := client.Subscribe(topic, 0, handler)
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", topic)
	return nil
}

// RunDisplay shows the configured category (or the position fix) on an
// SSD1306 OLED, fed by the readings published on MQTT.
func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X showing %s", cfg.DisplayI2CAddr, cfg.DisplayContent)

	if err := dev.Draw(dev.Bounds(), renderLines([]string{"Motion Pi", "Waiting for", "sensors..."}), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := bridge.Connect(cfg.MQTTBroker, clientID(cfg.MQTTClientIDDisplay))
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeForContent(client, cfg.DisplayContent, data, cfg); err != nil {
		return fmt.Errorf("failed to subscribe for display: %w", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")
	precision := cfg.Precision()
	for range ticker.C {
		img := renderLines(displayLines(cfg.DisplayContent, data, precision))
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
	return nil
}
