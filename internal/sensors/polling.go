package sensors

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/relabs-tech/motion_sensors/internal/platform"
)

// ReadFunc samples three axes from a device.
type ReadFunc func() (x, y, z float64, err error)

// Polling turns a blocking ReadFunc into a push-style platform.Sensor:
// while started it samples at a fixed rate, stores the values and notifies
// listeners without a payload.
type Polling struct {
	name     string
	interval time.Duration
	read     ReadFunc
	logger   *log.Logger

	mu      sync.Mutex
	x, y, z float64
	stop    chan struct{}

	listeners *platform.Target[struct{}]
}

// NewPolling returns a stopped sensor sampling read at frequency Hz.
func NewPolling(name string, frequency float64, read ReadFunc, logger *log.Logger) *Polling {
	if frequency <= 0 {
		frequency = platform.DefaultFrequency
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Polling{
		name:      name,
		interval:  time.Duration(float64(time.Second) / frequency),
		read:      read,
		logger:    logger,
		x:         math.NaN(),
		y:         math.NaN(),
		z:         math.NaN(),
		listeners: platform.NewTarget[struct{}](),
	}
}

// Start begins sampling. Starting a running sensor does nothing.
func (p *Polling) Start() error {
	if p.read == nil {
		return errors.New(p.name + ": no read function")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return nil
	}
	p.stop = make(chan struct{})
	go p.loop(p.stop)
	return nil
}

// Stop ends sampling. It does not wait for a notification already being
// delivered, so it may be called from a listener.
func (p *Polling) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return nil
}

func (p *Polling) Values() (float64, float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y, p.z
}

func (p *Polling) OnReading(fn func()) *platform.Subscription {
	return p.listeners.Listen(func(struct{}) { fn() })
}

func (p *Polling) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		x, y, z, err := p.read()
		if err != nil {
			p.logger.Printf("sensors: %s read error: %v", p.name, err)
			continue
		}

		p.mu.Lock()
		p.x, p.y, p.z = x, y, z
		p.mu.Unlock()

		select {
		case <-stop:
			return
		default:
		}
		p.listeners.Dispatch(struct{}{})
	}
}
