package geo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_sensors/internal/format"
)

const (
	sentenceRMC     = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
	sentenceGGA     = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	sentenceVoidRMC = "$GPRMC,123520,V,,,,,,,230394,,*39"
)

var quietLogger = log.New(io.Discard, "", 0)

func TestFeedRMC(t *testing.T) {
	p := NewParser()
	fix, ok, err := p.Feed(sentenceRMC)
	require.NoError(t, err)
	require.True(t, ok)

	assert.InDelta(t, 48.1173, fix.Latitude, 1e-4)
	assert.InDelta(t, 11.516667, fix.Longitude, 1e-4)
	assert.InDelta(t, 22.4*knotsToMPS, fix.Speed, 1e-9)
	assert.InDelta(t, 84.4, fix.Heading, 1e-9)
	assert.True(t, math.IsNaN(fix.Accuracy), "no GGA seen yet")
	assert.True(t, math.IsNaN(fix.Altitude))
	assert.Equal(t, time.Date(1994, 3, 23, 12, 35, 19, 0, time.UTC), fix.Timestamp)
}

func TestFeedGGAContributesToNextFix(t *testing.T) {
	p := NewParser()
	_, ok, err := p.Feed(sentenceGGA)
	require.NoError(t, err)
	assert.False(t, ok)

	fix, ok, err := p.Feed(sentenceRMC)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 545.4, fix.Altitude, 1e-9)
	assert.InDelta(t, 0.9*hdopToMeters, fix.Accuracy, 1e-9)
}

func TestFeedVoidRMCYieldsNoFix(t *testing.T) {
	_, ok, _ := NewParser().Feed(sentenceVoidRMC)
	assert.False(t, ok)
}

func TestFeedIgnoresNoise(t *testing.T) {
	p := NewParser()
	for _, line := range []string{"", "garbage", "$GPRMC,broken*00"} {
		_, ok, _ := p.Feed(line)
		assert.False(t, ok, line)
	}
}

func TestFixFormat(t *testing.T) {
	fix := Fix{Latitude: 12.3456789, Longitude: -0.5, Accuracy: 4.26, Speed: math.NaN()}
	text := fix.Format(format.DefaultPrecision)

	assert.Equal(t, "12.345679", text.Latitude)
	assert.Equal(t, "-0.500000", text.Longitude)
	assert.Equal(t, "4.3", text.Accuracy)
	assert.Equal(t, format.Placeholder, text.Speed)
}

func TestFixJSONUnknownIsNull(t *testing.T) {
	fix := Fix{Latitude: 1, Longitude: 2, Accuracy: 3, Speed: math.NaN(), Altitude: math.NaN(), Heading: math.NaN()}
	b, err := json.Marshal(fix)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"speed":null`)

	var back Fix
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 3.0, back.Accuracy)
	assert.True(t, math.IsNaN(back.Speed))
}

func TestScanDeliversFixes(t *testing.T) {
	input := strings.Join([]string{sentenceGGA, "noise", sentenceRMC, sentenceVoidRMC, sentenceRMC}, "\r\n")
	var fixes []Fix
	err := Scan(context.Background(), strings.NewReader(input), func(f Fix) { fixes = append(fixes, f) }, quietLogger)
	require.NoError(t, err)
	assert.Len(t, fixes, 2)
}

// pipePort is an in-memory serial port.
type pipePort struct {
	*io.PipeReader
	closeOnce sync.Once
}

func (p *pipePort) Close() error {
	p.closeOnce.Do(func() { p.PipeReader.Close() })
	return nil
}

func newTestWatcher() (*Watcher, *io.PipeWriter) {
	r, w := io.Pipe()
	watcher := &Watcher{
		open:   func() (io.ReadCloser, error) { return &pipePort{PipeReader: r}, nil },
		logger: quietLogger,
	}
	return watcher, w
}

func TestWatcherWatchAndClear(t *testing.T) {
	watcher, w := newTestWatcher()

	fixes := make(chan Fix, 4)
	require.NoError(t, watcher.Watch(context.Background(), func(f Fix) { fixes <- f }))
	assert.True(t, watcher.Watching())

	go func() { _, _ = io.WriteString(w, sentenceRMC+"\r\n") }()
	select {
	case f := <-fixes:
		assert.InDelta(t, 48.1173, f.Latitude, 1e-4)
	case <-time.After(time.Second):
		t.Fatal("no fix delivered")
	}

	watcher.Clear()
	assert.False(t, watcher.Watching())
	// The writer sees the closed port.
	_, err := io.WriteString(w, sentenceRMC+"\r\n")
	assert.Error(t, err)
}

func TestWatcherStopsWithContext(t *testing.T) {
	watcher, _ := newTestWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, watcher.Watch(ctx, func(Fix) {}))

	cancel()
	require.Eventually(t, func() bool { return !watcher.Watching() }, time.Second, 5*time.Millisecond)
}

func TestWatcherOpenError(t *testing.T) {
	watcher := &Watcher{
		open:   func() (io.ReadCloser, error) { return nil, errors.New("no such device") },
		logger: quietLogger,
	}
	err := watcher.Watch(context.Background(), func(Fix) {})
	assert.Error(t, err)
	assert.False(t, watcher.Watching())
}

func TestClearWithoutWatch(t *testing.T) {
	watcher, _ := newTestWatcher()
	assert.NotPanics(t, watcher.Clear)
}
