// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geo watches a serial NMEA receiver and reports position fixes.
package geo

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/relabs-tech/motion_sensors/internal/format"
)

const (
	knotsToMPS = 0.514444
	// hdopToMeters approximates horizontal accuracy from HDOP using a
	// typical consumer receiver range error.
	hdopToMeters = 5.0
)

// ErrNoFix is reported for RMC sentences flagged void by the receiver.
var ErrNoFix = errors.New("receiver has no valid fix")

// Fix is one position report. Optional quantities are NaN when unknown.
type Fix struct {
	Timestamp time.Time
	Latitude  float64 // decimal degrees
	Longitude float64 // decimal degrees
	Accuracy  float64 // meters
	Speed     float64 // m/s
	Altitude  float64 // meters
	Heading   float64 // degrees from true north
}

type fixJSON struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy"`
	Speed     *float64  `json:"speed"`
	Altitude  *float64  `json:"altitude"`
	Heading   *float64  `json:"heading"`
}

// MarshalJSON renders unknown quantities as null.
func (f Fix) MarshalJSON() ([]byte, error) {
	return json.Marshal(fixJSON{
		Timestamp: f.Timestamp,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  known(f.Accuracy),
		Speed:     known(f.Speed),
		Altitude:  known(f.Altitude),
		Heading:   known(f.Heading),
	})
}

func (f *Fix) UnmarshalJSON(b []byte) error {
	var raw fixJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*f = Fix{
		Timestamp: raw.Timestamp,
		Latitude:  raw.Latitude,
		Longitude: raw.Longitude,
		Accuracy:  orNaN(raw.Accuracy),
		Speed:     orNaN(raw.Speed),
		Altitude:  orNaN(raw.Altitude),
		Heading:   orNaN(raw.Heading),
	}
	return nil
}

func known(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// Text is a fix rendered for display.
type Text struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Accuracy  string `json:"accuracy"`
	Speed     string `json:"speed"`
}

// Format renders f with the coordinate, accuracy and speed precisions of p.
func (f Fix) Format(p format.Precision) Text {
	return Text{
		Latitude:  format.Fixed(f.Latitude, p.Coordinate),
		Longitude: format.Fixed(f.Longitude, p.Coordinate),
		Accuracy:  format.Fixed(f.Accuracy, p.Accuracy),
		Speed:     format.Fixed(f.Speed, p.Speed),
	}
}

// Parser accumulates NMEA sentences into fixes. RMC completes a fix; GGA
// contributes altitude and accuracy to the next one.
type Parser struct {
	altitude float64
	accuracy float64
}

// NewParser returns a parser with no GGA data yet.
func NewParser() *Parser {
	return &Parser{altitude: math.NaN(), accuracy: math.NaN()}
}

// Feed parses one line. It returns a fix when the line completes one.
// Lines that are not NMEA sentences are ignored without error.
func (p *Parser) Feed(line string) (Fix, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false, err
	}

	switch sentence.DataType() {
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		if m.FixQuality == nmea.Invalid {
			p.altitude, p.accuracy = math.NaN(), math.NaN()
			return Fix{}, false, nil
		}
		p.altitude = m.Altitude
		p.accuracy = m.HDOP * hdopToMeters
		return Fix{}, false, nil

	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			return Fix{}, false, ErrNoFix
		}
		return Fix{
			Timestamp: timestamp(m.Date, m.Time),
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
			Accuracy:  p.accuracy,
			Speed:     m.Speed * knotsToMPS,
			Altitude:  p.altitude,
			Heading:   m.Course,
		}, true, nil
	}
	return Fix{}, false, nil
}

func timestamp(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Time{}
	}
	year := 2000 + d.YY
	if d.YY >= 70 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
