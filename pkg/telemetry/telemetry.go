// Package telemetry assembles sensor readings into samples and renders them
// as the downlink sentence and the CSV data log line.
package telemetry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Unavailable is reported in place of a reading when a sensor fails.
const Unavailable = 9999.0

// PowerLevel tags every sentence with the transmit power in use.
type PowerLevel byte

const (
	PowerLow  PowerLevel = 'L'
	PowerHigh PowerLevel = 'H'
)

func (p PowerLevel) String() string {
	switch p {
	case PowerLow, PowerHigh:
		return string(p)
	}
	return "?"
}

// Reading is one pass over the sensors. Latitude and Longitude are in raw
// NMEA ddmm.mmmm / dddmm.mmmm form.
type Reading struct {
	Latitude     float64
	NS           byte
	Longitude    float64
	EW           byte
	Altitude     float64
	Heading      float64
	Speed        float64
	Satellites   int
	Battery      float64
	Pressure     float64
	TempInternal float64
	TempExternal float64
	Power        PowerLevel
}

// Sample is a Reading stamped with its time and ascent rate.
type Sample struct {
	Reading
	AscentRate float64
	Time       time.Time
}

// Builder turns readings into samples. It keeps the previous altitude and
// time to derive the ascent rate.
type Builder struct {
	ID        string
	Message   string
	Separator string

	prevAltitude float64
	prevTime     time.Time
}

func NewBuilder(id, message, separator string) *Builder {
	return &Builder{
		ID:        id,
		Message:   message,
		Separator: separator,
	}
}

// Build stamps r with now. The first sample, and any sample less than a
// millisecond after the previous one, has an ascent rate of zero.
func (b *Builder) Build(r Reading, now time.Time) Sample {
	s := Sample{
		Reading: r,
		Time:    now.UTC(),
	}

	if !b.prevTime.IsZero() {
		if ms := now.Sub(b.prevTime).Milliseconds(); ms != 0 {
			s.AscentRate = (r.Altitude - b.prevAltitude) / (float64(ms) / 1000.0)
		}
	}

	b.prevAltitude = r.Altitude
	b.prevTime = now
	return s
}

// Sentence formats s with the builder's identity.
func (b *Builder) Sentence(s Sample) string {
	return s.APRS(b.ID, b.Separator, b.Message)
}

// DecimalDegrees converts an NMEA ddmm.mmmm value to decimal degrees.
func DecimalDegrees(v float64) float64 {
	deg := math.Trunc(v / 100.0)
	return deg + (v-deg*100.0)/60.0
}

func (s Sample) DecimalLatitude() float64 {
	return DecimalDegrees(s.Latitude)
}

func (s Sample) DecimalLongitude() float64 {
	return DecimalDegrees(s.Longitude)
}

func (s Sample) date() string {
	return s.Time.UTC().Format("02-01-2006")
}

func (s Sample) clock() string {
	return s.Time.UTC().Format("15:04:05")
}

// APRS renders the downlink sentence, terminated by a newline. Newlines in
// msg are flattened to " - ".
func (s Sample) APRS(id, sep, msg string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "$$%s!%07.2f%c%s%08.2f%cO", id, s.Latitude, s.NS, sep, s.Longitude, s.EW)
	fmt.Fprintf(&b, "%.1f%s", s.Heading, sep)
	fmt.Fprintf(&b, "%.1f%s", s.Speed, sep)
	fmt.Fprintf(&b, "A=%.1f%s", s.Altitude, sep)
	fmt.Fprintf(&b, "V=%.2f%s", s.Battery, sep)
	fmt.Fprintf(&b, "P=%.1f%s", s.Pressure, sep)
	fmt.Fprintf(&b, "TI=%.1f%s", s.TempInternal, sep)
	fmt.Fprintf(&b, "TO=%.1f%s", s.TempExternal, sep)
	fmt.Fprintf(&b, "%s%s%s%s", s.date(), sep, s.clock(), sep)
	fmt.Fprintf(&b, "GPS=%09.6f%c,%010.6f%c%s", s.DecimalLatitude(), s.NS, s.DecimalLongitude(), s.EW, sep)
	fmt.Fprintf(&b, "SATS=%d%s", s.Satellites, sep)
	fmt.Fprintf(&b, "AR=%.1f%s", s.AscentRate, sep)
	b.WriteString(strings.ReplaceAll(msg, "\n", " - "))
	fmt.Fprintf(&b, " - %s\n", s.Power)

	return b.String()
}

// CSVHeader names the columns of CSV.
const CSVHeader = "date,time,lat,ns,lon,ew,alt,vbat,tin,tout,baro,hdg,spd,sats,arate"

// CSV renders the data log line, without a trailing newline. Decimal
// coordinates are written in their shortest single precision form.
func (s Sample) CSV() string {
	fields := []string{
		s.date(),
		s.clock(),
		strconv.FormatFloat(s.DecimalLatitude(), 'f', -1, 32),
		string(s.NS),
		strconv.FormatFloat(s.DecimalLongitude(), 'f', -1, 32),
		string(s.EW),
		fmt.Sprintf("%.1f", s.Altitude),
		fmt.Sprintf("%.2f", s.Battery),
		fmt.Sprintf("%.1f", s.TempInternal),
		fmt.Sprintf("%.1f", s.TempExternal),
		fmt.Sprintf("%.1f", s.Pressure),
		fmt.Sprintf("%.1f", s.Heading),
		fmt.Sprintf("%.1f", s.Speed),
		strconv.Itoa(s.Satellites),
		fmt.Sprintf("%.1f", s.AscentRate),
	}
	return strings.Join(fields, ",")
}

// SignedPosition is the decimal position with south and west negative.
func (s Sample) SignedPosition() (lat, lon float64) {
	lat, lon = s.DecimalLatitude(), s.DecimalLongitude()
	if s.NS == 'S' {
		lat = -lat
	}
	if s.EW == 'W' {
		lon = -lon
	}
	return lat, lon
}

// Caption is the short position line drawn on transmitted images.
func (s Sample) Caption() string {
	return fmt.Sprintf("%.6f%c, %.6f%c, %.0fm", s.DecimalLatitude(), s.NS, s.DecimalLongitude(), s.EW, s.Altitude)
}
