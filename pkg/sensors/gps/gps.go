// Package gps reads position fixes from an NMEA 0183 receiver.
package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ashab/nsx/pkg/telemetry"
)

var (
	ErrGGA   = errors.New("gps: no GGA sentence")
	ErrRMC   = errors.New("gps: no RMC sentence")
	ErrParse = errors.New("gps: not enough fields")
	ErrFix   = errors.New("gps: no fix")
	ErrSats  = errors.New("gps: not enough satellites")
)

// Field positions in GGA and RMC sentences, counting the talker as 0.
const (
	fieldTime  = 1
	fieldLat   = 2
	fieldNS    = 3
	fieldLon   = 4
	fieldEW    = 5
	fieldSats  = 7
	fieldAlt   = 9
	fieldSpeed = 7
	fieldHdg   = 8
	fieldDate  = 9

	minGGAFields = 9
	minRMCFields = 8

	// MinSats is the least number of satellites accepted as a fix.
	MinSats = 4

	maxSentenceLines = 64
)

// Fix is the last accepted position. Latitude and Longitude keep the NMEA
// ddmm.mmmm form.
type Fix struct {
	Latitude   float64
	NS         byte
	Longitude  float64
	EW         byte
	Altitude   float64
	Heading    float64
	Speed      float64
	Satellites int
}

// DefaultFix is reported until the receiver produces a usable sentence.
var DefaultFix = Fix{
	Latitude:  4332.94,
	NS:        'N',
	Longitude: 539.78,
	EW:        'W',
}

type GPS struct {
	r *bufio.Reader

	fix     Fix
	time    string
	date    string
	lastGGA string
	lastRMC string
}

func New(r io.Reader) *GPS {
	return &GPS{
		r:   bufio.NewReader(r),
		fix: DefaultFix,
	}
}

// Update consumes input up to the next GGA sentence and the RMC sentence
// after it, then parses both. Fields that fail to parse keep their previous
// value. When the satellite count is missing or below MinSats, the
// satellite count is updated and nothing else is.
func (g *GPS) Update() error {
	gga, err := g.nextSentence("GGA")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGGA, err)
	}
	g.lastGGA = gga
	rmc, err := g.nextSentence("RMC")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRMC, err)
	}
	g.lastRMC = rmc

	ggaFields := strings.Split(gga, ",")
	rmcFields := strings.Split(rmc, ",")
	if len(ggaFields) < minGGAFields || len(rmcFields) < minRMCFields {
		return fmt.Errorf("%w: gga %d, rmc %d", ErrParse, len(ggaFields), len(rmcFields))
	}

	sats, err := strconv.Atoi(ggaFields[fieldSats])
	if err != nil {
		g.fix.Satellites = 0
		return fmt.Errorf("%w: satellites %q", ErrFix, ggaFields[fieldSats])
	}
	g.fix.Satellites = sats
	if sats < MinSats {
		return fmt.Errorf("%w: %d", ErrSats, sats)
	}

	parseFloat(ggaFields[fieldLat], &g.fix.Latitude)
	parseByte(ggaFields[fieldNS], &g.fix.NS)
	parseFloat(ggaFields[fieldLon], &g.fix.Longitude)
	parseByte(ggaFields[fieldEW], &g.fix.EW)
	if len(ggaFields) > fieldAlt {
		parseFloat(ggaFields[fieldAlt], &g.fix.Altitude)
	}
	parseFloat(rmcFields[fieldSpeed], &g.fix.Speed)
	if len(rmcFields) > fieldHdg {
		parseFloat(rmcFields[fieldHdg], &g.fix.Heading)
	}
	if len(rmcFields) > fieldDate {
		g.date = rmcFields[fieldDate]
	}
	g.time = ggaFields[fieldTime]

	return nil
}

func (g *GPS) nextSentence(kind string) (string, error) {
	for i := 0; i < maxSentenceLines; i++ {
		line, err := g.r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if len(line) >= 6 && line[3:6] == kind {
			return line, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("none in %d lines", maxSentenceLines)
}

func parseFloat(s string, dst *float64) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*dst = v
	}
}

func parseByte(s string, dst *byte) {
	if s != "" {
		*dst = s[0]
	}
}

func (g *GPS) Fix() Fix {
	return g.fix
}

// Time is the raw hhmmss.ss field of the last GGA sentence.
func (g *GPS) Time() string {
	return g.time
}

// Date is the raw ddmmyy field of the last RMC sentence.
func (g *GPS) Date() string {
	return g.date
}

// UTC combines Date and Time.
func (g *GPS) UTC() (time.Time, error) {
	hms := g.time
	if i := strings.IndexByte(hms, '.'); i >= 0 {
		hms = hms[:i]
	}
	t, err := time.Parse("020106150405", g.date+hms)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q time %q", ErrParse, g.date, g.time)
	}
	return t, nil
}

// LastSentences returns the raw GGA and RMC lines of the last Update, for
// diagnostics.
func (g *GPS) LastSentences() (gga, rmc string) {
	return g.lastGGA, g.lastRMC
}

func (g *GPS) DecimalLatitude() float64 {
	return telemetry.DecimalDegrees(g.fix.Latitude)
}

func (g *GPS) DecimalLongitude() float64 {
	return telemetry.DecimalDegrees(g.fix.Longitude)
}
