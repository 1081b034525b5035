// Package ds18b20 reads Maxim DS18B20 1-Wire temperature probes through the
// Linux w1-therm driver.
package ds18b20

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const DefaultDevicesDir = "/sys/bus/w1/devices"

var (
	ErrCRC    = errors.New("ds18b20: crc check failed")
	ErrFormat = errors.New("ds18b20: unexpected w1_slave format")
)

type Probe struct {
	path string
}

type Option func(p *Probe)

// WithDevicesDir overrides where the w1 device directories live.
func WithDevicesDir(dir string) Option {
	return func(p *Probe) {
		p.path = filepath.Join(dir, filepath.Base(filepath.Dir(p.path)), "w1_slave")
	}
}

// New returns a probe for the 1-Wire address addr, e.g. "28-0316a1b1c3ff".
func New(addr string, opts ...Option) *Probe {
	p := &Probe{path: filepath.Join(DefaultDevicesDir, addr, "w1_slave")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Read returns the temperature in degrees Celsius. The kernel driver
// produces two lines:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func (p *Probe) Read() (float64, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	var lines []string
	for s.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimSpace(s.Text()))
	}
	if err := s.Err(); err != nil {
		return 0, err
	}
	if len(lines) < 2 {
		return 0, fmt.Errorf("%w: %d lines", ErrFormat, len(lines))
	}
	if !strings.HasSuffix(lines[0], "YES") {
		return 0, ErrCRC
	}

	i := strings.LastIndex(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("%w: no t= in %q", ErrFormat, lines[1])
	}
	milli, err := strconv.Atoi(lines[1][i+2:])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return float64(milli) / 1000.0, nil
}
