// Package ms5607 reads pressure and temperature from a MEAS MS5607
// barometric sensor on I2C.
package ms5607

import (
	"errors"
	"fmt"
	"time"
)

const (
	cmdReset   = 0x1e
	cmdADCRead = 0x00
	cmdADCConv = 0x40
	cmdPROMRd  = 0xa0

	adcD1 = 0x00
	adcD2 = 0x10
)

// OSR is the ADC oversampling ratio. Higher ratios take longer and are less
// noisy.
type OSR byte

const (
	OSR256  OSR = 0x00
	OSR512  OSR = 0x02
	OSR1024 OSR = 0x04
	OSR2048 OSR = 0x06
	OSR4096 OSR = 0x08
)

// ConversionTime is how long to wait before reading a conversion result.
func (o OSR) ConversionTime() time.Duration {
	switch o {
	case OSR256:
		return time.Millisecond
	case OSR512:
		return 3 * time.Millisecond
	case OSR1024:
		return 4 * time.Millisecond
	case OSR2048:
		return 6 * time.Millisecond
	}
	return 10 * time.Millisecond
}

const resetTime = 30 * time.Millisecond

var ErrBus = errors.New("ms5607: bus transfer failed")

// Conn is an I2C device handle. periph.io i2c.Dev satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// PROM holds the factory calibration words. Index 0 is reserved by the
// manufacturer, 1 to 6 are C1 to C6.
type PROM [7]uint16

type Sensor struct {
	conn  Conn
	prom  PROM
	osr   OSR
	sleep func(time.Duration)

	temp     int64
	pressure int64
}

type Option func(s *Sensor)

func WithOSR(o OSR) Option {
	return func(s *Sensor) {
		s.osr = o
	}
}

func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Sensor) {
		s.sleep = sleep
	}
}

func New(conn Conn, opts ...Option) *Sensor {
	s := &Sensor{
		conn:  conn,
		osr:   OSR4096,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadPROM resets the sensor and loads the calibration words. It must
// succeed before Update gives meaningful values.
func (s *Sensor) ReadPROM() error {
	if err := s.conn.Tx([]byte{cmdReset}, nil); err != nil {
		return fmt.Errorf("%w: reset: %v", ErrBus, err)
	}
	s.sleep(resetTime)

	var buf [2]byte
	for i := range s.prom {
		if err := s.conn.Tx([]byte{cmdPROMRd + byte(2*i)}, buf[:]); err != nil {
			return fmt.Errorf("%w: prom %d: %v", ErrBus, i, err)
		}
		s.prom[i] = uint16(buf[0])<<8 | uint16(buf[1])
	}
	return nil
}

func (s *Sensor) PROM() PROM {
	return s.prom
}

func (s *Sensor) readADC(cmd byte) (int64, error) {
	if err := s.conn.Tx([]byte{cmdADCConv | cmd}, nil); err != nil {
		return 0, fmt.Errorf("%w: convert 0x%02x: %v", ErrBus, cmd, err)
	}
	s.sleep(OSR(cmd & 0x0f).ConversionTime())

	var buf [3]byte
	if err := s.conn.Tx([]byte{cmdADCRead}, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: adc read: %v", ErrBus, err)
	}
	return int64(buf[0])<<16 | int64(buf[1])<<8 | int64(buf[2]), nil
}

// Update converts temperature (D2) then pressure (D1) and compensates them.
// On error the previous values are kept.
func (s *Sensor) Update() error {
	d2, err := s.readADC(adcD2 | byte(s.osr))
	if err != nil {
		return err
	}
	d1, err := s.readADC(adcD1 | byte(s.osr))
	if err != nil {
		return err
	}
	s.temp, s.pressure = Compensate(s.prom, d1, d2)
	return nil
}

// Pressure in mbar.
func (s *Sensor) Pressure() float64 {
	return float64(s.pressure) / 100.0
}

// Temperature in degrees Celsius.
func (s *Sensor) Temperature() float64 {
	return float64(s.temp) / 100.0
}

// Compensate applies the datasheet's first and second order algorithm to
// raw pressure d1 and raw temperature d2. It returns hundredths of a degree
// Celsius and hundredths of a mbar.
func Compensate(c PROM, d1, d2 int64) (temp, pressure int64) {
	dT := d2 - int64(c[5])<<8
	off := int64(c[2])<<17 + dT*int64(c[4])/(1<<6)
	sens := int64(c[1])<<16 + dT*int64(c[3])/(1<<7)
	temp = 2000 + dT*int64(c[6])/(1<<23)

	var t2, off2, sens2 int64
	if temp < 2000 {
		low := (temp - 2000) * (temp - 2000)
		t2 = dT * dT / (1 << 31)
		off2 = 61 * low / (1 << 4)
		sens2 = 2 * low
		if temp < -1500 {
			veryLow := (temp + 1500) * (temp + 1500)
			off2 += 15 * veryLow
			sens2 += 8 * veryLow
		}
	}
	temp -= t2
	off -= off2
	sens -= sens2

	pressure = (d1*sens/(1<<21) - off) / (1 << 15)
	return temp, pressure
}
