// Package battery measures the supply voltage through a resistor divider on
// an ADC channel. The divider is only powered while a reading is taken.
package battery

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	vref     = 3.3
	adcScale = 1023.0

	settleTime = time.Millisecond
)

// ADC reads one channel of an analog to digital converter.
type ADC interface {
	Read(ch int) (int, error)
}

type Monitor struct {
	adc        ADC
	channel    int
	enable     gpio.PinOut
	multiplier float64
	divider    float64
	sleep      func(time.Duration)
}

type Option func(m *Monitor)

func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Monitor) {
		m.sleep = sleep
	}
}

func New(adc ADC, channel int, enable gpio.PinOut, multiplier, divider float64, opts ...Option) *Monitor {
	m := &Monitor{
		adc:        adc,
		channel:    channel,
		enable:     enable,
		multiplier: multiplier,
		divider:    divider,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Read switches the divider on, waits for it to settle, samples it and
// switches it off again, even when the sample fails.
func (m *Monitor) Read() (v float64, err error) {
	if err := m.enable.Out(gpio.High); err != nil {
		return 0, fmt.Errorf("battery: enable: %w", err)
	}
	defer func() {
		if offErr := m.enable.Out(gpio.Low); offErr != nil && err == nil {
			err = fmt.Errorf("battery: disable: %w", offErr)
		}
	}()

	m.sleep(settleTime)

	raw, err := m.adc.Read(m.channel)
	if err != nil {
		return 0, err
	}
	return Voltage(raw, m.multiplier, m.divider), nil
}

// Voltage converts a raw 10-bit reading to volts.
func Voltage(raw int, multiplier, divider float64) float64 {
	return multiplier * divider * (float64(raw) * vref / adcScale)
}
