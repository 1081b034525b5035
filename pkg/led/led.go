// Package led drives the status LED.
package led

import (
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	pulse       = time.Millisecond
	errorBlinks = 5
)

type LED struct {
	pin   gpio.PinOut
	sleep func(time.Duration)
}

type Option func(l *LED)

func WithSleep(sleep func(time.Duration)) Option {
	return func(l *LED) {
		l.sleep = sleep
	}
}

// New drives pin low and returns the LED.
func New(pin gpio.PinOut, opts ...Option) (*LED, error) {
	l := &LED{
		pin:   pin,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, err
	}
	return l, nil
}

// Blink flashes the LED once.
func (l *LED) Blink() error {
	if err := l.pin.Out(gpio.High); err != nil {
		return err
	}
	l.sleep(pulse)
	return l.pin.Out(gpio.Low)
}

// Error flashes the LED five times and leaves it on until the next Blink.
func (l *LED) Error() error {
	for i := 0; i < errorBlinks; i++ {
		if err := l.Blink(); err != nil {
			return err
		}
		l.sleep(pulse)
	}
	return l.pin.Out(gpio.High)
}
