// Package hw opens the Raspberry Pi peripherals the payload is wired to,
// addressed by the numbers used in the configuration file.
package hw

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// RadioSPISpeed is the clock used for the LoRa module.
const RadioSPISpeed = 5 * physic.MegaHertz

// Host tracks opened buses so they can be released together.
type Host struct {
	closers []io.Closer
}

// Open loads the periph.io host drivers.
func Open() (*Host, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hw: host init: %w", err)
	}
	return &Host{}, nil
}

// SPI opens chip select cs on SPI bus 0 in mode 0, 8 bits per word.
func (h *Host) SPI(cs int, speed physic.Frequency) (spi.Conn, error) {
	name := fmt.Sprintf("/dev/spidev0.%d", cs)
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("hw: open %s: %w", name, err)
	}
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("hw: configure %s: %w", name, err)
	}
	h.closers = append(h.closers, port)
	return conn, nil
}

// I2C opens the device at addr on bus number bus.
func (h *Host) I2C(bus int, addr uint16) (*i2c.Dev, error) {
	name := fmt.Sprintf("/dev/i2c-%d", bus)
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("hw: open %s: %w", name, err)
	}
	h.closers = append(h.closers, b)
	return &i2c.Dev{Bus: b, Addr: addr}, nil
}

// Pin looks up a GPIO by its BCM number.
func (h *Host) Pin(num int) (gpio.PinIO, error) {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", num))
	if p == nil {
		return nil, fmt.Errorf("hw: no GPIO%d", num)
	}
	return p, nil
}

// Close releases every bus opened through h.
func (h *Host) Close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	h.closers = nil
	return first
}
