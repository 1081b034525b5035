// Package mcp3002 reads the Microchip MCP3002 two channel 10-bit ADC over
// SPI.
package mcp3002

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// MaxSpeed is the clock the ADC is driven at on a 3.3V supply.
const MaxSpeed = 488 * physic.KiloHertz

// MaxValue is the full scale reading.
const MaxValue = 1023

var (
	ErrInvalidChannel = errors.New("mcp3002: invalid channel")
	ErrBus            = errors.New("mcp3002: bus transfer failed")
)

// Conn is a full-duplex SPI connection. periph.io spi.Conn satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

type ADC struct {
	conn Conn
}

func New(conn Conn) *ADC {
	return &ADC{conn: conn}
}

// Read samples channel ch (0 or 1) in single ended mode, MSB first.
func (a *ADC) Read(ch int) (int, error) {
	if ch < 0 || ch > 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}

	// start bit, single ended, channel select, MSB first
	w := []byte{0xd0 | byte(ch)<<5, 0, 0}
	r := make([]byte, 3)
	if err := a.conn.Tx(w, r); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBus, err)
	}

	v := int(r[0]&0x01)<<9 | int(r[1])<<1 | int(r[2]&0x80)>>7
	return v & MaxValue, nil
}
