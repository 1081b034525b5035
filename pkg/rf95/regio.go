package rf95

import "fmt"

// Conn is a full-duplex byte bus. periph.io spi.Conn satisfies it.
type Conn interface {
	Tx(w, r []byte) error
}

// Registers reads and writes the radio's register file over a Conn. The
// high bit of the address byte selects a write.
type Registers struct {
	conn Conn
}

func NewRegisters(conn Conn) *Registers {
	return &Registers{conn: conn}
}

func (r *Registers) WriteRegister(addr, b byte) error {
	w := []byte{addr | spiWriteMask, b}
	if err := r.conn.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("%w: write 0x%02x: %v", ErrBus, addr&spiAddrMask, err)
	}
	return nil
}

func (r *Registers) ReadRegister(addr byte) (byte, error) {
	var rx [2]byte
	if err := r.conn.Tx([]byte{addr & spiAddrMask, 0}, rx[:]); err != nil {
		return 0, fmt.Errorf("%w: read 0x%02x: %v", ErrBus, addr&spiAddrMask, err)
	}
	return rx[1], nil
}

// WriteBurst writes data in a single transaction starting at addr. The
// radio auto-increments the address, except for RegFifo which it keeps
// feeding.
func (r *Registers) WriteBurst(addr byte, data []byte) error {
	w := make([]byte, len(data)+1)
	w[0] = addr | spiWriteMask
	copy(w[1:], data)
	if err := r.conn.Tx(w, make([]byte, len(w))); err != nil {
		return fmt.Errorf("%w: burst write 0x%02x: %v", ErrBus, addr&spiAddrMask, err)
	}
	return nil
}

// ReadBurst reads n bytes in a single transaction starting at addr.
func (r *Registers) ReadBurst(addr byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = addr & spiAddrMask
	rx := make([]byte, n+1)
	if err := r.conn.Tx(w, rx); err != nil {
		return nil, fmt.Errorf("%w: burst read 0x%02x: %v", ErrBus, addr&spiAddrMask, err)
	}
	return rx[1:], nil
}
