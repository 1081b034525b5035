package mcp3002

import (
	"errors"
	"testing"
)

type fakeSPI struct {
	rx   []byte
	sent [][]byte
}

func (f *fakeSPI) Tx(w, r []byte) error {
	f.sent = append(f.sent, append([]byte(nil), w...))
	copy(r, f.rx)
	return nil
}

func TestADC_Read(t *testing.T) {
	tests := []struct {
		name string
		ch   int
		rx   []byte
		cmd  byte
		want int
	}{
		{"zero", 0, []byte{0x00, 0x00, 0x00}, 0xd0, 0},
		{"full scale", 1, []byte{0x01, 0xff, 0x80}, 0xf0, 1023},
		{"mid", 0, []byte{0x00, 0x80, 0x00}, 0xd0, 256},
		{"ignores noise bits", 1, []byte{0xfe, 0x00, 0x7f}, 0xf0, 0},
		{"lsb", 0, []byte{0x00, 0x00, 0x80}, 0xd0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &fakeSPI{rx: tt.rx}
			got, err := New(bus).Read(tt.ch)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Read() = %d, want %d", got, tt.want)
			}
			if bus.sent[0][0] != tt.cmd {
				t.Errorf("command = 0x%02x, want 0x%02x", bus.sent[0][0], tt.cmd)
			}
		})
	}
}

func TestADC_InvalidChannel(t *testing.T) {
	bus := &fakeSPI{}
	if _, err := New(bus).Read(2); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("Read(2) error = %v, want %v", err, ErrInvalidChannel)
	}
	if len(bus.sent) != 0 {
		t.Errorf("Read(2) made %d transfers, want 0", len(bus.sent))
	}
}
