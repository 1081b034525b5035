package gps

import (
	"time"

	"github.com/tarm/serial"
)

// OpenSerial opens the receiver's serial port at 8N1 with a one second
// read timeout. Close the port to release it.
func OpenSerial(port string, baud int) (*serial.Port, error) {
	return serial.OpenPort(&serial.Config{
		Name:        port,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: time.Second,
	})
}
