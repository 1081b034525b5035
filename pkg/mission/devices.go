package mission

import (
	"context"

	"github.com/ashab/nsx/pkg/sensors/gps"
	"github.com/ashab/nsx/pkg/ssdv"
)

type Radio interface {
	Send(data []byte) error
	WaitPacketSent() (bool, error)
	SetTxPower(dbm int) error
}

type GPS interface {
	Update() error
	Fix() gps.Fix
}

type Barometer interface {
	Update() error
	Pressure() float64
	Temperature() float64
}

type Thermometer interface {
	Read() (float64, error)
}

type Battery interface {
	Read() (float64, error)
}

type Indicator interface {
	Blink() error
	Error() error
}

type Camera interface {
	Capture(ctx context.Context) (string, error)
	CaptureSmall(ctx context.Context, name, resolution string) (string, error)
	AddInfo(path, id, subid, msg, data string) error
}

type Encoder interface {
	Encode(ctx context.Context, jpeg string, seq uint8) (*ssdv.Image, error)
}

type DataLog interface {
	WriteRecord(line string) error
}

// Devices are the peripherals the scheduler drives. Each one is used only
// from the goroutine calling Run.
type Devices struct {
	Radio        Radio
	GPS          GPS
	Barometer    Barometer
	TempInternal Thermometer
	TempExternal Thermometer
	Battery      Battery
	LED          Indicator
	Camera       Camera
	Encoder      Encoder
	DataLog      DataLog
}

func (d Devices) missing() string {
	switch {
	case d.Radio == nil:
		return "radio"
	case d.GPS == nil:
		return "gps"
	case d.Barometer == nil:
		return "barometer"
	case d.TempInternal == nil:
		return "internal thermometer"
	case d.TempExternal == nil:
		return "external thermometer"
	case d.Battery == nil:
		return "battery"
	case d.LED == nil:
		return "led"
	case d.Camera == nil:
		return "camera"
	case d.Encoder == nil:
		return "encoder"
	case d.DataLog == nil:
		return "data log"
	}
	return ""
}
