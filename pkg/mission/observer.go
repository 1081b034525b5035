package mission

import (
	"github.com/ashab/nsx/pkg/ssdv"
	"github.com/ashab/nsx/pkg/telemetry"
)

// Observer receives copies of what the scheduler produces. Callbacks run on
// the mission goroutine and must not block.
type Observer interface {
	OnTelemetry(s telemetry.Sample, sentence string)
	OnImage(img *ssdv.Image, jpeg string)
	OnImagePacket(seq uint8, index, count int)
	OnRadioError(err error)
}

// NopObserver can be embedded by observers that only care about some
// events.
type NopObserver struct{}

func (NopObserver) OnTelemetry(telemetry.Sample, string) {}
func (NopObserver) OnImage(*ssdv.Image, string)          {}
func (NopObserver) OnImagePacket(uint8, int, int)        {}
func (NopObserver) OnRadioError(error)                   {}
