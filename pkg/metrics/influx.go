package metrics

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"

	"github.com/ashab/nsx/pkg/ssdv"
	"github.com/ashab/nsx/pkg/telemetry"
)

// Influx writes mission events as InfluxDB points tagged with the payload
// id. The write API buffers and sends in the background.
type Influx struct {
	writeAPI api.WriteAPI
	tags     map[string]string
	now      func() time.Time
}

func NewInflux(writeAPI api.WriteAPI, id string) *Influx {
	return &Influx{
		writeAPI: writeAPI,
		tags:     map[string]string{"id": id},
		now:      time.Now,
	}
}

func (i *Influx) OnTelemetry(s telemetry.Sample, _ string) {
	lat, lon := s.SignedPosition()
	fields := map[string]interface{}{
		"latitude":    lat,
		"longitude":   lon,
		"altitude":    s.Altitude,
		"heading":     s.Heading,
		"speed":       s.Speed,
		"satellites":  s.Satellites,
		"ascent_rate": s.AscentRate,
	}
	for name, v := range map[string]float64{
		"battery":       s.Battery,
		"pressure":      s.Pressure,
		"temp_internal": s.TempInternal,
		"temp_external": s.TempExternal,
	} {
		if v != telemetry.Unavailable {
			fields[name] = v
		}
	}

	i.writeAPI.WritePoint(influxdb2.NewPoint("telemetry", i.tags, fields, s.Time))
}

func (i *Influx) OnImage(img *ssdv.Image, _ string) {
	i.writeAPI.WritePoint(influxdb2.NewPoint("image.encoded", i.tags,
		map[string]interface{}{
			"seq":     int(img.Seq),
			"packets": img.Count(),
		}, i.now()))
}

func (i *Influx) OnImagePacket(seq uint8, index, count int) {
	i.writeAPI.WritePoint(influxdb2.NewPoint("image.packet", i.tags,
		map[string]interface{}{
			"seq":   int(seq),
			"index": index,
			"count": count,
		}, i.now()))
}

func (i *Influx) OnRadioError(err error) {
	i.writeAPI.WritePoint(influxdb2.NewPoint("radio.error", i.tags,
		map[string]interface{}{"error": err.Error()}, i.now()))
}
