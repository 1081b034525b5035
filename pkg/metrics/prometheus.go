// Package metrics exports mission events to Prometheus and InfluxDB.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashab/nsx/pkg/ssdv"
	"github.com/ashab/nsx/pkg/telemetry"
)

// Collector is a mission observer backed by Prometheus metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	SentencesSent *prometheus.CounterVec
	ImagesEncoded prometheus.Counter
	PacketsSent   prometheus.Counter
	RadioErrors   prometheus.Counter

	Altitude    prometheus.Gauge
	AscentRate  prometheus.Gauge
	Satellites  prometheus.Gauge
	Battery     prometheus.Gauge
	Pressure    prometheus.Gauge
	Temperature *prometheus.GaugeVec
}

// NewCollector registers the mission metrics against reg, defaulting to the
// global registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		SentencesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nsx_telemetry_sentences_total",
			Help: "Telemetry sentences built, labeled by transmit power level.",
		}, []string{"power"}),
		ImagesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsx_images_encoded_total",
			Help: "Pictures encoded as SSDV.",
		}),
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsx_ssdv_packets_sent_total",
			Help: "SSDV packets transmitted.",
		}),
		RadioErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsx_radio_errors_total",
			Help: "Failed radio transmissions.",
		}),
		Altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsx_altitude_meters",
			Help: "GPS altitude.",
		}),
		AscentRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsx_ascent_rate_meters_per_second",
			Help: "Vertical speed between the last two samples.",
		}),
		Satellites: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsx_gps_satellites",
			Help: "Satellites used in the last fix.",
		}),
		Battery: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsx_battery_volts",
			Help: "Battery voltage.",
		}),
		Pressure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsx_pressure_mbar",
			Help: "Barometric pressure.",
		}),
		Temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nsx_temperature_celsius",
			Help: "Temperature, labeled by probe.",
		}, []string{"probe"}),
	}

	for _, col := range []prometheus.Collector{
		c.SentencesSent, c.ImagesEncoded, c.PacketsSent, c.RadioErrors,
		c.Altitude, c.AscentRate, c.Satellites, c.Battery, c.Pressure, c.Temperature,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return c, nil
}

// OnTelemetry updates the gauges. Readings reported as unavailable leave the
// previous value in place.
func (c *Collector) OnTelemetry(s telemetry.Sample, _ string) {
	c.SentencesSent.WithLabelValues(s.Power.String()).Inc()
	c.Altitude.Set(s.Altitude)
	c.AscentRate.Set(s.AscentRate)
	c.Satellites.Set(float64(s.Satellites))

	setAvailable(c.Battery, s.Battery)
	setAvailable(c.Pressure, s.Pressure)
	setAvailable(c.Temperature.WithLabelValues("internal"), s.TempInternal)
	setAvailable(c.Temperature.WithLabelValues("external"), s.TempExternal)
}

func (c *Collector) OnImage(*ssdv.Image, string) {
	c.ImagesEncoded.Inc()
}

func (c *Collector) OnImagePacket(uint8, int, int) {
	c.PacketsSent.Inc()
}

func (c *Collector) OnRadioError(error) {
	c.RadioErrors.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func setAvailable(g prometheus.Gauge, v float64) {
	if v != telemetry.Unavailable {
		g.Set(v)
	}
}
