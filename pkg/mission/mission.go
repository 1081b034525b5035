// Package mission runs the flight loop: it samples the sensors, sends
// telemetry sentences and, between telemetry bursts, captures a picture and
// transmits it as SSDV packets.
package mission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ashab/nsx/pkg/rf95"
	"github.com/ashab/nsx/pkg/telemetry"
	"github.com/ashab/nsx/pkg/util"
)

var ErrInvalidOptions = errors.New("mission: invalid options")

type Options struct {
	ID           string
	SubID        string
	Message      string
	Separator    string
	PacketRepeat int
	PacketDelay  time.Duration
	LowPower     int
	HighPower    int
	SSDVName     string
	SSDVSize     string
}

type Mission struct {
	opts      Options
	dev       Devices
	builder   *telemetry.Builder
	clock     Clock
	observers []Observer
	logger    zerolog.Logger

	power         telemetry.PowerLevel
	imageSeq      uint8
	last          telemetry.Sample
	lastTelemetry time.Time
}

type Option func(m *Mission) error

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Mission) error {
		m.logger = logger
		return nil
	}
}

func WithClock(c Clock) Option {
	return func(m *Mission) error {
		if c == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidOptions)
		}
		m.clock = c
		return nil
	}
}

func WithObserver(o Observer) Option {
	return func(m *Mission) error {
		m.observers = append(m.observers, o)
		return nil
	}
}

func New(opts Options, dev Devices, options ...Option) (*Mission, error) {
	if opts.PacketRepeat < 1 {
		return nil, fmt.Errorf("%w: packet repeat %d", ErrInvalidOptions, opts.PacketRepeat)
	}
	if opts.PacketDelay <= 0 {
		return nil, fmt.Errorf("%w: packet delay %s", ErrInvalidOptions, opts.PacketDelay)
	}
	if name := dev.missing(); name != "" {
		return nil, fmt.Errorf("%w: no %s", ErrInvalidOptions, name)
	}

	m := &Mission{
		opts:    opts,
		dev:     dev,
		builder: telemetry.NewBuilder(opts.ID, opts.Message, opts.Separator),
		clock:   RealClock{},
		logger:  log.Logger,
		power:   telemetry.PowerLow,
	}
	for _, opt := range options {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetPowerLevel switches the transmit power. Sentences sent afterwards carry
// the new level.
func (m *Mission) SetPowerLevel(p telemetry.PowerLevel) error {
	var dbm int
	switch p {
	case telemetry.PowerLow:
		dbm = m.opts.LowPower
	case telemetry.PowerHigh:
		dbm = m.opts.HighPower
	default:
		return fmt.Errorf("%w: power level %q", ErrInvalidOptions, byte(p))
	}
	if err := m.dev.Radio.SetTxPower(dbm); err != nil {
		return err
	}
	m.power = p
	m.logger.Info().Str("level", p.String()).Int("dbm", dbm).Msg("transmit power set")
	return nil
}

// Run repeats mission cycles until ctx is done and returns ctx.Err().
func (m *Mission) Run(ctx context.Context) error {
	m.logger.Info().
		Str("id", m.opts.ID).
		Int("packet_repeat", m.opts.PacketRepeat).
		Dur("packet_delay", m.opts.PacketDelay).
		Msg("mission started")
	for {
		if err := m.Cycle(ctx); err != nil {
			return err
		}
	}
}

// Cycle sends PacketRepeat telemetry sentences PacketDelay apart, then one
// picture, then waits PacketDelay. Only cancellation is returned as an
// error; device failures are logged and the cycle carries on.
func (m *Mission) Cycle(ctx context.Context) error {
	for i := 0; i < m.opts.PacketRepeat; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.telemetry()
		if err := m.clock.Sleep(ctx, m.opts.PacketDelay); err != nil {
			return err
		}
	}

	if err := m.image(ctx); err != nil {
		return err
	}
	return m.clock.Sleep(ctx, m.opts.PacketDelay)
}

func (m *Mission) telemetry() {
	elapsed := util.TimeOperation(func() {
		s := m.builder.Build(m.sample(), m.clock.Now())
		sentence := m.builder.Sentence(s)

		if err := m.transmit([]byte(sentence)); err != nil {
			m.logger.Error().Err(err).Msg("telemetry not sent")
		} else {
			m.logger.Info().Msg("telemetry sent")
		}
		m.logger.Debug().Msg(sentence)

		if err := m.dev.DataLog.WriteRecord(s.CSV()); err != nil {
			m.logger.Error().Err(err).Msg("data log write failed")
		}
		if err := m.dev.LED.Blink(); err != nil {
			m.logger.Warn().Err(err).Msg("led")
		}

		m.last = s
		m.lastTelemetry = m.clock.Now()
		for _, o := range m.observers {
			o.OnTelemetry(s, sentence)
		}
	})
	m.logger.Trace().Dur("took", elapsed).Msg("telemetry cycle")
}

// sample reads every sensor. A sensor that fails reports
// telemetry.Unavailable; the GPS keeps its previous fix.
func (m *Mission) sample() telemetry.Reading {
	if err := m.dev.GPS.Update(); err != nil {
		m.logger.Warn().Err(err).Msg("gps")
		if err := m.dev.LED.Error(); err != nil {
			m.logger.Warn().Err(err).Msg("led")
		}
	}
	fix := m.dev.GPS.Fix()

	r := telemetry.Reading{
		Latitude:     fix.Latitude,
		NS:           fix.NS,
		Longitude:    fix.Longitude,
		EW:           fix.EW,
		Altitude:     fix.Altitude,
		Heading:      fix.Heading,
		Speed:        fix.Speed,
		Satellites:   fix.Satellites,
		Battery:      telemetry.Unavailable,
		Pressure:     telemetry.Unavailable,
		TempInternal: telemetry.Unavailable,
		TempExternal: telemetry.Unavailable,
		Power:        m.power,
	}

	if err := m.dev.Barometer.Update(); err != nil {
		m.logger.Warn().Err(err).Msg("barometer")
	} else {
		r.Pressure = m.dev.Barometer.Pressure()
		m.logger.Debug().Msgf("BARO: %.1f mbar %.2f C", r.Pressure, m.dev.Barometer.Temperature())
	}
	if v, err := m.dev.TempInternal.Read(); err != nil {
		m.logger.Warn().Err(err).Msg("internal temperature")
	} else {
		r.TempInternal = v
	}
	if v, err := m.dev.TempExternal.Read(); err != nil {
		m.logger.Warn().Err(err).Msg("external temperature")
	} else {
		r.TempExternal = v
	}
	if v, err := m.dev.Battery.Read(); err != nil {
		m.logger.Warn().Err(err).Msg("battery")
	} else {
		r.Battery = v
	}
	return r
}

func (m *Mission) transmit(payload []byte) error {
	err := m.dev.Radio.Send(payload)
	if err == nil {
		_, err = m.dev.Radio.WaitPacketSent()
	}
	if err != nil {
		for _, o := range m.observers {
			o.OnRadioError(err)
		}
	}
	return err
}

// image captures, captions, encodes and transmits one picture. A telemetry
// sentence is slipped in whenever PacketDelay has passed since the last one.
func (m *Mission) image(ctx context.Context) error {
	full, err := m.dev.Camera.Capture(ctx)
	if err != nil {
		return m.skipImage(ctx, "capture", err)
	}
	m.logger.Info().Str("path", full).Msg("picture taken")

	small, err := m.dev.Camera.CaptureSmall(ctx, m.opts.SSDVName+".jpg", m.opts.SSDVSize)
	if err != nil {
		return m.skipImage(ctx, "ssdv capture", err)
	}
	if err := m.dev.Camera.AddInfo(small, m.opts.ID, m.opts.SubID, m.opts.Message, m.last.Caption()); err != nil {
		return m.skipImage(ctx, "caption", err)
	}

	img, err := m.dev.Encoder.Encode(ctx, small, m.imageSeq)
	if err != nil {
		return m.skipImage(ctx, "ssdv encode", err)
	}
	m.imageSeq++
	for _, o := range m.observers {
		o.OnImage(img, small)
	}

	count := img.Count()
	logger := m.logger.With().Uint8("seq", img.Seq).Int("count", count).Logger()
	logger.Info().Msg("sending image")

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.clock.Now().Sub(m.lastTelemetry) > m.opts.PacketDelay {
			m.telemetry()
		}

		pkt, err := img.Packet(i)
		if err != nil {
			logger.Error().Err(err).Int("packet", i).Msg("image aborted")
			return nil
		}
		if err := m.transmit(pkt[:]); err != nil {
			ev := logger.Error().Err(err).Int("packet", i)
			if errors.Is(err, rf95.ErrTxTimeout) {
				ev.Msg("packet transmit timed out")
			} else {
				ev.Msg("packet not sent")
			}
			continue
		}
		for _, o := range m.observers {
			o.OnImagePacket(img.Seq, i, count)
		}
	}
	logger.Info().Msg("image sent")
	return nil
}

func (m *Mission) skipImage(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	m.logger.Error().Err(err).Str("step", step).Msg("image skipped")
	return nil
}
