// Package mirror copies telemetry samples to ground stations over UDP.
// Each datagram is a little-endian uint16 length followed by a protobuf
// encoded google.protobuf.Struct.
package mirror

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashab/nsx/pkg/mission"
	"github.com/ashab/nsx/pkg/telemetry"
)

const defaultQueueSize = 16

type Destination struct {
	Host string
	Port int
}

// ParseDestinations reads a comma separated list of host:port pairs.
func ParseDestinations(s string) ([]Destination, error) {
	var dests []Destination
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		host, port, err := net.SplitHostPort(item)
		if err != nil {
			return nil, fmt.Errorf("mirror: destination %q: %w", item, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("mirror: destination %q: bad port", item)
		}
		dests = append(dests, Destination{Host: host, Port: p})
	}
	if len(dests) == 0 {
		return nil, fmt.Errorf("mirror: no destinations in %q", s)
	}
	return dests, nil
}

type Mirror struct {
	mission.NopObserver

	dests   []Destination
	frames  chan *structpb.Struct
	dropped atomic.Uint64
	logger  zerolog.Logger
}

type Option func(m *Mirror)

func WithQueueSize(n int) Option {
	return func(m *Mirror) {
		m.frames = make(chan *structpb.Struct, n)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Mirror) {
		m.logger = logger
	}
}

func New(dests []Destination, opts ...Option) *Mirror {
	m := &Mirror{
		dests:  dests,
		frames: make(chan *structpb.Struct, defaultQueueSize),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnTelemetry queues s for sending. When the queue is full the sample is
// dropped so the mission loop never waits on the network.
func (m *Mirror) OnTelemetry(s telemetry.Sample, sentence string) {
	st, err := sampleStruct(s, sentence)
	if err != nil {
		m.logger.Warn().Err(err).Msg("mirror: build frame")
		return
	}
	select {
	case m.frames <- st:
	default:
		m.dropped.Add(1)
	}
}

// Dropped is the number of samples discarded because the queue was full.
func (m *Mirror) Dropped() uint64 {
	return m.dropped.Load()
}

func sampleStruct(s telemetry.Sample, sentence string) (*structpb.Struct, error) {
	lat, lon := s.SignedPosition()
	return structpb.NewStruct(map[string]interface{}{
		"time":          s.Time.Format(time.RFC3339),
		"latitude":      lat,
		"longitude":     lon,
		"altitude":      s.Altitude,
		"ascent_rate":   s.AscentRate,
		"heading":       s.Heading,
		"speed":         s.Speed,
		"satellites":    s.Satellites,
		"battery":       s.Battery,
		"pressure":      s.Pressure,
		"temp_internal": s.TempInternal,
		"temp_external": s.TempExternal,
		"power":         s.Power.String(),
		"sentence":      sentence,
	})
}

// Frame encodes st as one datagram.
func Frame(st *structpb.Struct) ([]byte, error) {
	encoded, err := proto.Marshal(st)
	if err != nil {
		return nil, err
	}
	if len(encoded) > 0xffff {
		return nil, fmt.Errorf("mirror: frame of %d bytes too large", len(encoded))
	}

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, err
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), nil
}

// Start resolves the destinations and sends queued frames until ctx is
// done.
func (m *Mirror) Start(ctx context.Context) error {
	destAddrs := make([]*net.UDPAddr, 0, len(m.dests))
	for _, dest := range m.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("mirror: no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		m.logger.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("mirror starting")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st := <-m.frames:
			msg, err := Frame(st)
			if err != nil {
				m.logger.Warn().Err(err).Msg("mirror: encode frame")
				continue
			}
			for _, destAddr := range destAddrs {
				if _, err := conn.WriteToUDP(msg, destAddr); err != nil {
					m.logger.Error().Err(err).Stringer("dest", destAddr).Msg("mirror: write")
				}
			}
		}
	}
}
