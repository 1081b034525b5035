package mirror

import (
	"context"
	"encoding/binary"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ashab/nsx/pkg/telemetry"
)

func testSample() telemetry.Sample {
	return telemetry.Sample{
		Reading: telemetry.Reading{
			Latitude:   4332.94,
			NS:         'N',
			Longitude:  539.78,
			EW:         'W',
			Altitude:   1200,
			Satellites: 8,
			Power:      telemetry.PowerHigh,
		},
		Time: time.Date(2018, time.June, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestParseDestinations(t *testing.T) {
	tests := []struct {
		in      string
		want    []Destination
		wantErr bool
	}{
		{"127.0.0.1:9000", []Destination{{"127.0.0.1", 9000}}, false},
		{"a:1, b:2", []Destination{{"a", 1}, {"b", 2}}, false},
		{"a", nil, true},
		{"a:x", nil, true},
		{"a:70000", nil, true},
		{" , ", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseDestinations(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDestinations(%q) error = %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseDestinations(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMirror_DropsWhenFull(t *testing.T) {
	m := New(nil, WithQueueSize(2), WithLogger(zerolog.Nop()))
	for i := 0; i < 5; i++ {
		m.OnTelemetry(testSample(), "")
	}
	if m.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", m.Dropped())
	}
}

func TestMirror_Start(t *testing.T) {
	ground, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer ground.Close()

	port := ground.LocalAddr().(*net.UDPAddr).Port
	m := New([]Destination{{"127.0.0.1", port}}, WithLogger(zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	m.OnTelemetry(testSample(), "$$NSX!test")

	ground.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 2048)
	n, _, err := ground.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Start() = %v, want context.Canceled", err)
	}

	size := int(binary.LittleEndian.Uint16(buf[:2]))
	if size != n-2 {
		t.Fatalf("length prefix %d, datagram body %d", size, n-2)
	}
	var st structpb.Struct
	if err := proto.Unmarshal(buf[2:n], &st); err != nil {
		t.Fatal(err)
	}
	fields := st.AsMap()
	if fields["altitude"] != 1200.0 || fields["power"] != "H" || fields["sentence"] != "$$NSX!test" {
		t.Errorf("fields = %v", fields)
	}
	if lon := fields["longitude"].(float64); lon >= 0 {
		t.Errorf("longitude = %v, want west negative", lon)
	}
}
