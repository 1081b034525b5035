package mission

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ashab/nsx/pkg/rf95"
	"github.com/ashab/nsx/pkg/sensors/gps"
	"github.com/ashab/nsx/pkg/ssdv"
	"github.com/ashab/nsx/pkg/telemetry"
)

var epoch = time.Date(2018, time.June, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	now         time.Time
	sleeps      []time.Duration
	cancelAfter int
	cancel      context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	if c.cancelAfter > 0 && len(c.sleeps) >= c.cancelAfter {
		c.cancel()
		return ctx.Err()
	}
	return nil
}

type transmission struct {
	at   time.Duration
	data []byte
}

type fakeRadio struct {
	clock   *fakeClock
	airtime time.Duration
	sent    []transmission
	dbm     []int
	waitErr error
}

func (r *fakeRadio) Send(data []byte) error {
	r.sent = append(r.sent, transmission{
		at:   r.clock.now.Sub(epoch),
		data: append([]byte(nil), data...),
	})
	return nil
}

func (r *fakeRadio) WaitPacketSent() (bool, error) {
	r.clock.now = r.clock.now.Add(r.airtime)
	return r.waitErr == nil, r.waitErr
}

func (r *fakeRadio) SetTxPower(dbm int) error {
	r.dbm = append(r.dbm, dbm)
	return nil
}

func (r *fakeRadio) telemetry() []transmission {
	var out []transmission
	for _, s := range r.sent {
		if strings.HasPrefix(string(s.data), "$$") {
			out = append(out, s)
		}
	}
	return out
}

type fakeGPS struct {
	fix gps.Fix
	err error
}

func (g *fakeGPS) Update() error { return g.err }
func (g *fakeGPS) Fix() gps.Fix  { return g.fix }

type fakeBaro struct{ err error }

func (b *fakeBaro) Update() error        { return b.err }
func (b *fakeBaro) Pressure() float64    { return 1003.4 }
func (b *fakeBaro) Temperature() float64 { return 21.5 }

type fakeReader struct {
	v   float64
	err error
}

func (f *fakeReader) Read() (float64, error) { return f.v, f.err }

type fakeLED struct{ blinks, errors int }

func (l *fakeLED) Blink() error { l.blinks++; return nil }
func (l *fakeLED) Error() error { l.errors++; return nil }

type fakeCamera struct {
	dir      string
	err      error
	captions []string
}

func (c *fakeCamera) Capture(ctx context.Context) (string, error) {
	return filepath.Join(c.dir, "full.jpg"), c.err
}

func (c *fakeCamera) CaptureSmall(ctx context.Context, name, resolution string) (string, error) {
	return filepath.Join(c.dir, name), c.err
}

func (c *fakeCamera) AddInfo(path, id, subid, msg, data string) error {
	c.captions = append(c.captions, data)
	return nil
}

type fakeEncoder struct {
	dir     string
	packets int
	seqs    []uint8
}

func (e *fakeEncoder) Encode(ctx context.Context, jpeg string, seq uint8) (*ssdv.Image, error) {
	e.seqs = append(e.seqs, seq)
	data := make([]byte, e.packets*ssdv.StreamPacketSize)
	for i := range data {
		data[i] = byte(i)
	}
	path := filepath.Join(e.dir, "ssdv.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return ssdv.Open(path, seq)
}

type fakeLog struct{ lines []string }

func (l *fakeLog) WriteRecord(line string) error {
	l.lines = append(l.lines, line)
	return nil
}

type recorder struct {
	NopObserver
	samples     int
	packets     []int
	radioErrors int
}

func (r *recorder) OnTelemetry(telemetry.Sample, string)  { r.samples++ }
func (r *recorder) OnImagePacket(seq uint8, index, _ int) { r.packets = append(r.packets, index) }
func (r *recorder) OnRadioError(error)                    { r.radioErrors++ }

type rig struct {
	clock   *fakeClock
	radio   *fakeRadio
	gps     *fakeGPS
	baro    *fakeBaro
	tin     *fakeReader
	tout    *fakeReader
	batt    *fakeReader
	led     *fakeLED
	camera  *fakeCamera
	encoder *fakeEncoder
	log     *fakeLog
	obs     *recorder
}

func newRig(t *testing.T, packets int) *rig {
	t.Helper()
	dir := t.TempDir()
	clock := &fakeClock{now: epoch}
	return &rig{
		clock: clock,
		radio: &fakeRadio{clock: clock, airtime: 500 * time.Millisecond},
		gps: &fakeGPS{fix: gps.Fix{
			Latitude: 4332.94, NS: 'N', Longitude: 539.78, EW: 'W',
			Altitude: 1200, Satellites: 8,
		}},
		baro:    &fakeBaro{},
		tin:     &fakeReader{v: 22.1},
		tout:    &fakeReader{v: -3.4},
		batt:    &fakeReader{v: 7.42},
		led:     &fakeLED{},
		camera:  &fakeCamera{dir: dir},
		encoder: &fakeEncoder{dir: dir, packets: packets},
		log:     &fakeLog{},
		obs:     &recorder{},
	}
}

func (r *rig) mission(t *testing.T, opts Options) *Mission {
	t.Helper()
	m, err := New(opts, Devices{
		Radio:        r.radio,
		GPS:          r.gps,
		Barometer:    r.baro,
		TempInternal: r.tin,
		TempExternal: r.tout,
		Battery:      r.batt,
		LED:          r.led,
		Camera:       r.camera,
		Encoder:      r.encoder,
		DataLog:      r.log,
	}, WithClock(r.clock), WithObserver(r.obs), WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func testOptions() Options {
	return Options{
		ID:           "NSX",
		SubID:        "1",
		Message:      "hello",
		Separator:    ";",
		PacketRepeat: 3,
		PacketDelay:  5 * time.Second,
		LowPower:     5,
		HighPower:    20,
		SSDVName:     "ssdv",
		SSDVSize:     "320x240",
	}
}

func sentAt(ts []transmission) []time.Duration {
	out := make([]time.Duration, len(ts))
	for i, t := range ts {
		out[i] = t.at
	}
	return out
}

func TestMission_Cycle(t *testing.T) {
	r := newRig(t, 40)
	m := r.mission(t, testOptions())

	if err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	// Three spaced sentences, then one slipped in every 5.5 s of SSDV.
	tel := r.radio.telemetry()
	want := []time.Duration{
		0, 5500 * time.Millisecond, 11 * time.Second,
		17 * time.Second, 23 * time.Second, 29 * time.Second, 35 * time.Second,
	}
	if got := sentAt(tel); !reflect.DeepEqual(got, want) {
		t.Errorf("telemetry sent at %v, want %v", got, want)
	}
	for i := 1; i < len(tel); i++ {
		if gap := tel[i].at - tel[i-1].at; gap > 5*time.Second+2*r.radio.airtime {
			t.Errorf("telemetry gap %s too long", gap)
		}
	}

	if got := len(r.radio.sent) - len(tel); got != 40 {
		t.Errorf("sent %d image packets, want 40", got)
	}
	for _, s := range r.radio.sent {
		if !strings.HasPrefix(string(s.data), "$$") && len(s.data) != ssdv.PacketSize {
			t.Errorf("image packet of %d bytes", len(s.data))
		}
	}
	if first := r.radio.sent[3].data; first[0] != 1 {
		t.Errorf("first packet starts with %#x, want sync byte stripped", first[0])
	}

	wantPackets := make([]int, 40)
	for i := range wantPackets {
		wantPackets[i] = i
	}
	if !reflect.DeepEqual(r.obs.packets, wantPackets) {
		t.Errorf("packets observed %v", r.obs.packets)
	}

	wantSleeps := []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}
	if !reflect.DeepEqual(r.clock.sleeps, wantSleeps) {
		t.Errorf("sleeps = %v, want %v", r.clock.sleeps, wantSleeps)
	}

	if len(r.log.lines) != len(tel) || r.obs.samples != len(tel) || r.led.blinks != len(tel) {
		t.Errorf("logged %d, observed %d, blinked %d for %d sentences",
			len(r.log.lines), r.obs.samples, r.led.blinks, len(tel))
	}
	if !reflect.DeepEqual(r.encoder.seqs, []uint8{0}) {
		t.Errorf("encoded seqs %v", r.encoder.seqs)
	}
	if want := []string{"43.549000N, 5.663000W, 1200m"}; !reflect.DeepEqual(r.camera.captions, want) {
		t.Errorf("captions = %q, want %q", r.camera.captions, want)
	}
}

func TestMission_ImageSequence(t *testing.T) {
	r := newRig(t, 2)
	opts := testOptions()
	opts.PacketRepeat = 1
	m := r.mission(t, opts)

	for i := 0; i < 3; i++ {
		if err := m.Cycle(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(r.encoder.seqs, []uint8{0, 1, 2}) {
		t.Errorf("encoded seqs %v", r.encoder.seqs)
	}
}

func TestMission_RunCancel(t *testing.T) {
	r := newRig(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.clock.cancelAfter = 2
	r.clock.cancel = cancel

	m := r.mission(t, testOptions())
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if n := len(r.radio.sent); n != 2 {
		t.Errorf("sent %d sentences before cancel, want 2", n)
	}
	if len(r.encoder.seqs) != 0 {
		t.Errorf("image encoded after cancel")
	}
}

func TestMission_SensorFailures(t *testing.T) {
	r := newRig(t, 4)
	r.gps.err = gps.ErrSats
	r.baro.err = errors.New("i2c nack")
	r.tin.err = errors.New("crc")
	r.tout.err = errors.New("crc")
	r.batt.err = errors.New("spi")
	r.camera.err = errors.New("no camera")
	m := r.mission(t, testOptions())

	if err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}

	if len(r.radio.sent) != 3 {
		t.Fatalf("sent %d, want 3 sentences and no image", len(r.radio.sent))
	}
	sentence := string(r.radio.sent[0].data)
	for _, want := range []string{"4332.94N", "00539.78W", "V=9999.00", "P=9999.0", "TI=9999.0", "TO=9999.0"} {
		if !strings.Contains(sentence, want) {
			t.Errorf("sentence %q lacks %q", sentence, want)
		}
	}
	if r.led.errors != 3 {
		t.Errorf("led error pattern shown %d times, want 3", r.led.errors)
	}
	if len(r.encoder.seqs) != 0 {
		t.Errorf("encoder called after capture failure")
	}
	if len(r.clock.sleeps) != 4 {
		t.Errorf("slept %d times, want 4", len(r.clock.sleeps))
	}
}

func TestMission_RadioErrors(t *testing.T) {
	r := newRig(t, 2)
	r.radio.airtime = 0
	r.radio.waitErr = rf95.ErrTxTimeout
	opts := testOptions()
	opts.PacketRepeat = 1
	m := r.mission(t, opts)

	if err := m.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle() error = %v", err)
	}
	if len(r.radio.sent) != 3 {
		t.Errorf("sent %d, want every packet attempted", len(r.radio.sent))
	}
	if r.obs.radioErrors != 3 {
		t.Errorf("radio errors = %d, want 3", r.obs.radioErrors)
	}
	if len(r.obs.packets) != 0 {
		t.Errorf("packets reported sent: %v", r.obs.packets)
	}
	if len(r.log.lines) != 1 {
		t.Errorf("data log lines = %d, want 1", len(r.log.lines))
	}
}

func TestMission_SetPowerLevel(t *testing.T) {
	r := newRig(t, 1)
	opts := testOptions()
	opts.PacketRepeat = 1
	m := r.mission(t, opts)

	if err := m.SetPowerLevel(telemetry.PowerHigh); err != nil {
		t.Fatal(err)
	}
	if err := m.SetPowerLevel(telemetry.PowerLevel('X')); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("SetPowerLevel('X') error = %v", err)
	}
	if !reflect.DeepEqual(r.radio.dbm, []int{20}) {
		t.Errorf("tx power set to %v, want [20]", r.radio.dbm)
	}

	if err := m.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := string(r.radio.sent[0].data); !strings.HasSuffix(s, "hello - H\n") {
		t.Errorf("sentence %q not tagged high power", s)
	}
}

func TestNew_Invalid(t *testing.T) {
	r := newRig(t, 1)
	dev := Devices{
		Radio: r.radio, GPS: r.gps, Barometer: r.baro, TempInternal: r.tin,
		TempExternal: r.tout, Battery: r.batt, LED: r.led, Camera: r.camera,
		Encoder: r.encoder, DataLog: r.log,
	}

	tests := []struct {
		name   string
		modify func(o *Options, d *Devices)
	}{
		{"no repeat", func(o *Options, d *Devices) { o.PacketRepeat = 0 }},
		{"no delay", func(o *Options, d *Devices) { o.PacketDelay = 0 }},
		{"no radio", func(o *Options, d *Devices) { d.Radio = nil }},
		{"no data log", func(o *Options, d *Devices) { d.DataLog = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, d := testOptions(), dev
			tt.modify(&o, &d)
			if _, err := New(o, d); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("New() error = %v, want ErrInvalidOptions", err)
			}
		})
	}

	if _, err := New(testOptions(), dev, WithClock(nil)); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("WithClock(nil) error = %v", err)
	}
}
