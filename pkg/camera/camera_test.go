package camera

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type recorder struct {
	calls [][]string
	err   error
}

func (r *recorder) run(ctx context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

var testNow = time.Date(2018, time.June, 1, 12, 0, 0, 0, time.UTC)

func TestCamera_Capture(t *testing.T) {
	rec := &recorder{}
	c := New("/home/pi/images", "nsx", WithRunner(rec.run), WithClock(func() time.Time { return testNow }))

	path, err := c.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	want := "/home/pi/images/nsx-2018-06-01T12:00:00Z-0.jpg"
	if path != want {
		t.Errorf("Capture() = %q, want %q", path, want)
	}
	wantArgs := []string{"raspistill", "-st", "-t", "1000", "-o", want}
	if !reflect.DeepEqual(rec.calls[0], wantArgs) {
		t.Errorf("ran %v, want %v", rec.calls[0], wantArgs)
	}
	if c.Number() != 1 {
		t.Errorf("Number() = %d, want 1", c.Number())
	}

	rec.err = errors.New("exec: \"raspistill\": executable file not found in $PATH")
	if _, err := c.Capture(context.Background()); !errors.Is(err, ErrCamera) {
		t.Errorf("Capture() error = %v, want %v", err, ErrCamera)
	}
	if c.Number() != 1 {
		t.Errorf("Number() after failure = %d, want 1", c.Number())
	}
}

func TestCamera_NumberWraps(t *testing.T) {
	rec := &recorder{}
	c := New(t.TempDir(), "nsx", WithRunner(rec.run))
	for i := 0; i < 256; i++ {
		if _, err := c.Capture(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if c.Number() != 0 {
		t.Errorf("Number() = %d, want 0", c.Number())
	}
}

func TestCamera_CaptureSmall(t *testing.T) {
	rec := &recorder{}
	c := New("/tmp/img", "nsx", WithRunner(rec.run))

	path, err := c.CaptureSmall(context.Background(), "ssdv.jpg", "320x240")
	if err != nil {
		t.Fatalf("CaptureSmall() error = %v", err)
	}
	if path != "/tmp/img/ssdv.jpg" {
		t.Errorf("CaptureSmall() = %q", path)
	}
	wantArgs := []string{"raspistill", "-st", "-t", "1000", "-w", "320", "-h", "240", "-o", "/tmp/img/ssdv.jpg"}
	if !reflect.DeepEqual(rec.calls[0], wantArgs) {
		t.Errorf("ran %v, want %v", rec.calls[0], wantArgs)
	}

	for _, res := range []string{"320", "x240", "320x", ""} {
		if _, err := c.CaptureSmall(context.Background(), "ssdv.jpg", res); !errors.Is(err, ErrResolution) {
			t.Errorf("CaptureSmall(%q) error = %v, want %v", res, err, ErrResolution)
		}
	}
	if len(rec.calls) != 1 {
		t.Errorf("bad resolutions ran the camera %d times", len(rec.calls)-1)
	}
}

func TestCamera_NonZeroExit(t *testing.T) {
	c := New(t.TempDir(), "nsx")
	c.Program = "false"
	if _, err := c.Capture(context.Background()); !errors.Is(err, ErrCapture) {
		t.Errorf("Capture() error = %v, want %v", err, ErrCapture)
	}
}

func TestCamera_AddInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssdv.jpg")
	src := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for i := range src.Pix {
		src.Pix[i] = 0x60
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(f, src, nil); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c := New(t.TempDir(), "nsx", WithClock(func() time.Time { return testNow }))
	if err := c.AddInfo(path, "NSX", "1", "ASHAB", "43.5N, 5.5W, 1200m"); err != nil {
		t.Fatalf("AddInfo() error = %v", err)
	}

	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	out, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decoding captioned image: %v", err)
	}
	if out.Bounds() != src.Bounds() {
		t.Errorf("bounds = %v, want %v", out.Bounds(), src.Bounds())
	}

	bright := 0
	for y := 22; y < 36; y++ {
		for x := 12; x < 60; x++ {
			if g := color.GrayModel.Convert(out.At(x, y)).(color.Gray); g.Y > 0xc0 {
				bright++
			}
		}
	}
	if bright == 0 {
		t.Errorf("no caption pixels found in the title area")
	}
}

func TestCamera_AddInfoMissing(t *testing.T) {
	c := New(t.TempDir(), "nsx")
	if err := c.AddInfo(filepath.Join(t.TempDir(), "none.jpg"), "NSX", "1", "", ""); !errors.Is(err, ErrIO) {
		t.Errorf("AddInfo() error = %v, want %v", err, ErrIO)
	}
}
