package ssdv

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeStream(t *testing.T, path string, size int) []byte {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return data
}

func TestImage_Packet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssdv.bin")
	data := writeStream(t, path, 2560)

	img, err := Open(path, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if img.Count() != 10 {
		t.Fatalf("Count() = %d, want 10", img.Count())
	}

	p, err := img.Packet(9)
	if err != nil {
		t.Fatalf("Packet(9) error = %v", err)
	}
	if !bytes.Equal(p[:], data[9*256+1:10*256]) {
		t.Errorf("Packet(9) does not match stream bytes at offset %d", 9*256+1)
	}

	p, err = img.Packet(0)
	if err != nil {
		t.Fatalf("Packet(0) error = %v", err)
	}
	if p[0] != 1 {
		t.Errorf("Packet(0) starts with 0x%02x, want the byte after the sync byte", p[0])
	}

	for _, i := range []int{10, 11, -1} {
		if _, err := img.Packet(i); !errors.Is(err, ErrAccess) {
			t.Errorf("Packet(%d) error = %v, want %v", i, err, ErrAccess)
		}
	}
}

func TestImage_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssdv.bin")
	writeStream(t, path, 600)

	img, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if img.Count() != 2 {
		t.Errorf("Count() = %d, want 2", img.Count())
	}

	empty := filepath.Join(t.TempDir(), "empty.bin")
	writeStream(t, empty, 100)
	img, err = Open(empty, 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := img.Packet(0); !errors.Is(err, ErrAccess) {
		t.Errorf("Packet(0) on empty stream error = %v, want %v", err, ErrAccess)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.bin"), 0); !errors.Is(err, ErrIO) {
		t.Errorf("Open() error = %v, want %v", err, ErrIO)
	}
}

func TestEncoder_Encode(t *testing.T) {
	dir := t.TempDir()
	var gotName string
	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		writeStream(t, args[len(args)-1], 1024)
		return nil
	}

	e := NewEncoder("NSX1", dir, "ssdv", WithRunner(run))
	img, err := e.Encode(context.Background(), "/tmp/small.jpg", 7)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	wantArgs := []string{"-e", "-c", "NSX1", "-i", "7", "/tmp/small.jpg", filepath.Join(dir, "ssdv.bin")}
	if gotName != "ssdv" || !reflect.DeepEqual(gotArgs, wantArgs) {
		t.Errorf("ran %s %v, want ssdv %v", gotName, gotArgs, wantArgs)
	}
	if img.Count() != 4 || img.Seq != 7 || img.Source != "/tmp/small.jpg" {
		t.Errorf("Encode() = %+v", img)
	}
}

func TestEncoder_EncodeFailure(t *testing.T) {
	e := NewEncoder("NSX1", t.TempDir(), "ssdv", WithRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("exec: \"ssdv\": executable file not found in $PATH")
	}))
	if _, err := e.Encode(context.Background(), "in.jpg", 0); !errors.Is(err, ErrIO) {
		t.Errorf("Encode() error = %v, want %v", err, ErrIO)
	}

	e = NewEncoder("NSX1", t.TempDir(), "ssdv", WithRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	}))
	if _, err := e.Encode(context.Background(), "in.jpg", 0); !errors.Is(err, ErrIO) {
		t.Errorf("Encode() without output error = %v, want %v", err, ErrIO)
	}
}

func TestEncoder_NonZeroExit(t *testing.T) {
	e := NewEncoder("NSX1", t.TempDir(), "ssdv")
	e.Program = "false"
	if _, err := e.Encode(context.Background(), "in.jpg", 0); !errors.Is(err, ErrExternal) {
		t.Errorf("Encode() error = %v, want %v", err, ErrExternal)
	}
}
