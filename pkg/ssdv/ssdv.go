// Package ssdv turns JPEG images into SSDV packet streams with the external
// ssdv encoder (https://github.com/fsphil/ssdv) and reads the stream back
// one radio packet at a time.
package ssdv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ashab/nsx/pkg/util"
)

const (
	DefaultProgram = "ssdv"

	// StreamPacketSize is the packet stride in the encoder output. The first
	// byte of each packet is a sync byte that is not transmitted.
	StreamPacketSize = 256
	PacketSize       = 255
)

var (
	ErrExternal = errors.New("ssdv: encoder failed")
	ErrIO       = errors.New("ssdv: i/o error")
	ErrAccess   = errors.New("ssdv: packet out of range")
)

type Encoder struct {
	Program   string
	Callsign  string
	OutputDir string
	Name      string

	run    util.Runner
	logger zerolog.Logger
}

type EncoderOption func(e *Encoder)

func WithRunner(run util.Runner) EncoderOption {
	return func(e *Encoder) {
		e.run = run
	}
}

func WithLogger(logger zerolog.Logger) EncoderOption {
	return func(e *Encoder) {
		e.logger = logger
	}
}

// NewEncoder writes streams to <outputDir>/<name>.bin, tagged with callsign.
func NewEncoder(callsign, outputDir, name string, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		Program:   DefaultProgram,
		Callsign:  callsign,
		OutputDir: outputDir,
		Name:      name,
		run:       util.Exec,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StreamPath is where Encode leaves its output.
func (e *Encoder) StreamPath() string {
	return filepath.Join(e.OutputDir, e.Name+".bin")
}

// Encode runs the encoder on jpeg with image id seq and opens the result.
func (e *Encoder) Encode(ctx context.Context, jpeg string, seq uint8) (*Image, error) {
	out := e.StreamPath()
	args := []string{"-e", "-c", e.Callsign, "-i", strconv.Itoa(int(seq)), jpeg, out}

	if err := e.run(ctx, e.Program, args...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s exited with %d", ErrExternal, e.Program, exitErr.ExitCode())
		}
		if errors.Is(err, ErrExternal) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: running %s: %v", ErrIO, e.Program, err)
	}

	img, err := Open(out, seq)
	if err != nil {
		return nil, err
	}
	img.Source = jpeg

	e.logger.Debug().
		Str("jpeg", jpeg).
		Uint8("seq", seq).
		Int("packets", img.Count()).
		Msg("encoded image")
	return img, nil
}

// Image is one encoded SSDV stream on disk.
type Image struct {
	Source string
	Path   string
	Seq    uint8
	count  int
}

// Open describes an existing stream. The packet count is the file size
// divided by the stream stride, rounded down.
func Open(path string, seq uint8) (*Image, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return &Image{
		Path:  path,
		Seq:   seq,
		count: int(fi.Size() / StreamPacketSize),
	}, nil
}

func (img *Image) Count() int {
	return img.count
}

// Packet returns the i-th packet without its sync byte.
func (img *Image) Packet(i int) ([PacketSize]byte, error) {
	var buf [PacketSize]byte
	if img.count == 0 || i < 0 || i >= img.count {
		return buf, fmt.Errorf("%w: packet %d of %d", ErrAccess, i, img.count)
	}

	f, err := os.Open(img.Path)
	if err != nil {
		return buf, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	n, err := f.ReadAt(buf[:], int64(i)*StreamPacketSize+1)
	if n == PacketSize && (err == nil || err == io.EOF) {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return buf, fmt.Errorf("%w: packet %d: %v", ErrIO, i, err)
}
