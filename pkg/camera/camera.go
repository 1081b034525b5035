// Package camera takes still pictures with raspistill and stamps mission
// information on the pictures that go out over the radio.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ashab/nsx/pkg/util"
)

const DefaultProgram = "raspistill"

var (
	ErrCamera     = errors.New("camera: could not run still program")
	ErrCapture    = errors.New("camera: capture failed")
	ErrResolution = errors.New("camera: resolution must be WIDTHxHEIGHT")
	ErrIO         = errors.New("camera: image i/o failed")
)

type Camera struct {
	Program string

	dir      string
	basename string
	number   uint8

	run    util.Runner
	now    func() time.Time
	logger zerolog.Logger
}

type Option func(c *Camera)

func WithRunner(run util.Runner) Option {
	return func(c *Camera) {
		c.run = run
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Camera) {
		c.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Camera) {
		c.logger = logger
	}
}

// New stores pictures in dir, named after basename.
func New(dir, basename string, opts ...Option) *Camera {
	c := &Camera{
		Program:  DefaultProgram,
		dir:      dir,
		basename: basename,
		run:      util.Exec,
		now:      time.Now,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Number is the sequence number the next full picture will carry.
func (c *Camera) Number() uint8 {
	return c.number
}

// Capture takes a full resolution picture and returns its path. The
// sequence number only advances when the capture succeeds, wrapping after
// 255.
func (c *Camera) Capture(ctx context.Context) (string, error) {
	name := fmt.Sprintf("%s-%s-%d.jpg", c.basename, c.now().UTC().Format(time.RFC3339), c.number)
	path := filepath.Join(c.dir, name)

	if err := c.still(ctx, "-o", path); err != nil {
		return "", err
	}
	c.number++

	c.logger.Debug().Str("path", path).Msg("captured picture")
	return path, nil
}

// CaptureSmall takes a reduced picture, at a resolution such as "320x240",
// into dir/name.
func (c *Camera) CaptureSmall(ctx context.Context, name, resolution string) (string, error) {
	w, h, ok := strings.Cut(resolution, "x")
	if !ok || w == "" || h == "" {
		return "", fmt.Errorf("%w: %q", ErrResolution, resolution)
	}
	path := filepath.Join(c.dir, name)

	if err := c.still(ctx, "-w", w, "-h", h, "-o", path); err != nil {
		return "", err
	}
	return path, nil
}

func (c *Camera) still(ctx context.Context, args ...string) error {
	args = append([]string{"-st", "-t", "1000"}, args...)
	err := c.run(ctx, c.Program, args...)
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited with %d", ErrCapture, c.Program, exitErr.ExitCode())
	}
	return fmt.Errorf("%w: %v", ErrCamera, err)
}
