package gps

import (
	"bufio"
	"io"
	"os"
	"time"
)

// Replay plays back a captured NMEA log one line per interval, starting over
// at the end of the file. It stands in for the serial port on the bench.
type Replay struct {
	file    *os.File
	r       *bufio.Reader
	tick    *time.Ticker
	pending []byte
}

func NewReplay(path string, interval time.Duration) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return &Replay{
		file: f,
		r:    bufio.NewReader(f),
		tick: time.NewTicker(interval),
	}, nil
}

func (p *Replay) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		<-p.tick.C
		line, err := p.nextLine()
		if err != nil {
			return 0, err
		}
		p.pending = line
	}

	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *Replay) nextLine() ([]byte, error) {
	for rewound := false; ; rewound = true {
		line, err := p.r.ReadBytes('\n')
		if len(line) > 0 {
			return line, nil
		}
		if err != io.EOF || rewound {
			return nil, err
		}
		if _, err := p.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		p.r.Reset(p.file)
	}
}

func (p *Replay) Close() error {
	p.tick.Stop()
	return p.file.Close()
}
