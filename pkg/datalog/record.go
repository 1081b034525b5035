package datalog

import (
	"fmt"
	"os"
	"sync"
)

// Record appends lines to a CSV file and syncs after every line, so a
// power cut loses at most the line being written.
type Record struct {
	mu sync.Mutex
	f  *os.File
}

// OpenRecord opens path for appending, writing header first when the file
// is new or empty.
func OpenRecord(path, header string) (*Record, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Record{f: f}
	if fi.Size() == 0 && header != "" {
		if err := r.WriteRecord(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return r, nil
}

func (r *Record) WriteRecord(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprintln(r.f, line); err != nil {
		return fmt.Errorf("datalog: write: %w", err)
	}
	if err := r.f.Sync(); err != nil {
		return fmt.Errorf("datalog: sync: %w", err)
	}
	return nil
}

func (r *Record) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
