package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Validate checks values that parse but cannot work.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := validateMission(&cfg.Mission); err != nil {
		return fmt.Errorf("mission: %w", err)
	}
	if err := validateRadio(&cfg.LoRa); err != nil {
		return fmt.Errorf("lora: %w", err)
	}
	if cfg.ADC.VBatt < 0 || cfg.ADC.VBatt > 1 {
		return fmt.Errorf("adc: vbatt channel must be 0 or 1, got %d", cfg.ADC.VBatt)
	}
	if _, _, err := ParseResolution(cfg.SSDV.Size); err != nil {
		return fmt.Errorf("ssdv: %w", err)
	}
	if cfg.Mirror != nil {
		for _, dst := range cfg.Mirror.Destinations {
			if _, err := net.ResolveUDPAddr("udp", dst); err != nil {
				return fmt.Errorf("mirror: destination %q: %w", dst, err)
			}
		}
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func validateMission(m *Mission) error {
	if m.ID == "" {
		return fmt.Errorf("id must not be empty")
	}
	if m.PacketRepeat < 1 {
		return fmt.Errorf("packet_repeat must be positive, got %d", m.PacketRepeat)
	}
	if m.PacketDelay <= 0 {
		return fmt.Errorf("packet_delay must be positive, got %v", m.PacketDelay)
	}
	return nil
}

func validateRadio(l *LoRa) error {
	if l.Frequency < 137 || l.Frequency > 1020 {
		return fmt.Errorf("freq %v MHz outside the 137-1020 MHz synthesizer range", l.Frequency)
	}
	if l.LowPower > l.HighPower {
		return fmt.Errorf("low_pwr %d above high_pwr %d", l.LowPower, l.HighPower)
	}
	return nil
}

// ParseResolution splits a "WIDTHxHEIGHT" string.
func ParseResolution(s string) (w, h int, err error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WIDTHxHEIGHT", s)
	}
	if w, err = strconv.Atoi(ws); err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("size %q: bad width", s)
	}
	if h, err = strconv.Atoi(hs); err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("size %q: bad height", s)
	}
	return w, h, nil
}
