package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v2"
)

// MissingError reports a required key that is not in the file.
type MissingError struct {
	Section string
	Key     string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("config: missing %s.%s", e.Section, e.Key)
}

// ValueError reports a key whose value does not parse.
type ValueError struct {
	Section string
	Key     string
	Value   string
	Err     error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("config: bad value %q for %s.%s: %v", e.Value, e.Section, e.Key, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

type sections map[string]map[string]string

// Load reads, decodes and validates the file at path.
func Load(path string) (*Config, error) {
	var (
		raw sections
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = readYAML(path)
	default:
		raw, err = readINI(path)
	}
	if err != nil {
		return nil, err
	}

	cfg, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func readINI(path string) (sections, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	raw := sections{}
	for _, sec := range f.Sections() {
		if len(sec.Keys()) == 0 {
			continue
		}
		keys := map[string]string{}
		for _, k := range sec.Keys() {
			keys[k.Name()] = k.String()
		}
		raw[strings.ToLower(sec.Name())] = keys
	}
	return raw, nil
}

func readYAML(path string) (sections, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var doc map[string]map[string]interface{}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	raw := sections{}
	for name, values := range doc {
		keys := map[string]string{}
		for k, v := range values {
			if v == nil {
				continue
			}
			keys[strings.ToLower(k)] = fmt.Sprint(v)
		}
		raw[strings.ToLower(name)] = keys
	}
	return raw, nil
}

// decoder converts raw strings to typed fields, keeping the first error.
type decoder struct {
	raw sections
	err error
}

func (d *decoder) has(section string) bool {
	_, ok := d.raw[section]
	return ok
}

func (d *decoder) lookup(section, key string) (string, bool) {
	if d.err != nil {
		return "", false
	}
	v, ok := d.raw[section][key]
	if !ok {
		d.err = &MissingError{Section: section, Key: key}
	}
	return strings.TrimSpace(v), ok
}

func (d *decoder) invalid(section, key, value string, err error) {
	d.err = &ValueError{Section: section, Key: key, Value: value, Err: err}
}

func (d *decoder) str(section, key string) string {
	v, _ := d.lookup(section, key)
	return v
}

func (d *decoder) integer(section, key string) int {
	v, ok := d.lookup(section, key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		d.invalid(section, key, v, err)
	}
	return int(n)
}

func (d *decoder) float(section, key string) float64 {
	v, ok := d.lookup(section, key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		d.invalid(section, key, v, err)
	}
	return f
}

// seconds accepts a bare number of seconds or a Go duration string.
func (d *decoder) seconds(section, key string) time.Duration {
	v, ok := d.lookup(section, key)
	if !ok {
		return 0
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		d.invalid(section, key, v, err)
	}
	return dur
}

func decode(raw sections) (*Config, error) {
	d := &decoder{raw: raw}
	cfg := &Config{}

	cfg.Mission = Mission{
		ID:           d.str("mission", "id"),
		SubID:        d.str("mission", "subid"),
		Message:      strings.ReplaceAll(d.str("mission", "msg"), `\n`, "\n"),
		Separator:    d.str("mission", "separator"),
		PacketRepeat: d.integer("mission", "packet_repeat"),
		PacketDelay:  d.seconds("mission", "packet_delay"),
	}
	cfg.GPIO = GPIO{
		BattEnablePin: d.integer("gpio", "batt_enable_pin"),
		LEDPin:        d.integer("gpio", "led_pin"),
		PowerPin:      d.integer("gpio", "pwr_pin"),
	}
	cfg.GPS = GPS{
		SerialPort: d.str("gps", "serial_port"),
		Speed:      d.integer("gps", "speed"),
	}
	cfg.LoRa = LoRa{
		CS:        d.integer("lora", "cs"),
		IntPin:    d.integer("lora", "int_pin"),
		Frequency: d.float("lora", "freq"),
		LowPower:  d.integer("lora", "low_pwr"),
		HighPower: d.integer("lora", "high_pwr"),
	}
	cfg.ADC = ADC{
		CS:          d.integer("adc", "cs"),
		VBatt:       d.integer("adc", "vbatt"),
		VDivider:    d.float("adc", "v_divider"),
		VMultiplier: d.float("adc", "v_mult"),
	}
	cfg.Temp = Temp{
		InternalAddr: d.str("temp", "internal_addr"),
		ExternalAddr: d.str("temp", "external_addr"),
	}
	cfg.Baro = Baro{
		I2CBus: d.integer("baro", "i2c_bus"),
		Addr:   uint16(d.integer("baro", "addr")),
	}
	cfg.Paths = Paths{
		MainDir:   d.str("paths", "main_dir"),
		ImagesDir: d.str("paths", "images_dir"),
		LogPrefix: d.str("paths", "log_prefix"),
	}
	cfg.SSDV = SSDV{
		Size: d.str("ssdv", "size"),
		Name: d.str("ssdv", "name"),
	}

	if d.has("status") {
		cfg.Status = &Status{Listen: d.str("status", "listen")}
	}
	if d.has("influx") {
		cfg.Influx = &Influx{
			Host:   d.str("influx", "host"),
			Token:  d.str("influx", "token"),
			Org:    d.str("influx", "org"),
			Bucket: d.str("influx", "bucket"),
		}
	}
	if d.has("mirror") {
		cfg.Mirror = &Mirror{}
		for _, dst := range strings.Split(d.str("mirror", "destinations"), ",") {
			if dst = strings.TrimSpace(dst); dst != "" {
				cfg.Mirror.Destinations = append(cfg.Mirror.Destinations, dst)
			}
		}
	}
	cfg.Log.Level = "info"
	if d.has("log") {
		cfg.Log.Level = d.str("log", "level")
	}

	if d.err != nil {
		return nil, d.err
	}
	return cfg, nil
}
