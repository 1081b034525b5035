package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"

	"github.com/ashab/nsx/pkg/camera"
	"github.com/ashab/nsx/pkg/config"
	"github.com/ashab/nsx/pkg/datalog"
	"github.com/ashab/nsx/pkg/hw"
	"github.com/ashab/nsx/pkg/led"
	"github.com/ashab/nsx/pkg/metrics"
	"github.com/ashab/nsx/pkg/mirror"
	"github.com/ashab/nsx/pkg/mission"
	"github.com/ashab/nsx/pkg/rf95"
	"github.com/ashab/nsx/pkg/sensors/battery"
	"github.com/ashab/nsx/pkg/sensors/ds18b20"
	"github.com/ashab/nsx/pkg/sensors/gps"
	"github.com/ashab/nsx/pkg/sensors/mcp3002"
	"github.com/ashab/nsx/pkg/sensors/ms5607"
	"github.com/ashab/nsx/pkg/ssdv"
	"github.com/ashab/nsx/pkg/status"
	"github.com/ashab/nsx/pkg/telemetry"
)

const gpsReplayInterval = 500 * time.Millisecond

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "/home/pi/nsx.cfg", "INI or YAML config file")
	highPower := flag.Bool("high-power", false, "transmit at the configured high power")
	gpsReplay := flag.String("gps-replay", "", "read NMEA from this capture file instead of the serial port")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configFile).Msg("error loading config")
	}

	level, _ := zerolog.ParseLevel(cfg.Log.Level)
	logFile := datalog.NewFileSink(datalog.LogPath(cfg.Paths.MainDir, cfg.Paths.LogPrefix, time.Now()))
	defer logFile.Close()
	log.Logger = datalog.New(os.Stderr, logFile, level)

	host, err := hw.Open()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize host")
	}
	defer host.Close()

	ledPin, err := host.Pin(cfg.GPIO.LEDPin)
	if err != nil {
		log.Fatal().Err(err).Msg("led")
	}
	indicator, err := led.New(ledPin)
	if err != nil {
		log.Fatal().Err(err).Msg("led")
	}
	if err := indicator.Blink(); err != nil {
		log.Warn().Err(err).Msg("led")
	}

	radio := openRadio(host, cfg.LoRa)

	gpsReader := openGPS(cfg.GPS, *gpsReplay)
	defer gpsReader.Close()

	adcConn, err := host.SPI(cfg.ADC.CS, mcp3002.MaxSpeed)
	if err != nil {
		log.Fatal().Err(err).Msg("adc")
	}
	battEnable, err := host.Pin(cfg.GPIO.BattEnablePin)
	if err != nil {
		log.Fatal().Err(err).Msg("battery enable")
	}

	baroDev, err := host.I2C(cfg.Baro.I2CBus, cfg.Baro.Addr)
	if err != nil {
		log.Fatal().Err(err).Msg("barometer")
	}
	baro := ms5607.New(baroDev)
	if err := baro.ReadPROM(); err != nil {
		log.Fatal().Err(err).Msg("barometer calibration")
	}

	imagesDir := filepath.Join(cfg.Paths.MainDir, cfg.Paths.ImagesDir)
	record, err := datalog.OpenRecord(filepath.Join(cfg.Paths.MainDir, cfg.Paths.LogPrefix+"data.csv"), telemetry.CSVHeader)
	if err != nil {
		log.Fatal().Err(err).Msg("data log")
	}
	defer record.Close()

	var observers []mission.Option
	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("metrics")
	}
	observers = append(observers, mission.WithObserver(collector))

	if cfg.Influx != nil {
		client := influxdb2.NewClient(cfg.Influx.Host, cfg.Influx.Token)
		defer client.Close()
		writeAPI := client.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket)
		observers = append(observers, mission.WithObserver(metrics.NewInflux(writeAPI, cfg.Mission.ID)))
	}

	var statusServer *status.Server
	if cfg.Status != nil {
		statusServer = status.NewServer(cfg.Status.Listen, status.WithMetrics(collector.Handler()))
		observers = append(observers, mission.WithObserver(statusServer))
	}

	var udpMirror *mirror.Mirror
	if cfg.Mirror != nil {
		dests, err := mirror.ParseDestinations(strings.Join(cfg.Mirror.Destinations, ","))
		if err != nil {
			log.Fatal().Err(err).Msg("mirror")
		}
		udpMirror = mirror.New(dests)
		observers = append(observers, mission.WithObserver(udpMirror))
	}

	flight, err := mission.New(mission.Options{
		ID:           cfg.Mission.ID,
		SubID:        cfg.Mission.SubID,
		Message:      cfg.Mission.Message,
		Separator:    cfg.Mission.Separator,
		PacketRepeat: cfg.Mission.PacketRepeat,
		PacketDelay:  cfg.Mission.PacketDelay,
		LowPower:     cfg.LoRa.LowPower,
		HighPower:    cfg.LoRa.HighPower,
		SSDVName:     cfg.SSDV.Name,
		SSDVSize:     cfg.SSDV.Size,
	}, mission.Devices{
		Radio:        radio,
		GPS:          gps.New(gpsReader),
		Barometer:    baro,
		TempInternal: ds18b20.New(cfg.Temp.InternalAddr),
		TempExternal: ds18b20.New(cfg.Temp.ExternalAddr),
		Battery:      battery.New(mcp3002.New(adcConn), cfg.ADC.VBatt, battEnable, cfg.ADC.VMultiplier, cfg.ADC.VDivider),
		LED:          indicator,
		Camera:       camera.New(imagesDir, cfg.Mission.ID),
		Encoder:      ssdv.NewEncoder(cfg.Mission.ID, imagesDir, cfg.SSDV.Name),
		DataLog:      record,
	}, append(observers, mission.WithLogger(log.Logger))...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mission")
	}

	power := telemetry.PowerLow
	if *highPower || powerJumper(host, cfg.GPIO.PowerPin) {
		power = telemetry.PowerHigh
	}
	if err := flight.SetPowerLevel(power); err != nil {
		log.Fatal().Err(err).Msg("failed to set transmit power")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Info().Stringer("signal", sig).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	if statusServer != nil {
		eg.Go(func() error {
			return statusServer.Run(ctx)
		})
	}
	if udpMirror != nil {
		eg.Go(func() error {
			return udpMirror.Start(ctx)
		})
	}

	eg.Go(func() error {
		err := flight.Run(ctx)
		if serr := radio.SetModeSleep(); serr != nil {
			log.Warn().Err(serr).Msg("radio sleep")
		}
		stats := radio.Stats()
		log.Info().Uint("tx_good", stats.TxGood).Msg("mission stopped")
		return err
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}

func openRadio(host *hw.Host, cfg config.LoRa) *rf95.Radio {
	conn, err := host.SPI(cfg.CS, hw.RadioSPISpeed)
	if err != nil {
		log.Fatal().Err(err).Msg("lora")
	}

	radio := rf95.New(conn, rf95.WithLogger(log.Logger))
	if err := radio.Init(); err != nil {
		log.Fatal().Err(err).Msg("lora init failed")
	}
	if err := radio.SetFrequency(cfg.Frequency); err != nil {
		log.Fatal().Err(err).Msg("lora frequency")
	}
	if version, err := radio.Version(); err == nil {
		log.Info().Hex("version", []byte{version}).Float64("mhz", cfg.Frequency).Msg("lora init ok")
	}
	return radio
}

func openGPS(cfg config.GPS, replay string) io.ReadCloser {
	if replay != "" {
		r, err := gps.NewReplay(replay, gpsReplayInterval)
		if err != nil {
			log.Fatal().Err(err).Str("path", replay).Msg("gps replay")
		}
		return r
	}
	port, err := gps.OpenSerial(cfg.SerialPort, cfg.Speed)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.SerialPort).Msg("gps")
	}
	return port
}

// powerJumper reports whether the high power jumper pulls the power pin
// high.
func powerJumper(host *hw.Host, num int) bool {
	pin, err := host.Pin(num)
	if err != nil {
		log.Warn().Err(err).Msg("power pin")
		return false
	}
	if err := pin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		log.Warn().Err(err).Msg("power pin")
		return false
	}
	return pin.Read() == gpio.High
}
