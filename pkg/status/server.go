// Package status serves a small read-only HTTP view of the flight for the
// ground crew on the bench or over a tethered link.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ashab/nsx/pkg/ssdv"
	"github.com/ashab/nsx/pkg/telemetry"
)

const defaultHistory = 720

// Report is the body of GET /status.
type Report struct {
	Sample         *SampleReport `json:"sample,omitempty"`
	Sentence       string        `json:"sentence,omitempty"`
	ImageSeq       *uint8        `json:"image_seq,omitempty"`
	PacketsSent    int           `json:"packets_sent"`
	RadioErrors    int           `json:"radio_errors"`
	LastRadioError string        `json:"last_radio_error,omitempty"`
}

type SampleReport struct {
	Time         time.Time `json:"time"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Altitude     float64   `json:"altitude"`
	AscentRate   float64   `json:"ascent_rate"`
	Heading      float64   `json:"heading"`
	Speed        float64   `json:"speed"`
	Satellites   int       `json:"satellites"`
	Battery      float64   `json:"battery"`
	Pressure     float64   `json:"pressure"`
	TempInternal float64   `json:"temp_internal"`
	TempExternal float64   `json:"temp_external"`
	Power        string    `json:"power"`
}

func newSampleReport(s telemetry.Sample) *SampleReport {
	lat, lon := s.SignedPosition()
	return &SampleReport{
		Time:         s.Time,
		Latitude:     lat,
		Longitude:    lon,
		Altitude:     s.Altitude,
		AscentRate:   s.AscentRate,
		Heading:      s.Heading,
		Speed:        s.Speed,
		Satellites:   s.Satellites,
		Battery:      s.Battery,
		Pressure:     s.Pressure,
		TempInternal: s.TempInternal,
		TempExternal: s.TempExternal,
		Power:        s.Power.String(),
	}
}

// Server is a mission observer. It keeps the latest values under its own
// lock and never touches the devices.
type Server struct {
	mu          sync.RWMutex
	report      Report
	imagePath   string
	history     []altitudePoint
	historySize int

	srv     *http.Server
	metrics http.Handler
	logger  zerolog.Logger
}

type Option func(s *Server)

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithHistory sets how many altitude samples the plot keeps.
func WithHistory(n int) Option {
	return func(s *Server) {
		s.historySize = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		historySize: defaultHistory,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) OnTelemetry(sample telemetry.Sample, sentence string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Sample = newSampleReport(sample)
	s.report.Sentence = sentence
	s.history = append(s.history, altitudePoint{t: sample.Time, alt: sample.Altitude})
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
}

func (s *Server) OnImage(img *ssdv.Image, jpeg string) {
	seq := img.Seq
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.ImageSeq = &seq
	s.imagePath = jpeg
}

func (s *Server) OnImagePacket(uint8, int, int) {
	s.mu.Lock()
	s.report.PacketsSent++
	s.mu.Unlock()
}

func (s *Server) OnRadioError(err error) {
	s.mu.Lock()
	s.report.RadioErrors++
	s.report.LastRadioError = err.Error()
	s.mu.Unlock()
}

// Handler routes the status API.
func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Location", "/status")
		w.WriteHeader(http.StatusFound)
	})

	handler.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		report := s.report
		s.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			s.logger.Warn().Err(err).Msg("status: encode report")
		}
	})

	handler.GET("/img/latest", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		path := s.imagePath
		s.mu.RUnlock()

		if path == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("status: read image")
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	})

	handler.GET("/plot/altitude.png", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.mu.RLock()
		history := append([]altitudePoint(nil), s.history...)
		s.mu.RUnlock()

		if len(history) < 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		data, err := altitudePNG(history)
		if err != nil {
			s.logger.Error().Err(err).Msg("status: altitude plot")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	})

	if s.metrics != nil {
		metrics := s.metrics
		handler.GET("/metrics", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
			metrics.ServeHTTP(w, r)
		})
	}

	return handler
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("status server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
