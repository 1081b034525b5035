// Package datalog keeps the on-board mission log and the CSV telemetry
// record.
package datalog

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxLogSizeMB  = 20
	maxLogBackups = 10
)

// LogPath is the mission log file name for a run started at t.
func LogPath(dir, prefix string, t time.Time) string {
	return dir + prefix + t.UTC().Format(time.RFC3339) + ".log"
}

// NewFileSink returns a rotating writer for the mission log.
func NewFileSink(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	}
}

// FileWriter formats log events for the mission log file, one line each:
//
//	INFO:: 2018-06-01T12:00:00Z:: telemetry sent seq=3
//
// Debug events carry sensor data and are tagged DATA.
func FileWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: time.RFC3339,
		PartsOrder: []string{
			zerolog.LevelFieldName,
			zerolog.TimestampFieldName,
			zerolog.MessageFieldName,
		},
		FormatLevel: func(i interface{}) string {
			return levelTag(fmt.Sprint(i)) + "::"
		},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprint(i) + "::"
		},
	}
}

func levelTag(level string) string {
	switch level {
	case zerolog.LevelDebugValue, zerolog.LevelTraceValue:
		return "DATA"
	case zerolog.LevelInfoValue:
		return "INFO"
	case zerolog.LevelWarnValue:
		return "WARN"
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return " ERR"
	}
	return strings.ToUpper(level)
}

// New builds the process logger: human readable on console and tagged lines
// in the mission log file.
func New(console, file io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: console},
		FileWriter(file),
	)).Level(level).With().Timestamp().Logger()
}
