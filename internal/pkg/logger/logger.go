package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls level, format and rotation.
type Config struct {
	Level         string // debug/info/warn/error
	Format        string // json/text
	Output        string // stdout/file/both
	FilePath      string
	MaxSize       int // MB
	MaxAge        int // days
	MaxBackups    int
	Compress      bool
	EnableConsole bool
}

var _ log.Logger = (*Logger)(nil)

// Logger adapts logrus to the kratos log.Logger interface.
type Logger struct {
	log *logrus.Logger
}

// NewLogger builds a logger writing to stdout and/or a rotating file.
func NewLogger(c *Config) log.Logger {
	if c == nil {
		c = &Config{Level: "info", Format: "json", Output: "stdout"}
	}

	l := logrus.New()
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(c.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableTimestamp: true})
	} else {
		// ts comes from kratos log.With
		l.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: true})
	}

	l.SetOutput(writerFor(c))
	return &Logger{log: l}
}

func writerFor(c *Config) io.Writer {
	var file io.Writer
	if c.FilePath != "" {
		file = &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxSize,
			MaxAge:     c.MaxAge,
			MaxBackups: c.MaxBackups,
			Compress:   c.Compress,
		}
	}

	switch strings.ToLower(c.Output) {
	case "file":
		if file == nil {
			return os.Stdout
		}
		if c.EnableConsole {
			return io.MultiWriter(os.Stdout, file)
		}
		return file
	case "both":
		if file == nil {
			return os.Stdout
		}
		return io.MultiWriter(os.Stdout, file)
	default:
		return os.Stdout
	}
}

// Log implements log.Logger.
func (l *Logger) Log(level log.Level, keyvals ...interface{}) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "KEYVALS UNPAIRED")
	}

	var msg string
	fields := make(logrus.Fields, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields[key] = keyvals[i+1]
	}

	entry := l.log.WithFields(fields)
	switch level {
	case log.LevelDebug:
		entry.Debug(msg)
	case log.LevelInfo:
		entry.Info(msg)
	case log.LevelWarn:
		entry.Warn(msg)
	case log.LevelError:
		entry.Error(msg)
	case log.LevelFatal:
		// logrus Fatal exits the process; kratos leaves that to the caller.
		entry.Log(logrus.FatalLevel, msg)
	default:
		entry.Info(msg)
	}
	return nil
}

// SetOutput redirects the underlying writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.log.SetOutput(w)
}
