package configs

import (
	"fmt"
	"io"
	"os"
	"time"

	format "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局日志, usable before InitLog runs.
var Log = newLog()

func newLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(newFormatter(false))
	return l
}

func newFormatter(noColors bool) *format.Formatter {
	return &format.Formatter{
		HideKeys:        false,
		NoColors:        noColors,
		TimestampFormat: time.RFC3339,
		FieldsOrder:     []string{"component", "category"},
	}
}

// InitLog applies cfg to Log. debug forces the debug level.
func InitLog(cfg LogConfig, debug bool) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if debug {
		level = logrus.DebugLevel
	}
	Log.SetLevel(level)

	var out io.Writer = os.Stderr
	if cfg.File.Enabled {
		// 日志文件轮转
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		})
	}
	Log.SetOutput(out)
	Log.SetFormatter(newFormatter(cfg.File.Enabled))

	Log.WithFields(logrus.Fields{
		"component": "configs",
		"category":  "log",
	}).Debugf("logger ready, level %s", level)
	return nil
}
