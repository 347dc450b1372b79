package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/config"
)

// New builds the service logger. With cfg.Dir set, output goes to stdout
// and to a file under Dir rotated daily and kept for a week.
func New(name string, cfg config.LogCfg) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return f.Function, fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})

	if cfg.Dir == "" {
		log.SetOutput(os.Stdout)
		return log, nil
	}

	logPath := filepath.Join(cfg.Dir, name)
	if err := os.MkdirAll(logPath, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	writer, err := rotatelogs.New(
		filepath.Join(logPath, name+".log.%Y-%m-%d"),
		rotatelogs.WithLinkName(filepath.Join(logPath, name+".log")),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(7*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("rotate logs: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, writer))
	return log, nil
}
