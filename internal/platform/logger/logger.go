package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	root    zerolog.Logger
	once    sync.Once
	logFile *os.File
)

// Init wires the root logger to the console and, when a path is given, to
// an append-only log file. Safe to call more than once; only the first
// call takes effect.
func Init(path string) error {
	var err error
	once.Do(func() {
		writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}}
		if path != "" {
			if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return
			}
			logFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return
			}
			writers = append(writers, logFile)
		}
		root = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	})
	return err
}

func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// Named returns a child logger tagged with a component name.
func Named(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
