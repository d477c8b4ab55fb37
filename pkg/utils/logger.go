// Package utils holds process-level helpers shared by the commands.
package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const (
	logFileName    = "sellerbridge.log"
	defaultMaxSize = 10 * 1024 * 1024
	defaultBackups = 5
)

// RotatableLogger writes to a file and rotates it when it reaches MaxSize.
// Backups are named <file>.1 (newest) to <file>.<MaxBackups>.
type RotatableLogger struct {
	Filename   string
	MaxSize    int64 // bytes
	MaxBackups int
	file       *os.File
	size       int64
	mu         sync.Mutex
}

// NewRotatableLogger creates a new RotatableLogger.
func NewRotatableLogger(filename string, maxSize int64, maxBackups int) *RotatableLogger {
	return &RotatableLogger{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
}

func (l *RotatableLogger) open() error {
	file, err := os.OpenFile(l.Filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file = file
	l.size = info.Size()
	return nil
}

func (l *RotatableLogger) close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *RotatableLogger) rotate() error {
	if err := l.close(); err != nil {
		return err
	}

	if l.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", l.Filename, l.MaxBackups))
		for i := l.MaxBackups - 1; i >= 1; i-- {
			_ = os.Rename(fmt.Sprintf("%s.%d", l.Filename, i), fmt.Sprintf("%s.%d", l.Filename, i+1))
		}
		if err := os.Rename(l.Filename, l.Filename+".1"); err != nil && !os.IsNotExist(err) {
			return err
		}
	} else if err := os.Remove(l.Filename); err != nil && !os.IsNotExist(err) {
		return err
	}

	return l.open()
}

func (l *RotatableLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if err := l.open(); err != nil {
			// Fall back to stderr if the file cannot be opened.
			return os.Stderr.Write(p)
		}
	}

	if l.MaxSize > 0 && l.size+int64(len(p)) > l.MaxSize && l.size > 0 {
		if err := l.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := l.file.Write(p)
	l.size += int64(n)
	return n, err
}

// Close closes the current log file.
func (l *RotatableLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.close()
}

var debug atomic.Bool

// SetDebug toggles Debugf output.
func SetDebug(on bool) {
	debug.Store(on)
}

// Debugf logs through the standard logger when debug output is on.
func Debugf(format string, args ...any) {
	if debug.Load() {
		log.Output(2, "DEBUG "+fmt.Sprintf(format, args...))
	}
}

// SetupLogger sends the standard logger to stderr and a rotating file in
// logDir (10MB, 5 backups). The returned closer releases the file.
func SetupLogger(logDir string, debugOn bool) (io.Closer, error) {
	SetDebug(debugOn)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logger := NewRotatableLogger(filepath.Join(logDir, logFileName), defaultMaxSize, defaultBackups)

	log.SetOutput(io.MultiWriter(os.Stderr, logger))
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	return logger, nil
}
