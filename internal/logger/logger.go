package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"auto_post_scheduler/config"
)

// Manager manages application loggers and their underlying files.
type Manager struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	infoFile    *os.File
	errorFile   *os.File
}

var global *Manager

// Initialize configures the global logger manager.
func Initialize(cfg *config.Config) (*Manager, error) {
	manager, err := New(cfg)
	if err != nil {
		return nil, err
	}
	global = manager
	return manager, nil
}

// New creates a new Manager instance.
func New(cfg *config.Config) (*Manager, error) {
	dir := cfg.LogDirectory
	if dir == "" {
		dir = "./logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	outputFile := cfg.LogOutputFile
	if outputFile == "" {
		outputFile = "app.log"
	}
	errorFile := cfg.LogErrorFile
	if errorFile == "" {
		errorFile = "app.error.log"
	}

	infoPath := filepath.Join(dir, outputFile)
	errPath := filepath.Join(dir, errorFile)

	infoHandle, err := os.OpenFile(infoPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open info log file: %w", err)
	}

	errorHandle, err := os.OpenFile(errPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		infoHandle.Close()
		return nil, fmt.Errorf("open error log file: %w", err)
	}

	infoWriter := io.MultiWriter(os.Stdout, infoHandle)
	errorWriter := io.MultiWriter(os.Stderr, errorHandle)

	infoLogger := log.New(infoWriter, "[INFO] ", log.LstdFlags|log.Lmicroseconds)
	errorLogger := log.New(errorWriter, "[ERROR] ", log.LstdFlags|log.Lmicroseconds)

	return &Manager{
		infoLogger:  infoLogger,
		errorLogger: errorLogger,
		infoFile:    infoHandle,
		errorFile:   errorHandle,
	}, nil
}

// Info returns the info logger.
func (m *Manager) Info() *log.Logger {
	return m.infoLogger
}

// Error returns the error logger.
func (m *Manager) Error() *log.Logger {
	return m.errorLogger
}

// Close releases file handles.
func (m *Manager) Close() error {
	var firstErr error
	if m.infoFile != nil {
		if err := m.infoFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.errorFile != nil {
		if err := m.errorFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases the global logger manager if initialized.
func Close() error {
	if global == nil {
		return nil
	}
	err := global.Close()
	global = nil
	return err
}

// Info returns the global info logger.
func Info() *log.Logger {
	if global != nil {
		return global.Info()
	}
	return log.Default()
}

// Error returns the global error logger.
func Error() *log.Logger {
	if global != nil {
		return global.Error()
	}
	return log.Default()
}

// Event writes a structured key=value event line on the info logger.
// Fields are sorted by key so event lines are grep-stable.
func Event(name string, fields map[string]any) {
	Info().Printf("event=%s%s", name, formatFields(fields))
}

// ErrorEvent writes a structured key=value event line on the error logger.
func ErrorEvent(name string, fields map[string]any) {
	Error().Printf("event=%s%s", name, formatFields(fields))
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := fmt.Sprintf("%v", fields[k])
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}
