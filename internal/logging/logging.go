// Package logging holds the process-wide leveled loggers.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

var (
	InfoLogger  = log.New(os.Stderr, "INFO\t", log.Ldate|log.Ltime)
	ErrorLogger = log.New(os.Stderr, "ERROR\t", log.Lshortfile|log.Ldate|log.Ltime)
)

const DefaultLogFile = "steamswitch.log"

// InitLoggingWithPath appends both loggers to the file at path and keeps
// echoing to stderr. The returned closer releases the file.
func InitLoggingWithPath(path string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	SetOutput(io.MultiWriter(file, os.Stderr))
	return file, nil
}

// SetOutput points both loggers and the standard logger at w.
func SetOutput(w io.Writer) {
	InfoLogger.SetOutput(w)
	ErrorLogger.SetOutput(w)
	log.SetOutput(w)
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Infof logs to InfoLogger, prefixed with the request id when ctx has one.
func Infof(ctx context.Context, format string, args ...any) {
	InfoLogger.Output(2, withRequestID(ctx, fmt.Sprintf(format, args...)))
}

// Errorf logs to ErrorLogger, prefixed with the request id when ctx has one.
func Errorf(ctx context.Context, format string, args ...any) {
	ErrorLogger.Output(2, withRequestID(ctx, fmt.Sprintf(format, args...)))
}

func withRequestID(ctx context.Context, msg string) string {
	if ctx == nil {
		return msg
	}
	if id := RequestID(ctx); id != "" {
		return "[" + id + "] " + msg
	}
	return msg
}
