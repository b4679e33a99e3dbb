// Package logging wraps zerolog with a process-wide base logger and
// context-carried run loggers.
package logging

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Canonical field names.
const (
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldStage     = "stage"
	FieldScene     = "scene"
	FieldProvider  = "provider"
	FieldStatus    = "status"
	FieldEvent     = "event"
)

// Config captures options for configuring the base logger.
type Config struct {
	Level   string    // "debug", "info", ...; empty keeps info
	Output  io.Writer // defaults to os.Stdout
	Service string    // attached to every entry
}

type ctxKey struct{}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stdout).With().Timestamp().Str("service", "autovid").Logger()
)

// Configure replaces the base logger.
func Configure(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}
	service := cfg.Service
	if service == "" {
		service = "autovid"
	}

	l := zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()

	mu.Lock()
	base = l
	mu.Unlock()
}

// Base returns the configured base logger.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a child logger annotated with the component name.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str(FieldComponent, component).Logger()
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the base logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return l
		}
	}
	return Base()
}

// Component returns the ctx logger annotated with component.
func Component(ctx context.Context, component string) zerolog.Logger {
	l := FromContext(ctx)
	return l.With().Str(FieldComponent, component).Logger()
}
