// Package telemetry installs the process-wide trace pipeline.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"voxroute/internal/config"
)

const serviceName = "voxroute"

// Provider owns the tracer provider and whatever its exporter writes to.
type Provider struct {
	tp     *sdktrace.TracerProvider
	output io.Closer
}

// NewProvider builds a tracer provider for cfg. It returns nil when tracing
// is disabled. Spans go to cfg.File, or to fallback when no file is set.
func NewProvider(cfg config.TracingConfig, fallback io.Writer) (*Provider, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.Exporter)
	}

	var (
		output io.Writer = fallback
		closer io.Closer
	)
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		output, closer = file, file
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(output))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	return &Provider{tp: tp, output: closer}, nil
}

// Install makes p the global tracer provider. Tracers taken from otel after
// this call record through p.
func (p *Provider) Install() {
	otel.SetTracerProvider(p.tp)
}

// Shutdown flushes pending spans and closes the trace file.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.tp.Shutdown(ctx)
	if p.output != nil {
		if closeErr := p.output.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
