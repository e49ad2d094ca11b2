package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxroute/internal/config"
)

func TestNewProviderDisabled(t *testing.T) {
	t.Parallel()

	for _, exporter := range []string{"", "none"} {
		provider, err := NewProvider(config.TracingConfig{Exporter: exporter}, &bytes.Buffer{})
		if err != nil || provider != nil {
			t.Fatalf("exporter %q: expected no provider, got %v, %v", exporter, provider, err)
		}
	}
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	t.Parallel()

	if _, err := NewProvider(config.TracingConfig{Exporter: "zipkin"}, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected unsupported exporter error")
	}
}

func TestProviderExportsSpansToWriter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	provider, err := NewProvider(config.TracingConfig{Exporter: "stdout"}, &out)
	if err != nil {
		t.Fatalf("new provider failed: %v", err)
	}

	_, span := provider.tp.Tracer("test").Start(context.Background(), "scripts.run")
	span.End()
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	var exported struct {
		Name string
	}
	if err := json.NewDecoder(&out).Decode(&exported); err != nil {
		t.Fatalf("exported span is not json: %v (%q)", err, out.String())
	}
	if exported.Name != "scripts.run" {
		t.Fatalf("unexpected span name %q", exported.Name)
	}
	if !strings.Contains(out.String(), serviceName) {
		t.Fatalf("expected service name in exported resource: %s", out.String())
	}
}

func TestProviderWritesTraceFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "traces.jsonl")
	var fallback bytes.Buffer
	provider, err := NewProvider(config.TracingConfig{Exporter: "stdout", File: path}, &fallback)
	if err != nil {
		t.Fatalf("new provider failed: %v", err)
	}

	_, span := provider.tp.Tracer("test").Start(context.Background(), "start transcription session")
	span.End()
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("trace file missing: %v", err)
	}
	if !strings.Contains(string(data), "start transcription session") {
		t.Fatalf("expected span in trace file, got %q", data)
	}
	if fallback.Len() != 0 {
		t.Fatalf("expected nothing on the fallback writer")
	}
}
