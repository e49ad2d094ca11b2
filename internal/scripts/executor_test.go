package scripts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"voxroute/internal/domain"
)

func TestExecutorMissingScriptFailsWithoutSpawning(t *testing.T) {
	t.Parallel()

	executor := NewExecutor("/scripts", afero.NewMemMapFs(), time.Second, zerolog.Nop())
	err := executor.Run(context.Background(), domain.Command{ID: "lock-screen", ScriptRef: "lock-screen.sh"}, nil)
	if !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound, got %v", err)
	}
}

func TestExecutorRejectsDirectories(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/scripts/nested", 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	executor := NewExecutor("/scripts", fs, time.Second, zerolog.Nop())
	err := executor.Run(context.Background(), domain.Command{ID: "nested", ScriptRef: "nested"}, nil)
	if !errors.Is(err, ErrScriptNotFound) {
		t.Fatalf("expected ErrScriptNotFound for directory, got %v", err)
	}
}

func TestExecutorPassesArgumentsAndSucceedsOnZeroExit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outFile := filepath.Join(dir, "args.txt")
	writeScript(t, dir, "open-application.sh", "#!/usr/bin/env bash\nprintf '%s|' \"$@\" > \""+outFile+"\"\n")

	executor := NewExecutor(dir, afero.NewOsFs(), time.Second, zerolog.Nop())
	err := executor.Run(context.Background(), domain.Command{ID: "open-application", ScriptRef: "open-application.sh"}, []string{"safari", "now"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("script did not run: %v", err)
	}
	if string(data) != "safari|now|" {
		t.Fatalf("unexpected script args: %q", string(data))
	}
}

func TestExecutorReportsNonZeroExit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "fail.sh", "#!/usr/bin/env bash\necho 'nope' 1>&2\nexit 4\n")

	executor := NewExecutor(dir, nil, time.Second, zerolog.Nop())
	err := executor.Run(context.Background(), domain.Command{ID: "fail", ScriptRef: "fail.sh"}, nil)
	if err == nil || !strings.Contains(err.Error(), "exited with code 4") {
		t.Fatalf("expected exit code failure, got %v", err)
	}
}

func TestExecutorKillsScriptsAfterTimeout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "slow.sh", "#!/usr/bin/env bash\nexec sleep 5\n")

	executor := NewExecutor(dir, nil, 100*time.Millisecond, zerolog.Nop())
	started := time.Now()
	err := executor.Run(context.Background(), domain.Command{ID: "slow", ScriptRef: "slow.sh"}, nil)
	if !errors.Is(err, ErrScriptTimeout) {
		t.Fatalf("expected ErrScriptTimeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("expected timeout to stop script promptly, took %s", elapsed)
	}
}

func TestExecutorRecordsRunSpans(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeScript(t, dir, "ok.sh", "#!/usr/bin/env bash\nexit 0\n")

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	executor := NewExecutor(dir, nil, time.Second, zerolog.Nop())
	executor.tracer = provider.Tracer(scopeName)

	if err := executor.Run(context.Background(), domain.Command{ID: "ok", ScriptRef: "ok.sh"}, []string{"a"}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := executor.Run(context.Background(), domain.Command{ID: "missing", ScriptRef: "missing.sh"}, nil); err == nil {
		t.Fatalf("expected missing script error")
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if spans[0].Name() != "scripts.run" || attrs["command.id"].AsString() != "ok" || attrs["script.args"].AsInt64() != 1 {
		t.Fatalf("unexpected success span %s %v", spans[0].Name(), attrs)
	}
	if spans[0].Status().Code != codes.Unset {
		t.Fatalf("expected unset status on success, got %v", spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || !strings.Contains(spans[1].Status().Description, "script not found") {
		t.Fatalf("expected error status on failure, got %v", spans[1].Status())
	}
}

func TestExecutorPathStaysInsideScriptDirectory(t *testing.T) {
	t.Parallel()

	executor := NewExecutor("/scripts", afero.NewMemMapFs(), 0, zerolog.Nop())
	cases := map[string]string{
		"volume-up.sh":       "/scripts/volume-up.sh",
		"window/left.sh":     "/scripts/window/left.sh",
		"../../etc/passwd":   "/scripts/etc/passwd",
		"/usr/bin/osascript": "/scripts/usr/bin/osascript",
	}
	for ref, want := range cases {
		if got := executor.Path(ref); got != want {
			t.Fatalf("Path(%q) = %q, want %q", ref, got, want)
		}
	}
}

func writeScript(t *testing.T, dir string, name string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
