package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voxroute/internal/domain"
)

func TestSupervisorForwardsHelperEvents(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "helper.sh", `#!/usr/bin/env bash
printf '{"type":"startList'
printf 'ening"}\n{"type":"heartbeat"}\n'
echo 'garbage'
echo '{"type":"audioChunk","data":"AAE=","packetDuration":0.02,"sampleRate":16000}'
echo 'diagnostic noise' 1>&2
echo '{"type":"error","message":"mic busy"}'
echo '{"type":"stopListening"}'
exec sleep 5
`)
	supervisor := newTestSupervisor(t, Config{Command: script})
	if err := supervisor.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, ok := receive(t, supervisor.Events()).(domain.HelperStartListening); !ok {
		t.Fatalf("expected startListening first")
	}
	audio, ok := receive(t, supervisor.Events()).(domain.HelperAudio)
	if !ok || len(audio.Chunk.Data) != 2 || audio.Chunk.SampleRate != 16000 {
		t.Fatalf("unexpected audio event: %#v", audio)
	}
	reported, ok := receive(t, supervisor.Events()).(domain.HelperReportedError)
	if !ok || reported.Message != "mic busy" {
		t.Fatalf("unexpected error event: %#v", reported)
	}
	if _, ok := receive(t, supervisor.Events()).(domain.HelperStopListening); !ok {
		t.Fatalf("expected stopListening last")
	}

	if supervisor.Listening() {
		t.Fatalf("expected listening flag to be cleared")
	}
	if supervisor.LastHeartbeat().IsZero() {
		t.Fatalf("expected heartbeat to be recorded")
	}
	if supervisor.State() != domain.HelperRunning || supervisor.PID() == 0 {
		t.Fatalf("expected running helper, state=%s pid=%d", supervisor.State(), supervisor.PID())
	}
}

func TestSupervisorRestartsOnceAfterCrash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	counter := filepath.Join(dir, "spawns")
	script := writeScript(t, "flaky.sh", `#!/usr/bin/env bash
echo run >> "`+counter+`"
if [ "$(wc -l < "`+counter+`")" -eq 1 ]; then
  exit 3
fi
echo '{"type":"startListening"}'
exec sleep 5
`)
	supervisor := newTestSupervisor(t, Config{Command: script, RestartBackoff: 50 * time.Millisecond})
	if err := supervisor.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	exited, ok := receive(t, supervisor.Events()).(domain.HelperExited)
	if !ok || exited.Code != 3 || !exited.Restarting {
		t.Fatalf("expected restarting exit notice, got %#v", exited)
	}
	if _, ok := receive(t, supervisor.Events()).(domain.HelperStartListening); !ok {
		t.Fatalf("expected respawned helper to report listening")
	}

	time.Sleep(150 * time.Millisecond)
	if got := countLines(t, counter); got != 2 {
		t.Fatalf("expected exactly one respawn, got %d spawns", got)
	}
	if supervisor.State() != domain.HelperRunning {
		t.Fatalf("expected running state after respawn, got %s", supervisor.State())
	}
}

func TestSupervisorDoesNotRestartCleanExit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	counter := filepath.Join(dir, "spawns")
	script := writeScript(t, "clean.sh", "#!/usr/bin/env bash\necho run >> \""+counter+"\"\nexit 0\n")
	supervisor := newTestSupervisor(t, Config{Command: script, RestartBackoff: 20 * time.Millisecond})
	if err := supervisor.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	exited, ok := receive(t, supervisor.Events()).(domain.HelperExited)
	if !ok || exited.Code != 0 || exited.Restarting {
		t.Fatalf("expected clean exit notice, got %#v", exited)
	}

	time.Sleep(100 * time.Millisecond)
	if got := countLines(t, counter); got != 1 {
		t.Fatalf("expected no respawn, got %d spawns", got)
	}
	if supervisor.State() != domain.HelperStopped {
		t.Fatalf("expected stopped state, got %s", supervisor.State())
	}
}

func TestSupervisorSpawnFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	supervisor := newTestSupervisor(t, Config{
		Command:        filepath.Join(t.TempDir(), "missing-helper"),
		RestartBackoff: 10 * time.Millisecond,
	})

	err := supervisor.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start capture helper") {
		t.Fatalf("expected spawn error, got %v", err)
	}
	if supervisor.State() != domain.HelperStopped {
		t.Fatalf("expected stopped state, got %s", supervisor.State())
	}

	select {
	case event := <-supervisor.Events():
		t.Fatalf("expected no events after spawn failure, got %#v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSupervisorStopTerminatesHelper(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "idle.sh", "#!/usr/bin/env bash\necho '{\"type\":\"startListening\"}'\nexec sleep 5\n")
	supervisor := newTestSupervisor(t, Config{Command: script, RestartBackoff: 10 * time.Millisecond})
	if err := supervisor.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	receive(t, supervisor.Events())

	started := time.Now()
	if err := supervisor.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("expected interrupt to stop helper promptly, took %s", elapsed)
	}
	if supervisor.State() != domain.HelperStopped || supervisor.PID() != 0 {
		t.Fatalf("expected stopped helper, state=%s pid=%d", supervisor.State(), supervisor.PID())
	}
	if supervisor.Listening() {
		t.Fatalf("expected listening to be cleared on stop")
	}
}

func TestSupervisorStopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "idle.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	supervisor := newTestSupervisor(t, Config{Command: script})

	ctx, cancel := context.WithCancel(context.Background())
	if err := supervisor.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for supervisor.PID() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("helper still running after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newTestSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()
	supervisor := NewSupervisor(cfg, zerolog.Nop())
	t.Cleanup(func() { _ = supervisor.Stop() })
	return supervisor
}

func receive(t *testing.T, events <-chan domain.HelperEvent) domain.HelperEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for helper event")
		return nil
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return strings.Count(string(data), "\n")
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
