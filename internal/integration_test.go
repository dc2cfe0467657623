// Package internal contains integration tests that run a real child process
// through the launcher, supervisor, event bus, registry and session log
// together.
package internal

import (
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/event"
	"github.com/Iron-Ham/claudelink/internal/launcher"
	"github.com/Iron-Ham/claudelink/internal/output"
	"github.com/Iron-Ham/claudelink/internal/registry"
	"github.com/Iron-Ham/claudelink/internal/supervisor"
	"github.com/Iron-Ham/claudelink/internal/testutil"
)

type eventLog struct {
	mu    sync.Mutex
	types []string
}

func (l *eventLog) record(e event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, e.EventType())
}

func (l *eventLog) has(eventType string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Contains(l.types, eventType)
}

func TestSessionIntegration(t *testing.T) {
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := testutil.WriteScript(t, dir, "claude", `echo "⏵⏵ bypass permissions on (shift+tab to cycle)"
echo starting >&2
while read -r line; do
  echo "got:$line"
done`)

	cfg := config.Default()
	cfg.Launcher.Executable = script
	cfg.Output.LogDir = dir

	l, err := launcher.NewFromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	bus := event.NewBus(nil)
	events := &eventLog{}
	bus.SubscribeAll(events.record)

	var (
		modeMu sync.Mutex
		mode   string
	)
	bus.Subscribe(event.TypeOutputLine, func(e event.Event) {
		ev, ok := e.(event.OutputLineEvent)
		if !ok || ev.Line.Kind != output.KindMode {
			return
		}
		modeMu.Lock()
		mode = ev.Line.Mode
		modeMu.Unlock()
	})

	reg := registry.New()
	sup := supervisor.New(l, supervisor.ConfigFrom(cfg), nil, supervisor.WithBus(bus), supervisor.WithRegistry(reg))
	t.Cleanup(func() { _ = sup.Close() })
	api := supervisor.NewAPI(sup)

	msg, err := api.Start(supervisor.StartRequest{WorkingDir: dir, SessionID: "integration"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !strings.HasPrefix(msg, "started pid ") {
		t.Errorf("Start() = %q", msg)
	}

	rec, ok := reg.Lookup("integration")
	if !ok {
		t.Fatal("session was not registered")
	}
	if rec.RunID < registry.FirstRunID {
		t.Errorf("run id %d below %d", rec.RunID, registry.FirstRunID)
	}

	if _, err := api.Start(supervisor.StartRequest{}); err == nil || err.Error() != "claude already running" {
		t.Errorf("second Start() error = %v", err)
	}

	if err := api.SendInput("ping"); err != nil {
		t.Fatalf("SendInput() error = %v", err)
	}
	testutil.Eventually(t, 5*time.Second, func() bool {
		return slices.Contains(api.GetOutput().Stdout, "got:ping")
	}, "echoed input")
	testutil.Eventually(t, 5*time.Second, func() bool {
		return slices.Contains(api.GetOutput().Stderr, "starting")
	}, "stderr line")

	modeMu.Lock()
	gotMode := mode
	modeMu.Unlock()
	if gotMode != output.ModeBypass {
		t.Errorf("mode = %q, want %q", gotMode, output.ModeBypass)
	}

	if _, err := api.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if api.Status() {
		t.Error("Status() should be false after Stop")
	}

	for _, want := range []string{
		event.TypeStateChanged,
		event.TypeSessionStarted,
		event.TypeOutputLine,
		event.TypeSessionStopped,
	} {
		if !events.has(want) {
			t.Errorf("no %s event published", want)
		}
	}

	logs, err := output.ListSessionLogs(dir)
	if err != nil || len(logs) != 1 {
		t.Fatalf("ListSessionLogs() = %v, %v", logs, err)
	}
	data, err := os.ReadFile(logs[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[OUT] got:ping\n", "[ERR] starting\n"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("session log missing %q:\n%s", want, data)
		}
	}

	// Output survives Stop until cleared.
	if len(api.GetOutput().Stdout) == 0 {
		t.Error("captured output was dropped by Stop")
	}
	api.ClearOutput()
	if snap := api.GetOutput(); len(snap.Stdout)+len(snap.Stderr) != 0 {
		t.Errorf("output after clear = %+v", snap)
	}
}
