package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSessionLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC)

	log, err := OpenSessionLog(dir, now)
	if err != nil {
		t.Fatalf("OpenSessionLog() error = %v", err)
	}
	if got, want := filepath.Base(log.Path()), "claudelink-session-20260304-050607.008.log"; got != want {
		t.Errorf("file name = %q, want %q", got, want)
	}

	log.WriteLine(Stdout, "hello")
	log.WriteLine(Stderr, "careful")
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	log.WriteLine(Stdout, "dropped")
	if err := log.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	data, err := os.ReadFile(log.Path())
	if err != nil {
		t.Fatal(err)
	}
	if want := "[OUT] hello\n[ERR] careful\n"; string(data) != want {
		t.Errorf("log contents = %q, want %q", data, want)
	}
	if log.Err() != nil {
		t.Errorf("Err() = %v, want nil", log.Err())
	}
}

func TestSessionLog_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenSessionLog(filepath.Join(file, "sub"), time.Now()); err == nil {
		t.Error("OpenSessionLog() under a regular file should fail")
	}
}

func TestListSessionLogs(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{time.Minute, 0, time.Hour} {
		l, err := OpenSessionLog(dir, base.Add(offset))
		if err != nil {
			t.Fatal(err)
		}
		_ = l.Close()
	}
	if err := os.WriteFile(filepath.Join(dir, "debug.log"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	paths, err := ListSessionLogs(dir)
	if err != nil {
		t.Fatalf("ListSessionLogs() error = %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("got %d logs, want 3: %v", len(paths), paths)
	}
	if !strings.Contains(paths[0], "20260101-010000") {
		t.Errorf("newest log = %s, want the 01:00 one", paths[0])
	}
	if !strings.Contains(paths[2], "20260101-000000") {
		t.Errorf("oldest log = %s, want the 00:00 one", paths[2])
	}
}
