package launcher

import (
	"bufio"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/claudelink/internal/config"
	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/logging"
	"github.com/Iron-Ham/claudelink/internal/process"
	"github.com/Iron-Ham/claudelink/internal/process/shim"
	"github.com/Iron-Ham/claudelink/internal/testutil"
)

type fakeResolver map[string]shim.Resolution

func (f fakeResolver) Resolve(name string) shim.Resolution {
	if r, ok := f[name]; ok {
		return r
	}
	return shim.Resolution{Program: name}
}

// fakeDiscoverer hands out workers[i] on the i-th DiscoverSpawnable call.
type fakeDiscoverer struct {
	mu      sync.Mutex
	workers []*process.Child
	roots   []int
	specs   []process.LaunchSpec
}

func (f *fakeDiscoverer) Discover(rootPID int) (int, bool) {
	return 0, false
}

func (f *fakeDiscoverer) DiscoverSpawnable(rootPID int, spec process.LaunchSpec) (*process.Child, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.roots)
	f.roots = append(f.roots, rootPID)
	f.specs = append(f.specs, spec)
	if i < len(f.workers) && f.workers[i] != nil {
		return f.workers[i], true
	}
	return nil, false
}

func (f *fakeDiscoverer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.roots)
}

func testConfig() Config {
	return Config{
		DefaultExecutable: "claude",
		Shells:            []string{"sh", "bash"},
		DiscoveryBudget:   50 * time.Millisecond,
		DiscoveryInterval: 5 * time.Millisecond,
	}
}

func permissionDenied(path string) error {
	return &os.PathError{Op: "fork/exec", Path: path, Err: os.ErrPermission}
}

func newWorker(t *testing.T) (*process.Child, *testutil.FakeStarter) {
	t.Helper()
	starter := testutil.NewFakeStarter().On("worker", testutil.Result{PID: 4242})
	child, err := starter.Start(process.Command{Path: "worker"})
	if err != nil {
		t.Fatalf("start worker: %v", err)
	}
	return child, starter
}

func TestSpawn_Direct(t *testing.T) {
	starter := testutil.NewFakeStarter().On("claude", testutil.Result{})
	l := New(starter, nil, &fakeDiscoverer{}, testConfig(), nil)

	spec := process.LaunchSpec{
		Args:       []string{"--print", "hi"},
		Env:        map[string]string{"CLAUDELINK_DIRECT": "yes"},
		WorkingDir: "/tmp",
	}
	child, err := l.Spawn(spec)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if !child.HasAllPipes() {
		t.Error("direct launch should have all pipes")
	}

	calls := starter.Calls()
	if len(calls) != 1 {
		t.Fatalf("Start called %d times, want 1", len(calls))
	}
	if !reflect.DeepEqual(calls[0].Args, spec.Args) {
		t.Errorf("Args = %v, want %v", calls[0].Args, spec.Args)
	}
	if calls[0].Dir != "/tmp" {
		t.Errorf("Dir = %q, want /tmp", calls[0].Dir)
	}
	found := false
	for _, kv := range calls[0].Env {
		found = found || kv == "CLAUDELINK_DIRECT=yes"
	}
	if !found {
		t.Error("environment override missing from direct launch")
	}
}

func TestSpawn_ShimLeadingArgs(t *testing.T) {
	starter := testutil.NewFakeStarter().On(`C:\node\node.exe`, testutil.Result{})
	resolver := fakeResolver{"claude": {
		Program:     `C:\node\node.exe`,
		LeadingArgs: []string{`C:\npm\cli.js`},
		Shim:        `C:\npm\claude.cmd`,
	}}
	l := New(starter, resolver, nil, testConfig(), nil)

	spec := process.LaunchSpec{Args: []string{"--resume"}}
	if _, err := l.Spawn(spec); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	call := starter.Calls()[0]
	if want := []string{`C:\npm\cli.js`, "--resume"}; !reflect.DeepEqual(call.Args, want) {
		t.Errorf("Args = %v, want %v", call.Args, want)
	}
	if !reflect.DeepEqual(spec.Args, []string{"--resume"}) {
		t.Errorf("caller's spec was modified: %v", spec.Args)
	}
}

func TestSpawn_ExplicitExecutable(t *testing.T) {
	starter := testutil.NewFakeStarter().On("/opt/claude/bin/claude", testutil.Result{})
	l := New(starter, nil, nil, testConfig(), nil)

	if _, err := l.Spawn(process.LaunchSpec{Executable: "/opt/claude/bin/claude"}); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if got := starter.Paths(); !reflect.DeepEqual(got, []string{"/opt/claude/bin/claude"}) {
		t.Errorf("started %v", got)
	}
}

func TestSpawn_VisibleSkipsDiscovery(t *testing.T) {
	starter := testutil.NewFakeStarter().On("claude", testutil.Result{})
	disc := &fakeDiscoverer{}
	l := New(starter, nil, disc, testConfig(), nil)

	child, err := l.Spawn(process.LaunchSpec{Visible: true})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if child.Stdin != nil {
		t.Error("visible launch should not attach stdin")
	}
	if !starter.Calls()[0].Visible {
		t.Error("Visible not passed to the starter")
	}
	if disc.calls() != 0 {
		t.Errorf("discovery called %d times for a visible launch", disc.calls())
	}
}

func TestSpawn_DiscoveredWorkerReplacesWrapper(t *testing.T) {
	worker, _ := newWorker(t)
	starter := testutil.NewFakeStarter().On("claude", testutil.Result{NoStdin: true, PID: 77})
	disc := &fakeDiscoverer{workers: []*process.Child{nil, nil, worker}}
	cfg := testConfig()
	cfg.DiscoveryBudget = 5 * time.Second
	l := New(starter, nil, disc, cfg, nil)

	spec := process.LaunchSpec{Args: []string{"--x"}}
	child, err := l.Spawn(spec)
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if child != worker {
		t.Fatalf("Spawn() returned pid %d, want the discovered worker", child.PID)
	}
	if disc.calls() != 3 {
		t.Errorf("discovery called %d times, want 3", disc.calls())
	}
	for _, root := range disc.roots {
		if root != 77 {
			t.Errorf("discovery root = %d, want 77", root)
		}
	}
	if !reflect.DeepEqual(disc.specs[0].Args, spec.Args) {
		t.Errorf("discovery spec args = %v, want %v", disc.specs[0].Args, spec.Args)
	}
	if wrapper := starter.Processes()[0]; !wrapper.Killed() {
		t.Error("wrapper should be killed once the worker is found")
	}
}

func TestSpawn_NoWorkerFallsBackToShell(t *testing.T) {
	starter := testutil.NewFakeStarter().
		On("claude", testutil.Result{Detached: true}).
		On("sh", testutil.Result{})
	disc := &fakeDiscoverer{}
	l := New(starter, nil, disc, testConfig(), nil)

	start := time.Now()
	child, err := l.Spawn(process.LaunchSpec{Args: []string{"--model", "opus 4"}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("discovery polling took %v", elapsed)
	}
	if disc.calls() < 2 {
		t.Errorf("discovery called %d times, want polling", disc.calls())
	}
	if !child.HasAllPipes() {
		t.Error("shell launch should have all pipes")
	}

	if got, want := starter.Paths(), []string{"claude", "sh"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("started %v, want %v", got, want)
	}
	if !starter.Processes()[0].Killed() {
		t.Error("wrapper should be killed before the shell fallback")
	}
	shellCall := starter.Calls()[1]
	if want := []string{"-c", "claude --model 'opus 4'"}; !reflect.DeepEqual(shellCall.Args, want) {
		t.Errorf("shell args = %q, want %q", shellCall.Args, want)
	}
}

func TestSpawn_ZeroBudgetTriesDiscoveryOnce(t *testing.T) {
	starter := testutil.NewFakeStarter().
		On("claude", testutil.Result{Detached: true}).
		On("sh", testutil.Result{})
	disc := &fakeDiscoverer{}
	cfg := testConfig()
	cfg.DiscoveryBudget = 0
	l := New(starter, nil, disc, cfg, nil)

	if _, err := l.Spawn(process.LaunchSpec{}); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if disc.calls() != 1 {
		t.Errorf("discovery called %d times, want 1", disc.calls())
	}
}

func TestSpawn_ShellFallbackOrder(t *testing.T) {
	starter := testutil.NewFakeStarter().On("bash", testutil.Result{})
	l := New(starter, nil, nil, testConfig(), nil)

	if _, err := l.Spawn(process.LaunchSpec{Args: []string{"--version"}}); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if got, want := starter.Paths(), []string{"claude", "sh", "bash"}; !reflect.DeepEqual(got, want) {
		t.Errorf("started %v, want %v", got, want)
	}
}

func TestSpawn_Errors(t *testing.T) {
	tests := []struct {
		name      string
		starter   *testutil.FakeStarter
		shells    []string
		want      error
		kind      errors.SpawnKind
		stage     string
		wantPaths []string
	}{
		{
			name:      "not found anywhere",
			starter:   testutil.NewFakeStarter(),
			shells:    []string{"sh", "bash"},
			want:      errors.ErrExecutableNotFound,
			kind:      errors.SpawnNotFound,
			stage:     StageShell,
			wantPaths: []string{"claude", "sh", "bash"},
		},
		{
			name: "shells fail for another reason",
			starter: testutil.NewFakeStarter().
				On("sh", testutil.Result{Err: permissionDenied("sh")}).
				On("bash", testutil.Result{Err: permissionDenied("bash")}),
			shells:    []string{"sh", "bash"},
			want:      errors.ErrFallbacksExhausted,
			kind:      errors.SpawnAllFallbacksExhausted,
			stage:     StageShell,
			wantPaths: []string{"claude", "sh", "bash"},
		},
		{
			name:      "direct launch refused",
			starter:   testutil.NewFakeStarter().On("claude", testutil.Result{Err: permissionDenied("claude")}),
			shells:    []string{"sh", "bash"},
			want:      errors.ErrLaunchFailed,
			kind:      errors.SpawnLaunchFailed,
			stage:     StageDirect,
			wantPaths: []string{"claude"},
		},
		{
			name:      "only one alternate shell",
			starter:   testutil.NewFakeStarter(),
			shells:    []string{"sh", "bash", "zsh"},
			want:      errors.ErrExecutableNotFound,
			kind:      errors.SpawnNotFound,
			stage:     StageShell,
			wantPaths: []string{"claude", "sh", "bash"},
		},
		{
			name: "wrapper without worker and no shell",
			starter: testutil.NewFakeStarter().
				On("claude", testutil.Result{Detached: true}),
			shells:    []string{"sh", "bash"},
			want:      errors.ErrFallbacksExhausted,
			kind:      errors.SpawnAllFallbacksExhausted,
			stage:     StageShell,
			wantPaths: []string{"claude", "sh", "bash"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Shells = tt.shells
			l := New(tt.starter, nil, &fakeDiscoverer{}, cfg, nil)

			child, err := l.Spawn(process.LaunchSpec{})
			if err == nil {
				t.Fatalf("Spawn() = pid %d, want error", child.PID)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Spawn() error = %v, want %v", err, tt.want)
			}

			var spawnErr *errors.SpawnError
			if !errors.As(err, &spawnErr) {
				t.Fatalf("error %T is not a *SpawnError", err)
			}
			if spawnErr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", spawnErr.Kind, tt.kind)
			}
			if spawnErr.Stage != tt.stage {
				t.Errorf("Stage = %q, want %q", spawnErr.Stage, tt.stage)
			}
			if spawnErr.Executable != "claude" {
				t.Errorf("Executable = %q, want claude", spawnErr.Executable)
			}
			if got := tt.starter.Paths(); !reflect.DeepEqual(got, tt.wantPaths) {
				t.Errorf("started %v, want %v", got, tt.wantPaths)
			}
			for _, p := range tt.starter.Processes() {
				if !p.Killed() {
					t.Errorf("process %d left running", p.PID)
				}
			}
		})
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Launcher.Executable = ""
	cfg.Launcher.DefaultName = "claude-beta"
	cfg.Launcher.Shells = []string{"bash"}

	got := ConfigFrom(cfg)
	if got.DefaultExecutable != "claude-beta" {
		t.Errorf("DefaultExecutable = %q, want claude-beta", got.DefaultExecutable)
	}
	if !reflect.DeepEqual(got.Shells, []string{"bash"}) {
		t.Errorf("Shells = %v", got.Shells)
	}
	if got.DiscoveryBudget != cfg.Launcher.DiscoveryBudget() {
		t.Errorf("DiscoveryBudget = %v", got.DiscoveryBudget)
	}

	cfg.Launcher.Executable = "/usr/local/bin/claude"
	if got := ConfigFrom(cfg).DefaultExecutable; got != "/usr/local/bin/claude" {
		t.Errorf("DefaultExecutable = %q, want explicit executable", got)
	}
}

func TestSpawn_RealShellFallbackForScriptWithoutShebang(t *testing.T) {
	testutil.RequireShell(t)

	dir := t.TempDir()
	script := filepath.Join(dir, "claude")
	if err := os.WriteFile(script, []byte("echo \"shim:$1\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	l, err := NewFromConfig(config.Default(), nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	child, err := l.Spawn(process.LaunchSpec{Executable: script, Args: []string{"two words"}})
	if err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	defer process.Discard(child, logging.NopLogger())

	line, _ := bufio.NewReader(child.Stdout).ReadString('\n')
	if strings.TrimSpace(line) != "shim:two words" {
		t.Errorf("stdout = %q, want %q", line, "shim:two words\n")
	}
}
