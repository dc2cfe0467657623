package discovery

import (
	"reflect"
	"testing"

	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/process"
	"github.com/Iron-Ham/claudelink/internal/testutil"
)

type fakeSnapshot struct {
	procs []ProcessInfo
	err   error
	calls int
}

func (f *fakeSnapshot) Snapshot() ([]ProcessInfo, error) {
	f.calls++
	return f.procs, f.err
}

func pids(procs []ProcessInfo) []int {
	var out []int
	for _, p := range procs {
		out = append(out, p.PID)
	}
	return out
}

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher([]string{"node", "bun", "deno"}, []string{"*.exe", "claude"})
	if err != nil {
		t.Fatalf("NewMatcher() error = %v", err)
	}
	return m
}

func TestDescendants(t *testing.T) {
	procs := []ProcessInfo{
		{PID: 1, PPID: 0},
		{PID: 10, PPID: 1},
		{PID: 11, PPID: 10},
		{PID: 12, PPID: 10},
		{PID: 13, PPID: 11},
		{PID: 20, PPID: 1},
		{PID: 30, PPID: 30},
	}

	tests := []struct {
		name string
		root int
		want []int
	}{
		{"breadth first", 10, []int{11, 12, 13}},
		{"leaf", 13, nil},
		{"unknown root", 99, nil},
		{"self parent ignored", 30, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pids(Descendants(procs, tt.root)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Descendants(%d) = %v, want %v", tt.root, got, tt.want)
			}
		})
	}
}

func TestDescendants_Cycle(t *testing.T) {
	procs := []ProcessInfo{
		{PID: 2, PPID: 1},
		{PID: 3, PPID: 2},
		{PID: 1, PPID: 3},
	}
	got := pids(Descendants(procs, 1))
	if want := []int{2, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("Descendants() = %v, want %v", got, want)
	}
}

func TestMatcher_Candidates(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name string
		line string
		want []Candidate
	}{
		{
			name: "interpreter with script",
			line: "node /x/cli.js --verbose",
			want: []Candidate{{Program: "node", Script: "/x/cli.js"}},
		},
		{
			name: "interpreter by path",
			line: `"C:\Program Files\nodejs\node.exe" "C:\npm\cli.js"`,
			want: []Candidate{{Program: `C:\Program Files\nodejs\node.exe`, Script: `C:\npm\cli.js`}},
		},
		{
			name: "interpreter followed by flag",
			line: "node --inspect",
			want: nil,
		},
		{
			name: "bare interpreter",
			line: "bun",
			want: nil,
		},
		{
			name: "windows image path of an interpreter",
			line: `"C:\Program Files\nodejs\node.exe"`,
			want: nil,
		},
		{
			name: "executable pattern",
			line: `"C:\tools\Claude.EXE" --print`,
			want: []Candidate{{Program: `C:\tools\Claude.EXE`}},
		},
		{
			name: "base name pattern",
			line: "/usr/local/bin/claude --resume",
			want: []Candidate{{Program: "/usr/local/bin/claude"}},
		},
		{
			name: "no match",
			line: "/bin/sh -c true",
			want: nil,
		},
		{
			name: "several in order",
			line: "wrapper.exe node main.js",
			want: []Candidate{{Program: "wrapper.exe"}, {Program: "node", Script: "main.js"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Candidates(ProcessInfo{PID: 1, CommandLine: tt.line})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Candidates(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}

func TestMatcher_Nil(t *testing.T) {
	var m *Matcher
	if got := m.Candidates(ProcessInfo{CommandLine: "node a.js"}); got != nil {
		t.Errorf("nil Matcher Candidates() = %v, want nil", got)
	}
}

func TestNewMatcher_BadPattern(t *testing.T) {
	if _, err := NewMatcher(nil, []string{"["}); err == nil {
		t.Error("NewMatcher() should reject an unterminated class")
	}
}

func TestCandidate_Args(t *testing.T) {
	user := []string{"--model", "opus"}

	if got := (Candidate{Program: "claude.exe"}).Args(user); !reflect.DeepEqual(got, user) {
		t.Errorf("Args() = %v, want %v", got, user)
	}
	got := (Candidate{Program: "node", Script: "cli.js"}).Args(user)
	if want := []string{"cli.js", "--model", "opus"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
	if len(user) != 2 {
		t.Errorf("Args() modified the caller's slice: %v", user)
	}
}

func TestTreeDiscoverer_DiscoverSpawnable(t *testing.T) {
	snap := &fakeSnapshot{procs: []ProcessInfo{
		{PID: 100, PPID: 1, CommandLine: "wrapper"},
		{PID: 101, PPID: 100, CommandLine: `C:\bin\stub.exe --child`},
		{PID: 102, PPID: 100, CommandLine: `node C:\npm\cli.js`},
		{PID: 103, PPID: 102, CommandLine: `node C:\npm\cli.js`},
	}}
	starter := testutil.NewFakeStarter().
		On(`C:\bin\stub.exe`, testutil.Result{Detached: true}).
		On("node", testutil.Result{})

	d := NewWithSnapshotter(snap, newTestMatcher(t), starter, nil)
	spec := process.LaunchSpec{
		Executable: "claude",
		Args:       []string{"--resume"},
		Env:        map[string]string{"CLAUDELINK_TEST": "1"},
		WorkingDir: "/work",
	}

	child, ok := d.DiscoverSpawnable(100, spec)
	if !ok {
		t.Fatal("DiscoverSpawnable() found nothing")
	}
	if !child.HasAllPipes() {
		t.Error("discovered child should have all pipes")
	}
	if child.Program != "node" {
		t.Errorf("Program = %q, want node", child.Program)
	}

	// stub.exe comes up detached and is rejected before node is tried.
	if got, want := starter.Paths(), []string{`C:\bin\stub.exe`, "node"}; !reflect.DeepEqual(got, want) {
		t.Errorf("started %v, want %v", got, want)
	}
	if !starter.Processes()[0].Killed() {
		t.Error("rejected candidate should be killed")
	}

	call := starter.Calls()[1]
	if want := []string{`C:\npm\cli.js`, "--resume"}; !reflect.DeepEqual(call.Args, want) {
		t.Errorf("Args = %v, want %v", call.Args, want)
	}
	if call.Dir != "/work" {
		t.Errorf("Dir = %q, want /work", call.Dir)
	}
	found := false
	for _, kv := range call.Env {
		if kv == "CLAUDELINK_TEST=1" {
			found = true
		}
	}
	if !found {
		t.Error("environment override not passed to candidate")
	}
}

func TestTreeDiscoverer_DiscoverSpawnable_None(t *testing.T) {
	tests := []struct {
		name    string
		snap    *fakeSnapshot
		starter *testutil.FakeStarter
	}{
		{
			name:    "snapshot error",
			snap:    &fakeSnapshot{err: errors.ErrDiscoveryUnsupported},
			starter: testutil.NewFakeStarter(),
		},
		{
			name:    "no descendants",
			snap:    &fakeSnapshot{procs: []ProcessInfo{{PID: 5, PPID: 1, CommandLine: "node a.js"}}},
			starter: testutil.NewFakeStarter(),
		},
		{
			name:    "candidates fail to start",
			snap:    &fakeSnapshot{procs: []ProcessInfo{{PID: 5, PPID: 100, CommandLine: "node a.js"}}},
			starter: testutil.NewFakeStarter(),
		},
		{
			name:    "candidates lack pipes",
			snap:    &fakeSnapshot{procs: []ProcessInfo{{PID: 5, PPID: 100, CommandLine: "node a.js"}}},
			starter: testutil.NewFakeStarter().On("node", testutil.Result{NoStdin: true}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewWithSnapshotter(tt.snap, newTestMatcher(t), tt.starter, nil)
			child, ok := d.DiscoverSpawnable(100, process.LaunchSpec{Executable: "claude"})
			if ok || child != nil {
				t.Fatalf("DiscoverSpawnable() = %v, %v; want nil, false", child, ok)
			}
			for _, p := range tt.starter.Processes() {
				if !p.Killed() {
					t.Errorf("process %d left running", p.PID)
				}
			}
		})
	}
}

func TestTreeDiscoverer_Discover(t *testing.T) {
	tests := []struct {
		name   string
		procs  []ProcessInfo
		want   int
		wantOK bool
	}{
		{
			name: "prefers candidate",
			procs: []ProcessInfo{
				{PID: 11, PPID: 10, CommandLine: "conhost"},
				{PID: 12, PPID: 11, CommandLine: "node cli.js"},
			},
			want:   12,
			wantOK: true,
		},
		{
			name:   "first descendant otherwise",
			procs:  []ProcessInfo{{PID: 11, PPID: 10, CommandLine: "conhost"}, {PID: 12, PPID: 10, CommandLine: "sleep"}},
			want:   11,
			wantOK: true,
		},
		{
			name:  "nothing below root",
			procs: []ProcessInfo{{PID: 11, PPID: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewWithSnapshotter(&fakeSnapshot{procs: tt.procs}, newTestMatcher(t), testutil.NewFakeStarter(), nil)
			got, ok := d.Discover(10)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Discover(10) = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestUnsupported(t *testing.T) {
	if _, err := (Unsupported{}).Snapshot(); !errors.Is(err, errors.ErrDiscoveryUnsupported) {
		t.Errorf("Snapshot() error = %v, want ErrDiscoveryUnsupported", err)
	}
}
