// Package discovery finds the real worker behind a wrapper process. It
// snapshots the OS process table, walks the subtree under the wrapper, picks
// re-spawnable candidates from each descendant's command line and test-starts
// them with pipes attached.
//
// Discovery keeps no state between calls; polling belongs to the launcher.
package discovery

import (
	"github.com/Iron-Ham/claudelink/internal/errors"
	"github.com/Iron-Ham/claudelink/internal/logging"
	"github.com/Iron-Ham/claudelink/internal/process"
)

// Discoverer locates workers below a root process.
type Discoverer interface {
	// Discover returns the pid of the most likely worker under rootPID.
	Discover(rootPID int) (int, bool)
	// DiscoverSpawnable starts candidates from the subtree with spec's
	// arguments and environment until one comes up with all three pipes.
	DiscoverSpawnable(rootPID int, spec process.LaunchSpec) (*process.Child, bool)
}

// Snapshotter lists every process on the system.
type Snapshotter interface {
	Snapshot() ([]ProcessInfo, error)
}

// ProcessInfo is one row of a process table snapshot.
type ProcessInfo struct {
	PID  int
	PPID int
	// CommandLine is the full command line where the platform exposes it,
	// otherwise the quoted image path.
	CommandLine string
}

// TreeDiscoverer implements Discoverer over a Snapshotter.
type TreeDiscoverer struct {
	snap    Snapshotter
	starter process.Starter
	matcher *Matcher
	logger  *logging.Logger
}

// New returns a TreeDiscoverer using the platform snapshotter.
func New(matcher *Matcher, starter process.Starter, logger *logging.Logger) *TreeDiscoverer {
	return NewWithSnapshotter(platformSnapshotter(), matcher, starter, logger)
}

// NewWithSnapshotter returns a TreeDiscoverer reading processes from snap.
func NewWithSnapshotter(snap Snapshotter, matcher *Matcher, starter process.Starter, logger *logging.Logger) *TreeDiscoverer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &TreeDiscoverer{
		snap:    snap,
		starter: starter,
		matcher: matcher,
		logger:  logger.WithComponent("discovery"),
	}
}

// Discover implements Discoverer. A descendant with a candidate on its
// command line is preferred over the first descendant found.
func (d *TreeDiscoverer) Discover(rootPID int) (int, bool) {
	desc, err := d.descendants(rootPID)
	if err != nil || len(desc) == 0 {
		d.logNone(rootPID, err)
		return 0, false
	}
	for _, p := range desc {
		if len(d.matcher.Candidates(p)) > 0 {
			return p.PID, true
		}
	}
	return desc[0].PID, true
}

// DiscoverSpawnable implements Discoverer. Rejected test processes are
// killed and reaped before the next candidate is tried.
func (d *TreeDiscoverer) DiscoverSpawnable(rootPID int, spec process.LaunchSpec) (*process.Child, bool) {
	desc, err := d.descendants(rootPID)
	if err != nil || len(desc) == 0 {
		d.logNone(rootPID, err)
		return nil, false
	}

	env := spec.Environ()
	seen := make(map[string]bool)
	for _, p := range desc {
		for _, c := range d.matcher.Candidates(p) {
			key := c.Program + "\x00" + c.Script
			if seen[key] {
				continue
			}
			seen[key] = true

			child, err := d.starter.Start(process.Command{
				Path: c.Program,
				Args: c.Args(spec.Args),
				Env:  env,
				Dir:  spec.WorkingDir,
			})
			if err != nil {
				d.logger.Debug("candidate failed to start", "root_pid", rootPID, "source_pid", p.PID, "program", c.Program, "error", err.Error())
				continue
			}
			if child.HasAllPipes() {
				d.logger.Info("worker candidate attached", "root_pid", rootPID, "source_pid", p.PID, "program", c.Program, "pid", child.PID)
				return child, true
			}
			d.logger.Debug("candidate missing pipes", "program", c.Program, "pid", child.PID)
			process.Discard(child, d.logger)
		}
	}

	d.logNone(rootPID, errors.ErrNoWorker)
	return nil, false
}

func (d *TreeDiscoverer) descendants(rootPID int) ([]ProcessInfo, error) {
	procs, err := d.snap.Snapshot()
	if err != nil {
		return nil, err
	}
	return Descendants(procs, rootPID), nil
}

func (d *TreeDiscoverer) logNone(rootPID int, cause error) {
	if cause == nil {
		cause = errors.ErrNoWorker
	}
	d.logger.Debug("no worker discovered", "error", errors.NewDiscoveryError(rootPID, cause).Error())
}

// Descendants returns every process below root in breadth-first order,
// nearest first. Cycles from pid reuse are ignored.
func Descendants(procs []ProcessInfo, root int) []ProcessInfo {
	children := make(map[int][]ProcessInfo)
	for _, p := range procs {
		if p.PID == p.PPID {
			continue
		}
		children[p.PPID] = append(children[p.PPID], p)
	}

	var out []ProcessInfo
	visited := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, c := range children[pid] {
			if visited[c.PID] {
				continue
			}
			visited[c.PID] = true
			out = append(out, c)
			queue = append(queue, c.PID)
		}
	}
	return out
}

// Unsupported is the Snapshotter for platforms without process-tree access.
type Unsupported struct{}

// Snapshot implements Snapshotter.
func (Unsupported) Snapshot() ([]ProcessInfo, error) {
	return nil, errors.ErrDiscoveryUnsupported
}
