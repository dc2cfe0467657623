//go:build unix

package discovery

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func platformSnapshotter() Snapshotter {
	return PS{}
}

// PS snapshots the process table with ps(1).
type PS struct{}

// Snapshot implements Snapshotter.
func (PS) Snapshot() ([]ProcessInfo, error) {
	out, err := exec.Command("ps", "-eo", "pid=,ppid=,args=").Output()
	if err != nil {
		return nil, fmt.Errorf("ps: %w", err)
	}
	return parsePS(string(out)), nil
}

func parsePS(out string) []ProcessInfo {
	var procs []ProcessInfo
	for _, line := range strings.Split(out, "\n") {
		pidField, rest, ok := cutField(line)
		if !ok {
			continue
		}
		ppidField, args, _ := cutField(rest)

		pid, err1 := strconv.Atoi(pidField)
		ppid, err2 := strconv.Atoi(ppidField)
		if err1 != nil || err2 != nil {
			continue
		}
		procs = append(procs, ProcessInfo{PID: pid, PPID: ppid, CommandLine: strings.TrimSpace(args)})
	}
	return procs
}

// cutField splits off the first whitespace-separated field.
func cutField(s string) (field, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", false
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], s[i:], true
	}
	return s, "", true
}
