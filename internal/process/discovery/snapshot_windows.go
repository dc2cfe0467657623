//go:build windows

package discovery

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

func platformSnapshotter() Snapshotter {
	return Toolhelp{}
}

// Toolhelp snapshots the process table with CreateToolhelp32Snapshot.
// Command lines of other processes are not exposed there, so each row
// carries the quoted image path instead.
type Toolhelp struct{}

// Snapshot implements Snapshotter.
func (Toolhelp) Snapshot() ([]ProcessInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("Process32First: %w", err)
	}

	var procs []ProcessInfo
	for {
		image := imagePath(entry.ProcessID)
		if image == "" {
			image = windows.UTF16ToString(entry.ExeFile[:])
		}
		procs = append(procs, ProcessInfo{
			PID:         int(entry.ProcessID),
			PPID:        int(entry.ParentProcessID),
			CommandLine: `"` + image + `"`,
		})

		if err := windows.Process32Next(snap, &entry); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return nil, fmt.Errorf("Process32Next: %w", err)
		}
	}
	return procs, nil
}

const maxImagePath = 32768

func imagePath(pid uint32) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, maxImagePath)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}
