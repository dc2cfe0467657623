package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed line of debug.log.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	SessionID string
	RunID     uint64
	Component string
	Attrs     map[string]any
}

// Filter selects entries. Zero-valued fields match everything.
type Filter struct {
	// MinLevel keeps entries at or above this level.
	MinLevel  string
	SessionID string
	RunID     uint64
	Component string
	Contains  string
}

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadDebugLog parses {logDir}/debug.log. Malformed lines are skipped.
// Entries come back ordered by time.
func ReadDebugLog(logDir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(logDir, DebugLogName))
	if err != nil {
		return nil, fmt.Errorf("open debug log: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := ParseEntries(f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time.Before(entries[j].Time)
	})
	return entries, nil
}

// ParseEntries reads JSON log lines from r in input order.
func ParseEntries(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []Entry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if e, ok := parseEntry(line); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read debug log: %w", err)
	}
	return entries, nil
}

func parseEntry(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}

	e := Entry{Attrs: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "time":
			if s, ok := v.(string); ok {
				e.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		case "level":
			e.Level, _ = v.(string)
		case "msg":
			e.Message, _ = v.(string)
		case "session_id":
			e.SessionID, _ = v.(string)
		case "component":
			e.Component, _ = v.(string)
		case "run_id":
			if n, ok := v.(float64); ok {
				e.RunID = uint64(n)
			}
		default:
			e.Attrs[k] = v
		}
	}
	return e, true
}

// Apply returns the entries that match every populated field of f.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f Filter) matches(e Entry) bool {
	if f.MinLevel != "" && levelRank[ParseLevel(e.Level)] < levelRank[ParseLevel(f.MinLevel)] {
		return false
	}
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.RunID != 0 && e.RunID != f.RunID {
		return false
	}
	if f.Component != "" && e.Component != f.Component {
		return false
	}
	if f.Contains != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.Contains)) {
		return false
	}
	return true
}

// Format renders e as a single human-readable line.
func (e Entry) Format() string {
	var b strings.Builder
	b.WriteString(e.Time.Format("15:04:05.000"))
	fmt.Fprintf(&b, " %-5s", e.Level)
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}
