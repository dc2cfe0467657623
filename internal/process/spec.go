package process

import (
	"maps"
	"os"
	"runtime"
	"slices"
	"sort"
	"strings"
)

// LaunchSpec describes one start request. The launcher treats it as
// immutable and works on a Clone.
type LaunchSpec struct {
	// Executable is a path or bare name. Empty means the configured default.
	Executable string
	Args       []string
	// Env entries override the inherited environment.
	Env        map[string]string
	WorkingDir string
	// Visible launches in a console of its own with no pipes attached.
	Visible bool
}

// Clone returns a deep copy of s.
func (s LaunchSpec) Clone() LaunchSpec {
	s.Args = slices.Clone(s.Args)
	s.Env = maps.Clone(s.Env)
	return s
}

// Environ returns the inherited environment with s.Env merged over it,
// sorted by key. Keys compare case-insensitively on Windows.
func (s LaunchSpec) Environ() []string {
	return mergeEnv(os.Environ(), s.Env, runtime.GOOS == "windows")
}

func mergeEnv(base []string, overrides map[string]string, foldCase bool) []string {
	type kv struct{ key, value string }
	merged := make(map[string]kv, len(base)+len(overrides))

	norm := func(k string) string {
		if foldCase {
			return strings.ToUpper(k)
		}
		return k
	}

	for _, entry := range base {
		// Windows carries per-drive entries such as "=C:=C:\"; keep them intact.
		idx := strings.Index(entry[min(1, len(entry)):], "=")
		if idx < 0 {
			continue
		}
		idx += min(1, len(entry))
		k := entry[:idx]
		merged[norm(k)] = kv{k, entry[idx+1:]}
	}
	for k, v := range overrides {
		if k == "" {
			continue
		}
		merged[norm(k)] = kv{k, v}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		e := merged[k]
		env = append(env, e.key+"="+e.value)
	}
	return env
}
