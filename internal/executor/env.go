// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"maps"
	"os"
	"path"
	"slices"
	"strings"
)

// alwaysPassed are process variables every environment receives without
// being listed in pass_env; commands could not locate binaries or write
// scratch files without them.
var alwaysPassed = []string{"PATH", "HOME", "TMPDIR", "TEMP", "TMP", "LANG", "LC_ALL"}

// ComposeEnv builds the final variable mapping for command execution:
// pass-through variables first, then resolved set_env definitions, then
// exported built-ins, which always win. For isolated environments binDir
// is prepended to PATH so installed executables resolve first.
func ComposeEnv(passEnv []string, setEnv, exports map[string]string, binDir string) map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if slices.Contains(alwaysPassed, name) || matchesAny(passEnv, name) {
			env[name] = value
		}
	}

	maps.Copy(env, setEnv)
	maps.Copy(env, exports)

	if binDir != "" {
		if current, ok := env["PATH"]; ok && current != "" {
			env["PATH"] = binDir + string(os.PathListSeparator) + current
		} else {
			env["PATH"] = binDir
		}
	}

	return env
}

// PassEnvLookup returns a lookup for {env:NAME} references gated by the
// pass-through allowlist: variables outside it read as undefined.
func PassEnvLookup(passEnv []string) func(name string) (string, bool) {
	return func(name string) (string, bool) {
		if !slices.Contains(alwaysPassed, name) && !matchesAny(passEnv, name) {
			return "", false
		}
		return os.LookupEnv(name)
	}
}

// matchesAny reports whether name matches any pass_env entry; entries may
// be exact names or glob patterns like "CI_*".
func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// EnvToSlice converts a variable mapping to the KEY=VALUE form the
// os/exec API expects, in deterministic order.
func EnvToSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		out = append(out, k+"="+env[k])
	}
	return out
}
