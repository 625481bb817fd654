// Package execfind locates provider CLIs across inconsistently
// configured shell environments. GUI-launched and service processes
// inherit a minimal PATH, so the lookup chain layers an explicit
// override, the captured login-shell PATH, the process PATH, and a
// fixed fallback list of standard install locations.
package execfind

import (
	"os"
	"path/filepath"
)

// fallbackDirs are tried last, in order, when neither PATH variant
// contains the tool.
var fallbackDirs = []string{
	"/usr/local/bin",
	"/opt/homebrew/bin",
	"/usr/bin",
	"/bin",
}

// Resolve returns the absolute path of the first executable candidate
// for tool, or "" when nothing on the chain is executable.
//
// Order: the overrideEnvVar value in env (accepted only if it is itself
// executable), then each shellPath entry, then each entry of the
// process PATH from env, then the fixed fallback directories plus
// homeDir/.local/bin and homeDir/bin. Results are not cached here;
// callers decide whether to remember them.
func Resolve(tool, overrideEnvVar string, env map[string]string, shellPath []string, homeDir string) string {
	if overrideEnvVar != "" {
		if override := env[overrideEnvVar]; override != "" && isExecutable(override) {
			return override
		}
	}

	for _, dir := range shellPath {
		if dir == "" {
			continue
		}
		if candidate := filepath.Join(dir, tool); isExecutable(candidate) {
			return candidate
		}
	}

	for _, dir := range filepath.SplitList(env["PATH"]) {
		if dir == "" {
			continue
		}
		if candidate := filepath.Join(dir, tool); isExecutable(candidate) {
			return candidate
		}
	}

	dirs := fallbackDirs
	if homeDir != "" {
		dirs = append(append([]string{}, dirs...),
			filepath.Join(homeDir, ".local", "bin"),
			filepath.Join(homeDir, "bin"),
		)
	}
	for _, dir := range dirs {
		if candidate := filepath.Join(dir, tool); isExecutable(candidate) {
			return candidate
		}
	}

	return ""
}

// Environ converts the process environment into the map form Resolve
// expects.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}
