// Package stacktrace trims runtime stacks down to this module's frames.
package stacktrace

import "strings"

const marker = "/internal/"

// InternalPaths extracts "internal/<pkg>/<file>.go:<line>" locations from a
// debug.Stack dump. Frames outside an internal/ tree are dropped.
func InternalPaths(stack []byte) []string {
	var paths []string

	for _, line := range strings.Split(string(stack), "\n") {
		line = strings.TrimSpace(line)

		idx := strings.Index(line, marker)
		if idx < 0 || !strings.Contains(line, ".go:") {
			continue
		}

		loc := line[idx+1:]
		if sp := strings.IndexByte(loc, ' '); sp >= 0 {
			loc = loc[:sp]
		}
		paths = append(paths, loc)
	}

	return paths
}
