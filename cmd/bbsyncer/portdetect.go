package main

import (
	"path/filepath"
	"sort"
)

// autoDetectPort returns the first /dev/ttyACM* device found, or "" if
// none exist, matching the Python original's auto_detect_port.
func autoDetectPort() string {
	matches, err := filepath.Glob("/dev/ttyACM*")
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[0]
}
