// Package diskspace reports free space on the storage filesystem so the
// sync orchestrator can refuse to start a drain it can't fit on disk.
package diskspace

// FreeMB returns free megabytes available at path.
func FreeMB(path string) (float64, error) {
	b, err := FreeBytes(path)
	if err != nil {
		return 0, err
	}
	return float64(b) / (1024 * 1024), nil
}
