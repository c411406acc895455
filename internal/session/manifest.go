// Package session manages the on-disk layout of synced flash dumps: one
// timestamped directory per sync, holding raw_flash.bbl and manifest.json.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/kstaniek/bbsyncer/internal/fcdetect"
)

// sessionDirPattern mirrors the Python original's
// datetime.now().strftime('%Y-%m-%d_%H%M%S').
const sessionDirPattern = "%Y-%m-%d_%H%M%S"

const (
	ManifestFilename = "manifest.json"
	RawFlashFilename = "raw_flash.bbl"
)

// FCManifest is the "fc" block of manifest.json.
type FCManifest struct {
	Variant        string `json:"variant"`
	UID            string `json:"uid"`
	APIVersion     string `json:"api_version"`
	BlackboxDevice byte   `json:"blackbox_device"`
}

// FileManifest is the "file" block of manifest.json.
type FileManifest struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// Manifest is the full on-disk manifest.json schema.
type Manifest struct {
	Version        int          `json:"version"`
	CreatedUTC     string       `json:"created_utc"`
	FC             FCManifest   `json:"fc"`
	File           FileManifest `json:"file"`
	EraseAttempted bool         `json:"erase_attempted"`
	EraseCompleted bool         `json:"erase_completed"`
}

// Session is one synced flash dump as surfaced by ListSessions.
type Session struct {
	SessionID  string // "fc_BTFL_uid-xxxxxxxx/2026-07-31_120000"
	FCDir      string
	SessionDir string
	Path       string
	BBLPath    string // empty if raw_flash.bbl is missing
	Manifest   Manifest
}

// MakeSessionDir creates and returns a new timestamped directory under
// storageRoot for the given FC, in the layout
// <storageRoot>/fc_BTFL_uid-<uid8>/<YYYY-MM-DD_HHMMSS>/. If two syncs
// start within the same wall-clock second, a numeric suffix is appended
// so the directory is always unique.
func MakeSessionDir(storageRoot string, fc fcdetect.Info, now time.Time) (string, error) {
	uidShort := fc.UID
	if uidShort != "unknown" && len(uidShort) > 8 {
		uidShort = uidShort[:8]
	}
	fcDir := filepath.Join(storageRoot, fmt.Sprintf("fc_BTFL_uid-%s", uidShort))
	base, err := strftime.Format(sessionDirPattern, now)
	if err != nil {
		return "", fmt.Errorf("session: format timestamp: %w", err)
	}

	dir := filepath.Join(fcDir, base)
	for n := 2; ; n++ {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			break
		}
		dir = filepath.Join(fcDir, fmt.Sprintf("%s_%d", base, n))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteManifest writes manifest.json to sessionDir via write-tmp-fsync-
// rename, so a reader never observes a partially written file.
func WriteManifest(sessionDir string, fc fcdetect.Info, sha256Hex string, usedSize int64, eraseAttempted, eraseCompleted bool, now time.Time) error {
	m := Manifest{
		Version:    1,
		CreatedUTC: now.UTC().Format(time.RFC3339),
		FC: FCManifest{
			Variant:        fc.Variant,
			UID:            fc.UID,
			APIVersion:     fmt.Sprintf("%d.%d", fc.APIMajor, fc.APIMinor),
			BlackboxDevice: fc.BlackboxDevice,
		},
		File: FileManifest{
			Name:   RawFlashFilename,
			SHA256: sha256Hex,
			Bytes:  usedSize,
		},
		EraseAttempted: eraseAttempted,
		EraseCompleted: eraseCompleted,
	}
	return writeManifestAtomic(sessionDir, m)
}

// UpdateManifestErase reads the existing manifest, sets
// erase_attempted=true and erase_completed=<arg>, and rewrites it
// atomically. Failure is logged by the caller, not propagated as fatal —
// callers that can't afford to fail should ignore the returned error
// after logging it.
func UpdateManifestErase(sessionDir string, eraseCompleted bool) error {
	path := filepath.Join(sessionDir, ManifestFilename)
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	m.EraseAttempted = true
	m.EraseCompleted = eraseCompleted
	return writeManifestAtomic(sessionDir, m)
}

func writeManifestAtomic(sessionDir string, m Manifest) error {
	path := filepath.Join(sessionDir, ManifestFilename)
	tmp := path + ".tmp"

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ListSessions enumerates fc_*/timestamp/manifest.json under storageRoot,
// skipping directories without a manifest or with invalid JSON, and
// returns sessions newest-first within each FC grouping.
func ListSessions(storageRoot string) ([]Session, error) {
	fcDirs, err := os.ReadDir(storageRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(fcDirs, func(i, j int) bool { return fcDirs[i].Name() < fcDirs[j].Name() })

	var sessions []Session
	for _, fcDir := range fcDirs {
		if !fcDir.IsDir() {
			continue
		}
		fcPath := filepath.Join(storageRoot, fcDir.Name())
		sessionDirs, err := os.ReadDir(fcPath)
		if err != nil {
			continue
		}
		sort.Slice(sessionDirs, func(i, j int) bool { return sessionDirs[i].Name() > sessionDirs[j].Name() })

		for _, sd := range sessionDirs {
			if !sd.IsDir() {
				continue
			}
			sessionPath := filepath.Join(fcPath, sd.Name())
			manifestPath := filepath.Join(sessionPath, ManifestFilename)
			raw, err := os.ReadFile(manifestPath)
			if err != nil {
				continue
			}
			var m Manifest
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			bblPath := filepath.Join(sessionPath, RawFlashFilename)
			if _, err := os.Stat(bblPath); err != nil {
				bblPath = ""
			}
			sessions = append(sessions, Session{
				SessionID:  fcDir.Name() + "/" + sd.Name(),
				FCDir:      fcDir.Name(),
				SessionDir: sd.Name(),
				Path:       sessionPath,
				BBLPath:    bblPath,
				Manifest:   m,
			})
		}
	}
	return sessions, nil
}
