package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoArtifact is returned when no finished file matches a download.
var ErrNoArtifact = errors.New("no artifact found")

// leftover suffixes of an unfinished or intermediate download
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// ResolveArtifact finds the finished file for a download written as
// <dir>/<base>.<ext>. The expected extension wins; otherwise the newest
// sibling that is not a partial leftover is returned.
func ResolveArtifact(dir, base, targetExt string) (string, error) {
	if targetExt != "" {
		want := filepath.Join(dir, base+"."+targetExt)
		if info, err := os.Stat(want); err == nil && info.Mode().IsRegular() {
			return want, nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var (
		best    string
		bestMod int64
	)
	prefix := base + "."
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || isPartial(name) {
			continue
		}
		// "<base>.f137.mp4" style intermediates from a merge
		if strings.Contains(strings.TrimPrefix(name, prefix), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); best == "" || mod > bestMod {
			best, bestMod = filepath.Join(dir, name), mod
		}
	}
	if best == "" {
		return "", ErrNoArtifact
	}
	return best, nil
}

func isPartial(name string) bool {
	for _, s := range partialSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
