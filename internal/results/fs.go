package results

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS stores result documents as files in a single directory.
type FS struct {
	dir string
}

func NewFS(dir string) *FS {
	return &FS{dir: dir}
}

func (s *FS) Save(_ context.Context, filename string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func (s *FS) FindLatest(_ context.Context, meeting, coderID string) ([]byte, error) {
	pattern := filepath.Join(s.dir, fmt.Sprintf("decisions_%s_%s_*.json", meeting, coderID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob results: %w", err)
	}
	var (
		latest     string
		latestInfo fs.FileInfo
	)
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if latestInfo == nil || info.ModTime().After(latestInfo.ModTime()) {
			latest, latestInfo = match, info
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, meeting, coderID)
	}
	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return data, nil
}

func (s *FS) List(_ context.Context, coderID string) ([]FileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "decisions_*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob results: %w", err)
	}
	items := make([]FileInfo, 0, len(matches))
	for _, match := range matches {
		name := filepath.Base(match)
		info, ok := ParseFilename(name)
		if !ok {
			continue
		}
		if coderID != "" && info.CoderID != coderID {
			continue
		}
		stat, err := os.Stat(match)
		if err != nil {
			continue
		}
		info.ModifiedAt = stat.ModTime()
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ModifiedAt.After(items[j].ModifiedAt) })
	return items, nil
}

// ParseFilename recovers the meeting and coder from a result filename
// (decisions_<meeting>_<coder>_<ts>.json).
func ParseFilename(name string) (FileInfo, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 4 || parts[0] != "decisions" {
		return FileInfo{}, false
	}
	return FileInfo{
		Filename:    name,
		MeetingDate: parts[1],
		CoderID:     parts[2],
	}, true
}
