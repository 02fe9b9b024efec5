// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package plugin

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// Candidate is a file that may be a plugin. Whether it really is one is
// only known after loading it.
type Candidate struct {
	Path string
	Dir  string
	// Name is the file name without its extension.
	Name string
}

// Scanner enumerates plugin candidates in an ordered list of directories.
type Scanner struct {
	dirs     []string
	patterns []string
	skip     []glob.Glob
}

// ScannerOption configures the Scanner.
type ScannerOption func(*Scanner)

// WithSkip excludes candidates whose path or file name matches one of the
// glob patterns.
func WithSkip(patterns ...string) ScannerOption {
	return func(s *Scanner) {
		s.patterns = append(s.patterns, patterns...)
	}
}

// NewScanner creates a scanner over dirs. Repeated directories are
// searched once, at their first position.
func NewScanner(dirs []string, opts ...ScannerOption) (*Scanner, error) {
	s := &Scanner{}
	seen := make(map[string]bool, len(dirs))
	for _, dir := range dirs {
		clean := filepath.Clean(dir)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		s.dirs = append(s.dirs, clean)
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, pattern := range s.patterns {
		g, err := glob.Compile(pattern, filepath.Separator)
		if err != nil {
			return nil, oops.With("pattern", pattern).Wrapf(err, "compile skip pattern")
		}
		s.skip = append(s.skip, g)
	}
	return s, nil
}

// Dirs returns the de-duplicated search directories in order.
func (s *Scanner) Dirs() []string {
	return append([]string(nil), s.dirs...)
}

// Scan lists every regular file in the search directories, directory by
// directory in search order and by name within a directory. Unreadable
// directories are logged and skipped.
func (s *Scanner) Scan(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate
	for _, dir := range s.dirs {
		if err := ctx.Err(); err != nil {
			return nil, oops.With("dir", dir).Wrap(err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("plugin directory does not exist", "dir", dir)
				continue
			}
			slog.Warn("skipping unreadable plugin directory",
				"dir", dir,
				"error", err)
			continue
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if !isRegular(entry, path) {
				continue
			}
			if s.skipped(path) {
				slog.Debug("skipping plugin", "path", path)
				continue
			}
			candidates = append(candidates, Candidate{
				Path: path,
				Dir:  dir,
				Name: strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			})
		}
	}
	return candidates, nil
}

// Resolve maps a plugin reference to a path. A reference containing a path
// separator is returned as is; anything else is looked up by candidate name
// or file name, first match in search order.
func (s *Scanner) Resolve(ctx context.Context, ref string) (string, error) {
	if strings.ContainsRune(ref, filepath.Separator) {
		return ref, nil
	}
	candidates, err := s.Scan(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if c.Name == ref || filepath.Base(c.Path) == ref {
			return c.Path, nil
		}
	}
	return "", oops.Code(frei0r.CodeLoad).
		With("plugin", ref).
		With("dirs", s.dirs).
		Hint("set FREI0R_PATH or use an absolute path").
		Errorf("plugin %q not found in search path", ref)
}

func (s *Scanner) skipped(path string) bool {
	base := filepath.Base(path)
	for _, g := range s.skip {
		if g.Match(path) || g.Match(base) {
			return true
		}
	}
	return false
}

// isRegular follows symlinks, which is how distributions usually install
// versioned plugin objects.
func isRegular(entry fs.DirEntry, path string) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("skipping dangling plugin link", "path", path, "error", err)
		return false
	}
	return info.Mode().IsRegular()
}
