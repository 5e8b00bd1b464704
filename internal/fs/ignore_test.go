package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.log"})
		if len(m.patterns) != 1 {
			t.Fatalf("expected 1 pattern, got %d", len(m.patterns))
		}
		if m.patterns[0].pattern != "*.log" {
			t.Errorf("expected *.log, got %s", m.patterns[0].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.log", "build/output"})
		if m.patterns[0].matchPath {
			t.Error("*.log should not be a path pattern")
		}
		if !m.patterns[1].matchPath {
			t.Error("build/output should be a path pattern")
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		rel      string
		want     bool
	}{
		{name: "extension at root", patterns: []string{"*.vbak_batch"}, rel: "home_0.vbak_batch", want: true},
		{name: "extension in subdirectory", patterns: []string{"*.vbak_batch"}, rel: "plans/home/home_3.vbak_batch", want: true},
		{name: "other extension", patterns: []string{"*.vbak_batch"}, rel: "home.yaml", want: false},
		{name: "ignore file by name", patterns: []string{IgnoreFileName}, rel: IgnoreFileName, want: true},
		{name: "directory name anywhere", patterns: []string{".vbatches"}, rel: "plans/home/.vbatches", want: true},
		{name: "hidden file in subdirectory", patterns: []string{".DS_Store"}, rel: "photos/2024/.DS_Store", want: true},
		{name: "anchored path", patterns: []string{"cache/thumbs"}, rel: "cache/thumbs", want: true},
		{name: "anchored path elsewhere", patterns: []string{"cache/thumbs"}, rel: "photos/cache/thumbs", want: false},
		{name: "anchored glob", patterns: []string{"build/*.o"}, rel: "build/main.o", want: true},
		{name: "single character wildcard", patterns: []string{"?.txt"}, rel: "a.txt", want: true},
		{name: "single character wildcard too long", patterns: []string{"?.txt"}, rel: "ab.txt", want: false},
		{name: "character class", patterns: []string{"*.[oa]"}, rel: "lib.a", want: true},
		{name: "malformed pattern is skipped", patterns: []string{"[", "*.tmp"}, rel: "x.tmp", want: true},
		{name: "no patterns", patterns: nil, rel: "anything.txt", want: false},
		{name: "empty path", patterns: []string{"*.log"}, rel: "", want: false},
		{name: "second of several patterns", patterns: []string{"*.log", "*.tmp"}, rel: "upload.tmp", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NewIgnoreMatcher(tt.patterns).Match(tt.rel); got != tt.want {
				t.Errorf("Match(%q) with %v = %v, want %v", tt.rel, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, IgnoreFileName)
		content := "*.log\n# comment\n\n*.tmp\nbuild/output\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 5 { // includes blank and comment lines - NewIgnoreMatcher does the filtering
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}

		// Verify the matcher filters correctly
		m := NewIgnoreMatcher(patterns)
		if len(m.patterns) != 3 {
			t.Errorf("expected 3 parsed patterns, got %d", len(m.patterns))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile("/nonexistent/.victoryignore")
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}

func TestIgnoreMatcher_Nil(t *testing.T) {
	var m *IgnoreMatcher
	if m.Match("anything.txt") {
		t.Error("nil matcher should not match")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestLoadIgnoreMatcher(t *testing.T) {
	t.Run("merges configured and file patterns", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("*.tmp\n"), 0644); err != nil {
			t.Fatalf("writing ignore file: %v", err)
		}

		m, err := LoadIgnoreMatcher(root, []string{"*.log"})
		if err != nil {
			t.Fatalf("LoadIgnoreMatcher() error = %v", err)
		}
		if m.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", m.Len())
		}
		if !m.Match("a.log") || !m.Match("b.tmp") {
			t.Error("expected both configured and file patterns to match")
		}
	})

	t.Run("missing ignore file uses configured patterns only", func(t *testing.T) {
		t.Parallel()
		m, err := LoadIgnoreMatcher(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("LoadIgnoreMatcher() error = %v", err)
		}
		if m.Len() != 0 {
			t.Errorf("Len() = %d, want 0", m.Len())
		}
	})
}
