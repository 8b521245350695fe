package exclude

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mirrorsync/internal/domain"
)

func TestCompile_RejectsMalformedPatterns(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"backslash", `a\b`},
		{"empty segment", "a//b"},
		{"dotdot segment", "../escape"},
		{"dot segment", "a/./b"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile([]string{tc.pattern})
			if !errors.Is(err, domain.ErrInvalidPattern) {
				t.Errorf("Compile(%q): expected ErrInvalidPattern, got %v", tc.pattern, err)
			}
		})
	}
}

func TestIsExcluded_SingleSegmentMatchesAnyDepth(t *testing.T) {
	m, err := Compile([]string{"*.zip"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !m.IsExcluded("a.zip") {
		t.Error("expected a.zip to be excluded")
	}
	if !m.IsExcluded("b/d.zip") {
		t.Error("expected b/d.zip to be excluded")
	}
	if m.IsExcluded("b/c.rom") {
		t.Error("expected b/c.rom not to be excluded")
	}
}

func TestIsExcluded_DirectoryPatternExcludesSubtree(t *testing.T) {
	m, err := Compile([]string{"betas"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !m.IsExcluded("betas") {
		t.Error("expected betas to be excluded")
	}
	if !m.IsExcluded("betas/game.rom") {
		t.Error("expected betas/game.rom to be excluded")
	}
	if !m.IsExcluded("consoles/betas/game.rom") {
		t.Error("expected nested betas subtree to be excluded")
	}
	if m.IsExcluded("betasaurus/game.rom") {
		t.Error("expected betasaurus not to match the betas pattern")
	}
}

func TestIsExcluded_AnchoredPatternMatchesPrefixOnly(t *testing.T) {
	m, err := Compile([]string{"consoles/nes"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !m.IsExcluded("consoles/nes") {
		t.Error("expected consoles/nes to be excluded")
	}
	if !m.IsExcluded("consoles/nes/mario.rom") {
		t.Error("expected files under consoles/nes to be excluded")
	}
	if m.IsExcluded("consoles/nesclassic/mario.rom") {
		t.Error("expected consoles/nesclassic not to match")
	}
	if m.IsExcluded("other/consoles/nes/mario.rom") {
		t.Error("anchored pattern must not match mid-path")
	}
}

func TestIsExcluded_WildcardWithinSegmentOnly(t *testing.T) {
	m, err := Compile([]string{"consoles/*/prototypes"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !m.IsExcluded("consoles/nes/prototypes/x.rom") {
		t.Error("expected wildcard segment to match nes")
	}
	if m.IsExcluded("consoles/nes/usa/prototypes/x.rom") {
		t.Error("wildcard must not cross path separators")
	}
}

func TestIsExcluded_NoRules(t *testing.T) {
	m, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if m.IsExcluded("anything/at/all") {
		t.Error("empty matcher must exclude nothing")
	}
}

func TestIsExcluded_UnmatchedPatternIsLegal(t *testing.T) {
	m, err := Compile([]string{"no-such-entry-*"})
	if err != nil {
		t.Fatalf("stale patterns must compile: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 rule, got %d", m.Len())
	}
	if m.IsExcluded("real/file.rom") {
		t.Error("unexpected match")
	}
}

func TestSegmentMatch(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"*.zip", "a.zip", true},
		{"*.zip", "a.zip.part", false},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "acb", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
		{"v*1*", "v2.1-beta", true},
	}

	for _, tc := range cases {
		if got := segmentMatch(tc.pattern, tc.s); got != tc.want {
			t.Errorf("segmentMatch(%q, %q) = %v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}

func TestLoadPatternFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "excludes.txt")

	content := strings.Join([]string{
		"# top comment",
		"",
		"*.zip",
		"   ",
		"consoles/nes",
		"#another comment",
		"  *.part  ",
	}, "\n")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write exclude file: %v", err)
	}

	patterns, err := LoadPatternFile(path)
	if err != nil {
		t.Fatalf("LoadPatternFile failed: %v", err)
	}

	want := []string{"*.zip", "consoles/nes", "*.part"}
	if len(patterns) != len(want) {
		t.Fatalf("expected %d patterns, got %d: %v", len(want), len(patterns), patterns)
	}
	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("pattern %d: expected %q, got %q", i, want[i], patterns[i])
		}
	}
}

func TestLoadPatternFile_Missing(t *testing.T) {
	_, err := LoadPatternFile(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing exclude file")
	}
}
