package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	t.Run("blocks executable extensions", func(t *testing.T) {
		for _, ext := range []string{".exe", ".bat", ".scr", ".msi"} {
			if !rules.Blocked(ext) {
				t.Errorf("expected %s to be blocked", ext)
			}
		}
	})

	t.Run("allows ordinary extensions", func(t *testing.T) {
		for _, ext := range []string{".pdf", ".txt", ".png", ".zip", ""} {
			if rules.Blocked(ext) {
				t.Errorf("expected %s to be allowed", ext)
			}
		}
	})

	t.Run("is case insensitive", func(t *testing.T) {
		if !rules.Blocked(".EXE") {
			t.Error("expected .EXE to be blocked")
		}
	})
}

func TestLoadRules(t *testing.T) {
	t.Run("empty path yields defaults", func(t *testing.T) {
		rules, err := LoadRules("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rules.Blocked(".exe") {
			t.Error("expected default blocklist")
		}
	})

	t.Run("loads a YAML policy", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.yaml")
		content := "blocked_extensions: [\".iso\", \"dmg\"]\nallowed_extensions: [\".pdf\", \".txt\"]\n"
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write rules file: %v", err)
		}

		rules, err := LoadRules(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rules.Blocked(".iso") {
			t.Error("expected .iso to be blocked")
		}
		if !rules.Blocked(".dmg") {
			t.Error("expected dot-less entries to normalize")
		}
		if rules.Blocked(".pdf") || rules.Blocked(".txt") {
			t.Error("expected allowlisted extensions to pass")
		}
		if !rules.Blocked(".png") {
			t.Error("allowlist mode should block everything else")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := LoadRules("/no/such/rules.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
