package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UploadRules is the extension policy applied during upload admission.
// Blocked extensions are refused outright regardless of scan outcome;
// an empty Allowed list permits everything not blocked.
type UploadRules struct {
	BlockedExtensions []string `yaml:"blocked_extensions"`
	AllowedExtensions []string `yaml:"allowed_extensions"`

	blocked map[string]bool
	allowed map[string]bool
}

// defaultBlocked are extensions refused without a rules file: the usual
// Windows script/installer vectors.
var defaultBlocked = []string{
	".exe", ".bat", ".cmd", ".com", ".scr", ".pif",
	".vbs", ".vbe", ".wsf", ".wsh", ".msi", ".hta",
	".lnk", ".cpl", ".inf", ".reg",
}

// DefaultRules returns the built-in upload policy.
func DefaultRules() *UploadRules {
	r := &UploadRules{BlockedExtensions: defaultBlocked}
	r.index()
	return r
}

// LoadRules reads an upload policy from a YAML file. An empty path
// yields the default policy.
func LoadRules(path string) (*UploadRules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	r := &UploadRules{}
	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	r.index()
	return r, nil
}

func (r *UploadRules) index() {
	r.blocked = make(map[string]bool, len(r.BlockedExtensions))
	for _, ext := range r.BlockedExtensions {
		r.blocked[normalizeExt(ext)] = true
	}
	r.allowed = make(map[string]bool, len(r.AllowedExtensions))
	for _, ext := range r.AllowedExtensions {
		r.allowed[normalizeExt(ext)] = true
	}
}

// Blocked reports whether a file extension is refused by policy.
func (r *UploadRules) Blocked(ext string) bool {
	ext = normalizeExt(ext)
	if r.blocked[ext] {
		return true
	}
	if len(r.allowed) > 0 && !r.allowed[ext] {
		return true
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
