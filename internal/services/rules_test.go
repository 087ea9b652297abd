package services

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Longt00/company-sub000/internal/platform/logger"
)

func TestClassOf(t *testing.T) {
	cases := map[string]CategoryClass{
		"logo":            ClassImage,
		"banner":          ClassImage,
		"product/images":  ClassImage,
		"editor/images":   ClassImage,
		"team/photos":     ClassImage,
		"product/videos":  ClassVideo,
		"video":           ClassVideo,
		"editor/files":    ClassDocument,
		"docs":            ClassDocument,
		"downloads/zips":  ClassArchive,
		"misc":            ClassGeneric,
		"":                ClassGeneric,
		"/logo/":          ClassImage,
		"something/weird": ClassGeneric,
	}
	for in, want := range cases {
		if got := ClassOf(in); got != want {
			t.Fatalf("ClassOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateRejectsEmptyPayload(t *testing.T) {
	rs := NewRuleSet()
	if err := rs.Validate("logo", "a.png", "image/png", 0); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("empty payload err = %v", err)
	}
}

func TestValidateSizeCeiling(t *testing.T) {
	rs := NewRuleSet()
	// The class ceiling is deferred to post-transform, so an oversized image
	// still passes the pre-transform check as long as it is under the hard
	// ceiling.
	if err := rs.Validate("logo", "a.png", "image/png", maxImageBytes+1); err != nil {
		t.Fatalf("pre-transform check applied class ceiling: %v", err)
	}
	if err := rs.Validate("misc", "a.bin", "application/octet-stream", DefaultMaxUpload); err != nil {
		t.Fatalf("at-ceiling payload rejected: %v", err)
	}
	if err := rs.Validate("misc", "a.bin", "application/octet-stream", DefaultMaxUpload+1); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("over global ceiling err = %v", err)
	}
}

func TestEffectiveLimit(t *testing.T) {
	rs := NewRuleSet()
	if got := rs.EffectiveLimit("logo", 0); got != maxImageBytes {
		t.Fatalf("image limit = %d, want %d", got, int64(maxImageBytes))
	}
	// Caller override only ever tightens.
	if got := rs.EffectiveLimit("logo", 1<<20); got != 1<<20 {
		t.Fatalf("tightened limit = %d", got)
	}
	if got := rs.EffectiveLimit("logo", 500<<20); got != maxImageBytes {
		t.Fatalf("loosened limit = %d", got)
	}
	if got := rs.EffectiveLimit("misc", 0); got != DefaultMaxUpload {
		t.Fatalf("generic limit = %d", got)
	}
}

func TestValidateTypeAllowList(t *testing.T) {
	rs := NewRuleSet()

	if err := rs.Validate("logo", "a.png", "image/png", 100); err != nil {
		t.Fatalf("valid image rejected: %v", err)
	}
	// MIME mismatch alone is not fatal when the extension passes.
	if err := rs.Validate("logo", "a.png", "application/octet-stream", 100); err != nil {
		t.Fatalf("extension-only pass rejected: %v", err)
	}
	// Extension missing but MIME passes.
	if err := rs.Validate("logo", "blob", "image/jpeg", 100); err != nil {
		t.Fatalf("mime-only pass rejected: %v", err)
	}
	// Both fail.
	if err := rs.Validate("logo", "a.exe", "application/x-msdownload", 100); !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("disallowed type err = %v", err)
	}
	// Generic class accepts anything under the ceiling.
	if err := rs.Validate("misc", "a.exe", "application/x-msdownload", 100); err != nil {
		t.Fatalf("generic rejected: %v", err)
	}
}

func TestRuleSetYAMLOverride(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "image:\n  allowed_extensions: [svg]\n  max_size_bytes: 1024\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	t.Setenv("MEDIA_RULES_PATH", path)

	rs, err := NewRuleSetFromEnv(log)
	if err != nil {
		t.Fatalf("NewRuleSetFromEnv: %v", err)
	}
	if err := rs.Validate("logo", "a.svg", "", 100); err != nil {
		t.Fatalf("overridden extension rejected: %v", err)
	}
	if got := rs.EffectiveLimit("logo", 0); got != 1024 {
		t.Fatalf("overridden ceiling = %d, want 1024", got)
	}
	// MIME list was not overridden, so the stock entries still pass.
	if err := rs.Validate("logo", "blob", "image/png", 100); err != nil {
		t.Fatalf("stock mime list lost: %v", err)
	}
	// Video class untouched.
	if err := rs.Validate("product/videos", "a.mp4", "video/mp4", 100); err != nil {
		t.Fatalf("untouched class broken: %v", err)
	}
}

func TestRuleSetYAMLOverrideErrors(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("unknownclass:\n  max_size_bytes: 1\n"), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	t.Setenv("MEDIA_RULES_PATH", path)
	if _, err := NewRuleSetFromEnv(log); err == nil {
		t.Fatalf("unknown class accepted")
	}

	t.Setenv("MEDIA_RULES_PATH", filepath.Join(dir, "missing.yaml"))
	if _, err := NewRuleSetFromEnv(log); err == nil {
		t.Fatalf("missing file accepted")
	}
}
