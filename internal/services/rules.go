package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Longt00/company-sub000/internal/platform/logger"
)

// CategoryClass is the coarse validation bucket a category string resolves
// to. The set is closed; unknown categories land in ClassGeneric.
type CategoryClass string

const (
	ClassImage    CategoryClass = "image"
	ClassVideo    CategoryClass = "video"
	ClassDocument CategoryClass = "document"
	ClassArchive  CategoryClass = "archive"
	ClassGeneric  CategoryClass = "generic"
)

const (
	// DefaultMaxUpload is the global ceiling applied when a class carries no
	// tighter bound.
	DefaultMaxUpload = 100 << 20

	maxImageBytes    = 10 << 20
	maxDocumentBytes = 20 << 20
	maxArchiveBytes  = 50 << 20
)

// Rules is the allow-list for one category class. Empty extension and MIME
// lists mean "accept anything" (generic class only).
type Rules struct {
	AllowedExtensions []string `yaml:"allowed_extensions"`
	AllowedMimeTypes  []string `yaml:"allowed_mime_types"`
	MaxSizeBytes      int64    `yaml:"max_size_bytes"`
}

func defaultRuleTable() map[CategoryClass]Rules {
	return map[CategoryClass]Rules{
		ClassImage: {
			AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"},
			AllowedMimeTypes:  []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/webp"},
			MaxSizeBytes:      maxImageBytes,
		},
		ClassVideo: {
			AllowedExtensions: []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".webm", ".m4v"},
			AllowedMimeTypes:  []string{"video/mp4", "video/x-msvideo", "video/quicktime", "video/x-ms-wmv", "video/x-flv", "video/webm"},
			MaxSizeBytes:      DefaultMaxUpload,
		},
		ClassDocument: {
			AllowedExtensions: []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt"},
			AllowedMimeTypes: []string{
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"application/vnd.ms-excel",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"application/vnd.ms-powerpoint",
				"application/vnd.openxmlformats-officedocument.presentationml.presentation",
				"text/plain",
			},
			MaxSizeBytes: maxDocumentBytes,
		},
		ClassArchive: {
			AllowedExtensions: []string{".zip", ".rar", ".7z", ".tar", ".gz"},
			AllowedMimeTypes:  []string{"application/zip", "application/x-rar-compressed", "application/x-7z-compressed", "application/x-tar", "application/gzip"},
			MaxSizeBytes:      maxArchiveBytes,
		},
		ClassGeneric: {
			MaxSizeBytes: DefaultMaxUpload,
		},
	}
}

// RuleSet resolves category strings to validation rules. Immutable after
// construction; safe for concurrent use.
type RuleSet struct {
	table map[CategoryClass]Rules
}

// NewRuleSetFromEnv loads the default table, optionally overlaying per-class
// entries from the YAML file at MEDIA_RULES_PATH. An unset variable means
// defaults only; a set-but-unreadable or malformed file is a startup error.
func NewRuleSetFromEnv(log *logger.Logger) (*RuleSet, error) {
	rs := &RuleSet{table: defaultRuleTable()}

	path := strings.TrimSpace(os.Getenv("MEDIA_RULES_PATH"))
	if path == "" {
		return rs, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %q: %w", path, err)
	}
	var overrides map[CategoryClass]Rules
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse rules file %q: %w", path, err)
	}
	for class, r := range overrides {
		base, ok := rs.table[class]
		if !ok {
			return nil, fmt.Errorf("rules file %q: unknown category class %q", path, class)
		}
		if len(r.AllowedExtensions) > 0 {
			base.AllowedExtensions = normalizeExts(r.AllowedExtensions)
		}
		if len(r.AllowedMimeTypes) > 0 {
			base.AllowedMimeTypes = r.AllowedMimeTypes
		}
		if r.MaxSizeBytes > 0 {
			base.MaxSizeBytes = r.MaxSizeBytes
		}
		rs.table[class] = base
	}
	log.Info("Media rules overridden from file", "path", path, "classes", len(overrides))
	return rs, nil
}

func NewRuleSet() *RuleSet {
	return &RuleSet{table: defaultRuleTable()}
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// ClassOf maps a category string to its validation class. Matching is on
// path segments and common admin category names, not substring guessing
// alone.
func ClassOf(category string) CategoryClass {
	c := strings.ToLower(strings.Trim(strings.TrimSpace(category), "/"))
	if c == "" {
		return ClassGeneric
	}
	switch c {
	case "logo", "banner", "icon", "icons", "avatar", "gallery":
		return ClassImage
	}
	last := c
	if i := strings.LastIndex(c, "/"); i >= 0 {
		last = c[i+1:]
	}
	switch {
	case strings.Contains(last, "image") || strings.Contains(last, "photo") || strings.Contains(last, "picture"):
		return ClassImage
	case strings.Contains(last, "video"):
		return ClassVideo
	case strings.Contains(last, "doc") || strings.Contains(last, "file") || strings.Contains(last, "attachment"):
		return ClassDocument
	case strings.Contains(last, "archive") || strings.Contains(last, "zip"):
		return ClassArchive
	default:
		return ClassGeneric
	}
}

func (rs *RuleSet) For(category string) Rules {
	return rs.table[ClassOf(category)]
}

// Validate applies the pre-transform checks: non-empty payload, the global
// hard ceiling, and the type allow-list. The tighter class ceiling is
// enforced after the transform pipeline has run (see EffectiveLimit), since
// compression may bring an oversized image back under it. A MIME mismatch
// alone is not fatal when the extension independently passes:
// client-reported MIME types are unreliable.
func (rs *RuleSet) Validate(category, originalName, mimeType string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: empty payload", ErrValidationFailed)
	}
	if size > DefaultMaxUpload {
		return fmt.Errorf("%w: size %d exceeds upload ceiling %d", ErrValidationFailed, size, int64(DefaultMaxUpload))
	}

	r := rs.For(category)
	if len(r.AllowedExtensions) == 0 && len(r.AllowedMimeTypes) == 0 {
		return nil
	}

	ext := strings.ToLower(ExtensionOf(originalName))
	extOK := containsFold(r.AllowedExtensions, ext)
	mimeOK := containsFold(r.AllowedMimeTypes, strings.TrimSpace(mimeType))
	if extOK || mimeOK {
		return nil
	}
	return fmt.Errorf("%w: type %q (%s) not allowed for category %q", ErrValidationFailed, ext, mimeType, category)
}

// EffectiveLimit is the post-transform size ceiling for a category: the
// class ceiling, tightened by a caller override when one is given.
func (rs *RuleSet) EffectiveLimit(category string, override int64) int64 {
	limit := rs.For(category).MaxSizeBytes
	if limit <= 0 {
		limit = DefaultMaxUpload
	}
	if override > 0 && override < limit {
		limit = override
	}
	return limit
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
