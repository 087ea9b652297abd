package services

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/storage"
)

const (
	iconSize     = 64
	iconCategory = "icons"
)

// defaultIconSections are the site sections that get a placeholder badge at
// startup: circular PNG with the section's initials.
var defaultIconSections = []string{"company", "team", "product", "question", "news", "contact"}

var iconPalette = []color.RGBA{
	{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff},
	{R: 0x10, G: 0xb9, B: 0x81, A: 0xff},
	{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xff},
	{R: 0xef, G: 0x44, B: 0x44, A: 0xff},
	{R: 0x8b, G: 0x5c, B: 0xf6, A: 0xff},
	{R: 0x06, G: 0xb6, B: 0xd4, A: 0xff},
}

// IconService renders default section badges through the blob store. The
// whole pass is best-effort and never blocks startup.
type IconService interface {
	EnsureDefaultIcons(ctx context.Context)
}

type iconService struct {
	log   *logger.Logger
	store storage.BlobStore
	face  font.Face
}

func NewIconService(baseLog *logger.Logger, store storage.BlobStore) IconService {
	svcLog := baseLog.With("service", "IconService")
	return &iconService{
		log:   svcLog,
		store: store,
		face:  loadIconFace(svcLog),
	}
}

// loadIconFace parses the TTF at ICON_FONT_PATH; without one the fixed
// bitmap face still produces a legible badge.
func loadIconFace(log *logger.Logger) font.Face {
	path := strings.TrimSpace(os.Getenv("ICON_FONT_PATH"))
	if path == "" {
		return basicfont.Face7x13
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Icon font unreadable, using builtin face", "path", path, "error", err)
		return basicfont.Face7x13
	}
	ttf, err := truetype.Parse(raw)
	if err != nil {
		log.Warn("Icon font unparseable, using builtin face", "path", path, "error", err)
		return basicfont.Face7x13
	}
	return truetype.NewFace(ttf, &truetype.Options{Size: 24})
}

func (s *iconService) EnsureDefaultIcons(ctx context.Context) {
	for i, section := range defaultIconSections {
		key := fmt.Sprintf("%s/%s.png", iconCategory, section)
		exists, err := s.store.Exists(ctx, key)
		if err != nil {
			s.log.Warn("Icon existence check failed", "key", key, "error", err)
			continue
		}
		if exists {
			continue
		}
		data, err := s.render(section, iconPalette[i%len(iconPalette)])
		if err != nil {
			s.log.Warn("Icon render failed", "section", section, "error", err)
			continue
		}
		if _, err := s.store.Write(ctx, key, bytes.NewReader(data)); err != nil {
			s.log.Warn("Icon write failed", "key", key, "error", err)
			continue
		}
		s.log.Info("Default icon generated", "key", key)
	}
}

func (s *iconService) render(section string, bg color.RGBA) ([]byte, error) {
	dc := gg.NewContext(iconSize, iconSize)
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	dc.SetColor(bg)
	dc.DrawCircle(iconSize/2, iconSize/2, iconSize/2)
	dc.Fill()

	dc.SetFontFace(s.face)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(initialsOf(section), iconSize/2, iconSize/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode icon png: %w", err)
	}
	return buf.Bytes(), nil
}

func initialsOf(section string) string {
	s := strings.TrimSpace(section)
	if s == "" {
		return "?"
	}
	runes := []rune(strings.ToUpper(s))
	if len(runes) == 1 {
		return string(runes)
	}
	return string(runes[:2])
}
