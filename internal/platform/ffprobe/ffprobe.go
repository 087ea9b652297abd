package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Longt00/company-sub000/internal/platform/logger"
)

// Prober extracts media metadata via the ffprobe binary. All methods are
// best-effort: callers treat a probe failure as "metadata unavailable", never
// as an ingestion failure.
type Prober interface {
	Available() bool
	DurationSeconds(ctx context.Context, data []byte, ext string) (int64, error)
}

type prober struct {
	log      *logger.Logger
	binPath  string
	workRoot string
}

func New(log *logger.Logger) Prober {
	p := &prober{
		log:      log.With("service", "FFProbe"),
		binPath:  "ffprobe",
		workRoot: filepath.Join(os.TempDir(), "media-probe"),
	}
	if !p.Available() {
		p.log.Warn("ffprobe not found in PATH, video duration probing disabled")
	}
	return p
}

func (p *prober) Available() bool {
	_, err := exec.LookPath(p.binPath)
	return err == nil
}

// DurationSeconds writes the payload to a temp file and asks ffprobe for the
// container duration, rounded up to whole seconds.
func (p *prober) DurationSeconds(ctx context.Context, data []byte, ext string) (int64, error) {
	if !p.Available() {
		return 0, fmt.Errorf("ffprobe not available")
	}
	if err := os.MkdirAll(p.workRoot, 0o755); err != nil {
		return 0, fmt.Errorf("create probe work dir: %w", err)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(p.workRoot, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write probe temp file: %w", err)
	}
	defer os.Remove(path)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binPath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w; out=%s", err, strings.TrimSpace(string(out)))
	}
	return ParseDuration(string(out))
}

// ParseDuration parses ffprobe's duration output ("12.345678\n") into whole
// seconds, rounding up so a 0.5s clip reports 1.
func ParseDuration(out string) (int64, error) {
	s := strings.TrimSpace(out)
	if s == "" || strings.EqualFold(s, "N/A") {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative ffprobe duration %q", s)
	}
	return int64(math.Ceil(f)), nil
}
