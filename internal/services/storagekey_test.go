package services

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestDeriveStorageKeyShape(t *testing.T) {
	key := DeriveStorageKey("Photo.JPG", "product/images")

	datePart := time.Now().Format("2006/01/02")
	wantPrefix := "product/images/" + datePart + "/"
	if !strings.HasPrefix(key, wantPrefix) {
		t.Fatalf("key %q missing prefix %q", key, wantPrefix)
	}
	rest := strings.TrimPrefix(key, wantPrefix)
	if ok, _ := regexp.MatchString(`^[0-9a-f]{32}\.jpg$`, rest); !ok {
		t.Fatalf("key tail %q not <32-hex>.jpg", rest)
	}
}

func TestDeriveStorageKeyUnique(t *testing.T) {
	a := DeriveStorageKey("same.png", "logo")
	b := DeriveStorageKey("same.png", "logo")
	if a == b {
		t.Fatalf("two derivations produced the same key %q", a)
	}
}

func TestDeriveStorageKeyEdgeInputs(t *testing.T) {
	if key := DeriveStorageKey("noext", "logo"); strings.Contains(key, ".") {
		t.Fatalf("extensionless name produced key with extension: %q", key)
	}
	if key := DeriveStorageKey("a.png", ""); !strings.HasPrefix(key, "misc/") {
		t.Fatalf("empty category key = %q, want misc/ prefix", key)
	}
	if key := DeriveStorageKey("a.png", "/logo/"); !strings.HasPrefix(key, "logo/") {
		t.Fatalf("slashed category key = %q", key)
	}
}

func TestExtensionOf(t *testing.T) {
	cases := map[string]string{
		"a.JPG":        ".jpg",
		"a.tar.gz":     ".gz",
		"noext":        "",
		"trailingdot.": "",
		"":             "",
		" padded.png ": ".png",
	}
	for in, want := range cases {
		if got := ExtensionOf(in); got != want {
			t.Fatalf("ExtensionOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPublicURLAndKeyRoundTrip(t *testing.T) {
	key := "logo/2025/01/02/0123456789abcdef0123456789abcdef.png"
	url := PublicURL(DefaultAccessPrefix, key)
	if url != "/api/files/"+key {
		t.Fatalf("PublicURL = %q", url)
	}
	if got := KeyFromURL(url, DefaultAccessPrefix); got != key {
		t.Fatalf("KeyFromURL = %q, want %q", got, key)
	}
	// Absolute URLs and query strings are tolerated.
	abs := "https://cdn.example.com/api/files/" + key + "?v=3"
	if got := KeyFromURL(abs, DefaultAccessPrefix); got != key {
		t.Fatalf("KeyFromURL(abs) = %q, want %q", got, key)
	}
	// A bare key passes through.
	if got := KeyFromURL("/"+key, DefaultAccessPrefix); got != key {
		t.Fatalf("KeyFromURL(bare) = %q, want %q", got, key)
	}
}

func TestThumbnailKey(t *testing.T) {
	got := ThumbnailKey("logo/2025/01/02/abcd.png")
	if got != "logo/2025/01/02/abcd_thumb.jpg" {
		t.Fatalf("ThumbnailKey = %q", got)
	}
	if got := ThumbnailKey("logo/2025/01/02/abcd"); got != "logo/2025/01/02/abcd_thumb.jpg" {
		t.Fatalf("ThumbnailKey no-ext = %q", got)
	}
}
