package services

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultAccessPrefix is the URL prefix under which the delivery endpoint
// serves storage keys.
const DefaultAccessPrefix = "/api/files"

// DeriveStorageKey builds the collision-resistant key under which a payload
// is stored: <category>/yyyy/MM/dd/<32-hex-random><.ext>. The random 128-bit
// component makes two calls with identical inputs almost certainly differ;
// this is deliberate. Identical content uploaded twice yields two assets.
func DeriveStorageKey(originalName, category string) string {
	cat := strings.Trim(strings.TrimSpace(category), "/")
	if cat == "" {
		cat = "misc"
	}
	now := time.Now()
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s/%s/%s%s",
		cat,
		now.Format("2006/01/02"),
		id,
		ExtensionOf(originalName),
	)
}

// ExtensionOf returns the lowercased extension of a filename, dot included,
// or "" when there is none.
func ExtensionOf(name string) string {
	ext := path.Ext(strings.TrimSpace(name))
	if ext == "." {
		return ""
	}
	return strings.ToLower(ext)
}

// PublicURL derives the caller-facing URL for a storage key.
func PublicURL(accessPrefix, key string) string {
	prefix := strings.TrimRight(accessPrefix, "/")
	return prefix + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL recovers the storage key from a public URL. Accepts both bare
// paths ("/api/files/logo/...") and absolute URLs; anything before the
// access prefix is ignored.
func KeyFromURL(url, accessPrefix string) string {
	u := strings.TrimSpace(url)
	if u == "" {
		return ""
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	prefix := strings.TrimRight(accessPrefix, "/")
	if prefix != "" {
		if i := strings.Index(u, prefix+"/"); i >= 0 {
			return strings.TrimLeft(u[i+len(prefix):], "/")
		}
	}
	return strings.TrimLeft(u, "/")
}

// ThumbnailKey places an asset's thumbnail next to it under a fixed suffix.
func ThumbnailKey(storageKey string) string {
	ext := path.Ext(storageKey)
	base := strings.TrimSuffix(storageKey, ext)
	return base + "_thumb.jpg"
}
