package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	mediarepo "github.com/Longt00/company-sub000/internal/data/repos/media"
	"github.com/Longt00/company-sub000/internal/data/repos/testutil"
	"github.com/Longt00/company-sub000/internal/domain/media"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/services"
	"github.com/Longt00/company-sub000/internal/storage"
)

const testAccessPrefix = "/api/files"

type handlerEnv struct {
	router *gin.Engine
	repo   mediarepo.MediaAssetRepo
	store  storage.BlobStore
	dbc    dbctx.Context
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testutil.Logger(t)
	db := testutil.DB(t)
	store, err := storage.NewLocalStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	repo := mediarepo.NewMediaAssetRepo(db, log)
	delivery := services.NewDeliveryService(log, repo, store)
	fh := NewFileHandler(log, delivery)

	router := gin.New()
	router.GET(testAccessPrefix+"/*filepath", fh.Serve)
	router.GET("/api/admin/files/download", fh.Download)

	return &handlerEnv{
		router: router,
		repo:   repo,
		store:  store,
		dbc:    dbctx.Context{Ctx: context.Background()},
	}
}

func (env *handlerEnv) seed(t *testing.T, key string, data []byte, status media.AssetStatus) *media.MediaAsset {
	t.Helper()
	if _, err := env.store.Write(env.dbc.Ctx, key, strings.NewReader(string(data))); err != nil {
		t.Fatalf("write blob: %v", err)
	}
	asset := &media.MediaAsset{
		ID:           uuid.New(),
		OriginalName: "clip.mp4",
		StoragePath:  key,
		PublicURL:    testAccessPrefix + "/" + key,
		Category:     "gallery",
		FileType:     media.FileTypeVideo,
		MimeType:     "video/mp4",
		SizeBytes:    int64(len(data)),
		Extension:    "mp4",
		Status:       status,
		IsPublic:     true,
	}
	if _, err := env.repo.Create(env.dbc, asset); err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return asset
}

func (env *handlerEnv) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestServeFullObject(t *testing.T) {
	env := newHandlerEnv(t)
	data := []byte(strings.Repeat("v", 400))
	env.seed(t, "gallery/2026/01/02/aabb.mp4", data, media.AssetStatusCompleted)

	rec := env.get(testAccessPrefix+"/gallery/2026/01/02/aabb.mp4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Fatalf("Accept-Ranges = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != services.CacheControl {
		t.Fatalf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("Content-Type = %q", got)
	}
	if rec.Body.Len() != len(data) {
		t.Fatalf("body length = %d, want %d", rec.Body.Len(), len(data))
	}
}

func TestServePartialContent(t *testing.T) {
	env := newHandlerEnv(t)
	data := []byte("0123456789abcdefghij")
	env.seed(t, "gallery/2026/01/02/ccdd.mp4", data, media.AssetStatusCompleted)

	rec := env.get(testAccessPrefix+"/gallery/2026/01/02/ccdd.mp4",
		map[string]string{"Range": "bytes=5-9"})
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206 (body %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 5-9/20" {
		t.Fatalf("Content-Range = %q", got)
	}
	if rec.Body.String() != "56789" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestServeUnsatisfiableRange(t *testing.T) {
	env := newHandlerEnv(t)
	data := []byte("0123456789")
	env.seed(t, "gallery/2026/01/02/eeff.mp4", data, media.AssetStatusCompleted)

	for _, header := range []string{"bytes=100-", "bytes=0-4,6-9", "bytes=garbage"} {
		rec := env.get(testAccessPrefix+"/gallery/2026/01/02/eeff.mp4",
			map[string]string{"Range": header})
		if rec.Code != http.StatusRequestedRangeNotSatisfiable {
			t.Fatalf("range %q: status = %d, want 416", header, rec.Code)
		}
		if got := rec.Header().Get("Content-Range"); got != "bytes */10" {
			t.Fatalf("range %q: Content-Range = %q", header, got)
		}
	}
}

func TestServeDeletedAndUnknown(t *testing.T) {
	env := newHandlerEnv(t)
	env.seed(t, "gallery/2026/01/02/gone.mp4", []byte("payload"), media.AssetStatusDeleted)

	for _, key := range []string{"gallery/2026/01/02/gone.mp4", "gallery/2026/01/02/never.mp4"} {
		rec := env.get(testAccessPrefix+"/"+key, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("key %q: status = %d, want 404", key, rec.Code)
		}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("key %q: decode envelope: %v", key, err)
		}
		if envelope.Error.Code == "" {
			t.Fatalf("key %q: missing error code in %s", key, rec.Body.String())
		}
	}
}

func TestServeUntrackedBlob(t *testing.T) {
	env := newHandlerEnv(t)
	key := "icons/company.png"
	if _, err := env.store.Write(env.dbc.Ctx, key, strings.NewReader("fakepng")); err != nil {
		t.Fatalf("write blob: %v", err)
	}

	rec := env.get(testAccessPrefix+"/"+key, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "fakepng" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestDownloadAttachment(t *testing.T) {
	env := newHandlerEnv(t)
	data := []byte("attachment-bytes")
	asset := env.seed(t, "gallery/2026/01/02/dl.mp4", data, media.AssetStatusCompleted)

	rec := env.get("/api/admin/files/download?url="+asset.PublicURL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "attachment") || !strings.Contains(cd, "clip.mp4") {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != string(data) {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = env.get("/api/admin/files/download", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing url: status = %d, want 400", rec.Code)
	}
}
