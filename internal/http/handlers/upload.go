package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Longt00/company-sub000/internal/http/response"
	"github.com/Longt00/company-sub000/internal/middleware"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/services"
)

const maxMultipartMemory = 32 << 20

// UploadHandler is the admin surface: ingestion, lifecycle and asset
// management.
type UploadHandler struct {
	log       *logger.Logger
	upload    services.UploadService
	lifecycle services.LifecycleService
}

func NewUploadHandler(log *logger.Logger, upload services.UploadService, lifecycle services.LifecycleService) *UploadHandler {
	return &UploadHandler{
		log:       log.With("handler", "UploadHandler"),
		upload:    upload,
		lifecycle: lifecycle,
	}
}

func optionsFromForm(c *gin.Context) services.UploadOptions {
	opts := services.UploadOptions{
		Description: strings.TrimSpace(c.PostForm("description")),
		RelatedType: strings.TrimSpace(c.PostForm("related_type")),
		UploadedBy:  middleware.CallerID(c),
	}
	if v := strings.TrimSpace(c.PostForm("width")); v != "" {
		if w, err := strconv.Atoi(v); err == nil && w > 0 {
			opts.Width = w
		}
	}
	if v := strings.TrimSpace(c.PostForm("height")); v != "" {
		if h, err := strconv.Atoi(v); err == nil && h > 0 {
			opts.Height = h
		}
	}
	if v := strings.TrimSpace(c.PostForm("watermark")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Watermark = b
		}
	}
	if v := strings.TrimSpace(c.PostForm("max_size")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			opts.MaxSizeBytes = n
		}
	}
	if v := strings.TrimSpace(c.PostForm("thumbnail")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && !b {
			opts.SkipThumbnail = true
		}
	}
	if v := strings.TrimSpace(c.PostForm("private")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			opts.Private = b
		}
	}
	if v := strings.TrimSpace(c.PostForm("tags")); v != "" {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				opts.Tags = append(opts.Tags, tag)
			}
		}
	}
	if v := strings.TrimSpace(c.PostForm("related_id")); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			opts.RelatedID = &id
		}
	}
	return opts
}

// readPart drains one multipart file, sniffing the MIME type when the part
// header carries none.
func readPart(fh *multipart.FileHeader) (data []byte, mimeType string, err error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read uploaded file: %w", err)
	}
	mimeType = fh.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

func (h *UploadHandler) Upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	category := strings.TrimSpace(c.PostForm("category"))
	if category == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_category", fmt.Errorf("category form field required"))
		return
	}
	data, mimeType, err := readPart(fh)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	res, err := h.upload.UploadFile(dbc, data, fh.Filename, category, mimeType, optionsFromForm(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *UploadHandler) UploadBatch(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	form := c.Request.MultipartForm
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		response.RespondError(c, http.StatusBadRequest, "no_files", fmt.Errorf("no files in request"))
		return
	}
	category := strings.TrimSpace(c.PostForm("category"))
	if category == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_category", fmt.Errorf("category form field required"))
		return
	}

	items := make([]services.BatchItem, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		data, mimeType, err := readPart(fh)
		if err != nil {
			h.log.Warn("Skipping unreadable batch file", "name", fh.Filename, "error", err)
			items = append(items, services.BatchItem{OriginalName: fh.Filename})
			continue
		}
		items = append(items, services.BatchItem{
			Data:         data,
			OriginalName: fh.Filename,
			MimeType:     mimeType,
		})
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	results := h.upload.UploadBatch(dbc, items, category, optionsFromForm(c))
	response.RespondOK(c, gin.H{"results": results})
}

func (h *UploadHandler) Delete(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url query parameter required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	ok, err := h.lifecycle.Delete(dbc, url, middleware.CallerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": ok, "url": url})
}

func (h *UploadHandler) DeleteBatch(c *gin.Context) {
	var body struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.URLs) == 0 {
		response.RespondError(c, http.StatusBadRequest, "missing_urls", fmt.Errorf("urls array required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	results := h.lifecycle.DeleteBatch(dbc, body.URLs, middleware.CallerID(c))
	response.RespondOK(c, gin.H{"results": results})
}

func (h *UploadHandler) FileInfo(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url query parameter required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	asset, err := h.upload.FileInfo(dbc, url)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, asset)
}

func (h *UploadHandler) FileExists(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url query parameter required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	ok, err := h.upload.FileExists(dbc, url)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"exists": ok})
}

func (h *UploadHandler) OriginalFileName(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url query parameter required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	name, err := h.upload.OriginalFileName(dbc, url)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"original_name": name})
}

func (h *UploadHandler) FilesByCategory(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))
	if category == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_category", fmt.Errorf("category query parameter required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	files, err := h.upload.FilesByCategory(dbc, category)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"files": files})
}

type copyMoveRequest struct {
	URL      string `json:"url"`
	Category string `json:"category"`
}

func (h *UploadHandler) CopyFile(c *gin.Context) {
	var body copyMoveRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.URL == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	res, err := h.upload.CopyFile(dbc, body.URL, body.Category, middleware.CallerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *UploadHandler) MoveFile(c *gin.Context) {
	var body copyMoveRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.URL == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	res, err := h.upload.MoveFile(dbc, body.URL, body.Category, middleware.CallerID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}
