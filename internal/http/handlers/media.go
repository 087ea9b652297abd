package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Longt00/company-sub000/internal/http/response"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/services"
)

// MediaHandler is the anonymous read surface: category listings and public
// file info.
type MediaHandler struct {
	log    *logger.Logger
	upload services.UploadService
}

func NewMediaHandler(log *logger.Logger, upload services.UploadService) *MediaHandler {
	return &MediaHandler{
		log:    log.With("handler", "MediaHandler"),
		upload: upload,
	}
}

// ActiveCategories maps category name to its live public asset count.
func (h *MediaHandler) ActiveCategories(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	cats, err := h.upload.ActiveCategories(dbc)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"categories": cats})
}

func (h *MediaHandler) FileInfo(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url query parameter required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	asset, err := h.upload.PublicFileInfo(dbc, url)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.RespondOK(c, asset)
}

func (h *MediaHandler) LatestByCategory(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_category", fmt.Errorf("category query parameter required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	asset, err := h.upload.LatestByCategory(dbc, category)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !asset.IsPublic {
		respondServiceError(c, services.ErrNotFound)
		return
	}
	response.RespondOK(c, asset)
}
