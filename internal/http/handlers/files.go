package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Longt00/company-sub000/internal/http/response"
	"github.com/Longt00/company-sub000/internal/platform/dbctx"
	"github.com/Longt00/company-sub000/internal/platform/logger"
	"github.com/Longt00/company-sub000/internal/services"
)

// FileHandler serves stored bytes: inline (with byte-range support) and as
// attachment downloads.
type FileHandler struct {
	log      *logger.Logger
	delivery services.DeliveryService
}

func NewFileHandler(log *logger.Logger, delivery services.DeliveryService) *FileHandler {
	return &FileHandler{
		log:      log.With("handler", "FileHandler"),
		delivery: delivery,
	}
}

// Serve handles GET <accessPrefix>/*filepath with optional Range header.
func (h *FileHandler) Serve(c *gin.Context) {
	key := c.Param("filepath")
	rangeHeader := c.GetHeader("Range")

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	res, err := h.delivery.Serve(dbc, key, rangeHeader)
	if err != nil {
		if errors.Is(err, services.ErrRangeNotSatisfiable) {
			total := int64(0)
			if res != nil {
				total = res.Total
			}
			c.Header("Content-Range", fmt.Sprintf("bytes */%d", total))
			response.RespondError(c, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", err)
			return
		}
		respondServiceError(c, err)
		return
	}
	defer res.Body.Close()

	headers := map[string]string{
		"Accept-Ranges": "bytes",
		"Cache-Control": services.CacheControl,
	}
	if res.Status == http.StatusPartialContent {
		headers["Content-Range"] = fmt.Sprintf("bytes %d-%d/%d", res.Start, res.End, res.Total)
	}
	c.DataFromReader(res.Status, res.Length, res.ContentType, res.Body, headers)
}

// Download handles GET ?url=... returning the full object as an attachment.
func (h *FileHandler) Download(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_url", fmt.Errorf("url query parameter required"))
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	res, err := h.delivery.Download(dbc, url)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer res.Body.Close()

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%s", strconv.Quote(res.FileName)),
		"Cache-Control":       services.CacheControl,
	}
	c.DataFromReader(http.StatusOK, res.Length, res.ContentType, res.Body, headers)
}
