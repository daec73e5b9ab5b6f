package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/server/storage"
)

// ServeOriginal streams an uploaded PDF. Names are random, so knowing the
// path is what grants access.
func (h *Handler) ServeOriginal(c *gin.Context) {
	h.serveFile(c, storage.OriginalsDir, storage.ValidateOriginalPath)
}

// ServeFinalized streams a finalized artifact.
func (h *Handler) ServeFinalized(c *gin.Context) {
	h.serveFile(c, storage.FinalizedDir, storage.ValidateFinalizedPath)
}

func (h *Handler) serveFile(c *gin.Context, dir string, validate func(string) error) {
	ctx := c.Request.Context()
	name := c.Param("name")
	p := storage.UploadsRoot + dir + "/" + name
	if err := validate(p); err != nil {
		abortWith(c, http.StatusNotFound, "file not found")
		return
	}
	key := storage.KeyFromPath(p)

	if ps, ok := h.files.(storage.Presigner); ok {
		exists, err := h.files.Exists(ctx, key)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if !exists {
			abortWith(c, http.StatusNotFound, "file not found")
			return
		}
		url, err := ps.PresignGet(ctx, key, 0)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	rc, err := h.files.Open(ctx, key)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, common.PDFMimeType, rc, map[string]string{
		"Content-Disposition":    fmt.Sprintf("inline; filename=%q", name),
		"X-Content-Type-Options": "nosniff",
	})
}
