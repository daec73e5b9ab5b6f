package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/pdfsigner/internal/common"
	"github.com/dmitrijs2005/pdfsigner/internal/server/services"
)

// multipartOverhead leaves room for the form framing around the file.
const multipartOverhead = 1 << 20

// Upload accepts a single PDF in the multipart field "pdf".
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+multipartOverhead)

	fh, err := c.FormFile("pdf")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.badRequest(c, "pdf", fmt.Sprintf("file exceeds %d MiB", h.maxUploadSize>>20))
			return
		}
		h.badRequest(c, "pdf", "no PDF file uploaded")
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, fmt.Errorf("error opening upload: %w", err))
		return
	}
	defer f.Close()

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		// The content itself is checked for a PDF header by the service.
		mimeType = common.PDFMimeType
	}

	doc, err := h.docs.Upload(c.Request.Context(), h.actor(c), services.UploadInput{
		FileName: fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		Body:     f,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.document(doc))
}

func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.docs.List(c.Request.Context(), h.actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.documents(docs))
}

func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.docs.Get(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.document(doc))
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.docs.Delete(c.Request.Context(), h.actor(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

func (h *Handler) IssuePublicLink(c *gin.Context) {
	link, err := h.docs.IssuePublicLink(c.Request.Context(), h.actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, publicLinkResponse{Token: link.Token, URL: link.URL, ExpiresAt: link.ExpiresAt})
}

func (h *Handler) ListAudit(c *gin.Context) {
	events, err := h.audit.ListByDocument(c.Request.Context(), h.actor(c), c.Param("documentId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, auditEvents(events))
}
